package persistence

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/roach88/vstore/internal/mapping"
	"github.com/roach88/vstore/internal/queryir"
	"github.com/roach88/vstore/internal/store"
)

// ReconcileStats counts what reconciliation did to one collection.
type ReconcileStats struct {
	Inserted  int `json:"inserted"`
	Obsoleted int `json:"obsoleted"`
	Unchanged int `json:"unchanged"`
}

// Changed reports whether any row was written.
func (s ReconcileStats) Changed() bool {
	return s.Inserted > 0 || s.Obsoleted > 0
}

// Properties that never take part in structural comparison of members.
var nonContent = map[string]bool{
	"Key":                      true,
	"SourceEntityKey":          true,
	"EffectiveVersionSequence": true,
	"ObsoleteVersionSequence":  true,
	"CreatedByKey":             true,
	"CreationTime":             true,
	"ObsoletedByKey":           true,
	"ObsoletionTime":           true,
}

// reconcileAll reconciles every collection of obj. prevSeq is the sequence
// of the version being replaced; fresh means there is none.
func (e *Engine) reconcileAll(o *operation, obj any, ownerKey uuid.UUID, prevSeq, seq int64, fresh bool) (map[string]ReconcileStats, error) {
	refs, err := e.mapper.Collections(o.typeName)
	if err != nil {
		return nil, err
	}
	stats := make(map[string]ReconcileStats, len(refs))
	for _, ref := range refs {
		st, err := e.reconcile(o, obj, ref, ownerKey, prevSeq, seq, fresh)
		if err != nil {
			return nil, fmt.Errorf("reconcile %s.%s: %w", o.typeName, ref.Name, err)
		}
		stats[ref.Name] = st
	}
	return stats, nil
}

// reconcile makes the stored members of one collection visible at seq
// equal to the desired members on obj:
//  1. desired members are matched to existing ones by key, then by content
//  2. matched members with equal content are left untouched
//  3. unmatched existing members are obsoleted
//  4. unmatched desired members are inserted with a new key
//
// The collection on obj is replaced by the resulting stored members.
func (e *Engine) reconcile(o *operation, obj any, ref mapping.CollectionRef, ownerKey uuid.UUID, prevSeq, seq int64, fresh bool) (ReconcileStats, error) {
	var st ReconcileStats
	m := ref.Member

	slice, err := e.mapper.Collection(o.typeName, obj, ref.Name)
	if err != nil {
		return st, err
	}
	desired := make([]any, slice.Len())
	for i := range desired {
		p := reflect.New(slice.Type().Elem())
		p.Elem().Set(slice.Index(i))
		desired[i] = p.Interface()
	}

	var existing []any
	if !fresh {
		existing, err = e.loadMembers(o.ctx, o.runner(), ref, ownerKey, prevSeq)
		if err != nil {
			return st, err
		}
	}

	desiredSig, err := e.signatures(m, ref.FK, desired)
	if err != nil {
		return st, err
	}
	existingSig, err := e.signatures(m, ref.FK, existing)
	if err != nil {
		return st, err
	}

	result := make([]any, len(desired))
	claimed := make([]bool, len(existing))
	kept := make([]bool, len(existing))

	byKey := make(map[uuid.UUID]int, len(existing))
	for i, ex := range existing {
		byKey[memberKey(ex)] = i
	}
	for j, d := range desired {
		k := memberKey(d)
		if k == uuid.Nil {
			continue
		}
		i, ok := byKey[k]
		if !ok || claimed[i] {
			continue
		}
		claimed[i] = true
		if desiredSig[j] == existingSig[i] {
			kept[i] = true
			result[j] = existing[i]
		}
	}
	for j := range desired {
		if result[j] != nil {
			continue
		}
		for i := range existing {
			if !claimed[i] && desiredSig[j] == existingSig[i] {
				claimed[i], kept[i] = true, true
				result[j] = existing[i]
				break
			}
		}
	}

	for i, ex := range existing {
		if kept[i] {
			st.Unchanged++
			continue
		}
		if err := e.obsoleteMember(o, ref, memberKey(ex), seq); err != nil {
			return st, err
		}
		st.Obsoleted++
	}
	for j, d := range desired {
		if result[j] != nil {
			continue
		}
		if err := e.insertMember(o, ref, ownerKey, seq, d); err != nil {
			return st, err
		}
		result[j] = d
		st.Inserted++
	}

	return st, e.setCollection(o.typeName, obj, ref.Name, result)
}

// obsoleteMember closes the window of a versioned member at seq or stamps
// the obsoletion of a simple one.
func (e *Engine) obsoleteMember(o *operation, ref mapping.CollectionRef, key uuid.UUID, seq int64) error {
	m := ref.Member
	if ref.Kind == mapping.KindSimple {
		return e.stampObsolete(o, m, "Key", key, o.principal.Key, o.now)
	}
	keyCol, _ := m.Column("Key")
	obslt, _ := m.Column("ObsoleteVersionSequence")
	where, err := columnEquals(keyCol, key)
	if err != nil {
		return err
	}
	n, err := o.runner().Update(o.ctx, m.Table, store.Row{obslt: seq},
		queryir.Conj(where, queryir.IsNull{Column: queryir.Column{Name: obslt}}))
	if err != nil {
		return err
	}
	if n == 0 {
		return concurrentModification(m.Name, key, "association was obsoleted concurrently")
	}
	return nil
}

// insertMember writes a new member row owned by ownerKey, effective at seq,
// followed by its owned children.
func (e *Engine) insertMember(o *operation, ref mapping.CollectionRef, ownerKey uuid.UUID, seq int64, item any) error {
	m := ref.Member
	key := e.keys.NewKey()
	fkProp, ok := m.PropertyFor(ref.FK)
	if !ok {
		return fmt.Errorf("%s: foreign key column %s is not mapped", m.Name, ref.FK)
	}

	set := map[string]any{"Key": key, fkProp: ownerKey}
	switch ref.Kind {
	case mapping.KindVersioned:
		set["EffectiveVersionSequence"] = seq
		set["ObsoleteVersionSequence"] = nil
	case mapping.KindSimple:
		set["CreatedByKey"] = o.principal.Key
		set["CreationTime"] = o.now
		set["ObsoletedByKey"] = nil
		set["ObsoletionTime"] = nil
	}
	for prop, value := range set {
		if err := e.mapper.Set(m.Name, item, prop, value); err != nil {
			return err
		}
	}

	row, err := e.mapper.MapToStorage(m.Name, item)
	if err != nil {
		return err
	}
	if err := o.runner().Insert(o.ctx, m.Table, row); err != nil {
		return err
	}

	owned, err := e.ownedCollections(m.Name)
	if err != nil {
		return err
	}
	for _, child := range owned {
		children, err := e.mapper.Collection(m.Name, item, child.Name)
		if err != nil {
			return err
		}
		for i := 0; i < children.Len(); i++ {
			if err := e.insertMember(o, child, key, seq, children.Index(i).Addr().Interface()); err != nil {
				return err
			}
		}
	}
	return nil
}

// signatures computes the content signature of each member.
func (e *Engine) signatures(m *mapping.TypeMap, fk string, items []any) ([]string, error) {
	out := make([]string, len(items))
	for i, it := range items {
		sig, err := e.signature(m, fk, it)
		if err != nil {
			return nil, err
		}
		out[i] = sig
	}
	return out, nil
}

// signature renders the content columns of a member (NFC-normalised by the
// mapper) and the sorted signatures of its owned children. Two members
// with the same signature are interchangeable.
func (e *Engine) signature(m *mapping.TypeMap, fk string, item any) (string, error) {
	row, err := e.mapper.MapToStorage(m.Name, item)
	if err != nil {
		return "", err
	}
	var parts []string
	for _, p := range m.Properties {
		if nonContent[p.Name] || p.Column == fk {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%#v", p.Column, row[p.Column]))
	}

	owned, err := e.ownedCollections(m.Name)
	if err != nil {
		return "", err
	}
	for _, child := range owned {
		slice, err := e.mapper.Collection(m.Name, item, child.Name)
		if err != nil {
			return "", err
		}
		children := make([]any, slice.Len())
		for i := range children {
			children[i] = slice.Index(i).Addr().Interface()
		}
		sigs, err := e.signatures(child.Member, child.FK, children)
		if err != nil {
			return "", err
		}
		sort.Strings(sigs)
		parts = append(parts, fmt.Sprintf("%s=[%s]", child.Name, strings.Join(sigs, "\x1e")))
	}
	return strings.Join(parts, "\x1f"), nil
}

func memberKey(item any) uuid.UUID {
	v := reflect.ValueOf(item).Elem().FieldByName("Key")
	if !v.IsValid() {
		return uuid.Nil
	}
	k, _ := v.Interface().(uuid.UUID)
	return k
}
