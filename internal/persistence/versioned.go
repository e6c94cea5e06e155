package persistence

import (
	"context"
	"reflect"

	"github.com/google/uuid"

	"github.com/roach88/vstore/internal/mapping"
	"github.com/roach88/vstore/internal/model"
	"github.com/roach88/vstore/internal/queryir"
	"github.com/roach88/vstore/internal/store"
)

// insertVersioned writes the identity row, the first version and the
// object's collections.
func (e *Engine) insertVersioned(o *operation, root *mapping.TypeMap, obj any) error {
	v := obj.(model.VersionedObject).Version()

	if v.Key == uuid.Nil {
		v.Key = e.keys.NewKey()
	} else {
		found, err := exists(o.ctx, o.runner(), root.Identity.Table, root.Identity.Column, v.Key)
		if err != nil {
			return err
		}
		if found {
			return formalConstraint(o.typeName, v.Key, "key already exists")
		}
	}
	if err := e.registry.stamp(e.mapper, o.typeName, obj); err != nil {
		return err
	}
	v.VersionKey = e.keys.NewVersionKey()
	v.VersionSequence = 0
	v.PreviousVersionKey = nil
	v.CreatedByKey = o.principal.Key
	v.CreationTime = o.now
	v.ObsoletedByKey, v.ObsoletionTime = nil, nil

	if err := o.pre(Inserting, v.Key, obj); err != nil {
		return err
	}

	if err := o.runner().Insert(o.ctx, root.Identity.Table, store.Row{
		root.Identity.Column: v.Key.String(),
		"creation_utc":       mapping.FormatTime(o.now),
		"created_by":         o.principal.Key.String(),
	}); err != nil {
		return err
	}
	if err := e.writeVersion(o, obj); err != nil {
		return err
	}
	stats, err := e.reconcileAll(o, obj, v.Key, 0, v.VersionSequence, true)
	if err != nil {
		return err
	}
	v.SetLoaded(true)
	e.post(o, Inserted, v.Key, obj, stats)
	return nil
}

// updateVersioned retires the head and writes obj as the new head,
// reconciling collections against the window of the old head.
func (e *Engine) updateVersioned(o *operation, root *mapping.TypeMap, obj any) error {
	v := obj.(model.VersionedObject).Version()
	if v.Key == uuid.Nil {
		return formalConstraint(o.typeName, v.Key, "update requires a key")
	}
	head, err := e.checkedHead(o, root, v)
	if err != nil {
		return err
	}
	actual, err := e.resolveType(o.ctx, o.runner(), root.Name, head.VersionKey)
	if err != nil {
		return err
	}
	if actual != o.typeName {
		return formalConstraint(o.typeName, v.Key, "stored object is a %s", actual)
	}
	if err := e.registry.stamp(e.mapper, o.typeName, obj); err != nil {
		return err
	}
	if err := o.pre(Updating, v.Key, obj); err != nil {
		return err
	}
	e.invalidate(o, v.Key)

	if err := e.stampObsolete(o, root, "VersionKey", head.VersionKey, o.principal.Key, o.now); err != nil {
		return err
	}

	prev := head.VersionKey
	v.VersionKey = e.keys.NewVersionKey()
	v.VersionSequence = 0
	v.PreviousVersionKey = &prev
	v.CreatedByKey = o.principal.Key
	v.CreationTime = o.now
	v.ObsoletedByKey, v.ObsoletionTime = nil, nil

	if err := e.writeVersion(o, obj); err != nil {
		return err
	}
	stats, err := e.reconcileAll(o, obj, v.Key, head.VersionSequence, v.VersionSequence, false)
	if err != nil {
		return err
	}
	v.SetLoaded(true)
	e.post(o, Updated, v.Key, obj, stats)
	return nil
}

// obsoleteVersioned stamps the head obsolete and returns it fully loaded.
func (e *Engine) obsoleteVersioned(o *operation, root *mapping.TypeMap, obj any) (any, error) {
	v := obj.(model.VersionedObject).Version()
	if v.Key == uuid.Nil {
		return nil, formalConstraint(o.typeName, v.Key, "obsolete requires a key")
	}
	head, err := e.checkedHead(o, root, v)
	if err != nil {
		return nil, err
	}
	if err := o.pre(Obsoleting, v.Key, obj); err != nil {
		return nil, err
	}
	e.invalidate(o, v.Key)

	if err := e.stampObsolete(o, root, "VersionKey", head.VersionKey, o.principal.Key, o.now); err != nil {
		return nil, err
	}
	out, err := e.load(o.ctx, o.runner(), o.typeName, v.Key, &head.VersionKey, false)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, formalConstraint(o.typeName, v.Key, "stored object is not a %s", o.typeName)
	}
	e.post(o, Obsoleted, v.Key, out, nil)
	return out, nil
}

// checkedHead reads the head of v.Key and applies the not-found, read-only
// and optimistic version checks.
func (e *Engine) checkedHead(o *operation, root *mapping.TypeMap, v *model.Versioned) (*model.Versioned, error) {
	head, err := e.readHead(o.ctx, o.runner(), root, v.Key)
	if err != nil {
		return nil, err
	}
	if head == nil {
		return nil, notFound(o.typeName, v.Key)
	}
	if head.IsReadonly {
		return nil, newError(ErrCodeReadonly, o.typeName, v.Key, "head version %s is read-only", head.VersionKey)
	}
	if v.VersionKey != uuid.Nil && v.VersionKey != head.VersionKey {
		return nil, concurrentModification(o.typeName, v.Key,
			"version %s is not the head (head is %s)", v.VersionKey, head.VersionKey)
	}
	return head, nil
}

// readHead reads the version columns of the current head of key from the
// root table, or nil if there is none.
func (e *Engine) readHead(ctx context.Context, rd *store.Runner, root *mapping.TypeMap, key uuid.UUID) (*model.Versioned, error) {
	obj, err := e.load(ctx, rd, root.Name, key, nil, true)
	if err != nil || obj == nil {
		return nil, err
	}
	return obj.(model.VersionedObject).Version(), nil
}

// writeVersion inserts obj's rows for every level of its type chain. The
// root row's sequence is assigned by storage and copied back to obj.
func (e *Engine) writeVersion(o *operation, obj any) error {
	levels, err := e.mapper.ChainRows(o.typeName, obj)
	if err != nil {
		return err
	}
	v := obj.(model.VersionedObject).Version()

	rootLevel := levels[0]
	seqCol, _ := rootLevel.Type.Column("VersionSequence")
	delete(rootLevel.Row, seqCol)
	seq, err := o.runner().InsertReturning(o.ctx, rootLevel.Type.Table, rootLevel.Row, seqCol)
	if err != nil {
		return err
	}
	v.VersionSequence = seq

	for _, level := range levels[1:] {
		level.Row[level.Type.Link] = v.VersionKey.String()
		if err := o.runner().Insert(o.ctx, level.Type.Table, level.Row); err != nil {
			return err
		}
	}
	return nil
}

// resolveType returns the most specific registered type of a stored
// version: the class key selects a type in the family, then discriminator
// properties refine it.
func (e *Engine) resolveType(ctx context.Context, rd *store.Runner, family string, versionKey uuid.UUID) (string, error) {
	typeName := family
	if e.registry.Classified(family) {
		row, err := e.versionRow(ctx, rd, family, versionKey)
		if err != nil || row == nil {
			return "", err
		}
		_, col, err := e.mapper.Column(family, ClassProperty)
		if err != nil {
			return "", err
		}
		var class uuid.UUID
		if s, ok := row[col].(string); ok {
			class, _ = uuid.Parse(s)
		}
		if name, ok := e.registry.ByClass(family, class); ok {
			typeName = name
		}
	}

	for {
		prop, ok := e.registry.Discriminator(typeName)
		if !ok {
			return typeName, nil
		}
		row, err := e.versionRow(ctx, rd, typeName, versionKey)
		if err != nil {
			return "", err
		}
		if row == nil {
			return typeName, nil
		}
		_, col, err := e.mapper.Column(typeName, prop)
		if err != nil {
			return "", err
		}
		value, _ := row[col].(string)
		next, ok := e.registry.Refine(typeName, value)
		if !ok {
			return typeName, nil
		}
		typeName = next
	}
}

// versionRow reads the joined row of typeName for one version.
func (e *Engine) versionRow(ctx context.Context, rd *store.Runner, typeName string, versionKey uuid.UUID) (store.Row, error) {
	sel, err := e.mapper.Select(typeName)
	if err != nil {
		return nil, err
	}
	pred, err := e.propertyEquals(typeName, "VersionKey", versionKey)
	if err != nil {
		return nil, err
	}
	sel.Filter = pred
	return rd.SelectOne(ctx, sel)
}

// loadCollections fills every collection of obj with the members visible
// at seq.
func (e *Engine) loadCollections(ctx context.Context, rd *store.Runner, typeName string, obj any, key uuid.UUID, seq int64) error {
	refs, err := e.mapper.Collections(typeName)
	if err != nil {
		return err
	}
	for _, ref := range refs {
		items, err := e.loadMembers(ctx, rd, ref, key, seq)
		if err != nil {
			return err
		}
		if err := e.setCollection(typeName, obj, ref.Name, items); err != nil {
			return err
		}
	}
	return nil
}

// loadMembers reads the members of one collection owned by ownerKey:
// versioned members visible at seq, simple members not obsolete, owned
// members all. Owned collections of each member are loaded too.
func (e *Engine) loadMembers(ctx context.Context, rd *store.Runner, ref mapping.CollectionRef, ownerKey uuid.UUID, seq int64) ([]any, error) {
	m := ref.Member
	sel, err := e.mapper.Select(m.Name)
	if err != nil {
		return nil, err
	}
	owner, err := mapping.ToStorage(ownerKey)
	if err != nil {
		return nil, err
	}
	preds := []queryir.Predicate{queryir.Compare{Column: queryir.Col(m.Alias, ref.FK), Op: queryir.OpEq, Value: owner}}
	switch ref.Kind {
	case mapping.KindVersioned:
		preds = append(preds, visibleAt(m, seq))
	case mapping.KindSimple:
		col, _ := m.Column("ObsoletionTime")
		preds = append(preds, queryir.IsNull{Column: queryir.Col(m.Alias, col)})
	}
	sel.Filter = queryir.Conj(preds...)

	rows, err := rd.Select(ctx, sel)
	if err != nil {
		return nil, err
	}
	owned, err := e.ownedCollections(m.Name)
	if err != nil {
		return nil, err
	}

	items := make([]any, 0, len(rows))
	for _, row := range rows {
		item, err := e.mapper.NewInstance(m.Name)
		if err != nil {
			return nil, err
		}
		if err := e.mapper.MapToModel(m.Name, row, item); err != nil {
			return nil, err
		}
		if len(owned) > 0 {
			itemKey, err := e.mapper.Get(m.Name, item, "Key")
			if err != nil {
				return nil, err
			}
			for _, child := range owned {
				children, err := e.loadMembers(ctx, rd, child, itemKey.(uuid.UUID), seq)
				if err != nil {
					return nil, err
				}
				if err := e.setCollection(m.Name, item, child.Name, children); err != nil {
					return nil, err
				}
			}
		}
		items = append(items, item)
	}
	return items, nil
}

// ownedCollections lists the owned collections declared on typeName.
func (e *Engine) ownedCollections(typeName string) ([]mapping.CollectionRef, error) {
	refs, err := e.mapper.Collections(typeName)
	if err != nil {
		return nil, err
	}
	var out []mapping.CollectionRef
	for _, r := range refs {
		if r.Kind == mapping.KindOwned {
			out = append(out, r)
		}
	}
	return out, nil
}

// setCollection replaces a collection of obj with items (pointers to the
// member type).
func (e *Engine) setCollection(typeName string, obj any, name string, items []any) error {
	slice, err := e.mapper.Collection(typeName, obj, name)
	if err != nil {
		return err
	}
	out := reflect.MakeSlice(slice.Type(), 0, len(items))
	for _, it := range items {
		out = reflect.Append(out, reflect.ValueOf(it).Elem())
	}
	slice.Set(out)
	return nil
}

// visibleAt restricts a versioned member table to rows whose window
// contains seq: eff <= seq AND (obslt IS NULL OR obslt > seq).
func visibleAt(m *mapping.TypeMap, seq int64) queryir.Predicate {
	eff, _ := m.Column("EffectiveVersionSequence")
	obslt, _ := m.Column("ObsoleteVersionSequence")
	return queryir.And{Predicates: []queryir.Predicate{
		queryir.Compare{Column: queryir.Col(m.Alias, eff), Op: queryir.OpLe, Value: seq},
		queryir.Or{Predicates: []queryir.Predicate{
			queryir.IsNull{Column: queryir.Col(m.Alias, obslt)},
			queryir.Compare{Column: queryir.Col(m.Alias, obslt), Op: queryir.OpGt, Value: seq},
		}},
	}}
}
