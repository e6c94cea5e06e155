package persistence

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/vstore/internal/mapping"
	"github.com/roach88/vstore/internal/model"
	"github.com/roach88/vstore/internal/queryir"
	"github.com/roach88/vstore/internal/store"
)

// History returns every stored version of key in sequence order. Versions
// are fast-loaded; use Get with a version key for a full read.
func (e *Engine) History(ctx context.Context, typeName string, key uuid.UUID) ([]any, error) {
	_, root, err := e.typeMaps(typeName)
	if err != nil {
		return nil, err
	}
	if !root.Versioned() {
		return nil, formalConstraint(typeName, key, "type is not versioned")
	}
	rd, _ := e.reader(ctx)
	rows, err := e.versionRows(ctx, rd, typeName, key)
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, len(rows))
	for _, row := range rows {
		obj, err := e.hydrate(ctx, rd, typeName, root, row, true)
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
	return out, nil
}

func (e *Engine) versionRows(ctx context.Context, rd *store.Runner, typeName string, key uuid.UUID) ([]store.Row, error) {
	sel, err := e.mapper.Select(typeName)
	if err != nil {
		return nil, err
	}
	pred, err := e.propertyEquals(typeName, "Key", key)
	if err != nil {
		return nil, err
	}
	seq, err := e.mapper.ColumnRef(typeName, "VersionSequence")
	if err != nil {
		return nil, err
	}
	sel.Filter = pred
	sel.OrderBy = []queryir.Order{{Column: seq}}
	return rd.Select(ctx, sel)
}

// ChainReport is the result of VerifyChain.
type ChainReport struct {
	Type     string    `json:"type"`
	Key      uuid.UUID `json:"key"`
	Versions int       `json:"versions"`
	Head     uuid.UUID `json:"head,omitempty"`
	Problems []string  `json:"problems,omitempty"`
}

// OK reports whether no problem was found.
func (r *ChainReport) OK() bool { return len(r.Problems) == 0 }

func (r *ChainReport) problem(format string, args ...any) {
	r.Problems = append(r.Problems, fmt.Sprintf(format, args...))
}

// VerifyChain checks the stored version chain of key: each version
// replaces the one before it, sequences increase, only the last version
// is current, and every association window of the root is well formed.
func (e *Engine) VerifyChain(ctx context.Context, typeName string, key uuid.UUID) (*ChainReport, error) {
	versions, err := e.History(ctx, typeName, key)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, notFound(typeName, key)
	}

	report := &ChainReport{Type: typeName, Key: key, Versions: len(versions)}
	var prev *model.Versioned
	for i, obj := range versions {
		v := obj.(model.VersionedObject).Version()
		switch {
		case prev == nil && v.PreviousVersionKey != nil:
			report.problem("first version %s replaces %s", v.VersionKey, *v.PreviousVersionKey)
		case prev != nil && (v.PreviousVersionKey == nil || *v.PreviousVersionKey != prev.VersionKey):
			report.problem("version %s does not replace %s", v.VersionKey, prev.VersionKey)
		}
		if prev != nil && v.VersionSequence <= prev.VersionSequence {
			report.problem("version %s has sequence %d after %d", v.VersionKey, v.VersionSequence, prev.VersionSequence)
		}
		if v.IsHead() {
			if report.Head != uuid.Nil {
				report.problem("versions %s and %s are both current", report.Head, v.VersionKey)
			}
			report.Head = v.VersionKey
			if i != len(versions)-1 {
				report.problem("current version %s is not the latest", v.VersionKey)
			}
		}
		prev = v
	}

	rd, _ := e.reader(ctx)
	refs, err := e.mapper.Collections(typeName)
	if err != nil {
		return nil, err
	}
	for _, ref := range refs {
		if ref.Kind != mapping.KindVersioned {
			continue
		}
		if err := e.verifyWindows(ctx, rd, ref, key, report); err != nil {
			return nil, err
		}
	}
	return report, nil
}

// verifyWindows reports member rows whose window closes at or before it
// opens.
func (e *Engine) verifyWindows(ctx context.Context, rd *store.Runner, ref mapping.CollectionRef, key uuid.UUID, report *ChainReport) error {
	m := ref.Member
	keyCol, _ := m.Column("Key")
	eff, _ := m.Column("EffectiveVersionSequence")
	obslt, _ := m.Column("ObsoleteVersionSequence")
	owner, err := mapping.ToStorage(key)
	if err != nil {
		return err
	}
	rows, err := rd.Select(ctx, queryir.Select{
		From:    queryir.Table{Name: m.Table, Alias: m.Alias},
		Columns: []queryir.Column{queryir.Col(m.Alias, keyCol)},
		Filter: queryir.Conj(
			queryir.Compare{Column: queryir.Col(m.Alias, ref.FK), Op: queryir.OpEq, Value: owner},
			queryir.IsNull{Column: queryir.Col(m.Alias, obslt), Negate: true},
			queryir.CompareColumns{Left: queryir.Col(m.Alias, obslt), Op: queryir.OpLe, Right: queryir.Col(m.Alias, eff)},
		),
		OrderBy: []queryir.Order{{Column: queryir.Col(m.Alias, keyCol)}},
	})
	if err != nil {
		return err
	}
	for _, row := range rows {
		report.problem("%s member %v has an empty window", ref.Name, row[keyCol])
	}
	return nil
}

// GetAny reads an object of a classified family and returns it as its most
// specific registered type.
func (e *Engine) GetAny(ctx context.Context, family string, key uuid.UUID, version *uuid.UUID, principal model.Principal, fastLoad bool) (any, error) {
	_, root, err := e.typeMaps(family)
	if err != nil {
		return nil, err
	}
	if !root.Versioned() {
		return e.Get(ctx, family, key, version, principal, fastLoad)
	}
	rd, _ := e.reader(ctx)
	vk := version
	if vk == nil {
		head, err := e.readHead(ctx, rd, root, key)
		if err != nil || head == nil {
			return nil, err
		}
		vk = &head.VersionKey
	}
	typeName, err := e.resolveType(ctx, rd, root.Name, *vk)
	if err != nil || typeName == "" {
		return nil, err
	}
	return e.Get(ctx, typeName, key, version, principal, fastLoad)
}
