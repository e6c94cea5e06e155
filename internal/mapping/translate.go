package mapping

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/roach88/vstore/internal/filter"
	"github.com/roach88/vstore/internal/queryir"
)

// Select builds the base read of typeName: its root table joined with
// every sub-table of the chain, selecting all mapped columns, ordered by
// the root's ordering property and then its Key.
func (m *Mapper) Select(typeName string) (queryir.Select, error) {
	chain, err := m.table.Chain(typeName)
	if err != nil {
		return queryir.Select{}, err
	}
	root := chain[0]
	sel := queryir.Select{From: queryir.Table{Name: root.Table, Alias: root.Alias}}

	versionCol, _ := root.Column("VersionKey")
	for i, tm := range chain {
		if i > 0 {
			sel.Joins = append(sel.Joins, queryir.Join{
				Table: queryir.Table{Name: tm.Table, Alias: tm.Alias},
				On: queryir.CompareColumns{
					Left:  queryir.Col(tm.Alias, tm.Link),
					Op:    queryir.OpEq,
					Right: queryir.Col(root.Alias, versionCol),
				},
			})
		}
		for _, p := range tm.Properties {
			sel.Columns = append(sel.Columns, queryir.Col(tm.Alias, p.Column))
		}
	}

	if root.OrderBy != "" {
		col, _ := root.Column(root.OrderBy)
		sel.OrderBy = append(sel.OrderBy, queryir.Order{Column: queryir.Col(root.Alias, col)})
	}
	keyCol, _ := root.Column("Key")
	if root.OrderBy != "Key" {
		sel.OrderBy = append(sel.OrderBy, queryir.Order{Column: queryir.Col(root.Alias, keyCol)})
	}
	return sel, nil
}

// ColumnRef resolves a property of typeName to an aliased column as used
// by Select(typeName).
func (m *Mapper) ColumnRef(typeName, property string) (queryir.Column, error) {
	owner, col, err := m.Column(typeName, property)
	if err != nil {
		return queryir.Column{}, err
	}
	return queryir.Col(owner.Alias, col), nil
}

// TranslatePredicate converts a model predicate over typeName into a
// storage predicate over the aliases of Select(typeName).
func (m *Mapper) TranslatePredicate(typeName string, expr filter.Expr) (queryir.Predicate, error) {
	chain, err := m.table.Chain(typeName)
	if err != nil {
		return nil, err
	}
	tc := &translation{m: m, typeName: typeName, aliases: map[string]string{}}
	for _, tm := range chain {
		tc.aliases[tm.Name] = tm.Alias
	}
	return tc.translate(expr)
}

// translation is the context of one nesting level: the type predicates
// refer to, the alias of each table in its chain, and the Any depth.
type translation struct {
	m        *Mapper
	typeName string
	aliases  map[string]string
	depth    int
}

func (tc *translation) translate(expr filter.Expr) (queryir.Predicate, error) {
	switch e := expr.(type) {
	case filter.Compare:
		return tc.compare(e)
	case *filter.Compare:
		return tc.compare(*e)
	case filter.In:
		return tc.in(e)
	case *filter.In:
		return tc.in(*e)
	case filter.IsNull:
		return tc.isNull(e)
	case *filter.IsNull:
		return tc.isNull(*e)
	case filter.And:
		return tc.junction(e.Exprs, true)
	case *filter.And:
		return tc.junction(e.Exprs, true)
	case filter.Or:
		return tc.junction(e.Exprs, false)
	case *filter.Or:
		return tc.junction(e.Exprs, false)
	case filter.Not:
		return tc.not(e)
	case *filter.Not:
		return tc.not(*e)
	case filter.Any:
		return tc.any(e)
	case *filter.Any:
		return tc.any(*e)
	case nil:
		return nil, mappingErr(tc.typeName, "", "nil predicate")
	default:
		return nil, mappingErr(tc.typeName, "", "unsupported predicate %T", expr)
	}
}

// column resolves a property in the current context. Dotted paths would
// navigate into lazily loaded relations and are rejected; use Any.
func (tc *translation) column(property string) (queryir.Column, reflect.Type, error) {
	if strings.Contains(property, ".") {
		return queryir.Column{}, nil, mappingErr(tc.typeName, property, "navigation through a relation is not supported; use Any over the collection")
	}
	owner, col, err := tc.m.Column(tc.typeName, property)
	if err != nil {
		return queryir.Column{}, nil, err
	}
	var ft reflect.Type
	if bound, ok := tc.m.Bound(tc.typeName); ok {
		if sf, ok := bound.FieldByName(property); ok {
			ft = sf.Type
		}
	}
	return queryir.Col(tc.aliases[owner.Name], col), ft, nil
}

// value converts a predicate literal to its storage form, checking it
// against the property's Go type when the type is bound.
func (tc *translation) value(property string, ft reflect.Type, v any) (any, error) {
	if v == nil {
		return nil, mappingErr(tc.typeName, property, "nil comparison value; use Null")
	}
	if ft != nil {
		want := ft
		for want.Kind() == reflect.Pointer {
			want = want.Elem()
		}
		got := reflect.TypeOf(v)
		for got.Kind() == reflect.Pointer {
			got = got.Elem()
		}
		if got != want && !(got.Kind() == reflect.String && want.Kind() == reflect.String) && !numeric(got, want) {
			return nil, mappingErr(tc.typeName, property, "value of type %s does not match %s", got, want)
		}
	}
	sv, err := ToStorage(v)
	if err != nil {
		return nil, mappingErr(tc.typeName, property, "%v", err)
	}
	if sv == nil {
		return nil, mappingErr(tc.typeName, property, "value converts to NULL; use Null")
	}
	return sv, nil
}

func numeric(a, b reflect.Type) bool {
	return isNumber(a.Kind()) && isNumber(b.Kind())
}

func isNumber(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func (tc *translation) compare(c filter.Compare) (queryir.Predicate, error) {
	col, ft, err := tc.column(c.Property)
	if err != nil {
		return nil, err
	}
	op := queryir.Op(c.Op)
	if !op.Valid() {
		return nil, mappingErr(tc.typeName, c.Property, "unknown operator %q", c.Op)
	}
	if ft != nil && op != queryir.OpEq && op != queryir.OpNe && op != queryir.OpLike {
		base := ft
		for base.Kind() == reflect.Pointer {
			base = base.Elem()
		}
		if base == decimalType || base == uuidType {
			return nil, mappingErr(tc.typeName, c.Property, "ordering comparison is not supported on %s", base)
		}
	}
	if op == queryir.OpLike {
		if _, ok := c.Value.(string); !ok {
			return nil, mappingErr(tc.typeName, c.Property, "LIKE requires a string pattern, got %T", c.Value)
		}
	}
	v, err := tc.value(c.Property, ft, c.Value)
	if err != nil {
		return nil, err
	}
	return queryir.Compare{Column: col, Op: op, Value: v}, nil
}

func (tc *translation) in(in filter.In) (queryir.Predicate, error) {
	col, ft, err := tc.column(in.Property)
	if err != nil {
		return nil, err
	}
	values := make([]any, 0, len(in.Values))
	for _, raw := range in.Values {
		v, err := tc.value(in.Property, ft, raw)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return queryir.In{Column: col, Values: values}, nil
}

func (tc *translation) isNull(n filter.IsNull) (queryir.Predicate, error) {
	col, _, err := tc.column(n.Property)
	if err != nil {
		return nil, err
	}
	return queryir.IsNull{Column: col, Negate: n.Negate}, nil
}

func (tc *translation) junction(exprs []filter.Expr, and bool) (queryir.Predicate, error) {
	preds := make([]queryir.Predicate, 0, len(exprs))
	for _, e := range exprs {
		p, err := tc.translate(e)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	if and {
		return queryir.And{Predicates: preds}, nil
	}
	return queryir.Or{Predicates: preds}, nil
}

func (tc *translation) not(n filter.Not) (queryir.Predicate, error) {
	p, err := tc.translate(n.Expr)
	if err != nil {
		return nil, err
	}
	return queryir.Not{Predicate: p}, nil
}

// any translates an existential test over a collection into a correlated
// EXISTS. Versioned members must be visible for the owner's version
// sequence; simple members must not be obsolete.
func (tc *translation) any(a filter.Any) (queryir.Predicate, error) {
	coll, owner, err := tc.collection(a.Collection)
	if err != nil {
		return nil, err
	}
	member, ok := tc.m.table.Type(coll.Type)
	if !ok {
		return nil, mappingErr(tc.typeName, a.Collection, "unknown member type %q", coll.Type)
	}

	depth := tc.depth + 1
	alias := member.Alias + strconv.Itoa(depth)
	ownerAlias := tc.aliases[owner.Name]
	ownerKey, _ := owner.Column("Key")

	preds := []queryir.Predicate{
		queryir.CompareColumns{Left: queryir.Col(alias, coll.FK), Op: queryir.OpEq, Right: queryir.Col(ownerAlias, ownerKey)},
	}
	switch coll.Kind {
	case KindVersioned:
		seqCol, ok := owner.Column("VersionSequence")
		if !ok {
			return nil, mappingErr(tc.typeName, a.Collection, "versioned collection on unversioned owner")
		}
		eff, _ := member.Column("EffectiveVersionSequence")
		obs, _ := member.Column("ObsoleteVersionSequence")
		preds = append(preds,
			queryir.CompareColumns{Left: queryir.Col(alias, eff), Op: queryir.OpLe, Right: queryir.Col(ownerAlias, seqCol)},
			queryir.Or{Predicates: []queryir.Predicate{
				queryir.IsNull{Column: queryir.Col(alias, obs)},
				queryir.CompareColumns{Left: queryir.Col(alias, obs), Op: queryir.OpGt, Right: queryir.Col(ownerAlias, seqCol)},
			}},
		)
	case KindSimple:
		obs, _ := member.Column("ObsoletionTime")
		preds = append(preds, queryir.IsNull{Column: queryir.Col(alias, obs)})
	}

	if a.Where != nil {
		inner := &translation{
			m:        tc.m,
			typeName: member.Name,
			aliases:  map[string]string{member.Name: alias},
			depth:    depth,
		}
		p, err := inner.translate(a.Where)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}

	return queryir.Exists{Select: queryir.Select{
		From:   queryir.Table{Name: member.Table, Alias: alias},
		Filter: queryir.Conj(preds...),
	}}, nil
}

// collection finds a declared collection on the current type's chain.
func (tc *translation) collection(name string) (Collection, *TypeMap, error) {
	chain, err := tc.m.table.Chain(tc.typeName)
	if err != nil {
		return Collection{}, nil, err
	}
	for i := len(chain) - 1; i >= 0; i-- {
		for _, c := range chain[i].Collections {
			if c.Name == name {
				return c, chain[i], nil
			}
		}
	}
	return Collection{}, nil, mappingErr(tc.typeName, name, "collection is not mapped")
}
