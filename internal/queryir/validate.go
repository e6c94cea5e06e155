package queryir

import (
	"fmt"
)

// ValidationResult contains the structural problems found in a query or
// statement. Valid is true when Problems is empty.
type ValidationResult struct {
	Valid    bool
	Problems []string
}

// Validate checks a Query or Statement for structural problems:
//  1. every table has a name and a unique alias within its scope
//  2. every column references an alias in scope (including enclosing
//     selects for Exists correlation)
//  3. comparison values are non-nil storage scalars
//  4. operators are known, joins have conditions, paging is non-negative
//  5. updates carry a filter
//
// Validate is a pure function with no side effects.
func Validate(node any) ValidationResult {
	v := &validator{problems: []string{}}
	switch n := node.(type) {
	case Select:
		v.validateSelect(n, nil)
	case *Select:
		v.validateSelect(*n, nil)
	case Count:
		v.validateSelect(n.Select, nil)
	case *Count:
		v.validateSelect(n.Select, nil)
	case Insert:
		v.validateInsert(n)
	case *Insert:
		v.validateInsert(*n)
	case Update:
		v.validateUpdate(n)
	case *Update:
		v.validateUpdate(*n)
	case nil:
		v.addProblem("nil query")
	default:
		v.addProblem("unknown node type: %T", node)
	}
	return ValidationResult{
		Valid:    len(v.problems) == 0,
		Problems: v.problems,
	}
}

type validator struct {
	problems []string
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

// scope is the chain of aliases visible at a point in the query.
type scope struct {
	aliases map[string]bool
	outer   *scope
}

func (s *scope) has(alias string) bool {
	for cur := s; cur != nil; cur = cur.outer {
		if cur.aliases[alias] {
			return true
		}
	}
	return false
}

func (v *validator) declare(s *scope, t Table) {
	if t.Name == "" {
		v.addProblem("table with empty name")
	}
	if t.Alias == "" {
		v.addProblem("table %q has no alias", t.Name)
		return
	}
	if s.aliases[t.Alias] {
		v.addProblem("duplicate alias %q", t.Alias)
	}
	s.aliases[t.Alias] = true
}

func (v *validator) validateSelect(sel Select, outer *scope) {
	s := &scope{aliases: map[string]bool{}, outer: outer}
	v.declare(s, sel.From)
	for _, j := range sel.Joins {
		v.declare(s, j.Table)
		if j.On == nil {
			v.addProblem("join of %q has no condition", j.Table.Name)
			continue
		}
		v.validatePredicate(j.On, s)
	}
	for _, c := range sel.Columns {
		v.validateColumn(c, s)
	}
	if sel.Filter != nil {
		v.validatePredicate(sel.Filter, s)
	}
	for _, o := range sel.OrderBy {
		v.validateColumn(o.Column, s)
	}
	if sel.Offset < 0 {
		v.addProblem("negative offset %d", sel.Offset)
	}
	if sel.Limit < 0 {
		v.addProblem("negative limit %d", sel.Limit)
	}
}

func (v *validator) validateColumn(c Column, s *scope) {
	if c.Name == "" {
		v.addProblem("column with empty name")
	}
	if s == nil {
		if c.Table != "" {
			v.addProblem("column %s.%s is qualified in a single-table statement", c.Table, c.Name)
		}
		return
	}
	if !s.has(c.Table) {
		v.addProblem("column %s.%s references unknown alias %q", c.Table, c.Name, c.Table)
	}
}

func (v *validator) validateValue(c Column, val any) {
	switch val.(type) {
	case string, int64, float64, bool, []byte:
	case nil:
		v.addProblem("column %s compared to nil (use IsNull)", c.Name)
	default:
		v.addProblem("column %s compared to unsupported value type %T", c.Name, val)
	}
}

// validatePredicate walks p. A nil scope means single-table statement.
func (v *validator) validatePredicate(p Predicate, s *scope) {
	switch pred := p.(type) {
	case Compare:
		v.validateCompare(pred, s)
	case *Compare:
		v.validateCompare(*pred, s)
	case CompareColumns:
		v.validateCompareColumns(pred, s)
	case *CompareColumns:
		v.validateCompareColumns(*pred, s)
	case In:
		v.validateIn(pred, s)
	case *In:
		v.validateIn(*pred, s)
	case IsNull:
		v.validateColumn(pred.Column, s)
	case *IsNull:
		v.validateColumn(pred.Column, s)
	case And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub, s)
		}
	case *And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub, s)
		}
	case Or:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub, s)
		}
	case *Or:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub, s)
		}
	case Not:
		v.validatePredicate(pred.Predicate, s)
	case *Not:
		v.validatePredicate(pred.Predicate, s)
	case Exists:
		v.validateExists(pred, s)
	case *Exists:
		v.validateExists(*pred, s)
	case nil:
		v.addProblem("nil predicate")
	default:
		v.addProblem("unknown predicate type: %T", p)
	}
}

func (v *validator) validateCompare(c Compare, s *scope) {
	v.validateColumn(c.Column, s)
	if !c.Op.Valid() {
		v.addProblem("unknown operator %q", c.Op)
	}
	v.validateValue(c.Column, c.Value)
}

func (v *validator) validateCompareColumns(c CompareColumns, s *scope) {
	v.validateColumn(c.Left, s)
	v.validateColumn(c.Right, s)
	if !c.Op.Valid() {
		v.addProblem("unknown operator %q", c.Op)
	}
}

func (v *validator) validateIn(in In, s *scope) {
	v.validateColumn(in.Column, s)
	for _, val := range in.Values {
		v.validateValue(in.Column, val)
	}
}

func (v *validator) validateExists(e Exists, s *scope) {
	if s == nil {
		v.addProblem("EXISTS is not allowed in a single-table statement")
		return
	}
	v.validateSelect(e.Select, s)
}

func (v *validator) validateInsert(ins Insert) {
	if ins.Table == "" {
		v.addProblem("insert with empty table")
	}
	if len(ins.Values) == 0 {
		v.addProblem("insert into %q has no values", ins.Table)
	}
}

func (v *validator) validateUpdate(upd Update) {
	if upd.Table == "" {
		v.addProblem("update with empty table")
	}
	if len(upd.Set) == 0 {
		v.addProblem("update of %q sets no columns", upd.Table)
	}
	if upd.Filter == nil {
		v.addProblem("update of %q has no filter", upd.Table)
		return
	}
	v.validatePredicate(upd.Filter, nil)
}
