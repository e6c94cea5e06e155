package querysql

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/vstore/internal/queryir"
)

// SQLCompiler compiles queryir nodes to parameterized SQL.
//
// CRITICAL: every row query carries an ORDER BY so results are deterministic.
// CRITICAL: values are parameterized, never interpolated.
type SQLCompiler struct {
	Dialect Dialect
}

// NewSQLCompiler creates a compiler for the given dialect.
func NewSQLCompiler(d Dialect) *SQLCompiler {
	return &SQLCompiler{Dialect: d}
}

// Compile converts a Select or Count to parameterized SQL.
// Returns (sql, params, error).
func (c *SQLCompiler) Compile(q queryir.Query) (string, []any, error) {
	if q == nil {
		return "", nil, fmt.Errorf("cannot compile nil query")
	}
	if res := queryir.Validate(q); !res.Valid {
		return "", nil, fmt.Errorf("invalid query: %s", strings.Join(res.Problems, "; "))
	}

	var (
		sql    string
		params []any
		err    error
	)
	switch query := q.(type) {
	case queryir.Select:
		sql, params, err = c.compileSelect(query)
	case *queryir.Select:
		sql, params, err = c.compileSelect(*query)
	case queryir.Count:
		sql, params, err = c.compileCount(query.Select)
	case *queryir.Count:
		sql, params, err = c.compileCount(query.Select)
	default:
		return "", nil, fmt.Errorf("unsupported query type: %T", q)
	}
	if err != nil {
		return "", nil, err
	}
	return c.Dialect.Rebind(sql), params, nil
}

// CompileStatement converts an Insert or Update to parameterized SQL.
func (c *SQLCompiler) CompileStatement(s queryir.Statement) (string, []any, error) {
	if s == nil {
		return "", nil, fmt.Errorf("cannot compile nil statement")
	}
	if res := queryir.Validate(s); !res.Valid {
		return "", nil, fmt.Errorf("invalid statement: %s", strings.Join(res.Problems, "; "))
	}

	var (
		sql    string
		params []any
		err    error
	)
	switch stmt := s.(type) {
	case queryir.Insert:
		sql, params = c.compileInsert(stmt)
	case *queryir.Insert:
		sql, params = c.compileInsert(*stmt)
	case queryir.Update:
		sql, params, err = c.compileUpdate(stmt)
	case *queryir.Update:
		sql, params, err = c.compileUpdate(*stmt)
	default:
		return "", nil, fmt.Errorf("unsupported statement type: %T", s)
	}
	if err != nil {
		return "", nil, err
	}
	return c.Dialect.Rebind(sql), params, nil
}

// compileSelect emits SELECT … ORDER BY … [LIMIT ?] [OFFSET ?].
// MANDATORY: OrderBy must be non-empty.
func (c *SQLCompiler) compileSelect(q queryir.Select) (string, []any, error) {
	if len(q.OrderBy) == 0 {
		return "", nil, fmt.Errorf("select from %s: ORDER BY is required", q.From.Name)
	}

	body, params, err := c.compileBody(q)
	if err != nil {
		return "", nil, err
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(c.compileColumns(q))
	b.WriteString(body)
	b.WriteString(" ORDER BY ")
	b.WriteString(c.compileOrder(q.OrderBy))

	if q.Limit > 0 {
		b.WriteString(" LIMIT ?")
		params = append(params, int64(q.Limit))
	}
	if q.Offset > 0 {
		if q.Limit == 0 && c.Dialect == SQLite {
			// sqlite only accepts OFFSET after a LIMIT
			b.WriteString(" LIMIT -1")
		}
		b.WriteString(" OFFSET ?")
		params = append(params, int64(q.Offset))
	}
	return b.String(), params, nil
}

func (c *SQLCompiler) compileCount(q queryir.Select) (string, []any, error) {
	body, params, err := c.compileBody(q)
	if err != nil {
		return "", nil, err
	}
	return "SELECT COUNT(*)" + body, params, nil
}

// compileBody emits " FROM … [INNER JOIN …] [WHERE …]".
func (c *SQLCompiler) compileBody(q queryir.Select) (string, []any, error) {
	var b strings.Builder
	var params []any

	b.WriteString(" FROM ")
	b.WriteString(table(q.From))
	for _, j := range q.Joins {
		on, onParams, err := c.compilePredicate(j.On)
		if err != nil {
			return "", nil, fmt.Errorf("compile join %s: %w", j.Table.Name, err)
		}
		b.WriteString(" INNER JOIN ")
		b.WriteString(table(j.Table))
		b.WriteString(" ON ")
		b.WriteString(on)
		params = append(params, onParams...)
	}
	if q.Filter != nil {
		where, whereParams, err := c.compilePredicate(q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		b.WriteString(" WHERE ")
		b.WriteString(where)
		params = append(params, whereParams...)
	}
	return b.String(), params, nil
}

func (c *SQLCompiler) compileColumns(q queryir.Select) string {
	if len(q.Columns) == 0 {
		return q.From.Alias + ".*"
	}
	parts := make([]string, len(q.Columns))
	for i, col := range q.Columns {
		parts[i] = column(col)
	}
	return strings.Join(parts, ", ")
}

func (c *SQLCompiler) compileOrder(order []queryir.Order) string {
	parts := make([]string, len(order))
	for i, o := range order {
		dir := " ASC"
		if o.Desc {
			dir = " DESC"
		}
		parts[i] = column(o.Column) + c.Dialect.orderSuffix() + dir
	}
	return strings.Join(parts, ", ")
}

// compilePredicate compiles a predicate to a WHERE fragment.
// CRITICAL: values NEVER interpolated - always ? placeholders.
func (c *SQLCompiler) compilePredicate(p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case queryir.Compare:
		return c.compileCompare(pred)
	case *queryir.Compare:
		return c.compileCompare(*pred)
	case queryir.CompareColumns:
		return fmt.Sprintf("%s %s %s", column(pred.Left), pred.Op, column(pred.Right)), nil, nil
	case *queryir.CompareColumns:
		return fmt.Sprintf("%s %s %s", column(pred.Left), pred.Op, column(pred.Right)), nil, nil
	case queryir.In:
		return c.compileIn(pred)
	case *queryir.In:
		return c.compileIn(*pred)
	case queryir.IsNull:
		return compileIsNull(pred), nil, nil
	case *queryir.IsNull:
		return compileIsNull(*pred), nil, nil
	case queryir.And:
		return c.compileJunction(pred.Predicates, " AND ", "1 = 1")
	case *queryir.And:
		return c.compileJunction(pred.Predicates, " AND ", "1 = 1")
	case queryir.Or:
		return c.compileJunction(pred.Predicates, " OR ", "1 = 0")
	case *queryir.Or:
		return c.compileJunction(pred.Predicates, " OR ", "1 = 0")
	case queryir.Not:
		return c.compileNot(pred)
	case *queryir.Not:
		return c.compileNot(*pred)
	case queryir.Exists:
		return c.compileExists(pred)
	case *queryir.Exists:
		return c.compileExists(*pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func (c *SQLCompiler) compileCompare(cmp queryir.Compare) (string, []any, error) {
	if cmp.Value == nil {
		return "", nil, fmt.Errorf("column %s compared to nil", cmp.Column.Name)
	}
	return fmt.Sprintf("%s %s ?", column(cmp.Column), cmp.Op), []any{cmp.Value}, nil
}

func (c *SQLCompiler) compileIn(in queryir.In) (string, []any, error) {
	if len(in.Values) == 0 {
		return "1 = 0", nil, nil
	}
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(in.Values)), ", ")
	params := make([]any, len(in.Values))
	copy(params, in.Values)
	return fmt.Sprintf("%s IN (%s)", column(in.Column), marks), params, nil
}

func compileIsNull(n queryir.IsNull) string {
	if n.Negate {
		return column(n.Column) + " IS NOT NULL"
	}
	return column(n.Column) + " IS NULL"
}

// compileJunction joins sub-predicates, parenthesizing nested junctions.
func (c *SQLCompiler) compileJunction(preds []queryir.Predicate, sep, empty string) (string, []any, error) {
	if len(preds) == 0 {
		return empty, nil, nil
	}
	parts := make([]string, 0, len(preds))
	var params []any
	for _, p := range preds {
		sql, ps, err := c.compilePredicate(p)
		if err != nil {
			return "", nil, err
		}
		if isJunction(p) && len(preds) > 1 {
			sql = "(" + sql + ")"
		}
		parts = append(parts, sql)
		params = append(params, ps...)
	}
	return strings.Join(parts, sep), params, nil
}

func (c *SQLCompiler) compileNot(n queryir.Not) (string, []any, error) {
	sql, params, err := c.compilePredicate(n.Predicate)
	if err != nil {
		return "", nil, err
	}
	return "NOT (" + sql + ")", params, nil
}

func (c *SQLCompiler) compileExists(e queryir.Exists) (string, []any, error) {
	body, params, err := c.compileBody(e.Select)
	if err != nil {
		return "", nil, fmt.Errorf("compile exists: %w", err)
	}
	return "EXISTS (SELECT 1" + body + ")", params, nil
}

// compileInsert emits INSERT with columns sorted for deterministic output.
func (c *SQLCompiler) compileInsert(ins queryir.Insert) (string, []any) {
	cols := sortedKeys(ins.Values)
	params := make([]any, len(cols))
	for i, col := range cols {
		params[i] = ins.Values[col]
	}
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", ins.Table, strings.Join(cols, ", "), marks)
	if ins.Returning != "" {
		sql += " RETURNING " + ins.Returning
	}
	return sql, params
}

func (c *SQLCompiler) compileUpdate(upd queryir.Update) (string, []any, error) {
	cols := sortedKeys(upd.Set)
	sets := make([]string, len(cols))
	params := make([]any, 0, len(cols)+2)
	for i, col := range cols {
		sets[i] = col + " = ?"
		params = append(params, upd.Set[col])
	}
	where, whereParams, err := c.compilePredicate(upd.Filter)
	if err != nil {
		return "", nil, fmt.Errorf("compile update filter: %w", err)
	}
	params = append(params, whereParams...)
	return fmt.Sprintf("UPDATE %s SET %s WHERE %s", upd.Table, strings.Join(sets, ", "), where), params, nil
}

func isJunction(p queryir.Predicate) bool {
	switch p.(type) {
	case queryir.And, *queryir.And, queryir.Or, *queryir.Or:
		return true
	}
	return false
}

func table(t queryir.Table) string {
	return t.Name + " AS " + t.Alias
}

func column(c queryir.Column) string {
	if c.Table == "" {
		return c.Name
	}
	return c.Table + "." + c.Name
}

func sortedKeys(row queryir.Row) []string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
