package queryir

// Row is one storage row: column name → storage value.
type Row map[string]any

// Query is a read against storage. Sealed to this package.
type Query interface {
	queryNode()
}

// Statement is a write against storage. Sealed to this package.
type Statement interface {
	statementNode()
}

// Predicate is a filter condition. Sealed to this package.
type Predicate interface {
	predicateNode()
}

// Op is a binary comparison operator.
type Op string

const (
	OpEq   Op = "="
	OpNe   Op = "<>"
	OpLt   Op = "<"
	OpLe   Op = "<="
	OpGt   Op = ">"
	OpGe   Op = ">="
	OpLike Op = "LIKE"
)

// Valid reports whether op is one of the declared operators.
func (op Op) Valid() bool {
	switch op {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe, OpLike:
		return true
	}
	return false
}

// Table is a table reference with the alias used by Columns.
type Table struct {
	Name  string
	Alias string
}

// Column references a column of an aliased table. An empty Table is
// allowed only in statements (Insert/Update), which are single-table.
type Column struct {
	Table string
	Name  string
}

// Col is shorthand for Column{Table: alias, Name: name}.
func Col(alias, name string) Column {
	return Column{Table: alias, Name: name}
}

// Join is an inner join of another table onto a Select.
type Join struct {
	Table Table
	On    Predicate
}

// Order is one ORDER BY term.
type Order struct {
	Column Column
	Desc   bool
}

// Select reads rows.
//
// Semantics:
//
//	SELECT <columns> FROM <from> [JOIN ...] WHERE <filter>
//	ORDER BY <order> [LIMIT <limit>] [OFFSET <offset>]
//
// Example:
//
//	Select{
//	  From:    Table{Name: "entity_version", Alias: "ev"},
//	  Columns: []Column{Col("ev", "version_id")},
//	  Filter:  Compare{Column: Col("ev", "entity_id"), Op: OpEq, Value: "…"},
//	  OrderBy: []Order{{Column: Col("ev", "version_seq")}},
//	}
//
// Empty Columns selects every column of From. OrderBy is required by the
// SQL compiler so that results are deterministic. Limit 0 means no limit.
type Select struct {
	From    Table
	Joins   []Join
	Columns []Column
	Filter  Predicate
	OrderBy []Order
	Offset  int
	Limit   int
}

func (Select) queryNode() {}

// Count counts the rows Select would produce, ignoring its columns,
// ordering and paging.
type Count struct {
	Select Select
}

func (Count) queryNode() {}

// Insert writes one row. Returning names a column whose storage-assigned
// value is read back (e.g. a sequence).
type Insert struct {
	Table     string
	Values    Row
	Returning string
}

func (Insert) statementNode() {}

// Update sets columns on every row matching Filter. Filter is required;
// its columns must leave Table empty.
type Update struct {
	Table  string
	Set    Row
	Filter Predicate
}

func (Update) statementNode() {}

// Compare is <column> <op> <value>.
type Compare struct {
	Column Column
	Op     Op
	Value  any
}

func (Compare) predicateNode() {}

// CompareColumns is <left> <op> <right>, used for join and correlation
// conditions.
type CompareColumns struct {
	Left  Column
	Op    Op
	Right Column
}

func (CompareColumns) predicateNode() {}

// In is <column> IN (<values>). Empty Values is always false.
type In struct {
	Column Column
	Values []any
}

func (In) predicateNode() {}

// IsNull is <column> IS NULL, or IS NOT NULL when Negate is set.
type IsNull struct {
	Column Column
	Negate bool
}

func (IsNull) predicateNode() {}

// And is a conjunction. Empty is always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Or is a disjunction. Empty is always false.
type Or struct {
	Predicates []Predicate
}

func (Or) predicateNode() {}

// Not negates a predicate.
type Not struct {
	Predicate Predicate
}

func (Not) predicateNode() {}

// Exists is true when Select yields at least one row. The sub-select may
// reference aliases of enclosing selects; its Columns, OrderBy and paging
// are ignored.
type Exists struct {
	Select Select
}

func (Exists) predicateNode() {}

// Conj builds an And, flattening nested Ands and dropping nils. A single
// remaining predicate is returned unwrapped.
func Conj(preds ...Predicate) Predicate {
	var out []Predicate
	for _, p := range preds {
		switch v := p.(type) {
		case nil:
		case And:
			out = append(out, v.Predicates...)
		case *And:
			if v != nil {
				out = append(out, v.Predicates...)
			}
		default:
			out = append(out, p)
		}
	}
	if len(out) == 1 {
		return out[0]
	}
	return And{Predicates: out}
}
