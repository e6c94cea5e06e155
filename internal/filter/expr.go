// Package filter provides model-shaped query predicates.
//
// Predicates reference model property names (e.g. "ClassConceptKey") and
// collection names (e.g. "Names"). They are translated to storage-shaped
// predicates by the mapping package; nothing here knows about tables.
//
// Expr is a sealed interface: only types in this package implement it, so
// translators can switch exhaustively.
package filter

// Op is a comparison operator.
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

// Expr is a boolean predicate over a model type.
type Expr interface {
	exprNode()
}

// Compare is <property> <op> <value>. Value must be a non-nil scalar of a
// type the mapper can convert (UUID, string, integer, bool, time, decimal).
type Compare struct {
	Property string
	Op       Op
	Value    any
}

func (Compare) exprNode() {}

// In is <property> IN (<values>). An empty list matches nothing.
type In struct {
	Property string
	Values   []any
}

func (In) exprNode() {}

// IsNull is <property> IS NULL, or IS NOT NULL when Negate is set.
type IsNull struct {
	Property string
	Negate   bool
}

func (IsNull) exprNode() {}

// And is a conjunction. Empty means always true.
type And struct {
	Exprs []Expr
}

func (And) exprNode() {}

// Or is a disjunction. Empty means always false.
type Or struct {
	Exprs []Expr
}

func (Or) exprNode() {}

// Not negates an expression.
type Not struct {
	Expr Expr
}

func (Not) exprNode() {}

// Any is true when at least one member of the named collection, visible
// for the row being tested, satisfies Where. A nil Where tests for a
// non-empty collection.
type Any struct {
	Collection string
	Where      Expr
}

func (Any) exprNode() {}

// Eq builds property = value.
func Eq(property string, value any) Compare { return Compare{Property: property, Op: OpEq, Value: value} }

// Ne builds property <> value.
func Ne(property string, value any) Compare { return Compare{Property: property, Op: OpNe, Value: value} }

// Lt builds property < value.
func Lt(property string, value any) Compare { return Compare{Property: property, Op: OpLt, Value: value} }

// Le builds property <= value.
func Le(property string, value any) Compare { return Compare{Property: property, Op: OpLe, Value: value} }

// Gt builds property > value.
func Gt(property string, value any) Compare { return Compare{Property: property, Op: OpGt, Value: value} }

// Ge builds property >= value.
func Ge(property string, value any) Compare { return Compare{Property: property, Op: OpGe, Value: value} }

// Like builds property LIKE pattern.
func Like(property, pattern string) Compare {
	return Compare{Property: property, Op: OpLike, Value: pattern}
}

// OneOf builds property IN (values...).
func OneOf(property string, values ...any) In { return In{Property: property, Values: values} }

// Null builds property IS NULL.
func Null(property string) IsNull { return IsNull{Property: property} }

// NotNull builds property IS NOT NULL.
func NotNull(property string) IsNull { return IsNull{Property: property, Negate: true} }

// All builds a conjunction, dropping nil members.
func All(exprs ...Expr) And { return And{Exprs: compact(exprs)} }

// Either builds a disjunction, dropping nil members.
func Either(exprs ...Expr) Or { return Or{Exprs: compact(exprs)} }

// Negate builds NOT expr.
func Negate(expr Expr) Not { return Not{Expr: expr} }

// Has builds an existential test over a collection.
func Has(collection string, where Expr) Any { return Any{Collection: collection, Where: where} }

func compact(exprs []Expr) []Expr {
	out := make([]Expr, 0, len(exprs))
	for _, e := range exprs {
		if e != nil {
			out = append(out, e)
		}
	}
	return out
}
