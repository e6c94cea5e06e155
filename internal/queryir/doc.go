// Package queryir provides the storage-shaped query intermediate
// representation used between the mapping layer and SQL compilation.
//
// ARCHITECTURE:
//
//	[filter.Expr] → mapping.TranslatePredicate → [queryir] → querysql → SQL
//
// Model-shaped predicates (property names, collections) are translated by
// the mapping layer into table/column predicates expressed here. Nothing in
// this package knows about model types, and nothing knows about SQL text.
//
// SEALED INTERFACES:
//
// Query, Statement and Predicate are sealed interfaces using the marker
// method pattern. Only types in this package implement them, so compilers
// can switch exhaustively:
//
//	switch q := query.(type) {
//	case Select:
//	    // rows
//	case Count:
//	    // row count
//	}
//
// Both value and pointer forms are accepted by consumers.
//
// COLUMN REFERENCES:
//
// Every Column names the alias of the table it belongs to. A Select
// introduces aliases through From and Joins; an Exists sub-select may
// reference aliases of any enclosing Select (correlation). Validate
// reports references to aliases that are not in scope.
//
// VALUES:
//
// Literal values are already storage-converted scalars: string, int64,
// float64, bool or []byte. A nil comparison value is invalid; use IsNull.
package queryir
