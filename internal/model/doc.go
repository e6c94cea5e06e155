// Package model provides the domain types persisted by the versioned store.
//
// This package contains type definitions only. All other internal packages
// import model; model imports nothing internal.
//
// Three shapes of persisted object exist:
//   - Versioned roots (Entity, Act, Concept and their sub-types): a stable
//     Key plus one immutable row per version, chained by PreviousVersionKey.
//   - Versioned associations (names, addresses, identifiers, ...): dependent
//     rows visible for a window of root version sequences.
//   - Non-versioned reference data (code systems, reference terms, ...):
//     created, updated in place and retired.
//
// Key design constraints:
//   - Keys are UUIDs; uuid.Nil means "not yet assigned"
//   - Version sequences are assigned by storage and only ever compared
//   - Associations are never deleted, only windowed out
package model
