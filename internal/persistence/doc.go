// Package persistence stores versioned roots (entities, acts, concepts),
// their dependent associations and non-versioned reference data.
//
// Every write of a versioned root appends a version: the previous head is
// stamped obsolete and a new row is inserted with a storage-assigned
// sequence. Versioned associations carry a window of root sequences
// [effective, obsolete) and are reconciled on each write so that reading
// any version returns exactly the members it had. Tags are simple
// associations retired by timestamp.
//
// Writes run under a TxMode. Callers that group writes open a DataContext
// with Engine.Begin and attach it with WithDataContext; each operation then
// runs in a savepoint of that scope.
//
// Typed access goes through the repositories returned by Patients,
// Concepts, CodeSystems and friends.
package persistence
