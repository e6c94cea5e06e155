// Package store provides relational storage for versioned objects.
//
// The store executes queryir nodes compiled by querysql against SQLite
// (github.com/mattn/go-sqlite3) or PostgreSQL (github.com/jackc/pgx/v5).
// It knows tables and columns only; model types live in the mapping layer.
//
// # Schema
//
// The embedded schema.sql holds, per versioned family:
//   - an identity table (stable key + creation metadata)
//   - a version table, one row per version, whose version_seq is assigned
//     by storage and read back with INSERT … RETURNING
//   - sub-tables keyed by version id for derived types
//   - association tables windowed by eff_vrsn_seq / obslt_vrsn_seq, or
//     retired by obsolete_utc for simple associations
//
// A partial unique index on each version table allows at most one head
// (obsolete_utc IS NULL) per key.
//
// # Deterministic Query Results
//
// Every Select carries an ORDER BY (enforced by the compiler).
//
// # Database Configuration (sqlite3)
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//   - one open connection: reads inside a transaction must use the Tx
package store
