package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/vstore/internal/queryir"
	"github.com/roach88/vstore/internal/querysql"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - Initial versioned entity/act/concept schema
const currentSchemaVersion = 1

// Row is one storage row: column name → storage value.
type Row = queryir.Row

// Store provides relational storage for versioned objects.
// SQLite (mattn/go-sqlite3) and PostgreSQL (pgx stdlib) are supported.
type Store struct {
	db       *sql.DB
	driver   string
	compiler *querysql.SQLCompiler
}

// Open connects to the database and applies the schema.
//
// For sqlite3 the connection is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//   - a single open connection (one writer at a time)
//
// This function is idempotent - safe to call multiple times.
func Open(driver, dsn string) (*Store, error) {
	dialect, err := querysql.DialectForDriver(driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if dialect == querysql.SQLite {
		db.SetMaxOpenConns(1) // Single writer to avoid SQLITE_BUSY errors
		db.SetMaxIdleConns(1)

		if err := applyPragmas(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply pragmas: %w", err)
		}
	}

	s := &Store{db: db, driver: driver, compiler: querysql.NewSQLCompiler(dialect)}
	if err := s.applySchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using Store methods when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Driver returns the database/sql driver name.
func (s *Store) Driver() string {
	return s.driver
}

// Dialect returns the SQL dialect in use.
func (s *Store) Dialect() querysql.Dialect {
	return s.compiler.Dialect
}

// Reader returns a Runner that executes outside any transaction.
// With sqlite it must not be used while a Tx is open on the same Store.
func (s *Store) Reader() *Runner {
	return &Runner{q: s.db, compiler: s.compiler}
}

// SchemaVersion returns the applied schema version.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		s.compiler.Dialect.Rebind("SELECT meta_value FROM vstore_meta WHERE meta_key = ?"),
		"schema_version").Scan(&raw)
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// SchemaStatements returns the schema DDL for a dialect, one statement per
// element.
func SchemaStatements(d querysql.Dialect) []string {
	src := schemaSQL
	switch d {
	case querysql.Postgres:
		src = strings.ReplaceAll(src, "{{SEQUENCE_PK}}", "BIGSERIAL PRIMARY KEY")
		src = strings.ReplaceAll(src, "{{FLOAT}}", "DOUBLE PRECISION")
	default:
		src = strings.ReplaceAll(src, "{{SEQUENCE_PK}}", "INTEGER PRIMARY KEY AUTOINCREMENT")
		src = strings.ReplaceAll(src, "{{FLOAT}}", "REAL")
	}

	var out []string
	for _, stmt := range strings.Split(src, ";\n") {
		if strings.TrimSpace(stripComments(stmt)) == "" {
			continue
		}
		out = append(out, strings.TrimSpace(stmt))
	}
	return out
}

func stripComments(stmt string) string {
	var b strings.Builder
	for _, line := range strings.Split(stmt, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

// applySchema creates tables if they don't exist and records the schema
// version. This function is idempotent.
func (s *Store) applySchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range SchemaStatements(s.compiler.Dialect) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema: %w", err)
		}
	}

	var count int
	if err := tx.QueryRowContext(ctx,
		s.compiler.Dialect.Rebind("SELECT COUNT(*) FROM vstore_meta WHERE meta_key = ?"),
		"schema_version").Scan(&count); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if count == 0 {
		if _, err := tx.ExecContext(ctx,
			s.compiler.Dialect.Rebind("INSERT INTO vstore_meta (meta_key, meta_value) VALUES (?, ?)"),
			"schema_version", strconv.Itoa(currentSchemaVersion)); err != nil {
			return fmt.Errorf("write schema version: %w", err)
		}
	}

	return tx.Commit()
}
