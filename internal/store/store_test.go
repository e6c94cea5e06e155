package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vstore/internal/querysql"
)

// createTestStore opens a fresh sqlite store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open("sqlite3", path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func pragma(t *testing.T, s *Store, name string) string {
	t.Helper()
	var v string
	require.NoError(t, s.db.QueryRow("PRAGMA "+name).Scan(&v))
	return v
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open("sqlite3", path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open("sqlite3", path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open("sqlite3", path)
	require.NoError(t, err)
	defer s.Close()

	tables := []string{"entity", "entity_version", "person", "entity_name", "act_version", "concept_version", "code_system"}
	for _, table := range tables {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		assert.NoError(t, err, "table %q not found after idempotent opens", table)
	}

	v, err := s.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, currentSchemaVersion, v)
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("sqlite3", "/nonexistent/dir/test.db")
	assert.Error(t, err)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open("mysql", "ignored")
	assert.Error(t, err)
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	assert.NoError(t, s.Close())
}

func TestStore_Accessors(t *testing.T) {
	s := createTestStore(t)
	assert.NotNil(t, s.DB())
	assert.Equal(t, "sqlite3", s.Driver())
	assert.Equal(t, querysql.SQLite, s.Dialect())
}

func TestPragmas(t *testing.T) {
	s := createTestStore(t)

	assert.Equal(t, "wal", pragma(t, s, "journal_mode"))
	assert.Equal(t, "1", pragma(t, s, "synchronous"), "NORMAL")
	assert.Equal(t, "5000", pragma(t, s, "busy_timeout"))
	assert.Equal(t, "1", pragma(t, s, "foreign_keys"))
}

func TestSchemaStatements_Dialects(t *testing.T) {
	lite := SchemaStatements(querysql.SQLite)
	pg := SchemaStatements(querysql.Postgres)
	require.Equal(t, len(lite), len(pg))

	joined := strings.Join(lite, "\n")
	assert.Contains(t, joined, "INTEGER PRIMARY KEY AUTOINCREMENT")
	assert.NotContains(t, joined, "{{")

	joined = strings.Join(pg, "\n")
	assert.Contains(t, joined, "BIGSERIAL PRIMARY KEY")
	assert.Contains(t, joined, "DOUBLE PRECISION")
	assert.NotContains(t, joined, "AUTOINCREMENT")

	for _, stmt := range lite {
		assert.NotContains(t, stmt, ";\n")
	}
}

func TestHeadIndex_OneHeadPerKey(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	r := s.Reader()

	require.NoError(t, r.Insert(ctx, "entity", Row{
		"entity_id": "e1", "creation_utc": "t", "created_by": "p",
	}))
	version := func(id string) Row {
		return Row{
			"version_id": id, "entity_id": "e1", "class_cd_id": "c",
			"creation_utc": "t", "created_by": "p",
		}
	}
	_, err := r.InsertReturning(ctx, "entity_version", version("v1"), "version_seq")
	require.NoError(t, err)

	_, err = r.InsertReturning(ctx, "entity_version", version("v2"), "version_seq")
	assert.Error(t, err, "second head for the same key must be rejected")
}

func TestForeignKeys_Enforced(t *testing.T) {
	s := createTestStore(t)

	err := s.Reader().Insert(context.Background(), "entity_version", Row{
		"version_id": "v1", "entity_id": "missing", "class_cd_id": "c",
		"creation_utc": "t", "created_by": "p",
	})
	assert.Error(t, err)
}
