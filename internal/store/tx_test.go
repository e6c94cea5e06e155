package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vstore/internal/queryir"
)

func insertEntity(t *testing.T, r *Runner, id string) {
	t.Helper()
	require.NoError(t, r.Insert(context.Background(), "entity", Row{
		"entity_id": id, "creation_utc": "2026-01-01T00:00:00.000000000Z", "created_by": "p",
	}))
}

func selectEntities() queryir.Select {
	return queryir.Select{
		From:    queryir.Table{Name: "entity", Alias: "e"},
		OrderBy: []queryir.Order{{Column: queryir.Col("e", "entity_id")}},
	}
}

func TestRunner_InsertSelect(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	r := s.Reader()

	insertEntity(t, r, "b")
	insertEntity(t, r, "a")

	rows, err := r.Select(ctx, selectEntities())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "a", rows[0]["entity_id"])
	assert.Equal(t, "b", rows[1]["entity_id"])

	n, err := r.Count(ctx, selectEntities())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestRunner_SelectEmpty(t *testing.T) {
	s := createTestStore(t)

	rows, err := s.Reader().Select(context.Background(), selectEntities())
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)

	row, err := s.Reader().SelectOne(context.Background(), selectEntities())
	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestRunner_InsertReturningSequence(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	r := s.Reader()
	insertEntity(t, r, "e1")
	insertEntity(t, r, "e2")

	seq1, err := r.InsertReturning(ctx, "entity_version", Row{
		"version_id": "v1", "entity_id": "e1", "class_cd_id": "c",
		"creation_utc": "t", "created_by": "p",
	}, "version_seq")
	require.NoError(t, err)
	seq2, err := r.InsertReturning(ctx, "entity_version", Row{
		"version_id": "v2", "entity_id": "e2", "class_cd_id": "c",
		"creation_utc": "t", "created_by": "p",
	}, "version_seq")
	require.NoError(t, err)
	assert.Greater(t, seq2, seq1)
}

func TestRunner_UpdateRowsAffected(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	r := s.Reader()
	insertEntity(t, r, "e1")

	filter := queryir.Compare{Column: queryir.Column{Name: "entity_id"}, Op: queryir.OpEq, Value: "e1"}
	n, err := r.Update(ctx, "entity", Row{"created_by": "q"}, filter)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	filter.Value = "missing"
	n, err = r.Update(ctx, "entity", Row{"created_by": "q"}, filter)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestRunner_InvalidQuery(t *testing.T) {
	s := createTestStore(t)
	_, err := s.Reader().Select(context.Background(), queryir.Select{From: queryir.Table{Name: "entity", Alias: "e"}})
	assert.Error(t, err, "missing ORDER BY")
}

func TestTx_CommitAndRollback(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	insertEntity(t, tx.Runner, "kept")
	require.NoError(t, tx.Commit())

	tx, err = s.Begin(ctx)
	require.NoError(t, err)
	insertEntity(t, tx.Runner, "dropped")
	require.NoError(t, tx.Rollback())
	require.NoError(t, tx.Rollback(), "second rollback is a no-op")

	rows, err := s.Reader().Select(ctx, selectEntities())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "kept", rows[0]["entity_id"])
}

func TestTx_Savepoints(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	insertEntity(t, tx.Runner, "outer")

	require.NoError(t, tx.Savepoint(ctx, "sp_1"))
	insertEntity(t, tx.Runner, "inner_dropped")
	require.NoError(t, tx.RollbackTo(ctx, "sp_1"))
	require.NoError(t, tx.Release(ctx, "sp_1"))

	require.NoError(t, tx.Savepoint(ctx, "sp_2"))
	insertEntity(t, tx.Runner, "inner_kept")
	require.NoError(t, tx.Release(ctx, "sp_2"))

	rows, err := tx.Select(ctx, selectEntities())
	require.NoError(t, err)
	var ids []any
	for _, r := range rows {
		ids = append(ids, r["entity_id"])
	}
	assert.Equal(t, []any{"inner_kept", "outer"}, ids)
}

func TestTx_SavepointNameValidated(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	assert.Error(t, tx.Savepoint(ctx, "x; DROP TABLE entity"))
}
