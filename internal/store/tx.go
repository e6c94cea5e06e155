package store

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	"github.com/roach88/vstore/internal/queryir"
	"github.com/roach88/vstore/internal/querysql"
)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Runner executes compiled queryir nodes against a database or transaction.
type Runner struct {
	q        querier
	compiler *querysql.SQLCompiler
}

// Insert writes one row into table.
func (r *Runner) Insert(ctx context.Context, table string, row Row) error {
	query, args, err := r.compiler.CompileStatement(queryir.Insert{Table: table, Values: row})
	if err != nil {
		return fmt.Errorf("insert %s: %w", table, err)
	}
	if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert %s: %w", table, err)
	}
	return nil
}

// InsertReturning writes one row and reads back the storage-assigned
// integer value of column (e.g. a sequence).
func (r *Runner) InsertReturning(ctx context.Context, table string, row Row, column string) (int64, error) {
	query, args, err := r.compiler.CompileStatement(queryir.Insert{Table: table, Values: row, Returning: column})
	if err != nil {
		return 0, fmt.Errorf("insert %s: %w", table, err)
	}
	var id int64
	if err := r.q.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert %s: %w", table, err)
	}
	return id, nil
}

// Update sets columns on the rows of table matching filter and returns
// the number of rows affected.
func (r *Runner) Update(ctx context.Context, table string, set Row, filter queryir.Predicate) (int64, error) {
	query, args, err := r.compiler.CompileStatement(queryir.Update{Table: table, Set: set, Filter: filter})
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", table, err)
	}
	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", table, err)
	}
	return n, nil
}

// Select runs a query and reads every row before returning, so the
// connection is free for the next statement.
//
// Returns an empty slice (not nil) if no rows match.
func (r *Runner) Select(ctx context.Context, sel queryir.Select) ([]Row, error) {
	query, args, err := r.compiler.Compile(sel)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", sel.From.Name, err)
	}
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", sel.From.Name, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", sel.From.Name, err)
	}

	out := []Row{}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", sel.From.Name, err)
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				vals[i] = append([]byte(nil), b...)
			}
			row[c] = vals[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", sel.From.Name, err)
	}
	return out, nil
}

// SelectOne runs a query and returns its first row, or nil if none.
func (r *Runner) SelectOne(ctx context.Context, sel queryir.Select) (Row, error) {
	sel.Limit = 1
	rows, err := r.Select(ctx, sel)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// Count returns the number of rows sel would produce.
func (r *Runner) Count(ctx context.Context, sel queryir.Select) (int64, error) {
	query, args, err := r.compiler.Compile(queryir.Count{Select: sel})
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", sel.From.Name, err)
	}
	var n int64
	if err := r.q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", sel.From.Name, err)
	}
	return n, nil
}

// Tx is a database transaction with savepoint support.
type Tx struct {
	*Runner
	tx *sql.Tx
}

// Begin starts a transaction.
func (s *Store) Begin(ctx context.Context) (*Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	return &Tx{Runner: &Runner{q: tx, compiler: s.compiler}, tx: tx}, nil
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Rollback aborts the transaction. Rolling back a finished transaction is
// a no-op.
func (t *Tx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

var savepointName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Savepoint marks a point the transaction can roll back to.
func (t *Tx) Savepoint(ctx context.Context, name string) error {
	return t.savepointExec(ctx, "SAVEPOINT", name)
}

// RollbackTo undoes everything after the named savepoint. The savepoint
// itself remains and must still be released.
func (t *Tx) RollbackTo(ctx context.Context, name string) error {
	return t.savepointExec(ctx, "ROLLBACK TO SAVEPOINT", name)
}

// Release discards the named savepoint, keeping its changes.
func (t *Tx) Release(ctx context.Context, name string) error {
	return t.savepointExec(ctx, "RELEASE SAVEPOINT", name)
}

func (t *Tx) savepointExec(ctx context.Context, verb, name string) error {
	if !savepointName.MatchString(name) {
		return fmt.Errorf("invalid savepoint name %q", name)
	}
	if _, err := t.tx.ExecContext(ctx, verb+" "+name); err != nil {
		return fmt.Errorf("%s %s: %w", verb, name, err)
	}
	return nil
}
