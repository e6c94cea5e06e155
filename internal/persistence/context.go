package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/vstore/internal/model"
	"github.com/roach88/vstore/internal/store"
)

// TxMode selects how a write is bracketed.
type TxMode int

const (
	// TxNone joins the ambient DataContext carried by the context; it is an
	// error if there is none.
	TxNone TxMode = iota
	// TxCommit commits the operation on success.
	TxCommit
	// TxRollback performs the operation and rolls it back (dry run).
	TxRollback
)

// String returns the mode name.
func (m TxMode) String() string {
	switch m {
	case TxNone:
		return "none"
	case TxCommit:
		return "commit"
	case TxRollback:
		return "rollback"
	default:
		return fmt.Sprintf("TxMode(%d)", int(m))
	}
}

// DataContext is a transactional scope. A root context owns a database
// transaction; a nested context is a savepoint inside its parent.
//
// A DataContext is used by one goroutine at a time.
type DataContext struct {
	tx        *store.Tx
	principal model.Principal
	parent    *DataContext
	savepoint string
	seq       *int

	afterCommit []func()
	done        bool
}

// Begin opens a caller-managed transactional scope. Attach it to a context
// with WithDataContext and pass TxNone to run operations inside it.
func (e *Engine) Begin(ctx context.Context, principal model.Principal) (*DataContext, error) {
	if principal.IsZero() {
		return nil, formalConstraint("", uuid.Nil, "principal is required")
	}
	tx, err := e.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	seq := 0
	return &DataContext{tx: tx, principal: principal, seq: &seq}, nil
}

// Principal returns the principal the scope was opened for.
func (dc *DataContext) Principal() model.Principal { return dc.principal }

// Runner executes statements inside the scope.
func (dc *DataContext) Runner() *store.Runner { return dc.tx.Runner }

// Done reports whether the scope was committed or rolled back.
func (dc *DataContext) Done() bool { return dc.done }

// AfterCommit registers fn to run once the outermost transaction commits.
// Hooks registered in a scope that is rolled back are discarded.
func (dc *DataContext) AfterCommit(fn func()) {
	dc.afterCommit = append(dc.afterCommit, fn)
}

// nested opens a savepoint scope inside dc.
func (dc *DataContext) nested(ctx context.Context) (*DataContext, error) {
	if dc.done {
		return nil, formalConstraint("", uuid.Nil, "data context is closed")
	}
	*dc.seq++
	name := fmt.Sprintf("vstore_sp_%d", *dc.seq)
	if err := dc.tx.Savepoint(ctx, name); err != nil {
		return nil, err
	}
	return &DataContext{tx: dc.tx, principal: dc.principal, parent: dc, savepoint: name, seq: dc.seq}, nil
}

// Commit commits the scope. For a nested scope this releases the savepoint
// and hands its after-commit hooks to the parent.
func (dc *DataContext) Commit() error {
	if dc.done {
		return fmt.Errorf("commit: data context is closed")
	}
	dc.done = true
	if dc.parent != nil {
		if err := dc.tx.Release(context.Background(), dc.savepoint); err != nil {
			return err
		}
		dc.parent.afterCommit = append(dc.parent.afterCommit, dc.afterCommit...)
		return nil
	}
	if err := dc.tx.Commit(); err != nil {
		return err
	}
	for _, fn := range dc.afterCommit {
		fn()
	}
	return nil
}

// Rollback discards the scope's writes. Rolling back a closed scope is a
// no-op.
func (dc *DataContext) Rollback() error {
	if dc.done {
		return nil
	}
	dc.done = true
	dc.afterCommit = nil
	if dc.parent != nil {
		if err := dc.tx.RollbackTo(context.Background(), dc.savepoint); err != nil {
			return err
		}
		return dc.tx.Release(context.Background(), dc.savepoint)
	}
	return dc.tx.Rollback()
}

type dataContextKey struct{}

// WithDataContext returns a context carrying dc as the ambient scope.
func WithDataContext(ctx context.Context, dc *DataContext) context.Context {
	return context.WithValue(ctx, dataContextKey{}, dc)
}

// FromContext returns the ambient scope, or nil.
func FromContext(ctx context.Context) *DataContext {
	dc, _ := ctx.Value(dataContextKey{}).(*DataContext)
	return dc
}

// reader returns the runner for reads: the ambient scope's transaction if
// there is an open one, the store otherwise. The bool reports whether the
// read sees uncommitted state.
func (e *Engine) reader(ctx context.Context) (*store.Runner, bool) {
	if dc := FromContext(ctx); dc != nil && !dc.done {
		return dc.Runner(), true
	}
	return e.store.Reader(), false
}

// operation is the state of one write inside its scope.
type operation struct {
	ctx       context.Context
	dc        *DataContext
	principal model.Principal
	mode      TxMode
	typeName  string
	now       time.Time
	events    *Events
}

func (o *operation) runner() *store.Runner { return o.dc.Runner() }

// pre fires a cancellable pre-event.
func (o *operation) pre(kind EventKind, key uuid.UUID, obj any) error {
	return o.events.firePre(o.ctx, &Event{
		Kind: kind, Type: o.typeName, Key: key, Object: obj,
		Principal: o.principal, Mode: o.mode,
	})
}

// post fires a post-event unless the operation is a dry run.
func (o *operation) post(kind EventKind, key uuid.UUID, obj any, stats map[string]ReconcileStats) []error {
	if o.mode == TxRollback {
		return nil
	}
	return o.events.firePost(o.ctx, &Event{
		Kind: kind, Type: o.typeName, Key: key, Object: obj,
		Principal: o.principal, Mode: o.mode, Stats: stats,
	})
}

// run executes fn in a scope chosen by mode and the ambient context:
//   - ambient scope present: fn runs in a savepoint of it, released on
//     success (TxNone, TxCommit) or rolled back (TxRollback)
//   - no ambient scope: TxNone is a formal-constraint error; TxCommit and
//     TxRollback open and close their own transaction
//
// Any error from fn rolls the scope back.
func (e *Engine) run(ctx context.Context, mode TxMode, principal model.Principal, typeName string, fn func(o *operation) error) error {
	ambient := FromContext(ctx)
	if principal.IsZero() && ambient != nil {
		principal = ambient.principal
	}
	if principal.IsZero() {
		return formalConstraint(typeName, uuid.Nil, "principal is required")
	}
	if mode < TxNone || mode > TxRollback {
		return formalConstraint(typeName, uuid.Nil, "unknown transaction mode %s", mode)
	}

	var (
		dc  *DataContext
		err error
	)
	switch {
	case ambient != nil:
		dc, err = ambient.nested(ctx)
	case mode == TxNone:
		return formalConstraint(typeName, uuid.Nil, "transaction mode none requires an ambient data context")
	default:
		dc, err = e.Begin(ctx, principal)
	}
	if err != nil {
		return err
	}

	o := &operation{
		ctx:       WithDataContext(ctx, dc),
		dc:        dc,
		principal: principal,
		mode:      mode,
		typeName:  typeName,
		now:       e.clock.Now().UTC(),
		events:    e.Events,
	}
	if err := fn(o); err != nil {
		if rbErr := dc.Rollback(); rbErr != nil {
			e.log.Error().Err(rbErr).Str("type", typeName).Msg("rollback failed")
		}
		return err
	}
	if mode == TxRollback {
		return dc.Rollback()
	}
	return dc.Commit()
}
