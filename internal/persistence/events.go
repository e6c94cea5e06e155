package persistence

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/vstore/internal/model"
)

// EventKind names a persistence event.
type EventKind string

const (
	Inserting  EventKind = "inserting"
	Inserted   EventKind = "inserted"
	Updating   EventKind = "updating"
	Updated    EventKind = "updated"
	Obsoleting EventKind = "obsoleting"
	Obsoleted  EventKind = "obsoleted"
)

// IsPre reports whether handlers of this kind can cancel the operation.
func (k EventKind) IsPre() bool {
	return k == Inserting || k == Updating || k == Obsoleting
}

// Event describes one write. Object is the object as it will be (pre) or
// was (post) written; pre handlers may modify it.
type Event struct {
	Kind      EventKind
	Type      string
	Key       uuid.UUID
	Object    any
	Principal model.Principal
	Mode      TxMode

	// Stats holds per-collection reconciliation results (post events of
	// versioned writes only).
	Stats map[string]ReconcileStats
}

// Handler receives events. An error returned from a pre-event handler
// aborts the operation with ErrCancelled; errors from post-event handlers
// are logged and otherwise ignored.
type Handler func(ctx context.Context, ev *Event) error

// Events is a registry of handlers by kind. It is safe for concurrent use.
type Events struct {
	mu       sync.RWMutex
	handlers map[EventKind][]Handler
}

// Subscribe registers h for kind. Handlers run in subscription order.
func (e *Events) Subscribe(kind EventKind, h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.handlers == nil {
		e.handlers = map[EventKind][]Handler{}
	}
	e.handlers[kind] = append(e.handlers[kind], h)
}

func (e *Events) list(kind EventKind) []Handler {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]Handler(nil), e.handlers[kind]...)
}

// firePre runs pre handlers and stops at the first error.
func (e *Events) firePre(ctx context.Context, ev *Event) error {
	for _, h := range e.list(ev.Kind) {
		if err := h(ctx, ev); err != nil {
			return &PersistenceError{
				Code:    ErrCodeCancelled,
				Message: string(ev.Kind) + " handler cancelled the operation",
				Type:    ev.Type,
				Key:     ev.Key,
				Cause:   err,
			}
		}
	}
	return nil
}

// firePost runs every post handler and returns the errors they reported.
func (e *Events) firePost(ctx context.Context, ev *Event) []error {
	var errs []error
	for _, h := range e.list(ev.Kind) {
		if err := h(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
