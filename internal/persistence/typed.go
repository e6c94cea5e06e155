package persistence

import (
	"context"

	"github.com/google/uuid"

	"github.com/roach88/vstore/internal/model"
)

// Page is one page of a query result.
type Page[T any] struct {
	Items  []*T  `json:"items"`
	Total  int64 `json:"total"`
	Offset int   `json:"offset"`
	Limit  int   `json:"limit"`
}

// Typed is the repository of a versioned root type. It adds version
// history on top of BaseRepository.
type Typed[T any] struct {
	*BaseRepository[T]
}

// NewTyped returns the repository of the versioned type registered for T.
func NewTyped[T any](e *Engine) (*Typed[T], error) {
	base, err := NewBaseRepository[T](e)
	if err != nil {
		return nil, err
	}
	if _, root, err := e.typeMaps(base.typeName); err != nil {
		return nil, err
	} else if !root.Versioned() {
		return nil, formalConstraint(base.typeName, uuid.Nil, "type is not versioned")
	}
	return &Typed[T]{BaseRepository: base}, nil
}

func mustTyped[T any](e *Engine) *Typed[T] {
	r, err := NewTyped[T](e)
	if err != nil {
		panic(err)
	}
	return r
}

// History returns every version of key, oldest first.
func (r *Typed[T]) History(ctx context.Context, key uuid.UUID) ([]*T, error) {
	items, err := r.engine.History(ctx, r.typeName, key)
	if err != nil {
		return nil, err
	}
	out := make([]*T, 0, len(items))
	for _, it := range items {
		out = append(out, it.(*T))
	}
	return out, nil
}

// VerifyChain checks the version chain of key.
func (r *Typed[T]) VerifyChain(ctx context.Context, key uuid.UUID) (*ChainReport, error) {
	return r.engine.VerifyChain(ctx, r.typeName, key)
}

// Head returns the current version of key with its collections.
func (r *Typed[T]) Head(ctx context.Context, key uuid.UUID, principal model.Principal) (*T, error) {
	return r.Get(ctx, key, nil, principal, false)
}
