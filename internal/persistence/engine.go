package persistence

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/vstore/internal/cache"
	"github.com/roach88/vstore/internal/logger"
	"github.com/roach88/vstore/internal/mapping"
	"github.com/roach88/vstore/internal/metrics"
	"github.com/roach88/vstore/internal/model"
	"github.com/roach88/vstore/internal/store"
)

// Clock supplies audit timestamps.
type Clock interface {
	Now() time.Time
}

// KeyGenerator supplies stable keys and version keys.
type KeyGenerator interface {
	NewKey() uuid.UUID
	NewVersionKey() uuid.UUID
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// randomKeys generates v4 keys and time-ordered v7 version keys.
type randomKeys struct{}

func (randomKeys) NewKey() uuid.UUID { return uuid.New() }

func (randomKeys) NewVersionKey() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}

// Options configures an Engine. Only Store is required.
type Options struct {
	Store    *store.Store
	Mapper   *mapping.Mapper
	Registry *Registry
	Cache    *cache.Cache
	Metrics  *metrics.Metrics
	Logger   *logger.Logger
	Clock    Clock
	Keys     KeyGenerator
}

// Engine persists versioned roots, their associations and reference data.
// It is safe for concurrent use by operations on different keys.
type Engine struct {
	store    *store.Store
	mapper   *mapping.Mapper
	registry *Registry
	cache    *cache.Cache
	metrics  *metrics.Metrics
	log      *logger.Logger
	clock    Clock
	keys     KeyGenerator

	// Events carries pre/post write hooks.
	Events *Events
}

// New builds an engine, binding every registered type to the mapper and
// subscribing the logging and metrics handlers.
func New(opts Options) (*Engine, error) {
	if opts.Store == nil {
		return nil, errors.New("persistence: store is required")
	}
	e := &Engine{
		store:    opts.Store,
		mapper:   opts.Mapper,
		registry: opts.Registry,
		cache:    opts.Cache,
		metrics:  opts.Metrics,
		log:      opts.Logger,
		clock:    opts.Clock,
		keys:     opts.Keys,
		Events:   &Events{},
	}
	if e.mapper == nil {
		m, err := mapping.NewDefault()
		if err != nil {
			return nil, fmt.Errorf("load mapping: %w", err)
		}
		e.mapper = m
	}
	if e.registry == nil {
		e.registry = DefaultRegistry()
	}
	if e.metrics == nil {
		e.metrics = metrics.New(metrics.DefaultNamespace)
	}
	if e.cache == nil {
		c, err := cache.New(cache.DefaultSize, e.metrics)
		if err != nil {
			return nil, err
		}
		e.cache = c
	}
	if e.log == nil {
		e.log = logger.Nop()
	}
	if e.clock == nil {
		e.clock = systemClock{}
	}
	if e.keys == nil {
		e.keys = randomKeys{}
	}

	if err := e.registry.bind(e.mapper); err != nil {
		return nil, fmt.Errorf("bind types: %w", err)
	}
	e.subscribeDefaults()
	return e, nil
}

// Store returns the underlying store.
func (e *Engine) Store() *store.Store { return e.store }

// Mapper returns the mapper.
func (e *Engine) Mapper() *mapping.Mapper { return e.mapper }

// Registry returns the type registry.
func (e *Engine) Registry() *Registry { return e.registry }

// Cache returns the lookaside cache.
func (e *Engine) Cache() *cache.Cache { return e.cache }

// Metrics returns the engine's metrics.
func (e *Engine) Metrics() *metrics.Metrics { return e.metrics }

// subscribeDefaults wires post-event logging and reconciliation metrics.
func (e *Engine) subscribeDefaults() {
	for _, kind := range []EventKind{Inserted, Updated, Obsoleted} {
		e.Events.Subscribe(kind, func(_ context.Context, ev *Event) error {
			for name, st := range ev.Stats {
				e.log.LogReconcile(ev.Type, name, st.Inserted, st.Obsoleted, st.Unchanged)
				e.metrics.RecordReconcile(name, st.Inserted, st.Obsoleted)
			}
			e.log.Debug().
				Str("event", string(ev.Kind)).
				Str("type", ev.Type).
				Str("key", ev.Key.String()).
				Str("principal", ev.Principal.Name).
				Msg("persistence event")
			return nil
		})
	}
}

// observe records metrics and a log line for one operation.
func (e *Engine) observe(typeName, op string, key uuid.UUID, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	elapsed := time.Since(start)
	e.metrics.RecordOperation(typeName, op, status, elapsed)
	e.log.LogDbOperation(op, typeName, key.String(), elapsed, err)
}

// typeMaps resolves typeName to its mapping and root, checking that it is
// a registered, bound type.
func (e *Engine) typeMaps(typeName string) (*mapping.TypeMap, *mapping.TypeMap, error) {
	if _, ok := e.registry.Lookup(typeName); !ok {
		return nil, nil, formalConstraint(typeName, uuid.Nil, "type is not registered")
	}
	tm, ok := e.mapper.Table().Type(typeName)
	if !ok {
		return nil, nil, formalConstraint(typeName, uuid.Nil, "type is not mapped")
	}
	root, err := e.mapper.Table().Root(typeName)
	if err != nil {
		return nil, nil, err
	}
	return tm, root, nil
}

// checkObject verifies obj is a non-nil pointer to typeName's Go type.
func (e *Engine) checkObject(typeName string, obj any) error {
	want, ok := e.mapper.Bound(typeName)
	if !ok {
		return formalConstraint(typeName, uuid.Nil, "no Go type bound")
	}
	v := reflect.ValueOf(obj)
	if v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Type() != want {
		return formalConstraint(typeName, uuid.Nil, "object must be a non-nil *%s, got %T", want, obj)
	}
	return nil
}

func keyOf(obj any) uuid.UUID {
	if id, ok := obj.(model.Identified); ok && id != nil && !reflect.ValueOf(obj).IsNil() {
		return id.Base().Key
	}
	return uuid.Nil
}
