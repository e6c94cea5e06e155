package persistence

import (
	"context"
	"reflect"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/vstore/internal/filter"
	"github.com/roach88/vstore/internal/mapping"
	"github.com/roach88/vstore/internal/model"
	"github.com/roach88/vstore/internal/queryir"
	"github.com/roach88/vstore/internal/store"
)

// Insert writes a new object of typeName and returns a copy carrying the
// assigned key, version and audit fields. obj itself is not modified.
func (e *Engine) Insert(ctx context.Context, typeName string, obj any, principal model.Principal, mode TxMode) (any, error) {
	start := time.Now()
	out, err := e.write(ctx, typeName, obj, principal, mode, func(o *operation, root *mapping.TypeMap, out any) (any, error) {
		if root.Versioned() {
			return out, e.insertVersioned(o, root, out)
		}
		return out, e.insertPlain(o, root, out)
	})
	e.observe(typeName, "insert", keyOf(out), start, err)
	return out, err
}

// Update writes a changed object of typeName. Versioned roots get a new
// version; reference data is updated in place.
func (e *Engine) Update(ctx context.Context, typeName string, obj any, principal model.Principal, mode TxMode) (any, error) {
	start := time.Now()
	out, err := e.write(ctx, typeName, obj, principal, mode, func(o *operation, root *mapping.TypeMap, out any) (any, error) {
		if root.Versioned() {
			return out, e.updateVersioned(o, root, out)
		}
		return out, e.updatePlain(o, root, out)
	})
	e.observe(typeName, "update", keyOf(out), start, err)
	return out, err
}

// Obsolete retires the object with obj's key and returns the stored object
// with its obsoletion stamped. No row is deleted.
func (e *Engine) Obsolete(ctx context.Context, typeName string, obj any, principal model.Principal, mode TxMode) (any, error) {
	start := time.Now()
	out, err := e.write(ctx, typeName, obj, principal, mode, func(o *operation, root *mapping.TypeMap, out any) (any, error) {
		if root.Versioned() {
			return e.obsoleteVersioned(o, root, out)
		}
		return e.obsoletePlain(o, root, out)
	})
	e.observe(typeName, "obsolete", keyOf(out), start, err)
	return out, err
}

// write validates and copies obj, then runs fn in a scope.
func (e *Engine) write(ctx context.Context, typeName string, obj any, principal model.Principal, mode TxMode,
	fn func(o *operation, root *mapping.TypeMap, out any) (any, error)) (any, error) {
	_, root, err := e.typeMaps(typeName)
	if err != nil {
		return nil, err
	}
	if err := e.checkObject(typeName, obj); err != nil {
		return nil, err
	}
	out := model.Clone(obj)
	var result any
	err = e.run(ctx, mode, principal, typeName, func(o *operation) error {
		var err error
		result, err = fn(o, root, out)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// post fires a post-event and logs handler failures.
func (e *Engine) post(o *operation, kind EventKind, key uuid.UUID, obj any, stats map[string]ReconcileStats) {
	for _, err := range o.post(kind, key, obj, stats) {
		e.log.Warn().Err(err).
			Str("event", string(kind)).
			Str("type", o.typeName).
			Str("key", key.String()).
			Msg("post-event handler failed")
	}
}

// invalidate drops key from the cache now and again once the outermost
// transaction commits.
func (e *Engine) invalidate(o *operation, key uuid.UUID) {
	e.cache.Invalidate(key)
	o.dc.AfterCommit(func() { e.cache.Invalidate(key) })
}

// Get reads one object by key. For versioned types a nil version returns
// the head (nil if there is none) and a non-nil version returns exactly that
// version. fastLoad skips dependent collections. A missing object is
// (nil, nil).
func (e *Engine) Get(ctx context.Context, typeName string, key uuid.UUID, version *uuid.UUID, principal model.Principal, fastLoad bool) (any, error) {
	start := time.Now()
	obj, err := e.get(ctx, typeName, key, version, fastLoad)
	e.observe(typeName, "get", key, start, err)
	if err == nil && obj != nil {
		e.log.Debug().Str("type", typeName).Str("key", key.String()).Str("principal", principal.Name).Msg("read")
	}
	return obj, err
}

func (e *Engine) get(ctx context.Context, typeName string, key uuid.UUID, version *uuid.UUID, fastLoad bool) (any, error) {
	_, root, err := e.typeMaps(typeName)
	if err != nil {
		return nil, err
	}
	if key == uuid.Nil {
		return nil, formalConstraint(typeName, key, "get requires a key")
	}
	if !root.Versioned() {
		version = nil
	}

	if !fastLoad {
		if hit, ok := e.cached(typeName, key, version); ok {
			return hit, nil
		}
	}

	rd, inTx := e.reader(ctx)
	obj, err := e.load(ctx, rd, typeName, key, version, fastLoad)
	if err != nil || obj == nil {
		return nil, err
	}
	if !fastLoad && !inTx && isCurrent(obj) {
		e.cache.Put(key, versionKeyOf(obj), model.Clone(obj))
	}
	return obj, nil
}

// cached returns a copy of the cached object for key if it is of typeName's
// Go type and matches the requested version.
func (e *Engine) cached(typeName string, key uuid.UUID, version *uuid.UUID) (any, bool) {
	var (
		hit any
		ok  bool
	)
	if version != nil {
		hit, ok = e.cache.GetVersion(key, *version)
	} else {
		hit, ok = e.cache.Get(key)
	}
	if !ok {
		return nil, false
	}
	if e.checkObject(typeName, hit) != nil {
		return nil, false
	}
	return model.Clone(hit), true
}

func isCurrent(obj any) bool {
	if vo, ok := obj.(model.VersionedObject); ok {
		return vo.Version().IsHead()
	}
	return true
}

func versionKeyOf(obj any) uuid.UUID {
	if vo, ok := obj.(model.VersionedObject); ok {
		return vo.Version().VersionKey
	}
	return uuid.Nil
}

// Query returns the current objects of typeName matching expr (nil matches
// everything), skipping offset and returning at most limit (0 = no limit),
// together with the total match count. Versioned types return head versions
// with collections loaded; reference data returns non-obsolete rows.
func (e *Engine) Query(ctx context.Context, typeName string, expr filter.Expr, offset, limit int, principal model.Principal) ([]any, int64, error) {
	start := time.Now()
	items, total, err := e.query(ctx, typeName, expr, offset, limit, false)
	e.observe(typeName, "query", uuid.Nil, start, err)
	if err == nil {
		e.log.Debug().Str("type", typeName).Int64("total", total).Str("principal", principal.Name).Msg("query")
	}
	return items, total, err
}

// QueryAny is Query over a versioned family or abstract type that returns
// each item as its most specific registered type, as GetAny does.
func (e *Engine) QueryAny(ctx context.Context, typeName string, expr filter.Expr, offset, limit int, principal model.Principal) ([]any, int64, error) {
	start := time.Now()
	items, total, err := e.query(ctx, typeName, expr, offset, limit, true)
	e.observe(typeName, "query", uuid.Nil, start, err)
	if err == nil {
		e.log.Debug().Str("type", typeName).Int64("total", total).Str("principal", principal.Name).Msg("query any")
	}
	return items, total, err
}

func (e *Engine) query(ctx context.Context, typeName string, expr filter.Expr, offset, limit int, dispatch bool) ([]any, int64, error) {
	_, root, err := e.typeMaps(typeName)
	if err != nil {
		return nil, 0, err
	}
	if offset < 0 || limit < 0 {
		return nil, 0, formalConstraint(typeName, uuid.Nil, "offset and limit must not be negative")
	}

	sel, err := e.mapper.Select(typeName)
	if err != nil {
		return nil, 0, err
	}
	current, err := e.mapper.ColumnRef(typeName, "ObsoletionTime")
	if err != nil {
		return nil, 0, err
	}
	preds := []queryir.Predicate{queryir.IsNull{Column: current}}
	if expr != nil {
		pred, err := e.mapper.TranslatePredicate(typeName, expr)
		if err != nil {
			return nil, 0, err
		}
		preds = append(preds, pred)
	}
	sel.Filter = queryir.Conj(preds...)

	rd, _ := e.reader(ctx)
	total, err := rd.Count(ctx, sel)
	if err != nil {
		return nil, 0, err
	}
	sel.Offset, sel.Limit = offset, limit
	rows, err := rd.Select(ctx, sel)
	if err != nil {
		return nil, 0, err
	}

	dispatch = dispatch && root.Versioned()
	items := make([]any, 0, len(rows))
	for _, row := range rows {
		obj, err := e.hydrate(ctx, rd, typeName, root, row, dispatch)
		if err != nil {
			return nil, 0, err
		}
		if dispatch {
			if obj, err = e.reload(ctx, rd, root, typeName, obj); err != nil {
				return nil, 0, err
			}
		}
		items = append(items, obj)
	}
	return items, total, nil
}

// reload reads the version of a fast-loaded obj again as its stored
// concrete type, with collections.
func (e *Engine) reload(ctx context.Context, rd *store.Runner, root *mapping.TypeMap, typeName string, obj any) (any, error) {
	v := obj.(model.VersionedObject).Version()
	actual, err := e.resolveType(ctx, rd, root.Name, v.VersionKey)
	if err != nil {
		return nil, err
	}
	if actual == "" {
		actual = typeName
	}
	out, err := e.load(ctx, rd, actual, v.Key, &v.VersionKey, false)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, formalConstraint(typeName, v.Key, "version %s is not a %s", v.VersionKey, actual)
	}
	return out, nil
}

// load reads one object by key (and version, for versioned types).
func (e *Engine) load(ctx context.Context, rd *store.Runner, typeName string, key uuid.UUID, version *uuid.UUID, fastLoad bool) (any, error) {
	_, root, err := e.typeMaps(typeName)
	if err != nil {
		return nil, err
	}
	sel, err := e.mapper.Select(typeName)
	if err != nil {
		return nil, err
	}
	keyPred, err := e.propertyEquals(typeName, "Key", key)
	if err != nil {
		return nil, err
	}
	preds := []queryir.Predicate{keyPred}
	if root.Versioned() {
		var p queryir.Predicate
		if version != nil {
			p, err = e.propertyEquals(typeName, "VersionKey", *version)
		} else {
			var col queryir.Column
			col, err = e.mapper.ColumnRef(typeName, "ObsoletionTime")
			p = queryir.IsNull{Column: col}
		}
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	sel.Filter = queryir.Conj(preds...)

	row, err := rd.SelectOne(ctx, sel)
	if err != nil || row == nil {
		return nil, err
	}
	return e.hydrate(ctx, rd, typeName, root, row, fastLoad)
}

// hydrate builds a model object from a joined row, loading collections of
// versioned roots unless fastLoad.
func (e *Engine) hydrate(ctx context.Context, rd *store.Runner, typeName string, root *mapping.TypeMap, row store.Row, fastLoad bool) (any, error) {
	obj, err := e.mapper.NewInstance(typeName)
	if err != nil {
		return nil, err
	}
	if err := e.mapper.MapToModel(typeName, row, obj); err != nil {
		return nil, err
	}
	if !root.Versioned() {
		return obj, nil
	}
	v := obj.(model.VersionedObject).Version()
	if !fastLoad {
		if err := e.loadCollections(ctx, rd, typeName, obj, v.Key, v.VersionSequence); err != nil {
			return nil, err
		}
	}
	v.SetLoaded(!fastLoad)
	return obj, nil
}

// propertyEquals builds "property = value" over Select(typeName) aliases.
func (e *Engine) propertyEquals(typeName, property string, value any) (queryir.Predicate, error) {
	col, err := e.mapper.ColumnRef(typeName, property)
	if err != nil {
		return nil, err
	}
	v, err := mapping.ToStorage(value)
	if err != nil {
		return nil, err
	}
	return queryir.Compare{Column: col, Op: queryir.OpEq, Value: v}, nil
}

// columnEquals builds an unqualified "column = value" for statements.
func columnEquals(column string, value any) (queryir.Predicate, error) {
	v, err := mapping.ToStorage(value)
	if err != nil {
		return nil, err
	}
	return queryir.Compare{Column: queryir.Column{Name: column}, Op: queryir.OpEq, Value: v}, nil
}

// exists reports whether table has a row with column = key.
func exists(ctx context.Context, rd *store.Runner, table, column string, key uuid.UUID) (bool, error) {
	sel := queryir.Select{
		From:    queryir.Table{Name: table, Alias: "t"},
		Columns: []queryir.Column{queryir.Col("t", column)},
		Filter:  queryir.Compare{Column: queryir.Col("t", column), Op: queryir.OpEq, Value: key.String()},
		OrderBy: []queryir.Order{{Column: queryir.Col("t", column)}},
	}
	n, err := rd.Count(ctx, sel)
	return n > 0, err
}

// insertPlain writes a new reference-data row.
func (e *Engine) insertPlain(o *operation, tm *mapping.TypeMap, obj any) error {
	ref := obj.(model.ReferenceObject)
	b, nv := ref.Base(), ref.Reference()
	keyCol, _ := tm.Column("Key")

	if b.Key == uuid.Nil {
		b.Key = e.keys.NewKey()
	} else {
		found, err := exists(o.ctx, o.runner(), tm.Table, keyCol, b.Key)
		if err != nil {
			return err
		}
		if found {
			return formalConstraint(o.typeName, b.Key, "key already exists")
		}
	}
	b.CreatedByKey = o.principal.Key
	b.CreationTime = o.now
	b.ObsoletedByKey, b.ObsoletionTime = nil, nil
	nv.UpdatedByKey, nv.UpdatedTime = nil, nil

	if err := o.pre(Inserting, b.Key, obj); err != nil {
		return err
	}
	row, err := e.mapper.MapToStorage(o.typeName, obj)
	if err != nil {
		return err
	}
	if err := o.runner().Insert(o.ctx, tm.Table, row); err != nil {
		return err
	}
	e.post(o, Inserted, b.Key, obj, nil)
	return nil
}

// updatePlain rewrites a reference-data row in place, keeping its creation
// and obsoletion stamps.
func (e *Engine) updatePlain(o *operation, tm *mapping.TypeMap, obj any) error {
	ref := obj.(model.ReferenceObject)
	b, nv := ref.Base(), ref.Reference()
	if b.Key == uuid.Nil {
		return formalConstraint(o.typeName, b.Key, "update requires a key")
	}
	existing, err := e.load(o.ctx, o.runner(), o.typeName, b.Key, nil, true)
	if err != nil {
		return err
	}
	if existing == nil {
		return notFound(o.typeName, b.Key)
	}
	prev := existing.(model.Identified).Base()
	b.CreatedByKey, b.CreationTime = prev.CreatedByKey, prev.CreationTime
	b.ObsoletedByKey, b.ObsoletionTime = prev.ObsoletedByKey, prev.ObsoletionTime
	updater, now := o.principal.Key, o.now
	nv.UpdatedByKey, nv.UpdatedTime = &updater, &now

	if err := o.pre(Updating, b.Key, obj); err != nil {
		return err
	}
	e.invalidate(o, b.Key)

	row, err := e.mapper.MapToStorage(o.typeName, obj)
	if err != nil {
		return err
	}
	keyCol, _ := tm.Column("Key")
	delete(row, keyCol)
	where, err := columnEquals(keyCol, b.Key)
	if err != nil {
		return err
	}
	if _, err := o.runner().Update(o.ctx, tm.Table, row, where); err != nil {
		return err
	}
	e.post(o, Updated, b.Key, obj, nil)
	return nil
}

// obsoletePlain stamps the obsoletion columns of an active row.
func (e *Engine) obsoletePlain(o *operation, tm *mapping.TypeMap, obj any) (any, error) {
	key := keyOf(obj)
	if key == uuid.Nil {
		return nil, formalConstraint(o.typeName, key, "obsolete requires a key")
	}
	existing, err := e.load(o.ctx, o.runner(), o.typeName, key, nil, true)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, notFound(o.typeName, key)
	}
	b := existing.(model.Identified).Base()
	if b.IsObsolete() {
		return nil, newError(ErrCodeNotFound, o.typeName, key, "already obsolete")
	}
	if err := o.pre(Obsoleting, key, existing); err != nil {
		return nil, err
	}
	e.invalidate(o, key)

	by, now := o.principal.Key, o.now
	b.ObsoletedByKey, b.ObsoletionTime = &by, &now
	if err := e.stampObsolete(o, tm, "Key", key, by, now); err != nil {
		return nil, err
	}
	e.post(o, Obsoleted, key, existing, nil)
	return existing, nil
}

// stampObsolete sets obsoleted_by/obsolete_utc on the row of tm whose
// property equals value and which is not yet obsolete.
func (e *Engine) stampObsolete(o *operation, tm *mapping.TypeMap, property string, value uuid.UUID, by uuid.UUID, at time.Time) error {
	col, _ := tm.Column(property)
	byCol, _ := tm.Column("ObsoletedByKey")
	atCol, _ := tm.Column("ObsoletionTime")
	where, err := columnEquals(col, value)
	if err != nil {
		return err
	}
	n, err := o.runner().Update(o.ctx, tm.Table,
		store.Row{byCol: by.String(), atCol: mapping.FormatTime(at)},
		queryir.Conj(where, queryir.IsNull{Column: queryir.Column{Name: atCol}}))
	if err != nil {
		return err
	}
	if n == 0 {
		return concurrentModification(o.typeName, value, "row was obsoleted concurrently")
	}
	return nil
}

// BaseRepository is the typed surface of one mapped type.
type BaseRepository[T any] struct {
	engine   *Engine
	typeName string
}

// NewBaseRepository returns the repository of the type registered for T.
func NewBaseRepository[T any](e *Engine) (*BaseRepository[T], error) {
	var zero T
	name, ok := e.registry.TypeOf(reflect.TypeOf(zero))
	if !ok {
		return nil, formalConstraint("", uuid.Nil, "no type registered for %T", zero)
	}
	return &BaseRepository[T]{engine: e, typeName: name}, nil
}

func mustBase[T any](e *Engine) *BaseRepository[T] {
	r, err := NewBaseRepository[T](e)
	if err != nil {
		panic(err)
	}
	return r
}

// TypeName returns the mapped type name.
func (r *BaseRepository[T]) TypeName() string { return r.typeName }

// Insert writes obj and returns the stored copy.
func (r *BaseRepository[T]) Insert(ctx context.Context, obj *T, principal model.Principal, mode TxMode) (*T, error) {
	return typed[T](r.engine.Insert(ctx, r.typeName, obj, principal, mode))
}

// Update writes a changed obj and returns the stored copy.
func (r *BaseRepository[T]) Update(ctx context.Context, obj *T, principal model.Principal, mode TxMode) (*T, error) {
	return typed[T](r.engine.Update(ctx, r.typeName, obj, principal, mode))
}

// Obsolete retires obj and returns the stored object.
func (r *BaseRepository[T]) Obsolete(ctx context.Context, obj *T, principal model.Principal, mode TxMode) (*T, error) {
	return typed[T](r.engine.Obsolete(ctx, r.typeName, obj, principal, mode))
}

// Get reads one object; see Engine.Get.
func (r *BaseRepository[T]) Get(ctx context.Context, key uuid.UUID, version *uuid.UUID, principal model.Principal, fastLoad bool) (*T, error) {
	return typed[T](r.engine.Get(ctx, r.typeName, key, version, principal, fastLoad))
}

// Query returns one page of current objects matching expr.
func (r *BaseRepository[T]) Query(ctx context.Context, expr filter.Expr, offset, limit int, principal model.Principal) (Page[T], error) {
	items, total, err := r.engine.Query(ctx, r.typeName, expr, offset, limit, principal)
	if err != nil {
		return Page[T]{}, err
	}
	page := Page[T]{Items: make([]*T, 0, len(items)), Total: total, Offset: offset, Limit: limit}
	for _, it := range items {
		page.Items = append(page.Items, it.(*T))
	}
	return page, nil
}

func typed[T any](obj any, err error) (*T, error) {
	if err != nil || obj == nil {
		return nil, err
	}
	return obj.(*T), nil
}
