package mapping

import (
	"reflect"
	"sync"

	"github.com/roach88/vstore/internal/queryir"
)

// Mapper converts model objects to storage rows and back, and translates
// model predicates to storage predicates, driven by a mapping Table.
// A Mapper is safe for concurrent use.
type Mapper struct {
	table *Table

	mu       sync.RWMutex
	bindings map[string]reflect.Type

	fields sync.Map // fieldKey → []int
}

type fieldKey struct {
	typ  reflect.Type
	name string
}

// LevelRow is the storage row of one level of a type chain.
type LevelRow struct {
	Type *TypeMap
	Row  queryir.Row
}

// New creates a mapper over a loaded table.
func New(table *Table) *Mapper {
	return &Mapper{table: table, bindings: map[string]reflect.Type{}}
}

// NewDefault loads the embedded table and creates a mapper over it.
func NewDefault() (*Mapper, error) {
	table, err := Load()
	if err != nil {
		return nil, err
	}
	return New(table), nil
}

// Table returns the mapping table.
func (m *Mapper) Table() *Table {
	return m.table
}

// Bind associates a mapped type name with a Go struct type (given as a
// value or pointer prototype). Bound types are used to validate predicate
// values and to allocate instances with NewInstance.
func (m *Mapper) Bind(typeName string, prototype any) error {
	if _, ok := m.table.Type(typeName); !ok {
		return mappingErr(typeName, "", "unknown type")
	}
	t := reflect.TypeOf(prototype)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return mappingErr(typeName, "", "prototype must be a struct, got %v", reflect.TypeOf(prototype))
	}
	m.mu.Lock()
	m.bindings[typeName] = t
	m.mu.Unlock()
	return nil
}

// Bound returns the Go type bound to typeName.
func (m *Mapper) Bound(typeName string) (reflect.Type, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.bindings[typeName]
	return t, ok
}

// NewInstance allocates a zero value of the Go type bound to typeName and
// returns a pointer to it.
func (m *Mapper) NewInstance(typeName string) (any, error) {
	t, ok := m.Bound(typeName)
	if !ok {
		return nil, mappingErr(typeName, "", "no Go type bound")
	}
	return reflect.New(t).Interface(), nil
}

// Column resolves a property of typeName (searching ancestors) to the
// owning type and column.
func (m *Mapper) Column(typeName, property string) (*TypeMap, string, error) {
	chain, err := m.table.Chain(typeName)
	if err != nil {
		return nil, "", err
	}
	for i := len(chain) - 1; i >= 0; i-- {
		if col, ok := chain[i].Column(property); ok {
			return chain[i], col, nil
		}
	}
	return nil, "", mappingErr(typeName, property, "property is not mapped")
}

// MapToStorage converts the properties declared on typeName itself to a
// storage row for its own table. obj may be a struct or pointer to struct
// that carries those fields (directly or through embedding).
func (m *Mapper) MapToStorage(typeName string, obj any) (queryir.Row, error) {
	tm, ok := m.table.Type(typeName)
	if !ok {
		return nil, mappingErr(typeName, "", "unknown type")
	}
	v, err := structValue(typeName, obj)
	if err != nil {
		return nil, err
	}
	row := make(queryir.Row, len(tm.Properties))
	for _, p := range tm.Properties {
		f, err := m.field(typeName, v, p.Name)
		if err != nil {
			return nil, err
		}
		val, err := toStorage(f)
		if err != nil {
			return nil, mappingErr(typeName, p.Name, "%v", err)
		}
		row[p.Column] = val
	}
	return row, nil
}

// ChainRows maps obj to one row per level of typeName's chain, root first.
func (m *Mapper) ChainRows(typeName string, obj any) ([]LevelRow, error) {
	chain, err := m.table.Chain(typeName)
	if err != nil {
		return nil, err
	}
	out := make([]LevelRow, 0, len(chain))
	for _, tm := range chain {
		row, err := m.MapToStorage(tm.Name, obj)
		if err != nil {
			return nil, err
		}
		out = append(out, LevelRow{Type: tm, Row: row})
	}
	return out, nil
}

// MapToModel fills dst (a pointer to struct) from row for every property of
// typeName and its ancestors. Columns absent from row are left untouched.
func (m *Mapper) MapToModel(typeName string, row queryir.Row, dst any) error {
	chain, err := m.table.Chain(typeName)
	if err != nil {
		return err
	}
	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return mappingErr(typeName, "", "destination must be a non-nil pointer to struct, got %T", dst)
	}
	v = v.Elem()
	for _, tm := range chain {
		for _, p := range tm.Properties {
			src, present := row[p.Column]
			if !present {
				continue
			}
			f, err := m.field(typeName, v, p.Name)
			if err != nil {
				return err
			}
			if err := fromStorage(src, f); err != nil {
				return mappingErr(typeName, p.Name, "column %s: %v", p.Column, err)
			}
		}
	}
	return nil
}

// ToModel allocates a T and fills it from row.
func ToModel[T any](m *Mapper, typeName string, row queryir.Row) (*T, error) {
	dst := new(T)
	if err := m.MapToModel(typeName, row, dst); err != nil {
		return nil, err
	}
	return dst, nil
}

// Collection returns the addressable slice value of a named collection
// on obj, which must be a pointer to struct.
func (m *Mapper) Collection(typeName string, obj any, name string) (reflect.Value, error) {
	v := reflect.ValueOf(obj)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return reflect.Value{}, mappingErr(typeName, name, "collections require a non-nil pointer, got %T", obj)
	}
	f, err := m.field(typeName, v.Elem(), name)
	if err != nil {
		return reflect.Value{}, err
	}
	if f.Kind() != reflect.Slice {
		return reflect.Value{}, mappingErr(typeName, name, "field is %s, not a slice", f.Type())
	}
	return f, nil
}

// Get reads a single property from obj.
func (m *Mapper) Get(typeName string, obj any, property string) (any, error) {
	v, err := structValue(typeName, obj)
	if err != nil {
		return nil, err
	}
	f, err := m.field(typeName, v, property)
	if err != nil {
		return nil, err
	}
	return f.Interface(), nil
}

// Set assigns value to a property of obj, which must be a pointer to
// struct. A nil value clears the field. A value of the field's element
// type is accepted for pointer fields.
func (m *Mapper) Set(typeName string, obj any, property string, value any) error {
	v := reflect.ValueOf(obj)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return mappingErr(typeName, property, "set requires a non-nil pointer, got %T", obj)
	}
	v = v.Elem()
	for v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	f, err := m.field(typeName, v, property)
	if err != nil {
		return err
	}
	if value == nil {
		f.Set(reflect.Zero(f.Type()))
		return nil
	}
	rv := reflect.ValueOf(value)
	switch {
	case rv.Type().AssignableTo(f.Type()):
		f.Set(rv)
	case f.Kind() == reflect.Pointer && rv.Type().AssignableTo(f.Type().Elem()):
		p := reflect.New(f.Type().Elem())
		p.Elem().Set(rv)
		f.Set(p)
	case rv.Kind() == reflect.Pointer && !rv.IsNil() && rv.Elem().Type().AssignableTo(f.Type()):
		f.Set(rv.Elem())
	default:
		return mappingErr(typeName, property, "cannot assign %T to %s", value, f.Type())
	}
	return nil
}

// field returns the struct field of v for property, by name through
// embedded structs. Indices are cached per Go type.
func (m *Mapper) field(typeName string, v reflect.Value, property string) (reflect.Value, error) {
	key := fieldKey{typ: v.Type(), name: property}
	if idx, ok := m.fields.Load(key); ok {
		return v.FieldByIndex(idx.([]int)), nil
	}
	sf, ok := v.Type().FieldByName(property)
	if !ok || !sf.IsExported() {
		return reflect.Value{}, mappingErr(typeName, property, "no field on Go type %s", v.Type())
	}
	m.fields.Store(key, sf.Index)
	return v.FieldByIndex(sf.Index), nil
}

func structValue(typeName string, obj any) (reflect.Value, error) {
	v := reflect.ValueOf(obj)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return reflect.Value{}, mappingErr(typeName, "", "nil object")
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return reflect.Value{}, mappingErr(typeName, "", "object must be a struct, got %T", obj)
	}
	return v, nil
}

// CollectionRef is a resolved collection declaration.
type CollectionRef struct {
	Collection
	Owner  *TypeMap
	Member *TypeMap
}

// Collections lists the collections declared on typeName's chain, in
// declaration order, root first.
func (m *Mapper) Collections(typeName string) ([]CollectionRef, error) {
	chain, err := m.table.Chain(typeName)
	if err != nil {
		return nil, err
	}
	var out []CollectionRef
	for _, tm := range chain {
		for _, c := range tm.Collections {
			member, ok := m.table.Type(c.Type)
			if !ok {
				return nil, mappingErr(typeName, c.Name, "unknown member type %q", c.Type)
			}
			out = append(out, CollectionRef{Collection: c, Owner: tm, Member: member})
		}
	}
	return out, nil
}
