package persistence

import (
	"fmt"
	"reflect"

	"github.com/google/uuid"

	"github.com/roach88/vstore/internal/mapping"
)

// ClassProperty is the root property holding the class concept key of
// entity and act versions.
const ClassProperty = "ClassConceptKey"

// TypeInfo registers one concrete type with the engine.
type TypeInfo struct {
	// Name is the mapped type name.
	Name string

	// Prototype is a value of the Go type (e.g. model.Patient{}).
	Prototype any

	// Family is the versioned root type name; empty for association and
	// reference types.
	Family string

	// Class is the class concept key that selects this type within its
	// family. uuid.Nil if the family is not classified.
	Class uuid.UUID

	// Refines names a type whose discriminator property selects this one
	// (Observation → TextObservation by ValueType).
	Refines               string
	DiscriminatorProperty string
	DiscriminatorValue    string
}

// Registry maps class keys and discriminators to concrete types. It is
// filled once at engine construction and read-only afterwards.
type Registry struct {
	types    map[string]TypeInfo
	byGo     map[reflect.Type]string
	byClass  map[string]map[uuid.UUID]string
	byValue  map[string]map[string]string
	discProp map[string]string
	order    []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		types:    map[string]TypeInfo{},
		byGo:     map[reflect.Type]string{},
		byClass:  map[string]map[uuid.UUID]string{},
		byValue:  map[string]map[string]string{},
		discProp: map[string]string{},
	}
}

// DefaultRegistry registers every model type.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, group := range [][]TypeInfo{entityTypes(), actTypes(), conceptTypes(), referenceTypes()} {
		for _, info := range group {
			if err := r.Register(info); err != nil {
				panic(err)
			}
		}
	}
	return r
}

// Register adds a type. Names, Go types, classes and discriminator values
// must be unique.
func (r *Registry) Register(info TypeInfo) error {
	if _, dup := r.types[info.Name]; dup {
		return fmt.Errorf("type %s already registered", info.Name)
	}
	goType := reflect.TypeOf(info.Prototype)
	for goType != nil && goType.Kind() == reflect.Pointer {
		goType = goType.Elem()
	}
	if goType == nil {
		return fmt.Errorf("type %s has no prototype", info.Name)
	}
	if other, dup := r.byGo[goType]; dup {
		return fmt.Errorf("Go type %s already registered as %s", goType, other)
	}

	if info.Refines != "" {
		if info.DiscriminatorProperty == "" || info.DiscriminatorValue == "" {
			return fmt.Errorf("type %s refines %s without a discriminator", info.Name, info.Refines)
		}
		if prop, ok := r.discProp[info.Refines]; ok && prop != info.DiscriminatorProperty {
			return fmt.Errorf("type %s: %s is already discriminated by %s", info.Name, info.Refines, prop)
		}
		if r.byValue[info.Refines] == nil {
			r.byValue[info.Refines] = map[string]string{}
		}
		if other, dup := r.byValue[info.Refines][info.DiscriminatorValue]; dup {
			return fmt.Errorf("discriminator %q of %s already selects %s", info.DiscriminatorValue, info.Refines, other)
		}
		r.byValue[info.Refines][info.DiscriminatorValue] = info.Name
		r.discProp[info.Refines] = info.DiscriminatorProperty
	} else if info.Class != uuid.Nil {
		if r.byClass[info.Family] == nil {
			r.byClass[info.Family] = map[uuid.UUID]string{}
		}
		if other, dup := r.byClass[info.Family][info.Class]; dup {
			return fmt.Errorf("class %s of %s already selects %s", info.Class, info.Family, other)
		}
		r.byClass[info.Family][info.Class] = info.Name
	}

	r.types[info.Name] = info
	r.byGo[goType] = info.Name
	r.order = append(r.order, info.Name)
	return nil
}

// Lookup returns the registration of a type.
func (r *Registry) Lookup(name string) (TypeInfo, bool) {
	info, ok := r.types[name]
	return info, ok
}

// TypeOf returns the type name registered for a Go type.
func (r *Registry) TypeOf(t reflect.Type) (string, bool) {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	name, ok := r.byGo[t]
	return name, ok
}

// Names returns registered type names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// ByClass returns the type selected by a class key within a family.
func (r *Registry) ByClass(family string, class uuid.UUID) (string, bool) {
	name, ok := r.byClass[family][class]
	return name, ok
}

// Classified reports whether versions of family carry a class key.
func (r *Registry) Classified(family string) bool {
	return len(r.byClass[family]) > 0
}

// Discriminator returns the property that refines typeName, if any.
func (r *Registry) Discriminator(typeName string) (string, bool) {
	prop, ok := r.discProp[typeName]
	return prop, ok
}

// Refine returns the sub-type selected by a discriminator value.
func (r *Registry) Refine(typeName, value string) (string, bool) {
	name, ok := r.byValue[typeName][value]
	return name, ok
}

// bind registers every type's prototype with the mapper.
func (r *Registry) bind(m *mapping.Mapper) error {
	for _, name := range r.order {
		if err := m.Bind(name, r.types[name].Prototype); err != nil {
			return err
		}
	}
	return nil
}

// stamp sets the class key (when unset) and the discriminator value that
// identify typeName on obj. A class key that would resolve to another type
// is a formal constraint violation; only a family root accepts class keys
// the registry does not know.
func (r *Registry) stamp(m *mapping.Mapper, typeName string, obj any) error {
	info, ok := r.types[typeName]
	if !ok {
		return nil
	}
	if info.Class != uuid.Nil {
		v, err := m.Get(typeName, obj, ClassProperty)
		if err != nil {
			return err
		}
		cur, _ := v.(uuid.UUID)
		switch other, known := r.byClass[info.Family][cur]; {
		case cur == uuid.Nil:
			if err := m.Set(typeName, obj, ClassProperty, info.Class); err != nil {
				return err
			}
		case cur == info.Class:
		case known:
			return formalConstraint(typeName, keyOf(obj), "class %s selects %s", cur, other)
		case typeName != info.Family:
			return formalConstraint(typeName, keyOf(obj), "class %s does not select %s", cur, typeName)
		}
	}
	for name := typeName; ; {
		info := r.types[name]
		if info.Refines == "" {
			return nil
		}
		if err := m.Set(typeName, obj, info.DiscriminatorProperty, info.DiscriminatorValue); err != nil {
			return err
		}
		name = info.Refines
	}
}
