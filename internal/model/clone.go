package model

import (
	"reflect"
	"time"

	"github.com/shopspring/decimal"
)

var (
	timeType    = reflect.TypeOf(time.Time{})
	decimalType = reflect.TypeOf(decimal.Decimal{})
)

// Clone returns a deep copy of a persisted object so that cached values are
// never shared with callers. obj must be a non-nil pointer to a struct.
// The loaded flag is preserved.
func Clone[T any](obj T) T {
	src := reflect.ValueOf(obj)
	if src.Kind() != reflect.Pointer || src.IsNil() {
		return obj
	}
	dst := reflect.New(src.Elem().Type())
	dst.Elem().Set(src.Elem())
	deepCopy(dst.Elem())
	return dst.Interface().(T)
}

// deepCopy replaces every pointer and slice reachable from v with a copy.
// v must be addressable. Values of time.Time and decimal.Decimal are treated
// as immutable.
func deepCopy(v reflect.Value) {
	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return
		}
		cp := reflect.New(v.Elem().Type())
		cp.Elem().Set(v.Elem())
		deepCopy(cp.Elem())
		v.Set(cp)
	case reflect.Slice:
		if v.IsNil() {
			return
		}
		cp := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		reflect.Copy(cp, v)
		for i := 0; i < cp.Len(); i++ {
			deepCopy(cp.Index(i))
		}
		v.Set(cp)
	case reflect.Struct:
		if v.Type() == timeType || v.Type() == decimalType {
			return
		}
		for i := 0; i < v.NumField(); i++ {
			f := v.Field(i)
			if f.CanSet() {
				deepCopy(f)
			}
		}
	}
}
