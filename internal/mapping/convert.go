package mapping

import (
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"
)

// TimeLayout is the storage form of timestamps: fixed-width UTC with
// nanoseconds, so text ordering matches time ordering.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

var (
	uuidType    = reflect.TypeOf(uuid.UUID{})
	timeType    = reflect.TypeOf(time.Time{})
	decimalType = reflect.TypeOf(decimal.Decimal{})
)

// FormatTime renders t in storage form.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime reads a storage timestamp.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		t, err = time.Parse(time.RFC3339Nano, s)
	}
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// NormalizeString returns s in Unicode NFC.
func NormalizeString(s string) string {
	return norm.NFC.String(s)
}

// ToStorage converts a Go value to its storage scalar: string, int64,
// float64, bool, []byte or nil.
func ToStorage(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	return toStorage(reflect.ValueOf(v))
}

func toStorage(v reflect.Value) (any, error) {
	switch v.Type() {
	case uuidType:
		id := v.Interface().(uuid.UUID)
		if id == uuid.Nil {
			return nil, nil
		}
		return id.String(), nil
	case timeType:
		t := v.Interface().(time.Time)
		if t.IsZero() {
			return nil, nil
		}
		return FormatTime(t), nil
	case decimalType:
		return v.Interface().(decimal.Decimal).String(), nil
	}

	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return nil, nil
		}
		return toStorage(v.Elem())
	case reflect.String:
		return NormalizeString(v.String()), nil
	case reflect.Bool:
		return v.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return int64(v.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return v.Float(), nil
	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			if v.IsNil() {
				return nil, nil
			}
			return append([]byte(nil), v.Bytes()...), nil
		}
	}
	return nil, fmt.Errorf("unsupported type %s", v.Type())
}

// fromStorage assigns a storage scalar to dst, which must be settable.
func fromStorage(src any, dst reflect.Value) error {
	if src == nil {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}
	if dst.Kind() == reflect.Pointer {
		elem := reflect.New(dst.Type().Elem())
		if err := fromStorage(src, elem.Elem()); err != nil {
			return err
		}
		dst.Set(elem)
		return nil
	}

	switch dst.Type() {
	case uuidType:
		s, err := asString(src)
		if err != nil {
			return err
		}
		id, err := uuid.Parse(s)
		if err != nil {
			return fmt.Errorf("parse uuid %q: %w", s, err)
		}
		dst.Set(reflect.ValueOf(id))
		return nil
	case timeType:
		if t, ok := src.(time.Time); ok {
			dst.Set(reflect.ValueOf(t.UTC()))
			return nil
		}
		s, err := asString(src)
		if err != nil {
			return err
		}
		t, err := ParseTime(s)
		if err != nil {
			return fmt.Errorf("parse time %q: %w", s, err)
		}
		dst.Set(reflect.ValueOf(t))
		return nil
	case decimalType:
		d, err := asDecimal(src)
		if err != nil {
			return err
		}
		dst.Set(reflect.ValueOf(d))
		return nil
	}

	switch dst.Kind() {
	case reflect.String:
		s, err := asString(src)
		if err != nil {
			return err
		}
		dst.SetString(s)
	case reflect.Bool:
		switch b := src.(type) {
		case bool:
			dst.SetBool(b)
		case int64:
			dst.SetBool(b != 0)
		default:
			return fmt.Errorf("cannot read %T as bool", src)
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := asInt(src)
		if err != nil {
			return err
		}
		dst.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32:
		n, err := asInt(src)
		if err != nil {
			return err
		}
		dst.SetUint(uint64(n))
	case reflect.Float32, reflect.Float64:
		f, err := asFloat(src)
		if err != nil {
			return err
		}
		dst.SetFloat(f)
	case reflect.Slice:
		b, ok := src.([]byte)
		if !ok || dst.Type().Elem().Kind() != reflect.Uint8 {
			return fmt.Errorf("cannot read %T as %s", src, dst.Type())
		}
		dst.SetBytes(append([]byte(nil), b...))
	default:
		return fmt.Errorf("unsupported type %s", dst.Type())
	}
	return nil
}

func asString(src any) (string, error) {
	switch s := src.(type) {
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	default:
		return "", fmt.Errorf("cannot read %T as string", src)
	}
}

func asInt(src any) (int64, error) {
	switch n := src.(type) {
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	case []byte:
		return strconv.ParseInt(string(n), 10, 64)
	default:
		return 0, fmt.Errorf("cannot read %T as integer", src)
	}
}

func asFloat(src any) (float64, error) {
	switch f := src.(type) {
	case float64:
		return f, nil
	case float32:
		return float64(f), nil
	case int64:
		return float64(f), nil
	case string:
		return strconv.ParseFloat(f, 64)
	case []byte:
		return strconv.ParseFloat(string(f), 64)
	default:
		return 0, fmt.Errorf("cannot read %T as float", src)
	}
}

func asDecimal(src any) (decimal.Decimal, error) {
	switch d := src.(type) {
	case string:
		return decimal.NewFromString(d)
	case []byte:
		return decimal.NewFromString(string(d))
	case float64:
		return decimal.NewFromFloat(d), nil
	case int64:
		return decimal.NewFromInt(d), nil
	default:
		return decimal.Decimal{}, fmt.Errorf("cannot read %T as decimal", src)
	}
}
