package mapping

import (
	"errors"
	"fmt"
)

// ErrMapping is the sentinel wrapped by every MappingError.
var ErrMapping = errors.New("mapping error")

// MappingError reports a model/storage mapping failure: an unknown type,
// an unmapped property, unsupported navigation or an unconvertible value.
type MappingError struct {
	Type     string
	Property string
	Message  string
}

func (e *MappingError) Error() string {
	if e.Property != "" {
		return fmt.Sprintf("mapping %s.%s: %s", e.Type, e.Property, e.Message)
	}
	return fmt.Sprintf("mapping %s: %s", e.Type, e.Message)
}

// Unwrap allows errors.Is(err, ErrMapping).
func (e *MappingError) Unwrap() error {
	return ErrMapping
}

func mappingErr(typeName, property, format string, args ...any) *MappingError {
	return &MappingError{Type: typeName, Property: property, Message: fmt.Sprintf(format, args...)}
}

// IsMappingError reports whether err is (or wraps) a mapping error.
func IsMappingError(err error) bool {
	return errors.Is(err, ErrMapping)
}
