package persistence

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Sentinels for errors.Is. Every *PersistenceError unwraps to the sentinel
// of its code.
var (
	ErrFormalConstraint       = errors.New("formal constraint violation")
	ErrNotFound               = errors.New("not found")
	ErrReadonly               = errors.New("read-only object")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrCancelled              = errors.New("operation cancelled")
)

// ErrorCode categorizes persistence errors.
type ErrorCode string

const (
	// ErrCodeFormalConstraint indicates a usage error: a pre-assigned key
	// that already exists, an update without a key, a missing principal.
	ErrCodeFormalConstraint ErrorCode = "FORMAL_CONSTRAINT"

	// ErrCodeNotFound indicates the key is absent from storage.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeReadonly indicates the head version is flagged read-only.
	ErrCodeReadonly ErrorCode = "READONLY"

	// ErrCodeConcurrentModification indicates the head moved between read
	// and write, or the caller's version is not the head.
	ErrCodeConcurrentModification ErrorCode = "CONCURRENT_MODIFICATION"

	// ErrCodeCancelled indicates a pre-event handler vetoed the operation.
	ErrCodeCancelled ErrorCode = "CANCELLED"
)

// PersistenceError is returned by every engine operation that fails for a
// reason other than a mapping or storage error. Type and Key identify the
// offending object.
type PersistenceError struct {
	Code    ErrorCode
	Message string
	Type    string
	Key     uuid.UUID

	// Cause is the handler error for ErrCodeCancelled.
	Cause error
}

// Error implements the error interface.
func (e *PersistenceError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Type != "" && e.Key != uuid.Nil {
		msg = fmt.Sprintf("%s (type=%s, key=%s)", msg, e.Type, e.Key)
	} else if e.Type != "" {
		msg = fmt.Sprintf("%s (type=%s)", msg, e.Type)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the sentinel for the code and the cause, if any.
func (e *PersistenceError) Unwrap() []error {
	var sentinel error
	switch e.Code {
	case ErrCodeFormalConstraint:
		sentinel = ErrFormalConstraint
	case ErrCodeNotFound:
		sentinel = ErrNotFound
	case ErrCodeReadonly:
		sentinel = ErrReadonly
	case ErrCodeConcurrentModification:
		sentinel = ErrConcurrentModification
	case ErrCodeCancelled:
		sentinel = ErrCancelled
	}
	out := []error{}
	if sentinel != nil {
		out = append(out, sentinel)
	}
	if e.Cause != nil {
		out = append(out, e.Cause)
	}
	return out
}

func newError(code ErrorCode, typeName string, key uuid.UUID, format string, args ...any) *PersistenceError {
	return &PersistenceError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Type:    typeName,
		Key:     key,
	}
}

func formalConstraint(typeName string, key uuid.UUID, format string, args ...any) *PersistenceError {
	return newError(ErrCodeFormalConstraint, typeName, key, format, args...)
}

func notFound(typeName string, key uuid.UUID) *PersistenceError {
	return newError(ErrCodeNotFound, typeName, key, "no current version")
}

func concurrentModification(typeName string, key uuid.UUID, format string, args ...any) *PersistenceError {
	return newError(ErrCodeConcurrentModification, typeName, key, format, args...)
}

// IsFormalConstraint reports whether err is a formal-constraint violation.
func IsFormalConstraint(err error) bool {
	return errors.Is(err, ErrFormalConstraint)
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsReadonly reports whether err rejected a write to a read-only object.
func IsReadonly(err error) bool {
	return errors.Is(err, ErrReadonly)
}

// IsConcurrentModification reports whether err is an optimistic-check failure.
func IsConcurrentModification(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsCancelled reports whether a pre-event handler vetoed the operation.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}
