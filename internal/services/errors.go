package services

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/arnold/tribes-api/internal/logging"
)

// Error kinds. Every error returned by a service matches exactly one of these
// through errors.Is.
var (
	ErrValidation      = errors.New("validation failed")
	ErrNotFound        = errors.New("not found")
	ErrPersistence     = errors.New("persistence failure")
	ErrAuthorization   = errors.New("access denied")
	ErrConflict        = errors.New("conflict")
	ErrUnauthenticated = errors.New("unauthenticated")
)

// Error carries the kind of failure plus enough context for a field-level or
// user-visible message.
type Error struct {
	Kind    error
	Op      string // operation that failed, e.g. "goals.create"
	Field   string // offending input field for validation errors
	Message string
	Err     error // underlying store error, if any
}

func (e *Error) Error() string {
	parts := []string{e.Op}
	if e.Field != "" {
		parts = append(parts, e.Field)
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	} else {
		parts = append(parts, e.Kind.Error())
	}
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func invalid(op, field, format string, args ...any) error {
	return &Error{Kind: ErrValidation, Op: op, Field: field, Message: fmt.Sprintf(format, args...)}
}

func notFound(op, what string) error {
	return &Error{Kind: ErrNotFound, Op: op, Message: what + " not found"}
}

func forbidden(op, msg string) error {
	return &Error{Kind: ErrAuthorization, Op: op, Message: msg}
}

func conflict(op, msg string) error {
	return &Error{Kind: ErrConflict, Op: op, Message: msg}
}

// storeError classifies a gorm error. Record-not-found becomes NotFound for
// the named entity; anything else is logged and reported as a persistence
// failure.
func storeError(op, what string, err error) error {
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound(op, what)
	}
	logging.Logger.Error("store call failed", zap.String("op", op), zap.Error(err))
	return &Error{Kind: ErrPersistence, Op: op, Message: "data store unavailable", Err: err}
}
