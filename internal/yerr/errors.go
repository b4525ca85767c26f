// Package yerr defines the error taxonomy shared by the persistence layer.
//
// Four kinds exist:
//   - ValidationError: malformed key/query, rejected before any I/O
//   - IntegrityError: chunk-part sequence incomplete or corrupt on reassembly
//   - StoreError: underlying store failure, propagated unchanged
//   - UsageError: coalescing invoked with an unsupported option combination
//
// All are distinguishable via errors.Is / errors.As.
package yerr

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is checks.
var (
	ErrValidation = errors.New("validation error")
	ErrIntegrity  = errors.New("integrity error")
	ErrStore      = errors.New("store error")
	ErrUsage      = errors.New("usage error")
)

// ValidationError rejects malformed inputs before any I/O happens.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return "validation: " + e.Msg }
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Validationf builds a ValidationError.
func Validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// IntegrityError reports a broken chunk-part sequence or corrupt record.
// It is fatal for the read that hit it and is never masked.
type IntegrityError struct {
	Doc   string
	Clock uint32
	Msg   string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity: doc %q clock %d: %s", e.Doc, e.Clock, e.Msg)
}
func (e *IntegrityError) Is(target error) bool {
	return target == ErrIntegrity
}

// Integrityf builds an IntegrityError for a document/clock pair.
func Integrityf(doc string, clock uint32, format string, args ...any) error {
	return &IntegrityError{Doc: doc, Clock: clock, Msg: fmt.Sprintf(format, args...)}
}

// StoreError wraps an underlying store failure. The cause is preserved for
// errors.Is / errors.As; no retry happens below this layer.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return "store: " + e.Op + ": " + e.Err.Error() }
func (e *StoreError) Unwrap() error { return e.Err }
func (e *StoreError) Is(target error) bool {
	return target == ErrStore
}

// Storef wraps err with the failing operation name. Returns nil when err is nil.
func Storef(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

// UsageError rejects a coalescer enqueue synchronously, before buffering.
type UsageError struct {
	Msg string
}

func (e *UsageError) Error() string { return "usage: " + e.Msg }
func (e *UsageError) Is(target error) bool {
	return target == ErrUsage
}

// Usagef builds a UsageError.
func Usagef(format string, args ...any) error {
	return &UsageError{Msg: fmt.Sprintf(format, args...)}
}
