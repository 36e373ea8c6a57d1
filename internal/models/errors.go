package models

import (
	"errors"
	"fmt"
)

// ErrNotFound is matched by every *NotFoundError via errors.Is.
var ErrNotFound = errors.New("not found")

// Validation codes.
const (
	CodeExtension = "extension"
	CodeSize      = "size"
	CodeEmpty     = "empty"
)

// ValidationError reports a rejected input. No store is written when it is returned.
type ValidationError struct {
	Code   string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// NotFoundError reports an unknown or logically deleted entity.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// Is lets errors.Is(err, ErrNotFound) match.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// AdapterError wraps a failure of a backing service call.
type AdapterError struct {
	Adapter string
	Op      string
	Err     error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Adapter, e.Op, e.Err)
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}

// NewAdapterError wraps err, or returns nil when err is nil.
// An error that is already classified is returned unchanged.
func NewAdapterError(adapter, op string, err error) error {
	if err == nil {
		return nil
	}
	var nf *NotFoundError
	var ae *AdapterError
	if errors.As(err, &nf) || errors.As(err, &ae) {
		return err
	}
	return &AdapterError{Adapter: adapter, Op: op, Err: err}
}

// IsValidation reports whether err is a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
