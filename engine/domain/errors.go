package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across components.
var (
	// ErrNoBody signals an XML document without a body element; it triggers
	// the PDF fallback rather than a failure.
	ErrNoBody = errors.New("no body element")
	// ErrNotFound is returned by lookups with an unknown id.
	ErrNotFound = errors.New("document not found")
	// ErrEmptyText marks content too short to embed or store.
	ErrEmptyText = errors.New("empty text")
)

// ParseError is an item-level failure converting domain XML. The item is
// marked failed in the checkpoint and the pipeline continues.
type ParseError struct {
	URL     string
	Wrapped error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.URL, e.Wrapped)
}

func (e *ParseError) Unwrap() error { return e.Wrapped }

// ValidationError wraps a sentinel with field context.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %v: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}
