package catalog

import (
	"errors"
	"fmt"
)

// Sentinel errors matched by the typed errors below via errors.Is.
var (
	ErrSchema     = errors.New("relcat: schema conflict")
	ErrValidation = errors.New("relcat: validation failed")
	ErrIntegrity  = errors.New("relcat: integrity violation")
	ErrNotFound   = errors.New("relcat: not found")
)

// RowRef identifies an inbound row within a load batch.
type RowRef struct {
	Kind  Kind   // Row kind (dimension, fact, relationship)
	Table string // Logical table name
	Index int    // Position within its kind's slice in the batch
	Key   string // Natural key or batch handle, when the row has one
}

// String renders the reference as kind table[index] (key).
func (r RowRef) String() string {
	if r.Table == "" {
		return ""
	}
	s := fmt.Sprintf("%s %s[%d]", r.Kind, r.Table, r.Index)
	if r.Key != "" {
		s += fmt.Sprintf(" (%s)", r.Key)
	}
	return s
}

// SchemaError reports an invalid declaration or a conflict between a
// declared table and the structure already present in the store.
type SchemaError struct {
	Table   string
	Column  string
	Message string
}

func (e *SchemaError) Error() string {
	switch {
	case e.Table != "" && e.Column != "":
		return fmt.Sprintf("schema: %s.%s: %s", e.Table, e.Column, e.Message)
	case e.Table != "":
		return fmt.Sprintf("schema: %s: %s", e.Table, e.Message)
	default:
		return "schema: " + e.Message
	}
}

// Is reports whether target is ErrSchema.
func (e *SchemaError) Is(target error) bool {
	return target == ErrSchema
}

// ValidationError reports a malformed input row or query parameter.
// Row is zero for query-time validation.
type ValidationError struct {
	Row     RowRef
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return describe("validation", e.Row, e.Field, e.Message)
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// IntegrityError reports an unresolved link or a violated uniqueness or
// foreign-key constraint. Err carries the driver error when there is one.
type IntegrityError struct {
	Row     RowRef
	Field   string
	Message string
	Err     error
}

func (e *IntegrityError) Error() string {
	msg := describe("integrity", e.Row, e.Field, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is reports whether target is ErrIntegrity.
func (e *IntegrityError) Is(target error) bool {
	return target == ErrIntegrity
}

// Unwrap returns the underlying driver error.
func (e *IntegrityError) Unwrap() error {
	return e.Err
}

// NotFoundError reports a query naming an unknown entity or attribute.
type NotFoundError struct {
	Entity    string
	Attribute string // Empty when the entity itself is unknown
}

func (e *NotFoundError) Error() string {
	if e.Attribute != "" {
		return fmt.Sprintf("not found: %s has no attribute %q", e.Entity, e.Attribute)
	}
	return fmt.Sprintf("not found: entity %q", e.Entity)
}

// Is reports whether target is ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// IsSchemaError returns true if err is or wraps a SchemaError.
func IsSchemaError(err error) bool {
	return errors.Is(err, ErrSchema)
}

// IsValidationError returns true if err is or wraps a ValidationError.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsIntegrityError returns true if err is or wraps an IntegrityError.
func IsIntegrityError(err error) bool {
	return errors.Is(err, ErrIntegrity)
}

// IsNotFound returns true if err is or wraps a NotFoundError.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func describe(category string, row RowRef, field, message string) string {
	msg := category
	if ref := row.String(); ref != "" {
		msg += ": " + ref
	}
	if field != "" {
		msg += ": " + field
	}
	return msg + ": " + message
}
