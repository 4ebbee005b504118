package schema

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode categorizes schema errors.
type ErrorCode string

const (
	// ErrCodeSchemaLookup indicates missing or garbled metadata during a build.
	ErrCodeSchemaLookup ErrorCode = "SCHEMA_LOOKUP"

	// ErrCodeAttributeNotFound indicates a predicate on an attribute the
	// query-set does not project.
	ErrCodeAttributeNotFound ErrorCode = "ATTRIBUTE_NOT_FOUND"

	// ErrCodeInvalidDocument indicates a meta file that fails schema validation.
	ErrCodeInvalidDocument ErrorCode = "INVALID_DOCUMENT"

	// ErrCodeUnknownQuerySet indicates a query-set id missing from a catalog.
	ErrCodeUnknownQuerySet ErrorCode = "UNKNOWN_QUERY_SET"

	// ErrCodeTableMismatch indicates a query whose tables differ from the
	// tables of the query-set it was filed under.
	ErrCodeTableMismatch ErrorCode = "TABLE_MISMATCH"
)

// SchemaLookupError aborts a query-set build. No partial query-set is ever
// returned alongside it.
type SchemaLookupError struct {
	QuerySet  int
	Attribute string
	Reason    string
	Err       error
}

func (e *SchemaLookupError) Error() string {
	msg := fmt.Sprintf("%s: query-set %d: %s", ErrCodeSchemaLookup, e.QuerySet, e.Reason)
	if e.Attribute != "" {
		msg += fmt.Sprintf(" (attribute=%s)", e.Attribute)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SchemaLookupError) Unwrap() error {
	return e.Err
}

// AttributeNotFoundError reports a selection attribute that has no slot.
type AttributeNotFoundError struct {
	QuerySet  int
	Attribute string
	Known     []string
}

func (e *AttributeNotFoundError) Error() string {
	return fmt.Sprintf("%s: query-set %d has no attribute %q (known: %s)",
		ErrCodeAttributeNotFound, e.QuerySet, e.Attribute, strings.Join(e.Known, ", "))
}

// UnknownQuerySetError reports a lookup of an id the catalog does not hold.
type UnknownQuerySetError struct {
	ID int
}

func (e *UnknownQuerySetError) Error() string {
	return fmt.Sprintf("%s: no query-set with id %d", ErrCodeUnknownQuerySet, e.ID)
}

// TableMismatchError reports a query vectorized against a query-set that
// joins different tables.
type TableMismatchError struct {
	QuerySet int
	Want     []string
	Got      []string
}

func (e *TableMismatchError) Error() string {
	return fmt.Sprintf("%s: query-set %d joins [%s], query reads [%s]",
		ErrCodeTableMismatch, e.QuerySet, strings.Join(e.Want, ", "), strings.Join(e.Got, ", "))
}

// DocumentError reports a meta file that failed structural or semantic
// validation at load time.
type DocumentError struct {
	Path   string
	Issues []string
}

func (e *DocumentError) Error() string {
	if len(e.Issues) == 1 {
		return fmt.Sprintf("%s: %s: %s", ErrCodeInvalidDocument, e.Path, e.Issues[0])
	}
	return fmt.Sprintf("%s: %s: %d issues:\n  %s", ErrCodeInvalidDocument, e.Path, len(e.Issues), strings.Join(e.Issues, "\n  "))
}

// IsSchemaLookup returns true if err is a SchemaLookupError.
// Uses errors.As to handle wrapped errors.
func IsSchemaLookup(err error) bool {
	var se *SchemaLookupError
	return errors.As(err, &se)
}

// IsAttributeNotFound returns true if err is an AttributeNotFoundError.
func IsAttributeNotFound(err error) bool {
	var ae *AttributeNotFoundError
	return errors.As(err, &ae)
}

// IsTableMismatch reports whether err is a TableMismatchError.
func IsTableMismatch(err error) bool {
	var te *TableMismatchError
	return errors.As(err, &te)
}
