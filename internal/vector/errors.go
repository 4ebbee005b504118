package vector

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes vectorization errors.
type ErrorCode string

const (
	// ErrCodeSlotOverflow indicates a query that does not fit the configured
	// number of predicate slots.
	ErrCodeSlotOverflow ErrorCode = "SLOT_OVERFLOW"

	// ErrCodeUnknownCategory indicates a literal missing from an attribute's
	// categorical encoding.
	ErrCodeUnknownCategory ErrorCode = "UNKNOWN_CATEGORY"

	// ErrCodeNonNumericValue indicates a literal on an integer attribute that
	// does not parse as a number.
	ErrCodeNonNumericValue ErrorCode = "NON_NUMERIC_VALUE"

	// ErrCodeZeroCardinality indicates a cardinality the log transform is
	// undefined for.
	ErrCodeZeroCardinality ErrorCode = "ZERO_CARDINALITY"
)

// SlotOverflowError reports a query with more selection predicates than
// slots, or a predicate whose attribute sits beyond the last slot.
type SlotOverflowError struct {
	QuerySet   int
	Predicates int
	Max        int
	// Attribute and Index are set when a single attribute's slot is out of range.
	Attribute string
	Index     int
}

func (e *SlotOverflowError) Error() string {
	if e.Attribute != "" {
		return fmt.Sprintf("%s: query-set %d: attribute %q has slot %d but only %d slots are configured",
			ErrCodeSlotOverflow, e.QuerySet, e.Attribute, e.Index, e.Max)
	}
	return fmt.Sprintf("%s: query-set %d: %d selection predicates exceed %d slots",
		ErrCodeSlotOverflow, e.QuerySet, e.Predicates, e.Max)
}

// UnknownCategoryError reports a literal absent from an attribute's
// categorical encoding.
type UnknownCategoryError struct {
	Attribute string
	Value     string
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("%s: value %q is not a known category of %q", ErrCodeUnknownCategory, e.Value, e.Attribute)
}

// NonNumericValueError reports a literal on an integer attribute that is not
// a number. Integer attributes have no categories to fall back on.
type NonNumericValueError struct {
	Attribute string
	Value     string
}

func (e *NonNumericValueError) Error() string {
	return fmt.Sprintf("%s: value %q of integer attribute %q is not a number", ErrCodeNonNumericValue, e.Value, e.Attribute)
}

// ZeroCardinalityLogError reports a cardinality of zero or less, or a
// maximum cardinality that makes the log normalization divide by zero.
type ZeroCardinalityLogError struct {
	Field   string
	Value   float64
	MaxCard float64
}

func (e *ZeroCardinalityLogError) Error() string {
	if e.Value > 0 {
		return fmt.Sprintf("%s: %s: max cardinality %v must be greater than 1", ErrCodeZeroCardinality, e.Field, e.MaxCard)
	}
	return fmt.Sprintf("%s: %s: cardinality %v has no logarithm", ErrCodeZeroCardinality, e.Field, e.Value)
}

// JobError ties an error to the position of the job that produced it.
type JobError struct {
	Index int
	Err   error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("job %d: %v", e.Index, e.Err)
}

func (e *JobError) Unwrap() error {
	return e.Err
}

// IsSlotOverflow returns true if err is a SlotOverflowError.
// Uses errors.As to handle wrapped errors.
func IsSlotOverflow(err error) bool {
	var se *SlotOverflowError
	return errors.As(err, &se)
}

// IsUnknownCategory returns true if err is an UnknownCategoryError.
func IsUnknownCategory(err error) bool {
	var ue *UnknownCategoryError
	return errors.As(err, &ue)
}

// IsNonNumericValue returns true if err is a NonNumericValueError.
func IsNonNumericValue(err error) bool {
	var ne *NonNumericValueError
	return errors.As(err, &ne)
}

// IsZeroCardinality returns true if err is a ZeroCardinalityLogError.
func IsZeroCardinality(err error) bool {
	var ze *ZeroCardinalityLogError
	return errors.As(err, &ze)
}
