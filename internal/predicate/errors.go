package predicate

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes parse errors.
type ErrorCode string

const (
	// ErrCodeMalformedPredicate indicates a WHERE clause outside the grammar.
	ErrCodeMalformedPredicate ErrorCode = "MALFORMED_PREDICATE"

	// ErrCodeMalformedQuery indicates a query whose overall shape is wrong
	// (missing WHERE, empty FROM list, unsupported join syntax).
	ErrCodeMalformedQuery ErrorCode = "MALFORMED_QUERY"
)

// MalformedPredicateError names the clause that could not be parsed.
type MalformedPredicateError struct {
	Clause string
	Reason string
}

func (e *MalformedPredicateError) Error() string {
	return fmt.Sprintf("%s: %s (clause=%q)", ErrCodeMalformedPredicate, e.Reason, e.Clause)
}

// MalformedQueryError reports a query that does not have the accepted shape.
type MalformedQueryError struct {
	Query  string
	Reason string
}

func (e *MalformedQueryError) Error() string {
	return fmt.Sprintf("%s: %s (query=%q)", ErrCodeMalformedQuery, e.Reason, e.Query)
}

// LexError reports an input character the tokenizer does not understand.
type LexError struct {
	Pos  int
	Char rune
}

func (e *LexError) Error() string {
	return fmt.Sprintf("unexpected character %q at offset %d", e.Char, e.Pos)
}

// IsMalformed returns true for any predicate or query parse error.
// Uses errors.As to handle wrapped errors.
func IsMalformed(err error) bool {
	var pe *MalformedPredicateError
	if errors.As(err, &pe) {
		return true
	}
	var qe *MalformedQueryError
	return errors.As(err, &qe)
}
