package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cardest/internal/dataset"
	"github.com/roach88/cardest/internal/predicate"
	"github.com/roach88/cardest/internal/schema"
	"github.com/roach88/cardest/internal/vector"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.SuccessRun("run-1", map[string]int{"rows": 4}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "run-1", resp.RunID)
	assert.NotNil(t, resp.Data)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Error("E005", "batch not found", []string{"batch.csv"}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E005", resp.Error.Code)
	assert.Equal(t, "batch not found", resp.Error.Message)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_TextError(t *testing.T) {
	tests := []struct {
		name        string
		verbose     bool
		wantDetails bool
	}{
		{"quiet", false, false},
		{"verbose", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: tt.verbose}

			require.NoError(t, formatter.Error("E001", "collect failed", map[string]int{"query_set": 3}))
			assert.Contains(t, buf.String(), "Error [E001]: collect failed")
			if tt.wantDetails {
				assert.Contains(t, buf.String(), "Details:")
			} else {
				assert.NotContains(t, buf.String(), "Details:")
			}
		})
	}
}

func TestOutputFormatter_Fail(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	cause := fmt.Errorf("line 3: %w", &vector.SlotOverflowError{QuerySet: 1, Predicates: 9, Max: 4})
	err := formatter.Fail(ExitFailure, ErrCodeGeneric, "vectorize failed", cause)

	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, buf.String(), "Error [SLOT_OVERFLOW]: vectorize failed: line 3:")
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&predicate.MalformedPredicateError{Clause: "a ~ 1"}, "MALFORMED_PREDICATE"},
		{&predicate.MalformedQueryError{Query: "SELECT"}, "MALFORMED_QUERY"},
		{&schema.SchemaLookupError{Attribute: "t.x"}, "SCHEMA_LOOKUP"},
		{&schema.AttributeNotFoundError{Attribute: "t.x"}, "ATTRIBUTE_NOT_FOUND"},
		{&schema.UnknownQuerySetError{ID: 4}, "UNKNOWN_QUERY_SET"},
		{&schema.DocumentError{Path: "meta.yaml"}, "INVALID_DOCUMENT"},
		{&vector.UnknownCategoryError{Attribute: "note", Value: "x"}, "UNKNOWN_CATEGORY"},
		{&vector.NonNumericValueError{Attribute: "kind_id", Value: "x"}, "NON_NUMERIC_VALUE"},
		{&schema.TableMismatchError{QuerySet: 1}, "TABLE_MISMATCH"},
		{&vector.ZeroCardinalityLogError{Field: "true_cardinality"}, "ZERO_CARDINALITY"},
		{&dataset.DriftError{Field: "max_card"}, "STATISTICS_DRIFT"},
		{errors.New("disk full"), "E007"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorCode(fmt.Errorf("wrapped: %w", tt.err), ErrCodeWriteFailed))
		})
	}
}

func TestOutputFormatter_Table(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	formatter.Table([]string{"slot", "name"}, [][]string{{"0", "kind_id"}, {"1", "role_id"}})

	out := buf.String()
	assert.Contains(t, out, "slot")
	assert.Contains(t, out, "kind_id")
	assert.Contains(t, out, "role_id")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := &bytes.Buffer{}
			errOut := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "json", Writer: out, ErrWriter: errOut, Verbose: tt.verbose}

			formatter.VerboseLog("Reading %s", "meta.yaml")

			assert.Empty(t, out.String())
			if tt.wantLog {
				assert.Contains(t, errOut.String(), "Reading meta.yaml")
			} else {
				assert.Empty(t, errOut.String())
			}
		})
	}
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "missing")))
	assert.Equal(t, ExitCommandError, GetExitCode(fmt.Errorf("outer: %w", WrapExitError(ExitCommandError, "db", errors.New("locked")))))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
}
