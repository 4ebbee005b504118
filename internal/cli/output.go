package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"

	"github.com/roach88/cardest/internal/dataset"
	"github.com/roach88/cardest/internal/predicate"
	"github.com/roach88/cardest/internal/schema"
	"github.com/roach88/cardest/internal/vector"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Invalid input data (meta file fails validation, strict run hit a bad query)
	ExitCommandError = 2 // Command error (missing files, unreadable database, bad flags)
)

// Error codes reported in CLI output. Typed errors from the pipeline keep
// their own codes (MALFORMED_PREDICATE, SLOT_OVERFLOW, ...).
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeConfig      = "E002" // Config file unreadable or invalid
	ErrCodeNotFound    = "E005" // Input path not found
	ErrCodeWriteFailed = "E007" // Output write error
	ErrCodeDatabase    = "E008" // Database open or query failure
	ErrCodeDrift       = "STATISTICS_DRIFT"
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// ErrorCode returns the code reported for err: the code of the innermost
// typed pipeline error, or fallback.
func ErrorCode(err error, fallback string) string {
	var (
		malformedPred  *predicate.MalformedPredicateError
		malformedQuery *predicate.MalformedQueryError
		lookup         *schema.SchemaLookupError
		notFound       *schema.AttributeNotFoundError
		unknownQS      *schema.UnknownQuerySetError
		mismatch       *schema.TableMismatchError
		document       *schema.DocumentError
		overflow       *vector.SlotOverflowError
		category       *vector.UnknownCategoryError
		nonNumeric     *vector.NonNumericValueError
		zero           *vector.ZeroCardinalityLogError
		drift          *dataset.DriftError
	)
	switch {
	case errors.As(err, &malformedPred):
		return string(predicate.ErrCodeMalformedPredicate)
	case errors.As(err, &malformedQuery):
		return string(predicate.ErrCodeMalformedQuery)
	case errors.As(err, &lookup):
		return string(schema.ErrCodeSchemaLookup)
	case errors.As(err, &notFound):
		return string(schema.ErrCodeAttributeNotFound)
	case errors.As(err, &unknownQS):
		return string(schema.ErrCodeUnknownQuerySet)
	case errors.As(err, &mismatch):
		return string(schema.ErrCodeTableMismatch)
	case errors.As(err, &document):
		return string(schema.ErrCodeInvalidDocument)
	case errors.As(err, &overflow):
		return string(vector.ErrCodeSlotOverflow)
	case errors.As(err, &category):
		return string(vector.ErrCodeUnknownCategory)
	case errors.As(err, &nonNumeric):
		return string(vector.ErrCodeNonNumericValue)
	case errors.As(err, &zero):
		return string(vector.ErrCodeZeroCardinality)
	case errors.As(err, &drift):
		return ErrCodeDrift
	}
	return fallback
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
	RunID  string    `json:"run_id,omitempty"`
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // "E001", "SLOT_OVERFLOW", etc.
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format. Text
// output prints data with fmt; commands with richer text output print it
// themselves and call Success only for JSON.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return f.encode(CLIResponse{Status: "ok", Data: data})
	}

	fmt.Fprintln(f.Writer, data)
	return nil
}

// SuccessRun is Success with a run id attached to the JSON envelope.
func (f *OutputFormatter) SuccessRun(runID string, data any) error {
	if f.Format == "json" {
		return f.encode(CLIResponse{Status: "ok", Data: data, RunID: runID})
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return f.encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Fail reports err and returns it wrapped with exitCode. The reported code
// is taken from the typed error when there is one.
func (f *OutputFormatter) Fail(exitCode int, fallback, message string, err error) error {
	_ = f.Error(ErrorCode(err, fallback), fmt.Sprintf("%s: %v", message, err), nil)
	return WrapExitError(exitCode, message, err)
}

// Table renders rows as an aligned text table.
func (f *OutputFormatter) Table(header []string, rows [][]string) {
	table := tablewriter.NewWriter(f.Writer)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.AppendBulk(rows)
	table.Render()
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

func (f *OutputFormatter) encode(resp CLIResponse) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}
