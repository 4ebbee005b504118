package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/cardest/internal/schema"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool     `json:"valid"`
	QuerySets int      `json:"query_sets,omitempty"`
	Issues    []string `json:"issues,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <meta.yaml>",
		Short: "Validate a meta file",
		Long: `Check a meta file against the meta file schema and the invariants the
vectorizer relies on: sorted unique attribute names, min <= max, step >= 1,
categorical ranges matching their encodings, and ids matching their keys.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	data, err := os.ReadFile(path)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, "meta file not found", err)
	}
	formatter.VerboseLog("Validating %s (%d bytes)", path, len(data))

	catalog, err := schema.DecodeCatalog(path, data)
	if err != nil {
		var docErr *schema.DocumentError
		if !errors.As(err, &docErr) {
			return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to decode meta file", err)
		}
		return outputValidationIssues(formatter, docErr.Issues)
	}

	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, QuerySets: len(catalog)})
	}
	fmt.Fprintf(formatter.Writer, "✓ Meta file valid (%d query-sets)\n", len(catalog))
	return nil
}

// outputValidationIssues outputs every issue of an invalid meta file.
func outputValidationIssues(formatter *OutputFormatter, issues []string) error {
	if formatter.Format == "json" {
		if err := formatter.encode(CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Issues: issues},
			Error: &CLIError{
				Code:    string(schema.ErrCodeInvalidDocument),
				Message: issues[0],
			},
		}); err != nil {
			return err
		}
		// Validation failures = exit code 1 (invalid input, not a command error)
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d issue(s)", len(issues)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, issue := range issues {
		fmt.Fprintf(formatter.Writer, "  %s: %s\n", schema.ErrCodeInvalidDocument, issue)
	}

	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d issue(s)", len(issues)))
}
