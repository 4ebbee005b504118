package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/cardest/internal/dataset"
	"github.com/roach88/cardest/internal/predicate"
	"github.com/roach88/cardest/internal/schema"
	"github.com/roach88/cardest/internal/vector"
)

// VectorizeOptions holds flags for the vectorize command.
type VectorizeOptions struct {
	*RootOptions
	Meta                 string
	OutDir               string
	Name                 string
	MaxPredicates        int
	Workers              int
	Strict               bool
	IncludeMaxCard       bool
	IncludeCardinalities bool

	// RunIDs allows overriding the run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs dataset.RunIDGenerator
}

// SkippedQuery is one entry of VectorizeResult.Skipped.
type SkippedQuery struct {
	Line     int    `json:"line"`
	QuerySet int    `json:"query_set"`
	Code     string `json:"code"`
	Message  string `json:"message"`
}

// VectorizeResult is the JSON payload of the vectorize command.
type VectorizeResult struct {
	RunID   string         `json:"run_id"`
	Total   int            `json:"total"`
	Written int            `json:"written"`
	Width   int            `json:"width"`
	Skipped []SkippedQuery `json:"skipped,omitempty"`
	Outputs []string       `json:"outputs"`
}

func (r VectorizeResult) String() string {
	return fmt.Sprintf("✓ Vectorized %d of %d queries (width %d, %d skipped): %v", r.Written, r.Total, r.Width, len(r.Skipped), r.Outputs)
}

// NewVectorizeCommand creates the vectorize command.
func NewVectorizeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VectorizeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "vectorize <batch.csv>",
		Short: "Encode a query batch into a feature matrix",
		Long: `Vectorize a semicolon-delimited query batch against a meta file.

Every query becomes one row of max_predicates slots of 4 values: a 3-bit
operator code and the normalized literal. Rows are written to
<out-dir>/<name>.parquet and <out-dir>/<name>.csv.

Statistics carried by the batch (max_card, min_max_step, encodings) must
match the meta file; any mismatch aborts the run. Queries that cannot be
encoded are skipped unless --strict is set.

Example:
  cardest vectorize batch.csv --meta meta.yaml --out-dir out --name vectors
  cardest vectorize batch.csv --meta meta.yaml --max-predicates 4 --strict`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVectorize(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Meta, "meta", "meta.yaml", "meta file written by collect")
	cmd.Flags().StringVar(&opts.OutDir, "out-dir", ".", "output directory")
	cmd.Flags().StringVar(&opts.Name, "name", "vectors", "output file name without extension")
	cmd.Flags().IntVar(&opts.MaxPredicates, "max-predicates", 0, "predicate slots per vector (default from config)")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "concurrent vectorizations (default from config)")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "abort on the first query that cannot be encoded")
	cmd.Flags().BoolVar(&opts.IncludeMaxCard, "include-max-card", false, "append ln(max_card) to every vector")
	cmd.Flags().BoolVar(&opts.IncludeCardinalities, "include-cardinalities", false, "append normalized estimated and true cardinalities")

	return cmd
}

func runVectorize(opts *VectorizeOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	cfg, err := opts.Config()
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "failed to load config", err)
	}
	vc := cfg.Vectorizer
	if opts.MaxPredicates > 0 {
		vc.MaxPredicates = opts.MaxPredicates
	}
	if opts.Workers > 0 {
		vc.Workers = opts.Workers
	}
	vc.Strict = vc.Strict || opts.Strict
	vc.IncludeMaxCard = vc.IncludeMaxCard || opts.IncludeMaxCard
	vc.IncludeCardinalities = vc.IncludeCardinalities || opts.IncludeCardinalities

	catalog, err := schema.LoadCatalog(opts.Meta)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, "failed to load meta file", err)
	}
	records, err := dataset.ReadBatchFile(path)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, "failed to read batch", err)
	}
	formatter.VerboseLog("Read %d queries from %s", len(records), path)

	vz, err := vector.New(vector.Options{
		MaxPredicates:        vc.MaxPredicates,
		IncludeMaxCard:       vc.IncludeMaxCard,
		IncludeCardinalities: vc.IncludeCardinalities,
	})
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "invalid vectorizer options", err)
	}
	pipeline, err := dataset.NewPipeline(dataset.Options{
		Parser:     predicate.NewParser(cfg.ParserOptions()),
		Vectorizer: vz,
		Catalog:    catalog,
		Strict:     vc.Strict,
		Workers:    vc.Workers,
		RunIDs:     opts.RunIDs,
	})
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to create pipeline", err)
	}

	matrix, report, err := pipeline.Run(cmd.Context(), records)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeGeneric, "vectorize failed", err)
	}

	outputs, err := matrix.Save(opts.OutDir, opts.Name)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, "failed to write matrix", err)
	}

	result := VectorizeResult{
		RunID:   report.RunID,
		Total:   report.Total,
		Written: report.Written,
		Width:   matrix.Width,
		Outputs: outputs,
	}
	for _, s := range report.Skipped {
		result.Skipped = append(result.Skipped, SkippedQuery{
			Line:     s.Line,
			QuerySet: s.QuerySet,
			Code:     ErrorCode(s.Err, ErrCodeGeneric),
			Message:  s.Err.Error(),
		})
		formatter.VerboseLog("skipped line %d: %v", s.Line, s.Err)
	}
	return formatter.SuccessRun(report.RunID, result)
}
