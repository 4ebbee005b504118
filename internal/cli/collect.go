package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/cardest/internal/schema"
	"github.com/roach88/cardest/internal/store"
	"github.com/roach88/cardest/internal/workload"
)

// CollectOptions holds flags for the collect command.
type CollectOptions struct {
	*RootOptions
	Database         string
	Output           string
	KeepMaterialized bool
}

// CollectResult is the JSON payload of the collect command.
type CollectResult struct {
	QuerySets int    `json:"query_sets"`
	Output    string `json:"output"`
}

func (r CollectResult) String() string {
	return fmt.Sprintf("✓ Collected statistics for %d query-sets: %s", r.QuerySets, r.Output)
}

// NewCollectCommand creates the collect command.
func NewCollectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CollectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "collect <solution.yaml>",
		Short: "Build query-set statistics into a meta file",
		Long: `Build every request of a solution file against the database.

Each request's join is materialized, its row count becomes max_card, and the
min, max and step of every selection attribute are read from it. Text
columns get a categorical encoding of their distinct values. The result is
written as a meta file for the vectorize command.

Example:
  cardest collect solution.yaml --db imdb.db --out meta.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollect(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")
	cmd.Flags().StringVarP(&opts.Output, "out", "o", "meta.yaml", "meta file to write")
	cmd.Flags().BoolVar(&opts.KeepMaterialized, "keep-materialized", false, "leave materialized joins in the database")

	return cmd
}

func runCollect(opts *CollectOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	cfg, err := opts.Config()
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "failed to load config", err)
	}
	dbPath := opts.Database
	if dbPath == "" {
		dbPath = cfg.Database.Path
	}
	keep := opts.KeepMaterialized || cfg.Registry.KeepMaterialized

	reqs, err := workload.LoadSolution(path)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, "failed to load solution", err)
	}
	// store.Open creates missing files; a typo in --db must not yield an
	// empty database.
	if _, err := os.Stat(dbPath); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, "database not found", err)
	}

	slog.Info("opening database", "path", dbPath)
	st, err := store.Open(dbPath)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	ctx := cmd.Context()
	reg := schema.NewRegistry(st, schema.RegistryOptions{KeepMaterialized: keep})
	defer func() {
		if closeErr := reg.Close(ctx); closeErr != nil {
			slog.Error("error dropping materialized relations", "error", closeErr)
		}
	}()

	for _, req := range reqs {
		formatter.VerboseLog("building query-set %d: %s", req.ID, req.Key())
		if _, err := reg.Build(ctx, req); err != nil {
			return formatter.Fail(ExitFailure, ErrCodeDatabase, fmt.Sprintf("failed to build query-set %d", req.ID), err)
		}
	}

	catalog := reg.Catalog()
	if err := catalog.Save(opts.Output); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, "failed to write meta file", err)
	}

	return formatter.Success(CollectResult{QuerySets: len(catalog), Output: opts.Output})
}
