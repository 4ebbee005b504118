package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/cardest/internal/predicate"
	"github.com/roach88/cardest/internal/workload"
)

// CrawlOptions holds flags for the crawl command.
type CrawlOptions struct {
	*RootOptions
	Output string
}

// CrawlResult is the JSON payload of the crawl command.
type CrawlResult struct {
	Queries   int    `json:"queries"`
	QuerySets int    `json:"query_sets"`
	Skipped   int    `json:"skipped"`
	Output    string `json:"output"`
}

func (r CrawlResult) String() string {
	return fmt.Sprintf("✓ Crawled %d queries into %d query-sets (%d skipped): %s", r.Queries, r.QuerySets, r.Skipped, r.Output)
}

// NewCrawlCommand creates the crawl command.
func NewCrawlCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CrawlOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "crawl <workload.sql|workload.csv>",
		Short: "Group a workload into query-set requests",
		Long: `Read a workload file and group its queries by the tables they join.

Every group becomes one numbered request listing the join predicates and the
selection attributes seen across the group. The requests are written as a
solution file for the collect command.

Example:
  cardest crawl job-light.sql --out solution.yaml
  cardest crawl job-light.csv --out solution.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCrawl(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "out", "o", "solution.yaml", "solution file to write")

	return cmd
}

func runCrawl(opts *CrawlOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	cfg, err := opts.Config()
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "failed to load config", err)
	}
	if _, err := os.Stat(path); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, "workload not found", err)
	}

	crawler := workload.NewCrawler(predicate.NewParser(cfg.ParserOptions()))
	sol, err := crawler.CrawlFile(path, workload.ReadOptions{
		InnerSeparator: cfg.Parser.InnerSeparator,
		OuterSeparator: cfg.Parser.OuterSeparator,
	})
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to read workload", err)
	}
	for _, s := range sol.Skipped {
		formatter.VerboseLog("skipped query %d: %v", s.Index, s.Err)
	}

	if err := sol.Save(opts.Output); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, "failed to write solution", err)
	}

	return formatter.Success(CrawlResult{
		Queries:   sol.Queries,
		QuerySets: len(sol.Requests),
		Skipped:   len(sol.Skipped),
		Output:    opts.Output,
	})
}
