package cli

import (
	"fmt"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/cardest/internal/dataset"
	"github.com/roach88/cardest/internal/schema"
)

// DescribeOptions holds flags for the describe command.
type DescribeOptions struct {
	*RootOptions
	QuerySet int
}

// QuerySetSummary is one query-set row of a catalog description.
type QuerySetSummary struct {
	ID          int      `json:"id"`
	Tables      string   `json:"tables"`
	Attributes  []string `json:"attributes"`
	MaxCard     int64    `json:"max_card"`
	Fingerprint string   `json:"fingerprint"`
}

// MatrixSummary describes a parquet matrix.
type MatrixSummary struct {
	RunID         string         `json:"run_id"`
	Width         int            `json:"width"`
	MaxPredicates int            `json:"max_predicates"`
	Rows          int            `json:"rows"`
	RowsPerSet    map[int]int    `json:"rows_per_query_set"`
	Fingerprints  map[int]string `json:"fingerprints,omitempty"`
}

// NewDescribeCommand creates the describe command.
func NewDescribeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DescribeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "describe <meta.yaml|matrix.parquet>",
		Short: "Summarize a meta file or an output matrix",
		Long: `Print the query-sets of a meta file, the slot layout of one query-set, or
the metadata and row counts of a parquet matrix written by vectorize.

Example:
  cardest describe meta.yaml
  cardest describe meta.yaml --query-set 3
  cardest describe out/vectors.parquet`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDescribe(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVar(&opts.QuerySet, "query-set", -1, "describe the slot layout of one query-set")

	return cmd
}

func runDescribe(opts *DescribeOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	if strings.EqualFold(filepath.Ext(path), ".parquet") {
		return describeMatrix(formatter, path)
	}

	catalog, err := schema.LoadCatalog(path)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, "failed to load meta file", err)
	}
	if opts.QuerySet >= 0 {
		qs, err := catalog.Lookup(opts.QuerySet)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeGeneric, "no such query-set", err)
		}
		return describeQuerySet(formatter, qs)
	}
	return describeCatalog(formatter, catalog)
}

func describeCatalog(formatter *OutputFormatter, catalog schema.Catalog) error {
	var summaries []QuerySetSummary
	for _, id := range catalog.IDs() {
		qs := catalog[id]
		fp, err := qs.Fingerprint()
		if err != nil {
			return formatter.Fail(ExitFailure, ErrCodeGeneric, fmt.Sprintf("failed to fingerprint query-set %d", id), err)
		}
		summaries = append(summaries, QuerySetSummary{
			ID:          id,
			Tables:      qs.Key(),
			Attributes:  qs.Names(),
			MaxCard:     qs.MaxCard,
			Fingerprint: fp,
		})
	}

	if formatter.Format == "json" {
		return formatter.Success(summaries)
	}
	rows := make([][]string, len(summaries))
	for i, s := range summaries {
		rows[i] = []string{
			strconv.Itoa(s.ID),
			s.Tables,
			strings.Join(s.Attributes, ", "),
			strconv.FormatInt(s.MaxCard, 10),
			s.Fingerprint[:12],
		}
	}
	formatter.Table([]string{"id", "tables", "attributes", "max_card", "fingerprint"}, rows)
	return nil
}

func describeQuerySet(formatter *OutputFormatter, qs *schema.QuerySet) error {
	if formatter.Format == "json" {
		return formatter.Success(qs)
	}

	fmt.Fprintf(formatter.Writer, "%s\nmax_card: %d\n", qs, qs.MaxCard)
	rows := make([][]string, len(qs.Attributes))
	for i, a := range qs.Attributes {
		categories := ""
		if a.Categorical() {
			categories = strconv.Itoa(a.Encoding.Len())
		}
		rows[i] = []string{
			strconv.Itoa(i),
			a.Name,
			a.Alias + "." + a.Column,
			a.Type,
			strconv.FormatInt(a.Min, 10),
			strconv.FormatInt(a.Max, 10),
			strconv.FormatInt(a.Step, 10),
			categories,
		}
	}
	formatter.Table([]string{"slot", "name", "source", "type", "min", "max", "step", "categories"}, rows)
	return nil
}

func describeMatrix(formatter *OutputFormatter, path string) error {
	m, err := dataset.ReadMatrix(path)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, "failed to read matrix", err)
	}

	summary := MatrixSummary{
		RunID:         m.RunID,
		Width:         m.Width,
		MaxPredicates: m.MaxPredicates,
		Rows:          len(m.Rows),
		RowsPerSet:    make(map[int]int),
		Fingerprints:  m.Fingerprints,
	}
	for _, r := range m.Rows {
		summary.RowsPerSet[int(r.QuerySetID)]++
	}

	if formatter.Format == "json" {
		return formatter.SuccessRun(m.RunID, summary)
	}

	fmt.Fprintf(formatter.Writer, "run_id: %s\nwidth: %d\nmax_predicates: %d\nrows: %d\n",
		summary.RunID, summary.Width, summary.MaxPredicates, summary.Rows)
	ids := make([]int, 0, len(summary.RowsPerSet))
	for id := range summary.RowsPerSet {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	rows := make([][]string, len(ids))
	for i, id := range ids {
		rows[i] = []string{strconv.Itoa(id), strconv.Itoa(summary.RowsPerSet[id]), summary.Fingerprints[id]}
	}
	formatter.Table([]string{"query_set", "rows", "fingerprint"}, rows)
	return nil
}
