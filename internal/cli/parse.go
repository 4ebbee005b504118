package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/cardest/internal/predicate"
)

// ParsePredicate is one predicate of a ParseResult.
type ParsePredicate struct {
	Attribute string `json:"attribute"`
	Operator  string `json:"operator"`
	Value     string `json:"value"`
	Kind      string `json:"kind"`
}

// ParseResult is the JSON payload of the parse command.
type ParseResult struct {
	Key        string           `json:"key"`
	Tables     []string         `json:"tables"`
	Joins      []ParsePredicate `json:"joins"`
	Selections []ParsePredicate `json:"selections"`
}

func (r ParseResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "key: %s\n", r.Key)
	fmt.Fprintf(&b, "tables: %s\n", strings.Join(r.Tables, ", "))
	for _, p := range r.Joins {
		fmt.Fprintf(&b, "join: %s %s %s\n", p.Attribute, p.Operator, p.Value)
	}
	for _, p := range r.Selections {
		fmt.Fprintf(&b, "selection: %s %s %s\n", p.Attribute, p.Operator, p.Value)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// NewParseCommand creates the parse command.
func NewParseCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse <query>",
		Short: "Print the parsed form of a query",
		Long: `Parse one count query with the configured parser and print its canonical
table key, join predicates and selection predicates.

Example:
  cardest parse "SELECT COUNT(*) FROM title t WHERE t.kind_id<3"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runParse(opts *RootOptions, query string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	cfg, err := opts.Config()
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "failed to load config", err)
	}
	q, err := predicate.NewParser(cfg.ParserOptions()).Parse(query)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeGeneric, "failed to parse query", err)
	}

	result := ParseResult{Key: q.Key()}
	for _, t := range q.Tables {
		result.Tables = append(result.Tables, t.String())
	}
	for _, j := range q.Joins {
		result.Joins = append(result.Joins, ParsePredicate{
			Attribute: j.Attribute,
			Operator:  string(j.Operator),
			Value:     j.RightAttribute,
			Kind:      j.Kind.String(),
		})
	}
	for _, s := range q.Selections {
		result.Selections = append(result.Selections, ParsePredicate{
			Attribute: q.Resolve(s.Attribute),
			Operator:  string(s.Operator),
			Value:     s.Value.String(),
			Kind:      s.Kind.String(),
		})
	}
	return formatter.Success(result)
}
