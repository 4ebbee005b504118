package workload

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/cardest/internal/predicate"
	"github.com/roach88/cardest/internal/schema"
)

// Skipped is a workload query the crawler could not parse.
type Skipped struct {
	// Index is the 0-based position of the query in the workload.
	Index int
	Query string
	Err   error
}

// Solution is the grouped workload.
type Solution struct {
	// Requests are numbered 0..n-1 in order of first appearance.
	Requests []schema.Request
	Queries  int
	Skipped  []Skipped
}

// Crawler groups queries by join shape.
type Crawler struct {
	parser *predicate.Parser
}

// NewCrawler creates a crawler that parses queries with parser.
func NewCrawler(parser *predicate.Parser) *Crawler {
	return &Crawler{parser: parser}
}

type group struct {
	tables     []predicate.TableRef
	joins      map[string]bool
	selections map[string]bool
}

// Crawl groups queries. Queries that do not parse are skipped and logged.
func (c *Crawler) Crawl(queries []string) *Solution {
	sol := &Solution{Queries: len(queries)}
	groups := make(map[string]*group)
	var order []string

	for i, text := range queries {
		q, err := c.parser.Parse(text)
		if err != nil {
			slog.Warn("skipping query", "index", i, "error", err)
			sol.Skipped = append(sol.Skipped, Skipped{Index: i, Query: text, Err: err})
			continue
		}
		key := q.Key()
		g, ok := groups[key]
		if !ok {
			g = &group{tables: q.Tables, joins: make(map[string]bool), selections: make(map[string]bool)}
			groups[key] = g
			order = append(order, key)
		}
		for _, j := range q.Joins {
			g.joins[joinString(j)] = true
		}
		for _, attr := range q.SelectionAttributes() {
			g.selections[attr] = true
		}
	}

	sol.Requests = make([]schema.Request, len(order))
	for id, key := range order {
		g := groups[key]
		sol.Requests[id] = schema.Request{
			ID:             id,
			Tables:         g.tables,
			JoinAttributes: sortedSet(g.joins),
			Columns:        sortedSet(g.selections),
		}
	}
	slog.Info("crawled workload", "queries", sol.Queries, "query_sets", len(sol.Requests), "skipped", len(sol.Skipped))
	return sol
}

// CrawlFile reads a workload file and groups its queries.
func (c *Crawler) CrawlFile(path string, opts ReadOptions) (*Solution, error) {
	if opts.TableSeparator == 0 {
		opts.TableSeparator = c.parser.Options().Separator
	}
	queries, err := ReadFile(path, opts)
	if err != nil {
		return nil, err
	}
	return c.Crawl(queries), nil
}

// joinString renders an equi-join with its sides in sorted order so that
// a.x = b.y and b.y = a.x collapse into one entry.
func joinString(p predicate.Predicate) string {
	if p.Operator == predicate.OpEq && p.RightAttribute < p.Attribute {
		p.Attribute, p.RightAttribute = p.RightAttribute, p.Attribute
	}
	return p.String()
}

func sortedSet(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Marshal encodes the requests as a YAML mapping from id to request.
func (s *Solution) Marshal() ([]byte, error) {
	doc := make(map[int]schema.Request, len(s.Requests))
	for _, r := range s.Requests {
		doc[r.ID] = r
	}
	return yaml.Marshal(doc)
}

// Save writes the solution file, creating parent directories.
func (s *Solution) Save(path string) error {
	data, err := s.Marshal()
	if err != nil {
		return fmt.Errorf("encode solution: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write solution: %w", err)
	}
	return nil
}

// LoadSolution reads a solution file. Requests are returned in id order.
func LoadSolution(path string) ([]schema.Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read solution: %w", err)
	}
	return DecodeSolution(data)
}

// DecodeSolution decodes the YAML form written by Solution.Marshal.
func DecodeSolution(data []byte) ([]schema.Request, error) {
	var doc map[int]schema.Request
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode solution: %w", err)
	}
	if len(doc) == 0 {
		return nil, fmt.Errorf("decode solution: no requests")
	}
	reqs := make([]schema.Request, 0, len(doc))
	for id, r := range doc {
		if len(r.Tables) == 0 {
			return nil, fmt.Errorf("decode solution: request %d has no tables", id)
		}
		r.ID = id
		reqs = append(reqs, r)
	}
	sort.Slice(reqs, func(i, j int) bool { return reqs[i].ID < reqs[j].ID })
	return reqs, nil
}
