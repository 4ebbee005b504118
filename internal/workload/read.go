package workload

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ReadOptions configures how workload files are split into queries.
type ReadOptions struct {
	// InnerSeparator splits the blocks of a csv line. Defaults to ',' for
	// .csv and a tab for .tsv.
	InnerSeparator string
	// OuterSeparator splits a csv line into blocks. Defaults to '#'.
	OuterSeparator string
	// TableSeparator delimits the FROM list of rendered csv queries and
	// must match the parser's separator. Defaults to ','.
	TableSeparator rune
}

// ReadFile reads the queries of a workload file. The format follows the
// file extension.
func ReadFile(path string, opts ReadOptions) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open workload: %w", err)
	}
	defer f.Close()

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".sql":
		return ReadSQL(f)
	case ".csv", ".tsv":
		if opts.InnerSeparator == "" {
			opts.InnerSeparator = ","
			if ext == ".tsv" {
				opts.InnerSeparator = "\t"
			}
		}
		return ReadCSV(f, opts)
	default:
		return nil, fmt.Errorf("workload %s: unsupported file type %q: must be .sql, .csv or .tsv", path, ext)
	}
}

// ReadSQL splits r into statements on a semicolon followed by a newline.
// Blank statements are dropped.
func ReadSQL(r io.Reader) ([]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read workload: %w", err)
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")

	var queries []string
	for _, stmt := range strings.Split(text, ";\n") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		queries = append(queries, stmt)
	}
	return queries, nil
}

// ReadCSV reads one query per line and renders it as a count statement.
// Lines with fewer than three non-empty blocks are dropped, except that the
// joins block may be empty for single-table queries.
func ReadCSV(r io.Reader, opts ReadOptions) ([]string, error) {
	inner, outer := opts.InnerSeparator, opts.OuterSeparator
	if inner == "" {
		inner = ","
	}
	if outer == "" {
		outer = "#"
	}
	tableSep := opts.TableSeparator
	if tableSep == 0 {
		tableSep = ','
	}

	var queries []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		blocks := strings.Split(sc.Text(), outer)
		if len(blocks) < 3 || strings.TrimSpace(blocks[0]) == "" || strings.TrimSpace(blocks[2]) == "" {
			continue
		}
		q, err := csvQuery(blocks, inner, tableSep)
		if err != nil {
			return nil, fmt.Errorf("workload line %d: %w", line, err)
		}
		queries = append(queries, q)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read workload: %w", err)
	}
	return queries, nil
}

func csvQuery(blocks []string, inner string, tableSep rune) (string, error) {
	tables := splitTrim(blocks[0], inner)

	var clauses []string
	clauses = append(clauses, splitTrim(blocks[1], inner)...)

	sel := splitTrim(blocks[2], inner)
	if len(sel)%3 != 0 {
		return "", fmt.Errorf("selections block has %d fields, want attribute,operator,value triples", len(sel))
	}
	for i := 0; i < len(sel); i += 3 {
		clauses = append(clauses, sel[i]+sel[i+1]+sel[i+2])
	}
	return "SELECT COUNT(*) FROM " + strings.Join(tables, string(tableSep)) + " WHERE " + strings.Join(clauses, " AND "), nil
}

func splitTrim(s, sep string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, sep)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
