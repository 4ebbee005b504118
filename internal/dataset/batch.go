package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Batch column names.
const (
	ColQuerySetID = "querySetID"
	ColQuery      = "query"
	ColEncodings  = "encodings"
	ColMaxCard    = "max_card"
	ColMinMaxStep = "min_max_step"
	ColEstimated  = "estimated_cardinality"
	ColTrue       = "true_cardinality"
)

// Header is the canonical batch header.
var Header = []string{ColQuerySetID, ColQuery, ColEncodings, ColMaxCard, ColMinMaxStep, ColEstimated, ColTrue}

// Range is a (min, max, step) triple.
type Range [3]float64

// Record is one row of a query batch.
type Record struct {
	// Line is the 1-based line of the record in its file.
	Line       int
	QuerySetID int
	Query      string

	// Encodings maps attribute name to its sorted categories. Nil when the
	// column is empty.
	Encodings map[string][]string
	// MaxCard is zero when the column is empty.
	MaxCard float64
	// Ranges holds min_max_step in one of two forms: keyed by attribute name,
	// or positional in attribute order.
	NamedRanges map[string]Range
	Ranges      []Range

	Estimated float64
	True      float64
}

// BatchError reports a row that cannot be decoded.
type BatchError struct {
	Line   int
	Column string
	Err    error
}

func (e *BatchError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("batch line %d: column %s: %v", e.Line, e.Column, e.Err)
	}
	return fmt.Sprintf("batch line %d: %v", e.Line, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}

// ReadBatchFile reads a batch file.
func ReadBatchFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open batch: %w", err)
	}
	defer f.Close()
	return ReadBatch(f)
}

// ReadBatch decodes a semicolon-delimited batch. Columns are matched by
// header name; querySetID and query are required, the rest are optional.
func ReadBatch(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.Comma = ';'
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &BatchError{Line: 1, Err: errors.New("empty batch: missing header")}
	}
	if err != nil {
		return nil, &BatchError{Line: 1, Err: err}
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.TrimSpace(h)] = i
	}
	for _, required := range []string{ColQuerySetID, ColQuery} {
		if _, ok := cols[required]; !ok {
			return nil, &BatchError{Line: 1, Column: required, Err: errors.New("missing from header")}
		}
	}

	var records []Record
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				return nil, &BatchError{Line: pe.Line, Err: pe.Err}
			}
			return nil, err
		}
		line, _ := cr.FieldPos(0)
		rec, err := decodeRecord(row, cols, line)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func decodeRecord(row []string, cols map[string]int, line int) (Record, error) {
	field := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}
	fail := func(col string, err error) (Record, error) {
		return Record{}, &BatchError{Line: line, Column: col, Err: err}
	}

	rec := Record{Line: line}
	id, err := strconv.Atoi(field(ColQuerySetID))
	if err != nil {
		return fail(ColQuerySetID, err)
	}
	rec.QuerySetID = id
	rec.Query = field(ColQuery)
	if rec.Query == "" {
		return fail(ColQuery, errors.New("empty query"))
	}

	if s := field(ColEncodings); s != "" {
		if err := yaml.Unmarshal([]byte(s), &rec.Encodings); err != nil {
			return fail(ColEncodings, err)
		}
	}
	if rec.NamedRanges, rec.Ranges, err = decodeRanges(field(ColMinMaxStep)); err != nil {
		return fail(ColMinMaxStep, err)
	}
	for _, f := range []struct {
		col string
		dst *float64
	}{
		{ColMaxCard, &rec.MaxCard},
		{ColEstimated, &rec.Estimated},
		{ColTrue, &rec.True},
	} {
		s := field(f.col)
		if s == "" {
			continue
		}
		if *f.dst, err = strconv.ParseFloat(s, 64); err != nil {
			return fail(f.col, err)
		}
	}
	return rec, nil
}

// decodeRanges accepts a flow mapping {name: [min, max, step]} or a flow
// sequence [[min, max, step], ...].
func decodeRanges(s string) (map[string]Range, []Range, error) {
	if s == "" {
		return nil, nil, nil
	}
	var node yaml.Node
	if err := yaml.Unmarshal([]byte(s), &node); err != nil {
		return nil, nil, err
	}
	if node.Kind != yaml.DocumentNode || len(node.Content) != 1 {
		return nil, nil, errors.New("expected a single value")
	}
	switch v := node.Content[0]; v.Kind {
	case yaml.MappingNode:
		var named map[string]Range
		if err := v.Decode(&named); err != nil {
			return nil, nil, err
		}
		return named, nil, nil
	case yaml.SequenceNode:
		var ranges []Range
		if err := v.Decode(&ranges); err != nil {
			return nil, nil, err
		}
		return nil, ranges, nil
	default:
		return nil, nil, fmt.Errorf("expected a mapping or a sequence, got %q", v.Value)
	}
}
