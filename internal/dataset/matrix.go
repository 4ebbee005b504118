package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/parquet-go/parquet-go"
)

// Parquet key/value metadata keys.
const (
	MetaRunID         = "cardest.run_id"
	MetaWidth         = "cardest.width"
	MetaMaxPredicates = "cardest.max_predicates"

	// MetaFingerprintPrefix is followed by a query-set id; the value is the
	// layout fingerprint rows of that query-set were encoded against.
	MetaFingerprintPrefix = "cardest.fingerprint."
)

// Row is one matrix row as stored in parquet.
type Row struct {
	QuerySetID int64     `parquet:"query_set_id"`
	Features   []float64 `parquet:"features,list"`
}

// Matrix is the output of a vectorization run.
type Matrix struct {
	RunID         string
	Width         int
	MaxPredicates int
	// Fingerprints maps query-set id to the layout fingerprint its rows were
	// encoded against.
	Fingerprints  map[int]string
	Rows          []Row
}

// Append adds a row. The feature slice is kept, not copied.
func (m *Matrix) Append(querySetID int, features []float64) error {
	if len(features) != m.Width {
		return fmt.Errorf("row has %d features, matrix width is %d", len(features), m.Width)
	}
	m.Rows = append(m.Rows, Row{QuerySetID: int64(querySetID), Features: features})
	return nil
}

// Header returns the text header: query_set_id, f0 .. f{width-1}.
func (m *Matrix) Header() []string {
	header := make([]string, 0, m.Width+1)
	header = append(header, "query_set_id")
	for i := 0; i < m.Width; i++ {
		header = append(header, "f"+strconv.Itoa(i))
	}
	return header
}

// WriteCSV writes the matrix as comma-separated text. Floats use the
// shortest representation that round-trips.
func (m *Matrix) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(m.Header()); err != nil {
		return err
	}
	record := make([]string, m.Width+1)
	for _, row := range m.Rows {
		record[0] = strconv.FormatInt(row.QuerySetID, 10)
		for i, v := range row.Features {
			record[i+1] = strconv.FormatFloat(v, 'f', -1, 64)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteParquet writes the matrix as a parquet file with the run id, width,
// slot count and query-set fingerprints in its key/value metadata.
func (m *Matrix) WriteParquet(w io.Writer) error {
	options := []parquet.WriterOption{
		parquet.KeyValueMetadata(MetaRunID, m.RunID),
		parquet.KeyValueMetadata(MetaWidth, strconv.Itoa(m.Width)),
		parquet.KeyValueMetadata(MetaMaxPredicates, strconv.Itoa(m.MaxPredicates)),
	}
	ids := make([]int, 0, len(m.Fingerprints))
	for id := range m.Fingerprints {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		options = append(options, parquet.KeyValueMetadata(MetaFingerprintPrefix+strconv.Itoa(id), m.Fingerprints[id]))
	}
	writer := parquet.NewGenericWriter[Row](w, options...)
	if _, err := writer.Write(m.Rows); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}
	return nil
}

// Save writes <dir>/<name>.parquet and <dir>/<name>.csv and returns their
// paths.
func (m *Matrix) Save(dir, name string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}
	outputs := []struct {
		ext   string
		write func(io.Writer) error
	}{
		{".parquet", m.WriteParquet},
		{".csv", m.WriteCSV},
	}
	paths := make([]string, 0, len(outputs))
	for _, out := range outputs {
		path := filepath.Join(dir, name+out.ext)
		if err := writeFile(path, out.write); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()
	if err := write(f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// ReadMatrix loads a matrix written by WriteParquet.
func ReadMatrix(path string) (*Matrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}

	m := &Matrix{}
	m.RunID, _ = pf.Lookup(MetaRunID)
	if s, ok := pf.Lookup(MetaWidth); ok {
		if m.Width, err = strconv.Atoi(s); err != nil {
			return nil, fmt.Errorf("metadata %s: %w", MetaWidth, err)
		}
	}
	if s, ok := pf.Lookup(MetaMaxPredicates); ok {
		if m.MaxPredicates, err = strconv.Atoi(s); err != nil {
			return nil, fmt.Errorf("metadata %s: %w", MetaMaxPredicates, err)
		}
	}
	for _, kv := range pf.Metadata().KeyValueMetadata {
		rest, ok := strings.CutPrefix(kv.Key, MetaFingerprintPrefix)
		if !ok {
			continue
		}
		id, err := strconv.Atoi(rest)
		if err != nil {
			return nil, fmt.Errorf("metadata %s: %w", kv.Key, err)
		}
		if m.Fingerprints == nil {
			m.Fingerprints = make(map[int]string)
		}
		m.Fingerprints[id] = kv.Value
	}

	reader := parquet.NewGenericReader[Row](pf)
	defer reader.Close()

	m.Rows = make([]Row, pf.NumRows())
	n, err := reader.Read(m.Rows)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	m.Rows = m.Rows[:n]
	return m, nil
}
