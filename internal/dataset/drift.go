package dataset

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/roach88/cardest/internal/schema"
)

// DriftError reports a batch row whose statistics disagree with the meta
// file it is vectorized against.
type DriftError struct {
	QuerySet int
	Line     int
	Field    string
	Reason   string
}

func (e *DriftError) Error() string {
	return fmt.Sprintf("statistics drift: line %d: query-set %d: %s: %s", e.Line, e.QuerySet, e.Field, e.Reason)
}

// IsDrift returns true if err is a DriftError.
func IsDrift(err error) bool {
	var de *DriftError
	return errors.As(err, &de)
}

// CheckDrift compares the statistics a record carries with qs. Fields the
// record leaves empty are not checked.
func CheckDrift(rec Record, qs *schema.QuerySet) error {
	drift := func(field, format string, args ...any) error {
		return &DriftError{QuerySet: qs.ID, Line: rec.Line, Field: field, Reason: fmt.Sprintf(format, args...)}
	}

	if rec.MaxCard != 0 && rec.MaxCard != float64(qs.MaxCard) {
		return drift(ColMaxCard, "batch has %v, meta file has %d", rec.MaxCard, qs.MaxCard)
	}

	if rec.Ranges != nil {
		if len(rec.Ranges) != len(qs.Attributes) {
			return drift(ColMinMaxStep, "batch has %d ranges, meta file has %d attributes", len(rec.Ranges), len(qs.Attributes))
		}
		for i, r := range rec.Ranges {
			if err := compareRange(r, qs.Attributes[i]); err != nil {
				return drift(ColMinMaxStep, "%v", err)
			}
		}
	}

	for _, name := range sortedKeys(rec.NamedRanges) {
		i, err := qs.Index(name)
		if err != nil {
			return drift(ColMinMaxStep, "unknown attribute %q", name)
		}
		if err := compareRange(rec.NamedRanges[name], qs.Attributes[i]); err != nil {
			return drift(ColMinMaxStep, "%v", err)
		}
	}

	for _, name := range sortedKeys(rec.Encodings) {
		i, err := qs.Index(name)
		if err != nil {
			return drift(ColEncodings, "unknown attribute %q", name)
		}
		a := qs.Attributes[i]
		if !a.Categorical() {
			return drift(ColEncodings, "attribute %q has no encoding in the meta file", a.Name)
		}
		if !slices.Equal(rec.Encodings[name], a.Encoding.Values) {
			return drift(ColEncodings, "categories of %q differ", a.Name)
		}
	}
	return nil
}

func compareRange(r Range, a schema.Attribute) error {
	want := Range{float64(a.Min), float64(a.Max), float64(a.Step)}
	if r != want {
		return fmt.Errorf("attribute %q: batch has %v, meta file has %v", a.Name, r, want)
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
