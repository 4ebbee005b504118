package schema

import (
	"fmt"
	"sync"

	"github.com/google/btree"
)

// btreeDegree is the fan-out of the ordered trees backing encodings.
const btreeDegree = 16

type category struct {
	value string
	code  int
}

func lessCategory(a, b category) bool {
	return a.value < b.value
}

// Encoding is a categorical encoding: distinct values sorted bytewise, each
// mapped to its zero-based position. Values and Counts are parallel slices.
//
// An Encoding is immutable after construction. The lookup tree is built on
// first use and shared by concurrent callers.
type Encoding struct {
	Values []string `yaml:"values"`
	// Counts holds the number of rows carrying each value. Optional.
	Counts []int64 `yaml:"counts,omitempty"`

	once sync.Once
	tree *btree.BTreeG[category]
}

// NewEncoding sorts the given distinct values and assigns ordinals. counts
// may be nil; otherwise it must be parallel to values. Duplicate values are
// rejected.
func NewEncoding(values []string, counts []int64) (*Encoding, error) {
	if counts != nil && len(counts) != len(values) {
		return nil, fmt.Errorf("encoding: %d values but %d counts", len(values), len(counts))
	}
	byValue := btree.NewG[category](btreeDegree, lessCategory)
	for i, v := range values {
		if _, dup := byValue.ReplaceOrInsert(category{value: v, code: i}); dup {
			return nil, fmt.Errorf("encoding: duplicate value %q", v)
		}
	}

	enc := &Encoding{Values: make([]string, 0, len(values))}
	if counts != nil {
		enc.Counts = make([]int64, 0, len(values))
	}
	byValue.Ascend(func(c category) bool {
		enc.Values = append(enc.Values, c.value)
		if counts != nil {
			enc.Counts = append(enc.Counts, counts[c.code])
		}
		return true
	})
	return enc, nil
}

// Len returns the number of distinct values.
func (e *Encoding) Len() int {
	return len(e.Values)
}

// Code returns the ordinal of value.
func (e *Encoding) Code(value string) (int, bool) {
	e.once.Do(e.index)
	c, ok := e.tree.Get(category{value: value})
	if !ok {
		return -1, false
	}
	return c.code, true
}

func (e *Encoding) index() {
	e.tree = btree.NewG[category](btreeDegree, lessCategory)
	for i, v := range e.Values {
		e.tree.ReplaceOrInsert(category{value: v, code: i})
	}
}

// Validate checks that values are strictly increasing and counts, when
// present, are parallel and non-negative.
func (e *Encoding) Validate() error {
	for i := 1; i < len(e.Values); i++ {
		if e.Values[i-1] >= e.Values[i] {
			return fmt.Errorf("encoding values not strictly sorted at %q", e.Values[i])
		}
	}
	if len(e.Counts) == 0 {
		return nil
	}
	if len(e.Counts) != len(e.Values) {
		return fmt.Errorf("encoding has %d values but %d counts", len(e.Values), len(e.Counts))
	}
	for i, c := range e.Counts {
		if c < 0 {
			return fmt.Errorf("encoding count for %q is negative", e.Values[i])
		}
	}
	return nil
}
