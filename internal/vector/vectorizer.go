package vector

import (
	"fmt"
	"math"

	"github.com/roach88/cardest/internal/predicate"
	"github.com/roach88/cardest/internal/schema"
)

// Options configures a Vectorizer.
type Options struct {
	// MaxPredicates is the number of predicate slots per vector.
	MaxPredicates int
	// IncludeMaxCard appends ln(max_card) after the predicate slots.
	IncludeMaxCard bool
	// IncludeCardinalities appends the normalized estimated and true
	// cardinalities as the last two fields.
	IncludeCardinalities bool
}

// Cardinality carries the observed cardinalities of one query.
type Cardinality struct {
	Estimated float64
	True      float64
}

// Vector is the feature vector of one query.
type Vector struct {
	QuerySetID int
	Values     []float64
}

// Vectorizer turns parsed queries into fixed-width vectors. It holds no
// mutable state and is safe for concurrent use.
type Vectorizer struct {
	opts Options
}

// New creates a Vectorizer.
func New(opts Options) (*Vectorizer, error) {
	if opts.MaxPredicates < 1 {
		return nil, fmt.Errorf("max predicates must be at least 1, got %d", opts.MaxPredicates)
	}
	return &Vectorizer{opts: opts}, nil
}

// Options returns the vectorizer configuration.
func (v *Vectorizer) Options() Options {
	return v.opts
}

// Width is the length of every vector this vectorizer produces.
func (v *Vectorizer) Width() int {
	w := v.opts.MaxPredicates * SlotWidth
	if v.opts.IncludeMaxCard {
		w++
	}
	if v.opts.IncludeCardinalities {
		w += 2
	}
	return w
}

// Vectorize encodes the selection predicates of q against qs. Slot i holds
// the predicate on qs's i-th attribute regardless of where it appeared in
// the query; slots without a predicate stay zero. card may be nil unless
// cardinalities are included.
func (v *Vectorizer) Vectorize(q *predicate.Query, qs *schema.QuerySet, card *Cardinality) (Vector, error) {
	n := v.opts.MaxPredicates
	if len(q.Selections) > n {
		return Vector{}, &SlotOverflowError{QuerySet: qs.ID, Predicates: len(q.Selections), Max: n}
	}

	values := make([]float64, v.Width())
	for _, p := range q.Selections {
		i, err := qs.Index(q.Resolve(p.Attribute))
		if err != nil {
			return Vector{}, err
		}
		if i >= n {
			return Vector{}, &SlotOverflowError{QuerySet: qs.ID, Predicates: len(q.Selections), Max: n, Attribute: p.Attribute, Index: i}
		}

		code, err := OperatorCode(p.Operator)
		if err != nil {
			return Vector{}, &predicate.MalformedPredicateError{Clause: p.String(), Reason: err.Error()}
		}
		attr := qs.Attributes[i]
		value, err := EncodeValue(p.Value, attr)
		if err != nil {
			return Vector{}, err
		}

		base := i * SlotWidth
		copy(values[base:base+OperatorWidth], code[:])
		values[base+OperatorWidth] = Normalize(value, attr)
	}

	next := n * SlotWidth
	maxCard := float64(qs.MaxCard)
	if v.opts.IncludeMaxCard {
		if maxCard <= 0 {
			return Vector{}, &ZeroCardinalityLogError{Field: "max_card", Value: maxCard, MaxCard: maxCard}
		}
		values[next] = math.Log(maxCard)
		next++
	}
	if v.opts.IncludeCardinalities {
		if card == nil {
			return Vector{}, fmt.Errorf("query-set %d: cardinalities requested but none given", qs.ID)
		}
		est, err := NormalizeCardinality("estimated_cardinality", card.Estimated, maxCard)
		if err != nil {
			return Vector{}, err
		}
		truth, err := NormalizeCardinality("true_cardinality", card.True, maxCard)
		if err != nil {
			return Vector{}, err
		}
		values[next] = est
		values[next+1] = truth
	}

	return Vector{QuerySetID: qs.ID, Values: values}, nil
}
