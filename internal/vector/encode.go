package vector

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/roach88/cardest/internal/predicate"
	"github.com/roach88/cardest/internal/schema"
)

// OperatorWidth is the width of an operator's one-hot code.
const OperatorWidth = 3

// SlotWidth is the number of fields per predicate slot: the operator code
// followed by the normalized value.
const SlotWidth = OperatorWidth + 1

// NullValue is the numeric stand-in for NULL literals. It matches the value
// NULLs of categorical columns are coalesced to when statistics are built.
const NullValue = "-1"

var operatorCodes = map[predicate.Operator][OperatorWidth]float64{
	predicate.OpEq: {0, 0, 1},
	predicate.OpIs: {0, 0, 1},
	predicate.OpGt: {0, 1, 0},
	predicate.OpLt: {1, 0, 0},
	predicate.OpLe: {1, 0, 1},
	predicate.OpGe: {0, 1, 1},
	predicate.OpNe: {1, 1, 0},
}

// OperatorCode returns the one-hot code of op.
func OperatorCode(op predicate.Operator) ([OperatorWidth]float64, error) {
	code, ok := operatorCodes[op]
	if !ok {
		return code, fmt.Errorf("no code for operator %q", op)
	}
	return code, nil
}

// EncodeValue maps a literal to the numeric value of attribute a. Categorical
// attributes map through their encoding and anything absent from it is an
// UnknownCategoryError. Integer attributes take numbers, and numeric strings;
// other text is a NonNumericValueError. NULL encodes as NullValue.
func EncodeValue(lit predicate.Literal, a schema.Attribute) (float64, error) {
	text := lit.Text
	if lit.Kind == predicate.LiteralNull {
		text = NullValue
	}

	if a.Categorical() {
		code, ok := a.Encoding.Code(text)
		if !ok {
			return 0, &UnknownCategoryError{Attribute: a.Name, Value: text}
		}
		return float64(code), nil
	}

	switch lit.Kind {
	case predicate.LiteralNumber:
		return lit.Number, nil
	case predicate.LiteralNull:
		return -1, nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return 0, &NonNumericValueError{Attribute: a.Name, Value: text}
	}
	return v, nil
}

// Normalize clamps value to at least the attribute's minimum and scales it
// to (value - min + step) / (max - min + step). For min <= value <= max the
// result lies in [step/(max-min+step), 1], so 0 stays free to mark unused
// slots.
func Normalize(value float64, a schema.Attribute) float64 {
	lo, hi, step := float64(a.Min), float64(a.Max), float64(a.Step)
	value = math.Max(lo, value)
	return (value - lo + step) / (hi - lo + step)
}

// NormalizeCardinality maps a cardinality onto ln(value) / ln(maxCard).
func NormalizeCardinality(field string, value, maxCard float64) (float64, error) {
	if value <= 0 {
		return 0, &ZeroCardinalityLogError{Field: field, Value: value, MaxCard: maxCard}
	}
	if maxCard <= 1 {
		return 0, &ZeroCardinalityLogError{Field: field, Value: value, MaxCard: maxCard}
	}
	return math.Log(value) / math.Log(maxCard), nil
}
