package vector

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cardest/internal/predicate"
	"github.com/roach88/cardest/internal/schema"
)

func imdbQuerySet() *schema.QuerySet {
	return &schema.QuerySet{
		ID:     3,
		Tables: []predicate.TableRef{{Name: "cast_info", Alias: "ci"}, {Name: "title", Alias: "t"}},
		Attributes: []schema.Attribute{
			{Name: "kind_id", Table: "title", Alias: "t", Column: "kind_id", Type: "INTEGER", Min: 1, Max: 8, Step: 1},
			{Name: "person_id", Table: "cast_info", Alias: "ci", Column: "person_id", Type: "INTEGER", Min: 1, Max: 6226526, Step: 1},
			{Name: "role_id", Table: "cast_info", Alias: "ci", Column: "role_id", Type: "INTEGER", Min: 1, Max: 11, Step: 1},
		},
		MaxCard: 1000,
	}
}

func noteQuerySet() *schema.QuerySet {
	qs := imdbQuerySet()
	qs.Attributes = append([]schema.Attribute{}, qs.Attributes[0], schema.Attribute{
		Name: "note", Table: "cast_info", Alias: "ci", Column: "note", Type: "TEXT",
		Min: 0, Max: 2, Step: 1,
		Encoding: &schema.Encoding{Values: []string{"(uncredited)", "(voice)", "-1"}},
	})
	return qs
}

func mustParse(t *testing.T, where string) *predicate.Query {
	t.Helper()
	q, err := predicate.NewParser(predicate.DefaultOptions()).Parse("SELECT COUNT(*) FROM title t, cast_info ci WHERE " + where)
	require.NoError(t, err)
	return q
}

func mustNew(t *testing.T, opts Options) *Vectorizer {
	t.Helper()
	v, err := New(opts)
	require.NoError(t, err)
	return v
}

func TestVectorizeRangePredicates(t *testing.T) {
	v := mustNew(t, Options{MaxPredicates: 3})

	vec, err := v.Vectorize(mustParse(t, "person_id <= 2559751 AND kind_id <= 2"), imdbQuerySet(), nil)
	require.NoError(t, err)

	assert.Equal(t, 3, vec.QuerySetID)
	assert.Equal(t, []float64{
		1, 0, 1, 0.25,
		1, 0, 1, 2559751.0 / 6226526.0,
		0, 0, 0, 0,
	}, vec.Values)
	assert.InDelta(t, 0.4111042016, vec.Values[7], 1e-10)
}

func TestVectorizeNotEqual(t *testing.T) {
	v := mustNew(t, Options{MaxPredicates: 3})

	vec, err := v.Vectorize(mustParse(t, "kind_id != 8"), imdbQuerySet(), nil)
	require.NoError(t, err)

	assert.Equal(t, []float64{1, 1, 0, 1, 0, 0, 0, 0, 0, 0, 0, 0}, vec.Values)
}

func TestVectorizeTooManyPredicates(t *testing.T) {
	v := mustNew(t, Options{MaxPredicates: 4})
	q := mustParse(t, "kind_id = 1 AND kind_id = 2 AND kind_id = 3 AND role_id = 1 AND role_id = 2 AND role_id = 3 AND person_id = 1 AND person_id = 2 AND person_id = 3")
	require.Len(t, q.Selections, 9)

	_, err := v.Vectorize(q, imdbQuerySet(), nil)
	require.Error(t, err)
	assert.True(t, IsSlotOverflow(err))

	var se *SlotOverflowError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 9, se.Predicates)
	assert.Equal(t, 4, se.Max)
}

func TestVectorizeAttributeBeyondLastSlot(t *testing.T) {
	v := mustNew(t, Options{MaxPredicates: 2})

	_, err := v.Vectorize(mustParse(t, "ci.role_id = 3"), imdbQuerySet(), nil)
	var se *SlotOverflowError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "ci.role_id", se.Attribute)
	assert.Equal(t, 2, se.Index)
}

func TestVectorizeIsDeterministic(t *testing.T) {
	v := mustNew(t, Options{MaxPredicates: 4, IncludeMaxCard: true, IncludeCardinalities: true})
	q := mustParse(t, "t.kind_id >= 2 AND ci.role_id < 4 AND ci.person_id > 1000")
	card := &Cardinality{Estimated: 17, True: 23}

	a, err := v.Vectorize(q, imdbQuerySet(), card)
	require.NoError(t, err)
	b, err := v.Vectorize(q, imdbQuerySet(), card)
	require.NoError(t, err)

	require.Len(t, a.Values, len(b.Values))
	for i := range a.Values {
		assert.Equal(t, math.Float64bits(a.Values[i]), math.Float64bits(b.Values[i]), "field %d", i)
	}
}

func TestVectorizeSlotStability(t *testing.T) {
	v := mustNew(t, Options{MaxPredicates: 3})
	qs := imdbQuerySet()

	a, err := v.Vectorize(mustParse(t, "t.kind_id = 2 AND ci.role_id > 4"), qs, nil)
	require.NoError(t, err)
	b, err := v.Vectorize(mustParse(t, "ci.role_id > 4 AND t.kind_id = 2"), qs, nil)
	require.NoError(t, err)
	c, err := v.Vectorize(mustParse(t, "role_id > 4"), qs, nil)
	require.NoError(t, err)

	assert.Equal(t, a.Values, b.Values)
	assert.Equal(t, a.Values[8:12], c.Values[8:12])
	assert.Equal(t, []float64{0, 0, 0, 0}, c.Values[0:4])
}

func TestVectorizeUnusedSlotsStayZero(t *testing.T) {
	qs := imdbQuerySet()
	qs.Attributes = append(qs.Attributes, schema.Attribute{Name: "year", Table: "title", Alias: "t", Column: "year", Type: "INTEGER", Min: 1880, Max: 2019, Step: 1})
	v := mustNew(t, Options{MaxPredicates: 4})

	vec, err := v.Vectorize(mustParse(t, "kind_id = 1 AND year > 2000"), qs, nil)
	require.NoError(t, err)

	used, empty := 0, 0
	for slot := 0; slot < 4; slot++ {
		triple := vec.Values[slot*SlotWidth : slot*SlotWidth+OperatorWidth]
		if triple[0] == 0 && triple[1] == 0 && triple[2] == 0 {
			empty++
			assert.Zero(t, vec.Values[slot*SlotWidth+OperatorWidth])
		} else {
			used++
		}
	}
	assert.Equal(t, 2, used)
	assert.Equal(t, 2, empty)
}

func TestVectorizeCategoricalAttribute(t *testing.T) {
	v := mustNew(t, Options{MaxPredicates: 2})
	qs := noteQuerySet()

	vec, err := v.Vectorize(mustParse(t, "ci.note = '(voice)'"), qs, nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0, 0, 0, 0, 1, 2.0 / 3.0}, vec.Values)

	vec, err = v.Vectorize(mustParse(t, "ci.note IS NULL"), qs, nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0, 0, 0, 0, 1, 1}, vec.Values)

	vec, err = v.Vectorize(mustParse(t, "ci.note IS NOT NULL"), qs, nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0, 0, 1, 1, 0, 1}, vec.Values)
}

func TestVectorizeUnknownCategory(t *testing.T) {
	v := mustNew(t, Options{MaxPredicates: 2})

	_, err := v.Vectorize(mustParse(t, "ci.note = '(dubbed)'"), noteQuerySet(), nil)
	require.Error(t, err)
	assert.True(t, IsUnknownCategory(err))

	var ue *UnknownCategoryError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "note", ue.Attribute)
	assert.Equal(t, "(dubbed)", ue.Value)
}

func TestVectorizeUnknownAttribute(t *testing.T) {
	v := mustNew(t, Options{MaxPredicates: 3})

	_, err := v.Vectorize(mustParse(t, "t.production_year > 2000"), imdbQuerySet(), nil)
	require.Error(t, err)
	assert.True(t, schema.IsAttributeNotFound(err))
}

func TestVectorizeRejectsTablesOutsideQuerySet(t *testing.T) {
	v := mustNew(t, Options{MaxPredicates: 3})
	q, err := predicate.NewParser(predicate.DefaultOptions()).Parse("SELECT COUNT(*) FROM movie_keyword mk WHERE mk.kind_id=1")
	require.NoError(t, err)

	_, err = v.Vectorize(q, imdbQuerySet(), nil)
	require.Error(t, err)
	assert.True(t, schema.IsAttributeNotFound(err))
}

func TestVectorizeResolvesQueryAliases(t *testing.T) {
	v := mustNew(t, Options{MaxPredicates: 3})
	q, err := predicate.NewParser(predicate.DefaultOptions()).Parse("SELECT COUNT(*) FROM title tt, cast_info c WHERE tt.id=c.movie_id AND c.role_id=11")
	require.NoError(t, err)

	vec, err := v.Vectorize(q, imdbQuerySet(), nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1, 1}, vec.Values)
}

func TestVectorizeCardinalityFields(t *testing.T) {
	v := mustNew(t, Options{MaxPredicates: 3, IncludeMaxCard: true, IncludeCardinalities: true})
	assert.Equal(t, 15, v.Width())

	vec, err := v.Vectorize(mustParse(t, "kind_id = 1"), imdbQuerySet(), &Cardinality{Estimated: 10, True: 100})
	require.NoError(t, err)

	require.Len(t, vec.Values, 15)
	assert.InDelta(t, math.Log(1000), vec.Values[12], 1e-12)
	assert.InDelta(t, 1.0/3.0, vec.Values[13], 1e-12)
	assert.InDelta(t, 2.0/3.0, vec.Values[14], 1e-12)
}

func TestVectorizeZeroCardinality(t *testing.T) {
	v := mustNew(t, Options{MaxPredicates: 3, IncludeCardinalities: true})

	_, err := v.Vectorize(mustParse(t, "kind_id = 1"), imdbQuerySet(), &Cardinality{Estimated: 10, True: 0})
	require.Error(t, err)
	assert.True(t, IsZeroCardinality(err))
	assert.Contains(t, err.Error(), "true_cardinality")

	_, err = v.Vectorize(mustParse(t, "kind_id = 1"), imdbQuerySet(), nil)
	assert.ErrorContains(t, err, "cardinalities requested")
}

func TestWidth(t *testing.T) {
	tests := []struct {
		opts Options
		want int
	}{
		{Options{MaxPredicates: 4}, 16},
		{Options{MaxPredicates: 4, IncludeMaxCard: true}, 17},
		{Options{MaxPredicates: 4, IncludeCardinalities: true}, 18},
		{Options{MaxPredicates: 1, IncludeMaxCard: true, IncludeCardinalities: true}, 7},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, mustNew(t, tt.opts).Width())
	}

	_, err := New(Options{})
	assert.Error(t, err)
}

func TestOperatorCodes(t *testing.T) {
	tests := []struct {
		op   predicate.Operator
		want [3]float64
	}{
		{predicate.OpEq, [3]float64{0, 0, 1}},
		{predicate.OpIs, [3]float64{0, 0, 1}},
		{predicate.OpGt, [3]float64{0, 1, 0}},
		{predicate.OpLt, [3]float64{1, 0, 0}},
		{predicate.OpLe, [3]float64{1, 0, 1}},
		{predicate.OpGe, [3]float64{0, 1, 1}},
		{predicate.OpNe, [3]float64{1, 1, 0}},
	}
	for _, tt := range tests {
		code, err := OperatorCode(tt.op)
		require.NoError(t, err)
		assert.Equal(t, tt.want, code, "operator %s", tt.op)
	}

	_, err := OperatorCode("LIKE")
	assert.Error(t, err)
}

func TestNormalizeRange(t *testing.T) {
	ranges := []schema.Attribute{
		{Name: "a", Min: 1, Max: 8, Step: 1},
		{Name: "b", Min: -5, Max: 5, Step: 1},
		{Name: "c", Min: 0, Max: 0, Step: 1},
		{Name: "d", Min: 10, Max: 100, Step: 10},
		{Name: "e", Min: 0, Max: 2, Step: 1},
	}
	for _, a := range ranges {
		lower := float64(a.Step) / float64(a.Max-a.Min+a.Step)
		for value := a.Min; value <= a.Max; value++ {
			n := Normalize(float64(value), a)
			assert.GreaterOrEqual(t, n, lower, "%s=%d", a.Name, value)
			assert.LessOrEqual(t, n, 1.0, "%s=%d", a.Name, value)
		}
		assert.Equal(t, lower, Normalize(float64(a.Min), a))
		assert.Equal(t, 1.0, Normalize(float64(a.Max), a))
	}
}

func TestNormalizeClampsBelowMin(t *testing.T) {
	a := schema.Attribute{Name: "kind_id", Min: 1, Max: 8, Step: 1}

	assert.Equal(t, 0.125, Normalize(-5, a))
	assert.Equal(t, 0.125, Normalize(1, a))
}

func TestEncodeValue(t *testing.T) {
	numeric := schema.Attribute{Name: "kind_id", Min: 1, Max: 8, Step: 1}

	lit, err := predicate.NumberLiteral("2.5")
	require.NoError(t, err)
	v, err := EncodeValue(lit, numeric)
	require.NoError(t, err)
	assert.Equal(t, 2.5, v)

	v, err = EncodeValue(predicate.StringLiteral("7"), numeric)
	require.NoError(t, err)
	assert.Equal(t, 7.0, v)

	v, err = EncodeValue(predicate.NullLiteral(), numeric)
	require.NoError(t, err)
	assert.Equal(t, -1.0, v)

	_, err = EncodeValue(predicate.StringLiteral("movie"), numeric)
	require.Error(t, err)
	assert.True(t, IsNonNumericValue(err))
	assert.False(t, IsUnknownCategory(err))
	assert.EqualError(t, err, `NON_NUMERIC_VALUE: value "movie" of integer attribute "kind_id" is not a number`)
}

func TestNormalizeCardinality(t *testing.T) {
	n, err := NormalizeCardinality("true_cardinality", 1000, 1000)
	require.NoError(t, err)
	assert.Equal(t, 1.0, n)

	n, err = NormalizeCardinality("true_cardinality", 1, 1000)
	require.NoError(t, err)
	assert.Equal(t, 0.0, n)

	_, err = NormalizeCardinality("true_cardinality", -3, 1000)
	assert.True(t, IsZeroCardinality(err))

	_, err = NormalizeCardinality("estimated_cardinality", 5, 1)
	assert.ErrorContains(t, err, "must be greater than 1")
}
