package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cardest/internal/predicate"
)

// imdbQuerySet is the three-attribute layout used across vectorizer examples.
func imdbQuerySet() *QuerySet {
	return &QuerySet{
		ID:             0,
		Tables:         []predicate.TableRef{{Name: "cast_info", Alias: "ci"}, {Name: "title", Alias: "t"}},
		JoinAttributes: []string{"title.id = cast_info.movie_id"},
		Attributes: []Attribute{
			{Name: "kind_id", Table: "title", Alias: "t", Column: "kind_id", Type: "INTEGER", Min: 1, Max: 8, Step: 1},
			{Name: "person_id", Table: "cast_info", Alias: "ci", Column: "person_id", Type: "INTEGER", Min: 1, Max: 6226526, Step: 1},
			{Name: "role_id", Table: "cast_info", Alias: "ci", Column: "role_id", Type: "INTEGER", Min: 1, Max: 11, Step: 1},
		},
		MaxCard: 36244344,
	}
}

func TestIndexLookupOrder(t *testing.T) {
	qs := imdbQuerySet()

	tests := []struct {
		attr string
		want int
	}{
		{"kind_id", 0},
		{"t.kind_id", 0},
		{"title.kind_id", 0},
		{"ci.person_id", 1},
		{"role_id", 2},
	}
	for _, tt := range tests {
		t.Run(tt.attr, func(t *testing.T) {
			i, err := qs.Index(tt.attr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, i)
		})
	}
}

func TestIndexUnknownAttribute(t *testing.T) {
	_, err := imdbQuerySet().Index("t.production_year")
	require.Error(t, err)
	assert.True(t, IsAttributeNotFound(err))
	assert.Contains(t, err.Error(), "kind_id, person_id, role_id")
}

func TestIndexRejectsForeignQualifier(t *testing.T) {
	qs := imdbQuerySet()

	for _, attr := range []string{"mk.kind_id", "movie_keyword.kind_id", "ci.kind_id", "title.role_id"} {
		t.Run(attr, func(t *testing.T) {
			_, err := qs.Index(attr)
			require.Error(t, err)
			assert.True(t, IsAttributeNotFound(err))
			assert.Contains(t, err.Error(), attr)
		})
	}
}

func TestCheckTables(t *testing.T) {
	qs := imdbQuerySet()

	require.NoError(t, qs.CheckTables([]predicate.TableRef{{Name: "title", Alias: "tt"}, {Name: "cast_info", Alias: "c"}}))

	tests := []struct {
		name   string
		tables []predicate.TableRef
	}{
		{"other table", []predicate.TableRef{{Name: "movie_keyword", Alias: "mk"}}},
		{"subset", []predicate.TableRef{{Name: "title", Alias: "t"}}},
		{"superset", []predicate.TableRef{{Name: "cast_info", Alias: "ci"}, {Name: "movie_keyword", Alias: "mk"}, {Name: "title", Alias: "t"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := qs.CheckTables(tt.tables)
			require.Error(t, err)
			assert.True(t, IsTableMismatch(err))
			assert.Contains(t, err.Error(), "query-set 0 joins [cast_info, title]")
		})
	}
}

func TestQuerySetValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*QuerySet)
		want   string
	}{
		{"min above max", func(qs *QuerySet) { qs.Attributes[0].Min = 9 }, "min 9 > max 8"},
		{"zero step", func(qs *QuerySet) { qs.Attributes[1].Step = 0 }, "step 0 < 1"},
		{"unsorted", func(qs *QuerySet) {
			qs.Attributes[0], qs.Attributes[1] = qs.Attributes[1], qs.Attributes[0]
		}, "not strictly sorted"},
		{"no tables", func(qs *QuerySet) { qs.Tables = nil }, "no tables"},
		{"encoding range", func(qs *QuerySet) {
			qs.Attributes[2].Encoding = &Encoding{Values: []string{"a", "b"}}
		}, "needs range [0, 1]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qs := imdbQuerySet()
			require.NoError(t, qs.Validate())
			tt.mutate(qs)
			err := qs.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestWithIDSharesAttributes(t *testing.T) {
	qs := imdbQuerySet()
	cp := qs.WithID(42)

	assert.Equal(t, 42, cp.ID)
	assert.Equal(t, 0, qs.ID)
	assert.Equal(t, qs.Names(), cp.Names())
	assert.Equal(t, "query-set 42 [cast_info ci,title t] (kind_id, person_id, role_id)", cp.String())
}

func TestNewEncodingSortsBytewise(t *testing.T) {
	enc, err := NewEncoding([]string{"b", "-1", "B", "a"}, []int64{4, 3, 2, 1})
	require.NoError(t, err)

	assert.Equal(t, []string{"-1", "B", "a", "b"}, enc.Values)
	assert.Equal(t, []int64{3, 2, 1, 4}, enc.Counts)
	require.NoError(t, enc.Validate())

	code, ok := enc.Code("a")
	assert.True(t, ok)
	assert.Equal(t, 2, code)
	_, ok = enc.Code("c")
	assert.False(t, ok)
}

func TestNewEncodingRejectsDuplicates(t *testing.T) {
	_, err := NewEncoding([]string{"x", "x"}, nil)
	assert.ErrorContains(t, err, "duplicate value")

	_, err = NewEncoding([]string{"x"}, []int64{1, 2})
	assert.ErrorContains(t, err, "1 values but 2 counts")
}

func TestEncodingCodeIsIndexOfValue(t *testing.T) {
	enc := &Encoding{Values: []string{"(uncredited)", "(voice)", "-1"}}

	for i, v := range enc.Values {
		code, ok := enc.Code(v)
		require.True(t, ok)
		assert.Equal(t, i, code)
	}
}
