package workload

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadSQL(t *testing.T) {
	queries, err := ReadFile("testdata/job-light.sql", ReadOptions{})
	require.NoError(t, err)
	require.Len(t, queries, 6)
	assert.Equal(t, "SELECT COUNT(*) FROM title t WHERE t.kind_id!=7", queries[5])
	assert.True(t, strings.HasPrefix(queries[2], "select count(*)"))
}

func TestReadSQLDropsBlankStatements(t *testing.T) {
	queries, err := ReadSQL(strings.NewReader("SELECT 1;\r\n\n;\nSELECT 2"))
	require.NoError(t, err)
	assert.Equal(t, []string{"SELECT 1", "SELECT 2"}, queries)
}

func TestReadCSV(t *testing.T) {
	queries, err := ReadFile("testdata/job-light.csv", ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"SELECT COUNT(*) FROM title t,movie_info_idx mi_idx WHERE t.id=mi_idx.movie_id AND mi_idx.info_type_id=112 AND t.kind_id=1",
		"SELECT COUNT(*) FROM title t WHERE t.production_year>2005",
		"SELECT COUNT(*) FROM cast_info ci,title t WHERE t.id=ci.movie_id AND ci.role_id=2",
	}, queries)
}

func TestReadCSVSeparators(t *testing.T) {
	input := "title t|cast_info ci@t.id=ci.movie_id@ci.role_id|<|3\n"

	queries, err := ReadCSV(strings.NewReader(input), ReadOptions{InnerSeparator: "|", OuterSeparator: "@", TableSeparator: ';'})
	require.NoError(t, err)
	assert.Equal(t, []string{"SELECT COUNT(*) FROM title t;cast_info ci WHERE t.id=ci.movie_id AND ci.role_id<3"}, queries)
}

func TestReadCSVIncompleteTriple(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("title t##t.kind_id,=\n"), ReadOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workload line 1")
}

func TestReadFileUnsupportedType(t *testing.T) {
	_, err := ReadFile("testdata/job-light.sql.gz", ReadOptions{})
	require.Error(t, err)

	_, err = ReadFile(filepath.Join("testdata", "..", "doc.go"), ReadOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file type")
}
