package schema

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cardest/internal/testutil"
)

const validMeta = `0:
  id: 0
  table_names:
    - name: title
      alias: t
  join_attributes: []
  columns:
    - name: kind_id
      table: title
      alias: t
      column: kind_id
      type: INTEGER
      min: 1
      max: 8
      step: 1
    - name: note
      table: title
      alias: t
      column: note
      type: TEXT
      min: 0
      max: 1
      step: 1
      encoding:
        values: ["(voice)", "-1"]
        counts: [3, 1]
  max_card: 4
`

func TestDecodeCatalog(t *testing.T) {
	c, err := DecodeCatalog("meta.yaml", []byte(validMeta))
	require.NoError(t, err)

	qs, err := c.Lookup(0)
	require.NoError(t, err)
	assert.Equal(t, []string{"kind_id", "note"}, qs.Names())
	assert.Equal(t, int64(4), qs.MaxCard)

	code, ok := qs.Attributes[1].Encoding.Code("-1")
	require.True(t, ok)
	assert.Equal(t, 1, code)
}

func TestDecodeCatalogStructuralErrors(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		issue string
	}{
		{"zero step", strings.ReplaceAll(validMeta, "step: 1\n    - name: note", "step: 0\n    - name: note"), "step"},
		{"unknown field", strings.ReplaceAll(validMeta, "max_card: 4", "max_card: 4\n  maxcard: 4"), "maxcard"},
		{"missing columns", "0:\n  id: 0\n  table_names: [{name: title, alias: t}]\n  join_attributes: []\n  max_card: 1\n", "columns"},
		{"numeric category", strings.ReplaceAll(validMeta, `["(voice)", "-1"]`, `["(voice)", -1]`), "values"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeCatalog("meta.yaml", []byte(tt.doc))
			require.Error(t, err)
			var de *DocumentError
			require.ErrorAs(t, err, &de)
			assert.Contains(t, de.Error(), tt.issue)
		})
	}
}

func TestDecodeCatalogSemanticErrors(t *testing.T) {
	doc := strings.ReplaceAll(validMeta, "min: 1\n      max: 8", "min: 9\n      max: 8")
	_, err := DecodeCatalog("meta.yaml", []byte(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "min 9 > max 8")

	doc = strings.ReplaceAll(validMeta, "0:\n  id: 0", "3:\n  id: 0")
	_, err = DecodeCatalog("meta.yaml", []byte(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "keyed 3 carries id 0")
}

func TestDecodeCatalogRejectsEmptyDocument(t *testing.T) {
	_, err := DecodeCatalog("meta.yaml", []byte("{}\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no query-sets")
}

func TestCatalogSaveLoadRoundTrip(t *testing.T) {
	st, _ := testutil.NewFixtureDB(t)
	reg := NewRegistry(st, RegistryOptions{})
	_, err := reg.Build(context.Background(), joinRequest(0))
	require.NoError(t, err)
	_, err = reg.Build(context.Background(), joinRequest(1))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out", "meta.yaml")
	require.NoError(t, reg.Catalog().Save(path))

	loaded, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, loaded.IDs())

	built := reg.Catalog()
	for _, id := range loaded.IDs() {
		want, got := built[id], loaded[id]
		assert.Equal(t, want.Names(), got.Names())
		assert.Equal(t, want.MaxCard, got.MaxCard)
		assert.Equal(t, want.Tables, got.Tables)
		for i := range want.Attributes {
			assert.Equal(t, want.Attributes[i].Min, got.Attributes[i].Min)
			assert.Equal(t, want.Attributes[i].Max, got.Attributes[i].Max)
			if want.Attributes[i].Encoding != nil {
				assert.Equal(t, want.Attributes[i].Encoding.Values, got.Attributes[i].Encoding.Values)
			}
		}
		wfp, err := want.Fingerprint()
		require.NoError(t, err)
		gfp, err := got.Fingerprint()
		require.NoError(t, err)
		assert.Equal(t, wfp, gfp)
	}
}

func TestLookupUnknownQuerySet(t *testing.T) {
	_, err := Catalog{}.Lookup(5)
	var ue *UnknownQuerySetError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, 5, ue.ID)
}

func TestLoadCatalogMissingFile(t *testing.T) {
	_, err := LoadCatalog(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
