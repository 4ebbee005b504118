package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cardest/internal/predicate"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cardest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Empty(t, cfg.Path)
	assert.Equal(t, "imdb.db", cfg.Database.Path)
	assert.Equal(t, 8, cfg.Vectorizer.MaxPredicates)
	assert.Equal(t, 4, cfg.Vectorizer.Workers)
	assert.False(t, cfg.Vectorizer.Strict)
	assert.Equal(t, predicate.Options{Format: predicate.FormatCrossProduct, Separator: ',', RequireWhere: true}, cfg.ParserOptions())
}

func TestLoadSearchPaths(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.MkdirAll("configs", 0o755))
	require.NoError(t, os.WriteFile(filepath.Join("configs", "cardest.yaml"), []byte("vectorizer:\n  max_predicates: 5\n"), 0o644))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("configs", "cardest.yaml"), cfg.Path)
	assert.Equal(t, 5, cfg.Vectorizer.MaxPredicates)

	require.NoError(t, os.WriteFile("cardest.yaml", []byte("vectorizer:\n  max_predicates: 2\n"), 0o644))
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "cardest.yaml", cfg.Path)
	assert.Equal(t, 2, cfg.Vectorizer.MaxPredicates)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
database:
  path: /data/imdb.db
parser:
  format: jo
  separator: ";"
  inner_separator: "|"
registry:
  keep_materialized: true
vectorizer:
  max_predicates: 4
  include_max_card: true
  include_cardinalities: true
  strict: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.Path)
	assert.Equal(t, "/data/imdb.db", cfg.Database.Path)
	assert.True(t, cfg.Registry.KeepMaterialized)
	assert.Equal(t, "|", cfg.Parser.InnerSeparator)
	assert.Equal(t, "#", cfg.Parser.OuterSeparator)
	assert.True(t, cfg.Vectorizer.IncludeMaxCard)
	assert.True(t, cfg.Vectorizer.IncludeCardinalities)
	assert.True(t, cfg.Vectorizer.Strict)
	assert.Equal(t, 4, cfg.Vectorizer.Workers)

	opts := cfg.ParserOptions()
	assert.Equal(t, predicate.FormatJoinOn, opts.Format)
	assert.Equal(t, ';', opts.Separator)
	assert.True(t, opts.RequireWhere)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load("/nonexistent/path/cardest.yaml")
	require.Error(t, err)

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bad yaml", "vectorizer: [", "parse config"},
		{"bad format", "parser:\n  format: xml\n", "invalid query format"},
		{"long separator", "parser:\n  separator: ', '\n", "single character"},
		{"quote separator", "parser:\n  separator: \"'\"\n", "collides with query syntax"},
		{"zero slots", "vectorizer:\n  max_predicates: 0\n", "max_predicates must be at least 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
