package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/cardest/internal/store"
)

// fixtureStatements builds a small movie database in the shape of the IMDB
// tables the pipeline is usually pointed at.
//
// Joined on title.id = cast_info.movie_id it yields 5 rows:
//
//	kind_id          1..7
//	production_year  1999..2010
//	role_id          1..11
//	note             "(uncredited)", "(voice)", "-1" (NULL) with counts 1, 2, 2
var fixtureStatements = []string{
	`CREATE TABLE title (
		id INTEGER PRIMARY KEY,
		kind_id INTEGER NOT NULL,
		production_year INTEGER,
		title TEXT NOT NULL
	)`,
	`CREATE TABLE cast_info (
		id INTEGER PRIMARY KEY,
		movie_id INTEGER NOT NULL,
		person_id INTEGER NOT NULL,
		role_id INTEGER NOT NULL,
		note TEXT
	)`,
	`INSERT INTO title (id, kind_id, production_year, title) VALUES
		(1, 1, 1999, 'alpha'),
		(2, 2, 2005, 'beta'),
		(3, 7, 2010, 'gamma'),
		(4, 1, NULL, 'delta')`,
	`INSERT INTO cast_info (id, movie_id, person_id, role_id, note) VALUES
		(1, 1, 10, 1, '(voice)'),
		(2, 1, 11, 2, NULL),
		(3, 2, 12, 1, '(uncredited)'),
		(4, 3, 10, 3, '(voice)'),
		(5, 3, 13, 11, NULL),
		(6, 9, 14, 4, 'orphan')`,
}

// NewFixtureDB creates the fixture database in a temp directory and returns
// the open store and its path. The store is closed when the test ends.
func NewFixtureDB(t testing.TB) (*store.Store, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "fixture.db")
	st, err := store.Open(path)
	require.NoError(t, err, "open fixture database")
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	for _, stmt := range fixtureStatements {
		require.NoError(t, st.Execute(ctx, stmt), "seed fixture database")
	}
	return st, path
}
