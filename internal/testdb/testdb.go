// Package testdb opens throwaway SQLite databases for tests.
package testdb

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// Driver is the pure Go SQLite driver used by tests
const Driver = "sqlite"

// DSN returns a data source name for a fresh database file in a temporary directory
func DSN(t testing.TB) string {
	t.Helper()
	return "file:" + filepath.Join(t.TempDir(), "migrations.db") + "?_pragma=busy_timeout(5000)&_time_format=sqlite"
}

// Open opens a fresh database that is closed when the test ends
func Open(t testing.TB) *sql.DB {
	t.Helper()

	db, err := sql.Open(Driver, DSN(t))
	require.NoError(t, err)
	require.NoError(t, db.Ping())

	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

// Count returns the result of a SELECT COUNT(*) style query
func Count(t testing.TB, db *sql.DB, query string, args ...any) int {
	t.Helper()

	var n int
	require.NoError(t, db.QueryRow(query, args...).Scan(&n))
	return n
}
