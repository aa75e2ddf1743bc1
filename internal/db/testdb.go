package db

import (
	"database/sql"
	"testing"
)

// NewTestDB returns an in-memory uniforme database with every table in
// place, opened with the production pragmas.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()

	database, err := Open(":memory:")
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := EnsureSchema(database); err != nil {
		t.Fatalf("applying schema: %v", err)
	}
	for _, table := range Tables {
		var n int
		err := database.QueryRow(
			`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table,
		).Scan(&n)
		if err != nil || n != 1 {
			t.Fatalf("test database is missing table %s (err=%v)", table, err)
		}
	}

	return database
}
