package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/uniforme/internal/eligibility"
)

// SetPermissions replaces a student's explicit per-item caps. Keys are
// resolved the same way item names are, so "Logo  Patch" and "logo patch"
// address the same entry.
func SetPermissions(ctx context.Context, db *sql.DB, studentID int64, caps map[string]int) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM item_permissions WHERE student_id = ?`, studentID,
	); err != nil {
		return fmt.Errorf("clearing permissions: %w", err)
	}

	for name, n := range caps {
		if n < 0 {
			return fmt.Errorf("max quantity for %q must not be negative", name)
		}
		key := eligibility.ResolveKey(name)
		if key == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO item_permissions (student_id, item_key, max_quantity) VALUES (?, ?, ?)
			 ON CONFLICT (student_id, item_key) DO UPDATE SET max_quantity = excluded.max_quantity`,
			studentID, key, n,
		); err != nil {
			return fmt.Errorf("setting permission: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing permissions: %w", err)
	}
	return nil
}

// GetPermissions returns a student's explicit per-item caps.
func GetPermissions(ctx context.Context, db *sql.DB, studentID int64) (map[string]int, error) {
	return getPermissions(ctx, db, studentID)
}

func getPermissions(ctx context.Context, q querier, studentID int64) (map[string]int, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT item_key, max_quantity FROM item_permissions WHERE student_id = ?`, studentID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing permissions: %w", err)
	}
	defer rows.Close()

	caps := make(map[string]int)
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, fmt.Errorf("scanning permission: %w", err)
		}
		caps[key] = n
	}
	return caps, rows.Err()
}
