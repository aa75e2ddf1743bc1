package store

import (
	"context"
	"database/sql"
	"fmt"
)

// AdjustStock changes an item's stock by delta (for deliveries, corrections
// and losses) and returns the new stock. Delta can be negative.
func AdjustStock(ctx context.Context, db *sql.DB, itemID int64, delta int) (int, error) {
	if delta == 0 {
		return 0, fmt.Errorf("delta must be non-zero")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var current int
	err = tx.QueryRowContext(ctx,
		`SELECT stock FROM items WHERE id = ? AND deleted_at IS NULL`, itemID,
	).Scan(&current)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("item %d: %w", itemID, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("checking current stock: %w", err)
	}

	newStock := current + delta
	if newStock < 0 {
		return 0, fmt.Errorf("adjustment would result in negative stock: %d + %d = %d: %w",
			current, delta, newStock, ErrInsufficientStock)
	}

	if err := setStock(ctx, tx, itemID, newStock); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing adjustment: %w", err)
	}
	return newStock, nil
}

// takeStock removes quantity units of an item, failing when not enough remain.
func takeStock(ctx context.Context, q querier, itemID int64, quantity int) error {
	result, err := q.ExecContext(ctx,
		`UPDATE items SET stock = stock - ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND stock >= ?`,
		quantity, itemID, quantity,
	)
	if err != nil {
		return fmt.Errorf("taking stock: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("taking stock: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("item %d: %w", itemID, ErrInsufficientStock)
	}
	return nil
}

// returnStock puts quantity units of an item back.
func returnStock(ctx context.Context, q querier, itemID int64, quantity int) error {
	_, err := q.ExecContext(ctx,
		`UPDATE items SET stock = stock + ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		quantity, itemID,
	)
	if err != nil {
		return fmt.Errorf("returning stock: %w", err)
	}
	return nil
}

func setStock(ctx context.Context, q querier, itemID int64, stock int) error {
	_, err := q.ExecContext(ctx,
		`UPDATE items SET stock = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		stock, itemID,
	)
	if err != nil {
		return fmt.Errorf("setting stock: %w", err)
	}
	return nil
}
