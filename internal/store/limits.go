package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/uniforme/internal/eligibility"
	"github.com/erazemk/uniforme/internal/model"
)

// LoadLimitSnapshot builds the quota state of a student from their explicit
// caps, their non-cancelled orders and the school-wide settings.
func LoadLimitSnapshot(ctx context.Context, db *sql.DB, student *model.Student) (*model.LimitSnapshot, error) {
	return loadLimitSnapshot(ctx, db, student)
}

func loadLimitSnapshot(ctx context.Context, q querier, student *model.Student) (*model.LimitSnapshot, error) {
	caps, err := getPermissions(ctx, q, student.ID)
	if err != nil {
		return nil, err
	}

	snap := &model.LimitSnapshot{
		MaxQuantities:     caps,
		AlreadyOrdered:    make(map[string]int),
		ClaimedItems:      make(map[string]int),
		BlockedDueToVoid:  student.BlockedDueToVoid,
		ProfileIncomplete: student.ProfileIncomplete(),
	}

	rows, err := q.QueryContext(ctx,
		`SELECT oi.name, oi.quantity, o.status
		 FROM order_items oi
		 JOIN orders o ON o.id = oi.order_id
		 WHERE o.student_id = ? AND o.voided = 0 AND o.status != ?`,
		student.ID, model.OrderStatusCancelled,
	)
	if err != nil {
		return nil, fmt.Errorf("loading ordered items: %w", err)
	}
	defer rows.Close()

	slots := make(map[string]struct{})
	for rows.Next() {
		var name, status string
		var quantity int
		if err := rows.Scan(&name, &quantity, &status); err != nil {
			return nil, fmt.Errorf("scanning ordered item: %w", err)
		}
		key := eligibility.ResolveKey(name)
		slots[key] = struct{}{}
		switch status {
		case model.OrderStatusClaimed, model.OrderStatusCompleted:
			snap.ClaimedItems[key] += quantity
		default:
			snap.AlreadyOrdered[key] += quantity
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("loading ordered items: %w", err)
	}
	rows.Close()
	snap.SlotsUsedFromPlacedOrders = len(slots)

	settings, err := getOrderSettings(ctx, q)
	if err != nil {
		return nil, err
	}
	snap.TotalItemLimit = settings.TotalItemLimit

	return snap, nil
}
