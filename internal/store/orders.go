package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/erazemk/uniforme/internal/eligibility"
	"github.com/erazemk/uniforme/internal/model"
)

// OrderLine is one requested line of a new order.
type OrderLine struct {
	ItemID   int64 `json:"item_id"`
	Quantity int   `json:"quantity"`
}

// OrderFilter narrows ListOrders. Zero values match everything.
type OrderFilter struct {
	StudentID int64
	Status    string
}

const orderColumns = `o.id, o.order_number, o.order_type, o.status, o.student_id, s.name,
	o.education_level, o.total_amount, o.qr_issued_at, o.voided, o.created_at, o.updated_at`

const orderFrom = ` FROM orders o JOIN students s ON s.id = o.student_id`

func scanOrder(row interface{ Scan(...any) error }) (*model.Order, error) {
	o := &model.Order{}
	var created, updated time.Time
	err := row.Scan(&o.ID, &o.OrderNumber, &o.OrderType, &o.Status, &o.StudentID, &o.StudentName,
		&o.EducationLevel, &o.TotalAmount, &o.QRIssuedAt, &o.Voided, &created, &updated)
	if err != nil {
		return nil, err
	}
	o.CreatedAt = &created
	o.OrderDate = &created
	o.UpdatedAt = &updated
	return o, nil
}

// newOrderNumber builds the display number, e.g. ORD-20261019-3F2A9C.
func newOrderNumber(id string, now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(id, "-", "")[:6])
	return "ORD-" + now.UTC().Format("20060102") + "-" + suffix
}

// CreateOrder places an order for a student. The lines are checked against
// the student's quota in the same transaction that writes the order. When
// every line is in stock the order is regular: stock is taken and the
// receipt is issued immediately. Otherwise the whole order becomes a
// pre-order and waits for stock.
func CreateOrder(ctx context.Context, db *sql.DB, studentID int64, lines []OrderLine, now time.Time) (*model.Order, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("order has no items")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	student, err := getStudent(ctx, tx,
		`SELECT `+studentColumns+` FROM students WHERE id = ? AND deleted_at IS NULL`, studentID)
	if err != nil {
		return nil, err
	}
	if student == nil {
		return nil, fmt.Errorf("student %d: %w", studentID, ErrNotFound)
	}
	if student.ProfileIncomplete() {
		return nil, ErrProfileIncomplete
	}

	snap, err := loadLimitSnapshot(ctx, tx, student)
	if err != nil {
		return nil, err
	}

	merged := mergeLines(lines)
	checked := make([]eligibility.Line, 0, len(merged))
	for _, line := range merged {
		item, err := getItem(ctx, tx, line.ItemID)
		if err != nil {
			return nil, err
		}
		if item == nil || item.DeletedAt != nil {
			return nil, fmt.Errorf("item %d: %w", line.ItemID, ErrNotFound)
		}
		checked = append(checked, eligibility.Line{Item: *item, Quantity: line.Quantity})
	}

	if err := eligibility.CheckOrder(snap, student, checked); err != nil {
		return nil, err
	}

	orderType := model.OrderTypeRegular
	for _, line := range checked {
		if line.Item.Stock < line.Quantity {
			orderType = model.OrderTypePreOrder
			break
		}
	}

	total := decimal.Zero
	for _, line := range checked {
		total = total.Add(line.Item.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}

	var qrIssuedAt *time.Time
	if orderType == model.OrderTypeRegular {
		for _, line := range checked {
			if err := takeStock(ctx, tx, line.Item.ID, line.Quantity); err != nil {
				return nil, err
			}
		}
		issued := now.UTC()
		qrIssuedAt = &issued
	}

	id := uuid.NewString()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO orders (id, order_number, order_type, status, student_id, education_level,
		                     total_amount, qr_issued_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, newOrderNumber(id, now), orderType, model.OrderStatusPending, student.ID,
		student.EducationLevel, total, qrIssuedAt, now.UTC(), now.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("creating order: %w", err)
	}

	for _, line := range checked {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO order_items (order_id, item_id, name, size, quantity, price)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			id, line.Item.ID, line.Item.Name, line.Item.Size, line.Quantity, line.Item.Price,
		)
		if err != nil {
			return nil, fmt.Errorf("creating order item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing order: %w", err)
	}

	return GetOrder(ctx, db, id)
}

// mergeLines folds repeated item ids into one line, keeping first-seen order.
func mergeLines(lines []OrderLine) []OrderLine {
	idx := make(map[int64]int, len(lines))
	var merged []OrderLine
	for _, l := range lines {
		if i, ok := idx[l.ItemID]; ok {
			merged[i].Quantity += l.Quantity
			continue
		}
		idx[l.ItemID] = len(merged)
		merged = append(merged, l)
	}
	return merged
}

// GetOrder returns an order with its lines.
func GetOrder(ctx context.Context, db *sql.DB, id string) (*model.Order, error) {
	return getOrder(ctx, db, id)
}

func getOrder(ctx context.Context, q querier, id string) (*model.Order, error) {
	o, err := scanOrder(q.QueryRowContext(ctx, `SELECT `+orderColumns+orderFrom+` WHERE o.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting order: %w", err)
	}

	o.Items, err = loadOrderItems(ctx, q, o.ID)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func loadOrderItems(ctx context.Context, q querier, orderID string) ([]model.OrderItem, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT COALESCE(item_id, 0), name, quantity, size, price
		 FROM order_items WHERE order_id = ? ORDER BY id`, orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("loading order items: %w", err)
	}
	defer rows.Close()

	var items []model.OrderItem
	for rows.Next() {
		var it model.OrderItem
		if err := rows.Scan(&it.ItemID, &it.Name, &it.Quantity, &it.Size, &it.Price); err != nil {
			return nil, fmt.Errorf("scanning order item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// ListOrders returns orders newest first.
func ListOrders(ctx context.Context, db *sql.DB, filter OrderFilter) ([]model.Order, error) {
	where := ` WHERE 1 = 1`
	var args []any
	if filter.StudentID != 0 {
		where += ` AND o.student_id = ?`
		args = append(args, filter.StudentID)
	}
	if filter.Status != "" {
		where += ` AND o.status = ?`
		args = append(args, filter.Status)
	}
	return listOrders(ctx, db, where, args...)
}

// ListVoidCandidates returns orders that hold an issued receipt and have not
// been handed over yet. Pre-orders qualify once they were made ready.
func ListVoidCandidates(ctx context.Context, db *sql.DB) ([]model.Order, error) {
	return listOrders(ctx, db,
		` WHERE o.voided = 0 AND o.qr_issued_at IS NOT NULL
		   AND o.status IN (?, ?, ?, ?)`,
		model.OrderStatusPending, model.OrderStatusProcessing,
		model.OrderStatusReady, model.OrderStatusPaymentPending,
	)
}

func listOrders(ctx context.Context, q querier, where string, args ...any) ([]model.Order, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+orderColumns+orderFrom+where+` ORDER BY o.created_at DESC, o.order_number DESC`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}

	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning order: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	rows.Close()

	for i := range orders {
		orders[i].Items, err = loadOrderItems(ctx, q, orders[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return orders, nil
}

// UpdateOrderStatus moves an order to a new status. A pre-order takes its
// stock and gets its receipt when it becomes ready; cancelling an order that
// holds stock puts the stock back.
func UpdateOrderStatus(ctx context.Context, db *sql.DB, id, status string, now time.Time) (*model.Order, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	o, err := getOrder(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	if !model.CanTransition(o.Status, status) {
		return nil, fmt.Errorf("%s to %s: %w", o.Status, status, ErrInvalidTransition)
	}

	switch {
	case status == model.OrderStatusReady && o.QRIssuedAt == nil:
		for _, it := range o.Items {
			if it.ItemID == 0 {
				continue
			}
			if err := takeStock(ctx, tx, it.ItemID, it.Quantity); err != nil {
				return nil, err
			}
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE orders SET qr_issued_at = ? WHERE id = ?`, now.UTC(), id,
		); err != nil {
			return nil, fmt.Errorf("issuing receipt: %w", err)
		}
	case status == model.OrderStatusCancelled && o.QRIssuedAt != nil:
		if err := releaseStock(ctx, tx, o); err != nil {
			return nil, err
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE orders SET status = ?, updated_at = ? WHERE id = ?`, status, now.UTC(), id,
	); err != nil {
		return nil, fmt.Errorf("updating order status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing status change: %w", err)
	}
	return GetOrder(ctx, db, id)
}

// VoidOrder cancels an unclaimed order whose receipt expired, returns its
// stock and blocks the student from ordering until staff unblock them.
func VoidOrder(ctx context.Context, db *sql.DB, id string, now time.Time) (*model.Order, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	o, err := getOrder(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	if o.Voided || !o.Unclaimed() {
		return nil, fmt.Errorf("voiding %s order: %w", o.Status, ErrInvalidTransition)
	}

	if o.QRIssuedAt != nil {
		if err := releaseStock(ctx, tx, o); err != nil {
			return nil, err
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE orders SET status = ?, voided = 1, updated_at = ? WHERE id = ?`,
		model.OrderStatusCancelled, now.UTC(), id,
	); err != nil {
		return nil, fmt.Errorf("voiding order: %w", err)
	}
	if err := setVoidBlock(ctx, tx, o.StudentID, true); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing void: %w", err)
	}
	return GetOrder(ctx, db, id)
}

func releaseStock(ctx context.Context, q querier, o *model.Order) error {
	for _, it := range o.Items {
		if it.ItemID == 0 {
			continue
		}
		if err := returnStock(ctx, q, it.ItemID, it.Quantity); err != nil {
			return err
		}
	}
	return nil
}
