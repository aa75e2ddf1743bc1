package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is a student's order. ID is the only identity used for mutation;
// OrderNumber is for display.
type Order struct {
	ID             string          `json:"id"`
	OrderNumber    string          `json:"order_number"`
	OrderType      string          `json:"order_type"`
	Status         string          `json:"status"`
	StudentID      int64           `json:"student_id"`
	StudentName    string          `json:"student_name,omitempty"`
	EducationLevel string          `json:"education_level,omitempty"`
	Items          []OrderItem     `json:"items"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	QRIssuedAt     *time.Time      `json:"qr_issued_at,omitempty"`
	Voided         bool            `json:"voided,omitempty"`
	CreatedAt      *time.Time      `json:"created_at,omitempty"`
	OrderDate      *time.Time      `json:"order_date,omitempty"`
	UpdatedAt      *time.Time      `json:"updated_at,omitempty"`
}

// OrderItem is one line of an order.
type OrderItem struct {
	ItemID   int64           `json:"item_id,omitempty"`
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Size     string          `json:"size,omitempty"`
	Price    decimal.Decimal `json:"price"`
}

// Order types.
const (
	OrderTypeRegular  = "regular"
	OrderTypePreOrder = "pre-order"
)

// Order statuses.
const (
	OrderStatusPending        = "pending"
	OrderStatusProcessing     = "processing"
	OrderStatusReady          = "ready"
	OrderStatusPaymentPending = "payment_pending"
	OrderStatusCompleted      = "completed"
	OrderStatusClaimed        = "claimed"
	OrderStatusCancelled      = "cancelled"
)

var transitions = map[string][]string{
	OrderStatusPending:        {OrderStatusProcessing, OrderStatusReady, OrderStatusPaymentPending, OrderStatusCancelled},
	OrderStatusProcessing:     {OrderStatusReady, OrderStatusPaymentPending, OrderStatusCancelled},
	OrderStatusPaymentPending: {OrderStatusProcessing, OrderStatusReady, OrderStatusCancelled},
	OrderStatusReady:          {OrderStatusClaimed, OrderStatusCompleted, OrderStatusCancelled},
}

// CanTransition reports whether the server allows moving from one status to another.
func CanTransition(from, to string) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ValidOrderStatus reports whether s is a known order status.
func ValidOrderStatus(s string) bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusReady, OrderStatusPaymentPending,
		OrderStatusCompleted, OrderStatusClaimed, OrderStatusCancelled:
		return true
	}
	return false
}

// Unclaimed reports whether the order still holds quota without being handed over.
func (o Order) Unclaimed() bool {
	switch o.Status {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusReady, OrderStatusPaymentPending:
		return true
	}
	return false
}

// TotalItems sums the quantities of all order lines.
func (o Order) TotalItems() int {
	n := 0
	for _, it := range o.Items {
		n += it.Quantity
	}
	return n
}
