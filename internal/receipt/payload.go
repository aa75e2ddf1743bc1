package receipt

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erazemk/uniforme/internal/model"
)

// PayloadType marks the QR content as an order receipt.
const PayloadType = "order_receipt"

// Errors returned when a receipt cannot be built.
var (
	ErrMissingOrderNumber = errors.New("order number is required")
	ErrNoItems            = errors.New("order has no items")
)

// Payload is the JSON embedded in a claim QR code. Claim-desk scanners read
// these field names.
type Payload struct {
	Type           string          `json:"type"`
	OrderNumber    string          `json:"orderNumber"`
	StudentID      string          `json:"studentId"`
	StudentName    string          `json:"studentName"`
	Items          []PayloadItem   `json:"items"`
	TotalItems     int             `json:"totalItems"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`
	OrderDate      time.Time       `json:"orderDate"`
	EducationLevel string          `json:"educationLevel"`
	Status         string          `json:"status"`
	QRIssuedAt     time.Time       `json:"qrIssuedAt"`
	QRValidDays    int             `json:"qrValidDays"`
}

// PayloadItem is one receipt line.
type PayloadItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Size     string `json:"size"`
}

// NewPayload builds the receipt for an order. issuedAt falls back to the
// order's QR issue time, then its creation time.
func NewPayload(order model.Order, student model.Student, issuedAt time.Time, validDays int) (*Payload, error) {
	if order.OrderNumber == "" {
		return nil, ErrMissingOrderNumber
	}
	if len(order.Items) == 0 {
		return nil, ErrNoItems
	}
	if validDays <= 0 {
		validDays = DefaultValidDays
	}
	if issuedAt.IsZero() && order.QRIssuedAt != nil {
		issuedAt = *order.QRIssuedAt
	}

	orderDate := issuedAt
	switch {
	case order.OrderDate != nil:
		orderDate = *order.OrderDate
	case order.CreatedAt != nil:
		orderDate = *order.CreatedAt
	}
	if issuedAt.IsZero() {
		issuedAt = orderDate
	}

	p := &Payload{
		Type:           PayloadType,
		OrderNumber:    order.OrderNumber,
		StudentID:      student.StudentNumber,
		StudentName:    student.Name,
		TotalAmount:    order.TotalAmount,
		OrderDate:      orderDate,
		EducationLevel: order.EducationLevel,
		Status:         order.Status,
		QRIssuedAt:     issuedAt,
		QRValidDays:    validDays,
	}
	if p.EducationLevel == "" {
		p.EducationLevel = student.EducationLevel
	}
	for _, it := range order.Items {
		p.Items = append(p.Items, PayloadItem{Name: it.Name, Quantity: it.Quantity, Size: it.Size})
		p.TotalItems += it.Quantity
	}
	return p, nil
}

// Encode returns the payload as the JSON string stored in the QR code.
func (p *Payload) Encode() (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encoding receipt: %w", err)
	}
	return string(data), nil
}

// Decode parses a scanned QR string.
func Decode(s string) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal([]byte(s), &p); err != nil {
		return nil, fmt.Errorf("decoding receipt: %w", err)
	}
	if p.Type != PayloadType {
		return nil, fmt.Errorf("unexpected receipt type %q", p.Type)
	}
	return &p, nil
}

// RemainingValidDays reports the weekdays left on this receipt as of now.
func (p *Payload) RemainingValidDays(now time.Time) int {
	return RemainingValidDays(p.QRIssuedAt, p.QRValidDays, now)
}
