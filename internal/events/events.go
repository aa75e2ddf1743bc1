// Package events carries realtime order and catalog notifications. Incoming
// payloads are normalized to one identity shape at the boundary so the rest of
// the code never has to guess which field an upstream filled in.
package events

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/erazemk/uniforme/internal/model"
)

// Event names.
const (
	ItemUpdated               = "item:updated"
	OrderCreated              = "order:created"
	OrderUpdated              = "order:updated"
	OrderClaimed              = "order:claimed"
	StudentPermissionsUpdated = "student:permissions:updated"
)

// Names lists every known event name.
var Names = []string{ItemUpdated, OrderCreated, OrderUpdated, OrderClaimed, StudentPermissionsUpdated}

// Event is a normalized realtime notification.
type Event struct {
	ID          string    `json:"event_id"`
	Name        string    `json:"name"`
	OrderID     string    `json:"order_id,omitempty"`
	OrderNumber string    `json:"order_number,omitempty"`
	StudentID   int64     `json:"student_id,omitempty"`
	ItemID      int64     `json:"item_id,omitempty"`
	Status      string    `json:"status,omitempty"`
	At          time.Time `json:"timestamp"`
}

// New creates an event with a fresh id and timestamp.
func New(name string) Event {
	return Event{ID: uuid.NewString(), Name: name, At: time.Now().UTC()}
}

// ForOrder creates an event carrying an order's identity and status.
func ForOrder(name string, o model.Order) Event {
	ev := New(name)
	ev.OrderID = o.ID
	ev.OrderNumber = o.OrderNumber
	ev.StudentID = o.StudentID
	ev.Status = o.Status
	return ev
}

// AffectsLimits reports whether the event can change a student's quota snapshot.
func (e Event) AffectsLimits() bool {
	switch e.Name {
	case OrderCreated, OrderUpdated, OrderClaimed, StudentPermissionsUpdated:
		return true
	}
	return false
}

// Normalize builds an Event from a loosely shaped payload. Order identity may
// arrive as id, orderId, order_id or _id, the number as orderNumber or
// order_number, optionally nested under "order".
func Normalize(name string, raw map[string]any) (Event, error) {
	if name == "" {
		return Event{}, fmt.Errorf("event name required")
	}
	ev := New(name)
	if raw == nil {
		return ev, nil
	}
	if nested, ok := raw["order"].(map[string]any); ok {
		merged := make(map[string]any, len(raw)+len(nested))
		for k, v := range nested {
			merged[k] = v
		}
		for k, v := range raw {
			if k != "order" {
				merged[k] = v
			}
		}
		raw = merged
	}

	if v := firstString(raw, "event_id", "eventId"); v != "" {
		ev.ID = v
	}
	ev.OrderID = firstString(raw, "orderId", "order_id", "id", "_id")
	ev.OrderNumber = firstString(raw, "orderNumber", "order_number")
	ev.Status = firstString(raw, "status", "newStatus")
	ev.StudentID = firstInt(raw, "studentId", "student_id")
	ev.ItemID = firstInt(raw, "itemId", "item_id", "inventoryId")

	// Some producers put the order number in the id field.
	if ev.OrderID != "" && ev.OrderNumber == "" {
		if _, err := uuid.Parse(ev.OrderID); err != nil {
			ev.OrderNumber = ev.OrderID
			ev.OrderID = ""
		}
	}
	return ev, nil
}

func firstString(raw map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := raw[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

func firstInt(raw map[string]any, keys ...string) int64 {
	for _, k := range keys {
		switch v := raw[k].(type) {
		case float64:
			return int64(v)
		case int64:
			return v
		case int:
			return int64(v)
		case string:
			if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
				return n
			}
		}
	}
	return 0
}
