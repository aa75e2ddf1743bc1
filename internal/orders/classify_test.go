package orders

import (
	"testing"
	"time"

	"github.com/erazemk/uniforme/internal/model"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		orderType string
		status    string
		want      Category
	}{
		{model.OrderTypeRegular, model.OrderStatusPending, CategoryActive},
		{model.OrderTypeRegular, model.OrderStatusProcessing, CategoryActive},
		{model.OrderTypeRegular, model.OrderStatusReady, CategoryActive},
		{model.OrderTypeRegular, model.OrderStatusPaymentPending, CategoryActive},
		{model.OrderTypeRegular, model.OrderStatusCompleted, CategoryClaimed},
		{model.OrderTypeRegular, model.OrderStatusClaimed, CategoryClaimed},
		{model.OrderTypeRegular, model.OrderStatusCancelled, CategoryOther},
		{"", "weird", CategoryOther},
	}
	for _, tt := range tests {
		got := Classify(model.Order{OrderType: tt.orderType, Status: tt.status})
		if got != tt.want {
			t.Errorf("Classify(%q, %q) = %q, want %q", tt.orderType, tt.status, got, tt.want)
		}
	}
}

func TestPreOrderNeverActiveOrClaimed(t *testing.T) {
	statuses := []string{
		model.OrderStatusPending, model.OrderStatusProcessing, model.OrderStatusReady,
		model.OrderStatusPaymentPending, model.OrderStatusCompleted, model.OrderStatusClaimed,
		model.OrderStatusCancelled,
	}
	for _, s := range statuses {
		if got := Classify(model.Order{OrderType: model.OrderTypePreOrder, Status: s}); got != CategoryPreOrder {
			t.Errorf("pre-order with status %q classified as %q", s, got)
		}
	}
}

func at(day int) *time.Time {
	t := time.Date(2026, time.October, day, 12, 0, 0, 0, time.UTC)
	return &t
}

func TestSortStableByResolvedDate(t *testing.T) {
	list := []model.Order{
		{ID: "a", CreatedAt: at(3)},
		{ID: "b", OrderDate: at(5)},
		{ID: "c", UpdatedAt: at(3)},
		{ID: "d", CreatedAt: at(1), UpdatedAt: at(9)},
	}

	newest := append([]model.Order(nil), list...)
	Sort(newest, SortNewest)
	if ids(newest) != "bacd" {
		t.Errorf("newest: got %s, want bacd", ids(newest))
	}

	oldest := append([]model.Order(nil), list...)
	Sort(oldest, SortOldest)
	if ids(oldest) != "dacb" {
		t.Errorf("oldest: got %s, want dacb", ids(oldest))
	}
}

func TestPartition(t *testing.T) {
	b := Partition([]model.Order{
		{ID: "1", OrderType: model.OrderTypePreOrder, Status: model.OrderStatusPending},
		{ID: "2", OrderType: model.OrderTypeRegular, Status: model.OrderStatusReady},
		{ID: "3", OrderType: model.OrderTypeRegular, Status: model.OrderStatusClaimed},
		{ID: "4", OrderType: model.OrderTypeRegular, Status: model.OrderStatusCancelled},
		{ID: "5", OrderType: model.OrderTypeRegular, Status: model.OrderStatusPending},
	})
	if len(b.PreOrder) != 1 || len(b.Active) != 2 || len(b.Claimed) != 1 || len(b.Other) != 1 {
		t.Errorf("unexpected bucket sizes: %d/%d/%d/%d", len(b.PreOrder), len(b.Active), len(b.Claimed), len(b.Other))
	}
	if b.Active[0].ID != "2" || b.Active[1].ID != "5" {
		t.Error("expected fetch order to be kept inside a bucket")
	}
}

func ids(list []model.Order) string {
	s := ""
	for _, o := range list {
		s += o.ID
	}
	return s
}
