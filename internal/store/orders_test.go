package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erazemk/uniforme/internal/db"
	"github.com/erazemk/uniforme/internal/eligibility"
	"github.com/erazemk/uniforme/internal/model"
)

var orderTime = time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)

func newOrderingStudent(t *testing.T, database *sql.DB) *model.Student {
	t.Helper()
	ctx := context.Background()

	student, err := CreateStudent(ctx, database, StudentInput{
		StudentNumber:  "2026-0100",
		Name:           "Ana Novak",
		Gender:         model.GenderFemale,
		EducationLevel: "College",
	})
	if err != nil {
		t.Fatalf("CreateStudent: %v", err)
	}
	limit := 5
	if err := SetOrderSettings(ctx, database, OrderSettings{TotalItemLimit: &limit, QRValidDays: 7}); err != nil {
		t.Fatalf("SetOrderSettings: %v", err)
	}
	return student
}

func TestCreateRegularOrder(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	student := newOrderingStudent(t, database)
	item, _ := CreateItem(ctx, database, polo("College", "M", 10))

	order, err := CreateOrder(ctx, database, student.ID, []OrderLine{{ItemID: item.ID, Quantity: 1}}, orderTime)
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if order.OrderType != model.OrderTypeRegular || order.Status != model.OrderStatusPending {
		t.Errorf("expected pending regular order, got %s/%s", order.OrderType, order.Status)
	}
	if !strings.HasPrefix(order.OrderNumber, "ORD-20261019-") {
		t.Errorf("unexpected order number %q", order.OrderNumber)
	}
	if order.QRIssuedAt == nil || !order.QRIssuedAt.Equal(orderTime) {
		t.Errorf("expected receipt issued at %v, got %v", orderTime, order.QRIssuedAt)
	}
	if !order.TotalAmount.Equal(decimal.RequireFromString("450")) {
		t.Errorf("expected total 450, got %s", order.TotalAmount)
	}
	if len(order.Items) != 1 || order.Items[0].Size != "M" || order.StudentName != "Ana Novak" {
		t.Errorf("unexpected order: %+v", order)
	}

	got, _ := GetItem(ctx, database, item.ID)
	if got.Stock != 9 {
		t.Errorf("expected stock 9, got %d", got.Stock)
	}
}

func TestCreateOrderRefusesWhatEvaluatorRefuses(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	student := newOrderingStudent(t, database)
	item, _ := CreateItem(ctx, database, polo("College", "M", 10))

	if _, err := CreateOrder(ctx, database, student.ID, []OrderLine{{ItemID: item.ID, Quantity: 2}}, orderTime); !errors.Is(err, eligibility.ErrNotEligible) {
		t.Fatalf("expected ErrNotEligible for quantity over cap, got %v", err)
	}

	if _, err := CreateOrder(ctx, database, student.ID, []OrderLine{{ItemID: item.ID, Quantity: 1}}, orderTime); err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	_, err := CreateOrder(ctx, database, student.ID, []OrderLine{{ItemID: item.ID, Quantity: 1}}, orderTime)
	var inel *eligibility.IneligibleError
	if !errors.As(err, &inel) || !containsReason(inel.Reasons, eligibility.ReasonMaxReached) {
		t.Fatalf("expected max-quantity-reached, got %v", err)
	}

	male, _ := CreateItem(ctx, database, ItemInput{Name: "Necktie", EducationLevel: "College", ForGender: model.GenderMale, Stock: 5})
	_, err = CreateOrder(ctx, database, student.ID, []OrderLine{{ItemID: male.ID, Quantity: 1}}, orderTime)
	if !errors.As(err, &inel) || !containsReason(inel.Reasons, eligibility.ReasonGenderMismatch) {
		t.Fatalf("expected gender-mismatch, got %v", err)
	}
}

func TestCreateOrderRequiresLimitAndProfile(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	student, _ := CreateStudent(ctx, database, StudentInput{StudentNumber: "1", Name: "Bor", Gender: model.GenderMale, EducationLevel: "College"})
	item, _ := CreateItem(ctx, database, polo("College", "M", 10))

	_, err := CreateOrder(ctx, database, student.ID, []OrderLine{{ItemID: item.ID, Quantity: 1}}, orderTime)
	var inel *eligibility.IneligibleError
	if !errors.As(err, &inel) || !containsReason(inel.Reasons, eligibility.ReasonLimitUnset) {
		t.Fatalf("expected order-limit-unset, got %v", err)
	}

	incomplete, _ := CreateStudent(ctx, database, StudentInput{StudentNumber: "2", Name: "Cene"})
	_, err = CreateOrder(ctx, database, incomplete.ID, []OrderLine{{ItemID: item.ID, Quantity: 1}}, orderTime)
	if !errors.Is(err, ErrProfileIncomplete) {
		t.Fatalf("expected ErrProfileIncomplete, got %v", err)
	}

	_, err = CreateOrder(ctx, database, student.ID, []OrderLine{{ItemID: 999, Quantity: 1}}, orderTime)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown item, got %v", err)
	}
}

func TestPreOrderTakesStockWhenReady(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	student := newOrderingStudent(t, database)
	socks, _ := CreateItem(ctx, database, ItemInput{Name: "Socks", EducationLevel: model.EducationLevelAll, Stock: 0, Price: decimal.NewFromInt(80)})

	order, err := CreateOrder(ctx, database, student.ID, []OrderLine{{ItemID: socks.ID, Quantity: 1}, {ItemID: socks.ID, Quantity: 1}}, orderTime)
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if order.OrderType != model.OrderTypePreOrder || order.QRIssuedAt != nil {
		t.Fatalf("expected pre-order without receipt, got %+v", order)
	}
	if len(order.Items) != 1 || order.Items[0].Quantity != 2 {
		t.Fatalf("expected merged line of 2, got %+v", order.Items)
	}

	if _, err := UpdateOrderStatus(ctx, database, order.ID, model.OrderStatusReady, orderTime); !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	AdjustStock(ctx, database, socks.ID, 5)
	readyAt := orderTime.Add(48 * time.Hour)
	order, err = UpdateOrderStatus(ctx, database, order.ID, model.OrderStatusReady, readyAt)
	if err != nil {
		t.Fatalf("UpdateOrderStatus: %v", err)
	}
	if order.QRIssuedAt == nil || !order.QRIssuedAt.Equal(readyAt) {
		t.Errorf("expected receipt issued at %v, got %v", readyAt, order.QRIssuedAt)
	}
	got, _ := GetItem(ctx, database, socks.ID)
	if got.Stock != 3 {
		t.Errorf("expected stock 3, got %d", got.Stock)
	}
}

func TestUpdateOrderStatusTransitions(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	student := newOrderingStudent(t, database)
	item, _ := CreateItem(ctx, database, polo("College", "M", 10))

	order, _ := CreateOrder(ctx, database, student.ID, []OrderLine{{ItemID: item.ID, Quantity: 1}}, orderTime)

	order, err := UpdateOrderStatus(ctx, database, order.ID, model.OrderStatusCancelled, orderTime)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if order.Status != model.OrderStatusCancelled {
		t.Errorf("expected cancelled, got %q", order.Status)
	}
	got, _ := GetItem(ctx, database, item.ID)
	if got.Stock != 10 {
		t.Errorf("expected stock restored to 10, got %d", got.Stock)
	}

	if _, err := UpdateOrderStatus(ctx, database, order.ID, model.OrderStatusReady, orderTime); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
	if _, err := UpdateOrderStatus(ctx, database, "missing", model.OrderStatusReady, orderTime); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	// A cancelled order frees the quota again.
	order, err = CreateOrder(ctx, database, student.ID, []OrderLine{{ItemID: item.ID, Quantity: 1}}, orderTime)
	if err != nil {
		t.Fatalf("CreateOrder after cancel: %v", err)
	}
	UpdateOrderStatus(ctx, database, order.ID, model.OrderStatusReady, orderTime)
	if _, err := UpdateOrderStatus(ctx, database, order.ID, model.OrderStatusClaimed, orderTime); err != nil {
		t.Fatalf("claim: %v", err)
	}

	snap, err := LoadLimitSnapshot(ctx, database, student)
	if err != nil {
		t.Fatalf("LoadLimitSnapshot: %v", err)
	}
	if snap.ClaimedItems["polo shirt"] != 1 || snap.AlreadyOrdered["polo shirt"] != 0 {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
	if snap.SlotsUsedFromPlacedOrders != 1 || snap.TotalItemLimit == nil || *snap.TotalItemLimit != 5 {
		t.Errorf("unexpected slots/limit: %+v", snap)
	}
}

func TestVoidOrderBlocksStudent(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	student := newOrderingStudent(t, database)
	item, _ := CreateItem(ctx, database, polo("College", "M", 10))
	socks, _ := CreateItem(ctx, database, ItemInput{Name: "Socks", EducationLevel: "College", Stock: 0})

	order, _ := CreateOrder(ctx, database, student.ID, []OrderLine{{ItemID: item.ID, Quantity: 1}}, orderTime)
	CreateOrder(ctx, database, student.ID, []OrderLine{{ItemID: socks.ID, Quantity: 1}}, orderTime)

	candidates, err := ListVoidCandidates(ctx, database)
	if err != nil {
		t.Fatalf("ListVoidCandidates: %v", err)
	}
	if len(candidates) != 1 || candidates[0].ID != order.ID {
		t.Fatalf("expected only the regular order as candidate, got %+v", candidates)
	}

	voided, err := VoidOrder(ctx, database, order.ID, orderTime.AddDate(0, 0, 14))
	if err != nil {
		t.Fatalf("VoidOrder: %v", err)
	}
	if !voided.Voided || voided.Status != model.OrderStatusCancelled {
		t.Errorf("expected voided cancelled order, got %+v", voided)
	}
	got, _ := GetItem(ctx, database, item.ID)
	if got.Stock != 10 {
		t.Errorf("expected stock restored to 10, got %d", got.Stock)
	}

	st, _ := GetStudent(ctx, database, student.ID)
	if !st.BlockedDueToVoid {
		t.Fatal("expected student to be blocked")
	}
	_, err = CreateOrder(ctx, database, student.ID, []OrderLine{{ItemID: item.ID, Quantity: 1}}, orderTime)
	var inel *eligibility.IneligibleError
	if !errors.As(err, &inel) || !containsReason(inel.Reasons, eligibility.ReasonVoidedBlock) {
		t.Fatalf("expected voided-block, got %v", err)
	}

	if _, err := VoidOrder(ctx, database, order.ID, orderTime); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected second void to fail, got %v", err)
	}

	list, _ := ListOrders(ctx, database, OrderFilter{StudentID: student.ID})
	if len(list) != 2 {
		t.Errorf("expected 2 orders, got %d", len(list))
	}
	cancelled, _ := ListOrders(ctx, database, OrderFilter{Status: model.OrderStatusCancelled})
	if len(cancelled) != 1 {
		t.Errorf("expected 1 cancelled order, got %d", len(cancelled))
	}
}

func TestPermissions(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	student := newOrderingStudent(t, database)

	if err := SetPermissions(ctx, database, student.ID, map[string]int{"Logo  Patch": 0, "Socks": 5}); err != nil {
		t.Fatalf("SetPermissions: %v", err)
	}
	caps, _ := GetPermissions(ctx, database, student.ID)
	if len(caps) != 2 || caps["logo patch"] != 0 || caps["socks"] != 5 {
		t.Errorf("unexpected caps: %v", caps)
	}

	SetPermissions(ctx, database, student.ID, map[string]int{"socks": 1})
	caps, _ = GetPermissions(ctx, database, student.ID)
	if len(caps) != 1 || caps["socks"] != 1 {
		t.Errorf("expected caps to be replaced, got %v", caps)
	}

	if err := SetPermissions(ctx, database, student.ID, map[string]int{"socks": -1}); err == nil {
		t.Error("expected error for negative cap")
	}
}

func containsReason(reasons []eligibility.Reason, want eligibility.Reason) bool {
	for _, r := range reasons {
		if r == want {
			return true
		}
	}
	return false
}
