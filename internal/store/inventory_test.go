package store

import (
	"context"
	"errors"
	"testing"

	"github.com/erazemk/uniforme/internal/db"
)

func TestAdjustStock(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item, _ := CreateItem(ctx, database, polo("College", "M", 10))

	stock, err := AdjustStock(ctx, database, item.ID, 5)
	if err != nil {
		t.Fatalf("AdjustStock: %v", err)
	}
	if stock != 15 {
		t.Errorf("expected stock 15, got %d", stock)
	}

	stock, err = AdjustStock(ctx, database, item.ID, -15)
	if err != nil {
		t.Fatalf("AdjustStock: %v", err)
	}
	if stock != 0 {
		t.Errorf("expected stock 0, got %d", stock)
	}
}

func TestAdjustStockRejectsNegative(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item, _ := CreateItem(ctx, database, polo("College", "M", 3))

	_, err := AdjustStock(ctx, database, item.ID, -4)
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	got, _ := GetItem(ctx, database, item.ID)
	if got.Stock != 3 {
		t.Errorf("expected stock unchanged at 3, got %d", got.Stock)
	}

	if _, err := AdjustStock(ctx, database, item.ID, 0); err == nil {
		t.Error("expected error for zero delta")
	}
	if _, err := AdjustStock(ctx, database, 999, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
