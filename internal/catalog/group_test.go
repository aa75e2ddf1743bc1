package catalog

import (
	"testing"

	"github.com/erazemk/uniforme/internal/model"
)

func TestGroupSumsStockAcrossSizes(t *testing.T) {
	items := []model.Item{
		{ID: 1, Name: "Polo Shirt", EducationLevel: "Senior High", Size: "L", Stock: 5},
		{ID: 2, Name: "polo  shirt", EducationLevel: "Senior High", Size: "S", Stock: 10},
		{ID: 3, Name: "Polo Shirt", EducationLevel: "College", Size: "M", Stock: 25},
		{ID: 4, Name: "Logo Patch", EducationLevel: model.EducationLevelAll, Stock: 0},
	}

	entries := Group(items)
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}

	shs := entries[0]
	if shs.Stock != 15 {
		t.Errorf("expected summed stock 15, got %d", shs.Stock)
	}
	if shs.Status != model.StockStatusLimited {
		t.Errorf("expected limited stock, got %q", shs.Status)
	}
	if shs.Variants[0].Size != "S" || shs.Variants[1].Size != "L" {
		t.Errorf("expected variants sorted by size, got %+v", shs.Variants)
	}
	if v, ok := shs.Variant("L"); !ok || v.ItemID != 1 {
		t.Errorf("expected L variant with item 1, got %+v", v)
	}

	if entries[1].Status != model.StockStatusIn {
		t.Errorf("expected in stock, got %q", entries[1].Status)
	}
	if entries[2].Status != model.StockStatusOut {
		t.Errorf("expected out of stock, got %q", entries[2].Status)
	}
	if entries[2].Item().NeedsSize() {
		t.Error("expected sizeless entry not to need a size")
	}
}
