// Package catalog aggregates per-size inventory rows into catalog entries.
package catalog

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/erazemk/uniforme/internal/eligibility"
	"github.com/erazemk/uniforme/internal/model"
)

// Variant is one orderable size of an entry.
type Variant struct {
	ItemID int64  `json:"item_id"`
	Size   string `json:"size,omitempty"`
	Stock  int    `json:"stock"`
}

// Entry is an item as shown in the catalog: every size row of the same name
// and education level, with stock summed.
type Entry struct {
	Key            string          `json:"key"`
	Name           string          `json:"name"`
	EducationLevel string          `json:"education_level"`
	ItemType       string          `json:"item_type"`
	ForGender      string          `json:"for_gender"`
	Price          decimal.Decimal `json:"price"`
	Stock          int             `json:"stock"`
	Status         string          `json:"status"`
	Variants       []Variant       `json:"variants"`
}

// Item returns a representative item for evaluation, carrying the summed stock.
func (e Entry) Item() model.Item {
	it := model.Item{
		Name:           e.Name,
		EducationLevel: e.EducationLevel,
		ItemType:       e.ItemType,
		ForGender:      e.ForGender,
		Price:          e.Price,
		Stock:          e.Stock,
		Status:         e.Status,
	}
	if len(e.Variants) > 0 {
		it.ID = e.Variants[0].ItemID
		if len(e.Variants) > 1 || e.Variants[0].Size != "" {
			it.Size = e.Variants[0].Size
		}
	}
	return it
}

// Variant returns the variant for size.
func (e Entry) Variant(size string) (Variant, bool) {
	for _, v := range e.Variants {
		if v.Size == size {
			return v, true
		}
	}
	return Variant{}, false
}

// Group merges item rows by key and education level, keeping first-seen order.
func Group(items []model.Item) []Entry {
	index := make(map[string]int)
	var entries []Entry
	for _, it := range items {
		key := eligibility.ResolveKey(it.Name)
		id := key + "|" + it.EducationLevel
		i, ok := index[id]
		if !ok {
			i = len(entries)
			index[id] = i
			entries = append(entries, Entry{
				Key:            key,
				Name:           it.Name,
				EducationLevel: it.EducationLevel,
				ItemType:       it.ItemType,
				ForGender:      it.ForGender,
				Price:          it.Price,
			})
		}
		e := &entries[i]
		e.Stock += it.Stock
		e.Variants = append(e.Variants, Variant{ItemID: it.ID, Size: it.Size, Stock: it.Stock})
	}
	for i := range entries {
		entries[i].Status = model.StockStatus(entries[i].Stock)
		sort.SliceStable(entries[i].Variants, func(a, b int) bool {
			return sizeRank(entries[i].Variants[a].Size) < sizeRank(entries[i].Variants[b].Size)
		})
	}
	return entries
}

var sizeOrder = map[string]int{"XS": 1, "S": 2, "M": 3, "L": 4, "XL": 5, "XXL": 6, "2XL": 6, "3XL": 7}

func sizeRank(size string) int {
	if r, ok := sizeOrder[size]; ok {
		return r
	}
	return 100
}
