package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Item is one size variant of a catalog item. Stock is tracked per row.
type Item struct {
	ID             int64           `json:"id"`
	Name           string          `json:"name"`
	EducationLevel string          `json:"education_level"`
	ItemType       string          `json:"item_type"`
	Size           string          `json:"size,omitempty"`
	Stock          int             `json:"stock"`
	ForGender      string          `json:"for_gender"`
	Price          decimal.Decimal `json:"price"`
	Status         string          `json:"status"`
	ImageMime      string          `json:"image_mime,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	DeletedAt      *time.Time      `json:"deleted_at,omitempty"`
}

// Stock statuses, derived from the stock count.
const (
	StockStatusOut     = "out_of_stock"
	StockStatusLimited = "limited_stock"
	StockStatusIn      = "in_stock"
)

// LimitedStockThreshold is the stock level below which an item is limited.
const LimitedStockThreshold = 20

// Genders an item can target.
const (
	GenderUnisex = "Unisex"
	GenderMale   = "Male"
	GenderFemale = "Female"
)

// Education levels that make an item orderable by everyone.
const (
	EducationLevelAll     = "All Education Levels"
	EducationLevelGeneral = "General"
)

// StockStatus derives the item status from a stock count.
func StockStatus(stock int) string {
	switch {
	case stock <= 0:
		return StockStatusOut
	case stock < LimitedStockThreshold:
		return StockStatusLimited
	default:
		return StockStatusIn
	}
}

// GeneralEducationLevel reports whether level applies to all students.
func GeneralEducationLevel(level string) bool {
	return level == EducationLevelAll || level == EducationLevelGeneral
}

// NeedsSize reports whether ordering the item requires picking a size.
func (i Item) NeedsSize() bool {
	return i.Size != "" && i.Size != "N/A"
}

// ValidGender reports whether g is a known item gender.
func ValidGender(g string) bool {
	return g == GenderUnisex || g == GenderMale || g == GenderFemale
}
