// Package orders groups and sorts a student's order history.
package orders

import (
	"sort"
	"time"

	"github.com/erazemk/uniforme/internal/model"
)

// Category is the history tab an order belongs to.
type Category string

// Categories.
const (
	CategoryPreOrder Category = "preOrder"
	CategoryActive   Category = "active"
	CategoryClaimed  Category = "claimed"
	CategoryOther    Category = "other"
)

// Classify places an order in its category. Pre-orders always stay in the
// pre-order bucket, whatever their status.
func Classify(o model.Order) Category {
	if o.OrderType == model.OrderTypePreOrder {
		return CategoryPreOrder
	}
	switch o.Status {
	case model.OrderStatusPending, model.OrderStatusProcessing, model.OrderStatusReady, model.OrderStatusPaymentPending:
		return CategoryActive
	case model.OrderStatusCompleted, model.OrderStatusClaimed:
		return CategoryClaimed
	default:
		return CategoryOther
	}
}

// Buckets holds orders split by category, in input order.
type Buckets struct {
	PreOrder []model.Order `json:"preOrder"`
	Active   []model.Order `json:"active"`
	Claimed  []model.Order `json:"claimed"`
	Other    []model.Order `json:"other"`
}

// Partition splits orders into buckets.
func Partition(list []model.Order) Buckets {
	var b Buckets
	for _, o := range list {
		switch Classify(o) {
		case CategoryPreOrder:
			b.PreOrder = append(b.PreOrder, o)
		case CategoryActive:
			b.Active = append(b.Active, o)
		case CategoryClaimed:
			b.Claimed = append(b.Claimed, o)
		default:
			b.Other = append(b.Other, o)
		}
	}
	return b
}

// SortOrder selects the sort direction.
type SortOrder string

const (
	SortNewest SortOrder = "newest"
	SortOldest SortOrder = "oldest"
)

// Date returns the first set timestamp among created, order and updated date.
// The zero time is returned when none is set.
func Date(o model.Order) time.Time {
	for _, t := range []*time.Time{o.CreatedAt, o.OrderDate, o.UpdatedAt} {
		if t != nil && !t.IsZero() {
			return *t
		}
	}
	return time.Time{}
}

// Sort orders list in place by Date. Ties keep their original order.
func Sort(list []model.Order, order SortOrder) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := Date(list[i]), Date(list[j])
		if order == SortOldest {
			return a.Before(b)
		}
		return a.After(b)
	})
}
