package model

// LimitSnapshot is the per-student quota state served by
// GET /api/auth/max-quantities. Maps are keyed by item key.
type LimitSnapshot struct {
	MaxQuantities             map[string]int `json:"maxQuantities"`
	AlreadyOrdered            map[string]int `json:"alreadyOrdered"`
	ClaimedItems              map[string]int `json:"claimedItems"`
	TotalItemLimit            *int           `json:"totalItemLimit"`
	SlotsUsedFromPlacedOrders int            `json:"slotsUsedFromPlacedOrders"`
	BlockedDueToVoid          bool           `json:"blockedDueToVoid"`
	ProfileIncomplete         bool           `json:"profileIncomplete"`
}

// MaxFor returns the explicit cap for key and whether one exists.
func (s *LimitSnapshot) MaxFor(key string) (int, bool) {
	if s == nil || s.MaxQuantities == nil {
		return 0, false
	}
	v, ok := s.MaxQuantities[key]
	return v, ok
}

// CartLine is a line in a not yet submitted cart.
type CartLine struct {
	InventoryID int64  `json:"inventory_id"`
	Name        string `json:"name"`
	Size        string `json:"size,omitempty"`
	Quantity    int    `json:"quantity"`
}
