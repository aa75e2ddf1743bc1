package eligibility

import (
	"errors"
	"fmt"
	"strings"

	"github.com/erazemk/uniforme/internal/model"
)

// Reason explains why ordering an item is disabled.
type Reason string

// Disable reasons.
const (
	ReasonVoidedBlock    Reason = "voided-block"
	ReasonNotPermitted   Reason = "not-permitted-for-student-type"
	ReasonMaxReached     Reason = "max-quantity-reached"
	ReasonSlotLimitFull  Reason = "slot-limit-full"
	ReasonGenderMismatch Reason = "gender-mismatch"
	ReasonLimitUnset     Reason = "order-limit-unset"
)

// Intent is the kind of request an order action turns into.
type Intent string

const (
	IntentOrder    Intent = "order"
	IntentPreOrder Intent = "pre-order"
)

// Input is everything the evaluator looks at for one item.
type Input struct {
	Item     model.Item
	Snapshot *model.LimitSnapshot
	Cart     []model.CartLine
	// Student is nil when nobody is signed in.
	Student *model.Student
	// SelectedSizeStock is the stock of the chosen size variant, if any.
	SelectedSizeStock *int
}

// Result is the outcome for one item.
type Result struct {
	Key          string   `json:"key"`
	EffectiveMax int      `json:"effectiveMax"`
	Reasons      []Reason `json:"reasons,omitempty"`
	Intent       Intent   `json:"intent"`
	// Provisional is set when no limit snapshot was available. The caps are
	// conservative defaults and ordering stays disabled.
	Provisional bool `json:"provisional,omitempty"`
}

// CanOrder reports whether the order buttons should be enabled.
func (r Result) CanOrder() bool {
	return !r.Provisional && len(r.Reasons) == 0 && r.EffectiveMax > 0
}

// Has reports whether reason is among the disable reasons.
func (r Result) Has(reason Reason) bool {
	for _, x := range r.Reasons {
		if x == reason {
			return true
		}
	}
	return false
}

func (r *Result) add(reason Reason) {
	if !r.Has(reason) {
		r.Reasons = append(r.Reasons, reason)
	}
}

// Evaluate computes the remaining orderable quantity of an item and the
// reasons ordering is blocked.
func Evaluate(in Input) Result {
	key := ResolveKey(in.Item.Name)
	res := Result{Key: key, Intent: IntentOrder}

	stock := in.Item.Stock
	if in.SelectedSizeStock != nil {
		stock = *in.SelectedSizeStock
	}
	if stock <= 0 {
		res.Intent = IntentPreOrder
	}

	snap := in.Snapshot
	if snap == nil {
		res.Provisional = true
		res.EffectiveMax = DefaultMaxFor(key)
		checkGender(&res, in)
		if len(res.Reasons) > 0 {
			res.EffectiveMax = 0
		}
		return res
	}

	// Global veto.
	if snap.BlockedDueToVoid {
		res.add(ReasonVoidedBlock)
		return res
	}

	policy := PolicyDefault
	if in.Student != nil {
		policy = PolicyFor(in.Student.StudentType)
	}
	maxQty, permitted := policy.resolveMax(snap, key, in.Item)
	if !permitted {
		res.add(ReasonNotPermitted)
	}

	ordered := snap.AlreadyOrdered[key]
	claimed := snap.ClaimedItems[key]
	inCart := CartQuantity(in.Cart, key)

	if maxQty > 0 {
		// A cap of one is a lifetime rule enforced at claim time. Larger caps
		// are a running total across ordered and claimed units.
		if (maxQty == 1 && claimed >= maxQty) || (maxQty > 1 && ordered+claimed >= maxQty) {
			res.add(ReasonMaxReached)
		} else {
			eff := maxQty - inCart - ordered - claimed
			if eff < 0 {
				eff = 0
			}
			// Stock never lowers the cap: a size without stock is
			// ordered as a pre-order instead.
			if eff == 0 {
				res.add(ReasonMaxReached)
			}
			res.EffectiveMax = eff
		}
	}

	if limit := snap.TotalItemLimit; limit != nil && *limit > 0 {
		keys := cartKeys(in.Cart)
		if _, inCartAlready := keys[key]; !inCartAlready {
			remaining := *limit - snap.SlotsUsedFromPlacedOrders
			if len(keys) >= remaining {
				res.add(ReasonSlotLimitFull)
			}
		}
	}

	checkGender(&res, in)

	if in.Student != nil && (snap.TotalItemLimit == nil || *snap.TotalItemLimit <= 0) {
		res.add(ReasonLimitUnset)
	}

	if len(res.Reasons) > 0 {
		res.EffectiveMax = 0
	}
	return res
}

func checkGender(res *Result, in Input) {
	target := in.Item.ForGender
	if target == "" || strings.EqualFold(target, model.GenderUnisex) || in.Student == nil {
		return
	}
	if !strings.EqualFold(target, in.Student.Gender) {
		res.add(ReasonGenderMismatch)
	}
}

// CartQuantity sums cart quantities of lines resolving to key.
func CartQuantity(cart []model.CartLine, key string) int {
	n := 0
	for _, line := range cart {
		if ResolveKey(line.Name) == key {
			n += line.Quantity
		}
	}
	return n
}

func cartKeys(cart []model.CartLine) map[string]struct{} {
	keys := make(map[string]struct{}, len(cart))
	for _, line := range cart {
		keys[ResolveKey(line.Name)] = struct{}{}
	}
	return keys
}

// ErrNotEligible is returned when a submitted order breaks a quota rule.
var ErrNotEligible = errors.New("not eligible")

// IneligibleError names the order line that failed and why.
type IneligibleError struct {
	Item      string
	Requested int
	Allowed   int
	Reasons   []Reason
}

func (e *IneligibleError) Error() string {
	if len(e.Reasons) > 0 {
		return fmt.Sprintf("cannot order %s: %s", e.Item, e.Reasons[0])
	}
	return fmt.Sprintf("cannot order %d of %s: at most %d allowed", e.Requested, e.Item, e.Allowed)
}

func (e *IneligibleError) Unwrap() error { return ErrNotEligible }

// Line is one requested order line checked by CheckOrder.
type Line struct {
	Item     model.Item
	Quantity int
}

// CheckOrder runs Evaluate for every line, treating the other lines as the
// cart, and fails on the first line the rules refuse.
func CheckOrder(snap *model.LimitSnapshot, student *model.Student, lines []Line) error {
	if snap == nil {
		return fmt.Errorf("no limit snapshot: %w", ErrNotEligible)
	}
	for i, line := range lines {
		if line.Quantity <= 0 {
			return fmt.Errorf("quantity for %s must be positive", line.Item.Name)
		}
		cart := make([]model.CartLine, 0, len(lines)-1)
		for j, other := range lines {
			if j == i {
				continue
			}
			cart = append(cart, model.CartLine{
				InventoryID: other.Item.ID,
				Name:        other.Item.Name,
				Size:        other.Item.Size,
				Quantity:    other.Quantity,
			})
		}
		stock := line.Item.Stock
		res := Evaluate(Input{
			Item:              line.Item,
			Snapshot:          snap,
			Cart:              cart,
			Student:           student,
			SelectedSizeStock: &stock,
		})
		if len(res.Reasons) > 0 || line.Quantity > res.EffectiveMax {
			return &IneligibleError{
				Item:      line.Item.Name,
				Requested: line.Quantity,
				Allowed:   res.EffectiveMax,
				Reasons:   res.Reasons,
			}
		}
	}
	return nil
}
