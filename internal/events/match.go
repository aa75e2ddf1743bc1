package events

import "strings"

// orderNumberPrefixes are stripped before comparing order numbers.
var orderNumberPrefixes = []string{"ord-", "ord", "#"}

// NormalizeOrderNumber lower-cases an order number and strips display
// prefixes and separators.
func NormalizeOrderNumber(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	for stripped := true; stripped; {
		stripped = false
		for _, p := range orderNumberPrefixes {
			if strings.HasPrefix(s, p) {
				s = strings.TrimPrefix(s, p)
				stripped = true
				break
			}
		}
	}
	return strings.Trim(s, "-_ ")
}

// MatchesOrder reports whether the event refers to the order with the given
// id and order number. Ids must match exactly; order numbers match when their
// normalized forms are equal or one contains the other.
func MatchesOrder(ev Event, id, orderNumber string) bool {
	if ev.OrderID != "" && id != "" && strings.EqualFold(ev.OrderID, id) {
		return true
	}
	a, b := NormalizeOrderNumber(ev.OrderNumber), NormalizeOrderNumber(orderNumber)
	if a == "" || b == "" {
		return false
	}
	return a == b || strings.Contains(a, b) || strings.Contains(b, a)
}
