// Package eligibility decides how many units of a catalog item a student may
// still order. The same rules run in the API when an order is submitted and in
// the client when it renders order buttons.
package eligibility

import "strings"

// ResolveKey normalizes an item display name to the key used in permission
// and order-count maps. Case and whitespace runs are ignored.
func ResolveKey(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// defaultMax holds caps for items that may be ordered more than once when no
// explicit cap has been configured for the student.
var defaultMax = map[string]int{
	"logo patch":  3,
	"socks":       3,
	"necktie":     2,
	"hair ribbon": 2,
	"name tag":    2,
}

// DefaultMaxFor returns the fallback cap for an item key.
func DefaultMaxFor(key string) int {
	if n, ok := defaultMax[key]; ok {
		return n
	}
	return 1
}
