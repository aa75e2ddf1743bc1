package eligibility

import "github.com/erazemk/uniforme/internal/model"

// PermissionPolicy decides what an item without an explicit cap means.
type PermissionPolicy string

const (
	// PolicyAllowlist only allows items an administrator enabled for the
	// student, plus items marked for all education levels.
	PolicyAllowlist PermissionPolicy = "allowlist"
	// PolicyDefault falls back to the per-item default cap.
	PolicyDefault PermissionPolicy = "default"
)

// PolicyFor returns the policy that applies to a student type.
func PolicyFor(studentType string) PermissionPolicy {
	if studentType == model.StudentTypeOld {
		return PolicyAllowlist
	}
	return PolicyDefault
}

// resolveMax returns the cap for item under policy. permitted is false when
// the policy forbids the item outright.
func (p PermissionPolicy) resolveMax(snap *model.LimitSnapshot, key string, item model.Item) (maxQty int, permitted bool) {
	if n, ok := snap.MaxFor(key); ok {
		return n, n > 0
	}
	if p == PolicyAllowlist && !model.GeneralEducationLevel(item.EducationLevel) {
		return 0, false
	}
	return DefaultMaxFor(key), true
}
