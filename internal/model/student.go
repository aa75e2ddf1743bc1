package model

import "time"

// Student is the ordering profile attached to a student user account.
type Student struct {
	ID               int64      `json:"id"`
	UserID           *int64     `json:"user_id,omitempty"`
	StudentNumber    string     `json:"student_number"`
	Name             string     `json:"name"`
	Gender           string     `json:"gender,omitempty"`
	EducationLevel   string     `json:"education_level,omitempty"`
	StudentType      string     `json:"student_type"`
	BlockedDueToVoid bool       `json:"blocked_due_to_void"`
	CreatedAt        time.Time  `json:"created_at"`
	DeletedAt        *time.Time `json:"deleted_at,omitempty"`
}

// Student types.
const (
	StudentTypeOld = "old"
	StudentTypeNew = "new"
)

// ProfileIncomplete reports whether the student is missing data the
// eligibility rules depend on.
func (s Student) ProfileIncomplete() bool {
	return s.Gender == "" || s.EducationLevel == ""
}
