package models

import "time"

// Membership links a user to an agency with a role. At most one membership
// exists per (user, agency) pair; rows are never mutated after creation.
type Membership struct {
	ID       string    `json:"id"`
	UserID   string    `json:"user_id"`
	AgencyID string    `json:"agency_id"`
	Role     UserRole  `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}
