package models

import "time"

// InvitationType distinguishes team-member invitations from the client
// variant. Client invitations exist in the data model but have no accepted
// workflow yet.
type InvitationType string

const (
	InvitationTypeMember InvitationType = "member"
	InvitationTypeClient InvitationType = "client"
)

// Invitation is a pending, single-use grant permitting a specific email to
// join a specific agency with a specific role. Only the hash of the invite
// token is persisted; the raw token lives solely in the issued URL.
type Invitation struct {
	ID              string         `json:"id"`
	Type            InvitationType `json:"type"`
	Email           string         `json:"email"`
	AgencyID        *string        `json:"agency_id,omitempty"`
	Role            *UserRole      `json:"role,omitempty"`
	InvitedByUserID string         `json:"invited_by_user_id"`
	TokenHash       string         `json:"-"`
	ExpiresAt       time.Time      `json:"expires_at"`
	ConsumedAt      *time.Time     `json:"consumed_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

// IsExpired determines whether the invitation has expired. Expiry is a
// read-time state; nothing sweeps expired rows.
func (i Invitation) IsExpired(now time.Time) bool {
	return i.ExpiresAt.Before(now)
}

// IsConsumed indicates whether the invitation has already been accepted.
func (i Invitation) IsConsumed() bool {
	return i.ConsumedAt != nil
}

// GrantedRole returns the role the invitation confers, defaulting to member
// when none was stored.
func (i Invitation) GrantedRole() UserRole {
	if i.Role == nil {
		return RoleMember
	}
	return *i.Role
}
