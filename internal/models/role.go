package models

import "strings"

// UserRole is the permission tier a user holds within a single agency.
type UserRole string

const (
	RoleOwner  UserRole = "owner"
	RoleAdmin  UserRole = "admin"
	RoleMember UserRole = "member"
)

var roleRank = map[UserRole]int{
	RoleMember: 1,
	RoleAdmin:  2,
	RoleOwner:  3,
}

// ParseRole normalizes a raw role string into a UserRole. An empty value
// falls back to the default member role.
func ParseRole(raw string) (UserRole, bool) {
	normalized := UserRole(strings.ToLower(strings.TrimSpace(raw)))
	if normalized == "" {
		return RoleMember, true
	}
	if !IsValidRole(normalized) {
		return "", false
	}
	return normalized, true
}

// IsValidRole reports whether the role is one of the known tiers.
func IsValidRole(role UserRole) bool {
	_, ok := roleRank[role]
	return ok
}

// AtLeast reports whether role meets or exceeds the required tier.
func (r UserRole) AtLeast(required UserRole) bool {
	return roleRank[r] >= roleRank[required]
}

// CanInvite reports whether a member holding this role may issue invitations.
func (r UserRole) CanInvite() bool {
	return r.AtLeast(RoleAdmin)
}
