package models

import "time"

// Agency is the tenant unit. Every user belongs to one or more agencies
// through memberships.
type Agency struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
