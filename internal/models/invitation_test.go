package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInvitation_IsExpired(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	assert.True(t, Invitation{ExpiresAt: now.Add(-time.Second)}.IsExpired(now))
	assert.False(t, Invitation{ExpiresAt: now.Add(time.Second)}.IsExpired(now))
	assert.False(t, Invitation{ExpiresAt: now}.IsExpired(now), "expiry boundary is exclusive")
}

func TestInvitation_IsConsumed(t *testing.T) {
	consumed := time.Now()

	assert.False(t, Invitation{}.IsConsumed())
	assert.True(t, Invitation{ConsumedAt: &consumed}.IsConsumed())
}

func TestInvitation_GrantedRole(t *testing.T) {
	admin := RoleAdmin

	assert.Equal(t, RoleMember, Invitation{}.GrantedRole(), "missing role defaults to member")
	assert.Equal(t, RoleAdmin, Invitation{Role: &admin}.GrantedRole())
}
