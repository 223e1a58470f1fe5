package invitations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateToken(t *testing.T) {
	token, err := GenerateToken()
	require.NoError(t, err)
	assert.Len(t, token, 64, "32 random bytes hex encoded")

	other, err := GenerateToken()
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}

func TestNewTokenHasher(t *testing.T) {
	t.Run("SHA256WithoutSecret", func(t *testing.T) {
		_, err := NewTokenHasher(HashPolicySHA256, "")
		assert.NoError(t, err)
	})

	t.Run("HMACRequiresSecret", func(t *testing.T) {
		_, err := NewTokenHasher(HashPolicyHMAC, "")
		assert.Error(t, err)
	})

	t.Run("HMACWithSecret", func(t *testing.T) {
		_, err := NewTokenHasher(HashPolicyHMAC, "server-secret")
		assert.NoError(t, err)
	})

	t.Run("UnknownPolicy", func(t *testing.T) {
		_, err := NewTokenHasher(HashPolicy("md5"), "")
		assert.Error(t, err)
	})
}

func TestTokenHasher_Hash(t *testing.T) {
	plain, err := NewTokenHasher(HashPolicySHA256, "")
	require.NoError(t, err)

	keyed, err := NewTokenHasher(HashPolicyHMAC, "server-secret")
	require.NoError(t, err)

	token, err := GenerateToken()
	require.NoError(t, err)

	t.Run("Deterministic", func(t *testing.T) {
		assert.Equal(t, plain.Hash(token), plain.Hash(token))
		assert.Equal(t, keyed.Hash(token), keyed.Hash(token))
	})

	t.Run("DistinctTokensDistinctHashes", func(t *testing.T) {
		other, err := GenerateToken()
		require.NoError(t, err)
		assert.NotEqual(t, plain.Hash(token), plain.Hash(other))
	})

	t.Run("PoliciesDiverge", func(t *testing.T) {
		assert.NotEqual(t, plain.Hash(token), keyed.Hash(token))
	})

	t.Run("KeyChangesDigest", func(t *testing.T) {
		rekeyed, err := NewTokenHasher(HashPolicyHMAC, "another-secret")
		require.NoError(t, err)
		assert.NotEqual(t, keyed.Hash(token), rekeyed.Hash(token))
	})

	t.Run("HexDigestLength", func(t *testing.T) {
		assert.Len(t, plain.Hash(token), 64)
		assert.Len(t, keyed.Hash(token), 64)
	})
}
