package invitations

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"

	"github.com/pkg/errors"
)

const tokenBytes = 32

// GenerateToken produces a 256-bit random invite token, hex encoded. The raw
// token exists only in the issued URL; the store keeps its hash.
func GenerateToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "generate invite token")
	}
	return hex.EncodeToString(buf), nil
}

// HashPolicy selects how invite tokens are hashed before storage. The policy
// is fixed at deployment; changing it invalidates every outstanding invite.
type HashPolicy string

const (
	// HashPolicySHA256 stores a plain SHA-256 digest of the token.
	HashPolicySHA256 HashPolicy = "sha256"
	// HashPolicyHMAC stores an HMAC-SHA-256 digest keyed with a server
	// secret, protecting stored hashes against offline enumeration if the
	// database is exfiltrated.
	HashPolicyHMAC HashPolicy = "hmac"
)

// TokenHasher derives the stored lookup hash from a raw token.
type TokenHasher struct {
	policy HashPolicy
	secret []byte
}

// NewTokenHasher builds a hasher for the configured policy. The keyed policy
// refuses to start without a secret.
func NewTokenHasher(policy HashPolicy, secret string) (*TokenHasher, error) {
	switch policy {
	case HashPolicySHA256:
		return &TokenHasher{policy: policy}, nil
	case HashPolicyHMAC:
		if secret == "" {
			return nil, errors.New("token hash policy hmac requires invite.token_hash_secret")
		}
		return &TokenHasher{policy: policy, secret: []byte(secret)}, nil
	default:
		return nil, errors.Errorf("unknown token hash policy %q", policy)
	}
}

// Hash returns the hex digest used as the invitation lookup key.
func (h *TokenHasher) Hash(token string) string {
	if h.policy == HashPolicyHMAC {
		mac := hmac.New(sha256.New, h.secret)
		mac.Write([]byte(token))
		return hex.EncodeToString(mac.Sum(nil))
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
