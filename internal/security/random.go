package security

import (
	"crypto/rand"
	"encoding/hex"
)

// refreshTokenBytes is the entropy of an opaque refresh token. 40 random
// bytes make fingerprint collisions cryptographically negligible.
const refreshTokenBytes = 40

// NewRefreshToken returns a cryptographically random opaque bearer token,
// hex-encoded. The plaintext is handed to the caller exactly once; only its
// bcrypt hash and fingerprint are ever stored.
func NewRefreshToken() (string, error) {
	b := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
