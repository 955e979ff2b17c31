package security

import (
	"crypto/sha256"

	"golang.org/x/crypto/bcrypt"
)

// Hasher hashes and verifies secrets using bcrypt. It is used for both
// account passwords and refresh-token bearer values. Callers must not log or
// persist plaintext secrets.
type Hasher struct {
	Cost int
}

// NewHasher returns a Hasher with the given bcrypt cost (4–31). Cost 10 is a
// reasonable default for interactive login.
func NewHasher(cost int) *Hasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &Hasher{Cost: cost}
}

// Hash produces a bcrypt hash of plaintext, salted per call. Returns the hash
// as a string suitable for storage.
func (h *Hasher) Hash(plaintext string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.Cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify reports whether plaintext matches the stored bcrypt digest. A
// malformed or truncated digest verifies as false; Verify never returns an
// error to the caller.
func (h *Hasher) Verify(plaintext, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}

// HashToken bcrypt-hashes the SHA-256 digest of an opaque token. bcrypt
// rejects inputs longer than 72 bytes and refresh plaintexts are 80 hex
// characters, so the fixed-length digest is hashed instead of the token
// itself.
func (h *Hasher) HashToken(token string) (string, error) {
	d := sha256.Sum256([]byte(token))
	b, err := bcrypt.GenerateFromPassword(d[:], h.Cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyToken reports whether token matches a digest produced by HashToken.
// Like Verify, it returns false on malformed digests and never errors.
func (h *Hasher) VerifyToken(token, digest string) bool {
	d := sha256.Sum256([]byte(token))
	return bcrypt.CompareHashAndPassword([]byte(digest), d[:]) == nil
}
