package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// Fingerprint returns a SHA-256 digest of the refresh token plaintext,
// hex-encoded. It is a lookup key only: the unique fingerprint column lets a
// presented token be resolved to one candidate row in O(1), after which the
// stored bcrypt hash confirms authenticity. It is not a substitute for the
// slow hash.
func Fingerprint(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// FingerprintEqual performs constant-time comparison of the provided token's
// fingerprint with the stored one. Returns true only if they match.
func FingerprintEqual(providedToken, storedFingerprint string) bool {
	provided := Fingerprint(providedToken)
	return subtle.ConstantTimeCompare([]byte(provided), []byte(storedFingerprint)) == 1
}
