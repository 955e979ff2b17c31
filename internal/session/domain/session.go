package domain

import "time"

// Session represents one login-to-logout interval. ClosedAt is nil while the
// session is open; it is set exactly once, by logout, and never cleared.
type Session struct {
	ID        string
	CreatedAt time.Time
	ClosedAt  *time.Time
	UpdatedAt time.Time
}

// RefreshCredential is the stored form of an opaque refresh token, bound to
// the user and session it was issued for. TokenHash is the bcrypt digest used
// for verification; Fingerprint is the SHA-256 lookup key with a unique index
// at the storage layer. Rows are revoked, never deleted.
type RefreshCredential struct {
	ID          string
	TokenHash   string
	Fingerprint string
	UserID      string
	SessionID   string
	RevokedAt   *time.Time // nil while the credential is active
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Active reports whether the credential can still be presented.
func (c *RefreshCredential) Active() bool {
	return c.RevokedAt == nil
}
