package repository

import (
	"context"
	"time"

	"github.com/ds611b/seguridad-services-ds611b/internal/session/domain"
)

// Repository defines persistence for sessions and their refresh credentials.
//
// CloseSession and RevokeCredential are conditional updates: they report true
// only when the row was still open/active, so concurrent logouts on the same
// token race safely and the loser observes false.
type Repository interface {
	CreateSession(ctx context.Context, s *domain.Session) error
	CloseSession(ctx context.Context, id string, at time.Time) (bool, error)

	CreateCredential(ctx context.Context, c *domain.RefreshCredential) error
	GetActiveCredentialByFingerprint(ctx context.Context, fingerprint string) (*domain.RefreshCredential, error)
	RevokeCredential(ctx context.Context, id string, at time.Time) (bool, error)
	RevokeAllByUser(ctx context.Context, userID string, at time.Time) error
}
