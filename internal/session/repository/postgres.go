package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ds611b/seguridad-services-ds611b/internal/session/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// CreateSession persists the session to the database. The session must have ID set.
func (r *PostgresRepository) CreateSession(ctx context.Context, s *domain.Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO "Sesiones" (id, created_at, closed_at, updated_at)
		VALUES ($1, $2, $3, $4)`,
		s.ID, s.CreatedAt, timeToNullTime(s.ClosedAt), s.UpdatedAt)
	return err
}

// CloseSession sets closed_at and updated_at for the session if it is still
// open. Returns true when a row was closed by this call; false when the
// session does not exist or was already closed.
func (r *PostgresRepository) CloseSession(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE "Sesiones" SET closed_at = $2, updated_at = $2
		WHERE id = $1 AND closed_at IS NULL`, id, at)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CreateCredential persists the refresh credential. The unique index on the
// fingerprint column enforces at most one active credential per fingerprint.
func (r *PostgresRepository) CreateCredential(ctx context.Context, c *domain.RefreshCredential) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO "UsuariosSesiones" (id, token, huella, usuario_id, sesion_id, revoked_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID, c.TokenHash, c.Fingerprint, c.UserID, c.SessionID, timeToNullTime(c.RevokedAt), c.CreatedAt, c.UpdatedAt)
	return err
}

// GetActiveCredentialByFingerprint returns the non-revoked credential matching
// the fingerprint, or nil if none exists. Revoked rows never match.
func (r *PostgresRepository) GetActiveCredentialByFingerprint(ctx context.Context, fingerprint string) (*domain.RefreshCredential, error) {
	var c domain.RefreshCredential
	var revoked sql.NullTime
	err := r.db.QueryRowContext(ctx, `
		SELECT id, token, huella, usuario_id, sesion_id, revoked_at, created_at, updated_at
		FROM "UsuariosSesiones"
		WHERE huella = $1 AND revoked_at IS NULL`, fingerprint).
		Scan(&c.ID, &c.TokenHash, &c.Fingerprint, &c.UserID, &c.SessionID, &revoked, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	c.RevokedAt = nullTimeToPtr(revoked)
	return &c, nil
}

// RevokeCredential sets revoked_at and updated_at for the credential if it is
// still active. Returns true when a row was revoked by this call; false when
// the credential does not exist or was already revoked.
func (r *PostgresRepository) RevokeCredential(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE "UsuariosSesiones" SET revoked_at = $2, updated_at = $2
		WHERE id = $1 AND revoked_at IS NULL`, id, at)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// RevokeAllByUser revokes every active credential owned by the user and closes
// their sessions. Used after a successful password reset.
func (r *PostgresRepository) RevokeAllByUser(ctx context.Context, userID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE "Sesiones" SET closed_at = $2, updated_at = $2
		WHERE closed_at IS NULL AND id IN (
			SELECT sesion_id FROM "UsuariosSesiones" WHERE usuario_id = $1 AND revoked_at IS NULL
		)`, userID, at)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		UPDATE "UsuariosSesiones" SET revoked_at = $2, updated_at = $2
		WHERE usuario_id = $1 AND revoked_at IS NULL`, userID, at)
	return err
}

func timeToNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullTimeToPtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	return &n.Time
}
