package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/ds611b/seguridad-services-ds611b/internal/user/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a user repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `u.id, u.nombre, u.apellido, u.email, u.password_hash, u.telefono, u.rol_id, r.nombre, u.activo, u.created_at, u.updated_at`

// GetByID returns the user for id with the role name joined, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM "Usuarios" u
		JOIN "Roles" r ON r.id = u.rol_id
		WHERE u.id = $1`, id)
	return scanUser(row)
}

// GetByEmail returns the user with the given email with the role name joined,
// or nil if not found. It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM "Usuarios" u
		JOIN "Roles" r ON r.id = u.rol_id
		WHERE u.email = $1`, email)
	return scanUser(row)
}

// Create persists the user to the database. The user must have ID set; it is not assigned by this method.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	phone := sql.NullString{String: u.Phone, Valid: u.Phone != ""}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO "Usuarios" (id, nombre, apellido, email, password_hash, telefono, rol_id, activo, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		u.ID, u.FirstName, u.LastName, u.Email, u.PasswordHash, phone, u.RoleID, u.Active, u.CreatedAt, u.UpdatedAt)
	return err
}

// UpdatePasswordHash overwrites the stored password hash for the given user
// and bumps updated_at. Returns an error if the update fails.
func (r *PostgresRepository) UpdatePasswordHash(ctx context.Context, id string, passwordHash string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE "Usuarios" SET password_hash = $2, updated_at = NOW()
		WHERE id = $1`, id, passwordHash)
	return err
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var u domain.User
	var phone sql.NullString
	err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.PasswordHash, &phone, &u.RoleID, &u.RoleName, &u.Active, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if phone.Valid {
		u.Phone = phone.String
	}
	return &u, nil
}
