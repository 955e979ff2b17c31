package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/ds611b/seguridad-services-ds611b/internal/role/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a role repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the role for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Role, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, nombre, descripcion FROM "Roles" WHERE id = $1`, id)
	return scanRole(row)
}

// GetByName returns the role with the given name, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByName(ctx context.Context, name string) (*domain.Role, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, nombre, descripcion FROM "Roles" WHERE nombre = $1`, name)
	return scanRole(row)
}

// List returns all roles ordered by name. Returns (nil, error) only on database errors.
func (r *PostgresRepository) List(ctx context.Context) ([]*domain.Role, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, nombre, descripcion FROM "Roles" ORDER BY nombre`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Role
	for rows.Next() {
		var role domain.Role
		var desc sql.NullString
		if err := rows.Scan(&role.ID, &role.Name, &desc); err != nil {
			return nil, err
		}
		if desc.Valid {
			role.Description = desc.String
		}
		out = append(out, &role)
	}
	return out, rows.Err()
}

// Create inserts a role.
func (r *PostgresRepository) Create(ctx context.Context, role *domain.Role) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO "Roles" (id, nombre, descripcion) VALUES ($1, $2, $3)`,
		role.ID, role.Name, nullable(role.Description))
	return err
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func scanRole(row *sql.Row) (*domain.Role, error) {
	var role domain.Role
	var desc sql.NullString
	err := row.Scan(&role.ID, &role.Name, &desc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if desc.Valid {
		role.Description = desc.String
	}
	return &role, nil
}
