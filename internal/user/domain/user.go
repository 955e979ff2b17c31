package domain

import (
	"errors"
	"time"
)

// User is the core user entity. PasswordHash is the bcrypt digest of the
// account password; the plaintext is never stored.
type User struct {
	ID           string
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
	Phone        string // optional
	RoleID       string
	RoleName     string // populated when loaded with the role joined
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.FirstName == "" {
		return errors.New("first name is required")
	}
	if u.LastName == "" {
		return errors.New("last name is required")
	}
	if u.Email == "" {
		return errors.New("email is required")
	}
	if u.RoleID == "" {
		return errors.New("role is required")
	}
	return nil
}
