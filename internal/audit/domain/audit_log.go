package domain

import "time"

// AuditLog represents one audit event on the credential lifecycle.
type AuditLog struct {
	ID        string
	UserID    string // empty when the actor could not be resolved (e.g. failed login)
	Action    string
	IP        string
	Metadata  string
	CreatedAt time.Time
}

// Actions recorded by the credential service paths.
const (
	ActionRegister      = "register"
	ActionLoginSuccess  = "login_success"
	ActionLoginFailure  = "login_failure"
	ActionLogout        = "logout"
	ActionPasswordReset = "password_reset"
)
