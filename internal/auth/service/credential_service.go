package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ds611b/seguridad-services-ds611b/internal/audit"
	auditdomain "github.com/ds611b/seguridad-services-ds611b/internal/audit/domain"
	roledomain "github.com/ds611b/seguridad-services-ds611b/internal/role/domain"
	"github.com/ds611b/seguridad-services-ds611b/internal/security"
	sessiondomain "github.com/ds611b/seguridad-services-ds611b/internal/session/domain"
	userdomain "github.com/ds611b/seguridad-services-ds611b/internal/user/domain"
)

// Sentinel errors for the credential service; the HTTP handler maps them to
// status codes.
var (
	ErrInvalidEmail        = errors.New("email does not match the institutional domain")
	ErrWeakPassword        = errors.New("password must be at least 8 characters")
	ErrRoleNotFound        = errors.New("role not found")
	ErrEmailTaken          = errors.New("email already registered")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrUserInactive        = errors.New("account is inactive")
	ErrInvalidRefreshToken = errors.New("invalid or revoked refresh token")
	ErrInvalidResetToken   = errors.New("invalid or expired reset token")
)

// institutionalEmail matches addresses on the institutional domain. Users in
// the exempt institution role may register with any well-formed address.
var institutionalEmail = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@itca\.edu\.sv$`)

const minPasswordLength = 8

// TokenPair holds the outcome of a successful login. RefreshToken is the
// opaque plaintext, handed to the caller exactly once.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// RegisterInput carries the fields needed to create an account.
type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
	Phone     string
	RoleID    string
}

// UserRepo is the minimal user repository needed by the credential service.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	GetByEmail(ctx context.Context, email string) (*userdomain.User, error)
	Create(ctx context.Context, u *userdomain.User) error
	UpdatePasswordHash(ctx context.Context, id string, passwordHash string) error
}

// RoleRepo is the minimal role repository needed by the credential service.
type RoleRepo interface {
	GetByID(ctx context.Context, id string) (*roledomain.Role, error)
}

// SessionRepo is the minimal session repository needed by the credential service.
type SessionRepo interface {
	CreateSession(ctx context.Context, s *sessiondomain.Session) error
	CloseSession(ctx context.Context, id string, at time.Time) (bool, error)
	CreateCredential(ctx context.Context, c *sessiondomain.RefreshCredential) error
	GetActiveCredentialByFingerprint(ctx context.Context, fingerprint string) (*sessiondomain.RefreshCredential, error)
	RevokeCredential(ctx context.Context, id string, at time.Time) (bool, error)
	RevokeAllByUser(ctx context.Context, userID string, at time.Time) error
}

// CredentialService implements registration, password login, refresh, logout,
// and password reset over the user, role, and session stores.
type CredentialService struct {
	users    UserRepo
	roles    RoleRepo
	sessions SessionRepo
	hasher   *security.Hasher
	tokens   *security.TokenProvider
	auditor  audit.AuditLogger
}

// NewCredentialService returns a CredentialService with the given dependencies.
// auditor may be nil to disable audit events.
func NewCredentialService(
	users UserRepo,
	roles RoleRepo,
	sessions SessionRepo,
	hasher *security.Hasher,
	tokens *security.TokenProvider,
	auditor audit.AuditLogger,
) *CredentialService {
	return &CredentialService{
		users:    users,
		roles:    roles,
		sessions: sessions,
		hasher:   hasher,
		tokens:   tokens,
		auditor:  auditor,
	}
}

// Register creates a user with a bcrypt-hashed password. Emails must be on
// the institutional domain unless the chosen role is the exempt institution
// role. All validation runs before any write.
func (s *CredentialService) Register(ctx context.Context, in RegisterInput) (*userdomain.User, error) {
	email := strings.TrimSpace(strings.ToLower(in.Email))
	if len(in.Password) < minPasswordLength {
		return nil, ErrWeakPassword
	}
	role, err := s.roles.GetByID(ctx, in.RoleID)
	if err != nil {
		return nil, err
	}
	if role == nil {
		return nil, ErrRoleNotFound
	}
	if role.Name != roledomain.InstitutionRoleName && !institutionalEmail.MatchString(email) {
		return nil, ErrInvalidEmail
	}
	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}
	hashed, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	user := &userdomain.User{
		ID:           uuid.New().String(),
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Email:        email,
		PasswordHash: hashed,
		Phone:        strings.TrimSpace(in.Phone),
		RoleID:       role.ID,
		RoleName:     role.Name,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	s.logEvent(ctx, user.ID, auditdomain.ActionRegister, email)
	return user, nil
}

// Login authenticates with email/password, opens a session, and returns an
// access token plus an opaque refresh token. Unknown email and wrong password
// are deliberately indistinguishable to the caller.
func (s *CredentialService) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		s.logEvent(ctx, "", auditdomain.ActionLoginFailure, email)
		return nil, ErrInvalidCredentials
	}
	if !user.Active {
		s.logEvent(ctx, user.ID, auditdomain.ActionLoginFailure, email)
		return nil, ErrUserInactive
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		s.logEvent(ctx, user.ID, auditdomain.ActionLoginFailure, email)
		return nil, ErrInvalidCredentials
	}

	now := time.Now().UTC()
	sess := &sessiondomain.Session{
		ID:        uuid.New().String(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.sessions.CreateSession(ctx, sess); err != nil {
		return nil, err
	}

	accessToken, _, err := s.tokens.IssueAccess(identityOf(user, sess.ID))
	if err != nil {
		return nil, err
	}
	refreshPlain, err := security.NewRefreshToken()
	if err != nil {
		return nil, err
	}
	refreshHash, err := s.hasher.HashToken(refreshPlain)
	if err != nil {
		return nil, err
	}
	cred := &sessiondomain.RefreshCredential{
		ID:          uuid.New().String(),
		TokenHash:   refreshHash,
		Fingerprint: security.Fingerprint(refreshPlain),
		UserID:      user.ID,
		SessionID:   sess.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.sessions.CreateCredential(ctx, cred); err != nil {
		return nil, err
	}
	s.logEvent(ctx, user.ID, auditdomain.ActionLoginSuccess, email)
	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshPlain}, nil
}

// Refresh exchanges a valid refresh token for a new access token bound to the
// same session. The refresh token itself is not rotated or invalidated.
func (s *CredentialService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	cred, user, err := s.resolveCredential(ctx, refreshToken)
	if err != nil {
		return "", err
	}
	if user == nil || !user.Active {
		return "", ErrInvalidRefreshToken
	}
	accessToken, _, err := s.tokens.IssueAccess(identityOf(user, cred.SessionID))
	if err != nil {
		return "", err
	}
	return accessToken, nil
}

// Logout revokes the refresh credential and closes its session, both with the
// same timestamp. Returns false when the token is unknown, invalid, or
// already revoked; a repeated logout is a failure, not an error.
func (s *CredentialService) Logout(ctx context.Context, refreshToken string) (bool, error) {
	cred, user, err := s.resolveCredential(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, ErrInvalidRefreshToken) {
			return false, nil
		}
		return false, err
	}
	now := time.Now().UTC()
	// Revoking the credential is the linearization point: of two concurrent
	// logouts only one conditional update succeeds.
	revoked, err := s.sessions.RevokeCredential(ctx, cred.ID, now)
	if err != nil {
		return false, err
	}
	if !revoked {
		return false, nil
	}
	if _, err := s.sessions.CloseSession(ctx, cred.SessionID, now); err != nil {
		return false, err
	}
	if user != nil {
		s.logEvent(ctx, user.ID, auditdomain.ActionLogout, "")
	}
	return true, nil
}

// RequestPasswordReset issues a 30-minute single-purpose reset token for the
// account. Returns an empty token without error when the email is unknown or
// the account inactive; the caller decides the response shape.
func (s *CredentialService) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if user == nil || !user.Active {
		return "", nil
	}
	token, _, err := s.tokens.IssueReset(user.ID)
	if err != nil {
		return "", err
	}
	return token, nil
}

// ResetPassword redeems a reset token and overwrites the account's password
// hash. Every token failure (malformed, expired, wrong signature, wrong
// purpose) is reported identically. All of the user's active refresh
// credentials are revoked so stolen sessions do not survive the reset.
func (s *CredentialService) ResetPassword(ctx context.Context, token, newPassword string) error {
	userID, err := s.tokens.ValidateReset(token)
	if err != nil {
		return ErrInvalidResetToken
	}
	if len(newPassword) < minPasswordLength {
		return ErrWeakPassword
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil || !user.Active {
		return ErrInvalidResetToken
	}
	hashed, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePasswordHash(ctx, user.ID, hashed); err != nil {
		return err
	}
	if err := s.sessions.RevokeAllByUser(ctx, user.ID, time.Now().UTC()); err != nil {
		return err
	}
	s.logEvent(ctx, user.ID, auditdomain.ActionPasswordReset, "")
	return nil
}

// resolveCredential looks up the active credential by fingerprint and
// confirms the plaintext against the stored bcrypt hash. The fingerprint is
// only a lookup key; the slow hash defends against collision or forgery.
func (s *CredentialService) resolveCredential(ctx context.Context, refreshToken string) (*sessiondomain.RefreshCredential, *userdomain.User, error) {
	if refreshToken == "" {
		return nil, nil, ErrInvalidRefreshToken
	}
	cred, err := s.sessions.GetActiveCredentialByFingerprint(ctx, security.Fingerprint(refreshToken))
	if err != nil {
		return nil, nil, err
	}
	if cred == nil {
		return nil, nil, ErrInvalidRefreshToken
	}
	if !security.FingerprintEqual(refreshToken, cred.Fingerprint) {
		return nil, nil, ErrInvalidRefreshToken
	}
	if !s.hasher.VerifyToken(refreshToken, cred.TokenHash) {
		return nil, nil, ErrInvalidRefreshToken
	}
	user, err := s.users.GetByID(ctx, cred.UserID)
	if err != nil {
		return nil, nil, err
	}
	return cred, user, nil
}

func (s *CredentialService) logEvent(ctx context.Context, userID, action, metadata string) {
	if s.auditor != nil {
		s.auditor.LogEvent(ctx, userID, action, metadata)
	}
}

func identityOf(u *userdomain.User, sessionID string) security.Identity {
	return security.Identity{
		UserID:    u.ID,
		RoleID:    u.RoleID,
		RoleName:  u.RoleName,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		SessionID: sessionID,
	}
}
