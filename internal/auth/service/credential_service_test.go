package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	roledomain "github.com/ds611b/seguridad-services-ds611b/internal/role/domain"
	"github.com/ds611b/seguridad-services-ds611b/internal/security"
	sessiondomain "github.com/ds611b/seguridad-services-ds611b/internal/session/domain"
	userdomain "github.com/ds611b/seguridad-services-ds611b/internal/user/domain"
)

type memUserRepo struct {
	mu      sync.Mutex
	byID    map[string]*userdomain.User
	byEmail map[string]*userdomain.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{byID: map[string]*userdomain.User{}, byEmail: map[string]*userdomain.User{}}
}

func (r *memUserRepo) GetByID(ctx context.Context, id string) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byID[id], nil
}

func (r *memUserRepo) GetByEmail(ctx context.Context, email string) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byEmail[email], nil
}

func (r *memUserRepo) Create(ctx context.Context, u *userdomain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u2 := *u
	r.byID[u.ID] = &u2
	r.byEmail[u.Email] = &u2
	return nil
}

func (r *memUserRepo) UpdatePasswordHash(ctx context.Context, id string, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.byID[id]; ok {
		u.PasswordHash = passwordHash
		u.UpdatedAt = time.Now().UTC()
	}
	return nil
}

type memRoleRepo struct {
	mu sync.Mutex
	m  map[string]*roledomain.Role
}

func (r *memRoleRepo) GetByID(ctx context.Context, id string) (*roledomain.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.m[id], nil
}

type memSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*sessiondomain.Session
	creds    map[string]*sessiondomain.RefreshCredential
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{
		sessions: map[string]*sessiondomain.Session{},
		creds:    map[string]*sessiondomain.RefreshCredential{},
	}
}

func (r *memSessionRepo) CreateSession(ctx context.Context, s *sessiondomain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s2 := *s
	r.sessions[s.ID] = &s2
	return nil
}

func (r *memSessionRepo) CloseSession(ctx context.Context, id string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || s.ClosedAt != nil {
		return false, nil
	}
	t := at
	s.ClosedAt = &t
	s.UpdatedAt = at
	return true, nil
}

func (r *memSessionRepo) CreateCredential(ctx context.Context, c *sessiondomain.RefreshCredential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c2 := *c
	r.creds[c.ID] = &c2
	return nil
}

func (r *memSessionRepo) GetActiveCredentialByFingerprint(ctx context.Context, fingerprint string) (*sessiondomain.RefreshCredential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.creds {
		if c.Fingerprint == fingerprint && c.RevokedAt == nil {
			c2 := *c
			return &c2, nil
		}
	}
	return nil, nil
}

func (r *memSessionRepo) RevokeCredential(ctx context.Context, id string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.creds[id]
	if !ok || c.RevokedAt != nil {
		return false, nil
	}
	t := at
	c.RevokedAt = &t
	c.UpdatedAt = at
	return true, nil
}

func (r *memSessionRepo) RevokeAllByUser(ctx context.Context, userID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := at
	for _, c := range r.creds {
		if c.UserID == userID && c.RevokedAt == nil {
			c.RevokedAt = &t
			c.UpdatedAt = at
			if s, ok := r.sessions[c.SessionID]; ok && s.ClosedAt == nil {
				s.ClosedAt = &t
				s.UpdatedAt = at
			}
		}
	}
	return nil
}

const (
	studentRoleID     = "role-student"
	institutionRoleID = "role-institution"
)

type fixture struct {
	svc      *CredentialService
	users    *memUserRepo
	sessions *memSessionRepo
	tokens   *security.TokenProvider
}

func newFixture(t *testing.T, accessTTL, resetTTL time.Duration) *fixture {
	t.Helper()
	users := newMemUserRepo()
	roles := &memRoleRepo{m: map[string]*roledomain.Role{
		studentRoleID:     {ID: studentRoleID, Name: "estudiante"},
		institutionRoleID: {ID: institutionRoleID, Name: roledomain.InstitutionRoleName},
	}}
	sessions := newMemSessionRepo()
	hasher := security.NewHasher(bcrypt.MinCost)
	tokens := security.NewTokenProvider([]byte("test-secret"), "test-issuer", accessTTL, resetTTL)
	return &fixture{
		svc:      NewCredentialService(users, roles, sessions, hasher, tokens, nil),
		users:    users,
		sessions: sessions,
		tokens:   tokens,
	}
}

func registerStudent(t *testing.T, f *fixture, email, password string) *userdomain.User {
	t.Helper()
	u, err := f.svc.Register(context.Background(), RegisterInput{
		FirstName: "Ana",
		LastName:  "Lopez",
		Email:     email,
		Password:  password,
		RoleID:    studentRoleID,
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	return u
}

func TestRegister_InstitutionalDomainEnforced(t *testing.T) {
	f := newFixture(t, 15*time.Minute, 30*time.Minute)

	_, err := f.svc.Register(context.Background(), RegisterInput{
		FirstName: "Ana", LastName: "Lopez",
		Email: "ana@gmail.com", Password: "password123", RoleID: studentRoleID,
	})
	if err != ErrInvalidEmail {
		t.Fatalf("Register off-domain student: want ErrInvalidEmail, got %v", err)
	}
	// No write may have happened.
	if u, _ := f.users.GetByEmail(context.Background(), "ana@gmail.com"); u != nil {
		t.Fatal("rejected registration still persisted a user")
	}

	u := registerStudent(t, f, "ana.lopez@itca.edu.sv", "password123")
	if u.ID == "" {
		t.Fatal("Register returned user without id")
	}
	if !u.Active {
		t.Fatal("Register returned inactive user")
	}
}

func TestRegister_InstitutionRoleExempt(t *testing.T) {
	f := newFixture(t, 15*time.Minute, 30*time.Minute)
	u, err := f.svc.Register(context.Background(), RegisterInput{
		FirstName: "Tec", LastName: "Chalatenango",
		Email: "contacto@empresa.com", Password: "password123", RoleID: institutionRoleID,
	})
	if err != nil {
		t.Fatalf("Register institution with external domain: %v", err)
	}
	if u.RoleName != roledomain.InstitutionRoleName {
		t.Errorf("RoleName = %q, want %q", u.RoleName, roledomain.InstitutionRoleName)
	}
}

func TestRegister_WeakPassword(t *testing.T) {
	f := newFixture(t, 15*time.Minute, 30*time.Minute)
	_, err := f.svc.Register(context.Background(), RegisterInput{
		FirstName: "Ana", LastName: "Lopez",
		Email: "ana.lopez@itca.edu.sv", Password: "short", RoleID: studentRoleID,
	})
	if err != ErrWeakPassword {
		t.Fatalf("want ErrWeakPassword, got %v", err)
	}
}

func TestRegister_UnknownRole(t *testing.T) {
	f := newFixture(t, 15*time.Minute, 30*time.Minute)
	_, err := f.svc.Register(context.Background(), RegisterInput{
		FirstName: "Ana", LastName: "Lopez",
		Email: "ana.lopez@itca.edu.sv", Password: "password123", RoleID: "no-such-role",
	})
	if err != ErrRoleNotFound {
		t.Fatalf("want ErrRoleNotFound, got %v", err)
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	f := newFixture(t, 15*time.Minute, 30*time.Minute)
	registerStudent(t, f, "ana.lopez@itca.edu.sv", "password123")

	_, err := f.svc.Register(context.Background(), RegisterInput{
		FirstName: "Otra", LastName: "Persona",
		Email: "ana.lopez@itca.edu.sv", Password: "password456", RoleID: studentRoleID,
	})
	if err != ErrEmailTaken {
		t.Fatalf("second registration: want ErrEmailTaken, got %v", err)
	}
}

func TestLogin_CollapsesUnknownAndWrongPassword(t *testing.T) {
	f := newFixture(t, 15*time.Minute, 30*time.Minute)
	registerStudent(t, f, "ana.lopez@itca.edu.sv", "password123")

	if _, err := f.svc.Login(context.Background(), "nadie@itca.edu.sv", "password123"); err != ErrInvalidCredentials {
		t.Errorf("unknown email: want ErrInvalidCredentials, got %v", err)
	}
	if _, err := f.svc.Login(context.Background(), "ana.lopez@itca.edu.sv", "wrongpassword"); err != ErrInvalidCredentials {
		t.Errorf("wrong password: want ErrInvalidCredentials, got %v", err)
	}
}

func TestLogin_InactiveAccount(t *testing.T) {
	f := newFixture(t, 15*time.Minute, 30*time.Minute)
	u := registerStudent(t, f, "ana.lopez@itca.edu.sv", "password123")
	f.users.byID[u.ID].Active = false

	if _, err := f.svc.Login(context.Background(), "ana.lopez@itca.edu.sv", "password123"); err != ErrUserInactive {
		t.Fatalf("want ErrUserInactive, got %v", err)
	}
}

func TestLoginThenRefresh_SameSession(t *testing.T) {
	f := newFixture(t, 15*time.Minute, 30*time.Minute)
	registerStudent(t, f, "ana.lopez@itca.edu.sv", "password123")

	pair, err := f.svc.Login(context.Background(), "ana.lopez@itca.edu.sv", "password123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("Login returned empty token(s)")
	}

	orig, err := f.tokens.ValidateAccess(pair.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccess original: %v", err)
	}
	if orig.SessionID == "" {
		t.Fatal("original access token carries no session id")
	}

	access2, err := f.svc.Refresh(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	refreshed, err := f.tokens.ValidateAccess(access2)
	if err != nil {
		t.Fatalf("ValidateAccess refreshed: %v", err)
	}
	if refreshed.SessionID != orig.SessionID {
		t.Errorf("refreshed session id = %q, want %q", refreshed.SessionID, orig.SessionID)
	}
	if refreshed.Email != "ana.lopez@itca.edu.sv" {
		t.Errorf("refreshed email = %q", refreshed.Email)
	}
}

func TestRefresh_UnknownToken(t *testing.T) {
	f := newFixture(t, 15*time.Minute, 30*time.Minute)
	if _, err := f.svc.Refresh(context.Background(), "deadbeef"); err != ErrInvalidRefreshToken {
		t.Fatalf("want ErrInvalidRefreshToken, got %v", err)
	}
}

func TestRefresh_InactiveOwner(t *testing.T) {
	f := newFixture(t, 15*time.Minute, 30*time.Minute)
	u := registerStudent(t, f, "ana.lopez@itca.edu.sv", "password123")
	pair, err := f.svc.Login(context.Background(), "ana.lopez@itca.edu.sv", "password123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	f.users.byID[u.ID].Active = false

	if _, err := f.svc.Refresh(context.Background(), pair.RefreshToken); err != ErrInvalidRefreshToken {
		t.Fatalf("want ErrInvalidRefreshToken, got %v", err)
	}
}

func TestLogout_RevokesCredentialAndClosesSession(t *testing.T) {
	f := newFixture(t, 15*time.Minute, 30*time.Minute)
	registerStudent(t, f, "ana.lopez@itca.edu.sv", "password123")
	pair, err := f.svc.Login(context.Background(), "ana.lopez@itca.edu.sv", "password123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	ok, err := f.svc.Logout(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if !ok {
		t.Fatal("Logout = false, want true")
	}

	// The credential and its session carry the same timestamp.
	f.sessions.mu.Lock()
	for _, c := range f.sessions.creds {
		if c.RevokedAt == nil {
			t.Error("credential still active after logout")
			continue
		}
		s := f.sessions.sessions[c.SessionID]
		if s.ClosedAt == nil {
			t.Error("session still open after logout")
		} else if !s.ClosedAt.Equal(*c.RevokedAt) {
			t.Errorf("closed_at %v != revoked_at %v", s.ClosedAt, c.RevokedAt)
		}
	}
	f.sessions.mu.Unlock()

	// A revoked credential is never usable again.
	if _, err := f.svc.Refresh(context.Background(), pair.RefreshToken); err != ErrInvalidRefreshToken {
		t.Fatalf("Refresh after logout: want ErrInvalidRefreshToken, got %v", err)
	}
}

func TestLogout_Idempotent(t *testing.T) {
	f := newFixture(t, 15*time.Minute, 30*time.Minute)
	registerStudent(t, f, "ana.lopez@itca.edu.sv", "password123")
	pair, err := f.svc.Login(context.Background(), "ana.lopez@itca.edu.sv", "password123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	ok, err := f.svc.Logout(context.Background(), pair.RefreshToken)
	if err != nil || !ok {
		t.Fatalf("first Logout = (%v, %v), want (true, nil)", ok, err)
	}
	ok, err = f.svc.Logout(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("second Logout: %v", err)
	}
	if ok {
		t.Fatal("second Logout = true, want false")
	}
}

func TestPasswordReset_RoundTrip(t *testing.T) {
	f := newFixture(t, 15*time.Minute, 30*time.Minute)
	registerStudent(t, f, "ana.lopez@itca.edu.sv", "oldpassword1")

	token, err := f.svc.RequestPasswordReset(context.Background(), "ana.lopez@itca.edu.sv")
	if err != nil {
		t.Fatalf("RequestPasswordReset: %v", err)
	}
	if token == "" {
		t.Fatal("RequestPasswordReset returned empty token for existing user")
	}
	if err := f.svc.ResetPassword(context.Background(), token, "newpassword1"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}

	if _, err := f.svc.Login(context.Background(), "ana.lopez@itca.edu.sv", "newpassword1"); err != nil {
		t.Errorf("Login with new password: %v", err)
	}
	if _, err := f.svc.Login(context.Background(), "ana.lopez@itca.edu.sv", "oldpassword1"); err != ErrInvalidCredentials {
		t.Errorf("Login with old password: want ErrInvalidCredentials, got %v", err)
	}
}

func TestPasswordReset_UnknownEmailSilent(t *testing.T) {
	f := newFixture(t, 15*time.Minute, 30*time.Minute)
	token, err := f.svc.RequestPasswordReset(context.Background(), "nadie@itca.edu.sv")
	if err != nil {
		t.Fatalf("RequestPasswordReset: %v", err)
	}
	if token != "" {
		t.Fatal("RequestPasswordReset returned a token for an unknown email")
	}
}

func TestPasswordReset_ExpiredToken(t *testing.T) {
	// Negative reset TTL simulates a token presented after its 30-minute window.
	f := newFixture(t, 15*time.Minute, -time.Minute)
	registerStudent(t, f, "ana.lopez@itca.edu.sv", "oldpassword1")

	token, err := f.svc.RequestPasswordReset(context.Background(), "ana.lopez@itca.edu.sv")
	if err != nil {
		t.Fatalf("RequestPasswordReset: %v", err)
	}
	if err := f.svc.ResetPassword(context.Background(), token, "newpassword1"); err != ErrInvalidResetToken {
		t.Fatalf("want ErrInvalidResetToken, got %v", err)
	}
}

func TestPasswordReset_AccessTokenRejected(t *testing.T) {
	f := newFixture(t, 15*time.Minute, 30*time.Minute)
	registerStudent(t, f, "ana.lopez@itca.edu.sv", "password123")
	pair, err := f.svc.Login(context.Background(), "ana.lopez@itca.edu.sv", "password123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	// An access token lacks the reset purpose marker.
	if err := f.svc.ResetPassword(context.Background(), pair.AccessToken, "newpassword1"); err != ErrInvalidResetToken {
		t.Fatalf("want ErrInvalidResetToken, got %v", err)
	}
}

func TestPasswordReset_RevokesOutstandingSessions(t *testing.T) {
	f := newFixture(t, 15*time.Minute, 30*time.Minute)
	registerStudent(t, f, "ana.lopez@itca.edu.sv", "oldpassword1")
	pair, err := f.svc.Login(context.Background(), "ana.lopez@itca.edu.sv", "oldpassword1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	token, err := f.svc.RequestPasswordReset(context.Background(), "ana.lopez@itca.edu.sv")
	if err != nil {
		t.Fatalf("RequestPasswordReset: %v", err)
	}
	if err := f.svc.ResetPassword(context.Background(), token, "newpassword1"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}

	if _, err := f.svc.Refresh(context.Background(), pair.RefreshToken); err != ErrInvalidRefreshToken {
		t.Fatalf("Refresh after password reset: want ErrInvalidRefreshToken, got %v", err)
	}
}

func TestLogin_ConcurrentLoginsIndependent(t *testing.T) {
	f := newFixture(t, 15*time.Minute, 30*time.Minute)
	registerStudent(t, f, "ana.lopez@itca.edu.sv", "password123")

	var wg sync.WaitGroup
	pairs := make([]*TokenPair, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pairs[i], errs[i] = f.svc.Login(context.Background(), "ana.lopez@itca.edu.sv", "password123")
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("Login %d: %v", i, err)
		}
	}
	if pairs[0].RefreshToken == pairs[1].RefreshToken {
		t.Fatal("two logins produced the same refresh token")
	}

	id0, err := f.tokens.ValidateAccess(pairs[0].AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccess: %v", err)
	}
	id1, err := f.tokens.ValidateAccess(pairs[1].AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccess: %v", err)
	}
	if id0.SessionID == id1.SessionID {
		t.Fatal("two logins share a session id")
	}

	// Revoking one leaves the other usable.
	if ok, err := f.svc.Logout(context.Background(), pairs[0].RefreshToken); err != nil || !ok {
		t.Fatalf("Logout first = (%v, %v), want (true, nil)", ok, err)
	}
	if _, err := f.svc.Refresh(context.Background(), pairs[1].RefreshToken); err != nil {
		t.Fatalf("Refresh second after revoking first: %v", err)
	}
}
