package security

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a token is malformed, expired, carries
	// the wrong signature, or was issued for a different purpose.
	ErrInvalidToken = errors.New("invalid token")
)

// Identity is the payload carried by an access token: who the caller is and
// which login session the token belongs to.
type Identity struct {
	UserID    string `json:"uid"`
	RoleID    string `json:"role_id"`
	RoleName  string `json:"role_name"`
	FirstName string `json:"nombre"`
	LastName  string `json:"apellido"`
	Email     string `json:"email"`
	SessionID string `json:"sid"`
}

// AccessClaims holds JWT claims for the access token.
type AccessClaims struct {
	jwt.RegisteredClaims
	RoleID    string `json:"role_id"`
	RoleName  string `json:"role_name"`
	FirstName string `json:"nombre"`
	LastName  string `json:"apellido"`
	Email     string `json:"email"`
	SessionID string `json:"sid"`
}

// ResetClaims holds JWT claims for the single-purpose password-reset token.
// The purpose marker keeps a reset token from being replayed as an access token.
type ResetClaims struct {
	jwt.RegisteredClaims
	PasswordReset bool `json:"password_reset"`
}

// TokenProvider issues and validates HS256 JWTs using a process-wide secret.
type TokenProvider struct {
	secret    []byte
	issuer    string
	accessTTL time.Duration
	resetTTL  time.Duration
}

// NewTokenProvider returns a TokenProvider that signs with secret. issuer is
// set on claims and validated on every verification.
func NewTokenProvider(secret []byte, issuer string, accessTTL, resetTTL time.Duration) *TokenProvider {
	return &TokenProvider{
		secret:    secret,
		issuer:    issuer,
		accessTTL: accessTTL,
		resetTTL:  resetTTL,
	}
}

// IssueAccess issues a short-lived access JWT carrying the given identity.
// Returns the token string and its expiration time.
func (p *TokenProvider) IssueAccess(id Identity) (token string, expiresAt time.Time, err error) {
	jti, err := generateJTI()
	if err != nil {
		return "", time.Time{}, err
	}
	now := time.Now().UTC()
	expiresAt = now.Add(p.accessTTL)
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   id.UserID,
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		RoleID:    id.RoleID,
		RoleName:  id.RoleName,
		FirstName: id.FirstName,
		LastName:  id.LastName,
		Email:     id.Email,
		SessionID: id.SessionID,
	}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	return token, expiresAt, err
}

// ValidateAccess parses and validates an access token (signature, exp, iss).
// Returns the identity payload, or ErrInvalidToken regardless of the cause.
func (p *TokenProvider) ValidateAccess(tokenString string) (*Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, p.keyFunc)
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Issuer != p.issuer {
		return nil, ErrInvalidToken
	}
	return &Identity{
		UserID:    claims.Subject,
		RoleID:    claims.RoleID,
		RoleName:  claims.RoleName,
		FirstName: claims.FirstName,
		LastName:  claims.LastName,
		Email:     claims.Email,
		SessionID: claims.SessionID,
	}, nil
}

// IssueReset issues a short-lived password-reset JWT for the given user.
// Returns the token string and its expiration time.
func (p *TokenProvider) IssueReset(userID string) (token string, expiresAt time.Time, err error) {
	jti, err := generateJTI()
	if err != nil {
		return "", time.Time{}, err
	}
	now := time.Now().UTC()
	expiresAt = now.Add(p.resetTTL)
	claims := ResetClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   userID,
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		PasswordReset: true,
	}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	return token, expiresAt, err
}

// ValidateReset parses and validates a password-reset token and returns the
// user id it was issued for. A token without the reset purpose marker is
// rejected the same way as a malformed or expired one.
func (p *TokenProvider) ValidateReset(tokenString string) (userID string, err error) {
	token, err := jwt.ParseWithClaims(tokenString, &ResetClaims{}, p.keyFunc)
	if err != nil {
		return "", ErrInvalidToken
	}
	claims, ok := token.Claims.(*ResetClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}
	if claims.Issuer != p.issuer {
		return "", ErrInvalidToken
	}
	if !claims.PasswordReset {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

func (p *TokenProvider) keyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, ErrInvalidToken
	}
	return p.secret, nil
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
