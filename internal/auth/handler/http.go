// Package handler exposes the credential service over HTTP. Handlers are thin:
// they bind the request body, call one service operation, and map sentinel
// errors to status codes. No business rules live here.
package handler

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	auditdomain "github.com/ds611b/seguridad-services-ds611b/internal/audit/domain"
	"github.com/ds611b/seguridad-services-ds611b/internal/auth/service"
	"github.com/ds611b/seguridad-services-ds611b/internal/server/middleware"
)

// activityPageSize bounds the audit entries returned by GET /auth/me/activity.
const activityPageSize = 50

// ActivityStore is the minimal audit read surface the activity endpoint needs.
type ActivityStore interface {
	ListByUser(ctx context.Context, userID string, limit, offset int32) ([]*auditdomain.AuditLog, error)
}

// Handler holds the credential service the auth routes delegate to.
type Handler struct {
	credentials *service.CredentialService
	activity    ActivityStore
}

// New returns an auth HTTP handler backed by the given credential service.
// activity may be nil; then GET /auth/me/activity answers with an empty list.
func New(credentials *service.CredentialService, activity ActivityStore) *Handler {
	return &Handler{credentials: credentials, activity: activity}
}

type registerRequest struct {
	FirstName string `json:"nombre" binding:"required,max=100"`
	LastName  string `json:"apellido" binding:"required,max=100"`
	Email     string `json:"email" binding:"required,email,max=150"`
	Password  string `json:"password" binding:"required"`
	Phone     string `json:"telefono" binding:"max=20"`
	RoleID    string `json:"rol_id" binding:"required"`
}

// Register handles POST /auth/register.
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}
	user, err := h.credentials.Register(c.Request.Context(), service.RegisterInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
		Phone:     req.Phone,
		RoleID:    req.RoleID,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": user.ID})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}
	pair, err := h.credentials.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// Refresh handles POST /auth/refresh.
func (h *Handler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}
	accessToken, err := h.credentials.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"accessToken": accessToken})
}

// Logout handles POST /auth/logout.
func (h *Handler) Logout(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}
	ok, err := h.credentials.Logout(c.Request.Context(), req.RefreshToken)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if !ok {
		writeError(c, http.StatusUnauthorized, "INVALID_REFRESH_TOKEN", "refresh token not found or already revoked")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Me handles GET /auth/me. RequireAuth has already verified the access token
// and stored its payload; this endpoint just echoes it.
func (h *Handler) Me(c *gin.Context) {
	id, ok := middleware.GetIdentity(c.Request.Context())
	if !ok {
		writeError(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid authorization")
		return
	}
	c.JSON(http.StatusOK, id)
}

// Activity handles GET /auth/me/activity: the caller's recent audit events,
// newest first.
func (h *Handler) Activity(c *gin.Context) {
	id, ok := middleware.GetIdentity(c.Request.Context())
	if !ok {
		writeError(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid authorization")
		return
	}
	items := make([]gin.H, 0)
	if h.activity != nil {
		entries, err := h.activity.ListByUser(c.Request.Context(), id.UserID, activityPageSize, 0)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		for _, e := range entries {
			items = append(items, gin.H{
				"accion":     e.Action,
				"ip":         e.IP,
				"created_at": e.CreatedAt,
			})
		}
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

type requestResetRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// RequestReset handles POST /auth/request-reset. Always answers 200: the
// response does not distinguish unknown accounts, and the token field is
// empty for them. Reset tokens are returned directly; there is no mail
// delivery in this service.
func (h *Handler) RequestReset(c *gin.Context) {
	var req requestResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}
	token, err := h.credentials.RequestPasswordReset(c.Request.Context(), req.Email)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"resetToken": token})
}

type resetRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Reset handles POST /auth/reset.
func (h *Handler) Reset(c *gin.Context) {
	var req resetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}
	if err := h.credentials.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// writeServiceError maps credential-service sentinel errors to HTTP status
// codes. Anything unrecognized is a persistence or crypto failure and is
// surfaced as an opaque 500.
func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidEmail):
		writeError(c, http.StatusBadRequest, "INVALID_EMAIL_FORMAT", err.Error())
	case errors.Is(err, service.ErrWeakPassword):
		writeError(c, http.StatusBadRequest, "WEAK_PASSWORD", err.Error())
	case errors.Is(err, service.ErrRoleNotFound):
		writeError(c, http.StatusBadRequest, "ROLE_NOT_FOUND", err.Error())
	case errors.Is(err, service.ErrEmailTaken):
		writeError(c, http.StatusConflict, "EMAIL_ALREADY_EXISTS", err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", err.Error())
	case errors.Is(err, service.ErrUserInactive):
		writeError(c, http.StatusForbidden, "USER_INACTIVE", err.Error())
	case errors.Is(err, service.ErrInvalidRefreshToken):
		writeError(c, http.StatusUnauthorized, "INVALID_REFRESH_TOKEN", err.Error())
	case errors.Is(err, service.ErrInvalidResetToken):
		writeError(c, http.StatusUnauthorized, "INVALID_OR_EXPIRED_TOKEN", err.Error())
	default:
		log.Printf("auth: internal error: %v", err)
		writeError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

func writeError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}
