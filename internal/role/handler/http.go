// Package handler exposes role lookup over HTTP so registration clients can
// offer the available roles.
package handler

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ds611b/seguridad-services-ds611b/internal/role/domain"
)

// RoleLister is the minimal role store the handler needs.
type RoleLister interface {
	List(ctx context.Context) ([]*domain.Role, error)
}

// Handler serves the role routes.
type Handler struct {
	roles RoleLister
}

// New returns a role HTTP handler backed by the given store.
func New(roles RoleLister) *Handler {
	return &Handler{roles: roles}
}

// List handles GET /roles: all roles ordered by name.
func (h *Handler) List(c *gin.Context) {
	roles, err := h.roles.List(c.Request.Context())
	if err != nil {
		log.Printf("roles: list: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "internal server error",
			},
		})
		return
	}
	out := make([]gin.H, 0, len(roles))
	for _, r := range roles {
		out = append(out, gin.H{
			"id":          r.ID,
			"nombre":      r.Name,
			"descripcion": r.Description,
		})
	}
	c.JSON(http.StatusOK, out)
}
