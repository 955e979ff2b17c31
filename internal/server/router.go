// Package server assembles the HTTP router for the credential service.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"github.com/ds611b/seguridad-services-ds611b/internal/auth/handler"
	rolehandler "github.com/ds611b/seguridad-services-ds611b/internal/role/handler"
	"github.com/ds611b/seguridad-services-ds611b/internal/security"
	"github.com/ds611b/seguridad-services-ds611b/internal/server/middleware"
)

// NewRouter wires the auth and role routes onto a gin engine. tracer may be a
// no-op tracer when OTLP export is not configured.
func NewRouter(h *handler.Handler, roles *rolehandler.Handler, tokens *security.TokenProvider, tracer trace.Tracer) *gin.Engine {
	r := gin.New()
	r.Use(
		gin.Recovery(),
		middleware.ClientIPIntoContext(),
		middleware.Tracing(tracer),
	)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/roles", roles.List)

	auth := r.Group("/auth")
	{
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)
		auth.POST("/refresh", h.Refresh)
		auth.POST("/logout", h.Logout)
		auth.POST("/request-reset", h.RequestReset)
		auth.POST("/reset", h.Reset)
		auth.GET("/me", middleware.RequireAuth(tokens), h.Me)
		auth.GET("/me/activity", middleware.RequireAuth(tokens), h.Activity)
	}
	return r
}
