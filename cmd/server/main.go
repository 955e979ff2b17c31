package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ds611b/seguridad-services-ds611b/internal/audit"
	auditrepo "github.com/ds611b/seguridad-services-ds611b/internal/audit/repository"
	"github.com/ds611b/seguridad-services-ds611b/internal/auth/handler"
	"github.com/ds611b/seguridad-services-ds611b/internal/auth/service"
	"github.com/ds611b/seguridad-services-ds611b/internal/config"
	"github.com/ds611b/seguridad-services-ds611b/internal/db"
	rolehandler "github.com/ds611b/seguridad-services-ds611b/internal/role/handler"
	rolerepo "github.com/ds611b/seguridad-services-ds611b/internal/role/repository"
	"github.com/ds611b/seguridad-services-ds611b/internal/security"
	"github.com/ds611b/seguridad-services-ds611b/internal/server"
	"github.com/ds611b/seguridad-services-ds611b/internal/server/middleware"
	sessionrepo "github.com/ds611b/seguridad-services-ds611b/internal/session/repository"
	"github.com/ds611b/seguridad-services-ds611b/internal/telemetry/otel"
	userrepo "github.com/ds611b/seguridad-services-ds611b/internal/user/repository"
)

const serviceName = "seguridad-services"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	providers, err := otel.NewProviders(ctx, cfg.OTLPEndpoint, serviceName)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	users := userrepo.NewPostgresRepository(conn)
	roles := rolerepo.NewPostgresRepository(conn)
	sessions := sessionrepo.NewPostgresRepository(conn)
	audits := auditrepo.NewPostgresRepository(conn)
	auditor := audit.NewLogger(audits, middleware.ClientIP)

	hasher := security.NewHasher(cfg.BcryptCost)
	tokens := security.NewTokenProvider([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.AccessTTL(), cfg.ResetTTL())

	credentials := service.NewCredentialService(users, roles, sessions, hasher, tokens, auditor)

	router := server.NewRouter(
		handler.New(credentials, audits),
		rolehandler.New(roles),
		tokens,
		providers.TracerProvider.Tracer(serviceName),
	)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Printf("telemetry shutdown: %v", err)
	}
	log.Println("HTTP server stopped")
}
