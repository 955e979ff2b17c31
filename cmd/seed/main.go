// seed inserts the base roles and a development user for local testing.
// Idempotent: roles are skipped if they already exist and the dev user
// (dev@itca.edu.sv) is only created once.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/ds611b/seguridad-services-ds611b/internal/config"
	"github.com/ds611b/seguridad-services-ds611b/internal/db"
	roledomain "github.com/ds611b/seguridad-services-ds611b/internal/role/domain"
	rolerepo "github.com/ds611b/seguridad-services-ds611b/internal/role/repository"
	"github.com/ds611b/seguridad-services-ds611b/internal/security"
	userdomain "github.com/ds611b/seguridad-services-ds611b/internal/user/domain"
	userrepo "github.com/ds611b/seguridad-services-ds611b/internal/user/repository"
)

const (
	devUserEmail = "dev@itca.edu.sv"
	devPassword  = "password123"
)

var baseRoles = []roledomain.Role{
	{Name: "administrador", Description: "Administrador del sistema"},
	{Name: "estudiante", Description: "Estudiante"},
	{Name: roledomain.InstitutionRoleName, Description: "Institucion externa"},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	ctx := context.Background()
	roles := rolerepo.NewPostgresRepository(conn)
	users := userrepo.NewPostgresRepository(conn)

	roleIDs := make(map[string]string, len(baseRoles))
	for _, r := range baseRoles {
		existing, err := roles.GetByName(ctx, r.Name)
		if err != nil {
			log.Fatalf("seed check role %s: %v", r.Name, err)
		}
		if existing != nil {
			roleIDs[r.Name] = existing.ID
			continue
		}
		r.ID = uuid.New().String()
		if err := roles.Create(ctx, &r); err != nil {
			log.Fatalf("create role %s: %v", r.Name, err)
		}
		roleIDs[r.Name] = r.ID
	}

	existing, err := users.GetByEmail(ctx, devUserEmail)
	if err != nil {
		log.Fatalf("seed check: %v", err)
	}
	if existing != nil {
		log.Println("Seed already applied (dev@itca.edu.sv exists). Skipping.")
		return
	}

	hasher := security.NewHasher(cfg.BcryptCost)
	passwordHash, err := hasher.Hash(devPassword)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	now := time.Now().UTC()
	if err := users.Create(ctx, &userdomain.User{
		ID:           uuid.New().String(),
		FirstName:    "Dev",
		LastName:     "User",
		Email:        devUserEmail,
		PasswordHash: passwordHash,
		RoleID:       roleIDs["estudiante"],
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}); err != nil {
		log.Fatalf("create dev user: %v", err)
	}

	log.Println("Seed completed successfully.")
	fmt.Printf("Dev login: %s / %s\n", devUserEmail, devPassword)
}
