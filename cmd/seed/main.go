// seed inserts the reference data the API needs: the four roles with their
// scopes and an empty home document. With -admin-email and -admin-password it
// also creates a confirmed admin account for local testing.
// Idempotent: roles are upserted, the home row and admin are skipped when present.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"

	authdomain "clan-portal/backend/internal/auth/domain"
	authrepo "clan-portal/backend/internal/auth/repository"
	"clan-portal/backend/internal/config"
	"clan-portal/backend/internal/db"
	homedomain "clan-portal/backend/internal/home/domain"
	homerepo "clan-portal/backend/internal/home/repository"
	profiledomain "clan-portal/backend/internal/profile/domain"
	providerdomain "clan-portal/backend/internal/provider/domain"
	roledomain "clan-portal/backend/internal/role/domain"
	rolerepo "clan-portal/backend/internal/role/repository"
	"clan-portal/backend/internal/security"
)

func main() {
	adminEmail := flag.String("admin-email", "", "Email of a confirmed admin account to create")
	adminPassword := flag.String("admin-password", "", "Password of the admin account")
	flag.Parse()

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
	for _, r := range roledomain.DefaultRoles() {
		if err := roles.Upsert(ctx, &r); err != nil {
			log.Fatalf("upsert role %s: %v", r.Name, err)
		}
		log.Printf("seed: role %s (%s)", r.Name, strings.Join(r.Scopes, ", "))
	}

	created, err := homerepo.NewPostgresRepository(conn).EnsureExists(ctx, homedomain.Content{
		SocialNetworks: []homedomain.SocialNetwork{},
	})
	if err != nil {
		log.Fatalf("seed home: %v", err)
	}
	if created {
		log.Println("seed: home document created")
	} else {
		log.Println("seed: home document already exists")
	}

	if *adminEmail != "" {
		if err := seedAdmin(ctx, cfg, authrepo.NewPostgresRepository(conn), *adminEmail, *adminPassword); err != nil {
			log.Fatalf("seed admin: %v", err)
		}
	}

	log.Println("Seed completed successfully.")
}

func seedAdmin(ctx context.Context, cfg *config.Config, auths *authrepo.PostgresRepository, email, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if len(password) < 6 {
		return fmt.Errorf("admin password must be at least 6 characters")
	}
	existing, err := auths.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if existing != nil {
		log.Printf("seed: account %s already exists. Skipping.", email)
		return nil
	}
	hash, err := security.NewHasher(cfg.BcryptCost).Hash([]byte(password))
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	userName, _, _ := strings.Cut(email, "@")
	a := &authdomain.Auth{
		Email:        email,
		PasswordHash: hash,
		Confirmed:    true,
		Profile: &profiledomain.Profile{
			Email:    email,
			UserName: userName,
			RoleName: roledomain.RoleAdmin,
		},
		Providers: []*providerdomain.Provider{{Name: providerdomain.NameLocal, APIIdentifier: email}},
	}
	if err := auths.Create(ctx, a); err != nil {
		return err
	}
	fmt.Printf("Admin login: %s\n", email)
	return nil
}
