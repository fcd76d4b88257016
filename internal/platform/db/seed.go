package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"reviewflow/internal/domain/auth"
	"reviewflow/internal/platform/config"
)

type SeedUser struct {
	Email    string
	Password string
	Name     string
	Role     string
}

// Seed creates the bootstrap administrator accounts named in cfg. Existing
// accounts are left untouched.
func Seed(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	users := []SeedUser{}
	if strings.TrimSpace(cfg.SeedAdminEmail) != "" {
		users = append(users, SeedUser{Email: cfg.SeedAdminEmail, Password: cfg.SeedAdminPassword, Name: "System Administrator", Role: auth.RoleSystemAdmin})
	}
	if strings.TrimSpace(cfg.SeedHREmail) != "" {
		users = append(users, SeedUser{Email: cfg.SeedHREmail, Password: cfg.SeedHRPassword, Name: "HR Lead", Role: auth.RoleHRLead})
	}

	for _, u := range users {
		created, err := EnsureUser(ctx, pool, u)
		if err != nil {
			return fmt.Errorf("seed %s: %w", u.Email, err)
		}
		if created {
			slog.Info("seeded user", "email", u.Email, "role", u.Role)
		}
	}
	return nil
}

func EnsureUser(ctx context.Context, pool *pgxpool.Pool, u SeedUser) (bool, error) {
	if err := validateSeedUser(u); err != nil {
		return false, err
	}
	hash, err := auth.HashPassword(u.Password)
	if err != nil {
		return false, err
	}
	tag, err := pool.Exec(ctx, `
    INSERT INTO users (email, name, role, password_hash, is_active)
    VALUES (lower($1), $2, $3, $4, true)
    ON CONFLICT ((lower(email))) DO NOTHING
  `, strings.TrimSpace(u.Email), u.Name, u.Role, hash)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func validateSeedUser(u SeedUser) error {
	if strings.TrimSpace(u.Email) == "" {
		return errors.New("email is required")
	}
	if len(u.Password) < 8 {
		return errors.New("password must be at least 8 characters")
	}
	if strings.TrimSpace(u.Name) == "" {
		return errors.New("name is required")
	}
	if !auth.ValidRole(u.Role) {
		return fmt.Errorf("invalid role %q", u.Role)
	}
	return nil
}
