package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"reviewflow/internal/app/server"
	"reviewflow/internal/domain/auth"
	"reviewflow/internal/domain/users"
	"reviewflow/internal/platform/config"
	"reviewflow/internal/platform/db"
	"reviewflow/migrations"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "reviewctl",
		Short:         "Administer a ReviewFlow deployment",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(createAdminCmd())
	rootCmd.AddCommand(importUsersCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and background jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			server.SetupLogging(cfg)
			app, err := server.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer app.Close()
			return app.Run(cmd.Context())
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPool(cmd.Context(), func(cfg config.Config, pool *pgxpool.Pool) error {
				if err := db.Migrate(cmd.Context(), pool, migrations.Files); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			})
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the bootstrap accounts from SEED_* settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPool(cmd.Context(), func(cfg config.Config, pool *pgxpool.Pool) error {
				return db.Seed(cmd.Context(), pool, cfg)
			})
		},
	}
}

func createAdminCmd() *cobra.Command {
	var (
		email    string
		name     string
		role     string
		password string
	)
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account if the email is not taken",
		Long: `Create an administrator account.

The password is read from --password or, when omitted, from REVIEWFLOW_ADMIN_PASSWORD.

Examples:
  reviewctl create-admin --email root@example.com --name Root
  reviewctl create-admin --email hr@example.com --name "HR Lead" --role "HR Lead"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("REVIEWFLOW_ADMIN_PASSWORD")
			}
			if !auth.IsAdminRole(role) {
				return fmt.Errorf("role must be %q or %q", auth.RoleSystemAdmin, auth.RoleHRLead)
			}
			return withPool(cmd.Context(), func(cfg config.Config, pool *pgxpool.Pool) error {
				created, err := db.EnsureUser(cmd.Context(), pool, db.SeedUser{Email: email, Password: password, Name: name, Role: role})
				if err != nil {
					return err
				}
				if created {
					fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s)\n", strings.ToLower(email), role)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "%s already exists, left unchanged\n", strings.ToLower(email))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&name, "name", "Administrator", "display name")
	cmd.Flags().StringVar(&role, "role", auth.RoleSystemAdmin, "administrative role")
	cmd.Flags().StringVar(&password, "password", "", "initial password")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func importUsersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import-users [roster.yaml]",
		Short: "Create users from a YAML roster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			roster, err := users.ParseRoster(f)
			if err != nil {
				return err
			}
			return withPool(cmd.Context(), func(cfg config.Config, pool *pgxpool.Pool) error {
				result, err := users.NewService(users.NewStore(pool)).Import(cmd.Context(), roster)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			})
		},
	}
	return cmd
}

func withPool(ctx context.Context, fn func(cfg config.Config, pool *pgxpool.Pool) error) error {
	cfg := config.Load()
	server.SetupLogging(cfg)
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return errors.New("DATABASE_URL is required")
	}
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer pool.Close()
	return fn(cfg, pool)
}
