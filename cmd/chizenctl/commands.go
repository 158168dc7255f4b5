package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"example.com/chizen/internal/auth"
	"example.com/chizen/internal/config"
	"example.com/chizen/internal/domain"
	"example.com/chizen/internal/persistence/postgres"
)

func loadConfig(envFile string) (config.Config, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return config.Config{}, err
	}
	if cfg.PostgresURL == "" {
		return config.Config{}, errors.New("POSTGRES_URL is required")
	}
	return cfg, nil
}

func migrateCmd(envFile *string) *cobra.Command {
	cmd := &cobra.Command{Use: "migrate", Short: "Manage the database schema"}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*envFile)
			if err != nil {
				return err
			}
			if err := postgres.Migrate(cfg.PostgresURL); err != nil {
				return err
			}
			v, dirty, err := postgres.MigrationVersion(cfg.PostgresURL)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d (dirty=%t)\n", v, dirty)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*envFile)
			if err != nil {
				return err
			}
			v, dirty, err := postgres.MigrationVersion(cfg.PostgresURL)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d dirty=%t\n", v, dirty)
			return nil
		},
	})
	return cmd
}

func seedCmd(envFile *string) *cobra.Command {
	var email, username, password string

	admin := &cobra.Command{
		Use:   "admin",
		Short: "Create an administrator account if it does not exist",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(password) < domain.MinPasswordLength {
				return fmt.Errorf("password must be at least %d characters", domain.MinPasswordLength)
			}
			addr, err := domain.NormalizeEmail(email)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(*envFile)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			pool, err := pgxpool.New(ctx, cfg.PostgresURL)
			if err != nil {
				return err
			}
			defer pool.Close()
			store := postgres.NewStore(pool)

			existing, err := store.GetUserByEmail(ctx, addr)
			if err != nil {
				return err
			}
			if existing != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "admin %s already exists (%s)\n", addr, existing.ID)
				return nil
			}

			hash, err := auth.Bcrypt{}.Hash(password)
			if err != nil {
				return err
			}
			now := time.Now().UTC()
			user := domain.User{
				ID:           uuid.NewString(),
				Email:        addr,
				Username:     username,
				PasswordHash: hash,
				FitnessLevel: domain.FitnessAdvanced,
				Preferences:  domain.DefaultPreferences(),
				IsAdmin:      true,
				IsActive:     true,
				CreatedAt:    now,
			}
			if err := store.CreateUser(ctx, user); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (%s)\n", addr, user.ID)
			return nil
		},
	}
	admin.Flags().StringVar(&email, "email", "admin@chizen.com", "Administrator e-mail")
	admin.Flags().StringVar(&username, "username", "Admin", "Administrator display name")
	admin.Flags().StringVar(&password, "password", "", "Administrator password")
	_ = admin.MarkFlagRequired("password")

	cmd := &cobra.Command{Use: "seed", Short: "Insert bootstrap data"}
	cmd.AddCommand(admin)
	return cmd
}

func tokenCmd(envFile *string) *cobra.Command {
	var email string

	issue := &cobra.Command{
		Use:   "issue",
		Short: "Sign an access token for an existing account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*envFile)
			if err != nil {
				return err
			}
			tokens, err := auth.NewTokens(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer, TTL: cfg.AccessTokenTTL})
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			pool, err := pgxpool.New(ctx, cfg.PostgresURL)
			if err != nil {
				return err
			}
			defer pool.Close()

			user, err := postgres.NewStore(pool).GetUserByEmail(ctx, email)
			if err != nil {
				return err
			}
			if user == nil {
				return domain.ErrUserNotFound
			}
			token, expires, err := tokens.Issue(*user)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\nexpires %s\n", token, expires.Format(time.RFC3339))
			return nil
		},
	}
	issue.Flags().StringVar(&email, "email", "", "Account e-mail")
	_ = issue.MarkFlagRequired("email")

	cmd := &cobra.Command{Use: "token", Short: "Work with access tokens"}
	cmd.AddCommand(issue)
	return cmd
}
