package cli

import (
	"fmt"
	"time"

	"trivia-quiz-service/internal/app"
	"trivia-quiz-service/internal/auth"
	"trivia-quiz-service/internal/config"
	"trivia-quiz-service/internal/domain"
	"trivia-quiz-service/internal/infra/postgres"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"
)

// NewTokenCmd provisions a user and prints a session token for it, standing
// in for the sign-in flow of a browser client.
func NewTokenCmd(configPath *string) *cobra.Command {
	var (
		email string
		name  string
		ttl   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Register a user and print a bearer token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			identity := domain.Identity{Email: email, Name: name}

			if cfg.Postgres.URL != "" {
				pool, err := pgxpool.Connect(cmd.Context(), cfg.Postgres.URL)
				if err != nil {
					return err
				}
				defer pool.Close()
				service := app.NewAttemptService(nil, postgres.NewOwnerDirectory(pool))
				owner, err := service.RegisterOwner(cmd.Context(), identity)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "registered user %s (%s)\n", owner.Email, owner.ID)
			}

			secret := cfg.Auth.Secret
			if secret == "" {
				secret = devAuthSecret
			}
			if ttl <= 0 {
				ttl = config.TTLDuration(cfg.Auth.TokenTTL, auth.DefaultTokenTTL)
			}
			token, err := auth.NewTokenService(secret, cfg.Auth.Issuer, ttl).Issue(identity)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "user email")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to auth.tokenTTL)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
