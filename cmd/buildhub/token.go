package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nivostack/buildhub/internal/config"
	"github.com/nivostack/buildhub/internal/middleware"
)

// maxTokenTTL bounds tokens minted from the command line.
const maxTokenTTL = 90 * 24 * time.Hour

func newTokenCmd() *cobra.Command {
	var (
		userID string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed bearer token for a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := uuid.Parse(userID); err != nil {
				return fmt.Errorf("--user must be a UUID: %w", err)
			}
			if ttl <= 0 || ttl > maxTokenTTL {
				return errors.New("--ttl must be positive and at most 90 days")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			// Issuing needs only the signing key; the user is checked when the token is used.
			token, err := middleware.NewTokenVerifier([]byte(cfg.JWTSecret.Value()), nil).IssueToken(userID, ttl)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)

			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user ID (UUID) to issue the token for")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}
