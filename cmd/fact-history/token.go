package main

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"
	"github.com/upb/fact-history/middleware"
)

func newTokenCommand(rt *runtime) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a maintainer bearer token for the erase and purge endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			if rt.cfg.Auth.JWTSecret == "" {
				return fmt.Errorf("AUTH_JWT_SECRET is not set")
			}
			if ttl <= 0 {
				return fmt.Errorf("--ttl must be positive")
			}

			now := time.Now()
			token, err := middleware.SignToken(rt.cfg.Auth.JWTSecret, rt.cfg.Auth.Issuer, subject,
				[]string{rt.cfg.Auth.MaintainerRole},
				jwt.RegisteredClaims{
					IssuedAt:  jwt.NewNumericDate(now),
					ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
				})
			if err != nil {
				return fmt.Errorf("failed to sign token: %w", err)
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "operator", "token subject recorded in erase and purge logs")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")

	return cmd
}
