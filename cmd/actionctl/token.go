package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"server-actions/backend/internal/config"
	"server-actions/backend/internal/security"
)

func newTokenCommand() *cobra.Command {
	var sub, sid, org string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development access token from JWT_PRIVATE_KEY",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.IsProduction() {
				return errors.New("refusing to mint tokens when APP_ENV=production")
			}
			if cfg.JWTPrivateKey == "" {
				return errors.New("JWT_PRIVATE_KEY is not set")
			}
			signer, err := security.ParsePrivateKey(cfg.JWTPrivateKey)
			if err != nil {
				return fmt.Errorf("JWT_PRIVATE_KEY: %w", err)
			}
			issuer := security.NewIssuer(signer, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL())
			token, expiresAt, err := issuer.IssueAccess(sub, sid, org)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expiresAt.Format("2006-01-02T15:04:05Z07:00"))
			return nil
		},
	}
	cmd.Flags().StringVar(&sub, "sub", "", "User id (sub claim)")
	cmd.Flags().StringVar(&sid, "sid", "", "Session id (sid claim)")
	cmd.Flags().StringVar(&org, "org", "", "Organization id (org_id claim)")
	_ = cmd.MarkFlagRequired("sub")
	return cmd
}
