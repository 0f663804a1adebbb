package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/normanking/voxaos/internal/auth"
)

func tokenCmd() *cobra.Command {
	var (
		client string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a token for the audio WebSocket",
		Long: `Signs an HS256 token with the secret named by server.auth_secret_env.
Clients pass it as "Authorization: Bearer <token>" or ?token=<token>.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			secret := os.Getenv(cfg.Server.AuthSecretEnv)
			if secret == "" {
				return fmt.Errorf("%s is not set; export it before minting tokens", cfg.Server.AuthSecretEnv)
			}
			token, err := auth.Issue([]byte(secret), client, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&client, "client", "cli", "client name stored in the token")
	cmd.Flags().DurationVar(&ttl, "ttl", auth.DefaultTTL, "token lifetime")
	return cmd
}
