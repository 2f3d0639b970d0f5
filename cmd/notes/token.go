package main

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"memory-assistant/internal/auth"
)

func newTokenCmd(root *rootOptions) *cobra.Command {
	var uid string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a sign-in token for the local identity backend",
		Long: `token signs a NOTES_AUTH_TOKEN for --uid with LOCAL_TOKEN_SECRET, for use
where anonymous sign-in is disabled.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if cfg.LocalTokenSecret == "" {
				return errors.New("LOCAL_TOKEN_SECRET is not set")
			}

			tokenCfg := auth.DefaultTokenConfig(cfg.LocalTokenSecret)
			if ttl > 0 {
				tokenCfg.Expiry = ttl
			}
			tok, err := auth.CreateToken(uid, tokenCfg)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&uid, "uid", "", "User id the token signs in as")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (default 24h)")
	_ = cmd.MarkFlagRequired("uid")
	return cmd
}
