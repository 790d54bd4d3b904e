package cli

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/arca-scheduler/internal/infrastructure/config"
	"github.com/example/arca-scheduler/internal/interfaces/web"
)

func newKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "Generate SESSION_SECRET and TRIGGER_HASH_KEY values",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := make([]byte, 32)
			trigger := make([]byte, 32)
			if _, err := rand.Read(secret); err != nil {
				return err
			}
			if _, err := rand.Read(trigger); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "export SESSION_SECRET=%s\n", base64.RawURLEncoding.EncodeToString(secret))
			fmt.Fprintf(out, "export TRIGGER_HASH_KEY=%s\n", base64.StdEncoding.EncodeToString(trigger))
			return nil
		},
	}
}

func newTriggerTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trigger-token",
		Short: "Print the X-Cloudscheduler header value for the configured TRIGGER_HASH_KEY",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			if len(cfg.TriggerKey) == 0 {
				return errors.New("TRIGGER_HASH_KEY is not set")
			}
			tokens, err := web.NewTriggerTokens(cfg.TriggerKey)
			if err != nil {
				return err
			}
			token, err := tokens.Mint()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
}
