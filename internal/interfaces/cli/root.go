package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	CommitSHA = "none"
	BuildDate = "unknown"
)

func NewRoot() *cobra.Command {
	root := &cobra.Command{
		Use:           "arcasched",
		Short:         "Books Arca gym classes automatically from weekly rules",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newVersionCmd())
	root.AddCommand(newKeysCmd())
	root.AddCommand(newTriggerTokenCmd())
	root.AddCommand(newServerCmd())
	root.AddCommand(newRunCmd())
	root.AddCommand(newUserCmd())
	root.AddCommand(newCredentialsCmd())
	root.AddCommand(newRuleCmd())
	root.AddCommand(newHistoryCmd())
	root.AddCommand(newBookCmd())
	root.AddCommand(newArcaCmd())

	return root
}

func Execute() {
	if err := NewRoot().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "arcasched %s (commit=%s, built=%s)\n", Version, CommitSHA, BuildDate)
		},
	}
}
