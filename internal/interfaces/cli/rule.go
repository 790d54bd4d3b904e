package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/arca-scheduler/internal/application/usecases"
)

func newRuleCmd() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "rule",
		Short: "Manage booking rules",
	}
	cmd.PersistentFlags().StringVar(&userID, "user", "", "user id")
	_ = cmd.MarkPersistentFlagRequired("user")

	cmd.AddCommand(newRuleAddCmd(&userID))
	cmd.AddCommand(newRuleListCmd(&userID))
	cmd.AddCommand(newRuleToggleCmd(&userID, "enable", true))
	cmd.AddCommand(newRuleToggleCmd(&userID, "disable", false))
	cmd.AddCommand(newRuleDeleteCmd(&userID))
	return cmd
}

func newRuleAddCmd(userID *string) *cobra.Command {
	var in usecases.RuleInput
	var disabled bool

	c := &cobra.Command{
		Use:   "add",
		Short: "Add a weekly booking rule",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			enabled := !disabled
			in.Enabled = &enabled
			r, err := a.rules().Add(ctx, *userID, in)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), r)
		},
	}
	c.Flags().StringVar(&in.ClassName, "class", "", "class name, e.g. WOD")
	c.Flags().StringVar(&in.DayOfWeek, "day", "", "weekday, e.g. monday")
	c.Flags().StringVar(&in.Time, "time", "", "start time HH:MM")
	c.Flags().StringVar(&in.Location, "location", "", "gym name (any when empty)")
	c.Flags().StringVar(&in.Instructor, "instructor", "", "instructor (informational)")
	c.Flags().IntVar(&in.MaxWaitingList, "max-waiting", 0, "waiting list length still worth joining")
	c.Flags().BoolVar(&disabled, "disabled", false, "create the rule disabled")
	_ = c.MarkFlagRequired("class")
	_ = c.MarkFlagRequired("day")
	_ = c.MarkFlagRequired("time")
	return c
}

func newRuleListCmd(userID *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List a user's rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			rs, err := a.rules().List(ctx, *userID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rs)
		},
	}
}

func newRuleToggleCmd(userID *string, verb string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " RULE_ID",
		Short: fmt.Sprintf("%s a rule", verb),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			r, err := a.rules().Update(ctx, *userID, args[0], usecases.RulePatch{Enabled: &enabled})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), r)
		},
	}
}

func newRuleDeleteCmd(userID *string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete RULE_ID",
		Short: "Delete a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.rules().Delete(ctx, *userID, args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "deleted", args[0])
			return nil
		},
	}
}
