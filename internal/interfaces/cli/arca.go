package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/arca-scheduler/internal/application/usecases"
)

// newArcaCmd groups read-only calls against the platform with a user's
// stored login.
func newArcaCmd() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "arca",
		Short: "Query Arca with a user's stored login",
	}
	cmd.PersistentFlags().StringVar(&userID, "user", "", "user id")
	_ = cmd.MarkPersistentFlagRequired("user")

	cmd.AddCommand(&cobra.Command{
		Use:   "ping",
		Short: "Check that the stored login works",
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command) error {
			if err := a.browse().TestConnection(ctx, userID); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "gyms",
		Short: "List gyms",
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command) error {
			locs, err := a.browse().Locations(ctx, userID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), locs)
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "bookings",
		Short: "List the user's current bookings",
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command) error {
			refs, err := a.browse().Bookings(ctx, userID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), refs)
		}),
	})

	var location string
	var days int
	classes := &cobra.Command{
		Use:   "classes",
		Short: "List a gym's classes from today on",
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command) error {
			cs, err := a.browse().Classes(ctx, userID, location, days)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), cs)
		}),
	}
	classes.Flags().StringVar(&location, "location", "", "gym id")
	classes.Flags().IntVar(&days, "days", usecases.DefaultBrowseDays, "number of days")
	_ = classes.MarkFlagRequired("location")
	cmd.AddCommand(classes)

	return cmd
}

func withApp(fn func(ctx context.Context, a *app, cmd *cobra.Command) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(ctx, a, cmd)
	}
}
