package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/example/arca-scheduler/internal/application/usecases"
)

func newHistoryCmd() *cobra.Command {
	var userID string
	var limit int

	c := &cobra.Command{
		Use:   "history",
		Short: "Show a user's most recent booking attempts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			recs, err := a.history().ListRecent(ctx, userID, limit)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), recs)
		},
	}
	c.Flags().StringVar(&userID, "user", "", "user id")
	c.Flags().IntVar(&limit, "limit", usecases.DefaultHistoryLimit, "number of entries")
	_ = c.MarkFlagRequired("user")
	return c
}

func newBookCmd() *cobra.Command {
	var userID string
	var req usecases.ManualBooking

	c := &cobra.Command{
		Use:   "book",
		Short: "Book one class now, outside any rule",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.bookClass().Execute(ctx, userID, req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	c.Flags().StringVar(&userID, "user", "", "user id")
	c.Flags().StringVar(&req.EventID, "event", "", "Arca event id")
	c.Flags().StringVar(&req.ClassName, "class", "", "class name for the history entry")
	c.Flags().StringVar(&req.ClassTime, "time", "", "class start for the history entry")
	c.Flags().StringVar(&req.Gym, "gym", "", "gym name for the history entry")
	c.Flags().StringVar(&req.Instructor, "instructor", "", "instructor for the history entry")
	_ = c.MarkFlagRequired("user")
	_ = c.MarkFlagRequired("event")
	return c
}
