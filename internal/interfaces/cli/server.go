package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/arca-scheduler/internal/application/scheduler"
	"github.com/example/arca-scheduler/internal/interfaces/web"
)

func newServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "Serve the booking trigger endpoint, plus the in-process ticker when SCHED_POLL_INTERVAL is set",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			uc := a.checkBookings()

			var tokens *web.TriggerTokens
			if len(a.cfg.TriggerKey) > 0 {
				if tokens, err = web.NewTriggerTokens(a.cfg.TriggerKey); err != nil {
					return err
				}
			}

			if a.cfg.PollInterval > 0 {
				s := &scheduler.Scheduler{
					Runner:     uc,
					Interval:   a.cfg.PollInterval,
					RunTimeout: a.cfg.RunTimeout,
					Log:        a.log.Named("scheduler"),
				}
				go func() { _ = s.Run(ctx) }()
			}

			srv := web.New(uc, web.Options{
				Production: a.cfg.Production(),
				Tokens:     tokens,
				RunTimeout: a.cfg.RunTimeout,
				Log:        a.log.Named("http"),
			})
			a.log.Info("server starting",
				zap.String("env", a.cfg.Env),
				zap.String("store", a.cfg.StoreDriver),
				zap.Bool("trigger_tokens", tokens != nil))
			return srv.ListenAndServe(ctx, a.cfg.HTTPAddr)
		},
	}
}
