package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/stackvault/stackvault/internal/web"
	"github.com/stackvault/stackvault/pkg/buildinfo"
	"github.com/stackvault/stackvault/pkg/plog"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the web dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.setup(); err != nil {
				return err
			}
			plog.Info("Starting "+buildinfo.Name, "version", buildinfo.Version)
			a.cfg.LogSummary()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return web.New(a.cfg, a.eng).Start(ctx)
		},
	}
}
