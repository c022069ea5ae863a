package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ammar0144/reportq"
	"github.com/ammar0144/reportq/pkg/api"
	"github.com/ammar0144/reportq/pkg/config"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the report API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return rootOpts.withApp(ctx, func(app *reportq.App, cfg *config.Config) error {
				if addr != "" {
					cfg.HTTP.Addr = addr
				}
				logger := config.NewLogger(cfg.Log, os.Stderr)
				server := api.NewServer(api.Config{
					Addr:           cfg.HTTP.Addr,
					AllowedOrigins: cfg.HTTP.AllowedOrigins,
				}, app.Engine, logger)
				return server.Run(ctx)
			})
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides http.addr)")
	return cmd
}
