package cli

import (
	"github.com/spf13/cobra"

	"github.com/ammar0144/reportq"
	"github.com/ammar0144/reportq/pkg/config"
)

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &QueryFlags{}

	cmd := &cobra.Command{
		Use:   "run <entity>",
		Short: "Run an ad-hoc report",
		Long: `Run an ad-hoc report against one entity.

Examples:
  reportctl run orders --columns order_number,client_name,total --filter status=pending --where total:gte=500
  reportctl run clients --where created_at:between=2024-01-01,2024-12-31 --summary`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd.Context(), func(app *reportq.App, _ *config.Config) error {
				req, err := flags.Request(args[0], entityConfig(app, args[0]))
				if err != nil {
					return err
				}
				result, err := app.Engine.RunReport(cmd.Context(), req)
				if err != nil {
					return err
				}
				return newFormatter(rootOpts, cmd.OutOrStdout()).Write(result)
			})
		},
	}

	flags.register(cmd, true)
	return cmd
}
