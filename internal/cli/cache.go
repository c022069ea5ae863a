package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ammar0144/reportq"
	"github.com/ammar0144/reportq/pkg/config"
)

// NewCacheCommand creates the cache command group.
func NewCacheCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the report result cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Drop every cached report result, including the shared redis tier",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd.Context(), func(app *reportq.App, _ *config.Config) error {
				if err := app.Engine.ClearCache(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.ErrOrStderr(), "report cache cleared")
				return nil
			})
		},
	})
	return cmd
}
