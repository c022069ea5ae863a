package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ammar0144/reportq"
	"github.com/ammar0144/reportq/pkg/config"
	"github.com/ammar0144/reportq/pkg/definitions"
)

// NewDefinitionsCommand creates the definitions command group.
func NewDefinitionsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "definitions",
		Aliases: []string{"defs"},
		Short:   "Manage saved report definitions",
	}

	cmd.AddCommand(newDefinitionsSaveCommand(rootOpts))
	cmd.AddCommand(newDefinitionsListCommand(rootOpts))
	cmd.AddCommand(newDefinitionsGetCommand(rootOpts))
	cmd.AddCommand(newDefinitionsDeleteCommand(rootOpts))
	cmd.AddCommand(newDefinitionsRunCommand(rootOpts))
	return cmd
}

func newDefinitionsSaveCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &QueryFlags{}
	var id string

	cmd := &cobra.Command{
		Use:   "save <name> <entity>",
		Short: "Save a report definition",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd.Context(), func(app *reportq.App, _ *config.Config) error {
				raw, err := flags.RawFilters(entityConfig(app, args[1]))
				if err != nil {
					return err
				}
				def := definitions.Definition{
					ID:      id,
					Name:    args[0],
					Entity:  args[1],
					Columns: flags.Columns,
					Filters: raw,
					Limit:   flags.Limit,
				}
				saved, err := app.Engine.SaveDefinition(def)
				if err != nil {
					return err
				}
				return newFormatter(rootOpts, cmd.OutOrStdout()).Write(saved)
			})
		},
	}

	flags.register(cmd, false)
	cmd.Flags().StringVar(&id, "id", "", "overwrite the definition with this id")
	return cmd
}

func newDefinitionsListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved report definitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd.Context(), func(app *reportq.App, _ *config.Config) error {
				defs, err := app.Engine.ListDefinitions()
				if err != nil {
					return err
				}
				return newFormatter(rootOpts, cmd.OutOrStdout()).Write(defs)
			})
		},
	}
}

func newDefinitionsGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one saved report definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd.Context(), func(app *reportq.App, _ *config.Config) error {
				def, err := app.Engine.GetDefinition(args[0])
				if err != nil {
					return err
				}
				return newFormatter(rootOpts, cmd.OutOrStdout()).Write(def)
			})
		},
	}
}

func newDefinitionsDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a saved report definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd.Context(), func(app *reportq.App, _ *config.Config) error {
				if err := app.Engine.DeleteDefinition(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "deleted %s\n", args[0])
				return nil
			})
		},
	}
}

func newDefinitionsRunCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run <id>",
		Short: "Run a saved report definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd.Context(), func(app *reportq.App, _ *config.Config) error {
				result, err := app.Engine.RunDefinition(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return newFormatter(rootOpts, cmd.OutOrStdout()).Write(result)
			})
		},
	}
}
