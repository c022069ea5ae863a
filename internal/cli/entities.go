package cli

import (
	"github.com/spf13/cobra"

	"github.com/ammar0144/reportq/pkg/report"
)

type entitySummary struct {
	Key   report.EntityKey `json:"key"`
	Label string           `json:"label"`
}

// NewEntitiesCommand creates the entities command.
func NewEntitiesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "entities [key]",
		Short: "List reportable entities or show one entity's columns",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := report.DefaultRegistry()
			if err != nil {
				return err
			}
			out := newFormatter(rootOpts, cmd.OutOrStdout())

			if len(args) == 1 {
				cfg, err := registry.Lookup(report.EntityKey(args[0]))
				if err != nil {
					return err
				}
				return out.Write(cfg)
			}

			entities := registry.ListEntities()
			summaries := make([]entitySummary, 0, len(entities))
			for _, e := range entities {
				summaries = append(summaries, entitySummary{Key: e.Key, Label: e.Label})
			}
			return out.Write(summaries)
		},
	}
}
