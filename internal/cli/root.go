package cli

import (
	"context"
	"fmt"
	"os"
	"slices"

	"github.com/ammar0144/reportq"
	"github.com/ammar0144/reportq/pkg/config"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Format     string // "json" | "yaml"
	Verbose    bool

	// open builds the application; replaced in tests
	open func(ctx context.Context, cfg *config.Config, opts *RootOptions) (*reportq.App, error)
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"json", "yaml"}

// NewRootCommand creates the root command for the reportctl CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{open: openApp})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reportctl",
		Short: "Ad-hoc report query engine",
		Long: `reportctl runs ad-hoc reports against the business database.

Pick an entity, the columns to show and the filters to apply; results are
cached for a short time and identical concurrent requests share one query.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "config file or directory containing reportq.yaml")
	cmd.PersistentFlags().StringVarP(&opts.Format, "format", "f", "json", "output format (json|yaml)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(NewEntitiesCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewDefinitionsCommand(opts))
	cmd.AddCommand(NewCacheCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))

	return cmd
}

// loadConfig reads the configuration and applies the verbose flag
func (o *RootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, err
	}
	if o.Verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

// withApp loads the config, builds the application and runs fn against it
func (o *RootOptions) withApp(ctx context.Context, fn func(app *reportq.App, cfg *config.Config) error) error {
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}
	app, err := o.open(ctx, cfg, o)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(app, cfg)
}

func openApp(ctx context.Context, cfg *config.Config, _ *RootOptions) (*reportq.App, error) {
	logger := config.NewLogger(cfg.Log, os.Stderr)
	return reportq.New(ctx, cfg, logger)
}
