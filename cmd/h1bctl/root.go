package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/h1bexplorer/internal/analytics"
	"github.com/h1bexplorer/internal/app"
	"github.com/h1bexplorer/internal/config"
	"github.com/h1bexplorer/internal/logging"
)

type rootOptions struct {
	configPath string
	strict     bool
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "h1bctl",
		Short: "Explore H-1B lottery petitions from the terminal",
		Long: "Runs the dashboard views against the configured petitions table " +
			"and prints the results as tables. Filters narrow every view.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			c, err := config.LoadConfig(opts.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			opts.cfg = c

			lc := c.CLILogging.ToLogging()
			lc.Output = cmd.ErrOrStderr()
			if err := logging.Initialize(lc); err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = logging.Close()
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "config.yaml", "Path to configuration file")
	pf.BoolVar(&opts.strict, "strict", false, "Exit with an error when a view reports warnings")

	cmd.AddCommand(
		newFacetsCmd(opts),
		newSummaryCmd(opts),
		newStatesCmd(opts),
		newTrendsCmd(opts),
		newReportCmd(opts),
		newSnapshotCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// withApp assembles the components for one command and releases them
// afterwards. The context is cancelled on SIGINT or SIGTERM.
func (o *rootOptions) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(o.cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

// report prints warnings to stderr and, with --strict, turns them into an
// error.
func (o *rootOptions) report(cmd *cobra.Command, warnings analytics.Warnings) error {
	for _, w := range warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s: %s (%s)\n", w.View, w.Message, w.Code)
	}
	if o.strict && len(warnings) > 0 {
		return fmt.Errorf("%d view warning(s)", len(warnings))
	}
	return nil
}
