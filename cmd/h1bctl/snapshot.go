package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/h1bexplorer/internal/app"
	"github.com/h1bexplorer/internal/snapshot"
)

var errSnapshotsDisabled = errors.New("snapshots are disabled; enable snapshot and cache in the configuration")

func newSnapshotCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Manage the stored career comparison snapshot",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "build",
		Short: "Recompute the career comparison and store it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if a.Snapshots == nil {
					return errSnapshotsDisabled
				}
				snap, err := a.Snapshots.Build(ctx)
				if err != nil {
					return fmt.Errorf("build snapshot: %w", err)
				}
				printSnapshot(cmd.OutOrStdout(), snap, time.Now())
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the stored snapshot without rebuilding it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if a.Snapshots == nil {
					return errSnapshotsDisabled
				}
				snap, err := a.Snapshots.Load(ctx)
				if errors.Is(err, snapshot.ErrNotFound) {
					fmt.Fprintln(cmd.OutOrStdout(), "No snapshot stored; run h1bctl snapshot build")
					return nil
				}
				if err != nil {
					return fmt.Errorf("load snapshot: %w", err)
				}
				printSnapshot(cmd.OutOrStdout(), snap, time.Now())
				return nil
			})
		},
	})

	return cmd
}

func printSnapshot(out io.Writer, snap *snapshot.CareerSnapshot, now time.Time) {
	t := newTable(out, "Field", "Value")
	t.AppendBulk([][]string{
		{"Dataset version", snap.Version},
		{"Built", snap.BuiltAt.UTC().Format(time.RFC3339)},
		{"Age", snap.Age(now).Round(time.Second).String()},
		{"Build ID", snap.BuildID},
	})
	t.Render()

	section(out, "AI developer vs software engineer")
	years := newTable(out, "Year", "Career", "Petitions", "Avg Wage")
	for _, y := range snap.Comparison.Years {
		years.Append([]string{itoa(y.Year), y.Career, formatCount(y.Count), formatWage(y.AvgWage)})
	}
	years.Render()
}
