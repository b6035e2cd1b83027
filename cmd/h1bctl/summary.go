package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/h1bexplorer/internal/analytics"
	"github.com/h1bexplorer/internal/app"
)

func newSummaryCmd(opts *rootOptions) *cobra.Command {
	var filters filterFlags

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print petition totals, wage statistics and the wage level mix",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				f := filters.filterState()
				summary, w1 := a.Views.Summary(ctx, f)
				levels, w2 := a.Views.WageLevels(ctx, f)

				out := cmd.OutOrStdout()
				printSummary(out, summary)
				section(out, "Wage levels")
				printWageLevels(out, levels)
				return opts.report(cmd, append(w1, w2...))
			})
		},
	}

	filters.register(cmd)
	return cmd
}

func printSummary(out io.Writer, s analytics.Summary) {
	t := newTable(out, "Metric", "Value")
	t.AppendBulk([][]string{
		{"Petitions", formatCount(s.Total)},
		{"Employers", formatCount(s.Employers)},
		{"Average wage", formatWage(s.AvgWage)},
		{"Median wage", formatWage(s.MedianWage)},
		{"25th percentile wage", formatWage(s.P25Wage)},
		{"75th percentile wage", formatWage(s.P75Wage)},
		{"Lowest wage", formatWage(s.MinWage)},
		{"Highest wage", formatWage(s.MaxWage)},
	})
	t.Render()
}

func printWageLevels(out io.Writer, b analytics.WageLevelBreakdown) {
	t := newTable(out, "Level", "Petitions", "Share")
	for _, l := range b.Levels {
		t.Append([]string{"Level " + l.Level, formatCount(l.Count), formatPercent(l.Percent)})
	}
	t.Render()
}
