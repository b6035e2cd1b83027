package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/h1bexplorer/internal/analytics"
	"github.com/h1bexplorer/internal/app"
	"github.com/h1bexplorer/internal/database"
)

func newTrendsCmd(opts *rootOptions) *cobra.Command {
	var (
		filters filterFlags
		policy  bool
	)

	cmd := &cobra.Command{
		Use:   "trends",
		Short: "Print year over year petition and wage trends",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				f := filters.filterState()
				trends, warnings := a.Views.YearlyTrends(ctx, f)

				out := cmd.OutOrStdout()
				printYearlyTrends(out, trends)

				if policy {
					impact, w := a.Views.PolicyImpact(ctx, f)
					warnings = append(warnings, w...)
					section(out, "Wage level mix by year")
					printPolicyImpact(out, impact)
				}
				return opts.report(cmd, warnings)
			})
		},
	}

	filters.register(cmd)
	cmd.Flags().BoolVar(&policy, "policy", false, "Also print the wage level mix and the share at Level I or II")
	return cmd
}

func printYearlyTrends(out io.Writer, trends analytics.YearlyTrends) {
	t := newTable(out, "Year", "Petitions", "Growth", "Avg Wage", "Median Wage", "Level I")
	for _, y := range trends.Years {
		t.Append([]string{
			itoa(y.Year),
			formatCount(y.Count),
			formatGrowth(y.Growth, y.HasPrevious),
			formatWage(y.AvgWage),
			formatWage(y.MedianWage),
			formatPercent(y.LevelPercent[database.WageLevels[0]]),
		})
	}
	t.Render()
}

func printPolicyImpact(out io.Writer, impact analytics.PolicyImpact) {
	header := []string{"Year", "Petitions"}
	for _, l := range database.WageLevels {
		header = append(header, "Level "+l)
	}
	header = append(header, "I + II")

	t := newTable(out, header...)
	addRow := func(label string, mix analytics.LevelMix) {
		row := []string{label, formatCount(mix.Total)}
		for _, l := range database.WageLevels {
			row = append(row, formatPercent(mix.Percent[l]))
		}
		t.Append(append(row, formatPercent(mix.AtRisk)))
	}
	for _, y := range impact.Years {
		addRow(itoa(y.Year), y.LevelMix)
	}
	if impact.Overall.Total > 0 {
		addRow("All", impact.Overall)
	}
	t.Render()
}
