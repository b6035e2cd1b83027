package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/h1bexplorer/internal/app"
	"github.com/h1bexplorer/internal/database"
)

func newStatesCmd(opts *rootOptions) *cobra.Command {
	var filters filterFlags

	cmd := &cobra.Command{
		Use:   "states",
		Short: "Print petitions per worksite state",
		Long: "Prints the state distribution. State and city selections are " +
			"ignored so every state stays visible.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				states, warnings := a.Views.StateDistribution(ctx, filters.filterState())

				header := []string{"State", "Petitions", "Share", "Avg Wage"}
				for _, l := range database.WageLevels {
					header = append(header, "Level "+l)
				}
				t := newTable(cmd.OutOrStdout(), header...)
				for _, s := range states {
					row := []string{s.State, formatCount(s.Count), formatPercent(s.Percent), formatWage(s.AvgWage)}
					for _, l := range database.WageLevels {
						row = append(row, formatCount(s.Levels[l]))
					}
					t.Append(row)
				}
				t.Render()
				return opts.report(cmd, warnings)
			})
		},
	}

	filters.register(cmd)
	return cmd
}
