package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/h1bexplorer/internal/analytics"
	"github.com/h1bexplorer/internal/app"
	"github.com/h1bexplorer/internal/storage"
)

// reportViews holds the views a report prints
type reportViews struct {
	summary   analytics.Summary
	employers analytics.TopEmployers
	locations analytics.Locations
	careers   analytics.CareerGrowth
	warnings  [4]analytics.Warnings
}

func newReportCmd(opts *rootOptions) *cobra.Command {
	var filters filterFlags

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the overview, entry-level employers, locations and career growth",
		Long: "Runs the overview, employer, location and career views in " +
			"parallel and prints them as one report.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				v := collectReport(ctx, a.Views, filters.filterState())

				out := cmd.OutOrStdout()
				section(out, "Overview")
				printSummary(out, v.summary)
				section(out, "Top entry-level employers")
				printEmployers(out, v.employers.ByVolume)
				section(out, "Best paying entry-level employers")
				printEmployers(out, v.employers.BestPaying)
				section(out, "Top states for entry-level petitions")
				printLocations(out, v.locations.TopStates, false)
				section(out, "Top cities")
				printLocations(out, v.locations.TopCities, true)
				section(out, "Fastest growing careers")
				printCareerTrends(out, v.careers.Growing)
				section(out, "Declining careers")
				printCareerTrends(out, v.careers.Declining)

				var warnings analytics.Warnings
				for _, w := range v.warnings {
					warnings = append(warnings, w...)
				}
				return opts.report(cmd, warnings)
			})
		},
	}

	filters.register(cmd)
	return cmd
}

// collectReport runs the views concurrently. Views never fail, so the group
// only bounds the fan-out and waits.
func collectReport(ctx context.Context, views *analytics.Service, f storage.FilterState) reportViews {
	var v reportViews
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v.summary, v.warnings[0] = views.Summary(ctx, f)
		return nil
	})
	g.Go(func() error {
		v.employers, v.warnings[1] = views.TopEmployers(ctx, f)
		return nil
	})
	g.Go(func() error {
		v.locations, v.warnings[2] = views.Locations(ctx, f)
		return nil
	})
	g.Go(func() error {
		v.careers, v.warnings[3] = views.CareerGrowth(ctx, f)
		return nil
	})
	_ = g.Wait()
	return v
}

func printEmployers(out io.Writer, employers []analytics.EmployerStat) {
	t := newTable(out, "Employer", "Petitions", "Avg Wage", "Median Wage", "Level I")
	for _, e := range employers {
		t.Append([]string{e.Employer, formatCount(e.Count), formatWage(e.AvgWage), formatWage(e.MedianWage), formatPercent(e.LevelIPercent)})
	}
	t.Render()
}

func printLocations(out io.Writer, locations []analytics.LocationStat, withCity bool) {
	header := []string{"State", "Petitions", "Avg Wage", "Median Wage"}
	if withCity {
		header = append([]string{"City"}, header...)
	}
	t := newTable(out, header...)
	for _, l := range locations {
		row := []string{l.State, formatCount(l.Count), formatWage(l.AvgWage), formatWage(l.MedianWage)}
		if withCity {
			row = append([]string{l.City}, row...)
		}
		t.Append(row)
	}
	t.Render()
}

func printCareerTrends(out io.Writer, trends []analytics.CareerTrend) {
	t := newTable(out, "Career", "From", "To", "Petitions", "Growth")
	for _, c := range trends {
		t.Append([]string{
			c.Career,
			itoa(c.Growth.StartYear),
			itoa(c.Growth.EndYear),
			numbers.Sprintf("%.0f", c.Growth.Total),
			formatGrowth(c.Growth.Rate, true),
		})
	}
	t.Render()
}
