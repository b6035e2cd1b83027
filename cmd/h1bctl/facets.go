package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/h1bexplorer/internal/analytics"
	"github.com/h1bexplorer/internal/app"
	"github.com/h1bexplorer/internal/storage"
)

func newFacetsCmd(opts *rootOptions) *cobra.Command {
	var (
		filters filterFlags
		facet   string
	)

	cmd := &cobra.Command{
		Use:   "facets",
		Short: "List the filter options available under the current selection",
		Long: "Without --facet prints how many options each facet offers. With " +
			"--facet prints every option of that facet.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if facet != "" && !knownFacet(storage.Facet(facet)) {
				return fmt.Errorf("unknown facet %q", facet)
			}
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				options, warnings := a.Views.FacetOptions(ctx, filters.filterState())

				out := cmd.OutOrStdout()
				if facet == "" {
					t := newTable(out, "Facet", "Options")
					for _, f := range storage.Facets {
						t.Append([]string{string(f), itoa(len(facetValues(options, f)))})
					}
					t.Render()
					if options.YearRange.IsSet() {
						fmt.Fprintf(out, "Years %d to %d\n", options.YearRange.From, options.YearRange.To)
					}
				} else {
					t := newTable(out, facet)
					for _, v := range facetValues(options, storage.Facet(facet)) {
						t.Append([]string{v})
					}
					t.Render()
				}

				for _, f := range options.Invalid {
					fmt.Fprintf(cmd.ErrOrStderr(), "selection for %s is no longer available\n", f)
				}
				return opts.report(cmd, warnings)
			})
		},
	}

	filters.register(cmd)
	cmd.Flags().StringVar(&facet, "facet", "", "Facet to list (company, year, state, city, soc_title, job_title)")
	return cmd
}

func knownFacet(f storage.Facet) bool {
	for _, x := range storage.Facets {
		if x == f {
			return true
		}
	}
	return false
}

func facetValues(o analytics.FacetOptions, f storage.Facet) []string {
	switch f {
	case storage.FacetCompany:
		return o.Companies
	case storage.FacetYear:
		out := make([]string, len(o.Years))
		for i, y := range o.Years {
			out[i] = itoa(y)
		}
		return out
	case storage.FacetState:
		return o.States
	case storage.FacetCity:
		return o.Cities
	case storage.FacetSOCTitle:
		return o.SOCTitles
	case storage.FacetJobTitle:
		return o.JobTitles
	}
	return nil
}
