package main

import (
	"github.com/spf13/cobra"

	"github.com/h1bexplorer/internal/storage"
)

// filterFlags binds the facet selections to command flags
type filterFlags struct {
	company  string
	year     int
	yearFrom int
	yearTo   int
	state    string
	city     string
	socTitle string
	jobTitle string

	entryLevel   bool
	excludeOther bool
}

func (f *filterFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.company, "company", storage.All, "Employer (parent company)")
	fs.IntVar(&f.year, "year", 0, "Filing year, 0 for all years")
	fs.IntVar(&f.yearFrom, "year-from", 0, "First filing year of the range")
	fs.IntVar(&f.yearTo, "year-to", 0, "Last filing year of the range")
	fs.StringVar(&f.state, "state", storage.All, "Worksite state code")
	fs.StringVar(&f.city, "city", storage.All, "Worksite city")
	fs.StringVar(&f.socTitle, "soc-title", storage.All, "SOC occupation title")
	fs.StringVar(&f.jobTitle, "job-title", storage.All, "Normalized job title")
	fs.BoolVar(&f.entryLevel, "entry-level", false, "Only wage Level I and II petitions")
	fs.BoolVar(&f.excludeOther, "exclude-other-soc", false, "Drop catch-all \"Other\" occupations")
}

func (f *filterFlags) filterState() storage.FilterState {
	return storage.FilterState{
		Company:   f.company,
		Year:      f.year,
		State:     f.state,
		City:      f.city,
		SOCTitle:  f.socTitle,
		JobTitle:  f.jobTitle,
		YearRange: storage.YearRange{From: f.yearFrom, To: f.yearTo},

		EntryLevelOnly:  f.entryLevel,
		ExcludeOtherSOC: f.excludeOther,
	}.Normalize()
}
