package analytics

import (
	"context"
	"slices"

	"github.com/h1bexplorer/internal/database"
	"github.com/h1bexplorer/internal/storage"
)

// FacetOptions are the sidebar choices under a filter state. Companies,
// states and years are never narrowed; the dependent facets are narrowed by
// their parent selections.
type FacetOptions struct {
	Companies []string          `json:"companies"`
	Years     []int             `json:"years"`
	YearRange storage.YearRange `json:"year_range"`
	States    []string          `json:"states"`
	Cities    []string          `json:"cities"`
	SOCTitles []string          `json:"soc_titles"`
	JobTitles []string          `json:"job_titles"`

	// Invalid names dependent facets whose selection is no longer among
	// their options. Selections are flagged, not reset.
	Invalid []storage.Facet `json:"invalid,omitempty"`
}

// FacetOptions lists every facet's choices under f
func (s *Service) FacetOptions(ctx context.Context, f storage.FilterState) (FacetOptions, Warnings) {
	const view = "facet_options"
	f = f.Normalize()
	all := storage.AllFilters()

	opts := FacetOptions{
		Companies: []string{},
		Years:     []int{},
		States:    []string{},
		Cities:    []string{},
		SOCTitles: []string{},
		JobTitles: []string{},
	}
	var warnings Warnings

	if v, err := s.ops.ListDistinct(ctx, database.ColEmployerParent, all); err != nil {
		warnings = append(warnings, failed(view, f, err)...)
	} else {
		opts.Companies = nonNil(v)
	}

	if years, err := s.ops.ListYears(ctx, all); err != nil {
		warnings = append(warnings, failed(view, f, err)...)
	} else {
		opts.Years = nonNil(years)
		if len(years) > 0 {
			opts.YearRange = storage.YearRange{From: years[0], To: years[len(years)-1]}
		}
	}

	if v, err := s.ops.ListDistinct(ctx, database.ColEmployerState, all); err != nil {
		warnings = append(warnings, failed(view, f, err)...)
	} else {
		opts.States = nonNil(v)
	}

	cities, w := s.Cities(ctx, f)
	warnings = append(warnings, w...)
	if w == nil {
		opts.Cities = cities
		opts.Invalid = appendInvalid(opts.Invalid, f, storage.FacetCity, cities)
	}

	socs, w := s.SOCTitles(ctx, f)
	warnings = append(warnings, w...)
	if w == nil {
		opts.SOCTitles = socs
		opts.Invalid = appendInvalid(opts.Invalid, f, storage.FacetSOCTitle, socs)
	}

	titles, w := s.JobTitles(ctx, f)
	warnings = append(warnings, w...)
	if w == nil {
		opts.JobTitles = titles
		opts.Invalid = appendInvalid(opts.Invalid, f, storage.FacetJobTitle, titles)
	}

	return opts, warnings
}

// appendInvalid flags facet when its selection is missing from options
func appendInvalid(invalid []storage.Facet, f storage.FilterState, facet storage.Facet, options []string) []storage.Facet {
	v := f.Value(facet)
	if v == "" || slices.Contains(options, v) {
		return invalid
	}
	return append(invalid, facet)
}

// Cities lists city choices under the parent selections of f
func (s *Service) Cities(ctx context.Context, f storage.FilterState) ([]string, Warnings) {
	v, err := s.ops.Cities(ctx, f)
	if err != nil {
		return []string{}, failed("cities", f, err)
	}
	return nonNil(v), nil
}

// SOCTitles lists occupation choices under the parent selections of f
func (s *Service) SOCTitles(ctx context.Context, f storage.FilterState) ([]string, Warnings) {
	v, err := s.ops.SOCTitles(ctx, f)
	if err != nil {
		return []string{}, failed("soc_titles", f, err)
	}
	return nonNil(v), nil
}

// JobTitles lists normalized job title choices under the parent selections of f
func (s *Service) JobTitles(ctx context.Context, f storage.FilterState) ([]string, Warnings) {
	v, err := s.ops.JobTitles(ctx, f)
	if err != nil {
		return []string{}, failed("job_titles", f, err)
	}
	return nonNil(v), nil
}
