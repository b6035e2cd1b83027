package storage

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/h1bexplorer/internal/database"
)

// All is the sentinel for an unconstrained string facet.
const All = "All"

// Facet names one filterable dimension.
type Facet string

const (
	FacetCompany  Facet = "company"
	FacetYear     Facet = "year"
	FacetState    Facet = "state"
	FacetCity     Facet = "city"
	FacetSOCTitle Facet = "soc_title"
	FacetJobTitle Facet = "job_title"
)

// Facets in sidebar order
var Facets = []Facet{FacetCompany, FacetYear, FacetState, FacetCity, FacetSOCTitle, FacetJobTitle}

// facetColumns maps a facet to the table column it filters on
var facetColumns = map[Facet]string{
	FacetCompany:  database.ColEmployerParent,
	FacetYear:     database.ColYear,
	FacetState:    database.ColEmployerState,
	FacetCity:     database.ColEmployerCity,
	FacetSOCTitle: database.ColSOCTitle,
	FacetJobTitle: database.ColNormalizedTitle,
}

// facetParents lists the facets a dependent facet's options are narrowed by
var facetParents = map[Facet][]Facet{
	FacetCity:     {FacetState, FacetCompany, FacetYear, FacetSOCTitle},
	FacetJobTitle: {FacetCompany, FacetSOCTitle, FacetState, FacetCity, FacetYear},
	FacetSOCTitle: {FacetCompany, FacetState, FacetCity, FacetYear},
}

// Column returns the table column behind a facet
func (f Facet) Column() string {
	return facetColumns[f]
}

// ParentFacets returns the facets that narrow f, nil for independent facets
func (f Facet) ParentFacets() []Facet {
	return facetParents[f]
}

// YearRange is an inclusive range of filing years. The zero value means the
// full observed range.
type YearRange struct {
	From int `json:"from,omitempty"`
	To   int `json:"to,omitempty"`
}

// IsSet reports whether the range constrains anything
func (r YearRange) IsSet() bool {
	return r.From > 0 || r.To > 0
}

// FilterState is the conjunction of facet selections a view is computed
// under. String facets use All for unconstrained, Year uses 0.
type FilterState struct {
	Company   string    `json:"company"`
	Year      int       `json:"year,omitempty"`
	State     string    `json:"state"`
	City      string    `json:"city"`
	SOCTitle  string    `json:"soc_title"`
	JobTitle  string    `json:"job_title"`
	YearRange YearRange `json:"year_range"`

	// EntryLevelOnly restricts to wage Level I and II
	EntryLevelOnly bool `json:"entry_level_only,omitempty"`

	// ExcludeOtherSOC drops catch-all "... Other" occupations
	ExcludeOtherSOC bool `json:"exclude_other_soc,omitempty"`
}

// AllFilters returns an unconstrained filter state
func AllFilters() FilterState {
	return FilterState{
		Company:  All,
		State:    All,
		City:     All,
		SOCTitle: All,
		JobTitle: All,
	}
}

func normalizeValue(v string) string {
	v = strings.TrimSpace(v)
	if v == "" || strings.EqualFold(v, All) {
		return All
	}
	return v
}

// Normalize maps blanks to All, trims values and orders the year range.
// Every Operations method normalizes its input, so the zero FilterState is
// equivalent to AllFilters.
func (f FilterState) Normalize() FilterState {
	f.Company = normalizeValue(f.Company)
	f.State = normalizeValue(f.State)
	f.City = normalizeValue(f.City)
	f.SOCTitle = normalizeValue(f.SOCTitle)
	f.JobTitle = normalizeValue(f.JobTitle)
	if f.Year < 0 {
		f.Year = 0
	}
	if f.YearRange.From < 0 {
		f.YearRange.From = 0
	}
	if f.YearRange.To < 0 {
		f.YearRange.To = 0
	}
	if f.YearRange.From > 0 && f.YearRange.To > 0 && f.YearRange.From > f.YearRange.To {
		f.YearRange.From, f.YearRange.To = f.YearRange.To, f.YearRange.From
	}
	return f
}

// WithoutGeography drops state and city, used by map and state views
func (f FilterState) WithoutGeography() FilterState {
	f.State = All
	f.City = All
	return f
}

// WithoutYear drops the single-year selection, used by trend views
func (f FilterState) WithoutYear() FilterState {
	f.Year = 0
	return f
}

// Value returns the selected value of a facet, "" when unconstrained
func (f FilterState) Value(facet Facet) string {
	f = f.Normalize()
	var v string
	switch facet {
	case FacetCompany:
		v = f.Company
	case FacetYear:
		if f.Year == 0 {
			return ""
		}
		return strconv.Itoa(f.Year)
	case FacetState:
		v = f.State
	case FacetCity:
		v = f.City
	case FacetSOCTitle:
		v = f.SOCTitle
	case FacetJobTitle:
		v = f.JobTitle
	}
	if v == All {
		return ""
	}
	return v
}

// IsSet reports whether a facet is constrained
func (f FilterState) IsSet(facet Facet) bool {
	return f.Value(facet) != ""
}

// Parents keeps only the facets that narrow the options of facet. All
// other selections, including the facet's own value, are cleared.
func (f FilterState) Parents(facet Facet) FilterState {
	f = f.Normalize()
	out := AllFilters()
	for _, p := range facet.ParentFacets() {
		switch p {
		case FacetCompany:
			out.Company = f.Company
		case FacetYear:
			out.Year = f.Year
		case FacetState:
			out.State = f.State
		case FacetCity:
			out.City = f.City
		case FacetSOCTitle:
			out.SOCTitle = f.SOCTitle
		case FacetJobTitle:
			out.JobTitle = f.JobTitle
		}
	}
	return out
}

// Clauses folds every constrained facet into predicate clauses
func (f FilterState) Clauses() []Clause {
	f = f.Normalize()
	var clauses []Clause

	if f.Company != All {
		clauses = append(clauses, Eq(database.ColEmployerParent, f.Company))
	}
	if f.Year > 0 {
		clauses = append(clauses, Eq(database.ColYear, f.Year))
	}
	if f.YearRange.IsSet() {
		from, to := f.YearRange.From, f.YearRange.To
		if from == 0 {
			from = minFilingYear
		}
		if to == 0 {
			to = maxFilingYear
		}
		clauses = append(clauses, Between(database.ColYear, from, to))
	}
	if f.State != All {
		clauses = append(clauses, Eq(database.ColEmployerState, f.State))
	}
	if f.City != All {
		clauses = append(clauses, Eq(database.ColEmployerCity, f.City))
	}
	if f.SOCTitle != All {
		clauses = append(clauses, Eq(database.ColSOCTitle, f.SOCTitle))
	}
	if f.JobTitle != All {
		clauses = append(clauses, Eq(database.ColNormalizedTitle, f.JobTitle))
	}
	if f.EntryLevelOnly {
		clauses = append(clauses, In(database.ColWageLevel, database.EntryLevels))
	}
	if f.ExcludeOtherSOC {
		clauses = append(clauses, NotLikeCI(database.ColSOCTitle, "%other%"))
	}
	return clauses
}

// open ends of a half-set YearRange
const (
	minFilingYear = 1900
	maxFilingYear = 9999
)

// LogValue renders only the constrained facets
func (f FilterState) LogValue() slog.Value {
	f = f.Normalize()
	var attrs []slog.Attr
	for _, facet := range Facets {
		if v := f.Value(facet); v != "" {
			attrs = append(attrs, slog.String(string(facet), v))
		}
	}
	if f.YearRange.IsSet() {
		attrs = append(attrs, slog.Int("year_from", f.YearRange.From), slog.Int("year_to", f.YearRange.To))
	}
	if f.EntryLevelOnly {
		attrs = append(attrs, slog.Bool("entry_level_only", true))
	}
	if f.ExcludeOtherSOC {
		attrs = append(attrs, slog.Bool("exclude_other_soc", true))
	}
	return slog.GroupValue(attrs...)
}
