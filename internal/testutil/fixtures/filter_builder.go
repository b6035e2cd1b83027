package fixtures

import (
	"github.com/h1bexplorer/internal/storage"
)

// FilterBuilder provides a fluent API for building test filters
type FilterBuilder struct {
	filter storage.FilterState
}

// NewFilterBuilder starts from an unconstrained filter state
func NewFilterBuilder() *FilterBuilder {
	return &FilterBuilder{filter: storage.AllFilters()}
}

// WithCompany sets the company filter
func (b *FilterBuilder) WithCompany(company string) *FilterBuilder {
	b.filter.Company = company
	return b
}

// WithYear sets the single-year filter
func (b *FilterBuilder) WithYear(year int) *FilterBuilder {
	b.filter.Year = year
	return b
}

// WithYearRange sets an inclusive year range
func (b *FilterBuilder) WithYearRange(from, to int) *FilterBuilder {
	b.filter.YearRange = storage.YearRange{From: from, To: to}
	return b
}

// WithState sets the state filter
func (b *FilterBuilder) WithState(state string) *FilterBuilder {
	b.filter.State = state
	return b
}

// WithCity sets the city filter
func (b *FilterBuilder) WithCity(city string) *FilterBuilder {
	b.filter.City = city
	return b
}

// WithSOC sets the occupation filter
func (b *FilterBuilder) WithSOC(soc string) *FilterBuilder {
	b.filter.SOCTitle = soc
	return b
}

// WithJobTitle sets the normalized job title filter
func (b *FilterBuilder) WithJobTitle(title string) *FilterBuilder {
	b.filter.JobTitle = title
	return b
}

// EntryLevel restricts to Level I and II
func (b *FilterBuilder) EntryLevel() *FilterBuilder {
	b.filter.EntryLevelOnly = true
	return b
}

// ExcludeOther drops catch-all occupations
func (b *FilterBuilder) ExcludeOther() *FilterBuilder {
	b.filter.ExcludeOtherSOC = true
	return b
}

// Build returns the filter state
func (b *FilterBuilder) Build() storage.FilterState {
	return b.filter
}
