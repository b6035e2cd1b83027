package api

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/h1bexplorer/internal/storage"
)

// Facet query parameters. Missing, blank and "All" values leave a facet
// unconstrained.
const (
	paramCompany  = "company"
	paramYear     = "year"
	paramState    = "state"
	paramCity     = "city"
	paramSOCTitle = "soc_title"
	paramJobTitle = "job_title"
	paramYearFrom = "year_from"
	paramYearTo   = "year_to"
	paramScope    = "scope"

	paramEntryLevelOnly  = "entry_level_only"
	paramExcludeOtherSOC = "exclude_other_soc"
)

// maxFacetValueLength bounds free-text facet values
const maxFacetValueLength = 200

// parseYearParam parses an optional filing year. "All" and blank mean 0.
func parseYearParam(query url.Values, key string) (int, error) {
	val := strings.TrimSpace(query.Get(key))
	if val == "" || strings.EqualFold(val, storage.All) {
		return 0, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil || n < 1900 || n > 2999 {
		return 0, &ParamError{
			Field:   key,
			Value:   val,
			Message: key + " must be a four digit year",
		}
	}
	return n, nil
}

// parseStringParam returns a trimmed facet value, rejecting oversized input
func parseStringParam(query url.Values, key string) (string, error) {
	val := strings.TrimSpace(query.Get(key))
	if len(val) > maxFacetValueLength {
		return "", &ParamError{
			Field:   key,
			Value:   val[:maxFacetValueLength],
			Message: key + " is too long",
		}
	}
	return val, nil
}

// parseBoolParam parses an optional flag; blank means false
func parseBoolParam(query url.Values, key string) (bool, error) {
	val := strings.TrimSpace(query.Get(key))
	if val == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, &ParamError{
			Field:   key,
			Value:   val,
			Message: key + " must be true or false",
		}
	}
	return b, nil
}

// parseFilterState builds a normalized FilterState from query parameters
func parseFilterState(query url.Values) (storage.FilterState, error) {
	f := storage.AllFilters()

	strParams := []struct {
		key string
		dst *string
	}{
		{paramCompany, &f.Company},
		{paramState, &f.State},
		{paramCity, &f.City},
		{paramSOCTitle, &f.SOCTitle},
		{paramJobTitle, &f.JobTitle},
	}
	for _, p := range strParams {
		val, err := parseStringParam(query, p.key)
		if err != nil {
			return f, err
		}
		*p.dst = val
	}

	intParams := []struct {
		key string
		dst *int
	}{
		{paramYear, &f.Year},
		{paramYearFrom, &f.YearRange.From},
		{paramYearTo, &f.YearRange.To},
	}
	for _, p := range intParams {
		n, err := parseYearParam(query, p.key)
		if err != nil {
			return f, err
		}
		*p.dst = n
	}

	boolParams := []struct {
		key string
		dst *bool
	}{
		{paramEntryLevelOnly, &f.EntryLevelOnly},
		{paramExcludeOtherSOC, &f.ExcludeOtherSOC},
	}
	for _, p := range boolParams {
		b, err := parseBoolParam(query, p.key)
		if err != nil {
			return f, err
		}
		*p.dst = b
	}

	return f.Normalize(), nil
}

// ParamError represents a parameter parsing error.
type ParamError struct {
	Field   string
	Value   string
	Message string
}

func (e *ParamError) Error() string {
	return e.Message
}
