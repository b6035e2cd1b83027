package api

import (
	"context"
	"net/http"

	"github.com/h1bexplorer/internal/analytics"
	"github.com/h1bexplorer/internal/storage"
)

// Envelope wraps every view response
type Envelope struct {
	Data     any                 `json:"data"`
	Warnings analytics.Warnings  `json:"warnings"`
	Empty    bool                `json:"empty"`
	Filters  storage.FilterState `json:"filters"`
}

type viewFunc[T any] func(ctx context.Context, f storage.FilterState) (T, analytics.Warnings)

// viewHandler parses the filters, runs fn and writes the envelope. Views
// never fail, so the only error response is a 400 for bad parameters.
func viewHandler[T any](fn viewFunc[T], empty func(T) bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := parseFilterState(r.URL.Query())
		if err != nil {
			WriteJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}

		data, warnings := fn(r.Context(), f)
		if warnings == nil {
			warnings = analytics.Warnings{}
		}
		WriteJSONSuccess(w, Envelope{
			Data:     data,
			Warnings: warnings,
			Empty:    empty(data),
			Filters:  f,
		})
	}
}

func emptySlice[T any](v []T) bool { return len(v) == 0 }

func emptyFacets(v analytics.FacetOptions) bool {
	return len(v.Companies)+len(v.Years)+len(v.States)+len(v.Cities)+len(v.SOCTitles)+len(v.JobTitles) == 0
}

func emptySummary(v analytics.Summary) bool { return v.Total == 0 }

func emptyWageLevels(v analytics.WageLevelBreakdown) bool { return v.Total == 0 }

func emptyOccupations(v []analytics.LevelOccupations) bool {
	for _, l := range v {
		if len(l.Occupations) > 0 {
			return false
		}
	}
	return true
}

func emptyTrends(v analytics.YearlyTrends) bool {
	return len(v.Years)+len(v.Salaries)+len(v.Levels) == 0
}

func emptyPolicy(v analytics.PolicyImpact) bool {
	return len(v.Years) == 0 && v.Overall.Total == 0
}

func emptyEmployers(v analytics.TopEmployers) bool {
	return len(v.ByVolume)+len(v.BestPaying) == 0
}

func emptyLocations(v analytics.Locations) bool {
	return len(v.TopStates)+len(v.BestPayingStates)+len(v.StateSummary)+len(v.TopCities) == 0
}

func emptyCareers(v analytics.CareerGrowth) bool {
	return len(v.Growing)+len(v.Declining)+len(v.Summary) == 0
}

func emptyComparison(v analytics.CareerComparison) bool { return v.Empty() }
