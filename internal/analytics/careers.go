package analytics

import (
	"context"
	"fmt"

	"github.com/h1bexplorer/internal/database"
	"github.com/h1bexplorer/internal/stats"
	"github.com/h1bexplorer/internal/storage"
)

// CareerTrend is the growth of one career path between its first and last
// observed years
type CareerTrend struct {
	Career string        `json:"career"`
	Growth stats.Growth  `json:"growth"`
	Series []stats.Point `json:"series"`
}

// CareerSummary is the pay and seniority of one occupation
type CareerSummary struct {
	SOCTitle      string  `json:"soc_title"`
	Count         int64   `json:"count"`
	AvgWage       float64 `json:"avg_wage"`
	MedianWage    float64 `json:"median_wage"`
	LevelIPercent float64 `json:"level_i_percent"`
}

// CareerGrowth lists the fastest growing and declining career paths
type CareerGrowth struct {
	Growing   []CareerTrend   `json:"growing"`
	Declining []CareerTrend   `json:"declining"`
	Summary   []CareerSummary `json:"summary"`
}

// CareerGrowth compares petition counts of every occupation, plus the AI
// developer category, between the first and last years. Catch-all "other"
// occupations are always excluded and the single-year selection is ignored.
func (s *Service) CareerGrowth(ctx context.Context, f storage.FilterState) (CareerGrowth, Warnings) {
	const view = "career_growth"
	th := s.thresholds
	f.ExcludeOtherSOC = true
	out := CareerGrowth{Growing: []CareerTrend{}, Declining: []CareerTrend{}, Summary: []CareerSummary{}}
	var warnings Warnings

	series := map[string][]stats.Point{}
	var careers []string
	addPoint := func(career string, year int, count int64) {
		if _, ok := series[career]; !ok {
			careers = append(careers, career)
		}
		series[career] = append(series[career], stats.Point{Year: year, Value: float64(count)})
	}

	bySOC, err := s.ops.FetchYearly(ctx, f, storage.AggregationSpec{
		GroupBy:  []string{database.ColSOCTitle, database.ColYear},
		Measures: []storage.Measure{storage.Count("count")},
		Where:    []storage.Clause{storage.NotEmpty(database.ColSOCTitle)},
	})
	if err != nil {
		warnings = append(warnings, failed(view, f, err)...)
	} else {
		for i := 0; i < bySOC.Len(); i++ {
			addPoint(bySOC.String(i, database.ColSOCTitle), int(bySOC.Int(i, database.ColYear)), bySOC.Int(i, "count"))
		}
	}

	const alias = "career"
	ai, err := s.ops.FetchYearly(ctx, f, storage.AggregationSpec{
		GroupBy:  []string{database.ColYear},
		Derived:  stats.AIDeveloperColumn(alias),
		Measures: []storage.Measure{storage.Count("count")},
	})
	if err != nil {
		warnings = append(warnings, failed(view, f, err)...)
	} else {
		for i := 0; i < ai.Len(); i++ {
			addPoint(ai.String(i, alias), int(ai.Int(i, database.ColYear)), ai.Int(i, "count"))
		}
	}

	trends := make([]CareerTrend, 0, len(careers))
	for _, career := range careers {
		g, ok := stats.CareerGrowth(series[career])
		if !ok {
			continue
		}
		trends = append(trends, CareerTrend{Career: career, Growth: g, Series: series[career]})
	}
	rate := func(t CareerTrend) float64 { return t.Growth.Rate }
	out.Growing = stats.TopN(trends, th.CareerGrowthLimit, 0, nil, rate)
	out.Declining = stats.BottomN(trends, th.CareerGrowthLimit, 0, nil, rate)

	summary, err := s.ops.Fetch(ctx, f, storage.AggregationSpec{
		GroupBy:  []string{database.ColSOCTitle},
		Measures: employerMeasures,
		Where:    []storage.Clause{storage.NotEmpty(database.ColSOCTitle)},
		MinCount: th.CareerMinCount,
		OrderBy:  []storage.Order{storage.Desc("count"), storage.Asc(database.ColSOCTitle)},
		Limit:    th.CareerSummaryLimit,
	})
	if err != nil {
		warnings = append(warnings, failed(view, f, err)...)
	} else {
		for i := 0; i < summary.Len(); i++ {
			count := summary.Int(i, "count")
			out.Summary = append(out.Summary, CareerSummary{
				SOCTitle:      summary.String(i, database.ColSOCTitle),
				Count:         count,
				AvgWage:       summary.Float(i, "avg_wage"),
				MedianWage:    summary.Float(i, "median_wage"),
				LevelIPercent: stats.Percentage(float64(summary.Int(i, "level_i")), float64(count)),
			})
		}
	}

	return out, warnings
}

// CareerYear is one career's petitions in one year
type CareerYear struct {
	Year    int              `json:"year"`
	Career  string           `json:"career"`
	Count   int64            `json:"count"`
	AvgWage float64          `json:"avg_wage"`
	MinWage float64          `json:"min_wage"`
	MaxWage float64          `json:"max_wage"`
	Levels  map[string]int64 `json:"levels"`
}

// NamedCount is a label with a petition count
type NamedCount struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// CareerComparison sets AI/ML engineers against software developers
type CareerComparison struct {
	Years        []CareerYear `json:"years"`
	TopEmployers []NamedCount `json:"top_employers"`
	TopStates    []NamedCount `json:"top_states"`
}

// EmptyCareerComparison is the neutral comparison
func EmptyCareerComparison() CareerComparison {
	return CareerComparison{Years: []CareerYear{}, TopEmployers: []NamedCount{}, TopStates: []NamedCount{}}
}

// Empty reports whether the comparison holds no data
func (c CareerComparison) Empty() bool {
	return len(c.Years) == 0 && len(c.TopEmployers) == 0 && len(c.TopStates) == 0
}

// CareerComparison compares AI/ML engineers and software developers per
// year, ignoring the single-year selection. Unfiltered requests are served
// from the snapshot source when one is set.
func (s *Service) CareerComparison(ctx context.Context, f storage.FilterState) (CareerComparison, Warnings) {
	f = f.Normalize()
	if s.snapshots != nil && unconstrained(f) {
		return s.snapshots.CareerComparison(ctx)
	}

	out, err := s.BuildCareerComparison(ctx, f)
	if err != nil {
		return EmptyCareerComparison(), failed("career_comparison", f, err)
	}
	return out, nil
}

// unconstrained reports whether f selects the whole dataset for the
// comparison, which ignores the single-year selection
func unconstrained(f storage.FilterState) bool {
	return f.WithoutYear() == storage.AllFilters()
}

// BuildCareerComparison computes the comparison, failing on the first
// query error. Snapshot builds use it directly.
func (s *Service) BuildCareerComparison(ctx context.Context, f storage.FilterState) (CareerComparison, error) {
	const alias = "career"
	th := s.thresholds
	out := EmptyCareerComparison()

	years, err := s.ops.FetchYearly(ctx, f, storage.AggregationSpec{
		GroupBy: []string{database.ColYear},
		Derived: stats.CareerColumn(alias),
		Measures: withMeasures([]storage.Measure{
			storage.Count("count"),
			storage.Mean(database.ColPrevailingWage, "avg_wage"),
			storage.Min(database.ColPrevailingWage, "min_wage"),
			storage.Max(database.ColPrevailingWage, "max_wage"),
		}, storage.LevelCounts()...),
	})
	if err != nil {
		return EmptyCareerComparison(), fmt.Errorf("failed to load career years: %w", err)
	}
	for i := 0; i < years.Len(); i++ {
		out.Years = append(out.Years, CareerYear{
			Year:    int(years.Int(i, database.ColYear)),
			Career:  years.String(i, alias),
			Count:   years.Int(i, "count"),
			AvgWage: years.Float(i, "avg_wage"),
			MinWage: years.Float(i, "min_wage"),
			MaxWage: years.Float(i, "max_wage"),
			Levels:  levelCounts(years, i),
		})
	}

	top := func(column string) ([]NamedCount, error) {
		d := stats.CareerColumn(alias)
		d.Only = stats.CareerAIML
		t, err := s.ops.FetchYearly(ctx, f, storage.AggregationSpec{
			GroupBy:  []string{column},
			Derived:  d,
			Measures: []storage.Measure{storage.Count("count")},
			Where:    []storage.Clause{storage.NotEmpty(column)},
			OrderBy:  []storage.Order{storage.Desc("count"), storage.Asc(column)},
			Limit:    th.ComparisonLimit,
		})
		if err != nil {
			return nil, err
		}
		out := make([]NamedCount, 0, t.Len())
		for i := 0; i < t.Len(); i++ {
			out = append(out, NamedCount{Name: t.String(i, column), Count: t.Int(i, "count")})
		}
		return out, nil
	}

	if out.TopEmployers, err = top(database.ColEmployerParent); err != nil {
		return EmptyCareerComparison(), fmt.Errorf("failed to load AI/ML employers: %w", err)
	}
	if out.TopStates, err = top(database.ColEmployerState); err != nil {
		return EmptyCareerComparison(), fmt.Errorf("failed to load AI/ML states: %w", err)
	}
	return out, nil
}
