package analytics

import (
	"context"

	"github.com/h1bexplorer/internal/database"
	"github.com/h1bexplorer/internal/stats"
	"github.com/h1bexplorer/internal/storage"
)

// The employer and location views describe entry-level hiring, so they
// always restrict to wage Level I and II whatever the toggle says.

// EmployerStat is one employer's entry-level hiring
type EmployerStat struct {
	Employer      string  `json:"employer"`
	Count         int64   `json:"count"`
	AvgWage       float64 `json:"avg_wage"`
	MedianWage    float64 `json:"median_wage"`
	LevelIPercent float64 `json:"level_i_percent"`
}

// TopEmployers ranks employers by entry-level volume and by pay
type TopEmployers struct {
	ByVolume   []EmployerStat `json:"by_volume"`
	BestPaying []EmployerStat `json:"best_paying"`
}

var employerMeasures = []storage.Measure{
	storage.Count("count"),
	storage.Mean(database.ColPrevailingWage, "avg_wage"),
	storage.Median(database.ColPrevailingWage, "median_wage"),
	storage.CountLevel("I", "level_i"),
}

func employerStats(t *storage.ResultTable) []EmployerStat {
	out := make([]EmployerStat, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		count := t.Int(i, "count")
		out = append(out, EmployerStat{
			Employer:      t.String(i, database.ColEmployerParent),
			Count:         count,
			AvgWage:       t.Float(i, "avg_wage"),
			MedianWage:    t.Float(i, "median_wage"),
			LevelIPercent: stats.Percentage(float64(t.Int(i, "level_i")), float64(count)),
		})
	}
	return out
}

// TopEmployers lists the largest entry-level employers and the best paying
// ones among those with enough entry-level petitions
func (s *Service) TopEmployers(ctx context.Context, f storage.FilterState) (TopEmployers, Warnings) {
	const view = "top_employers"
	th := s.thresholds
	entry := entryLevel(f)
	out := TopEmployers{ByVolume: []EmployerStat{}, BestPaying: []EmployerStat{}}
	var warnings Warnings

	byVolume, err := s.ops.Fetch(ctx, entry, storage.AggregationSpec{
		GroupBy:  []string{database.ColEmployerParent},
		Measures: employerMeasures,
		Where:    []storage.Clause{storage.NotEmpty(database.ColEmployerParent)},
		OrderBy:  []storage.Order{storage.Desc("count"), storage.Asc(database.ColEmployerParent)},
		Limit:    th.EmployersLimit,
	})
	if err != nil {
		warnings = append(warnings, failed(view, entry, err)...)
	} else {
		out.ByVolume = employerStats(byVolume)
	}

	bestPaying, err := s.ops.Fetch(ctx, entry, storage.AggregationSpec{
		GroupBy:  []string{database.ColEmployerParent},
		Measures: employerMeasures,
		Where:    []storage.Clause{storage.NotEmpty(database.ColEmployerParent)},
		MinCount: th.BestPayingMinCount,
		OrderBy:  []storage.Order{storage.Desc("avg_wage"), storage.Asc(database.ColEmployerParent)},
		Limit:    th.EmployersLimit,
	})
	if err != nil {
		warnings = append(warnings, failed(view, entry, err)...)
	} else {
		out.BestPaying = employerStats(bestPaying)
	}

	return out, warnings
}

// StudentEmployers lists employers hiring the most entry-level workers,
// with the share of them at Level I
func (s *Service) StudentEmployers(ctx context.Context, f storage.FilterState) ([]EmployerStat, Warnings) {
	th := s.thresholds
	entry := entryLevel(f)
	t, err := s.ops.Fetch(ctx, entry, storage.AggregationSpec{
		GroupBy:  []string{database.ColEmployerParent},
		Measures: employerMeasures,
		Where:    []storage.Clause{storage.NotEmpty(database.ColEmployerParent)},
		MinCount: th.StudentMinCount,
		OrderBy:  []storage.Order{storage.Desc("count"), storage.Asc(database.ColEmployerParent)},
		Limit:    th.StudentEmployersLimit,
	})
	if err != nil {
		return []EmployerStat{}, failed("student_employers", entry, err)
	}
	return employerStats(t), nil
}

// EmployerType is one industry category of entry-level hiring
type EmployerType struct {
	Type       string  `json:"type"`
	Count      int64   `json:"count"`
	AvgWage    float64 `json:"avg_wage"`
	MedianWage float64 `json:"median_wage"`
}

// EmployerTypes groups entry-level petitions by employer industry
func (s *Service) EmployerTypes(ctx context.Context, f storage.FilterState) ([]EmployerType, Warnings) {
	const alias = "employer_type"
	entry := entryLevel(f)
	t, err := s.ops.Fetch(ctx, entry, storage.AggregationSpec{
		Derived: stats.EmployerTypeColumn(alias),
		Measures: []storage.Measure{
			storage.Count("count"),
			storage.Mean(database.ColPrevailingWage, "avg_wage"),
			storage.Median(database.ColPrevailingWage, "median_wage"),
		},
		MinCount: s.thresholds.EmployerTypeMinCount,
		OrderBy:  []storage.Order{storage.Desc("count"), storage.Asc(alias)},
	})
	if err != nil {
		return []EmployerType{}, failed("employer_types", entry, err)
	}

	out := make([]EmployerType, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		out = append(out, EmployerType{
			Type:       t.String(i, alias),
			Count:      t.Int(i, "count"),
			AvgWage:    t.Float(i, "avg_wage"),
			MedianWage: t.Float(i, "median_wage"),
		})
	}
	return out, nil
}

// LocationStat is the entry-level hiring of a state or city
type LocationStat struct {
	State         string  `json:"state"`
	City          string  `json:"city,omitempty"`
	Count         int64   `json:"count"`
	AvgWage       float64 `json:"avg_wage"`
	MedianWage    float64 `json:"median_wage"`
	LevelIPercent float64 `json:"level_i_percent"`
}

// Locations ranks states and cities by entry-level hiring
type Locations struct {
	TopStates        []LocationStat `json:"top_states"`
	BestPayingStates []LocationStat `json:"best_paying_states"`
	StateSummary     []LocationStat `json:"state_summary"`
	TopCities        []LocationStat `json:"top_cities"`
}

func locationStats(t *storage.ResultTable) []LocationStat {
	out := make([]LocationStat, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		count := t.Int(i, "count")
		out = append(out, LocationStat{
			State:         t.String(i, database.ColEmployerState),
			City:          t.String(i, database.ColEmployerCity),
			Count:         count,
			AvgWage:       t.Float(i, "avg_wage"),
			MedianWage:    t.Float(i, "median_wage"),
			LevelIPercent: stats.Percentage(float64(t.Int(i, "level_i")), float64(count)),
		})
	}
	return out
}

// Locations builds the state rankings over every state, ignoring the
// geographic selections, and the city ranking under them
func (s *Service) Locations(ctx context.Context, f storage.FilterState) (Locations, Warnings) {
	const view = "locations"
	th := s.thresholds
	entry := entryLevel(f)
	out := Locations{
		TopStates:        []LocationStat{},
		BestPayingStates: []LocationStat{},
		StateSummary:     []LocationStat{},
		TopCities:        []LocationStat{},
	}
	var warnings Warnings

	states, err := s.ops.FetchGeographic(ctx, entry, storage.AggregationSpec{
		GroupBy:  []string{database.ColEmployerState},
		Measures: employerMeasures,
		Where:    []storage.Clause{storage.NotEmpty(database.ColEmployerState)},
		OrderBy:  []storage.Order{storage.Desc("count"), storage.Asc(database.ColEmployerState)},
	})
	if err != nil {
		warnings = append(warnings, failed(view, entry, err)...)
	} else {
		all := locationStats(states)
		count := func(l LocationStat) int64 { return l.Count }
		out.TopStates = stats.TopN(all, th.StatesLimit, 0, count, func(l LocationStat) float64 { return float64(l.Count) })
		out.BestPayingStates = stats.TopN(all, th.StatesLimit, th.StateMinCount, count, func(l LocationStat) float64 { return l.AvgWage })
		out.StateSummary = stats.TopN(all, th.StatesLimit, th.StateMinCount, count, func(l LocationStat) float64 { return float64(l.Count) })
	}

	cities, err := s.ops.Fetch(ctx, entry, storage.AggregationSpec{
		GroupBy:  []string{database.ColEmployerCity, database.ColEmployerState},
		Measures: employerMeasures,
		Where:    []storage.Clause{storage.NotEmpty(database.ColEmployerCity)},
		OrderBy:  []storage.Order{storage.Desc("count"), storage.Asc(database.ColEmployerCity)},
		Limit:    th.CitiesLimit,
	})
	if err != nil {
		warnings = append(warnings, failed(view, entry, err)...)
	} else {
		out.TopCities = locationStats(cities)
	}

	return out, warnings
}
