package analytics

import (
	"context"

	"github.com/h1bexplorer/internal/database"
	"github.com/h1bexplorer/internal/stats"
	"github.com/h1bexplorer/internal/storage"
)

// Summary is the headline metric row of the main page
type Summary struct {
	Total      int64   `json:"total"`
	AvgWage    float64 `json:"avg_wage"`
	MedianWage float64 `json:"median_wage"`
	MinWage    float64 `json:"min_wage"`
	MaxWage    float64 `json:"max_wage"`
	P25Wage    float64 `json:"p25_wage"`
	P75Wage    float64 `json:"p75_wage"`
	Employers  int64   `json:"employers"` // distinct parent employers, blanks excluded
}

// Summary counts petitions and summarizes prevailing wages under f
func (s *Service) Summary(ctx context.Context, f storage.FilterState) (Summary, Warnings) {
	t, err := s.ops.Fetch(ctx, f, storage.AggregationSpec{Measures: withMeasures(storage.WageSummary(),
		storage.Percentile(database.ColPrevailingWage, 0.25, "p25_wage"),
		storage.Percentile(database.ColPrevailingWage, 0.75, "p75_wage"),
		storage.CountDistinct(database.ColEmployerParent, "employers"),
	)})
	if err != nil {
		return Summary{}, failed("summary", f, err)
	}
	if t.Empty() {
		return Summary{}, nil
	}
	return Summary{
		Total:      t.Int(0, "count"),
		AvgWage:    t.Float(0, "avg_wage"),
		MedianWage: t.Float(0, "median_wage"),
		MinWage:    t.Float(0, "min_wage"),
		MaxWage:    t.Float(0, "max_wage"),
		P25Wage:    t.Float(0, "p25_wage"),
		P75Wage:    t.Float(0, "p75_wage"),
		Employers:  t.Int(0, "employers"),
	}, nil
}

// WageLevelBreakdown is the share of each wage level
type WageLevelBreakdown struct {
	Total  int64              `json:"total"`
	Levels []stats.LevelShare `json:"levels"`
}

// WageLevels breaks petitions under f down by wage level
func (s *Service) WageLevels(ctx context.Context, f storage.FilterState) (WageLevelBreakdown, Warnings) {
	empty := WageLevelBreakdown{Levels: []stats.LevelShare{}}

	t, err := s.ops.Fetch(ctx, f, storage.AggregationSpec{Measures: storage.LevelCounts()})
	if err != nil {
		return empty, failed("wage_levels", f, err)
	}
	if t.Empty() {
		return empty, nil
	}

	counts := levelCounts(t, 0)
	out := WageLevelBreakdown{Levels: stats.WageLevelBreakdown(counts)}
	for _, c := range counts {
		out.Total += c
	}
	return out, nil
}

// StateStat is one state of the distribution map
type StateStat struct {
	State   string           `json:"state"`
	Count   int64            `json:"count"`
	Percent float64          `json:"percent"`
	AvgWage float64          `json:"avg_wage"`
	Levels  map[string]int64 `json:"levels"`
}

// StateDistribution counts petitions per state. The state and city
// selections are ignored so the map always shows every state.
func (s *Service) StateDistribution(ctx context.Context, f storage.FilterState) ([]StateStat, Warnings) {
	t, err := s.ops.FetchGeographic(ctx, f, storage.AggregationSpec{
		GroupBy: []string{database.ColEmployerState},
		Measures: withMeasures([]storage.Measure{
			storage.Count("count"),
			storage.Mean(database.ColPrevailingWage, "avg_wage"),
		}, storage.LevelCounts()...),
		Where:   []storage.Clause{storage.NotEmpty(database.ColEmployerState)},
		OrderBy: []storage.Order{storage.Desc("count"), storage.Asc(database.ColEmployerState)},
	})
	if err != nil {
		return []StateStat{}, failed("state_distribution", f, err)
	}

	var total int64
	for _, c := range t.Ints("count") {
		total += c
	}

	out := make([]StateStat, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		count := t.Int(i, "count")
		out = append(out, StateStat{
			State:   t.String(i, database.ColEmployerState),
			Count:   count,
			Percent: stats.Percentage(float64(count), float64(total)),
			AvgWage: t.Float(i, "avg_wage"),
			Levels:  levelCounts(t, i),
		})
	}
	return out, nil
}

// Occupation is one SOC title with its petition count and wages
type Occupation struct {
	SOCTitle   string  `json:"soc_title"`
	Count      int64   `json:"count"`
	AvgWage    float64 `json:"avg_wage"`
	MedianWage float64 `json:"median_wage,omitempty"`
}

// LevelOccupations lists the occupations ranked within one wage level
type LevelOccupations struct {
	Level       string       `json:"level"`
	Occupations []Occupation `json:"occupations"`
}

// TopOccupations returns, for every wage level, the best paid SOC titles
// among those with enough petitions. Levels without any qualifying title
// carry an empty list.
func (s *Service) TopOccupations(ctx context.Context, f storage.FilterState) ([]LevelOccupations, Warnings) {
	th := s.thresholds
	out := make([]LevelOccupations, 0, len(database.WageLevels))
	for _, level := range database.WageLevels {
		out = append(out, LevelOccupations{Level: level, Occupations: []Occupation{}})
	}

	t, err := s.ops.Fetch(ctx, f, storage.AggregationSpec{
		GroupBy: []string{database.ColWageLevel, database.ColSOCTitle},
		Measures: []storage.Measure{
			storage.Count("count"),
			storage.Mean(database.ColPrevailingWage, "avg_wage"),
			storage.Median(database.ColPrevailingWage, "median_wage"),
		},
		Where:    []storage.Clause{storage.NotEmpty(database.ColSOCTitle), storage.In(database.ColWageLevel, database.WageLevels)},
		MinCount: th.OccupationMinCount,
	})
	if err != nil {
		return out, failed("top_occupations", f, err)
	}

	byLevel := map[string][]Occupation{}
	for i := 0; i < t.Len(); i++ {
		level := t.String(i, database.ColWageLevel)
		byLevel[level] = append(byLevel[level], Occupation{
			SOCTitle:   t.String(i, database.ColSOCTitle),
			Count:      t.Int(i, "count"),
			AvgWage:    t.Float(i, "avg_wage"),
			MedianWage: t.Float(i, "median_wage"),
		})
	}
	for i := range out {
		ranked := stats.TopN(byLevel[out[i].Level], th.OccupationsPerLevel, th.OccupationMinCount,
			func(o Occupation) int64 { return o.Count },
			func(o Occupation) float64 { return o.AvgWage })
		out[i].Occupations = ranked
	}
	return out, nil
}
