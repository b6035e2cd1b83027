package analytics

import (
	"context"

	"github.com/h1bexplorer/internal/database"
	"github.com/h1bexplorer/internal/stats"
	"github.com/h1bexplorer/internal/storage"
)

// YearStat summarizes one filing year
type YearStat struct {
	Year         int                `json:"year"`
	Count        int64              `json:"count"`
	AvgWage      float64            `json:"avg_wage"`
	MedianWage   float64            `json:"median_wage"`
	MinWage      float64            `json:"min_wage"`
	MaxWage      float64            `json:"max_wage"`
	Growth       float64            `json:"growth"`
	HasPrevious  bool               `json:"has_previous"`
	LevelPercent map[string]float64 `json:"level_percent"`
}

// SalaryPoint is the wage of one level in one year
type SalaryPoint struct {
	Year       int     `json:"year"`
	Level      string  `json:"level"`
	Count      int64   `json:"count"`
	AvgWage    float64 `json:"avg_wage"`
	MedianWage float64 `json:"median_wage"`
}

// LevelStat summarizes one wage level
type LevelStat struct {
	Level      string  `json:"level"`
	Count      int64   `json:"count"`
	AvgWage    float64 `json:"avg_wage"`
	MedianWage float64 `json:"median_wage"`
	MinWage    float64 `json:"min_wage"`
	MaxWage    float64 `json:"max_wage"`
}

// YearlyTrends is the year-over-year page. Years and Salaries ignore the
// single-year selection; Levels honours it.
type YearlyTrends struct {
	Years    []YearStat    `json:"years"`
	Salaries []SalaryPoint `json:"salaries"`
	Levels   []LevelStat   `json:"levels"`
}

// YearlyTrends builds yearly volume, wage and level series under f
func (s *Service) YearlyTrends(ctx context.Context, f storage.FilterState) (YearlyTrends, Warnings) {
	const view = "yearly_trends"
	out := YearlyTrends{Years: []YearStat{}, Salaries: []SalaryPoint{}, Levels: []LevelStat{}}
	var warnings Warnings

	years, err := s.ops.FetchYearly(ctx, f, storage.AggregationSpec{
		GroupBy:  []string{database.ColYear},
		Measures: withMeasures(storage.WageSummary(), storage.LevelCounts()...),
	})
	if err != nil {
		warnings = append(warnings, failed(view, f, err)...)
	} else {
		points := make([]stats.Point, 0, years.Len())
		for i := 0; i < years.Len(); i++ {
			points = append(points, stats.Point{Year: int(years.Int(i, database.ColYear)), Value: years.Float(i, "count")})
		}
		growth := stats.YearOverYear(points)
		for i := 0; i < years.Len(); i++ {
			out.Years = append(out.Years, YearStat{
				Year:         int(years.Int(i, database.ColYear)),
				Count:        years.Int(i, "count"),
				AvgWage:      years.Float(i, "avg_wage"),
				MedianWage:   years.Float(i, "median_wage"),
				MinWage:      years.Float(i, "min_wage"),
				MaxWage:      years.Float(i, "max_wage"),
				Growth:       growth[i].Growth,
				HasPrevious:  growth[i].HasPrevious,
				LevelPercent: stats.LevelPercentages(levelCounts(years, i)),
			})
		}
	}

	salaries, err := s.ops.FetchYearly(ctx, f, storage.AggregationSpec{
		GroupBy: []string{database.ColYear, database.ColWageLevel},
		Measures: []storage.Measure{
			storage.Count("count"),
			storage.Mean(database.ColPrevailingWage, "avg_wage"),
			storage.Median(database.ColPrevailingWage, "median_wage"),
		},
		Where: []storage.Clause{storage.In(database.ColWageLevel, database.WageLevels)},
	})
	if err != nil {
		warnings = append(warnings, failed(view, f, err)...)
	} else {
		for i := 0; i < salaries.Len(); i++ {
			out.Salaries = append(out.Salaries, SalaryPoint{
				Year:       int(salaries.Int(i, database.ColYear)),
				Level:      salaries.String(i, database.ColWageLevel),
				Count:      salaries.Int(i, "count"),
				AvgWage:    salaries.Float(i, "avg_wage"),
				MedianWage: salaries.Float(i, "median_wage"),
			})
		}
	}

	levels, err := s.ops.Fetch(ctx, f, storage.AggregationSpec{
		GroupBy:  []string{database.ColWageLevel},
		Measures: storage.WageSummary(),
		Where:    []storage.Clause{storage.In(database.ColWageLevel, database.WageLevels)},
	})
	if err != nil {
		warnings = append(warnings, failed(view, f, err)...)
	} else {
		for i := 0; i < levels.Len(); i++ {
			out.Levels = append(out.Levels, LevelStat{
				Level:      levels.String(i, database.ColWageLevel),
				Count:      levels.Int(i, "count"),
				AvgWage:    levels.Float(i, "avg_wage"),
				MedianWage: levels.Float(i, "median_wage"),
				MinWage:    levels.Float(i, "min_wage"),
				MaxWage:    levels.Float(i, "max_wage"),
			})
		}
	}

	return out, warnings
}

// LevelMix is a wage level distribution with its at-risk share
type LevelMix struct {
	Total   int64              `json:"total"`
	Levels  map[string]int64   `json:"levels"`
	Percent map[string]float64 `json:"percent"`
	AtRisk  float64            `json:"at_risk"`
}

func newLevelMix(counts map[string]int64) LevelMix {
	var total int64
	for _, c := range counts {
		total += c
	}
	return LevelMix{
		Total:   total,
		Levels:  counts,
		Percent: stats.LevelPercentages(counts),
		AtRisk:  stats.AtRiskShare(counts),
	}
}

// PolicyYear is the level mix of one filing year
type PolicyYear struct {
	Year int `json:"year"`
	LevelMix
}

// MinimumWagePetition is the lowest paid petition of a wage level
type MinimumWagePetition struct {
	Level      string  `json:"level"`
	Wage       float64 `json:"wage"`
	CaseNumber string  `json:"case_number"`
	Employer   string  `json:"employer"`
	JobTitle   string  `json:"job_title"`
	City       string  `json:"city"`
	State      string  `json:"state"`
}

// PolicyImpact shows how a wage-weighted selection would weigh the
// petitions. Years ignores the single-year selection; Overall and
// MinimumWage honour it.
type PolicyImpact struct {
	Years       []PolicyYear          `json:"years"`
	Overall     LevelMix              `json:"overall"`
	MinimumWage []MinimumWagePetition `json:"minimum_wage"`
}

var minimumWageColumns = []string{
	database.ColWageLevel, database.ColPrevailingWage, database.ColCaseNumber, database.ColEmployerName,
	database.ColJobTitle, database.ColEmployerCity, database.ColEmployerState,
}

// PolicyImpact builds level mixes per year and overall, plus the lowest
// paid petition of every level
func (s *Service) PolicyImpact(ctx context.Context, f storage.FilterState) (PolicyImpact, Warnings) {
	const view = "policy_impact"
	out := PolicyImpact{
		Years:       []PolicyYear{},
		Overall:     newLevelMix(map[string]int64{}),
		MinimumWage: []MinimumWagePetition{},
	}
	var warnings Warnings

	years, err := s.ops.FetchYearly(ctx, f, storage.AggregationSpec{
		GroupBy:  []string{database.ColYear},
		Measures: storage.LevelCounts(),
	})
	if err != nil {
		warnings = append(warnings, failed(view, f, err)...)
	} else {
		for i := 0; i < years.Len(); i++ {
			out.Years = append(out.Years, PolicyYear{
				Year:     int(years.Int(i, database.ColYear)),
				LevelMix: newLevelMix(levelCounts(years, i)),
			})
		}
	}

	overall, err := s.ops.Fetch(ctx, f, storage.AggregationSpec{Measures: storage.LevelCounts()})
	if err != nil {
		warnings = append(warnings, failed(view, f, err)...)
	} else if !overall.Empty() {
		out.Overall = newLevelMix(levelCounts(overall, 0))
	}

	for _, level := range database.WageLevels {
		t, err := s.ops.Fetch(ctx, f, storage.AggregationSpec{
			Columns: minimumWageColumns,
			Where:   []storage.Clause{storage.Eq(database.ColWageLevel, level)},
			OrderBy: []storage.Order{storage.Asc(database.ColPrevailingWage), storage.Asc(database.ColCaseNumber)},
			Limit:   1,
		})
		if err != nil {
			warnings = append(warnings, failed(view, f, err)...)
			// one failure usually means all four would fail
			break
		}
		if t.Empty() {
			continue
		}
		out.MinimumWage = append(out.MinimumWage, MinimumWagePetition{
			Level:      level,
			Wage:       t.Float(0, database.ColPrevailingWage),
			CaseNumber: t.String(0, database.ColCaseNumber),
			Employer:   t.String(0, database.ColEmployerName),
			JobTitle:   t.String(0, database.ColJobTitle),
			City:       t.String(0, database.ColEmployerCity),
			State:      t.String(0, database.ColEmployerState),
		})
	}

	return out, warnings
}

// YearLevelOccupations ranks the SOC titles of one year and wage level
type YearLevelOccupations struct {
	Year        int          `json:"year"`
	Level       string       `json:"level"`
	LevelTotal  int64        `json:"level_total"`
	Occupations []Occupation `json:"occupations"`
}

// YearlyTopOccupations returns the most petitioned SOC titles per year and
// wage level, for levels with enough petitions in that year. The single-year
// selection is ignored.
func (s *Service) YearlyTopOccupations(ctx context.Context, f storage.FilterState) ([]YearLevelOccupations, Warnings) {
	th := s.thresholds
	t, err := s.ops.FetchYearly(ctx, f, storage.AggregationSpec{
		GroupBy: []string{database.ColYear, database.ColWageLevel, database.ColSOCTitle},
		Measures: []storage.Measure{
			storage.Count("count"),
			storage.Mean(database.ColPrevailingWage, "avg_wage"),
		},
		Where: []storage.Clause{storage.In(database.ColWageLevel, database.WageLevels)},
	})
	if err != nil {
		return []YearLevelOccupations{}, failed("yearly_top_occupations", f, err)
	}

	type key struct {
		year  int
		level string
	}
	var order []key
	groups := map[key]*YearLevelOccupations{}
	for i := 0; i < t.Len(); i++ {
		k := key{int(t.Int(i, database.ColYear)), t.String(i, database.ColWageLevel)}
		g, ok := groups[k]
		if !ok {
			g = &YearLevelOccupations{Year: k.year, Level: k.level}
			groups[k] = g
			order = append(order, k)
		}
		count := t.Int(i, "count")
		g.LevelTotal += count
		// rows without an occupation count toward the level but are not ranked
		if soc := t.String(i, database.ColSOCTitle); soc != "" {
			g.Occupations = append(g.Occupations, Occupation{SOCTitle: soc, Count: count, AvgWage: t.Float(i, "avg_wage")})
		}
	}

	out := make([]YearLevelOccupations, 0, len(order))
	for _, k := range order {
		g := groups[k]
		if g.LevelTotal < int64(th.YearlyLevelMinCount) {
			continue
		}
		g.Occupations = stats.TopN(g.Occupations, th.YearlyOccupationsLimit, 0,
			func(o Occupation) int64 { return o.Count },
			func(o Occupation) float64 { return float64(o.Count) })
		out = append(out, *g)
	}
	return out, nil
}
