package stats

import (
	"cmp"
	"slices"
)

// Point is one yearly observation
type Point struct {
	Year  int     `json:"year"`
	Value float64 `json:"value"`
}

// GrowthPoint is a yearly observation with its change from the previous
// observed year. The first year has no previous value and Growth 0.
type GrowthPoint struct {
	Year        int     `json:"year"`
	Value       float64 `json:"value"`
	Growth      float64 `json:"growth"`
	HasPrevious bool    `json:"has_previous"`
}

// YearOverYear sorts points by year and attaches growth rates
func YearOverYear(points []Point) []GrowthPoint {
	sorted := slices.Clone(points)
	slices.SortStableFunc(sorted, func(a, b Point) int { return cmp.Compare(a.Year, b.Year) })

	out := make([]GrowthPoint, len(sorted))
	for i, p := range sorted {
		out[i] = GrowthPoint{Year: p.Year, Value: p.Value}
		if i > 0 {
			out[i].Growth = GrowthRate(sorted[i-1].Value, p.Value)
			out[i].HasPrevious = true
		}
	}
	return out
}

// Growth compares the first and last observed years of a series
type Growth struct {
	StartYear  int     `json:"start_year"`
	EndYear    int     `json:"end_year"`
	StartValue float64 `json:"start_value"`
	EndValue   float64 `json:"end_value"`
	Rate       float64 `json:"growth_rate"`
	Total      float64 `json:"total"`
}

// CareerGrowth computes first-to-last-year growth. It reports false when the
// series spans fewer than two years or starts at zero.
func CareerGrowth(points []Point) (Growth, bool) {
	if len(points) == 0 {
		return Growth{}, false
	}
	sorted := slices.Clone(points)
	slices.SortStableFunc(sorted, func(a, b Point) int { return cmp.Compare(a.Year, b.Year) })

	first, last := sorted[0], sorted[len(sorted)-1]
	if first.Year == last.Year || first.Value <= 0 {
		return Growth{}, false
	}

	var total float64
	for _, p := range sorted {
		total += p.Value
	}
	return Growth{
		StartYear:  first.Year,
		EndYear:    last.Year,
		StartValue: first.Value,
		EndValue:   last.Value,
		Rate:       GrowthRate(first.Value, last.Value),
		Total:      total,
	}, true
}
