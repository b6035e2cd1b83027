// Package stats holds the derived statistics computed over query results:
// percentages, growth rates, rankings with minimum sample sizes and the
// keyword classifications used to bucket employers and careers.
package stats

import (
	"cmp"
	"math"
	"slices"
)

// Round rounds v to places decimals, half away from zero
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// Percentage is part/total*100 rounded to one decimal. A zero total gives 0
// so charts stay renderable.
func Percentage(part, total float64) float64 {
	if total == 0 {
		return 0
	}
	return Round(part/total*100, 1)
}

// GrowthRate is the change from previous to current in percent, rounded to
// one decimal. A zero previous value gives 0.
func GrowthRate(previous, current float64) float64 {
	if previous == 0 {
		return 0
	}
	return Round((current-previous)/previous*100, 1)
}

// TopN ranks items by score, highest first, after dropping items whose
// count is below minCount. Ties keep input order. n <= 0 keeps every
// qualifying item.
func TopN[T any](items []T, n, minCount int, count func(T) int64, score func(T) float64) []T {
	return rank(items, n, minCount, count, func(a, b T) int {
		return cmp.Compare(score(b), score(a))
	})
}

// BottomN is TopN with the lowest scores first
func BottomN[T any](items []T, n, minCount int, count func(T) int64, score func(T) float64) []T {
	return rank(items, n, minCount, count, func(a, b T) int {
		return cmp.Compare(score(a), score(b))
	})
}

func rank[T any](items []T, n, minCount int, count func(T) int64, less func(a, b T) int) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if count != nil && count(it) < int64(minCount) {
			continue
		}
		out = append(out, it)
	}
	slices.SortStableFunc(out, less)
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
