package stats

import "github.com/h1bexplorer/internal/database"

// LevelShare is one wage level's slice of a breakdown
type LevelShare struct {
	Level   string  `json:"level"`
	Count   int64   `json:"count"`
	Percent float64 `json:"percent"`
}

// WageLevelBreakdown returns Level I..IV shares in ordinal order. Levels
// with no petitions are omitted, and unknown level keys are ignored.
func WageLevelBreakdown(counts map[string]int64) []LevelShare {
	var total int64
	for _, level := range database.WageLevels {
		total += counts[level]
	}

	out := make([]LevelShare, 0, len(database.WageLevels))
	for _, level := range database.WageLevels {
		c := counts[level]
		if c == 0 {
			continue
		}
		out = append(out, LevelShare{
			Level:   level,
			Count:   c,
			Percent: Percentage(float64(c), float64(total)),
		})
	}
	return out
}

// LevelPercentages returns the percentage of every level, zero levels
// included, keyed by level.
func LevelPercentages(counts map[string]int64) map[string]float64 {
	var total int64
	for _, level := range database.WageLevels {
		total += counts[level]
	}
	out := make(map[string]float64, len(database.WageLevels))
	for _, level := range database.WageLevels {
		out[level] = Percentage(float64(counts[level]), float64(total))
	}
	return out
}

// AtRiskShare is the percentage of petitions at Level I or II, the levels
// a wage-weighted selection would disadvantage.
func AtRiskShare(counts map[string]int64) float64 {
	var total, atRisk int64
	for _, level := range database.WageLevels {
		total += counts[level]
	}
	for _, level := range database.EntryLevels {
		atRisk += counts[level]
	}
	return Percentage(float64(atRisk), float64(total))
}
