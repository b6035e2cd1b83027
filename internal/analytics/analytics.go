// Package analytics assembles dashboard views from faceted storage queries.
//
// It is the fail-soft boundary of the application: a view never returns an
// error. When a query fails the view logs it, records a metric and returns
// the neutral value of its result type together with Warnings describing
// what could not be loaded. Partial views are allowed; each query of a view
// fails independently.
package analytics

import (
	"context"
	"log/slog"

	"github.com/h1bexplorer/internal/database"
	"github.com/h1bexplorer/internal/logging"
	"github.com/h1bexplorer/internal/metrics"
	"github.com/h1bexplorer/internal/storage"
)

// Warning codes
const (
	CodeConnectionUnavailable = "connection_unavailable"
	CodeQueryFailed           = "query_failed"
	CodeCircuitOpen           = "circuit_open"
	CodeSnapshotStale         = "snapshot_stale"
	CodeSnapshotUnavailable   = "snapshot_unavailable"
)

var codeMessages = map[string]string{
	CodeConnectionUnavailable: "The petitions database is unavailable. Showing empty results.",
	CodeQueryFailed:           "This data could not be loaded. Showing empty results.",
	CodeCircuitOpen:           "The database is recovering from repeated failures. Try again shortly.",
	CodeSnapshotStale:         "Showing a precomputed snapshot from an earlier version of the dataset.",
	CodeSnapshotUnavailable:   "No precomputed snapshot is available yet.",
}

// Warning is a user-visible note attached to a degraded view
type Warning struct {
	View    string `json:"view"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Warnings accumulated while building a view. A nil value means the view
// is complete.
type Warnings []Warning

// NewWarning builds a warning with the standard message for code
func NewWarning(view, code string) Warning {
	msg, ok := codeMessages[code]
	if !ok {
		msg = codeMessages[CodeQueryFailed]
	}
	return Warning{View: view, Code: code, Message: msg}
}

// Has reports whether any warning carries code
func (w Warnings) Has(code string) bool {
	for _, x := range w {
		if x.Code == code {
			return true
		}
	}
	return false
}

// Codes lists the warning codes in order
func (w Warnings) Codes() []string {
	out := make([]string, 0, len(w))
	for _, x := range w {
		out = append(out, x.Code)
	}
	return out
}

// WarningCode maps a storage error to the code shown to users
func WarningCode(err error) string {
	switch storage.ErrorType(err) {
	case "circuit_open":
		return CodeCircuitOpen
	case "connection":
		return CodeConnectionUnavailable
	}
	return CodeQueryFailed
}

// failed logs a query failure of view and turns it into a warning
func failed(view string, f storage.FilterState, err error) Warnings {
	code := WarningCode(err)
	logging.Warn("View query failed",
		logging.Query(view),
		logging.Filters(f),
		slog.String("code", code),
		logging.Err(err))
	metrics.RecordViewWarning(view, code)
	return Warnings{NewWarning(view, code)}
}

// Thresholds are the minimum sample sizes and list lengths of the views
type Thresholds struct {
	OccupationMinCount     int // petitions per SOC title and level
	OccupationsPerLevel    int
	YearlyLevelMinCount    int // petitions in a year and level before ranking its SOC titles
	YearlyOccupationsLimit int
	BestPayingMinCount     int // entry-level petitions per employer
	EmployersLimit         int
	EmployerTypeMinCount   int
	StudentMinCount        int
	StudentEmployersLimit  int
	StateMinCount          int // entry-level petitions per state for pay and summary rankings
	CitiesLimit            int
	StatesLimit            int
	CareerMinCount         int
	CareerSummaryLimit     int
	CareerGrowthLimit      int
	ComparisonLimit        int
}

// DefaultThresholds returns the sample sizes the dashboard was tuned with
func DefaultThresholds() Thresholds {
	return Thresholds{
		OccupationMinCount:     5,
		OccupationsPerLevel:    3,
		YearlyLevelMinCount:    10,
		YearlyOccupationsLimit: 5,
		BestPayingMinCount:     100,
		EmployersLimit:         20,
		EmployerTypeMinCount:   10,
		StudentMinCount:        5,
		StudentEmployersLimit:  20,
		StateMinCount:          20,
		CitiesLimit:            20,
		StatesLimit:            15,
		CareerMinCount:         10,
		CareerSummaryLimit:     20,
		CareerGrowthLimit:      10,
		ComparisonLimit:        15,
	}
}

// SnapshotSource serves a precomputed career comparison for the
// unfiltered dataset
type SnapshotSource interface {
	CareerComparison(ctx context.Context) (CareerComparison, Warnings)
}

// Service builds views over a storage backend
type Service struct {
	ops        storage.Operations
	thresholds Thresholds
	snapshots  SnapshotSource
}

// New creates a view service. A nil thresholds uses DefaultThresholds.
func New(ops storage.Operations, thresholds *Thresholds) *Service {
	th := DefaultThresholds()
	if thresholds != nil {
		th = *thresholds
	}
	return &Service{ops: ops, thresholds: th}
}

// SetSnapshotSource routes unfiltered career comparisons to src
func (s *Service) SetSnapshotSource(src SnapshotSource) {
	s.snapshots = src
}

// Thresholds returns the thresholds in use
func (s *Service) Thresholds() Thresholds {
	return s.thresholds
}

// entryLevel restricts f to wage Level I and II
func entryLevel(f storage.FilterState) storage.FilterState {
	f.EntryLevelOnly = true
	return f
}

// levelCounts reads the level_i..level_iv columns of row i
func levelCounts(t *storage.ResultTable, i int) map[string]int64 {
	out := make(map[string]int64, len(database.WageLevels))
	for _, level := range database.WageLevels {
		out[level] = t.Int(i, storage.LevelAlias(level))
	}
	return out
}

func withMeasures(base []storage.Measure, extra ...storage.Measure) []storage.Measure {
	out := make([]storage.Measure, 0, len(base)+len(extra))
	out = append(out, base...)
	return append(out, extra...)
}

func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}
