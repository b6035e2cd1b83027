package analytics_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/h1bexplorer/internal/analytics"
	"github.com/h1bexplorer/internal/database"
	"github.com/h1bexplorer/internal/storage"
	"github.com/h1bexplorer/internal/testutil"
	"github.com/h1bexplorer/internal/testutil/fixtures"
	"github.com/h1bexplorer/internal/testutil/mocks"
)

func TestWarningCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"connection", &database.ConnectionError{Op: "open", Backend: "duckdb", Target: "x", Err: errors.New("no such file")}, analytics.CodeConnectionUnavailable},
		{"closed pool", database.ErrClosed, analytics.CodeConnectionUnavailable},
		{"breaker", fmt.Errorf("fetch: %w", storage.ErrCircuitOpen), analytics.CodeCircuitOpen},
		{"engine", &storage.QueryExecutionError{Op: "fetch", Err: errors.New("Out of Memory Error")}, analytics.CodeQueryFailed},
		{"unknown", errors.New("boom"), analytics.CodeQueryFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testutil.AssertEqual(t, tt.want, analytics.WarningCode(tt.err), "code")
		})
	}
}

func TestNewWarningFallsBackToGenericMessage(t *testing.T) {
	w := analytics.NewWarning("summary", "made_up")
	testutil.AssertEqual(t, analytics.NewWarning("summary", analytics.CodeQueryFailed).Message, w.Message, "message")
}

// Every view must degrade to its neutral value with a warning when the
// database cannot be reached.
func TestViewsFailSoft(t *testing.T) {
	m := mocks.NewMockStorage()
	m.Err = &database.ConnectionError{Op: "open", Backend: "duckdb", Target: "missing.duckdb", Err: errors.New("no such file")}
	svc := analytics.New(m, nil)
	ctx := context.Background()
	f := storage.AllFilters()

	views := []struct {
		name string
		run  func() (empty bool, w analytics.Warnings)
	}{
		{"summary", func() (bool, analytics.Warnings) {
			v, w := svc.Summary(ctx, f)
			return v == analytics.Summary{}, w
		}},
		{"wage levels", func() (bool, analytics.Warnings) {
			v, w := svc.WageLevels(ctx, f)
			return v.Total == 0 && len(v.Levels) == 0 && v.Levels != nil, w
		}},
		{"states", func() (bool, analytics.Warnings) {
			v, w := svc.StateDistribution(ctx, f)
			return len(v) == 0 && v != nil, w
		}},
		{"top occupations", func() (bool, analytics.Warnings) {
			v, w := svc.TopOccupations(ctx, f)
			for _, l := range v {
				if len(l.Occupations) != 0 {
					return false, w
				}
			}
			return len(v) == len(database.WageLevels), w
		}},
		{"yearly trends", func() (bool, analytics.Warnings) {
			v, w := svc.YearlyTrends(ctx, f)
			return len(v.Years)+len(v.Salaries)+len(v.Levels) == 0, w
		}},
		{"policy impact", func() (bool, analytics.Warnings) {
			v, w := svc.PolicyImpact(ctx, f)
			return len(v.Years) == 0 && v.Overall.Total == 0 && len(v.MinimumWage) == 0, w
		}},
		{"yearly top occupations", func() (bool, analytics.Warnings) {
			v, w := svc.YearlyTopOccupations(ctx, f)
			return len(v) == 0, w
		}},
		{"top employers", func() (bool, analytics.Warnings) {
			v, w := svc.TopEmployers(ctx, f)
			return len(v.ByVolume) == 0 && len(v.BestPaying) == 0, w
		}},
		{"student employers", func() (bool, analytics.Warnings) {
			v, w := svc.StudentEmployers(ctx, f)
			return len(v) == 0, w
		}},
		{"employer types", func() (bool, analytics.Warnings) {
			v, w := svc.EmployerTypes(ctx, f)
			return len(v) == 0, w
		}},
		{"locations", func() (bool, analytics.Warnings) {
			v, w := svc.Locations(ctx, f)
			return len(v.TopStates)+len(v.TopCities) == 0, w
		}},
		{"career growth", func() (bool, analytics.Warnings) {
			v, w := svc.CareerGrowth(ctx, f)
			return len(v.Growing)+len(v.Declining)+len(v.Summary) == 0, w
		}},
		{"career comparison", func() (bool, analytics.Warnings) {
			v, w := svc.CareerComparison(ctx, f)
			return v.Empty(), w
		}},
		{"facet options", func() (bool, analytics.Warnings) {
			v, w := svc.FacetOptions(ctx, f)
			return len(v.Companies)+len(v.Cities) == 0 && v.Companies != nil, w
		}},
	}

	for _, v := range views {
		t.Run(v.name, func(t *testing.T) {
			empty, w := v.run()
			testutil.AssertTrue(t, empty, "neutral value")
			testutil.AssertTrue(t, len(w) > 0, "has warnings")
			for _, code := range w.Codes() {
				testutil.AssertEqual(t, analytics.CodeConnectionUnavailable, code, "warning code")
			}
		})
	}
}

func TestBreakerOpenSurfacesAsWarning(t *testing.T) {
	m := mocks.NewMockStorage()
	m.Err = storage.ErrCircuitOpen
	svc := analytics.New(m, nil)

	_, w := svc.Summary(context.Background(), storage.AllFilters())
	if diff := cmp.Diff([]string{analytics.CodeCircuitOpen}, w.Codes()); diff != "" {
		t.Errorf("codes mismatch (-want +got):\n%s", diff)
	}
	testutil.AssertEqual(t, "summary", w[0].View, "view")
}

func TestPartialViewKeepsSuccessfulParts(t *testing.T) {
	m := mocks.NewMockStorage()
	m.FetchFunc = func(kind string, _ storage.FilterState, spec storage.AggregationSpec) (*storage.ResultTable, error) {
		if kind == "FetchYearly" {
			return nil, &storage.QueryExecutionError{Op: "fetch_yearly", Err: errors.New("memory limit")}
		}
		return &storage.ResultTable{
			Columns: []string{database.ColWageLevel, "count", "avg_wage", "median_wage", "min_wage", "max_wage"},
			Rows:    [][]any{{"I", int64(3), 80000.0, 80000.0, 70000.0, 90000.0}},
		}, nil
	}
	svc := analytics.New(m, nil)

	got, w := svc.YearlyTrends(context.Background(), storage.AllFilters())
	testutil.AssertEqual(t, 2, len(w), "one warning per failed query")
	testutil.AssertTrue(t, w.Has(analytics.CodeQueryFailed), "query_failed")
	testutil.AssertEqual(t, 0, len(got.Years), "years dropped")
	testutil.AssertEqual(t, 1, len(got.Levels), "levels kept")
	testutil.AssertEqual(t, int64(3), got.Levels[0].Count, "level count")
}

func TestEntryLevelViewsForceEntryLevel(t *testing.T) {
	m := mocks.NewMockStorage()
	svc := analytics.New(m, nil)

	_, w := svc.StudentEmployers(context.Background(), storage.AllFilters())
	testutil.AssertEqual(t, 0, len(w), "no warnings")
	testutil.AssertTrue(t, m.LastFilters.EntryLevelOnly, "entry level forced")
	testutil.AssertEqual(t, 1, m.CallCount("Fetch"), "fetch calls")
}

func TestCareerGrowthExcludesOther(t *testing.T) {
	m := mocks.NewMockStorage()
	svc := analytics.New(m, nil)

	svc.CareerGrowth(context.Background(), storage.AllFilters())
	testutil.AssertTrue(t, m.LastFilters.ExcludeOtherSOC, "other occupations excluded")
	testutil.AssertEqual(t, 2, m.CallCount("FetchYearly"), "series queries")
}

func TestFacetOptionsFlagsStaleSelections(t *testing.T) {
	m := mocks.NewMockStorage()
	m.Values[database.ColEmployerParent] = []string{"AMAZON"}
	m.Years = []int{2021, 2022, 2024}
	m.CityList = []string{"PLANO"}
	m.SOCList = []string{"Software Developers"}
	m.JobTitleList = []string{"Consultant"}
	svc := analytics.New(m, nil)

	f := fixtures.NewFilterBuilder().WithCity("SEATTLE").WithSOC("Software Developers").WithJobTitle("Data Scientist").Build()
	got, w := svc.FacetOptions(context.Background(), f)
	testutil.AssertEqual(t, 0, len(w), "no warnings")

	if diff := cmp.Diff([]storage.Facet{storage.FacetCity, storage.FacetJobTitle}, got.Invalid); diff != "" {
		t.Errorf("invalid mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(storage.YearRange{From: 2021, To: 2024}, got.YearRange); diff != "" {
		t.Errorf("year range mismatch (-want +got):\n%s", diff)
	}
	testutil.AssertEqual(t, 0, len(got.States), "states default to empty")
	testutil.AssertTrue(t, got.States != nil, "states not nil")
}

type stubSnapshots struct {
	calls int
	out   analytics.CareerComparison
	w     analytics.Warnings
}

func (s *stubSnapshots) CareerComparison(ctx context.Context) (analytics.CareerComparison, analytics.Warnings) {
	s.calls++
	return s.out, s.w
}

func TestCareerComparisonUsesSnapshotWhenUnfiltered(t *testing.T) {
	m := mocks.NewMockStorage()
	svc := analytics.New(m, nil)
	snap := &stubSnapshots{
		out: analytics.CareerComparison{TopStates: []analytics.NamedCount{{Name: "CA", Count: 3}}},
		w:   analytics.Warnings{analytics.NewWarning("career_comparison", analytics.CodeSnapshotStale)},
	}
	svc.SetSnapshotSource(snap)
	ctx := context.Background()

	// the year selection is ignored by the comparison, so it still counts as unfiltered
	got, w := svc.CareerComparison(ctx, fixtures.NewFilterBuilder().WithYear(2024).Build())
	testutil.AssertEqual(t, 1, snap.calls, "snapshot used")
	testutil.AssertEqual(t, 0, m.CallCount("FetchYearly"), "no live query")
	testutil.AssertEqual(t, "CA", got.TopStates[0].Name, "snapshot data")
	testutil.AssertTrue(t, w.Has(analytics.CodeSnapshotStale), "snapshot warning passed through")

	_, w = svc.CareerComparison(ctx, fixtures.NewFilterBuilder().WithCompany("GOOGLE").Build())
	testutil.AssertEqual(t, 1, snap.calls, "filtered request skips snapshot")
	testutil.AssertEqual(t, 3, m.CallCount("FetchYearly"), "live queries")
	testutil.AssertEqual(t, 0, len(w), "no warnings")
}

func TestBuildCareerComparisonReturnsError(t *testing.T) {
	m := mocks.NewMockStorage()
	m.Err = storage.ErrCircuitOpen
	svc := analytics.New(m, nil)

	got, err := svc.BuildCareerComparison(context.Background(), storage.AllFilters())
	if !errors.Is(err, storage.ErrCircuitOpen) {
		t.Fatalf("expected circuit open error, got %v", err)
	}
	testutil.AssertTrue(t, got.Empty(), "empty comparison")
}
