package storage_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/h1bexplorer/internal/database"
	"github.com/h1bexplorer/internal/storage"
	"github.com/h1bexplorer/internal/testutil"
	"github.com/h1bexplorer/internal/testutil/fixtures"
)

func newStandardStorage(t *testing.T) *storage.Storage {
	t.Helper()
	s, err := storage.New(fixtures.StandardPool(t, 2), nil)
	testutil.AssertNoError(t, err, "storage.New")
	return s
}

func countsBy(t *testing.T, tbl *storage.ResultTable, key string) map[string]int64 {
	t.Helper()
	out := map[string]int64{}
	for i := 0; i < tbl.Len(); i++ {
		out[tbl.String(i, key)] = tbl.Int(i, "count")
	}
	return out
}

func TestListDistinct(t *testing.T) {
	s := newStandardStorage(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		column  string
		filters storage.FilterState
		want    []string
	}{
		{"companies skip blanks and invalid rows", database.ColEmployerParent, storage.AllFilters(),
			[]string{"AMAZON", "GOOGLE", "INFOSYS"}},
		{"states", database.ColEmployerState, storage.AllFilters(), []string{"CA", "TX", "WA"}},
		{"states of one company", database.ColEmployerState,
			fixtures.NewFilterBuilder().WithCompany("GOOGLE").Build(), []string{"CA"}},
		{"years as text", database.ColYear, storage.AllFilters(), []string{"2023", "2024"}},
		{"no match", database.ColEmployerCity,
			fixtures.NewFilterBuilder().WithCompany("NOBODY").Build(), []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListDistinct(ctx, tt.column, tt.filters)
			testutil.AssertNoError(t, err, "ListDistinct")
			if got == nil {
				got = []string{}
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}

	_, err := s.ListDistinct(ctx, "1; DROP TABLE x", storage.AllFilters())
	if !errors.Is(err, storage.ErrUnknownColumn) {
		t.Errorf("expected ErrUnknownColumn, got %v", err)
	}
}

func TestListYears(t *testing.T) {
	s := newStandardStorage(t)
	years, err := s.ListYears(context.Background(), storage.FilterState{})
	testutil.AssertNoError(t, err, "ListYears")
	if diff := cmp.Diff([]int{2023, 2024}, years); diff != "" {
		t.Errorf("years mismatch (-want +got):\n%s", diff)
	}
}

func TestCascadingFacets(t *testing.T) {
	s := newStandardStorage(t)
	ctx := context.Background()

	cities, err := s.Cities(ctx, fixtures.NewFilterBuilder().WithState("CA").WithCity("SEATTLE").Build())
	testutil.AssertNoError(t, err, "Cities")
	// the current city selection does not narrow its own options
	if diff := cmp.Diff([]string{"MOUNTAIN VIEW", "SUNNYVALE"}, cities); diff != "" {
		t.Errorf("cities mismatch (-want +got):\n%s", diff)
	}

	cities, err = s.Cities(ctx, fixtures.NewFilterBuilder().WithState("TX").Build())
	testutil.AssertNoError(t, err, "Cities")
	if diff := cmp.Diff([]string{"DALLAS", "PLANO"}, cities); diff != "" {
		t.Errorf("TX cities mismatch (-want +got):\n%s", diff)
	}

	titles, err := s.JobTitles(ctx, fixtures.NewFilterBuilder().WithCompany("INFOSYS").Build())
	testutil.AssertNoError(t, err, "JobTitles")
	if diff := cmp.Diff([]string{"Consultant", "Technology Analyst"}, titles); diff != "" {
		t.Errorf("titles mismatch (-want +got):\n%s", diff)
	}

	socs, err := s.SOCTitles(ctx, fixtures.NewFilterBuilder().WithCompany("AMAZON").WithJobTitle("Consultant").Build())
	testutil.AssertNoError(t, err, "SOCTitles")
	if diff := cmp.Diff([]string{"Data Scientists", "Software Developers"}, socs); diff != "" {
		t.Errorf("soc mismatch (-want +got):\n%s", diff)
	}
}

func TestFetchSummary(t *testing.T) {
	s := newStandardStorage(t)
	tbl, err := s.Fetch(context.Background(), storage.AllFilters(), storage.AggregationSpec{Measures: storage.WageSummary()})
	testutil.AssertNoError(t, err, "Fetch")

	testutil.AssertEqual(t, 1, tbl.Len(), "rows")
	testutil.AssertEqual(t, int64(fixtures.StandardTotal), tbl.Int(0, "count"), "count")
	testutil.AssertFloat(t, fixtures.StandardAvgWage, tbl.Float(0, "avg_wage"), 0.01, "avg_wage")
	testutil.AssertFloat(t, fixtures.StandardMinWage, tbl.Float(0, "min_wage"), 0.01, "min_wage")
	testutil.AssertFloat(t, fixtures.StandardMaxWage, tbl.Float(0, "max_wage"), 0.01, "max_wage")
}

func TestFetchGrouped(t *testing.T) {
	s := newStandardStorage(t)
	ctx := context.Background()
	byState := storage.AggregationSpec{
		GroupBy:  []string{database.ColEmployerState},
		Measures: []storage.Measure{storage.Count("count")},
	}

	tbl, err := s.Fetch(ctx, storage.AllFilters(), byState)
	testutil.AssertNoError(t, err, "Fetch")
	want := map[string]int64{"WA": fixtures.StandardStateWA, "CA": fixtures.StandardStateCA, "TX": fixtures.StandardStateTX}
	if diff := cmp.Diff(want, countsBy(t, tbl, database.ColEmployerState)); diff != "" {
		t.Errorf("state counts mismatch (-want +got):\n%s", diff)
	}

	// group order defaults to ascending keys
	if diff := cmp.Diff([]string{"CA", "TX", "WA"}, tbl.Strings(database.ColEmployerState)); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}

	empty, err := s.Fetch(ctx, fixtures.NewFilterBuilder().WithCompany("NOBODY").Build(), byState)
	testutil.AssertNoError(t, err, "Fetch unknown company")
	testutil.AssertTrue(t, empty.Empty(), "unknown company yields an empty table")
	if diff := cmp.Diff([]string{database.ColEmployerState, "count"}, empty.Columns); diff != "" {
		t.Errorf("empty table keeps its columns (-want +got):\n%s", diff)
	}
}

func TestFetchGeographicIgnoresLocation(t *testing.T) {
	s := newStandardStorage(t)
	spec := storage.AggregationSpec{
		GroupBy:  []string{database.ColEmployerState},
		Measures: []storage.Measure{storage.Count("count")},
	}
	f := fixtures.NewFilterBuilder().WithCompany("AMAZON").WithState("TX").WithCity("PLANO").Build()

	tbl, err := s.FetchGeographic(context.Background(), f, spec)
	testutil.AssertNoError(t, err, "FetchGeographic")
	if diff := cmp.Diff(map[string]int64{"WA": 9, "CA": 2}, countsBy(t, tbl, database.ColEmployerState)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestFetchYearlyIgnoresYear(t *testing.T) {
	s := newStandardStorage(t)
	spec := storage.AggregationSpec{
		GroupBy:  []string{database.ColYear},
		Measures: []storage.Measure{storage.Count("count"), storage.Mean(database.ColPrevailingWage, "avg_wage")},
	}
	f := fixtures.NewFilterBuilder().WithCompany("AMAZON").WithYear(2023).Build()

	tbl, err := s.FetchYearly(context.Background(), f, spec)
	testutil.AssertNoError(t, err, "FetchYearly")
	testutil.AssertEqual(t, 2, tbl.Len(), "years")
	testutil.AssertEqual(t, int64(2024), tbl.Int(1, database.ColYear), "second year")
	testutil.AssertEqual(t, int64(5), tbl.Int(1, "count"), "2024 count")
	testutil.AssertFloat(t, 139000, tbl.Float(1, "avg_wage"), 0.01, "2024 avg")
}

func TestFetchCountMatchesEnumeration(t *testing.T) {
	s := newStandardStorage(t)
	ctx := context.Background()
	f := fixtures.NewFilterBuilder().WithState("TX").EntryLevel().Build()

	agg, err := s.Fetch(ctx, f, storage.AggregationSpec{Measures: []storage.Measure{storage.Count("count")}})
	testutil.AssertNoError(t, err, "Fetch count")

	raw, err := s.Fetch(ctx, f, storage.AggregationSpec{Columns: []string{database.ColCaseNumber}})
	testutil.AssertNoError(t, err, "Fetch rows")

	testutil.AssertEqual(t, agg.Int(0, "count"), int64(raw.Len()), "count equals enumerated rows")
	testutil.AssertEqual(t, int64(fixtures.StandardStateTX), agg.Int(0, "count"), "TX entry level")
}

func TestFetchIsIdempotent(t *testing.T) {
	s := newStandardStorage(t)
	ctx := context.Background()
	spec := storage.AggregationSpec{
		GroupBy:  []string{database.ColEmployerParent},
		Measures: append([]storage.Measure{storage.Count("count")}, storage.LevelCounts()...),
	}

	first, err := s.Fetch(ctx, storage.AllFilters(), spec)
	testutil.AssertNoError(t, err, "first fetch")
	second, err := s.Fetch(ctx, storage.AllFilters(), spec)
	testutil.AssertNoError(t, err, "second fetch")
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("repeated fetch differs (-first +second):\n%s", diff)
	}
}

func TestFingerprint(t *testing.T) {
	s := newStandardStorage(t)
	fp, err := s.Fingerprint(context.Background())
	testutil.AssertNoError(t, err, "Fingerprint")

	want := storage.Fingerprint{Rows: fixtures.StandardTotal, MinYear: 2023, MaxYear: 2024, WageSum: fixtures.StandardTotal * fixtures.StandardAvgWage}
	if diff := cmp.Diff(want, fp); diff != "" {
		t.Errorf("fingerprint mismatch (-want +got):\n%s", diff)
	}
	testutil.AssertEqual(t, "26:2023-2024:3081000", fp.String(), "version string")
}

func TestSubstringMatchIsLiteral(t *testing.T) {
	job := func(title string) *fixtures.PetitionBuilder {
		return fixtures.NewPetitionBuilder().Employer("ACME").Year(2024).Location("NY", "NEW YORK").
			Job(title, title, "Software Developers").Wage("II", 100000)
	}
	var rows []fixtures.Petition
	rows = append(rows, job("Engineer 50% Remote").Times(2)...)
	rows = append(rows, job("Engineer 5000 Remote").Times(3)...)
	rows = append(rows, job("Engineer_Remote").Times(1)...)
	rows = append(rows, job("Engineer Remote").Times(4)...)

	s, err := storage.New(fixtures.NewPool(t, rows, 1), nil)
	testutil.AssertNoError(t, err, "storage.New")

	tests := []struct {
		substr string
		want   int64
	}{
		{"50%", 2},
		{"r_r", 1},
		{"remote", 10},
	}
	for _, tt := range tests {
		t.Run(tt.substr, func(t *testing.T) {
			tbl, err := s.Fetch(context.Background(), storage.AllFilters(), storage.AggregationSpec{
				Derived: &storage.Derived{
					Alias: "matched",
					Buckets: []storage.Bucket{
						{Label: "hit", When: [][]storage.Clause{{storage.ContainsCI(database.ColJobTitle, tt.substr)}}},
					},
					DropElse: true,
				},
				Measures: []storage.Measure{storage.Count("count")},
			})
			testutil.AssertNoError(t, err, "Fetch")
			testutil.AssertEqual(t, tt.want, countsBy(t, tbl, "matched")["hit"], "matching petitions")
		})
	}
}

func TestBreakerOpensOnConnectionFailures(t *testing.T) {
	missing := testutil.MissingPath(t, "petitions.duckdb")
	pool, err := database.NewPool(1, func(int) (database.DatabaseInterface, error) {
		return database.New(database.DefaultConfig(missing))
	})
	testutil.AssertNoError(t, err, "NewPool")
	t.Cleanup(func() { pool.Close() })

	s, err := storage.New(pool, &storage.Config{BreakerMaxFailures: 2, BreakerOpenTimeout: time.Minute})
	testutil.AssertNoError(t, err, "storage.New")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := s.ListYears(ctx, storage.AllFilters())
		if !database.IsConnectionError(err) {
			t.Fatalf("attempt %d: expected connection error, got %v", i, err)
		}
		testutil.AssertEqual(t, "connection", storage.ErrorType(err), "error type")
	}

	_, err = s.ListYears(ctx, storage.AllFilters())
	if !errors.Is(err, storage.ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	testutil.AssertEqual(t, "open", s.BreakerState(), "breaker state")
	testutil.AssertEqual(t, "circuit_open", storage.ErrorType(err), "error type")
}

func TestBusyPoolDoesNotTripBreaker(t *testing.T) {
	pool := fixtures.NewPool(t, fixtures.StandardPetitions(), 1)
	s, err := storage.New(pool, &storage.Config{BreakerMaxFailures: 2, BreakerOpenTimeout: time.Minute})
	testutil.AssertNoError(t, err, "storage.New")

	w, err := pool.Acquire(context.Background())
	testutil.AssertNoError(t, err, "Acquire")

	for i := 0; i < 5; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		_, err := s.ListYears(ctx, storage.AllFilters())
		cancel()
		if !errors.Is(err, database.ErrPoolBusy) {
			t.Fatalf("attempt %d: expected ErrPoolBusy, got %v", i, err)
		}
		testutil.AssertEqual(t, "timeout", storage.ErrorType(err), "error type")
	}
	testutil.AssertEqual(t, "closed", s.BreakerState(), "breaker state")

	pool.Release(w)
	years, err := s.ListYears(context.Background(), storage.AllFilters())
	testutil.AssertNoError(t, err, "ListYears after release")
	testutil.AssertEqual(t, 2, len(years), "years")
}

func TestInvalidSpecDoesNotTripBreaker(t *testing.T) {
	s := newStandardStorage(t)
	ctx := context.Background()
	bad := storage.AggregationSpec{GroupBy: []string{"nope"}}

	for i := 0; i < 10; i++ {
		if _, err := s.Fetch(ctx, storage.AllFilters(), bad); !errors.Is(err, storage.ErrUnknownColumn) {
			t.Fatalf("expected ErrUnknownColumn, got %v", err)
		}
	}
	testutil.AssertEqual(t, "closed", s.BreakerState(), "breaker state")
}
