package analytics_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/h1bexplorer/internal/analytics"
	"github.com/h1bexplorer/internal/stats"
	"github.com/h1bexplorer/internal/storage"
	"github.com/h1bexplorer/internal/testutil"
	"github.com/h1bexplorer/internal/testutil/fixtures"
)

// smallThresholds scales the sample sizes down to the standard fixture
func smallThresholds() *analytics.Thresholds {
	th := analytics.DefaultThresholds()
	th.OccupationMinCount = 2
	th.YearlyLevelMinCount = 3
	th.BestPayingMinCount = 3
	th.EmployerTypeMinCount = 1
	th.StudentMinCount = 5
	th.StateMinCount = 5
	th.CareerMinCount = 3
	return &th
}

func newStandardService(t *testing.T) *analytics.Service {
	t.Helper()
	s, err := storage.New(fixtures.StandardPool(t, 2), nil)
	testutil.AssertNoError(t, err, "storage.New")
	return analytics.New(s, smallThresholds())
}

func assertComplete(t *testing.T, w analytics.Warnings) {
	t.Helper()
	if len(w) != 0 {
		t.Fatalf("unexpected warnings: %+v", w)
	}
}

func TestSummary(t *testing.T) {
	svc := newStandardService(t)

	got, w := svc.Summary(context.Background(), storage.AllFilters())
	assertComplete(t, w)

	testutil.AssertEqual(t, int64(fixtures.StandardTotal), got.Total, "total")
	testutil.AssertFloat(t, fixtures.StandardAvgWage, got.AvgWage, 0.01, "avg wage")
	testutil.AssertFloat(t, 120000, got.MedianWage, 0.01, "median wage")
	testutil.AssertFloat(t, fixtures.StandardMinWage, got.MinWage, 0.01, "min wage")
	testutil.AssertFloat(t, fixtures.StandardMaxWage, got.MaxWage, 0.01, "max wage")
	testutil.AssertFloat(t, 82000, got.P25Wage, 0.01, "25th percentile wage")
	testutil.AssertFloat(t, 145000, got.P75Wage, 0.01, "75th percentile wage")
	// the blank employer row is not an employer
	testutil.AssertEqual(t, int64(3), got.Employers, "employers")
}

func TestSummaryNoMatchIsZero(t *testing.T) {
	svc := newStandardService(t)

	got, w := svc.Summary(context.Background(), fixtures.NewFilterBuilder().WithCompany("NOBODY").Build())
	assertComplete(t, w)
	if diff := cmp.Diff(analytics.Summary{}, got); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
}

func TestWageLevels(t *testing.T) {
	svc := newStandardService(t)

	got, w := svc.WageLevels(context.Background(), storage.AllFilters())
	assertComplete(t, w)

	want := analytics.WageLevelBreakdown{
		Total: fixtures.StandardTotal,
		Levels: []stats.LevelShare{
			{Level: "I", Count: fixtures.StandardLevelI, Percent: 34.6},
			{Level: "II", Count: fixtures.StandardLevelII, Percent: 38.5},
			{Level: "III", Count: fixtures.StandardLevelIII, Percent: 23.1},
			{Level: "IV", Count: fixtures.StandardLevelIV, Percent: 3.8},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("breakdown mismatch (-want +got):\n%s", diff)
	}
}

func TestStateDistributionIgnoresGeography(t *testing.T) {
	svc := newStandardService(t)

	got, w := svc.StateDistribution(context.Background(), fixtures.NewFilterBuilder().WithState("TX").WithCity("PLANO").Build())
	assertComplete(t, w)

	if len(got) != 3 {
		t.Fatalf("expected 3 states, got %+v", got)
	}
	testutil.AssertEqual(t, "TX", got[0].State, "largest state")
	testutil.AssertEqual(t, int64(fixtures.StandardStateTX), got[0].Count, "TX count")
	testutil.AssertFloat(t, 38.5, got[0].Percent, 0.001, "TX percent")
	testutil.AssertEqual(t, int64(9), got[0].Levels["I"], "TX level I")
	testutil.AssertEqual(t, "WA", got[1].State, "second state")
	testutil.AssertEqual(t, "CA", got[2].State, "third state")
}

func TestTopOccupations(t *testing.T) {
	svc := newStandardService(t)

	got, w := svc.TopOccupations(context.Background(), storage.AllFilters())
	assertComplete(t, w)

	if len(got) != 4 {
		t.Fatalf("expected one entry per level, got %d", len(got))
	}
	// the single "Other Computer Occupations" petition is below the minimum
	if diff := cmp.Diff([]analytics.Occupation{
		{SOCTitle: "Computer Systems Analysts", Count: 8, AvgWage: 80750, MedianWage: 80000},
	}, got[0].Occupations); diff != "" {
		t.Errorf("level I mismatch (-want +got):\n%s", diff)
	}
	testutil.AssertEqual(t, "Software Developers", got[1].Occupations[0].SOCTitle, "level II top")
	testutil.AssertFloat(t, 120500, got[1].Occupations[0].AvgWage, 0.01, "level II avg")
	testutil.AssertEqual(t, 2, len(got[2].Occupations), "level III occupations")
	testutil.AssertEqual(t, "IV", got[3].Level, "last level")
	testutil.AssertEqual(t, 0, len(got[3].Occupations), "level IV occupations")
}

func TestYearlyTrends(t *testing.T) {
	svc := newStandardService(t)
	f := fixtures.NewFilterBuilder().WithCompany("AMAZON").WithYear(2023).Build()

	got, w := svc.YearlyTrends(context.Background(), f)
	assertComplete(t, w)

	if len(got.Years) != 2 {
		t.Fatalf("year selection must be ignored, got %+v", got.Years)
	}
	first, second := got.Years[0], got.Years[1]
	testutil.AssertEqual(t, int64(6), first.Count, "2023 count")
	testutil.AssertFalse(t, first.HasPrevious, "first year has no previous")
	testutil.AssertFloat(t, 66.7, first.LevelPercent["II"], 0.001, "2023 level II share")
	testutil.AssertEqual(t, int64(5), second.Count, "2024 count")
	testutil.AssertFloat(t, 139000, second.AvgWage, 0.01, "2024 avg")
	testutil.AssertFloat(t, -16.7, second.Growth, 0.001, "2024 growth")

	if len(got.Salaries) != 4 {
		t.Errorf("expected 4 year/level points, got %+v", got.Salaries)
	}

	// per-level statistics honour the year selection
	want := []analytics.LevelStat{
		{Level: "II", Count: 4, AvgWage: 120000, MedianWage: 120000, MinWage: 120000, MaxWage: 120000},
		{Level: "III", Count: 2, AvgWage: 150000, MedianWage: 150000, MinWage: 150000, MaxWage: 150000},
	}
	if diff := cmp.Diff(want, got.Levels); diff != "" {
		t.Errorf("levels mismatch (-want +got):\n%s", diff)
	}
}

func TestPolicyImpact(t *testing.T) {
	svc := newStandardService(t)

	got, w := svc.PolicyImpact(context.Background(), fixtures.NewFilterBuilder().WithYear(2024).Build())
	assertComplete(t, w)

	if len(got.Years) != 2 {
		t.Fatalf("year series must ignore the year selection, got %+v", got.Years)
	}
	testutil.AssertEqual(t, int64(13), got.Years[0].Total, "2023 total")
	testutil.AssertFloat(t, 69.2, got.Years[0].AtRisk, 0.001, "2023 at risk")

	testutil.AssertEqual(t, int64(13), got.Overall.Total, "2024 total")
	if diff := cmp.Diff(map[string]int64{"I": 4, "II": 6, "III": 2, "IV": 1}, got.Overall.Levels); diff != "" {
		t.Errorf("overall levels mismatch (-want +got):\n%s", diff)
	}
	testutil.AssertFloat(t, 76.9, got.Overall.AtRisk, 0.001, "2024 at risk")

	if len(got.MinimumWage) != 4 {
		t.Fatalf("expected a minimum wage petition per level, got %+v", got.MinimumWage)
	}
	lowest := got.MinimumWage[0]
	testutil.AssertEqual(t, "I", lowest.Level, "level")
	testutil.AssertFloat(t, 70000, lowest.Wage, 0.01, "wage")
	testutil.AssertEqual(t, "INFOSYS LLC", lowest.Employer, "employer")
	testutil.AssertEqual(t, "Consultant", lowest.JobTitle, "job title")
	testutil.AssertEqual(t, "PLANO", lowest.City, "city")
	testutil.AssertTrue(t, lowest.CaseNumber != "", "case number set")
}

func TestYearlyTopOccupations(t *testing.T) {
	svc := newStandardService(t)

	got, w := svc.YearlyTopOccupations(context.Background(), fixtures.NewFilterBuilder().WithYear(2023).Build())
	assertComplete(t, w)

	type cell struct {
		Year  int
		Level string
		Total int64
		Top   string
	}
	var cells []cell
	for _, g := range got {
		cells = append(cells, cell{g.Year, g.Level, g.LevelTotal, g.Occupations[0].SOCTitle})
	}
	want := []cell{
		{2023, "I", 5, "Computer Systems Analysts"},
		{2023, "II", 4, "Software Developers"},
		{2023, "III", 4, "Software Developers"},
		{2024, "I", 4, "Computer Systems Analysts"},
		{2024, "II", 6, "Software Developers"},
	}
	if diff := cmp.Diff(want, cells); diff != "" {
		t.Errorf("groups mismatch (-want +got):\n%s", diff)
	}
	testutil.AssertEqual(t, 2, len(got[3].Occupations), "2024 level I ranks both occupations")
}

func TestTopEmployers(t *testing.T) {
	svc := newStandardService(t)

	got, w := svc.TopEmployers(context.Background(), storage.AllFilters())
	assertComplete(t, w)

	var names []string
	for _, e := range got.ByVolume {
		names = append(names, e.Employer)
	}
	if diff := cmp.Diff([]string{"INFOSYS", "AMAZON", "GOOGLE"}, names); diff != "" {
		t.Errorf("by volume mismatch (-want +got):\n%s", diff)
	}
	testutil.AssertEqual(t, int64(9), got.ByVolume[0].Count, "INFOSYS entry level")
	testutil.AssertFloat(t, 100, got.ByVolume[0].LevelIPercent, 0.001, "INFOSYS level I share")

	if len(got.BestPaying) != 2 {
		t.Fatalf("expected 2 employers above the minimum, got %+v", got.BestPaying)
	}
	testutil.AssertEqual(t, "AMAZON", got.BestPaying[0].Employer, "best paying")
	testutil.AssertFloat(t, 855000.0/7, got.BestPaying[0].AvgWage, 0.01, "AMAZON entry avg")
}

func TestStudentEmployers(t *testing.T) {
	svc := newStandardService(t)

	got, w := svc.StudentEmployers(context.Background(), storage.AllFilters())
	assertComplete(t, w)

	if len(got) != 2 {
		t.Fatalf("expected 2 employers, got %+v", got)
	}
	testutil.AssertEqual(t, "INFOSYS", got[0].Employer, "first")
	testutil.AssertEqual(t, "AMAZON", got[1].Employer, "second")
	testutil.AssertFloat(t, 0, got[1].LevelIPercent, 0.001, "AMAZON level I share")
}

func TestEmployerTypes(t *testing.T) {
	svc := newStandardService(t)

	got, w := svc.EmployerTypes(context.Background(), storage.AllFilters())
	assertComplete(t, w)

	counts := map[string]int64{}
	for _, e := range got {
		counts[e.Type] = e.Count
	}
	want := map[string]int64{"Big Tech": 9, "IT Services": 9, stats.OtherIndustries: 1}
	if diff := cmp.Diff(want, counts); diff != "" {
		t.Errorf("types mismatch (-want +got):\n%s", diff)
	}
	testutil.AssertEqual(t, stats.OtherIndustries, got[len(got)-1].Type, "smallest last")
}

func TestLocations(t *testing.T) {
	svc := newStandardService(t)

	got, w := svc.Locations(context.Background(), fixtures.NewFilterBuilder().WithState("TX").Build())
	assertComplete(t, w)

	states := func(ls []analytics.LocationStat) []string {
		var out []string
		for _, l := range ls {
			out = append(out, l.State)
		}
		return out
	}
	if diff := cmp.Diff([]string{"TX", "WA", "CA"}, states(got.TopStates)); diff != "" {
		t.Errorf("top states mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"WA", "TX"}, states(got.BestPayingStates)); diff != "" {
		t.Errorf("best paying mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"TX", "WA"}, states(got.StateSummary)); diff != "" {
		t.Errorf("state summary mismatch (-want +got):\n%s", diff)
	}

	var cities []string
	for _, c := range got.TopCities {
		cities = append(cities, c.City)
	}
	if diff := cmp.Diff([]string{"PLANO", "DALLAS"}, cities); diff != "" {
		t.Errorf("cities must honour the state selection (-want +got):\n%s", diff)
	}
}

func TestCareerGrowth(t *testing.T) {
	svc := newStandardService(t)

	got, w := svc.CareerGrowth(context.Background(), storage.AllFilters())
	assertComplete(t, w)

	rates := map[string]float64{}
	var growing []string
	for _, g := range got.Growing {
		rates[g.Career] = g.Growth.Rate
		growing = append(growing, g.Career)
	}
	want := []string{stats.CareerAIDevelopers, "Software Developers", "Computer Systems Analysts"}
	if diff := cmp.Diff(want, growing); diff != "" {
		t.Errorf("growing mismatch (-want +got):\n%s", diff)
	}
	testutil.AssertFloat(t, 50, rates[stats.CareerAIDevelopers], 0.001, "AI developers growth")
	testutil.AssertFloat(t, -12.5, rates["Software Developers"], 0.001, "software growth")
	testutil.AssertFloat(t, -40, rates["Computer Systems Analysts"], 0.001, "analyst growth")
	testutil.AssertEqual(t, "Computer Systems Analysts", got.Declining[0].Career, "steepest decline")

	var summary []string
	for _, c := range got.Summary {
		summary = append(summary, c.SOCTitle)
	}
	if diff := cmp.Diff([]string{"Software Developers", "Computer Systems Analysts"}, summary); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
}

func TestCareerComparison(t *testing.T) {
	svc := newStandardService(t)

	got, w := svc.CareerComparison(context.Background(), fixtures.NewFilterBuilder().WithYear(2024).Build())
	assertComplete(t, w)

	type row struct {
		Year   int
		Career string
		Count  int64
	}
	var rows []row
	for _, y := range got.Years {
		rows = append(rows, row{y.Year, y.Career, y.Count})
	}
	want := []row{
		{2023, stats.CareerAIML, 2},
		{2023, stats.CareerSoftware, 6},
		{2024, stats.CareerAIML, 1},
		{2024, stats.CareerSoftware, 6},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("years mismatch (-want +got):\n%s", diff)
	}
	testutil.AssertEqual(t, int64(2), got.Years[0].Levels["III"], "2023 AI/ML level III")

	if diff := cmp.Diff([]analytics.NamedCount{{Name: "GOOGLE", Count: 3}}, got.TopEmployers); diff != "" {
		t.Errorf("employers mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]analytics.NamedCount{{Name: "CA", Count: 3}}, got.TopStates); diff != "" {
		t.Errorf("states mismatch (-want +got):\n%s", diff)
	}
}

func TestFacetOptions(t *testing.T) {
	svc := newStandardService(t)

	f := fixtures.NewFilterBuilder().WithState("TX").WithCity("SEATTLE").Build()
	got, w := svc.FacetOptions(context.Background(), f)
	assertComplete(t, w)

	if diff := cmp.Diff([]string{"AMAZON", "GOOGLE", "INFOSYS"}, got.Companies); diff != "" {
		t.Errorf("companies mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(storage.YearRange{From: 2023, To: 2024}, got.YearRange); diff != "" {
		t.Errorf("year range mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"DALLAS", "PLANO"}, got.Cities); diff != "" {
		t.Errorf("cities mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]storage.Facet{storage.FacetCity}, got.Invalid); diff != "" {
		t.Errorf("invalid mismatch (-want +got):\n%s", diff)
	}
}
