package storage

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/h1bexplorer/internal/database"
)

func TestNormalize(t *testing.T) {
	got := FilterState{Company: "  AMAZON ", State: "", City: "all", YearRange: YearRange{From: 2024, To: 2021}, Year: -3}.Normalize()
	want := FilterState{
		Company:   "AMAZON",
		State:     All,
		City:      All,
		SOCTitle:  All,
		JobTitle:  All,
		YearRange: YearRange{From: 2021, To: 2024},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Normalize mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff(AllFilters(), FilterState{}.Normalize()); diff != "" {
		t.Errorf("zero value should equal AllFilters (-want +got):\n%s", diff)
	}
}

func TestClauses(t *testing.T) {
	f := FilterState{
		Company:         "AMAZON",
		Year:            2024,
		State:           "WA",
		City:            "SEATTLE",
		SOCTitle:        "Software Developers",
		JobTitle:        "Software Engineer",
		YearRange:       YearRange{From: 2021},
		EntryLevelOnly:  true,
		ExcludeOtherSOC: true,
	}

	want := []Clause{
		Eq(database.ColEmployerParent, "AMAZON"),
		Eq(database.ColYear, 2024),
		Between(database.ColYear, 2021, 9999),
		Eq(database.ColEmployerState, "WA"),
		Eq(database.ColEmployerCity, "SEATTLE"),
		Eq(database.ColSOCTitle, "Software Developers"),
		Eq(database.ColNormalizedTitle, "Software Engineer"),
		In(database.ColWageLevel, []string{"I", "II"}),
		NotLikeCI(database.ColSOCTitle, "%other%"),
	}
	if diff := cmp.Diff(want, f.Clauses()); diff != "" {
		t.Errorf("Clauses mismatch (-want +got):\n%s", diff)
	}

	if n := len(AllFilters().Clauses()); n != 0 {
		t.Errorf("unconstrained filters produced %d clauses", n)
	}
}

func TestWithoutGeographyAndYear(t *testing.T) {
	f := FilterState{Company: "GOOGLE", Year: 2023, State: "CA", City: "MOUNTAIN VIEW", JobTitle: "Machine Learning Engineer"}.Normalize()

	geo := f.WithoutGeography()
	if geo.State != All || geo.City != All {
		t.Errorf("geography kept: %+v", geo)
	}
	if geo.Company != "GOOGLE" || geo.Year != 2023 || geo.JobTitle != "Machine Learning Engineer" {
		t.Errorf("other facets dropped: %+v", geo)
	}

	yearly := f.WithoutYear()
	if yearly.Year != 0 {
		t.Errorf("year kept: %d", yearly.Year)
	}
	if yearly.State != "CA" {
		t.Errorf("state dropped: %+v", yearly)
	}
}

func TestParents(t *testing.T) {
	f := FilterState{
		Company:  "AMAZON",
		Year:     2024,
		State:    "WA",
		City:     "SEATTLE",
		SOCTitle: "Software Developers",
		JobTitle: "Software Development Engineer",
	}

	tests := []struct {
		facet Facet
		want  FilterState
	}{
		{FacetCity, FilterState{Company: "AMAZON", Year: 2024, State: "WA", City: All, SOCTitle: "Software Developers", JobTitle: All}},
		{FacetJobTitle, FilterState{Company: "AMAZON", Year: 2024, State: "WA", City: "SEATTLE", SOCTitle: "Software Developers", JobTitle: All}},
		{FacetSOCTitle, FilterState{Company: "AMAZON", Year: 2024, State: "WA", City: "SEATTLE", SOCTitle: All, JobTitle: All}},
		{FacetCompany, AllFilters()},
	}

	for _, tt := range tests {
		t.Run(string(tt.facet), func(t *testing.T) {
			if diff := cmp.Diff(tt.want, f.Parents(tt.facet)); diff != "" {
				t.Errorf("Parents mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestValueAndIsSet(t *testing.T) {
	f := FilterState{Company: "AMAZON", Year: 2024}
	if f.Value(FacetCompany) != "AMAZON" || f.Value(FacetYear) != "2024" {
		t.Errorf("values: %q %q", f.Value(FacetCompany), f.Value(FacetYear))
	}
	if f.IsSet(FacetState) {
		t.Error("state should be unset")
	}
	if FacetCity.Column() != database.ColEmployerCity {
		t.Errorf("city column = %s", FacetCity.Column())
	}
}

func TestLogValue(t *testing.T) {
	v := FilterState{Company: "AMAZON", EntryLevelOnly: true}.LogValue()
	attrs := v.Group()
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attrs, got %v", attrs)
	}
	if attrs[0].Key != "company" || attrs[0].Value.String() != "AMAZON" {
		t.Errorf("first attr = %v", attrs[0])
	}
}
