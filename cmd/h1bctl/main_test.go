package main

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"

	"github.com/h1bexplorer/internal/config"
	"github.com/h1bexplorer/internal/storage"
	"github.com/h1bexplorer/internal/testutil"
	"github.com/h1bexplorer/internal/testutil/fixtures"
)

// writeConfig saves a configuration over dbPath with an in-memory cache
func writeConfig(t *testing.T, dbPath string, mutate func(*config.Config)) string {
	t.Helper()
	cfg := config.Default()
	cfg.DuckDB.Path = dbPath
	cfg.Pool.Workers = 2
	cfg.Cache.Path = ""
	cfg.Cache.InMemory = true
	cfg.CLILogging.Level = "error"
	if mutate != nil {
		mutate(cfg)
	}
	path := filepath.Join(t.TempDir(), "config.yaml")
	testutil.AssertNoError(t, config.SaveConfig(cfg, path), "SaveConfig")
	return path
}

func standardConfig(t *testing.T) string {
	t.Helper()
	return writeConfig(t, fixtures.NewDuckDBFile(t, fixtures.StandardPetitions()), nil)
}

func execute(args ...string) (stdout, stderr string, err error) {
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

func assertContains(t *testing.T, out string, want ...string) {
	t.Helper()
	for _, w := range want {
		if !strings.Contains(out, w) {
			t.Errorf("output missing %q:\n%s", w, out)
		}
	}
}

func TestRootCommandHasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range newRootCmd().Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"facets", "summary", "states", "trends", "report", "snapshot", "version"} {
		if !names[name] {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestFilterFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want storage.FilterState
	}{
		{
			name: "defaults",
			want: storage.AllFilters(),
		},
		{
			name: "company and year",
			args: []string{"--company", "AMAZON", "--year", "2024"},
			want: func() storage.FilterState {
				f := storage.AllFilters()
				f.Company = "AMAZON"
				f.Year = 2024
				return f
			}(),
		},
		{
			name: "blank value means all",
			args: []string{"--state", " ", "--city", "all"},
			want: storage.AllFilters(),
		},
		{
			name: "reversed range is ordered",
			args: []string{"--year-from", "2024", "--year-to", "2021"},
			want: func() storage.FilterState {
				f := storage.AllFilters()
				f.YearRange = storage.YearRange{From: 2021, To: 2024}
				return f
			}(),
		},
		{
			name: "restrictions",
			args: []string{"--entry-level", "--exclude-other-soc"},
			want: func() storage.FilterState {
				f := storage.AllFilters()
				f.EntryLevelOnly = true
				f.ExcludeOtherSOC = true
				return f
			}(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ff filterFlags
			cmd := &cobra.Command{Use: "test"}
			ff.register(cmd)
			testutil.AssertNoError(t, cmd.Flags().Parse(tt.args), "Parse")

			if diff := cmp.Diff(tt.want, ff.filterState()); diff != "" {
				t.Errorf("filterState() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFormatting(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"count", formatCount(1234567), "1,234,567"},
		{"wage", formatWage(118500), "$118,500"},
		{"zero wage", formatWage(0), "-"},
		{"percent", formatPercent(12.34), "12.3%"},
		{"growth", formatGrowth(5, true), "+5.0%"},
		{"no growth", formatGrowth(5, false), "-"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testutil.AssertEqual(t, tt.want, tt.got, tt.name)
		})
	}
}

func TestSummaryCommand(t *testing.T) {
	cfgPath := standardConfig(t)

	out, _, err := execute("summary", "--config", cfgPath)
	testutil.AssertNoError(t, err, "summary")
	assertContains(t, out, "$118,500", "$70,000", "$200,000", "Level I", "$82,000", "$145,000")

	out, _, err = execute("summary", "--config", cfgPath, "--company", "AMAZON")
	testutil.AssertNoError(t, err, "summary for AMAZON")
	assertContains(t, out, "$134,091")
}

func TestSummaryRestrictions(t *testing.T) {
	cfgPath := standardConfig(t)

	out, _, err := execute("summary", "--config", cfgPath, "--entry-level")
	testutil.AssertNoError(t, err, "summary --entry-level")
	assertContains(t, out, "19", "$130,000")
	if strings.Contains(out, "$200,000") || strings.Contains(out, "Level IV") {
		t.Errorf("entry-level summary includes senior petitions:\n%s", out)
	}

	out, _, err = execute("summary", "--config", cfgPath, "--entry-level", "--exclude-other-soc")
	testutil.AssertNoError(t, err, "summary --entry-level --exclude-other-soc")
	// the only "Other" occupation is also the lowest paid petition
	assertContains(t, out, "18", "$80,000")
	if strings.Contains(out, "$70,000") {
		t.Errorf("catch-all occupation not excluded:\n%s", out)
	}
}

func TestFacetsCommand(t *testing.T) {
	cfgPath := standardConfig(t)

	out, _, err := execute("facets", "--config", cfgPath, "--facet", "company")
	testutil.AssertNoError(t, err, "facets")
	assertContains(t, out, "AMAZON", "GOOGLE", "INFOSYS")
	if strings.Contains(out, "WIPRO") {
		t.Error("non-selected employer listed")
	}

	out, _, err = execute("facets", "--config", cfgPath, "--facet", "city", "--state", "CA")
	testutil.AssertNoError(t, err, "dependent facet")
	assertContains(t, out, "SUNNYVALE", "MOUNTAIN VIEW")
	if strings.Contains(out, "SEATTLE") {
		t.Error("city outside the selected state listed")
	}

	out, _, err = execute("facets", "--config", cfgPath)
	testutil.AssertNoError(t, err, "facet counts")
	assertContains(t, out, "company", "job_title", "Years 2023 to 2024")

	_, _, err = execute("facets", "--config", cfgPath, "--facet", "salary")
	testutil.AssertError(t, err, "unknown facet")
}

func TestStatesAndTrendsCommands(t *testing.T) {
	cfgPath := standardConfig(t)

	out, _, err := execute("states", "--config", cfgPath)
	testutil.AssertNoError(t, err, "states")
	assertContains(t, out, "WA", "CA", "TX")

	out, _, err = execute("trends", "--config", cfgPath, "--policy")
	testutil.AssertNoError(t, err, "trends")
	assertContains(t, out, "2023", "2024", "Wage level mix by year", "I + II")
}

func TestReportCommand(t *testing.T) {
	out, _, err := execute("report", "--config", standardConfig(t))
	testutil.AssertNoError(t, err, "report")
	assertContains(t, out,
		"Overview",
		"Top entry-level employers",
		"Best paying entry-level employers",
		"Top cities",
		"Fastest growing careers",
		"INFOSYS",
	)
}

func TestWarningsAndStrictMode(t *testing.T) {
	cfgPath := writeConfig(t, testutil.MissingPath(t, "h1b.duckdb"), nil)

	_, stderr, err := execute("summary", "--config", cfgPath)
	testutil.AssertNoError(t, err, "warnings are not fatal")
	assertContains(t, stderr, "warning:")

	_, _, err = execute("summary", "--config", cfgPath, "--strict")
	testutil.AssertError(t, err, "strict mode")
}

func TestSnapshotCommands(t *testing.T) {
	cfgPath := standardConfig(t)

	// each invocation gets a fresh in-memory cache
	out, _, err := execute("snapshot", "show", "--config", cfgPath)
	testutil.AssertNoError(t, err, "show")
	assertContains(t, out, "No snapshot stored")

	out, _, err = execute("snapshot", "build", "--config", cfgPath)
	testutil.AssertNoError(t, err, "build")
	assertContains(t, out, "Dataset version", "Build ID", "AI developer vs software engineer")

	disabled := writeConfig(t, fixtures.NewDuckDBFile(t, fixtures.StandardPetitions()), func(c *config.Config) {
		c.Cache.Enabled = false
		c.Snapshot.Enabled = false
	})
	_, _, err = execute("snapshot", "build", "--config", disabled)
	if !errors.Is(err, errSnapshotsDisabled) {
		t.Errorf("expected errSnapshotsDisabled, got %v", err)
	}
}

func TestVersionCommand(t *testing.T) {
	out, _, err := execute("version", "--config", testutil.MissingPath(t, "config.yaml"))
	testutil.AssertNoError(t, err, "version")
	assertContains(t, out, "h1bctl ")
}
