package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/h1bexplorer/internal/analytics"
	"github.com/h1bexplorer/internal/database"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfigKeepsDefaultsForOmittedFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
database:
  driver: clickhouse
clickhouse:
  host: ch.internal
  database: lottery
pool:
  workers: 8
thresholds:
  state_min_count: 50
server:
  port: 9090
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Database.Driver != DriverClickHouse || cfg.Database.Table != database.DefaultTable {
		t.Errorf("database = %+v", cfg.Database)
	}
	if cfg.ClickHouse.Port != 9000 || cfg.ClickHouse.ReadTimeout != "2m" {
		t.Errorf("clickhouse defaults lost: %+v", cfg.ClickHouse)
	}
	if cfg.Pool.Workers != 8 || cfg.Pool.BreakerMaxFailures != 5 {
		t.Errorf("pool = %+v", cfg.Pool)
	}
	if cfg.Thresholds.StateMinCount != 50 || cfg.Thresholds.BestPayingMinCount != 100 {
		t.Errorf("thresholds = %+v", cfg.Thresholds)
	}
	if cfg.Server.Address() != "0.0.0.0:9090" {
		t.Errorf("address = %s", cfg.Server.Address())
	}
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad yaml", "database: [driver"},
		{"bad log level", "server_logging:\n  level: chatty\n"},
		{"unknown driver", "database:\n  driver: sqlite\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.yaml), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadConfig(path); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()
	if err := CreateExampleConfig(dir); err != nil {
		t.Fatalf("CreateExampleConfig: %v", err)
	}

	cfg, err := LoadConfig(filepath.Join(dir, "config.example.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("example config mismatch (-want +got):\n%s", diff)
	}
}

func TestToClickHouseDatabaseConfig(t *testing.T) {
	ch := DefaultClickHouseConfig()
	ch.MaxMemoryUsage = 1 << 30

	got, err := ch.ToClickHouseDatabaseConfig("petitions")
	if err != nil {
		t.Fatalf("ToClickHouseDatabaseConfig: %v", err)
	}
	want := &database.ClickHouseConfig{
		Host:           "localhost",
		Port:           9000,
		Database:       "h1b",
		Table:          "petitions",
		Username:       "default",
		DialTimeout:    10 * time.Second,
		ReadTimeout:    2 * time.Minute,
		MaxMemoryUsage: 1 << 30,
		MaxThreads:     1,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	ch.DialTimeout = "soon"
	if _, err := ch.ToClickHouseDatabaseConfig("petitions"); err == nil {
		t.Error("expected dial_timeout error")
	}
}

func TestToThresholdsMatchesDefaults(t *testing.T) {
	th := DefaultThresholdsConfig()
	if diff := cmp.Diff(analytics.DefaultThresholds(), *th.ToThresholds()); diff != "" {
		t.Errorf("thresholds mismatch (-want +got):\n%s", diff)
	}
}

func TestDatabaseFactory(t *testing.T) {
	cfg := Default()
	factory, err := cfg.DatabaseFactory()
	if err != nil {
		t.Fatalf("DatabaseFactory: %v", err)
	}
	db, err := factory(0)
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	defer db.Close()
	if db.Backend() != DriverDuckDB || db.IsOpen() {
		t.Errorf("expected an unopened duckdb handle, got %s open=%v", db.Backend(), db.IsOpen())
	}

	cfg.Database.Driver = "sqlite"
	if _, err := cfg.DatabaseFactory(); err == nil {
		t.Error("expected unknown driver error")
	}
}
