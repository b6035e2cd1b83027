package app

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/h1bexplorer/internal/config"
	"github.com/h1bexplorer/internal/storage"
	"github.com/h1bexplorer/internal/testutil"
	"github.com/h1bexplorer/internal/testutil/fixtures"
)

func testConfig(path string) *config.Config {
	cfg := config.Default()
	cfg.DuckDB.Path = path
	cfg.Pool.Workers = 2
	cfg.Cache.Path = ""
	cfg.Cache.InMemory = true
	return cfg
}

func TestNewWiresCacheAndSnapshots(t *testing.T) {
	a, err := New(testConfig(fixtures.NewDuckDBFile(t, fixtures.StandardPetitions())))
	testutil.AssertNoError(t, err, "New")
	defer a.Close()

	testutil.AssertTrue(t, a.Cached != nil, "cached storage")
	testutil.AssertTrue(t, a.Snapshots != nil, "snapshot store")
	testutil.AssertEqual(t, 0, a.Pool.Stats().Open, "handles open lazily")

	ctx := context.Background()
	testutil.AssertNoError(t, a.Probe(ctx, 10*time.Second), "Probe")

	summary, w := a.Views.Summary(ctx, storage.AllFilters())
	testutil.AssertEqual(t, 0, len(w), "warnings")
	testutil.AssertEqual(t, int64(fixtures.StandardTotal), summary.Total, "total")

	// unfiltered comparison goes through the snapshot store
	cmp, w := a.Views.CareerComparison(ctx, storage.AllFilters())
	testutil.AssertEqual(t, 0, len(w), "comparison warnings")
	testutil.AssertFalse(t, cmp.Empty(), "comparison data")
	_, err = a.Snapshots.Load(ctx)
	testutil.AssertNoError(t, err, "snapshot stored")
}

func TestResetAllPicksUpReplacedDataset(t *testing.T) {
	path := fixtures.NewDuckDBFile(t, fixtures.StandardPetitions())
	a, err := New(testConfig(path))
	testutil.AssertNoError(t, err, "New")
	defer a.Close()

	ctx := context.Background()
	summary, _ := a.Views.Summary(ctx, storage.AllFilters())
	testutil.AssertEqual(t, int64(fixtures.StandardTotal), summary.Total, "original total")
	_, err = a.Snapshots.Build(ctx)
	testutil.AssertNoError(t, err, "Build")

	replacement := fixtures.NewDuckDBFile(t, fixtures.WageMixPetitions())
	testutil.AssertNoError(t, os.Rename(replacement, path), "replace dataset")

	// open handles and the cache still answer from the old file
	summary, _ = a.Views.Summary(ctx, storage.AllFilters())
	testutil.AssertEqual(t, int64(fixtures.StandardTotal), summary.Total, "cached total before reset")

	testutil.AssertNoError(t, a.ResetAll(ctx), "ResetAll")

	summary, w := a.Views.Summary(ctx, storage.AllFilters())
	testutil.AssertEqual(t, 0, len(w), "warnings")
	testutil.AssertEqual(t, int64(100), summary.Total, "total after reset")

	snap, stale, err := a.Snapshots.Current(ctx)
	testutil.AssertNoError(t, err, "Current")
	testutil.AssertFalse(t, stale, "rebuilt snapshot")
	fp, err := a.Storage.Fingerprint(ctx)
	testutil.AssertNoError(t, err, "Fingerprint")
	testutil.AssertEqual(t, fp.String(), snap.Version, "snapshot matches the new dataset")
}

func TestNewWithoutCache(t *testing.T) {
	cfg := testConfig(fixtures.NewDuckDBFile(t, fixtures.StandardPetitions()))
	cfg.Cache.Enabled = false
	cfg.Snapshot.Enabled = false

	a, err := New(cfg)
	testutil.AssertNoError(t, err, "New")
	defer a.Close()

	testutil.AssertTrue(t, a.Cache == nil && a.Cached == nil, "no cache")
	testutil.AssertTrue(t, a.Snapshots == nil, "no snapshots")
	if a.Ops != storage.Operations(a.Storage) {
		t.Error("views should query storage directly")
	}
}

func TestProbeMissingDatabase(t *testing.T) {
	a, err := New(testConfig(testutil.MissingPath(t, "h1b.duckdb")))
	testutil.AssertNoError(t, err, "New succeeds without the file")
	defer a.Close()

	testutil.AssertError(t, a.Probe(context.Background(), 5*time.Second), "Probe")

	summary, w := a.Views.Summary(context.Background(), storage.AllFilters())
	testutil.AssertEqual(t, int64(0), summary.Total, "neutral summary")
	testutil.AssertTrue(t, len(w) > 0, "warning raised")
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	cfg := config.Default()
	cfg.Database.Driver = "sqlite"
	_, err := New(cfg)
	testutil.AssertError(t, err, "unknown driver")
}
