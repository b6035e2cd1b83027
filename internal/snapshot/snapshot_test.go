package snapshot

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/h1bexplorer/internal/analytics"
	"github.com/h1bexplorer/internal/cache"
	"github.com/h1bexplorer/internal/storage"
	"github.com/h1bexplorer/internal/testutil"
	"github.com/h1bexplorer/internal/testutil/mocks"
)

type stubBuilder struct {
	calls atomic.Int32
	err   error
	wait  chan struct{}
}

func (b *stubBuilder) BuildCareerComparison(ctx context.Context, f storage.FilterState) (analytics.CareerComparison, error) {
	b.calls.Add(1)
	if b.wait != nil {
		<-b.wait
	}
	if b.err != nil {
		return analytics.CareerComparison{}, b.err
	}
	out := analytics.EmptyCareerComparison()
	out.TopStates = []analytics.NamedCount{{Name: "CA", Count: 3}}
	return out, nil
}

type harness struct {
	store   *Store
	dataset *mocks.MockStorage
	builder *stubBuilder
	clock   time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	c, err := cache.NewInMemory()
	testutil.AssertNoError(t, err, "cache.NewInMemory")
	t.Cleanup(func() { c.Close() })

	h := &harness{
		dataset: mocks.NewMockStorage(),
		builder: &stubBuilder{},
		clock:   time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	h.dataset.SetFingerprint(storage.Fingerprint{Rows: 26, MinYear: 2023, MaxYear: 2024, WageSum: 3081000})

	h.store, err = NewStore(c, h.dataset, h.builder, &Config{MaxAge: time.Hour})
	testutil.AssertNoError(t, err, "NewStore")
	h.store.now = func() time.Time { return h.clock }
	return h
}

func TestNewStoreNeedsCache(t *testing.T) {
	_, err := NewStore(nil, mocks.NewMockStorage(), &stubBuilder{}, nil)
	testutil.AssertError(t, err, "nil cache")
}

func TestLoadMissing(t *testing.T) {
	h := newHarness(t)
	_, err := h.store.Load(context.Background())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCurrentBuildsWhenMissing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	snap, stale, err := h.store.Current(ctx)
	testutil.AssertNoError(t, err, "Current")
	testutil.AssertFalse(t, stale, "fresh build")
	testutil.AssertEqual(t, "26:2023-2024:3081000", snap.Version, "version")
	testutil.AssertTrue(t, snap.BuildID != "", "build id set")
	testutil.AssertEqual(t, int32(1), h.builder.calls.Load(), "builds")

	stored, err := h.store.Load(ctx)
	testutil.AssertNoError(t, err, "Load")
	testutil.AssertEqual(t, snap.BuildID, stored.BuildID, "stored build id")
	testutil.AssertEqual(t, "CA", stored.Comparison.TopStates[0].Name, "stored comparison")
}

func TestCurrentServesFreshSnapshot(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, _, err := h.store.Current(ctx)
	testutil.AssertNoError(t, err, "first Current")
	h.clock = h.clock.Add(30 * time.Minute)

	second, _, err := h.store.Current(ctx)
	testutil.AssertNoError(t, err, "second Current")
	testutil.AssertEqual(t, first.BuildID, second.BuildID, "same snapshot")
	testutil.AssertEqual(t, int32(1), h.builder.calls.Load(), "builds")
}

func TestCurrentRebuilds(t *testing.T) {
	tests := []struct {
		name   string
		change func(h *harness)
	}{
		{"dataset reloaded", func(h *harness) {
			h.dataset.SetFingerprint(storage.Fingerprint{Rows: 27, MinYear: 2023, MaxYear: 2024, WageSum: 3181000})
		}},
		{"too old", func(h *harness) {
			h.clock = h.clock.Add(2 * time.Hour)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			ctx := context.Background()

			first, _, err := h.store.Current(ctx)
			testutil.AssertNoError(t, err, "first Current")
			tt.change(h)

			second, stale, err := h.store.Current(ctx)
			testutil.AssertNoError(t, err, "second Current")
			testutil.AssertFalse(t, stale, "rebuilt")
			testutil.AssertTrue(t, first.BuildID != second.BuildID, "new build id")
			testutil.AssertEqual(t, int32(2), h.builder.calls.Load(), "builds")
		})
	}
}

func TestCareerComparisonServesStaleOnRebuildFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, w := h.store.CareerComparison(ctx)
	testutil.AssertEqual(t, 0, len(w), "first build clean")

	h.dataset.SetFingerprint(storage.Fingerprint{Rows: 30})
	h.builder.err = &storage.QueryExecutionError{Op: "fetch_yearly", Err: errors.New("memory limit")}

	got, w := h.store.CareerComparison(ctx)
	testutil.AssertTrue(t, w.Has(analytics.CodeSnapshotStale), "stale warning")
	testutil.AssertEqual(t, "CA", got.TopStates[0].Name, "previous comparison served")
}

func TestCareerComparisonUnavailableWithoutSnapshot(t *testing.T) {
	h := newHarness(t)
	h.builder.err = storage.ErrCircuitOpen

	got, w := h.store.CareerComparison(context.Background())
	testutil.AssertTrue(t, got.Empty(), "empty comparison")
	testutil.AssertTrue(t, got.Years != nil, "neutral value, not nil")
	testutil.AssertTrue(t, w.Has(analytics.CodeSnapshotUnavailable), "unavailable warning")
}

func TestCurrentServesStoredWhenVersionUnknown(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, _, err := h.store.Current(ctx)
	testutil.AssertNoError(t, err, "first Current")

	// the database went away: no fingerprint, no rebuild
	h.dataset.Err = errors.New("database unavailable")
	snap, stale, err := h.store.Current(ctx)
	testutil.AssertNoError(t, err, "Current")
	testutil.AssertTrue(t, stale, "served as stale")
	testutil.AssertEqual(t, "CA", snap.Comparison.TopStates[0].Name, "stored comparison")
}

func TestCurrentRemembersDatasetVersion(t *testing.T) {
	h := newHarness(t)
	h.store.config.VersionTTL = time.Minute
	ctx := context.Background()

	_, _, err := h.store.Current(ctx)
	testutil.AssertNoError(t, err, "first Current")
	scans := h.dataset.CallCount("Fingerprint")

	for i := 0; i < 5; i++ {
		_, _, err := h.store.Current(ctx)
		testutil.AssertNoError(t, err, "Current")
	}
	testutil.AssertEqual(t, scans, h.dataset.CallCount("Fingerprint"), "version reused within ttl")

	// a reload goes unnoticed until the remembered version expires
	h.dataset.SetFingerprint(storage.Fingerprint{Rows: 27, MinYear: 2023, MaxYear: 2024, WageSum: 3181000})
	_, _, err = h.store.Current(ctx)
	testutil.AssertNoError(t, err, "Current before expiry")
	testutil.AssertEqual(t, int32(1), h.builder.calls.Load(), "no rebuild before expiry")

	h.clock = h.clock.Add(2 * time.Minute)
	snap, _, err := h.store.Current(ctx)
	testutil.AssertNoError(t, err, "Current after expiry")
	testutil.AssertEqual(t, "27:2023-2024:3181000", snap.Version, "rebuilt for new version")
	testutil.AssertEqual(t, int32(2), h.builder.calls.Load(), "builds")
}

func TestForgetRereadsDatasetVersion(t *testing.T) {
	h := newHarness(t)
	h.store.config.VersionTTL = time.Hour
	ctx := context.Background()

	_, _, err := h.store.Current(ctx)
	testutil.AssertNoError(t, err, "first Current")

	h.dataset.SetFingerprint(storage.Fingerprint{Rows: 27, MinYear: 2023, MaxYear: 2024, WageSum: 3181000})
	h.store.Forget()

	snap, _, err := h.store.Current(ctx)
	testutil.AssertNoError(t, err, "Current after Forget")
	testutil.AssertEqual(t, "27:2023-2024:3181000", snap.Version, "new version picked up")
	testutil.AssertEqual(t, int32(2), h.builder.calls.Load(), "builds")
}

func TestConcurrentBuildsShareOne(t *testing.T) {
	h := newHarness(t)
	h.builder.wait = make(chan struct{})
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.store.Build(ctx)
			errs <- err
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(h.builder.wait)
	wg.Wait()
	close(errs)

	for err := range errs {
		testutil.AssertNoError(t, err, "Build")
	}
	if calls := h.builder.calls.Load(); calls > 2 {
		t.Errorf("expected shared builds, got %d", calls)
	}
}
