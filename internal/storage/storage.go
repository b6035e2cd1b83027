package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/h1bexplorer/internal/database"
	"github.com/h1bexplorer/internal/logging"
	"github.com/h1bexplorer/internal/metrics"
)

// Operations is the faceted query layer. Implementations are safe for
// concurrent use; every method normalizes its FilterState.
type Operations interface {
	// ListDistinct returns the sorted non-empty values of column among rows
	// matching filters.
	ListDistinct(ctx context.Context, column string, filters FilterState) ([]string, error)
	ListYears(ctx context.Context, filters FilterState) ([]int, error)

	Fetch(ctx context.Context, filters FilterState, spec AggregationSpec) (*ResultTable, error)
	// FetchGeographic ignores the state and city selections
	FetchGeographic(ctx context.Context, filters FilterState, spec AggregationSpec) (*ResultTable, error)
	// FetchYearly ignores the single-year selection
	FetchYearly(ctx context.Context, filters FilterState, spec AggregationSpec) (*ResultTable, error)

	// Cascading facets, narrowed by their parent selections only
	Cities(ctx context.Context, filters FilterState) ([]string, error)
	JobTitles(ctx context.Context, filters FilterState) ([]string, error)
	SOCTitles(ctx context.Context, filters FilterState) ([]string, error)

	Fingerprint(ctx context.Context) (Fingerprint, error)
	Close() error
}

// Fingerprint identifies a version of the dataset
type Fingerprint struct {
	Rows    int64   `json:"rows"`
	MinYear int     `json:"min_year"`
	MaxYear int     `json:"max_year"`
	WageSum float64 `json:"wage_sum"`
}

// String is the stable version string used by snapshots
func (f Fingerprint) String() string {
	return fmt.Sprintf("%d:%d-%d:%.0f", f.Rows, f.MinYear, f.MaxYear, f.WageSum)
}

// Config holds Storage settings
type Config struct {
	Table        string
	QueryTimeout time.Duration // 0 leaves it to the engine limits

	// Breaker opens after MaxFailures consecutive failures and probes again
	// after OpenTimeout.
	BreakerMaxFailures uint32
	BreakerOpenTimeout time.Duration
}

// DefaultConfig returns the defaults the server runs with
func DefaultConfig() *Config {
	return &Config{
		Table:              database.DefaultTable,
		BreakerMaxFailures: 5,
		BreakerOpenTimeout: 30 * time.Second,
	}
}

// Storage executes queries on a pool of per-worker handles
type Storage struct {
	pool    *database.Pool
	config  *Config
	breaker *gobreaker.CircuitBreaker[*ResultTable]
}

// New creates a Storage over pool
func New(pool *database.Pool, config *Config) (*Storage, error) {
	if pool == nil {
		return nil, fmt.Errorf("storage needs a connection pool")
	}
	if config == nil {
		config = DefaultConfig()
	}
	cfg := *config
	if cfg.Table == "" {
		cfg.Table = database.DefaultTable
	}
	if cfg.BreakerMaxFailures == 0 {
		cfg.BreakerMaxFailures = 5
	}
	if cfg.BreakerOpenTimeout == 0 {
		cfg.BreakerOpenTimeout = 30 * time.Second
	}

	s := &Storage{pool: pool, config: &cfg}
	s.breaker = gobreaker.NewCircuitBreaker[*ResultTable](gobreaker.Settings{
		Name:        "analytical-store",
		MaxRequests: 1,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerMaxFailures
		},
		// bad input, cancelled requests and a busy pool say nothing about
		// database health
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, context.Canceled) ||
				errors.Is(err, database.ErrPoolBusy) ||
				errors.Is(err, ErrUnknownColumn) ||
				errors.Is(err, ErrInvalidAggregation)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
			metrics.RecordBreakerState(name, from.String(), to.String())
		},
	})
	metrics.UpdatePool(pool.Stats().Size, 0)
	return s, nil
}

// Pool exposes the worker pool for resets and health checks
func (s *Storage) Pool() *database.Pool {
	return s.pool
}

// Table returns the table queried
func (s *Storage) Table() string {
	return s.config.Table
}

// BreakerState reports the breaker state: closed, half-open or open
func (s *Storage) BreakerState() string {
	return s.breaker.State().String()
}

func (s *Storage) base() *Predicate {
	return NewPredicate(BaseClauses()...)
}

// query runs one statement through the breaker on a pooled worker
func (s *Storage) query(ctx context.Context, op, sqlText string, args []any) (*ResultTable, error) {
	start := time.Now()

	table, err := s.breaker.Execute(func() (*ResultTable, error) {
		return s.run(ctx, sqlText, args)
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = fmt.Errorf("%s: %w", op, ErrCircuitOpen)
	} else if err != nil && !database.IsConnectionError(err) && !errors.Is(err, database.ErrClosed) {
		err = &QueryExecutionError{Op: op, Query: sqlText, Err: err}
	}

	elapsed := time.Since(start)
	metrics.RecordQuery(op, s.pool.Backend(), elapsed, ErrorType(err), table.Empty())
	stats := s.pool.Stats()
	metrics.UpdatePool(stats.Size, stats.InUse)

	if err != nil {
		return nil, err
	}
	logging.Debug("query executed", logging.Query(op), logging.Rows(table.Len()), logging.Duration("elapsed", elapsed))
	return table, nil
}

func (s *Storage) run(ctx context.Context, sqlText string, args []any) (*ResultTable, error) {
	if s.config.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.QueryTimeout)
		defer cancel()
	}

	w, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Release(w)

	conn, err := w.Conn(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := conn.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTable(rows)
}

// ListDistinct returns sorted distinct non-empty values of a schema column
func (s *Storage) ListDistinct(ctx context.Context, column string, filters FilterState) ([]string, error) {
	if err := checkColumn(column); err != nil {
		return nil, err
	}
	where := s.base().And(filters.Clauses()...).And(NotEmpty(column))
	whereSQL, args, err := where.Build()
	if err != nil {
		return nil, err
	}

	// VARCHAR is an alias of String on ClickHouse
	q := fmt.Sprintf("SELECT DISTINCT CAST(%s AS VARCHAR) AS value FROM %s WHERE %s ORDER BY value",
		column, s.config.Table, whereSQL)

	t, err := s.query(ctx, "list_distinct", q, args)
	if err != nil {
		return nil, err
	}
	return t.Strings("value"), nil
}

// ListYears returns the distinct filing years in ascending order
func (s *Storage) ListYears(ctx context.Context, filters FilterState) ([]int, error) {
	q, args, err := BuildQuery(s.config.Table, s.pool.Dialect(), s.base().And(filters.Clauses()...),
		AggregationSpec{
			GroupBy:  []string{database.ColYear},
			Measures: []Measure{Count("count")},
			OrderBy:  []Order{Asc(database.ColYear)},
		})
	if err != nil {
		return nil, err
	}

	t, err := s.query(ctx, "list_years", q, args)
	if err != nil {
		return nil, err
	}
	years := make([]int, 0, t.Len())
	for _, y := range t.Ints(database.ColYear) {
		years = append(years, int(y))
	}
	return years, nil
}

// Fetch runs spec under the filter predicate
func (s *Storage) Fetch(ctx context.Context, filters FilterState, spec AggregationSpec) (*ResultTable, error) {
	return s.fetch(ctx, "fetch", filters, spec)
}

// FetchGeographic runs spec with state and city unconstrained
func (s *Storage) FetchGeographic(ctx context.Context, filters FilterState, spec AggregationSpec) (*ResultTable, error) {
	return s.fetch(ctx, "fetch_geographic", filters.WithoutGeography(), spec)
}

// FetchYearly runs spec with the year selection unconstrained
func (s *Storage) FetchYearly(ctx context.Context, filters FilterState, spec AggregationSpec) (*ResultTable, error) {
	return s.fetch(ctx, "fetch_yearly", filters.WithoutYear(), spec)
}

func (s *Storage) fetch(ctx context.Context, op string, filters FilterState, spec AggregationSpec) (*ResultTable, error) {
	q, args, err := BuildQuery(s.config.Table, s.pool.Dialect(), s.base().And(filters.Clauses()...), spec)
	if err != nil {
		return nil, err
	}
	return s.query(ctx, op, q, args)
}

// Cities lists cities under the state, company, year and SOC selections
func (s *Storage) Cities(ctx context.Context, filters FilterState) ([]string, error) {
	return s.ListDistinct(ctx, FacetCity.Column(), filters.Parents(FacetCity))
}

// JobTitles lists normalized titles under every other facet selection
func (s *Storage) JobTitles(ctx context.Context, filters FilterState) ([]string, error) {
	return s.ListDistinct(ctx, FacetJobTitle.Column(), filters.Parents(FacetJobTitle))
}

// SOCTitles lists occupations under the company, state, city and year selections
func (s *Storage) SOCTitles(ctx context.Context, filters FilterState) ([]string, error) {
	return s.ListDistinct(ctx, FacetSOCTitle.Column(), filters.Parents(FacetSOCTitle))
}

// Fingerprint summarizes the dataset so snapshots can detect a reload
func (s *Storage) Fingerprint(ctx context.Context) (Fingerprint, error) {
	q, args, err := BuildQuery(s.config.Table, s.pool.Dialect(), s.base(), AggregationSpec{
		Measures: []Measure{
			Count("rows"),
			Min(database.ColYear, "min_year"),
			Max(database.ColYear, "max_year"),
			Sum(database.ColPrevailingWage, "wage_sum"),
		},
	})
	if err != nil {
		return Fingerprint{}, err
	}

	t, err := s.query(ctx, "fingerprint", q, args)
	if err != nil {
		return Fingerprint{}, err
	}
	if t.Empty() {
		return Fingerprint{}, nil
	}
	return Fingerprint{
		Rows:    t.Int(0, "rows"),
		MinYear: int(t.Int(0, "min_year")),
		MaxYear: int(t.Int(0, "max_year")),
		WageSum: t.Float(0, "wage_sum"),
	}, nil
}

// Close closes the worker pool
func (s *Storage) Close() error {
	return s.pool.Close()
}
