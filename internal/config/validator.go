package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Validator interface for config validation
type Validator interface {
	Validate() error
}

// ValidationErrors collects multiple validation errors
type ValidationErrors struct {
	Errors []error
}

func (ve *ValidationErrors) Add(err error) {
	if err != nil {
		ve.Errors = append(ve.Errors, err)
	}
}

func (ve *ValidationErrors) Error() string {
	if len(ve.Errors) == 0 {
		return ""
	}

	messages := make([]string, len(ve.Errors))
	for i, err := range ve.Errors {
		messages[i] = fmt.Sprintf("  - %s", err.Error())
	}

	return fmt.Sprintf("configuration validation failed:\n%s",
		strings.Join(messages, "\n"))
}

func (ve *ValidationErrors) HasErrors() bool {
	return len(ve.Errors) > 0
}

var (
	identifierPattern  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	memoryLimitPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?\s*(B|KB|MB|GB|TB|KiB|MiB|GiB|TiB)$`)
)

// Validate validates the entire configuration
func (c *Config) Validate() error {
	var errs ValidationErrors

	errs.Add(c.Database.Validate())

	// Only the selected backend has to be complete
	switch c.Database.Driver {
	case DriverDuckDB:
		errs.Add(c.DuckDB.Validate())
	case DriverClickHouse:
		errs.Add(c.ClickHouse.Validate())
	}

	errs.Add(c.Pool.Validate())

	if c.Cache.Enabled {
		errs.Add(c.Cache.Validate())
	}

	if c.Snapshot.Enabled {
		if !c.Cache.Enabled {
			errs.Add(fmt.Errorf("snapshot.enabled requires cache.enabled"))
		}
		errs.Add(c.Snapshot.Validate())
	}

	errs.Add(c.Thresholds.Validate())
	errs.Add(c.Server.Validate())
	errs.Add(c.ServerLogging.Validate())
	errs.Add(c.CLILogging.Validate())

	if errs.HasErrors() {
		return &errs
	}
	return nil
}

// Validate validates the backend selection
func (c *DatabaseConfig) Validate() error {
	var errs ValidationErrors

	if c.Driver != DriverDuckDB && c.Driver != DriverClickHouse {
		errs.Add(fmt.Errorf("database.driver must be %s or %s, got %q", DriverDuckDB, DriverClickHouse, c.Driver))
	}

	// The table name is interpolated into SQL
	if !identifierPattern.MatchString(c.Table) {
		errs.Add(fmt.Errorf("database.table must be a plain identifier, got %q", c.Table))
	}

	if errs.HasErrors() {
		return &errs
	}
	return nil
}

// Validate validates DuckDB configuration
func (c *DuckDBConfig) Validate() error {
	var errs ValidationErrors

	if c.Path == "" {
		errs.Add(fmt.Errorf("duckdb.path is required"))
	}

	if c.MemoryLimit != "" && !memoryLimitPattern.MatchString(c.MemoryLimit) {
		errs.Add(fmt.Errorf("duckdb.memory_limit must look like 1GB or 512MB, got %q", c.MemoryLimit))
	}

	if c.Threads < 1 {
		errs.Add(fmt.Errorf("duckdb.threads must be at least 1, got %d", c.Threads))
	}

	if errs.HasErrors() {
		return &errs
	}
	return nil
}

// Validate validates ClickHouse configuration
func (c *ClickHouseConfig) Validate() error {
	var errs ValidationErrors

	if c.Host == "" {
		errs.Add(fmt.Errorf("clickhouse.host is required"))
	}

	if c.Port < 1 || c.Port > 65535 {
		errs.Add(fmt.Errorf("clickhouse.port must be between 1-65535, got %d", c.Port))
	}

	if c.Database == "" {
		errs.Add(fmt.Errorf("clickhouse.database is required"))
	}

	for name, value := range map[string]string{"dial_timeout": c.DialTimeout, "read_timeout": c.ReadTimeout} {
		if value == "" {
			continue
		}
		if d, err := time.ParseDuration(value); err != nil || d <= 0 {
			errs.Add(fmt.Errorf("clickhouse.%s must be a positive duration, got %q", name, value))
		}
	}

	if c.MaxMemoryUsage < 0 {
		errs.Add(fmt.Errorf("clickhouse.max_memory_usage cannot be negative"))
	}

	if c.MaxThreads < 0 {
		errs.Add(fmt.Errorf("clickhouse.max_threads cannot be negative"))
	}

	if errs.HasErrors() {
		return &errs
	}
	return nil
}

// Validate validates worker pool configuration
func (c *PoolConfig) Validate() error {
	var errs ValidationErrors

	if c.Workers < 1 {
		errs.Add(fmt.Errorf("pool.workers must be at least 1, got %d", c.Workers))
	}

	if c.QueryTimeout < 0 {
		errs.Add(fmt.Errorf("pool.query_timeout cannot be negative"))
	}

	if c.BreakerMaxFailures < 1 {
		errs.Add(fmt.Errorf("pool.breaker_max_failures must be at least 1"))
	}

	if c.BreakerOpenTimeout <= 0 {
		errs.Add(fmt.Errorf("pool.breaker_open_timeout must be positive"))
	}

	if errs.HasErrors() {
		return &errs
	}
	return nil
}

// Validate validates cache configuration
func (c *CacheConfig) Validate() error {
	var errs ValidationErrors

	if c.Path == "" && !c.InMemory {
		errs.Add(fmt.Errorf("cache.path is required when cache is enabled"))
	}

	if c.MaxMemoryMB < 1 {
		errs.Add(fmt.Errorf("cache.max_memory_mb must be positive, got %d", c.MaxMemoryMB))
	}

	if c.ValueLogMaxMB < 1 {
		errs.Add(fmt.Errorf("cache.value_log_max_mb must be positive, got %d", c.ValueLogMaxMB))
	}

	if c.OptionsTTL < 0 || c.CascadeTTL < 0 || c.DataTTL < 0 {
		errs.Add(fmt.Errorf("cache TTLs cannot be negative"))
	}

	if c.GCDiscardRatio < 0 || c.GCDiscardRatio > 1 {
		errs.Add(fmt.Errorf("cache.gc_discard_ratio must be between 0 and 1, got %.2f", c.GCDiscardRatio))
	}

	if errs.HasErrors() {
		return &errs
	}
	return nil
}

// Validate validates snapshot configuration
func (c *SnapshotConfig) Validate() error {
	var errs ValidationErrors

	if c.MaxAge <= 0 {
		errs.Add(fmt.Errorf("snapshot.max_age must be positive"))
	}

	if c.BuildTimeout <= 0 {
		errs.Add(fmt.Errorf("snapshot.build_timeout must be positive"))
	}

	if c.VersionTTL < 0 {
		errs.Add(fmt.Errorf("snapshot.version_ttl cannot be negative"))
	}

	if errs.HasErrors() {
		return &errs
	}
	return nil
}

// Validate rejects negative thresholds. Zero means the default.
func (c *ThresholdsConfig) Validate() error {
	var errs ValidationErrors

	values := map[string]int{
		"occupation_min_count":     c.OccupationMinCount,
		"occupations_per_level":    c.OccupationsPerLevel,
		"yearly_level_min_count":   c.YearlyLevelMinCount,
		"yearly_occupations_limit": c.YearlyOccupationsLimit,
		"best_paying_min_count":    c.BestPayingMinCount,
		"employers_limit":          c.EmployersLimit,
		"employer_type_min_count":  c.EmployerTypeMinCount,
		"student_min_count":        c.StudentMinCount,
		"student_employers_limit":  c.StudentEmployersLimit,
		"state_min_count":          c.StateMinCount,
		"cities_limit":             c.CitiesLimit,
		"states_limit":             c.StatesLimit,
		"career_min_count":         c.CareerMinCount,
		"career_summary_limit":     c.CareerSummaryLimit,
		"career_growth_limit":      c.CareerGrowthLimit,
		"comparison_limit":         c.ComparisonLimit,
	}
	for name, v := range values {
		if v < 0 {
			errs.Add(fmt.Errorf("thresholds.%s cannot be negative, got %d", name, v))
		}
	}

	if errs.HasErrors() {
		return &errs
	}
	return nil
}

// Validate validates HTTP server configuration
func (c *ServerConfig) Validate() error {
	var errs ValidationErrors

	if c.Port < 1 || c.Port > 65535 {
		errs.Add(fmt.Errorf("server.port must be between 1-65535, got %d", c.Port))
	}

	if c.RateLimit < 0 {
		errs.Add(fmt.Errorf("server.rate_limit cannot be negative, got %d", c.RateLimit))
	}

	if c.RequestTimeout < 0 {
		errs.Add(fmt.Errorf("server.request_timeout cannot be negative"))
	}

	if errs.HasErrors() {
		return &errs
	}
	return nil
}

// Validate validates logging configuration
func (c *LoggingConfig) Validate() error {
	var errs ValidationErrors

	validLevels := []string{"debug", "info", "warn", "error"}
	levelValid := false
	for _, l := range validLevels {
		if c.Level == l {
			levelValid = true
			break
		}
	}
	if !levelValid && c.Level != "" {
		errs.Add(fmt.Errorf("logging.level must be one of: %v, got %s", validLevels, c.Level))
	}

	if c.MaxSize < 0 {
		errs.Add(fmt.Errorf("logging.max_size cannot be negative, got %d", c.MaxSize))
	}

	if c.MaxBackups < 0 {
		errs.Add(fmt.Errorf("logging.max_backups cannot be negative, got %d", c.MaxBackups))
	}

	if c.MaxAge < 0 {
		errs.Add(fmt.Errorf("logging.max_age cannot be negative, got %d", c.MaxAge))
	}

	if errs.HasErrors() {
		return &errs
	}
	return nil
}
