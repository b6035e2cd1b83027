package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/h1bexplorer/internal/analytics"
	"github.com/h1bexplorer/internal/cache"
	"github.com/h1bexplorer/internal/database"
	"github.com/h1bexplorer/internal/logging"
	"github.com/h1bexplorer/internal/snapshot"
	"github.com/h1bexplorer/internal/storage"
)

// Supported database drivers
const (
	DriverDuckDB     = "duckdb"
	DriverClickHouse = "clickhouse"
)

// Config represents the complete application configuration
type Config struct {
	Database      DatabaseConfig   `yaml:"database"`
	DuckDB        DuckDBConfig     `yaml:"duckdb"`
	ClickHouse    ClickHouseConfig `yaml:"clickhouse"`
	Pool          PoolConfig       `yaml:"pool"`
	Cache         CacheConfig      `yaml:"cache"`
	Snapshot      SnapshotConfig   `yaml:"snapshot"`
	Thresholds    ThresholdsConfig `yaml:"thresholds"`
	Server        ServerConfig     `yaml:"server"`
	ServerLogging LoggingConfig    `yaml:"server_logging"`
	CLILogging    LoggingConfig    `yaml:"cli_logging"`
}

// DatabaseConfig selects the analytical backend
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // duckdb or clickhouse
	Table  string `yaml:"table"`
}

// DuckDBConfig holds the DuckDB file settings
type DuckDBConfig struct {
	Path          string `yaml:"path"`
	MemoryLimit   string `yaml:"memory_limit"`
	Threads       int    `yaml:"threads"`
	TempDirectory string `yaml:"temp_directory"`
}

// ClickHouseConfig holds ClickHouse database connection configuration
type ClickHouseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	UseSSL   bool   `yaml:"use_ssl,omitempty"`

	DialTimeout    string `yaml:"dial_timeout,omitempty"`
	ReadTimeout    string `yaml:"read_timeout,omitempty"`
	MaxMemoryUsage int64  `yaml:"max_memory_usage,omitempty"` // bytes
	MaxThreads     int    `yaml:"max_threads,omitempty"`
}

// PoolConfig sizes the worker pool and its circuit breaker
type PoolConfig struct {
	Workers            int           `yaml:"workers"`
	QueryTimeout       time.Duration `yaml:"query_timeout"`
	BreakerMaxFailures uint32        `yaml:"breaker_max_failures"`
	BreakerOpenTimeout time.Duration `yaml:"breaker_open_timeout"`
}

// CacheConfig holds cache configuration. Only BadgerCache is supported.
type CacheConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Path           string        `yaml:"path"`
	InMemory       bool          `yaml:"in_memory"`
	MaxMemoryMB    int           `yaml:"max_memory_mb"`
	ValueLogMaxMB  int           `yaml:"value_log_max_mb"`
	OptionsTTL     time.Duration `yaml:"options_ttl"`
	CascadeTTL     time.Duration `yaml:"cascade_ttl"`
	DataTTL        time.Duration `yaml:"data_ttl"`
	CompactOnClose bool          `yaml:"compact_on_close"`
	GCInterval     time.Duration `yaml:"gc_interval"`
	GCDiscardRatio float64       `yaml:"gc_discard_ratio"`
}

// SnapshotConfig controls the materialized career comparison. Snapshots
// live in the cache store and need it enabled.
type SnapshotConfig struct {
	Enabled      bool          `yaml:"enabled"`
	MaxAge       time.Duration `yaml:"max_age"`
	BuildTimeout time.Duration `yaml:"build_timeout"`
	VersionTTL   time.Duration `yaml:"version_ttl"` // how long a dataset fingerprint is trusted
	BuildOnStart bool          `yaml:"build_on_start"`
}

// ThresholdsConfig holds the minimum sample sizes and list lengths of the
// views. Zero values take the defaults.
type ThresholdsConfig struct {
	OccupationMinCount     int `yaml:"occupation_min_count"`
	OccupationsPerLevel    int `yaml:"occupations_per_level"`
	YearlyLevelMinCount    int `yaml:"yearly_level_min_count"`
	YearlyOccupationsLimit int `yaml:"yearly_occupations_limit"`
	BestPayingMinCount     int `yaml:"best_paying_min_count"`
	EmployersLimit         int `yaml:"employers_limit"`
	EmployerTypeMinCount   int `yaml:"employer_type_min_count"`
	StudentMinCount        int `yaml:"student_min_count"`
	StudentEmployersLimit  int `yaml:"student_employers_limit"`
	StateMinCount          int `yaml:"state_min_count"`
	CitiesLimit            int `yaml:"cities_limit"`
	StatesLimit            int `yaml:"states_limit"`
	CareerMinCount         int `yaml:"career_min_count"`
	CareerSummaryLimit     int `yaml:"career_summary_limit"`
	CareerGrowthLimit      int `yaml:"career_growth_limit"`
	ComparisonLimit        int `yaml:"comparison_limit"`
}

// ServerConfig holds the HTTP API settings
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	CORSOrigins    []string      `yaml:"cors_origins"`
	RateLimit      int           `yaml:"rate_limit"` // requests per minute per client IP, 0 disables
	RequestTimeout time.Duration `yaml:"request_timeout"`
	AdminToken     string        `yaml:"admin_token"` // empty disables the admin routes
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level"`       // debug, info, warn, error
	File       string `yaml:"file"`        // log file path (optional)
	MaxSize    int    `yaml:"max_size"`    // megabytes
	MaxBackups int    `yaml:"max_backups"` // number of old log files to keep
	MaxAge     int    `yaml:"max_age"`     // days
	Console    bool   `yaml:"console"`     // also log to console
	JSON       bool   `yaml:"json"`        // JSON format instead of text
}

// Default configurations

func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{Driver: DriverDuckDB, Table: database.DefaultTable}
}

func DefaultDuckDBConfig() DuckDBConfig {
	return DuckDBConfig{
		Path:        "data/h1b_data.duckdb",
		MemoryLimit: "1GB",
		Threads:     1,
	}
}

func DefaultClickHouseConfig() ClickHouseConfig {
	return ClickHouseConfig{
		Host:        "localhost",
		Port:        9000,
		Database:    "h1b",
		Username:    "default",
		DialTimeout: "10s",
		ReadTimeout: "2m",
		MaxThreads:  1,
	}
}

func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		Workers:            4,
		QueryTimeout:       time.Minute,
		BreakerMaxFailures: 5,
		BreakerOpenTimeout: 30 * time.Second,
	}
}

func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:        true,
		Path:           "./cache/badger",
		MaxMemoryMB:    64,
		ValueLogMaxMB:  256,
		OptionsTTL:     time.Hour,
		CascadeTTL:     30 * time.Minute,
		DataTTL:        15 * time.Minute,
		CompactOnClose: true,
		GCInterval:     10 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

func DefaultSnapshotConfig() SnapshotConfig {
	return SnapshotConfig{
		Enabled:      true,
		MaxAge:       24 * time.Hour,
		BuildTimeout: 2 * time.Minute,
		VersionTTL:   time.Minute,
	}
}

func DefaultThresholdsConfig() ThresholdsConfig {
	th := analytics.DefaultThresholds()
	return ThresholdsConfig{
		OccupationMinCount:     th.OccupationMinCount,
		OccupationsPerLevel:    th.OccupationsPerLevel,
		YearlyLevelMinCount:    th.YearlyLevelMinCount,
		YearlyOccupationsLimit: th.YearlyOccupationsLimit,
		BestPayingMinCount:     th.BestPayingMinCount,
		EmployersLimit:         th.EmployersLimit,
		EmployerTypeMinCount:   th.EmployerTypeMinCount,
		StudentMinCount:        th.StudentMinCount,
		StudentEmployersLimit:  th.StudentEmployersLimit,
		StateMinCount:          th.StateMinCount,
		CitiesLimit:            th.CitiesLimit,
		StatesLimit:            th.StatesLimit,
		CareerMinCount:         th.CareerMinCount,
		CareerSummaryLimit:     th.CareerSummaryLimit,
		CareerGrowthLimit:      th.CareerGrowthLimit,
		ComparisonLimit:        th.ComparisonLimit,
	}
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:           "0.0.0.0",
		Port:           8080,
		CORSOrigins:    []string{"*"},
		RateLimit:      120,
		RequestTimeout: 2 * time.Minute,
	}
}

func DefaultLoggingConfig() *LoggingConfig {
	return &LoggingConfig{
		Level:      "info",
		Console:    true,
		JSON:       false,
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     28,
	}
}

// Default returns a complete configuration with every default applied
func Default() *Config {
	return &Config{
		Database:      DefaultDatabaseConfig(),
		DuckDB:        DefaultDuckDBConfig(),
		ClickHouse:    DefaultClickHouseConfig(),
		Pool:          DefaultPoolConfig(),
		Cache:         DefaultCacheConfig(),
		Snapshot:      DefaultSnapshotConfig(),
		Thresholds:    DefaultThresholdsConfig(),
		Server:        DefaultServerConfig(),
		ServerLogging: *DefaultLoggingConfig(),
		CLILogging:    *DefaultLoggingConfig(),
	}
}

// LoadConfig loads configuration from a YAML file. A missing file yields
// the defaults.
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return Default(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// unset sections keep their defaults
	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// SaveConfig saves configuration to a YAML file
func SaveConfig(config *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// validate fills defaults that an explicit zero in the file would clear
func (c *Config) validate() error {
	if c.Database.Driver == "" {
		c.Database.Driver = DriverDuckDB
	}
	if c.Database.Table == "" {
		c.Database.Table = database.DefaultTable
	}

	if c.DuckDB.MemoryLimit == "" {
		c.DuckDB.MemoryLimit = "1GB"
	}
	if c.DuckDB.Threads == 0 {
		c.DuckDB.Threads = 1
	}

	if c.ClickHouse.Port == 0 {
		c.ClickHouse.Port = 9000
	}
	if c.ClickHouse.Username == "" {
		c.ClickHouse.Username = "default"
	}
	if c.ClickHouse.DialTimeout == "" {
		c.ClickHouse.DialTimeout = "10s"
	}
	if c.ClickHouse.ReadTimeout == "" {
		c.ClickHouse.ReadTimeout = "2m"
	}
	if c.ClickHouse.MaxThreads == 0 {
		c.ClickHouse.MaxThreads = 1
	}

	if c.Pool.Workers == 0 {
		c.Pool.Workers = 4
	}
	if c.Pool.BreakerMaxFailures == 0 {
		c.Pool.BreakerMaxFailures = 5
	}
	if c.Pool.BreakerOpenTimeout == 0 {
		c.Pool.BreakerOpenTimeout = 30 * time.Second
	}

	if c.Cache.Enabled && c.Cache.Path == "" && !c.Cache.InMemory {
		c.Cache.Path = "./cache/badger"
	}
	if c.Cache.MaxMemoryMB == 0 {
		c.Cache.MaxMemoryMB = 64
	}
	if c.Cache.ValueLogMaxMB == 0 {
		c.Cache.ValueLogMaxMB = 256
	}
	if c.Cache.GCInterval == 0 {
		c.Cache.GCInterval = 10 * time.Minute
	}
	if c.Cache.GCDiscardRatio == 0 {
		c.Cache.GCDiscardRatio = 0.5
	}

	if c.Snapshot.MaxAge == 0 {
		c.Snapshot.MaxAge = 24 * time.Hour
	}
	if c.Snapshot.BuildTimeout == 0 {
		c.Snapshot.BuildTimeout = 2 * time.Minute
	}
	if c.Snapshot.VersionTTL == 0 {
		c.Snapshot.VersionTTL = time.Minute
	}

	c.Thresholds.fillDefaults()

	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.RequestTimeout == 0 {
		c.Server.RequestTimeout = 2 * time.Minute
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	validateLogging := func(cfg *LoggingConfig, componentName string) error {
		if cfg.Level == "" {
			cfg.Level = "info"
		}
		levelValid := false
		for _, l := range validLevels {
			if cfg.Level == l {
				levelValid = true
				break
			}
		}
		if !levelValid {
			return fmt.Errorf("%s.level must be one of: %v, got: %s", componentName, validLevels, cfg.Level)
		}
		if !cfg.Console && cfg.File == "" {
			cfg.Console = true // Default to console if neither configured
		}
		if cfg.MaxSize == 0 {
			cfg.MaxSize = 100
		}
		if cfg.MaxBackups == 0 {
			cfg.MaxBackups = 3
		}
		if cfg.MaxAge == 0 {
			cfg.MaxAge = 28
		}
		return nil
	}

	if err := validateLogging(&c.ServerLogging, "server_logging"); err != nil {
		return err
	}
	if err := validateLogging(&c.CLILogging, "cli_logging"); err != nil {
		return err
	}
	return nil
}

func (t *ThresholdsConfig) fillDefaults() {
	d := DefaultThresholdsConfig()
	fill := func(v *int, def int) {
		if *v == 0 {
			*v = def
		}
	}
	fill(&t.OccupationMinCount, d.OccupationMinCount)
	fill(&t.OccupationsPerLevel, d.OccupationsPerLevel)
	fill(&t.YearlyLevelMinCount, d.YearlyLevelMinCount)
	fill(&t.YearlyOccupationsLimit, d.YearlyOccupationsLimit)
	fill(&t.BestPayingMinCount, d.BestPayingMinCount)
	fill(&t.EmployersLimit, d.EmployersLimit)
	fill(&t.EmployerTypeMinCount, d.EmployerTypeMinCount)
	fill(&t.StudentMinCount, d.StudentMinCount)
	fill(&t.StudentEmployersLimit, d.StudentEmployersLimit)
	fill(&t.StateMinCount, d.StateMinCount)
	fill(&t.CitiesLimit, d.CitiesLimit)
	fill(&t.StatesLimit, d.StatesLimit)
	fill(&t.CareerMinCount, d.CareerMinCount)
	fill(&t.CareerSummaryLimit, d.CareerSummaryLimit)
	fill(&t.CareerGrowthLimit, d.CareerGrowthLimit)
	fill(&t.ComparisonLimit, d.ComparisonLimit)
}

// CreateExampleConfig writes config.example.yaml with every default
func CreateExampleConfig(dir string) error {
	if err := SaveConfig(Default(), filepath.Join(dir, "config.example.yaml")); err != nil {
		return fmt.Errorf("failed to create example config: %w", err)
	}
	return nil
}

// ToDuckDBConfig converts the duckdb section to database.Config
func (c *Config) ToDuckDBConfig() *database.Config {
	return &database.Config{
		Path:          c.DuckDB.Path,
		Table:         c.Database.Table,
		MemoryLimit:   c.DuckDB.MemoryLimit,
		Threads:       c.DuckDB.Threads,
		TempDirectory: c.DuckDB.TempDirectory,
	}
}

// ToClickHouseDatabaseConfig converts ClickHouseConfig to database.ClickHouseConfig
func (c *ClickHouseConfig) ToClickHouseDatabaseConfig(table string) (*database.ClickHouseConfig, error) {
	dialTimeout, err := time.ParseDuration(c.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid dial_timeout: %w", err)
	}

	readTimeout, err := time.ParseDuration(c.ReadTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid read_timeout: %w", err)
	}

	return &database.ClickHouseConfig{
		Host:           c.Host,
		Port:           c.Port,
		Database:       c.Database,
		Table:          table,
		Username:       c.Username,
		Password:       c.Password,
		UseSSL:         c.UseSSL,
		DialTimeout:    dialTimeout,
		ReadTimeout:    readTimeout,
		MaxMemoryUsage: c.MaxMemoryUsage,
		MaxThreads:     c.MaxThreads,
	}, nil
}

// DatabaseFactory returns the per-worker handle factory for the configured
// driver. Handles open lazily on first query.
func (c *Config) DatabaseFactory() (func(id int) (database.DatabaseInterface, error), error) {
	switch c.Database.Driver {
	case DriverDuckDB:
		dbCfg := c.ToDuckDBConfig()
		return func(int) (database.DatabaseInterface, error) {
			return database.CreateDatabase(DriverDuckDB, dbCfg)
		}, nil
	case DriverClickHouse:
		chCfg, err := c.ClickHouse.ToClickHouseDatabaseConfig(c.Database.Table)
		if err != nil {
			return nil, err
		}
		return func(int) (database.DatabaseInterface, error) {
			return database.CreateDatabase(DriverClickHouse, chCfg)
		}, nil
	}
	return nil, fmt.Errorf("unknown database driver %q", c.Database.Driver)
}

// ToStorageConfig converts the pool section to storage.Config
func (c *Config) ToStorageConfig() *storage.Config {
	return &storage.Config{
		Table:              c.Database.Table,
		QueryTimeout:       c.Pool.QueryTimeout,
		BreakerMaxFailures: c.Pool.BreakerMaxFailures,
		BreakerOpenTimeout: c.Pool.BreakerOpenTimeout,
	}
}

// ToCacheConfig converts the cache section to cache.Config
func (c *CacheConfig) ToCacheConfig() *cache.Config {
	return &cache.Config{
		Enabled:        c.Enabled,
		Path:           c.Path,
		InMemory:       c.InMemory,
		MaxMemoryMB:    c.MaxMemoryMB,
		ValueLogMaxMB:  c.ValueLogMaxMB,
		CompactOnClose: c.CompactOnClose,
		NumGoroutines:  4,
		GCInterval:     c.GCInterval,
		GCDiscardRatio: c.GCDiscardRatio,
	}
}

// ToCacheStorageConfig converts the cache TTLs to storage.CacheStorageConfig
func (c *CacheConfig) ToCacheStorageConfig() *storage.CacheStorageConfig {
	d := storage.DefaultCacheStorageConfig()
	cfg := &storage.CacheStorageConfig{
		Enabled:    c.Enabled,
		OptionsTTL: c.OptionsTTL,
		CascadeTTL: c.CascadeTTL,
		DataTTL:    c.DataTTL,
	}
	if cfg.OptionsTTL == 0 {
		cfg.OptionsTTL = d.OptionsTTL
	}
	if cfg.CascadeTTL == 0 {
		cfg.CascadeTTL = d.CascadeTTL
	}
	if cfg.DataTTL == 0 {
		cfg.DataTTL = d.DataTTL
	}
	return cfg
}

// ToSnapshotConfig converts the snapshot section to snapshot.Config
func (c *SnapshotConfig) ToSnapshotConfig() *snapshot.Config {
	return &snapshot.Config{MaxAge: c.MaxAge, BuildTimeout: c.BuildTimeout, VersionTTL: c.VersionTTL}
}

// ToThresholds converts the thresholds section to analytics.Thresholds
func (t *ThresholdsConfig) ToThresholds() *analytics.Thresholds {
	return &analytics.Thresholds{
		OccupationMinCount:     t.OccupationMinCount,
		OccupationsPerLevel:    t.OccupationsPerLevel,
		YearlyLevelMinCount:    t.YearlyLevelMinCount,
		YearlyOccupationsLimit: t.YearlyOccupationsLimit,
		BestPayingMinCount:     t.BestPayingMinCount,
		EmployersLimit:         t.EmployersLimit,
		EmployerTypeMinCount:   t.EmployerTypeMinCount,
		StudentMinCount:        t.StudentMinCount,
		StudentEmployersLimit:  t.StudentEmployersLimit,
		StateMinCount:          t.StateMinCount,
		CitiesLimit:            t.CitiesLimit,
		StatesLimit:            t.StatesLimit,
		CareerMinCount:         t.CareerMinCount,
		CareerSummaryLimit:     t.CareerSummaryLimit,
		CareerGrowthLimit:      t.CareerGrowthLimit,
		ComparisonLimit:        t.ComparisonLimit,
	}
}

// ToLogging converts LoggingConfig to logging.Config
func (c *LoggingConfig) ToLogging() *logging.Config {
	return &logging.Config{
		Level:      c.Level,
		File:       c.File,
		MaxSize:    c.MaxSize,
		MaxBackups: c.MaxBackups,
		MaxAge:     c.MaxAge,
		Console:    c.Console,
		JSON:       c.JSON,
	}
}

// Address is the host:port the server listens on
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
