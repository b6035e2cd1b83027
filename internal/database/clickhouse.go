package database

import (
	"context"
	"crypto/tls"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// ClickHouseDB wraps a read-only ClickHouse connection that is opened on first use
type ClickHouseDB struct {
	sqlDB  *sql.DB
	mu     sync.RWMutex
	config *ClickHouseConfig
}

// ClickHouseConfig holds ClickHouse connection configuration
type ClickHouseConfig struct {
	Host           string
	Port           int
	Database       string
	Table          string
	Username       string
	Password       string
	UseSSL         bool
	DialTimeout    time.Duration
	ReadTimeout    time.Duration
	MaxMemoryUsage int64 // bytes, 0 leaves the server default
	MaxThreads     int
}

func init() {
	RegisterDatabase("clickhouse", func(config interface{}) (DatabaseInterface, error) {
		chConfig, ok := config.(*ClickHouseConfig)
		if !ok {
			return nil, fmt.Errorf("clickhouse config must be *ClickHouseConfig")
		}
		return NewClickHouse(chConfig)
	})
}

// NewClickHouse creates a ClickHouse handle without opening it
func NewClickHouse(config *ClickHouseConfig) (*ClickHouseDB, error) {
	if config == nil || config.Host == "" {
		return nil, fmt.Errorf("clickhouse host is required")
	}
	cfg := *config
	if cfg.Table == "" {
		cfg.Table = DefaultTable
	}
	if cfg.MaxThreads <= 0 {
		cfg.MaxThreads = 1
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	return &ClickHouseDB{config: &cfg}, nil
}

func (db *ClickHouseDB) target() string {
	return fmt.Sprintf("%s:%d/%s", db.config.Host, db.config.Port, db.config.Database)
}

func (db *ClickHouseDB) options() *clickhouse.Options {
	// readonly=2 still lets the driver send per-query settings
	settings := clickhouse.Settings{
		"readonly":    2,
		"max_threads": db.config.MaxThreads,
	}
	if db.config.MaxMemoryUsage > 0 {
		settings["max_memory_usage"] = db.config.MaxMemoryUsage
	}

	options := &clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", db.config.Host, db.config.Port)},
		Auth: clickhouse.Auth{
			Database: db.config.Database,
			Username: db.config.Username,
			Password: db.config.Password,
		},
		Settings:    settings,
		DialTimeout: db.config.DialTimeout,
		ReadTimeout: db.config.ReadTimeout,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	}
	if db.config.UseSSL {
		options.TLS = &tls.Config{}
	}
	return options
}

func (db *ClickHouseDB) open(ctx context.Context) (*sql.DB, error) {
	sqlDB := clickhouse.OpenDB(db.options())

	// Pool settings must be applied after OpenDB, the driver rejects them in Options
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, &ConnectionError{Op: "open", Backend: "clickhouse", Target: db.target(),
			Err: fmt.Errorf("failed to ping ClickHouse: %w", err)}
	}
	if err := probeTable(ctx, sqlDB, db.config.Table); err != nil {
		sqlDB.Close()
		return nil, &ConnectionError{Op: "open", Backend: "clickhouse", Target: db.target(), Err: err}
	}
	return sqlDB, nil
}

// Conn returns the open connection, opening it on first use
func (db *ClickHouseDB) Conn(ctx context.Context) (*sql.DB, error) {
	db.mu.RLock()
	conn := db.sqlDB
	db.mu.RUnlock()
	if conn != nil {
		return conn, nil
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	if db.sqlDB != nil {
		return db.sqlDB, nil
	}
	conn, err := db.open(ctx)
	if err != nil {
		return nil, err
	}
	db.sqlDB = conn
	return conn, nil
}

// Close closes the ClickHouse connection. Safe to call repeatedly.
func (db *ClickHouseDB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.sqlDB == nil {
		return nil
	}
	err := db.sqlDB.Close()
	db.sqlDB = nil
	return err
}

// Reset closes and reopens the connection
func (db *ClickHouseDB) Reset(ctx context.Context) error {
	_ = db.Close()
	if _, err := db.Conn(ctx); err != nil {
		var ce *ConnectionError
		if errors.As(err, &ce) {
			ce.Op = "reset"
		}
		return err
	}
	return nil
}

// IsOpen reports whether the connection has been opened
func (db *ClickHouseDB) IsOpen() bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.sqlDB != nil
}

// Backend returns the backend name
func (db *ClickHouseDB) Backend() string {
	return "clickhouse"
}

// Dialect returns the ClickHouse SQL dialect
func (db *ClickHouseDB) Dialect() Dialect {
	return ClickHouseDialect
}

// GetVersion returns the ClickHouse server version
func (db *ClickHouseDB) GetVersion(ctx context.Context) (string, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return "", err
	}
	var version string
	if err := conn.QueryRowContext(ctx, "SELECT version()").Scan(&version); err != nil {
		return "", fmt.Errorf("failed to get ClickHouse version: %w", err)
	}
	return version, nil
}

// Ping checks the connection with a 5s ceiling
func (db *ClickHouseDB) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	conn, err := db.Conn(ctx)
	if err != nil {
		return err
	}
	if err := conn.PingContext(ctx); err != nil {
		return &ConnectionError{Op: "ping", Backend: "clickhouse", Target: db.target(), Err: err}
	}
	return nil
}
