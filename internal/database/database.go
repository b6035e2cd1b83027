package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/marcboeker/go-duckdb"
)

// Config holds the DuckDB handle settings
type Config struct {
	Path          string
	Table         string
	MemoryLimit   string // e.g. "1GB"
	Threads       int
	TempDirectory string // empty disables spilling to disk
}

// DefaultConfig returns the resource limits the dashboard runs with
func DefaultConfig(path string) *Config {
	return &Config{
		Path:          path,
		Table:         DefaultTable,
		MemoryLimit:   "1GB",
		Threads:       1,
		TempDirectory: "",
	}
}

// DB wraps a read-only DuckDB connection that is opened on first use
type DB struct {
	config *Config
	conn   *sql.DB
	mu     sync.RWMutex
}

func init() {
	RegisterDatabase("duckdb", func(config interface{}) (DatabaseInterface, error) {
		cfg, ok := config.(*Config)
		if !ok {
			return nil, fmt.Errorf("duckdb config must be *database.Config")
		}
		return New(cfg)
	})
}

// New creates a DuckDB handle without opening it
func New(config *Config) (*DB, error) {
	if config == nil || config.Path == "" {
		return nil, fmt.Errorf("duckdb path is required")
	}
	cfg := *config
	if cfg.Table == "" {
		cfg.Table = DefaultTable
	}
	if cfg.Threads <= 0 {
		cfg.Threads = 1
	}
	if cfg.MemoryLimit == "" {
		cfg.MemoryLimit = "1GB"
	}
	return &DB{config: &cfg}, nil
}

// Open creates a handle and opens it immediately
func Open(ctx context.Context, config *Config) (*DB, error) {
	db, err := New(config)
	if err != nil {
		return nil, err
	}
	if _, err := db.Conn(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

// dsn builds the DuckDB connection string. Settings in the query string are
// applied before the database starts.
func (db *DB) dsn() string {
	q := url.Values{}
	q.Set("access_mode", "read_only")
	q.Set("threads", fmt.Sprintf("%d", db.config.Threads))
	q.Set("memory_limit", db.config.MemoryLimit)
	return db.config.Path + "?" + q.Encode()
}

func (db *DB) open(ctx context.Context) (*sql.DB, error) {
	connErr := func(err error) error {
		return &ConnectionError{Op: "open", Backend: "duckdb", Target: db.config.Path, Err: err}
	}

	if _, err := os.Stat(db.config.Path); err != nil {
		return nil, connErr(err)
	}

	tempDir := strings.ReplaceAll(db.config.TempDirectory, "'", "''")
	connector, err := duckdb.NewConnector(db.dsn(), func(execer driver.ExecerContext) error {
		_, err := execer.ExecContext(context.Background(), "SET temp_directory = '"+tempDir+"'", nil)
		return err
	})
	if err != nil {
		return nil, connErr(fmt.Errorf("failed to create connector: %w", err))
	}

	conn := sql.OpenDB(connector)
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, connErr(fmt.Errorf("failed to ping DuckDB: %w", err))
	}
	if err := probeTable(ctx, conn, db.config.Table); err != nil {
		conn.Close()
		return nil, connErr(err)
	}

	return conn, nil
}

// Conn returns the open connection, opening it on first use
func (db *DB) Conn(ctx context.Context) (*sql.DB, error) {
	db.mu.RLock()
	conn := db.conn
	db.mu.RUnlock()
	if conn != nil {
		return conn, nil
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	if db.conn != nil {
		return db.conn, nil
	}

	conn, err := db.open(ctx)
	if err != nil {
		return nil, err
	}
	db.conn = conn
	return conn, nil
}

// Close releases the connection. Closing a closed or never opened handle is a no-op.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.conn == nil {
		return nil
	}
	err := db.conn.Close()
	db.conn = nil
	return err
}

// Reset closes and reopens the connection
func (db *DB) Reset(ctx context.Context) error {
	closeErr := db.Close()
	if _, err := db.Conn(ctx); err != nil {
		var ce *ConnectionError
		if errors.As(err, &ce) {
			ce.Op = "reset"
		}
		return err
	}
	if closeErr != nil {
		return fmt.Errorf("reset succeeded but previous close failed: %w", closeErr)
	}
	return nil
}

// IsOpen reports whether the connection has been opened
func (db *DB) IsOpen() bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.conn != nil
}

// Backend returns the backend name
func (db *DB) Backend() string {
	return "duckdb"
}

// Dialect returns the DuckDB SQL dialect
func (db *DB) Dialect() Dialect {
	return DuckDBDialect
}

// Table returns the configured table name
func (db *DB) Table() string {
	return db.config.Table
}

// Ping checks the connection, opening it if needed
func (db *DB) Ping(ctx context.Context) error {
	conn, err := db.Conn(ctx)
	if err != nil {
		return err
	}
	if err := conn.PingContext(ctx); err != nil {
		return &ConnectionError{Op: "ping", Backend: "duckdb", Target: db.config.Path, Err: err}
	}
	return nil
}

// GetVersion returns the DuckDB version
func (db *DB) GetVersion(ctx context.Context) (string, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return "", err
	}

	var version string
	if err := conn.QueryRowContext(ctx, "SELECT version()").Scan(&version); err != nil {
		return "", fmt.Errorf("failed to get DuckDB version: %w", err)
	}
	return version, nil
}
