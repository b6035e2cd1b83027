package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
)

// DatabaseInterface is a read-only handle to the petitions table.
// Implementations open lazily on the first Conn call.
type DatabaseInterface interface {
	// Connection management
	Conn(ctx context.Context) (*sql.DB, error)
	Close() error
	Reset(ctx context.Context) error
	IsOpen() bool

	// Introspection
	Backend() string
	Dialect() Dialect
	GetVersion(ctx context.Context) (string, error)

	// Health check
	Ping(ctx context.Context) error
}

// DatabaseFactory builds a handle from a backend specific config.
type DatabaseFactory func(config interface{}) (DatabaseInterface, error)

var (
	registryMu       sync.RWMutex
	databaseRegistry = map[string]DatabaseFactory{}
)

// RegisterDatabase registers a backend with its factory function
func RegisterDatabase(dbType string, factory DatabaseFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	databaseRegistry[dbType] = factory
}

// CreateDatabase creates a handle for the named backend. The handle is not
// opened until first use.
func CreateDatabase(dbType string, config interface{}) (DatabaseInterface, error) {
	registryMu.RLock()
	factory, exists := databaseRegistry[dbType]
	registryMu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("unsupported database type: %s", dbType)
	}

	return factory(config)
}

// Backends lists registered backend names
func Backends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(databaseRegistry))
	for name := range databaseRegistry {
		names = append(names, name)
	}
	return names
}

// probeTable checks the configured table is visible through conn.
func probeTable(ctx context.Context, conn *sql.DB, table string) error {
	var n int
	err := conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM information_schema.tables WHERE table_name = ?", table).Scan(&n)
	if err != nil {
		return fmt.Errorf("failed to probe table %s: %w", table, err)
	}
	if n == 0 {
		return fmt.Errorf("table %s not found", table)
	}
	return nil
}
