package mocks

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/h1bexplorer/internal/database"
)

// MockDatabase is a mock implementation of DatabaseInterface for testing.
// Conn returns the injected *sql.DB, which may be nil.
type MockDatabase struct {
	mu sync.RWMutex

	// Mock data
	version string
	conn    *sql.DB
	open    bool

	// Call tracking
	ConnCalls  int
	ResetCalls int
	PingCalls  int
	CloseCalls int

	// Configurable behavior
	ShouldFailOpen  bool
	ShouldFailReset bool
	ShouldFailPing  bool
	ShouldFailClose bool
}

// NewMockDatabase creates a new mock database
func NewMockDatabase() *MockDatabase {
	return &MockDatabase{version: "v1.1.3-mock"}
}

func (m *MockDatabase) connErr(op string) error {
	return &database.ConnectionError{Op: op, Backend: "mock", Target: "memory", Err: fmt.Errorf("mock %s error", op)}
}

// Conn mocks the Conn method
func (m *MockDatabase) Conn(ctx context.Context) (*sql.DB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ConnCalls++
	if m.ShouldFailOpen {
		return nil, m.connErr("open")
	}
	m.open = true
	return m.conn, nil
}

// Close mocks the Close method
func (m *MockDatabase) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CloseCalls++
	m.open = false
	if m.ShouldFailClose {
		return fmt.Errorf("mock close error")
	}
	return nil
}

// Reset mocks the Reset method
func (m *MockDatabase) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ResetCalls++
	if m.ShouldFailReset {
		m.open = false
		return m.connErr("reset")
	}
	m.open = true
	return nil
}

// IsOpen mocks the IsOpen method
func (m *MockDatabase) IsOpen() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.open
}

// Backend mocks the Backend method
func (m *MockDatabase) Backend() string {
	return "mock"
}

// Dialect mocks the Dialect method
func (m *MockDatabase) Dialect() database.Dialect {
	return database.DuckDBDialect
}

// GetVersion mocks the GetVersion method
func (m *MockDatabase) GetVersion(ctx context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.version, nil
}

// Ping mocks the Ping method
func (m *MockDatabase) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.PingCalls++
	if m.ShouldFailPing || m.ShouldFailOpen {
		return m.connErr("ping")
	}
	m.open = true
	return nil
}

// SetConn sets the connection returned by Conn
func (m *MockDatabase) SetConn(conn *sql.DB) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conn = conn
}
