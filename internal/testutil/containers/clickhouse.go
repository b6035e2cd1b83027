package containers

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/h1bexplorer/internal/database"
	"github.com/h1bexplorer/internal/testutil"
	"github.com/h1bexplorer/internal/testutil/fixtures"
)

// ClickHouseServer is a scratch database loaded with fixture petitions. It
// lives on the server in H1B_CLICKHOUSE_ADDR when set, otherwise in a
// throwaway container. Tests skip when neither is available.
type ClickHouseServer struct {
	Host     string
	Port     int
	Database string
	Config   database.ClickHouseConfig
	admin    *sql.DB
}

// NewClickHouseServer creates a uniquely named database and loads petitions into it
func NewClickHouseServer(t *testing.T, petitions []fixtures.Petition) *ClickHouseServer {
	t.Helper()
	testutil.SkipIfShort(t, "needs a ClickHouse server")
	addr := os.Getenv("H1B_CLICKHOUSE_ADDR")
	if addr == "" {
		addr = startContainer(t)
	}

	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("Bad H1B_CLICKHOUSE_ADDR %q: %v", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("Bad ClickHouse port %q: %v", portStr, err)
	}

	dbName := fmt.Sprintf("h1b_test_%d", time.Now().UnixNano())
	s := &ClickHouseServer{
		Host:     host,
		Port:     port,
		Database: dbName,
		Config: database.ClickHouseConfig{
			Host:     host,
			Port:     port,
			Database: dbName,
			Table:    database.DefaultTable,
			Username: "default",
		},
	}

	// writable admin connection; the handles under test are read-only
	s.admin = clickhouse.OpenDB(&clickhouse.Options{
		Addr:        []string{addr},
		Auth:        clickhouse.Auth{Database: "default", Username: "default"},
		DialTimeout: 5 * time.Second,
	})
	t.Cleanup(s.cleanup)

	if err := s.load(petitions); err != nil {
		t.Fatalf("Failed to load ClickHouse fixtures: %v", err)
	}
	return s
}

// clickhouseImage is pinned so the fixture DDL keeps working
const clickhouseImage = "clickhouse/clickhouse-server:24.8"

// startContainer runs a ClickHouse server for the test and returns its
// native protocol address
func startContainer(t *testing.T) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        clickhouseImage,
			ExposedPorts: []string{"9000/tcp", "8123/tcp"},
			// lets the passwordless default user connect from outside
			Env:        map[string]string{"CLICKHOUSE_SKIP_USER_SETUP": "1"},
			WaitingFor: wait.ForHTTP("/ping").WithPort("8123/tcp").WithStartupTimeout(2 * time.Minute),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("ClickHouse container unavailable (set H1B_CLICKHOUSE_ADDR to use a server): %v", err)
	}
	t.Cleanup(func() {
		if err := c.Terminate(context.Background()); err != nil {
			t.Logf("Failed to terminate ClickHouse container: %v", err)
		}
	})

	host, err := c.Host(ctx)
	if err != nil {
		t.Fatalf("ClickHouse container host: %v", err)
	}
	port, err := c.MappedPort(ctx, "9000/tcp")
	if err != nil {
		t.Fatalf("ClickHouse container port: %v", err)
	}
	return net.JoinHostPort(host, port.Port())
}

func (s *ClickHouseServer) load(petitions []fixtures.Petition) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := s.admin.ExecContext(ctx, "CREATE DATABASE IF NOT EXISTS "+s.Database); err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}

	table := s.Database + "." + database.DefaultTable
	ddl := fmt.Sprintf(`CREATE TABLE %s (
		%s String,
		%s String,
		%s Bool,
		%s Int32,
		%s String,
		%s String,
		%s String,
		%s String,
		%s String,
		%s String,
		%s String,
		%s Float64,
		%s String
	) ENGINE = MergeTree ORDER BY %s`, table,
		database.ColCaseNumber, database.ColVisaClass, database.ColLottery, database.ColYear,
		database.ColEmployerParent, database.ColEmployerName, database.ColEmployerState,
		database.ColEmployerCity, database.ColJobTitle, database.ColNormalizedTitle,
		database.ColSOCTitle, database.ColPrevailingWage, database.ColWageLevel,
		database.ColCaseNumber)
	if _, err := s.admin.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	tx, err := s.admin.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin batch: %w", err)
	}
	batch, err := tx.PrepareContext(ctx, "INSERT INTO "+table)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}
	for _, p := range petitions {
		args := p.Args()
		args[3] = int32(p.Year)
		if _, err := batch.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to append %s: %w", p.CaseNumber, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}

// Open returns a read-only handle on the scratch database
func (s *ClickHouseServer) Open(t *testing.T) *database.ClickHouseDB {
	t.Helper()
	cfg := s.Config
	db, err := database.NewClickHouse(&cfg)
	if err != nil {
		t.Fatalf("Failed to create ClickHouse handle: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func (s *ClickHouseServer) cleanup() {
	if s.admin == nil {
		return
	}
	_, _ = s.admin.Exec("DROP DATABASE IF EXISTS " + s.Database)
	s.admin.Close()
}
