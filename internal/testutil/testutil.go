//-------------------------------------------------------------------------
//
// pgEdge Star Schema ETL
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package testutil provides PostgreSQL fixtures for integration tests:
// throwaway databases, an initialized warehouse and raw table seeding.
package testutil

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pgEdge/pgedge-starschema/internal/db"
	"github.com/pgEdge/pgedge-starschema/internal/model"
	"github.com/pgEdge/pgedge-starschema/internal/source"
	"github.com/pgEdge/pgedge-starschema/internal/store"
)

const (
	// DefaultTestConnString is used when PGEDGE_TEST_CONN is unset.
	DefaultTestConnString = "postgres://postgres@localhost:5432/postgres"

	// TestDBPrefix prefixes every throwaway database name.
	TestDBPrefix = "starschema_test_"
)

// ConnString returns the server connection string for integration tests.
func ConnString() string {
	if s := os.Getenv("PGEDGE_TEST_CONN"); s != "" {
		return s
	}
	return DefaultTestConnString
}

// PostgresAvailable reports whether the test server accepts connections.
func PostgresAvailable(ctx context.Context, connStr string) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return false
	}
	defer pool.Close()
	return pool.Ping(ctx) == nil
}

// DatabaseName returns a fresh database name for a test suite.
func DatabaseName(suite string) (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return TestDBPrefix + suite + "_" + hex.EncodeToString(b), nil
}

// WithDatabase returns connStr pointed at database name instead.
func WithDatabase(connStr, name string) (string, error) {
	cfg, err := pgx.ParseConfig(connStr)
	if err != nil {
		return "", err
	}
	// ConnString() does not reflect edits to the parsed config.
	auth := cfg.User
	if cfg.Password != "" {
		auth += ":" + cfg.Password
	}
	return fmt.Sprintf("postgres://%s@%s:%d/%s", auth, cfg.Host, cfg.Port, name), nil
}

// NewTestDB creates an empty database for the calling test and returns a
// pool connected to it. The test is skipped when no server is reachable.
// On cleanup the pool is closed and the database dropped, unless the test
// failed, in which case it is kept for inspection.
func NewTestDB(t *testing.T, suite string) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	base := ConnString()
	if !PostgresAvailable(ctx, base) {
		t.Skip("PostgreSQL not available, skipping integration test")
	}

	name, err := DatabaseName(suite)
	if err != nil {
		t.Fatalf("Failed to generate database name: %v", err)
	}
	if err := adminExec(ctx, base, "CREATE DATABASE "+pgx.Identifier{name}.Sanitize()); err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	connStr, err := WithDatabase(base, name)
	if err != nil {
		t.Fatalf("Failed to build test connection string: %v", err)
	}
	pool, err := db.ConnectWithMaxConns(ctx, connStr, 4)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	t.Cleanup(func() {
		pool.Close()
		if t.Failed() {
			t.Logf("Test failed - keeping database %s for diagnostics", name)
			return
		}
		dropDatabase(t, base, name)
	})
	return pool
}

// NewWarehouse returns a test database initialized the way the init
// command leaves it: raw table, staging and star tables, metadata.
func NewWarehouse(t *testing.T, suite, rawTable string) *pgxpool.Pool {
	t.Helper()
	pool := NewTestDB(t, suite)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := source.CreateRawTable(ctx, pool, rawTable); err != nil {
		t.Fatalf("Failed to create raw table %s: %v", rawTable, err)
	}
	if err := store.CreateSchema(ctx, pool); err != nil {
		t.Fatalf("Failed to create warehouse schema: %v", err)
	}
	if err := db.SaveMetadata(ctx, pool, rawTable); err != nil {
		t.Fatalf("Failed to save metadata: %v", err)
	}
	return pool
}

// InsertSales loads records into the raw table.
func InsertSales(t *testing.T, pool *pgxpool.Pool, rawTable string, records []model.SalesRecord) {
	t.Helper()
	n, err := source.InsertBatch(context.Background(), pool, rawTable, records)
	if err != nil {
		t.Fatalf("Failed to insert sales: %v", err)
	}
	if n != int64(len(records)) {
		t.Fatalf("Expected %d inserted rows, got %d", len(records), n)
	}
}

// CountRows returns the number of rows in table.
func CountRows(t *testing.T, pool *pgxpool.Pool, table string) int {
	t.Helper()
	var n int
	err := pool.QueryRow(context.Background(),
		"SELECT count(*) FROM "+pgx.Identifier{table}.Sanitize()).Scan(&n)
	if err != nil {
		t.Fatalf("Failed to count %s: %v", table, err)
	}
	return n
}

// adminExec runs sql on the server database named by base.
func adminExec(ctx context.Context, base, sql string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	pool, err := pgxpool.New(ctx, base)
	if err != nil {
		return err
	}
	defer pool.Close()
	_, err = pool.Exec(ctx, sql)
	return err
}

func dropDatabase(t *testing.T, base, name string) {
	t.Helper()
	ctx := context.Background()

	_ = adminExec(ctx, base, fmt.Sprintf(`
        SELECT pg_terminate_backend(pid)
        FROM pg_stat_activity
        WHERE datname = '%s' AND pid <> pg_backend_pid()
    `, name))
	if err := adminExec(ctx, base, "DROP DATABASE IF EXISTS "+pgx.Identifier{name}.Sanitize()); err != nil {
		t.Logf("Warning: Failed to drop test database %s: %v", name, err)
	}
}
