//-------------------------------------------------------------------------
//
// pgEdge Star Schema ETL
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package source

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pgEdge/pgedge-starschema/internal/datagen"
	"github.com/pgEdge/pgedge-starschema/internal/etlerr"
	"github.com/pgEdge/pgedge-starschema/internal/logging"
	"github.com/pgEdge/pgedge-starschema/internal/model"
	"github.com/pgEdge/pgedge-starschema/internal/store"
)

// DefaultTable is the raw sales table read by the postgres source.
const DefaultTable = "raw_sales"

const createRawTableSQL = `
CREATE TABLE IF NOT EXISTS %s (
    order_id       BIGINT PRIMARY KEY,
    order_date     DATE NOT NULL,
    customer_id    BIGINT NOT NULL,
    customer_name  VARCHAR(100) NOT NULL,
    customer_email VARCHAR(255) NOT NULL,
    product_id     BIGINT NOT NULL,
    product_name   VARCHAR(100) NOT NULL,
    region_id      BIGINT NOT NULL,
    region_name    VARCHAR(100) NOT NULL,
    country        VARCHAR(100) NOT NULL,
    quantity       INTEGER,
    unit_price     NUMERIC(12,2) NOT NULL,
    total_amount   NUMERIC(12,2) NOT NULL
)`

// Postgres reads raw sales from a PostgreSQL table.
type Postgres struct {
	pool  *pgxpool.Pool
	table string
}

// NewPostgres returns a source reading table through pool. An empty table
// name selects DefaultTable.
func NewPostgres(pool *pgxpool.Pool, table string) *Postgres {
	if table == "" {
		table = DefaultTable
	}
	return &Postgres{pool: pool, table: table}
}

// Name returns the source name.
func (p *Postgres) Name() string {
	return "postgres:" + p.table
}

// ReadAll selects every raw sales row ordered by order id.
func (p *Postgres) ReadAll(ctx context.Context) ([]model.SalesRecord, error) {
	start := time.Now()
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY order_id",
		strings.Join(store.SalesColumns(), ", "), quoteTable(p.table))

	rows, err := p.pool.Query(ctx, query)
	if err != nil {
		return nil, unavailable(p.Name(), err)
	}
	records, err := pgx.CollectRows(rows, store.ScanSalesRecord)
	if err != nil {
		return nil, unavailable(p.Name(), err)
	}

	logging.Debug().
		Str("table", p.table).
		Int("rows", len(records)).
		Dur("elapsed", time.Since(start)).
		Msg("Read raw sales")
	return records, nil
}

// CreateRawTable creates the raw sales table if it does not exist.
func CreateRawTable(ctx context.Context, pool *pgxpool.Pool, table string) error {
	_, err := pool.Exec(ctx, fmt.Sprintf(createRawTableSQL, quoteTable(table)))
	return err
}

// DropRawTable drops the raw sales table.
func DropRawTable(ctx context.Context, pool *pgxpool.Pool, table string) error {
	_, err := pool.Exec(ctx, "DROP TABLE IF EXISTS "+quoteTable(table))
	return err
}

// TruncateRawTable removes every row from the raw sales table.
func TruncateRawTable(ctx context.Context, pool *pgxpool.Pool, table string) error {
	_, err := pool.Exec(ctx, "TRUNCATE "+quoteTable(table))
	return err
}

// InsertBatch bulk loads records into the raw sales table.
func InsertBatch(ctx context.Context, pool *pgxpool.Pool, table string, records []model.SalesRecord) (int64, error) {
	return pool.CopyFrom(ctx, identifier(table), store.SalesColumns(),
		pgx.CopyFromSlice(len(records), func(i int) ([]any, error) {
			return store.SalesValues(records[i]), nil
		}))
}

// Seed generates rows synthetic records and loads them in batches.
func Seed(ctx context.Context, pool *pgxpool.Pool, table string, gen *datagen.SalesGenerator,
	rows int, cfg datagen.BatchInsertConfig) (int64, error) {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = datagen.DefaultBatchConfig().BatchSize
	}

	progress := datagen.NewProgressReporter(table, int64(rows), cfg.ProgressInterval)
	batch := make([]model.SalesRecord, 0, cfg.BatchSize)

	flush := func() error {
		n, err := InsertBatch(ctx, pool, table, batch)
		if err != nil {
			return fmt.Errorf("failed to insert batch into %s: %w", table, err)
		}
		progress.Update(n)
		batch = batch[:0]
		return nil
	}

	for i := 1; i <= rows; i++ {
		batch = append(batch, gen.Record(i))
		if len(batch) >= cfg.BatchSize {
			if err := flush(); err != nil {
				return progress.Rows(), err
			}
		}
	}
	if len(batch) > 0 {
		if err := flush(); err != nil {
			return progress.Rows(), err
		}
	}
	progress.Done()
	return progress.Rows(), nil
}

func identifier(table string) pgx.Identifier {
	return pgx.Identifier(strings.Split(table, "."))
}

func quoteTable(table string) string {
	return identifier(table).Sanitize()
}

func unavailable(name string, err error) error {
	return etlerr.Source(name, err)
}
