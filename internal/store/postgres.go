//-------------------------------------------------------------------------
//
// pgEdge Star Schema ETL
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pgEdge/pgedge-starschema/internal/etlerr"
	"github.com/pgEdge/pgedge-starschema/internal/logging"
	"github.com/pgEdge/pgedge-starschema/internal/model"
)

// table maps a row type onto a PostgreSQL table.
type table[T any] struct {
	name    string
	columns []string
	orderBy string
	values  func(T) []any
	scan    pgx.RowToFunc[T]
}

func (t table[T]) selectSQL() string {
	return fmt.Sprintf("SELECT %s FROM %s ORDER BY %s",
		strings.Join(t.columns, ", "), t.name, t.orderBy)
}

// replaceIn truncates the table and bulk loads rows inside tx.
func (t table[T]) replaceIn(ctx context.Context, tx pgx.Tx, rows []T) error {
	if _, err := tx.Exec(ctx, "TRUNCATE "+t.name); err != nil {
		return fmt.Errorf("failed to truncate %s: %w", t.name, err)
	}
	if len(rows) == 0 {
		return nil
	}
	n, err := tx.CopyFrom(ctx, pgx.Identifier{t.name}, t.columns,
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			return t.values(rows[i]), nil
		}))
	if err != nil {
		return fmt.Errorf("failed to copy into %s: %w", t.name, err)
	}
	if n != int64(len(rows)) {
		return fmt.Errorf("copied %d of %d rows into %s", n, len(rows), t.name)
	}
	return nil
}

var stagingTable = table[model.SalesRecord]{
	name: "stg_sales",
	columns: []string{
		"order_id", "order_date", "customer_id", "customer_name", "customer_email",
		"product_id", "product_name", "region_id", "region_name", "country",
		"quantity", "unit_price", "total_amount",
	},
	orderBy: "order_id",
	values: func(r model.SalesRecord) []any {
		return []any{
			r.OrderID, r.OrderDate.Time(), r.CustomerID, r.CustomerName, r.CustomerEmail,
			r.ProductID, r.ProductName, r.RegionID, r.RegionName, r.Country,
			r.Quantity, r.UnitPrice, r.TotalAmount,
		}
	},
	scan: ScanSalesRecord,
}

// ScanSalesRecord scans a row selected with the staging column order.
func ScanSalesRecord(row pgx.CollectableRow) (model.SalesRecord, error) {
	var r model.SalesRecord
	var orderDate time.Time
	err := row.Scan(
		&r.OrderID, &orderDate, &r.CustomerID, &r.CustomerName, &r.CustomerEmail,
		&r.ProductID, &r.ProductName, &r.RegionID, &r.RegionName, &r.Country,
		&r.Quantity, &r.UnitPrice, &r.TotalAmount,
	)
	r.OrderDate = model.DateOf(orderDate)
	return r, err
}

// SalesColumns lists the raw sales columns in scan order.
func SalesColumns() []string {
	return append([]string(nil), stagingTable.columns...)
}

// SalesValues returns the column values of r in SalesColumns order.
func SalesValues(r model.SalesRecord) []any {
	return stagingTable.values(r)
}

var customerTable = table[model.CustomerRow]{
	name:    "dim_customer",
	columns: []string{"customer_key", "customer_id", "customer_name", "customer_email"},
	orderBy: "customer_key",
	values: func(r model.CustomerRow) []any {
		return []any{r.Key, r.BusinessKey, r.Attrs.Name, r.Attrs.Email}
	},
	scan: func(row pgx.CollectableRow) (model.CustomerRow, error) {
		var r model.CustomerRow
		err := row.Scan(&r.Key, &r.BusinessKey, &r.Attrs.Name, &r.Attrs.Email)
		return r, err
	},
}

var productTable = table[model.ProductRow]{
	name:    "dim_product",
	columns: []string{"product_key", "product_id", "product_name"},
	orderBy: "product_key",
	values: func(r model.ProductRow) []any {
		return []any{r.Key, r.BusinessKey, r.Attrs.Name}
	},
	scan: func(row pgx.CollectableRow) (model.ProductRow, error) {
		var r model.ProductRow
		err := row.Scan(&r.Key, &r.BusinessKey, &r.Attrs.Name)
		return r, err
	},
}

var regionTable = table[model.RegionRow]{
	name:    "dim_region",
	columns: []string{"region_key", "region_id", "region_name", "country"},
	orderBy: "region_key",
	values: func(r model.RegionRow) []any {
		return []any{r.Key, r.BusinessKey, r.Attrs.Name, r.Attrs.Country}
	},
	scan: func(row pgx.CollectableRow) (model.RegionRow, error) {
		var r model.RegionRow
		err := row.Scan(&r.Key, &r.BusinessKey, &r.Attrs.Name, &r.Attrs.Country)
		return r, err
	},
}

var dateTable = table[model.DateRow]{
	name:    "dim_date",
	columns: []string{"date_key", "full_date"},
	orderBy: "date_key",
	values: func(r model.DateRow) []any {
		return []any{r.Key, r.BusinessKey.Time()}
	},
	scan: func(row pgx.CollectableRow) (model.DateRow, error) {
		var r model.DateRow
		var d time.Time
		err := row.Scan(&r.Key, &d)
		r.BusinessKey = model.DateOf(d)
		return r, err
	},
}

var factTable = table[model.FactRow]{
	name: "fact_sales",
	columns: []string{
		"order_id", "quantity", "unit_price", "total",
		"customer_key", "product_key", "date_key", "region_key",
	},
	orderBy: "order_id",
	values: func(r model.FactRow) []any {
		return []any{
			r.OrderID, r.Quantity, r.UnitPrice, r.Total,
			r.CustomerKey, r.ProductKey, r.DateKey, r.RegionKey,
		}
	},
	scan: func(row pgx.CollectableRow) (model.FactRow, error) {
		var r model.FactRow
		err := row.Scan(
			&r.OrderID, &r.Quantity, &r.UnitPrice, &r.Total,
			&r.CustomerKey, &r.ProductKey, &r.DateKey, &r.RegionKey,
		)
		return r, err
	},
}

// pgDataset is a Dataset backed by one PostgreSQL table.
type pgDataset[T any] struct {
	pool  *pgxpool.Pool
	table table[T]
}

func (d pgDataset[T]) Replace(ctx context.Context, rows []T) error {
	err := pgx.BeginFunc(ctx, d.pool, func(tx pgx.Tx) error {
		return d.table.replaceIn(ctx, tx, rows)
	})
	if err != nil {
		return etlerr.Storage(d.table.name, err)
	}
	logging.Debug().
		Str("table", d.table.name).
		Int("rows", len(rows)).
		Msg("Replaced table")
	return nil
}

func (d pgDataset[T]) ReadAll(ctx context.Context) ([]T, error) {
	rows, err := d.pool.Query(ctx, d.table.selectSQL())
	if err != nil {
		return nil, etlerr.Storage(d.table.name, err)
	}
	out, err := pgx.CollectRows(rows, d.table.scan)
	if err != nil {
		return nil, etlerr.Storage(d.table.name, err)
	}
	return out, nil
}

// Postgres is a Store backed by a PostgreSQL database.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a Store using pool. The store takes ownership of the
// pool and closes it on Close.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Staging returns the staging dataset.
func (p *Postgres) Staging() Dataset[model.SalesRecord] {
	return pgDataset[model.SalesRecord]{pool: p.pool, table: stagingTable}
}

// Customers returns the customer dimension.
func (p *Postgres) Customers() Dataset[model.CustomerRow] {
	return pgDataset[model.CustomerRow]{pool: p.pool, table: customerTable}
}

// Products returns the product dimension.
func (p *Postgres) Products() Dataset[model.ProductRow] {
	return pgDataset[model.ProductRow]{pool: p.pool, table: productTable}
}

// Regions returns the region dimension.
func (p *Postgres) Regions() Dataset[model.RegionRow] {
	return pgDataset[model.RegionRow]{pool: p.pool, table: regionTable}
}

// Dates returns the date dimension.
func (p *Postgres) Dates() Dataset[model.DateRow] {
	return pgDataset[model.DateRow]{pool: p.pool, table: dateTable}
}

// Facts returns the fact dataset.
func (p *Postgres) Facts() Dataset[model.FactRow] {
	return pgDataset[model.FactRow]{pool: p.pool, table: factTable}
}

// PublishStar replaces the four dimensions and the fact table in one
// transaction. Readers see either the previous star or the new one.
func (p *Postgres) PublishStar(ctx context.Context, star Star) error {
	start := time.Now()
	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		if err := customerTable.replaceIn(ctx, tx, star.Customers); err != nil {
			return err
		}
		if err := productTable.replaceIn(ctx, tx, star.Products); err != nil {
			return err
		}
		if err := regionTable.replaceIn(ctx, tx, star.Regions); err != nil {
			return err
		}
		if err := dateTable.replaceIn(ctx, tx, star.Dates); err != nil {
			return err
		}
		return factTable.replaceIn(ctx, tx, star.Facts)
	})
	if err != nil {
		return etlerr.Storage("star", err)
	}

	logging.Debug().
		Int("customers", len(star.Customers)).
		Int("products", len(star.Products)).
		Int("regions", len(star.Regions)).
		Int("dates", len(star.Dates)).
		Int("facts", len(star.Facts)).
		Dur("elapsed", time.Since(start)).
		Msg("Published star schema")
	return nil
}

// runDetails is stored in the details JSONB column.
type runDetails struct {
	Dimensions  map[string]int   `json:"dimensions"`
	Conflicts   map[string]int   `json:"conflicts"`
	Unresolved  map[string]int64 `json:"unresolved"`
	DroppedRule map[string]int   `json:"dropped_by_rule"`
}

// RecordRun inserts run into the run history table.
func (p *Postgres) RecordRun(ctx context.Context, run RunRecord) error {
	details := runDetails{
		Dimensions:  run.Dimensions,
		Conflicts:   run.Conflicts,
		Unresolved:  run.Unresolved,
		DroppedRule: run.DroppedRule,
	}
	_, err := p.pool.Exec(ctx, `
        INSERT INTO starschema_runs
            (run_id, started_at, finished_at, source, staged, filtered, facts, details)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `, run.ID, run.StartedAt, run.FinishedAt, run.SourceName,
		run.Staged, run.Filtered, run.Facts, details)
	if err != nil {
		return etlerr.Storage("starschema_runs", err)
	}
	return nil
}

// LastRun returns the most recently started run.
func (p *Postgres) LastRun(ctx context.Context) (RunRecord, error) {
	var run RunRecord
	var details runDetails
	err := p.pool.QueryRow(ctx, `
        SELECT run_id, started_at, finished_at, source, staged, filtered, facts, details
        FROM starschema_runs
        ORDER BY started_at DESC
        LIMIT 1
    `).Scan(&run.ID, &run.StartedAt, &run.FinishedAt, &run.SourceName,
		&run.Staged, &run.Filtered, &run.Facts, &details)
	if errors.Is(err, pgx.ErrNoRows) {
		return RunRecord{}, ErrNoRuns
	}
	if err != nil {
		return RunRecord{}, etlerr.Storage("starschema_runs", err)
	}
	run.Dimensions = details.Dimensions
	run.Conflicts = details.Conflicts
	run.Unresolved = details.Unresolved
	run.DroppedRule = details.DroppedRule
	return run, nil
}

// Close closes the underlying pool.
func (p *Postgres) Close() {
	p.pool.Close()
}
