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

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema SQL for the staging area, the star schema and the run history.
// Fact foreign keys are nullable and not enforced: an unresolved reference
// is stored as NULL and every table is replaced independently.
const createSchemaSQL = `
-- Staging: verbatim copy of the source batch
CREATE TABLE IF NOT EXISTS stg_sales (
    order_id       BIGINT NOT NULL,
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
);

-- Customer dimension
CREATE TABLE IF NOT EXISTS dim_customer (
    customer_key   BIGINT PRIMARY KEY,
    customer_id    BIGINT NOT NULL UNIQUE,
    customer_name  VARCHAR(100) NOT NULL,
    customer_email VARCHAR(255) NOT NULL
);

-- Product dimension
CREATE TABLE IF NOT EXISTS dim_product (
    product_key  BIGINT PRIMARY KEY,
    product_id   BIGINT NOT NULL UNIQUE,
    product_name VARCHAR(100) NOT NULL
);

-- Region dimension
CREATE TABLE IF NOT EXISTS dim_region (
    region_key  BIGINT PRIMARY KEY,
    region_id   BIGINT NOT NULL UNIQUE,
    region_name VARCHAR(100) NOT NULL,
    country     VARCHAR(100) NOT NULL
);

-- Date dimension
CREATE TABLE IF NOT EXISTS dim_date (
    date_key  BIGINT PRIMARY KEY,
    full_date DATE NOT NULL UNIQUE
);

-- Sales facts
CREATE TABLE IF NOT EXISTS fact_sales (
    order_id     BIGINT NOT NULL,
    quantity     INTEGER NOT NULL,
    unit_price   NUMERIC(12,2) NOT NULL,
    total        NUMERIC(12,2) NOT NULL,
    customer_key BIGINT,
    product_key  BIGINT,
    date_key     BIGINT,
    region_key   BIGINT
);

-- Run history
CREATE TABLE IF NOT EXISTS starschema_runs (
    run_id      TEXT PRIMARY KEY,
    started_at  TIMESTAMPTZ NOT NULL,
    finished_at TIMESTAMPTZ NOT NULL,
    source      TEXT NOT NULL,
    staged      INTEGER NOT NULL,
    filtered    INTEGER NOT NULL,
    facts       INTEGER NOT NULL,
    details     JSONB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fact_sales_customer ON fact_sales(customer_key);
CREATE INDEX IF NOT EXISTS idx_fact_sales_product ON fact_sales(product_key);
CREATE INDEX IF NOT EXISTS idx_fact_sales_date ON fact_sales(date_key);
CREATE INDEX IF NOT EXISTS idx_fact_sales_region ON fact_sales(region_key);
CREATE INDEX IF NOT EXISTS idx_starschema_runs_started ON starschema_runs(started_at);
`

// Drop schema SQL
const dropSchemaSQL = `
DROP TABLE IF EXISTS fact_sales CASCADE;
DROP TABLE IF EXISTS dim_customer CASCADE;
DROP TABLE IF EXISTS dim_product CASCADE;
DROP TABLE IF EXISTS dim_region CASCADE;
DROP TABLE IF EXISTS dim_date CASCADE;
DROP TABLE IF EXISTS stg_sales CASCADE;
DROP TABLE IF EXISTS starschema_runs CASCADE;
`

// CreateSchema creates the staging, star and run history tables.
func CreateSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, createSchemaSQL)
	return err
}

// DropSchema drops every table created by CreateSchema.
func DropSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, dropSchemaSQL)
	return err
}
