//-------------------------------------------------------------------------
//
// pgEdge Star Schema ETL
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pgEdge/pgedge-starschema/internal/logging"
	"github.com/pgEdge/pgedge-starschema/pkg/version"
)

const metadataTable = "starschema_metadata"

// Metadata keys written by init.
const (
	KeyVersion       = "version"
	KeyInitializedAt = "initialized_at"
	KeySourceTable   = "source_table"
)

// ErrNotInitialized is returned when the metadata table is missing or empty.
var ErrNotInitialized = errors.New("database has not been initialized; run 'pgedge-starschema init' first")

const createMetadataTableSQL = `
CREATE TABLE IF NOT EXISTS starschema_metadata (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
)`

// Metadata returns the values recorded by init for sourceTable.
func Metadata(sourceTable string) map[string]string {
	return map[string]string{
		KeyVersion:       version.Short(),
		KeyInitializedAt: time.Now().UTC().Format(time.RFC3339),
		KeySourceTable:   sourceTable,
	}
}

// SaveMetadata saves initialization metadata to the database.
func SaveMetadata(ctx context.Context, pool *pgxpool.Pool, sourceTable string) error {
	_, err := pool.Exec(ctx, createMetadataTableSQL)
	if err != nil {
		return fmt.Errorf("failed to create metadata table: %w", err)
	}

	for key, value := range Metadata(sourceTable) {
		_, err := pool.Exec(ctx, `
            INSERT INTO starschema_metadata (key, value) VALUES ($1, $2)
            ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
        `, key, value)
		if err != nil {
			return fmt.Errorf("failed to save metadata %s: %w", key, err)
		}
	}

	logging.Debug().
		Str("source_table", sourceTable).
		Msg("Saved metadata")

	return nil
}

// GetMetadataValue retrieves a single metadata value by key.
func GetMetadataValue(ctx context.Context, pool *pgxpool.Pool, key string) (string, error) {
	var value string
	err := pool.QueryRow(ctx, `
        SELECT value FROM starschema_metadata WHERE key = $1
    `, key).Scan(&value)
	if err != nil {
		return "", err
	}
	return value, nil
}

// GetAllMetadata retrieves all metadata as a map.
func GetAllMetadata(ctx context.Context, pool *pgxpool.Pool) (map[string]string, error) {
	rows, err := pool.Query(ctx, `SELECT key, value FROM starschema_metadata`)
	if err != nil {
		return nil, err
	}

	metadata := make(map[string]string)
	var key, value string
	_, err = pgx.ForEachRow(rows, []any{&key, &value}, func() error {
		metadata[key] = value
		return nil
	})
	return metadata, err
}

// CheckInitialized returns ErrNotInitialized unless init has run against pool.
func CheckInitialized(ctx context.Context, pool *pgxpool.Pool) error {
	exists, err := MetadataExists(ctx, pool)
	if err != nil {
		return fmt.Errorf("failed to check metadata: %w", err)
	}
	if !exists {
		return ErrNotInitialized
	}
	if _, err := GetMetadataValue(ctx, pool, KeyInitializedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotInitialized
		}
		return fmt.Errorf("failed to read metadata: %w", err)
	}
	return nil
}

// DropMetadata drops the metadata table.
func DropMetadata(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", metadataTable))
	return err
}

// MetadataExists checks if the metadata table exists.
func MetadataExists(ctx context.Context, pool *pgxpool.Pool) (bool, error) {
	var exists bool
	err := pool.QueryRow(ctx, `
        SELECT EXISTS (
            SELECT FROM information_schema.tables
            WHERE table_name = $1
        )
    `, metadataTable).Scan(&exists)
	return exists, err
}
