//-------------------------------------------------------------------------
//
// pgEdge Star Schema ETL
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pgEdge/pgedge-starschema/internal/db"
	"github.com/pgEdge/pgedge-starschema/internal/logging"
	"github.com/pgEdge/pgedge-starschema/internal/source"
	"github.com/pgEdge/pgedge-starschema/internal/store"
)

var (
	initTable        string
	initDropExisting bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the raw sales table and the star schema",
	Long: `Create the raw sales source table, the staging table, the four
dimension tables, the fact table and the run history table.

Example:
  pgedge-starschema init --connection "postgres://..."
  pgedge-starschema init --drop-existing`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVar(&initTable, "table", "",
		"raw sales table name (default: raw_sales)")
	initCmd.Flags().BoolVar(&initDropExisting, "drop-existing", false,
		"drop existing tables before initialization")
}

func runInit(cmd *cobra.Command, args []string) error {
	// Override config with CLI flags
	if initTable != "" {
		cfg.Source.Table = initTable
	}
	if initDropExisting {
		cfg.Init.DropExisting = true
	}

	if err := cfg.ValidateInit(); err != nil {
		return err
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.Connection)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	if cfg.Init.DropExisting {
		logging.Info().Msg("Dropping existing schema")
		if err := store.DropSchema(ctx, pool); err != nil {
			return fmt.Errorf("failed to drop schema: %w", err)
		}
		if err := source.DropRawTable(ctx, pool, cfg.Source.Table); err != nil {
			return fmt.Errorf("failed to drop raw table: %w", err)
		}
		if err := db.DropMetadata(ctx, pool); err != nil {
			logging.Debug().Err(err).Msg("No metadata table to drop")
		}
	}

	logging.Info().Str("table", cfg.Source.Table).Msg("Creating raw sales table")
	if err := source.CreateRawTable(ctx, pool, cfg.Source.Table); err != nil {
		return fmt.Errorf("failed to create raw table: %w", err)
	}

	logging.Info().Msg("Creating star schema")
	if err := store.CreateSchema(ctx, pool); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	if err := db.SaveMetadata(ctx, pool, cfg.Source.Table); err != nil {
		return fmt.Errorf("failed to save metadata: %w", err)
	}

	logging.Info().
		Str("table", cfg.Source.Table).
		Msg("Database initialization complete")

	return nil
}
