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
	"time"

	"github.com/spf13/cobra"

	"github.com/pgEdge/pgedge-starschema/internal/config"
	"github.com/pgEdge/pgedge-starschema/internal/datagen"
	"github.com/pgEdge/pgedge-starschema/internal/db"
	"github.com/pgEdge/pgedge-starschema/internal/logging"
	"github.com/pgEdge/pgedge-starschema/internal/source"
)

var (
	seedRows       int
	seedSeed       uint64
	seedNullRatio  float64
	seedDriftRatio float64
	seedBatchSize  int
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Fill the raw sales table with synthetic transactions",
	Long: `Replace the contents of the raw sales table with a deterministic
batch of synthetic transactions. A small share of records carry a NULL
quantity or a drifted customer name so that a run exercises the quality
filter and dimension conflict counting.

Example:
  pgedge-starschema seed --rows 100000 --seed 42
  pgedge-starschema seed --rows 1000 --null-ratio 0.1 --drift-ratio 0.05`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().IntVar(&seedRows, "rows", 0,
		"number of records to generate (default: 10000)")
	seedCmd.Flags().Uint64Var(&seedSeed, "seed", 0,
		"random seed (default: 1)")
	seedCmd.Flags().Float64Var(&seedNullRatio, "null-ratio", -1,
		"fraction of records with a NULL quantity (default: 0.01)")
	seedCmd.Flags().Float64Var(&seedDriftRatio, "drift-ratio", -1,
		"fraction of records with a drifted customer name (default: 0.005)")
	seedCmd.Flags().IntVar(&seedBatchSize, "batch-size", 0,
		"rows per COPY batch (default: 1000)")
}

func runSeed(cmd *cobra.Command, args []string) error {
	applySeedFlags()

	if err := cfg.ValidateSeed(); err != nil {
		return err
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.Connection)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	if err := db.CheckInitialized(ctx, pool); err != nil {
		return err
	}

	salesCfg := salesConfig(cfg.Seed)
	logging.Info().
		Str("table", cfg.Source.Table).
		Uint64("seed", cfg.Seed.Seed).
		Str("shape", salesCfg.Describe()).
		Msg("Seeding raw sales")

	if err := source.TruncateRawTable(ctx, pool, cfg.Source.Table); err != nil {
		return fmt.Errorf("failed to truncate raw table: %w", err)
	}

	start := time.Now()
	gen := datagen.NewSalesGenerator(datagen.NewFakerWithSeed(cfg.Seed.Seed), salesCfg)
	batchCfg := datagen.DefaultBatchConfig()
	batchCfg.BatchSize = cfg.Seed.BatchSize

	n, err := source.Seed(ctx, pool, cfg.Source.Table, gen, cfg.Seed.Rows, batchCfg)
	if err != nil {
		return err
	}

	logging.Info().
		Int64("rows", n).
		Dur("elapsed", time.Since(start)).
		Msg("Seeding complete")
	return nil
}

// applySeedFlags copies explicitly set generator flags into cfg.
func applySeedFlags() {
	if seedRows > 0 {
		cfg.Seed.Rows = seedRows
	}
	if seedSeed > 0 {
		cfg.Seed.Seed = seedSeed
	}
	if seedNullRatio >= 0 {
		cfg.Seed.NullRatio = seedNullRatio
	}
	if seedDriftRatio >= 0 {
		cfg.Seed.DriftRatio = seedDriftRatio
	}
	if seedBatchSize > 0 {
		cfg.Seed.BatchSize = seedBatchSize
	}
}

func salesConfig(s config.SeedConfig) datagen.SalesConfig {
	sc := datagen.DefaultSalesConfig()
	sc.Rows = s.Rows
	sc.Customers = s.Customers
	sc.Products = s.Products
	sc.NullRatio = s.NullRatio
	sc.DriftRatio = s.DriftRatio
	return sc
}
