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
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/pgEdge/pgedge-starschema/internal/config"
	"github.com/pgEdge/pgedge-starschema/internal/db"
	"github.com/pgEdge/pgedge-starschema/internal/fact"
	"github.com/pgEdge/pgedge-starschema/internal/logging"
	"github.com/pgEdge/pgedge-starschema/internal/pipeline"
	"github.com/pgEdge/pgedge-starschema/internal/source"
	"github.com/pgEdge/pgedge-starschema/internal/store"
)

var (
	runSourceKind string
	runStoreKind  string
	runTable      string
	runWorkers    int
	runRows       int
	runGenSeed    uint64
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the ETL pipeline once",
	Long: `Run one full batch: stage the source records, filter them, build the
customer, product, region and date dimensions and publish the fact table.
The star schema is replaced atomically; if the source cannot be read or the
publish fails, the previous star schema stays in place.

Sources:
  postgres  - read the raw sales table (default)
  generated - synthesize a deterministic batch in memory

Stores:
  postgres  - write to the tables created by 'init' (default)
  memory    - keep results in process; useful for dry runs

Example:
  pgedge-starschema run
  pgedge-starschema run --source generated --store memory --rows 50000
  pgedge-starschema run --workers 8`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runSourceKind, "source", "",
		"source kind: postgres or generated")
	runCmd.Flags().StringVar(&runStoreKind, "store", "",
		"store kind: postgres or memory")
	runCmd.Flags().StringVar(&runTable, "table", "",
		"raw sales table for the postgres source")
	runCmd.Flags().IntVar(&runWorkers, "workers", 0,
		"fact resolver workers (default: number of CPUs)")
	runCmd.Flags().IntVar(&runRows, "rows", 0,
		"records to generate for the generated source")
	runCmd.Flags().Uint64Var(&runGenSeed, "seed", 0,
		"random seed for the generated source")
}

func runRun(cmd *cobra.Command, args []string) error {
	// Override config with CLI flags
	if runSourceKind != "" {
		cfg.Source.Kind = runSourceKind
	}
	if runStoreKind != "" {
		cfg.Store.Kind = runStoreKind
	}
	if runTable != "" {
		cfg.Source.Table = runTable
	}
	if runWorkers > 0 {
		cfg.Pipeline.Workers = runWorkers
	}
	if runRows > 0 {
		cfg.Seed.Rows = runRows
	}
	if runGenSeed > 0 {
		cfg.Seed.Seed = runGenSeed
	}

	if err := cfg.ValidateRun(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			logging.Info().
				Str("signal", sig.String()).
				Msg("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	var pool *pgxpool.Pool
	if cfg.NeedsDatabase() {
		var err error
		pool, err = db.Connect(ctx, cfg.Connection)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pool.Close()

		if err := db.CheckInitialized(ctx, pool); err != nil {
			return err
		}
	}

	src, err := source.Get(cfg.Source.Kind, source.Options{
		Pool:  pool,
		Table: cfg.Source.Table,
		Seed:  cfg.Seed.Seed,
		Sales: salesConfig(cfg.Seed),
	})
	if err != nil {
		return err
	}

	st, err := openStore(cfg.Store, pool)
	if err != nil {
		return err
	}
	defer st.Close()

	logging.Info().
		Str("source", src.Name()).
		Str("store", cfg.Store.Kind).
		Int("workers", fact.WorkerCount(cfg.Pipeline.Workers)).
		Msg("Starting pipeline")

	coordinator := &pipeline.Coordinator{
		Store:   st,
		Workers: cfg.Pipeline.Workers,
	}
	result, err := coordinator.Run(ctx, src)
	if err != nil {
		return fmt.Errorf("pipeline run failed: %w", err)
	}

	renderRun(cmd.OutOrStdout(), result.Record(), result.Warnings())
	return nil
}

func openStore(sc config.StoreConfig, pool *pgxpool.Pool) (store.Store, error) {
	switch sc.Kind {
	case config.KindMemory:
		return store.NewMemory(), nil
	case config.KindPostgres:
		if pool == nil {
			return nil, fmt.Errorf("postgres store requires a database connection")
		}
		return store.NewPostgres(pool), nil
	default:
		return nil, fmt.Errorf("unknown store kind: %s", sc.Kind)
	}
}
