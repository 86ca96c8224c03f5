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
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pgEdge/pgedge-starschema/internal/db"
	"github.com/pgEdge/pgedge-starschema/internal/pipeline"
	"github.com/pgEdge/pgedge-starschema/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show initialization metadata and the most recent run",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
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

	md, err := db.GetAllMetadata(ctx, pool)
	if err != nil {
		return fmt.Errorf("failed to read metadata: %w", err)
	}
	out := cmd.OutOrStdout()
	renderMetadata(out, md)
	fmt.Fprintln(out)

	last, err := store.NewPostgres(pool).LastRun(ctx)
	if errors.Is(err, store.ErrNoRuns) {
		fmt.Fprintln(out, "No runs recorded yet.")
		return nil
	}
	if err != nil {
		return err
	}

	renderRun(out, last, pipeline.Warnings(last))
	return nil
}
