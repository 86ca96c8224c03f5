//-------------------------------------------------------------------------
//
// pgEdge Star Schema ETL
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package store implements the storage collaborator: staging, dimension
// and fact datasets with atomic full-replace semantics.
package store

import (
	"context"
	"time"

	"github.com/pgEdge/pgedge-starschema/internal/model"
)

// Dataset is a table that is only ever replaced wholesale.
type Dataset[T any] interface {
	// Replace atomically overwrites the dataset with rows.
	Replace(ctx context.Context, rows []T) error

	// ReadAll returns every row of the dataset.
	ReadAll(ctx context.Context) ([]T, error)
}

// Star is the published output of one run.
type Star struct {
	Customers []model.CustomerRow
	Products  []model.ProductRow
	Regions   []model.RegionRow
	Dates     []model.DateRow
	Facts     []model.FactRow
}

// RunRecord is the persisted summary of a completed run.
type RunRecord struct {
	ID          string
	StartedAt   time.Time
	FinishedAt  time.Time
	SourceName  string
	Staged      int
	Filtered    int
	Facts       int
	Dimensions  map[string]int
	Conflicts   map[string]int
	Unresolved  map[string]int64
	DroppedRule map[string]int
}

// Store gives access to every dataset the pipeline owns.
type Store interface {
	Staging() Dataset[model.SalesRecord]
	Customers() Dataset[model.CustomerRow]
	Products() Dataset[model.ProductRow]
	Regions() Dataset[model.RegionRow]
	Dates() Dataset[model.DateRow]
	Facts() Dataset[model.FactRow]

	// PublishStar replaces all four dimensions and the fact table in a
	// single atomic step. On error the previous star remains visible.
	PublishStar(ctx context.Context, star Star) error

	// RecordRun appends a run summary to the run history.
	RecordRun(ctx context.Context, run RunRecord) error

	// LastRun returns the most recent run, or ErrNoRuns.
	LastRun(ctx context.Context) (RunRecord, error)

	Close()
}

var (
	_ Store = (*Memory)(nil)
	_ Store = (*Postgres)(nil)
)
