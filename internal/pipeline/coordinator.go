//-------------------------------------------------------------------------
//
// pgEdge Star Schema ETL
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package pipeline runs the star schema stages in order and reports the
// outcome of each run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/pgEdge/pgedge-starschema/internal/dimension"
	"github.com/pgEdge/pgedge-starschema/internal/etlerr"
	"github.com/pgEdge/pgedge-starschema/internal/fact"
	"github.com/pgEdge/pgedge-starschema/internal/logging"
	"github.com/pgEdge/pgedge-starschema/internal/model"
	"github.com/pgEdge/pgedge-starschema/internal/quality"
	"github.com/pgEdge/pgedge-starschema/internal/source"
	"github.com/pgEdge/pgedge-starschema/internal/staging"
	"github.com/pgEdge/pgedge-starschema/internal/store"
)

// Coordinator sequences the stages of a run.
type Coordinator struct {
	Store store.Store

	// Workers sizes the fact resolver pool. Zero means runtime.NumCPU().
	Workers int

	// Rules overrides the quality rules. Nil means quality.DefaultRules().
	Rules []quality.Rule
}

// RunResult summarizes a completed run.
type RunResult struct {
	RunID      string
	SourceName string
	StartedAt  time.Time
	Duration   time.Duration

	StagedCount   int
	FilteredCount int
	DroppedByRule map[string]int

	DimensionCounts map[string]int
	ConflictCounts  map[string]int

	FactCount        int
	UnresolvedCounts map[string]int64
}

// Warnings lists the data-quality conditions absorbed by the run.
func (r *RunResult) Warnings() []string {
	return Warnings(r.Record())
}

// Warnings lists the data-quality conditions recorded for a run.
func Warnings(rec store.RunRecord) []string {
	var out []string
	for _, name := range slices.Sorted(maps.Keys(rec.DroppedRule)) {
		if n := rec.DroppedRule[name]; n > 0 {
			out = append(out, fmt.Sprintf("%d staged records dropped by %s", n, name))
		}
	}
	for _, name := range model.DimensionNames {
		if n := rec.Conflicts[name]; n > 0 {
			out = append(out, fmt.Sprintf("%d %s key conflicts, first-seen attributes kept", n, name))
		}
	}
	for _, name := range model.DimensionNames {
		if n := rec.Unresolved[name]; n > 0 {
			out = append(out, fmt.Sprintf("%d facts with unresolved %s key", n, name))
		}
	}
	return out
}

// Record converts the result into a run history entry.
func (r *RunResult) Record() store.RunRecord {
	return store.RunRecord{
		ID:          r.RunID,
		StartedAt:   r.StartedAt,
		FinishedAt:  r.StartedAt.Add(r.Duration),
		SourceName:  r.SourceName,
		Staged:      r.StagedCount,
		Filtered:    r.FilteredCount,
		Facts:       r.FactCount,
		Dimensions:  r.DimensionCounts,
		Conflicts:   r.ConflictCounts,
		Unresolved:  r.UnresolvedCounts,
		DroppedRule: r.DroppedByRule,
	}
}

// Run executes one full batch from src. Only source and storage failures
// are returned as errors; if either occurs the previously published star
// is left in place.
func (c *Coordinator) Run(ctx context.Context, src source.Source) (*RunResult, error) {
	result := &RunResult{
		RunID:      uuid.NewString(),
		SourceName: src.Name(),
		StartedAt:  time.Now().UTC(),
	}
	log := logging.Stage("pipeline").With().Str("run_id", result.RunID).Logger()
	log.Info().Str("source", result.SourceName).Msg("Starting run")

	staged, err := staging.NewLoader(c.Store.Staging()).Load(ctx, src)
	if err != nil {
		return nil, err
	}

	rules := c.Rules
	if rules == nil {
		rules = quality.DefaultRules()
	}
	report := quality.Evaluate(staged, rules)
	filtered := quality.FilterWith(staged, rules)
	log.Info().
		Int("staged", report.Staged).
		Int("passed", report.Passed).
		Interface("dropped", report.Dropped).
		Msg("Applied quality rules")

	dims, err := dimension.BuildAll(ctx, filtered)
	if err != nil {
		return nil, fmt.Errorf("failed to build dimensions: %w", err)
	}

	resolver := &fact.Resolver{Workers: c.Workers}
	facts, err := resolver.Resolve(ctx, filtered, dims)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve facts: %w", err)
	}

	star := store.Star{
		Customers: dims.Customers.Rows,
		Products:  dims.Products.Rows,
		Regions:   dims.Regions.Rows,
		Dates:     dims.Dates.Rows,
		Facts:     facts.Facts,
	}
	if err := c.Store.PublishStar(ctx, star); err != nil {
		if !errors.Is(err, etlerr.ErrStorage) {
			err = etlerr.Storage("star", err)
		}
		log.Error().Err(err).Msg("Failed to publish star schema")
		return nil, err
	}

	result.StagedCount = report.Staged
	result.FilteredCount = report.Passed
	result.DroppedByRule = report.Dropped
	result.DimensionCounts = dims.Counts()
	result.ConflictCounts = dims.Conflicts()
	result.FactCount = len(facts.Facts)
	result.UnresolvedCounts = facts.Unresolved
	result.Duration = time.Since(result.StartedAt)

	if err := c.Store.RecordRun(ctx, result.Record()); err != nil {
		log.Warn().Err(err).Msg("Failed to record run history")
	}

	log.Info().
		Int("staged", result.StagedCount).
		Int("filtered", result.FilteredCount).
		Int("facts", result.FactCount).
		Dur("duration", result.Duration).
		Msg("Run complete")
	return result, nil
}
