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
	"maps"
	"slices"
	"sync"

	"github.com/pgEdge/pgedge-starschema/internal/model"
)

// ErrNoRuns is returned by LastRun when no run has been recorded.
var ErrNoRuns = errors.New("no pipeline runs recorded")

// Memory is an in-process Store. All datasets share one lock so that
// PublishStar swaps the whole star at once for concurrent readers.
type Memory struct {
	mu sync.RWMutex

	staging   []model.SalesRecord
	customers []model.CustomerRow
	products  []model.ProductRow
	regions   []model.RegionRow
	dates     []model.DateRow
	facts     []model.FactRow
	runs      []RunRecord

	// failPublish, when set, makes PublishStar return the error. Tests only.
	failPublish error
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

// memDataset exposes one slice of a Memory store as a Dataset.
type memDataset[T any] struct {
	mu   *sync.RWMutex
	rows *[]T
}

func (d memDataset[T]) Replace(ctx context.Context, rows []T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cp := slices.Clone(rows)
	d.mu.Lock()
	*d.rows = cp
	d.mu.Unlock()
	return nil
}

func (d memDataset[T]) ReadAll(ctx context.Context) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(*d.rows), nil
}

// Staging returns the staging dataset.
func (m *Memory) Staging() Dataset[model.SalesRecord] {
	return memDataset[model.SalesRecord]{mu: &m.mu, rows: &m.staging}
}

// Customers returns the customer dimension.
func (m *Memory) Customers() Dataset[model.CustomerRow] {
	return memDataset[model.CustomerRow]{mu: &m.mu, rows: &m.customers}
}

// Products returns the product dimension.
func (m *Memory) Products() Dataset[model.ProductRow] {
	return memDataset[model.ProductRow]{mu: &m.mu, rows: &m.products}
}

// Regions returns the region dimension.
func (m *Memory) Regions() Dataset[model.RegionRow] {
	return memDataset[model.RegionRow]{mu: &m.mu, rows: &m.regions}
}

// Dates returns the date dimension.
func (m *Memory) Dates() Dataset[model.DateRow] {
	return memDataset[model.DateRow]{mu: &m.mu, rows: &m.dates}
}

// Facts returns the fact dataset.
func (m *Memory) Facts() Dataset[model.FactRow] {
	return memDataset[model.FactRow]{mu: &m.mu, rows: &m.facts}
}

// PublishStar replaces the star datasets under a single write lock.
func (m *Memory) PublishStar(ctx context.Context, star Star) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	customers := slices.Clone(star.Customers)
	products := slices.Clone(star.Products)
	regions := slices.Clone(star.Regions)
	dates := slices.Clone(star.Dates)
	facts := slices.Clone(star.Facts)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPublish != nil {
		return m.failPublish
	}
	m.customers = customers
	m.products = products
	m.regions = regions
	m.dates = dates
	m.facts = facts
	return nil
}

// RecordRun appends run to the history.
func (m *Memory) RecordRun(ctx context.Context, run RunRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	run.Dimensions = maps.Clone(run.Dimensions)
	run.Conflicts = maps.Clone(run.Conflicts)
	run.Unresolved = maps.Clone(run.Unresolved)
	run.DroppedRule = maps.Clone(run.DroppedRule)

	m.mu.Lock()
	m.runs = append(m.runs, run)
	m.mu.Unlock()
	return nil
}

// LastRun returns the most recently recorded run.
func (m *Memory) LastRun(ctx context.Context) (RunRecord, error) {
	if err := ctx.Err(); err != nil {
		return RunRecord{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.runs) == 0 {
		return RunRecord{}, ErrNoRuns
	}
	return m.runs[len(m.runs)-1], nil
}

// FailPublish makes subsequent PublishStar calls fail with err.
// Passing nil restores normal behaviour.
func (m *Memory) FailPublish(err error) {
	m.mu.Lock()
	m.failPublish = err
	m.mu.Unlock()
}

// Close is a no-op for the memory store.
func (m *Memory) Close() {}
