//-------------------------------------------------------------------------
//
// pgEdge Star Schema ETL
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package source defines the raw sales source collaborator and its
// implementations.
package source

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pgEdge/pgedge-starschema/internal/datagen"
	"github.com/pgEdge/pgedge-starschema/internal/model"
)

// Source reads one batch of raw sales records.
type Source interface {
	// Name identifies the source in logs and run history.
	Name() string

	// ReadAll returns the full batch. Failures are reported as
	// etlerr.ErrSourceUnavailable.
	ReadAll(ctx context.Context) ([]model.SalesRecord, error)
}

// Options holds the settings a Factory may need.
type Options struct {
	// Pool is the database pool for database-backed sources.
	Pool *pgxpool.Pool

	// Table is the raw sales table name.
	Table string

	// Seed and Sales configure generated sources.
	Seed  uint64
	Sales datagen.SalesConfig
}

// Factory builds a Source from Options.
type Factory func(opts Options) (Source, error)

var (
	registry = make(map[string]Factory)
	mu       sync.RWMutex
)

// Register adds a source kind to the registry.
func Register(kind string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	registry[kind] = factory
}

// Get builds a source of the given kind.
func Get(kind string, opts Options) (Source, error) {
	mu.RLock()
	factory, ok := registry[kind]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown source kind: %s", kind)
	}
	return factory(opts)
}

// Kinds returns all registered source kinds, sorted.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()

	kinds := make([]string, 0, len(registry))
	for kind := range registry {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

// Slice is a Source over records held in memory.
type Slice struct {
	name    string
	records []model.SalesRecord
	err     error
}

// NewSlice returns a Source that yields a copy of records.
func NewSlice(name string, records []model.SalesRecord) *Slice {
	return &Slice{name: name, records: slices.Clone(records)}
}

// Failing returns a Source whose ReadAll always fails with err.
func Failing(name string, err error) *Slice {
	return &Slice{name: name, err: err}
}

// Name returns the source name.
func (s *Slice) Name() string {
	return s.name
}

// ReadAll returns a copy of the records.
func (s *Slice) ReadAll(ctx context.Context) ([]model.SalesRecord, error) {
	if s.err != nil {
		return nil, unavailable(s.name, s.err)
	}
	if err := ctx.Err(); err != nil {
		return nil, unavailable(s.name, err)
	}
	return slices.Clone(s.records), nil
}

// Generated is a Source that synthesizes a deterministic batch.
type Generated struct {
	seed uint64
	cfg  datagen.SalesConfig
}

// NewGenerated returns a generated source. The same seed and config always
// produce the same batch.
func NewGenerated(seed uint64, cfg datagen.SalesConfig) *Generated {
	return &Generated{seed: seed, cfg: cfg}
}

// Name returns the source name.
func (g *Generated) Name() string {
	return fmt.Sprintf("generated(seed=%d)", g.seed)
}

// ReadAll generates the batch.
func (g *Generated) ReadAll(ctx context.Context) ([]model.SalesRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable(g.Name(), err)
	}
	gen := datagen.NewSalesGenerator(datagen.NewFakerWithSeed(g.seed), g.cfg)
	return gen.Generate(), nil
}

func init() {
	Register("postgres", func(opts Options) (Source, error) {
		if opts.Pool == nil {
			return nil, fmt.Errorf("postgres source requires a database connection")
		}
		return NewPostgres(opts.Pool, opts.Table), nil
	})
	Register("generated", func(opts Options) (Source, error) {
		return NewGenerated(opts.Seed, opts.Sales), nil
	})
}
