//-------------------------------------------------------------------------
//
// pgEdge Star Schema ETL
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package dimension derives surrogate-keyed dimension tables from the
// business keys found in filtered sales records.
//
// Surrogate keys run from 1 in order of first appearance of the business
// key in the filtered sequence. When one business key is seen with
// different attributes, the first-seen attributes are kept and the later
// observation is counted as a conflict.
package dimension

import (
	"context"
	"fmt"
	"iter"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pgEdge/pgedge-starschema/internal/etlerr"
	"github.com/pgEdge/pgedge-starschema/internal/logging"
	"github.com/pgEdge/pgedge-starschema/internal/model"
)

// Spec describes how to derive one dimension from a sales record.
type Spec[K comparable, A comparable] struct {
	Name  string
	Key   func(r model.SalesRecord) K
	Attrs func(r model.SalesRecord) A
}

// Table is a built dimension.
type Table[K comparable, A comparable] struct {
	Name string
	Rows []model.DimensionRow[K, A]

	// Conflicts counts observations whose attributes differed from the
	// first-seen attributes of the same business key.
	Conflicts int
}

// Len returns the number of rows. A nil table is empty.
func (t *Table[K, A]) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Index returns the business key to surrogate key lookup.
func (t *Table[K, A]) Index() map[K]int64 {
	if t == nil {
		return map[K]int64{}
	}
	idx := make(map[K]int64, len(t.Rows))
	for _, row := range t.Rows {
		idx[row.BusinessKey] = row.Key
	}
	return idx
}

// Build groups records by business key and assigns surrogate keys.
func Build[K comparable, A comparable](spec Spec[K, A], records iter.Seq[model.SalesRecord]) *Table[K, A] {
	log := logging.Stage("dimension")
	t := &Table[K, A]{Name: spec.Name}
	seen := make(map[K]int)

	for r := range records {
		key := spec.Key(r)
		attrs := spec.Attrs(r)

		if i, ok := seen[key]; ok {
			if t.Rows[i].Attrs != attrs {
				t.Conflicts++
				log.Debug().
					Str("dimension", spec.Name).
					Str("kind", string(etlerr.KindDimensionKeyConflict)).
					Str("business_key", fmt.Sprint(key)).
					Int64("order_id", r.OrderID).
					Msg("Business key seen with different attributes")
			}
			continue
		}

		seen[key] = len(t.Rows)
		t.Rows = append(t.Rows, model.DimensionRow[K, A]{
			Key:         int64(len(t.Rows) + 1),
			BusinessKey: key,
			Attrs:       attrs,
		})
	}
	return t
}

// Customers derives the customer dimension.
var Customers = Spec[int64, model.CustomerAttrs]{
	Name: model.DimCustomer,
	Key:  func(r model.SalesRecord) int64 { return r.CustomerID },
	Attrs: func(r model.SalesRecord) model.CustomerAttrs {
		return model.CustomerAttrs{Name: r.CustomerName, Email: r.CustomerEmail}
	},
}

// Products derives the product dimension.
var Products = Spec[int64, model.ProductAttrs]{
	Name: model.DimProduct,
	Key:  func(r model.SalesRecord) int64 { return r.ProductID },
	Attrs: func(r model.SalesRecord) model.ProductAttrs {
		return model.ProductAttrs{Name: r.ProductName}
	},
}

// Regions derives the region dimension.
var Regions = Spec[int64, model.RegionAttrs]{
	Name: model.DimRegion,
	Key:  func(r model.SalesRecord) int64 { return r.RegionID },
	Attrs: func(r model.SalesRecord) model.RegionAttrs {
		return model.RegionAttrs{Name: r.RegionName, Country: r.Country}
	},
}

// Dates derives the date dimension. The key is the order date itself.
var Dates = Spec[model.Date, model.NoAttrs]{
	Name:  model.DimDate,
	Key:   func(r model.SalesRecord) model.Date { return r.OrderDate },
	Attrs: func(model.SalesRecord) model.NoAttrs { return model.NoAttrs{} },
}

// Set holds the four dimensions of one run.
type Set struct {
	Customers *Table[int64, model.CustomerAttrs]
	Products  *Table[int64, model.ProductAttrs]
	Regions   *Table[int64, model.RegionAttrs]
	Dates     *Table[model.Date, model.NoAttrs]
}

// Counts returns the row count per dimension.
func (s *Set) Counts() map[string]int {
	return map[string]int{
		model.DimCustomer: s.Customers.Len(),
		model.DimProduct:  s.Products.Len(),
		model.DimRegion:   s.Regions.Len(),
		model.DimDate:     s.Dates.Len(),
	}
}

// Conflicts returns the conflict count per dimension.
func (s *Set) Conflicts() map[string]int {
	return map[string]int{
		model.DimCustomer: conflicts(s.Customers),
		model.DimProduct:  conflicts(s.Products),
		model.DimRegion:   conflicts(s.Regions),
		model.DimDate:     conflicts(s.Dates),
	}
}

func conflicts[K comparable, A comparable](t *Table[K, A]) int {
	if t == nil {
		return 0
	}
	return t.Conflicts
}

// BuildAll builds the four dimensions concurrently and returns once all of
// them are complete. Each build ranges over records independently, so the
// sequence must be safe to iterate from several goroutines.
func BuildAll(ctx context.Context, records iter.Seq[model.SalesRecord]) (*Set, error) {
	log := logging.Stage("dimension")
	start := time.Now()
	set := &Set{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		set.Customers = Build(Customers, guard(gctx, records))
		return gctx.Err()
	})
	g.Go(func() error {
		set.Products = Build(Products, guard(gctx, records))
		return gctx.Err()
	})
	g.Go(func() error {
		set.Regions = Build(Regions, guard(gctx, records))
		return gctx.Err()
	})
	g.Go(func() error {
		set.Dates = Build(Dates, guard(gctx, records))
		return gctx.Err()
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	counts := set.Counts()
	conflicts := set.Conflicts()
	for _, name := range model.DimensionNames {
		log.Info().
			Str("dimension", name).
			Int("rows", counts[name]).
			Int("conflicts", conflicts[name]).
			Msg("Built dimension")
	}
	log.Debug().Dur("elapsed", time.Since(start)).Msg("All dimensions built")
	return set, nil
}

// guard stops the sequence once ctx is done.
func guard(ctx context.Context, records iter.Seq[model.SalesRecord]) iter.Seq[model.SalesRecord] {
	return func(yield func(model.SalesRecord) bool) {
		for r := range records {
			if ctx.Err() != nil || !yield(r) {
				return
			}
		}
	}
}
