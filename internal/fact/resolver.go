//-------------------------------------------------------------------------
//
// pgEdge Star Schema ETL
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package fact resolves filtered sales records into fact rows that carry
// dimension surrogate keys.
package fact

import (
	"context"
	"fmt"
	"iter"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pgEdge/pgedge-starschema/internal/dimension"
	"github.com/pgEdge/pgedge-starschema/internal/etlerr"
	"github.com/pgEdge/pgedge-starschema/internal/logging"
	"github.com/pgEdge/pgedge-starschema/internal/model"
)

// chunkSize is the number of records handed to a worker at a time.
const chunkSize = 512

// Resolver joins records against the dimension indexes.
type Resolver struct {
	// Workers is the size of the worker pool. Zero means runtime.NumCPU().
	Workers int
}

// WorkerCount returns the pool size used for a configured worker count.
func WorkerCount(configured int) int {
	if configured <= 0 {
		return runtime.NumCPU()
	}
	return configured
}

// Result is the output of one resolve pass.
type Result struct {
	// Facts holds one row per input record, in input order.
	Facts []model.FactRow

	// Unresolved counts business keys with no dimension row, per
	// dimension. Every dimension name is present.
	Unresolved map[string]int64
}

type indexes struct {
	customer map[int64]int64
	product  map[int64]int64
	region   map[int64]int64
	date     map[model.Date]int64
}

type counters struct {
	customer atomic.Int64
	product  atomic.Int64
	region   atomic.Int64
	date     atomic.Int64
}

// Resolve converts every record into a fact row. A business key missing
// from its dimension leaves that foreign key nil; the row is kept. The
// only error returned is the context's. A nil dims resolves nothing.
func (r *Resolver) Resolve(ctx context.Context, records iter.Seq[model.SalesRecord], dims *dimension.Set) (Result, error) {
	log := logging.Stage("fact")
	start := time.Now()

	if dims == nil {
		dims = &dimension.Set{}
	}

	idx := indexes{
		customer: dims.Customers.Index(),
		product:  dims.Products.Index(),
		region:   dims.Regions.Index(),
		date:     dims.Dates.Index(),
	}

	input := slices.Collect(records)
	facts := make([]model.FactRow, len(input))
	var unresolved counters

	workers := WorkerCount(r.Workers)

	jobs := make(chan int)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for lo := range jobs {
				hi := min(lo+chunkSize, len(input))
				for j := lo; j < hi; j++ {
					facts[j] = resolveOne(input[j], &idx, &unresolved)
				}
			}
		}()
	}

feed:
	for lo := 0; lo < len(input); lo += chunkSize {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- lo:
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	res := Result{
		Facts: facts,
		Unresolved: map[string]int64{
			model.DimCustomer: unresolved.customer.Load(),
			model.DimProduct:  unresolved.product.Load(),
			model.DimRegion:   unresolved.region.Load(),
			model.DimDate:     unresolved.date.Load(),
		},
	}

	ev := log.Info().
		Int("facts", len(facts)).
		Int("workers", workers).
		Dur("elapsed", time.Since(start))
	for _, name := range model.DimensionNames {
		ev = ev.Int64("unresolved_"+name, res.Unresolved[name])
	}
	ev.Msg("Resolved facts")

	return res, nil
}

func resolveOne(rec model.SalesRecord, idx *indexes, unresolved *counters) model.FactRow {
	row := model.FactRow{
		OrderID:   rec.OrderID,
		UnitPrice: rec.UnitPrice,
		Total:     rec.TotalAmount,
	}
	if rec.Quantity != nil {
		row.Quantity = *rec.Quantity
	}

	row.CustomerKey = lookup(idx.customer, rec.CustomerID, &unresolved.customer, model.DimCustomer, rec.OrderID)
	row.ProductKey = lookup(idx.product, rec.ProductID, &unresolved.product, model.DimProduct, rec.OrderID)
	row.RegionKey = lookup(idx.region, rec.RegionID, &unresolved.region, model.DimRegion, rec.OrderID)
	row.DateKey = lookup(idx.date, rec.OrderDate, &unresolved.date, model.DimDate, rec.OrderID)
	return row
}

func lookup[K comparable](idx map[K]int64, key K, miss *atomic.Int64, dim string, orderID int64) *int64 {
	if sk, ok := idx[key]; ok {
		return &sk
	}
	miss.Add(1)
	logging.Debug().
		Str("stage", "fact").
		Str("kind", string(etlerr.KindUnresolvedReference)).
		Str("dimension", dim).
		Str("business_key", fmt.Sprint(key)).
		Int64("order_id", orderID).
		Msg("Business key not found in dimension")
	return nil
}
