//-------------------------------------------------------------------------
//
// pgEdge Star Schema ETL
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package pipeline

import (
	"context"
	"errors"
	"reflect"
	"slices"
	"testing"

	"github.com/google/uuid"

	"github.com/pgEdge/pgedge-starschema/internal/datagen"
	"github.com/pgEdge/pgedge-starschema/internal/etlerr"
	"github.com/pgEdge/pgedge-starschema/internal/model"
	"github.com/pgEdge/pgedge-starschema/internal/source"
	"github.com/pgEdge/pgedge-starschema/internal/store"
)

var dates = []model.Date{
	model.MustDate("2024-01-01"),
	model.MustDate("2024-01-02"),
	model.MustDate("2024-01-03"),
	model.MustDate("2024-01-04"),
}

func sale(order, customer int64, name string, qty *int) model.SalesRecord {
	return model.SalesRecord{
		OrderID:       order,
		OrderDate:     dates[order%int64(len(dates))],
		CustomerID:    customer,
		CustomerName:  name,
		CustomerEmail: name + "@example.com",
		ProductID:     order%3 + 1,
		ProductName:   "Product",
		RegionID:      order%2 + 1,
		RegionName:    "EUROPE",
		Country:       "FRANCE",
		Quantity:      qty,
		UnitPrice:     float64(order) + 0.25,
		TotalAmount:   float64(order) * 2,
	}
}

// tenWithOneNull returns 10 records where order 7 has a NULL quantity and
// is the only order for customer 70.
func tenWithOneNull() []model.SalesRecord {
	var out []model.SalesRecord
	for i := int64(1); i <= 10; i++ {
		if i == 7 {
			out = append(out, sale(i, 70, "Ghost", nil))
			continue
		}
		out = append(out, sale(i, i%4+1, "Customer", model.IntPtr(int(i))))
	}
	return out
}

func run(t *testing.T, st store.Store, records []model.SalesRecord) *RunResult {
	t.Helper()
	c := &Coordinator{Store: st, Workers: 2}
	res, err := c.Run(context.Background(), source.NewSlice("test", records))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return res
}

func TestRunNullQuantityScenario(t *testing.T) {
	mem := store.NewMemory()
	res := run(t, mem, tenWithOneNull())

	if res.StagedCount != 10 {
		t.Errorf("Expected StagedCount 10, got %d", res.StagedCount)
	}
	if res.FilteredCount != 9 {
		t.Errorf("Expected FilteredCount 9, got %d", res.FilteredCount)
	}
	if res.FactCount != 9 {
		t.Errorf("Expected FactCount 9, got %d", res.FactCount)
	}
	if res.DroppedByRule["quantity_not_null"] != 1 {
		t.Errorf("Expected 1 null quantity drop, got %v", res.DroppedByRule)
	}

	ctx := context.Background()
	staged, _ := mem.Staging().ReadAll(ctx)
	facts, _ := mem.Facts().ReadAll(ctx)
	if len(staged) != 10 || len(facts) != 9 {
		t.Errorf("Expected 10 staged and 9 facts, got %d and %d", len(staged), len(facts))
	}
}

func TestRunDimensionsUseFilteredRecordsOnly(t *testing.T) {
	mem := store.NewMemory()
	records := tenWithOneNull()
	res := run(t, mem, records)

	customers, _ := mem.Customers().ReadAll(context.Background())
	for _, c := range customers {
		if c.BusinessKey == 70 {
			t.Error("Customer seen only on a dropped record must not be in the dimension")
		}
	}

	distinct := map[int64]bool{}
	for _, r := range records {
		if r.Quantity != nil {
			distinct[r.CustomerID] = true
		}
	}
	if res.DimensionCounts[model.DimCustomer] != len(distinct) {
		t.Errorf("Expected %d customers, got %d", len(distinct), res.DimensionCounts[model.DimCustomer])
	}
	if len(customers) != len(distinct) {
		t.Errorf("Published %d customers, expected %d", len(customers), len(distinct))
	}
}

func TestRunMeasuresUnchanged(t *testing.T) {
	mem := store.NewMemory()
	records := tenWithOneNull()
	run(t, mem, records)

	byID := map[int64]model.SalesRecord{}
	for _, r := range records {
		byID[r.OrderID] = r
	}
	facts, _ := mem.Facts().ReadAll(context.Background())
	for _, f := range facts {
		src := byID[f.OrderID]
		if src.Quantity == nil {
			t.Fatalf("Fact emitted for dropped order %d", f.OrderID)
		}
		if f.Quantity != *src.Quantity || f.UnitPrice != src.UnitPrice || f.Total != src.TotalAmount {
			t.Errorf("Order %d measures changed: %+v", f.OrderID, f)
		}
	}
}

func TestRunAliceAlicia(t *testing.T) {
	records := []model.SalesRecord{
		sale(1, 5, "Alice", model.IntPtr(1)),
		sale(2, 5, "Alicia", model.IntPtr(2)),
	}
	mem := store.NewMemory()
	res := run(t, mem, records)

	customers, _ := mem.Customers().ReadAll(context.Background())
	if len(customers) != 1 {
		t.Fatalf("Expected 1 customer row, got %d", len(customers))
	}
	if customers[0].BusinessKey != 5 || customers[0].Attrs.Name != "Alice" {
		t.Errorf("Unexpected customer row: %+v", customers[0])
	}
	if res.ConflictCounts[model.DimCustomer] != 1 {
		t.Errorf("Expected 1 customer conflict, got %d", res.ConflictCounts[model.DimCustomer])
	}

	facts, _ := mem.Facts().ReadAll(context.Background())
	for _, f := range facts {
		if f.CustomerKey == nil || *f.CustomerKey != customers[0].Key {
			t.Errorf("Order %d does not reference the single customer row", f.OrderID)
		}
	}
}

func TestRunIdempotent(t *testing.T) {
	records := tenWithOneNull()
	first := store.NewMemory()
	second := store.NewMemory()
	r1 := run(t, first, records)
	r2 := run(t, second, records)

	if r1.FactCount != r2.FactCount {
		t.Errorf("Fact counts differ: %d vs %d", r1.FactCount, r2.FactCount)
	}
	if !reflect.DeepEqual(r1.DimensionCounts, r2.DimensionCounts) {
		t.Errorf("Dimension counts differ: %v vs %v", r1.DimensionCounts, r2.DimensionCounts)
	}

	ctx := context.Background()
	c1, _ := first.Customers().ReadAll(ctx)
	c2, _ := second.Customers().ReadAll(ctx)
	if !reflect.DeepEqual(businessKeys(c1), businessKeys(c2)) {
		t.Error("Customer business keys differ between runs")
	}
	if !injective(c1) {
		t.Error("Customer surrogate keys are not unique")
	}
}

func TestRunTwiceOnSameStoreReplaces(t *testing.T) {
	mem := store.NewMemory()
	run(t, mem, tenWithOneNull())
	res := run(t, mem, tenWithOneNull())

	facts, _ := mem.Facts().ReadAll(context.Background())
	if len(facts) != res.FactCount {
		t.Errorf("Expected %d facts after second run, got %d", res.FactCount, len(facts))
	}
	customers, _ := mem.Customers().ReadAll(context.Background())
	if len(customers) != res.DimensionCounts[model.DimCustomer] {
		t.Errorf("Customer dimension was appended to instead of replaced")
	}
}

func TestRunNoUnresolvedKeys(t *testing.T) {
	res := run(t, store.NewMemory(), tenWithOneNull())
	for _, name := range model.DimensionNames {
		if n, ok := res.UnresolvedCounts[name]; !ok || n != 0 {
			t.Errorf("Expected 0 unresolved %s, got %d (present=%v)", name, n, ok)
		}
	}
}

func TestRunSourceFailureKeepsPreviousStar(t *testing.T) {
	mem := store.NewMemory()
	prev := run(t, mem, tenWithOneNull())

	c := &Coordinator{Store: mem}
	_, err := c.Run(context.Background(), source.Failing("broken", errors.New("timeout")))
	if !errors.Is(err, etlerr.ErrSourceUnavailable) {
		t.Fatalf("Expected ErrSourceUnavailable, got %v", err)
	}

	ctx := context.Background()
	facts, _ := mem.Facts().ReadAll(ctx)
	staged, _ := mem.Staging().ReadAll(ctx)
	if len(facts) != prev.FactCount || len(staged) != prev.StagedCount {
		t.Errorf("Previous output changed after source failure")
	}
	last, err := mem.LastRun(ctx)
	if err != nil || last.ID != prev.RunID {
		t.Errorf("Failed run must not be recorded, last run %q", last.ID)
	}
}

func TestRunPublishFailureKeepsPreviousStar(t *testing.T) {
	mem := store.NewMemory()
	prev := run(t, mem, tenWithOneNull())

	mem.FailPublish(errors.New("disk full"))
	c := &Coordinator{Store: mem}
	_, err := c.Run(context.Background(), source.NewSlice("other", []model.SalesRecord{
		sale(100, 1, "New", model.IntPtr(1)),
	}))
	if !errors.Is(err, etlerr.ErrStorage) {
		t.Fatalf("Expected ErrStorage, got %v", err)
	}

	facts, _ := mem.Facts().ReadAll(context.Background())
	if len(facts) != prev.FactCount {
		t.Errorf("Expected previous %d facts to remain, got %d", prev.FactCount, len(facts))
	}
}

type historyFailingStore struct {
	*store.Memory
}

func (historyFailingStore) RecordRun(context.Context, store.RunRecord) error {
	return errors.New("history unavailable")
}

func TestRunHistoryFailureIsNotFatal(t *testing.T) {
	st := historyFailingStore{Memory: store.NewMemory()}
	res := run(t, st, tenWithOneNull())
	if res.FactCount != 9 {
		t.Errorf("Expected 9 facts, got %d", res.FactCount)
	}
}

func TestRunRecordsHistory(t *testing.T) {
	mem := store.NewMemory()
	res := run(t, mem, tenWithOneNull())

	if _, err := uuid.Parse(res.RunID); err != nil {
		t.Errorf("RunID is not a UUID: %v", err)
	}
	last, err := mem.LastRun(context.Background())
	if err != nil {
		t.Fatalf("LastRun failed: %v", err)
	}
	if last.ID != res.RunID || last.Staged != 10 || last.Filtered != 9 || last.Facts != 9 {
		t.Errorf("Unexpected run record: %+v", last)
	}
	if last.SourceName != "test" {
		t.Errorf("Expected source name test, got %q", last.SourceName)
	}
	if last.FinishedAt.Before(last.StartedAt) {
		t.Error("FinishedAt is before StartedAt")
	}
}

func TestRunEmptySource(t *testing.T) {
	res := run(t, store.NewMemory(), nil)
	if res.StagedCount != 0 || res.FilteredCount != 0 || res.FactCount != 0 {
		t.Errorf("Expected all zero counts, got %+v", res)
	}
	for _, name := range model.DimensionNames {
		if res.DimensionCounts[name] != 0 {
			t.Errorf("Expected empty %s dimension", name)
		}
	}
}

func TestRunGeneratedSource(t *testing.T) {
	cfg := datagen.SalesConfig{Rows: 500, Customers: 40, Products: 20, NullRatio: 0.05, DriftRatio: 0.05}
	records, err := source.NewGenerated(7, cfg).ReadAll(context.Background())
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	nulls := 0
	for _, r := range records {
		if r.Quantity == nil {
			nulls++
		}
	}

	c := &Coordinator{Store: store.NewMemory()}
	res, err := c.Run(context.Background(), source.NewGenerated(7, cfg))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.StagedCount != 500 {
		t.Errorf("Expected 500 staged, got %d", res.StagedCount)
	}
	if res.StagedCount-res.FilteredCount != nulls {
		t.Errorf("Expected %d dropped, got %d", nulls, res.StagedCount-res.FilteredCount)
	}
	if res.FactCount != res.FilteredCount {
		t.Errorf("Expected one fact per filtered record, got %d for %d", res.FactCount, res.FilteredCount)
	}
	if res.DimensionCounts[model.DimCustomer] > 40 {
		t.Errorf("More customers than the pool: %d", res.DimensionCounts[model.DimCustomer])
	}
}

func TestWarnings(t *testing.T) {
	res := &RunResult{
		DroppedByRule:    map[string]int{"quantity_not_null": 2, "other": 0},
		ConflictCounts:   map[string]int{model.DimCustomer: 1},
		UnresolvedCounts: map[string]int64{model.DimRegion: 3},
	}
	got := res.Warnings()
	want := []string{
		"2 staged records dropped by quantity_not_null",
		"1 customer key conflicts, first-seen attributes kept",
		"3 facts with unresolved region key",
	}
	if !slices.Equal(got, want) {
		t.Errorf("Unexpected warnings:\n got %q\nwant %q", got, want)
	}

	if w := (&RunResult{}).Warnings(); len(w) != 0 {
		t.Errorf("Expected no warnings, got %q", w)
	}
}

func businessKeys(rows []model.CustomerRow) []int64 {
	keys := make([]int64, 0, len(rows))
	for _, r := range rows {
		keys = append(keys, r.BusinessKey)
	}
	slices.Sort(keys)
	return keys
}

func injective(rows []model.CustomerRow) bool {
	seen := map[int64]bool{}
	for _, r := range rows {
		if seen[r.Key] {
			return false
		}
		seen[r.Key] = true
	}
	return true
}
