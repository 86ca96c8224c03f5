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
	"testing"
	"time"

	"github.com/pgEdge/pgedge-starschema/internal/model"
)

func TestMemoryReplaceAndReadAll(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	rows := []model.SalesRecord{
		{OrderID: 1, Quantity: model.IntPtr(2)},
		{OrderID: 2},
	}
	if err := m.Staging().Replace(ctx, rows); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}

	// Mutating the input must not affect stored data
	rows[0].OrderID = 99

	got, err := m.Staging().ReadAll(ctx)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(got))
	}
	if got[0].OrderID != 1 {
		t.Errorf("Stored row changed through caller slice: %d", got[0].OrderID)
	}

	// Replace is a full overwrite
	if err := m.Staging().Replace(ctx, rows[:1]); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}
	got, _ = m.Staging().ReadAll(ctx)
	if len(got) != 1 {
		t.Errorf("Expected 1 row after replace, got %d", len(got))
	}
}

func TestMemoryPublishStar(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	star := Star{
		Customers: []model.CustomerRow{{Key: 1, BusinessKey: 5}},
		Products:  []model.ProductRow{{Key: 1, BusinessKey: 7}},
		Regions:   []model.RegionRow{{Key: 1, BusinessKey: 3}},
		Dates:     []model.DateRow{{Key: 1, BusinessKey: model.MustDate("2024-01-01")}},
		Facts:     []model.FactRow{{OrderID: 10}},
	}
	if err := m.PublishStar(ctx, star); err != nil {
		t.Fatalf("PublishStar failed: %v", err)
	}

	customers, _ := m.Customers().ReadAll(ctx)
	facts, _ := m.Facts().ReadAll(ctx)
	dates, _ := m.Dates().ReadAll(ctx)
	if len(customers) != 1 || len(facts) != 1 || len(dates) != 1 {
		t.Errorf("Unexpected star sizes: customers=%d facts=%d dates=%d",
			len(customers), len(facts), len(dates))
	}
}

func TestMemoryPublishStarFailureKeepsPrevious(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	first := Star{Facts: []model.FactRow{{OrderID: 1}, {OrderID: 2}}}
	if err := m.PublishStar(ctx, first); err != nil {
		t.Fatalf("PublishStar failed: %v", err)
	}

	boom := errors.New("boom")
	m.FailPublish(boom)
	err := m.PublishStar(ctx, Star{Facts: []model.FactRow{{OrderID: 3}}})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected injected error, got %v", err)
	}

	facts, _ := m.Facts().ReadAll(ctx)
	if len(facts) != 2 {
		t.Errorf("Previous star should remain visible, got %d facts", len(facts))
	}
}

func TestMemoryRuns(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if _, err := m.LastRun(ctx); !errors.Is(err, ErrNoRuns) {
		t.Fatalf("Expected ErrNoRuns, got %v", err)
	}

	now := time.Now()
	dims := map[string]int{"customer": 3}
	_ = m.RecordRun(ctx, RunRecord{ID: "a", StartedAt: now, Dimensions: dims})
	_ = m.RecordRun(ctx, RunRecord{ID: "b", StartedAt: now.Add(time.Second)})

	dims["customer"] = 100

	last, err := m.LastRun(ctx)
	if err != nil {
		t.Fatalf("LastRun failed: %v", err)
	}
	if last.ID != "b" {
		t.Errorf("Expected last run 'b', got '%s'", last.ID)
	}
	if m.runs[0].Dimensions["customer"] != 3 {
		t.Error("RecordRun should copy maps")
	}
}

func TestMemoryCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := NewMemory()
	if err := m.Facts().Replace(ctx, nil); err == nil {
		t.Error("Expected error for cancelled context")
	}
	if err := m.PublishStar(ctx, Star{}); err == nil {
		t.Error("Expected error for cancelled context")
	}
}
