//-------------------------------------------------------------------------
//
// pgEdge Star Schema ETL
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package quality

import (
	"bytes"
	"reflect"
	"slices"
	"strings"
	"testing"

	"github.com/pgEdge/pgedge-starschema/internal/etlerr"
	"github.com/pgEdge/pgedge-starschema/internal/logging"
	"github.com/pgEdge/pgedge-starschema/internal/model"
)

func batch() []model.SalesRecord {
	return []model.SalesRecord{
		{OrderID: 1, Quantity: model.IntPtr(1)},
		{OrderID: 2},
		{OrderID: 3, Quantity: model.IntPtr(0)},
		{OrderID: 4},
		{OrderID: 5, Quantity: model.IntPtr(7)},
	}
}

func TestFilterDropsNullQuantity(t *testing.T) {
	got := slices.Collect(Filter(batch()))
	if len(got) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(got))
	}
	for _, r := range got {
		if r.Quantity == nil {
			t.Errorf("Record %d with null quantity passed the filter", r.OrderID)
		}
	}
	ids := []int64{got[0].OrderID, got[1].OrderID, got[2].OrderID}
	if !reflect.DeepEqual(ids, []int64{1, 3, 5}) {
		t.Errorf("Unexpected order ids: %v", ids)
	}
}

func TestFilterRecordsUnchanged(t *testing.T) {
	staged := batch()
	for r := range Filter(staged) {
		idx := slices.IndexFunc(staged, func(s model.SalesRecord) bool { return s.OrderID == r.OrderID })
		if !reflect.DeepEqual(r, staged[idx]) {
			t.Errorf("Record %d was modified by the filter", r.OrderID)
		}
	}
}

func TestFilterIsReevaluated(t *testing.T) {
	staged := batch()
	seq := Filter(staged)

	first := len(slices.Collect(seq))
	staged[1].Quantity = model.IntPtr(4)
	second := len(slices.Collect(seq))

	if first != 3 || second != 4 {
		t.Errorf("Expected 3 then 4 records, got %d then %d", first, second)
	}
}

func TestFilterEarlyStop(t *testing.T) {
	n := 0
	for range Filter(batch()) {
		n++
		break
	}
	if n != 1 {
		t.Errorf("Expected loop to stop after 1 record, got %d", n)
	}
}

func TestFilterEmpty(t *testing.T) {
	if got := slices.Collect(Filter(nil)); len(got) != 0 {
		t.Errorf("Expected empty sequence, got %d records", len(got))
	}
}

func TestEvaluate(t *testing.T) {
	rep := Evaluate(batch(), DefaultRules())
	if rep.Staged != 5 {
		t.Errorf("Expected Staged 5, got %d", rep.Staged)
	}
	if rep.Passed != 3 {
		t.Errorf("Expected Passed 3, got %d", rep.Passed)
	}
	if rep.Dropped["quantity_not_null"] != 2 {
		t.Errorf("Expected 2 drops, got %d", rep.Dropped["quantity_not_null"])
	}
	if rep.Staged-rep.Passed != rep.Dropped["quantity_not_null"] {
		t.Error("Staged - Passed should equal null quantity drops")
	}
}

func TestEvaluateAttributesFirstFailingRule(t *testing.T) {
	positive := Rule{
		Name:  "positive_price",
		Valid: func(r model.SalesRecord) bool { return r.UnitPrice > 0 },
	}
	staged := []model.SalesRecord{
		{OrderID: 1, UnitPrice: 0},
		{OrderID: 2, UnitPrice: 1, Quantity: model.IntPtr(1)},
	}
	rep := Evaluate(staged, []Rule{QuantityNotNull, positive})
	if rep.Dropped["quantity_not_null"] != 1 || rep.Dropped["positive_price"] != 0 {
		t.Errorf("Unexpected drop attribution: %v", rep.Dropped)
	}
	if got := slices.Collect(FilterWith(staged, []Rule{QuantityNotNull, positive})); len(got) != 1 {
		t.Errorf("Expected 1 record, got %d", len(got))
	}
}

func TestEvaluateCountsNullMeasureKind(t *testing.T) {
	var buf bytes.Buffer
	logging.Init(logging.Config{Level: "debug", Output: &buf})
	t.Cleanup(func() { logging.Init(logging.DefaultConfig()) })

	rep := Evaluate(batch(), DefaultRules())
	if rep.ByKind[etlerr.KindNullMeasure] != 2 {
		t.Errorf("Expected 2 null measure drops, got %d", rep.ByKind[etlerr.KindNullMeasure])
	}
	if n := strings.Count(buf.String(), string(etlerr.KindNullMeasure)); n != 2 {
		t.Errorf("Expected 2 drop log lines tagged %s, got %d:\n%s",
			etlerr.KindNullMeasure, n, buf.String())
	}
}

func TestEvaluateRuleWithoutKind(t *testing.T) {
	untagged := Rule{
		Name:  "positive_price",
		Valid: func(r model.SalesRecord) bool { return r.UnitPrice > 0 },
	}
	rep := Evaluate([]model.SalesRecord{{OrderID: 1}}, []Rule{untagged})
	if rep.Dropped["positive_price"] != 1 {
		t.Errorf("Expected 1 drop, got %d", rep.Dropped["positive_price"])
	}
	if len(rep.ByKind) != 0 {
		t.Errorf("Expected no kind totals, got %v", rep.ByKind)
	}
}
