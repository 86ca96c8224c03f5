//-------------------------------------------------------------------------
//
// pgEdge Star Schema ETL
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package quality produces the cleaned view of staged records.
package quality

import (
	"iter"

	"github.com/pgEdge/pgedge-starschema/internal/etlerr"
	"github.com/pgEdge/pgedge-starschema/internal/logging"
	"github.com/pgEdge/pgedge-starschema/internal/model"
)

// Rule is a validation rule. Records failing any rule are dropped.
type Rule struct {
	Name  string
	Kind  etlerr.Kind
	Valid func(r model.SalesRecord) bool
}

// QuantityNotNull drops records with a NULL quantity.
var QuantityNotNull = Rule{
	Name:  "quantity_not_null",
	Kind:  etlerr.KindNullMeasure,
	Valid: func(r model.SalesRecord) bool { return r.Quantity != nil },
}

// DefaultRules returns the rules applied by the pipeline.
func DefaultRules() []Rule {
	return []Rule{QuantityNotNull}
}

// Filter returns a lazy view over staged containing the records that pass
// the default rules, unchanged. Every range re-evaluates the rules.
func Filter(staged []model.SalesRecord) iter.Seq[model.SalesRecord] {
	return FilterWith(staged, DefaultRules())
}

// FilterWith is like Filter with an explicit rule set.
func FilterWith(staged []model.SalesRecord, rules []Rule) iter.Seq[model.SalesRecord] {
	return func(yield func(model.SalesRecord) bool) {
		for _, r := range staged {
			if firstFailure(r, rules) >= 0 {
				continue
			}
			if !yield(r) {
				return
			}
		}
	}
}

// Report counts the outcome of applying rules to a staged batch.
type Report struct {
	Staged  int
	Passed  int
	Dropped map[string]int

	// ByKind totals drops per data-quality kind. Rules without a kind
	// are not counted here.
	ByKind map[etlerr.Kind]int
}

// Evaluate applies rules to staged and counts drops per rule. A record is
// attributed to the first rule it fails.
func Evaluate(staged []model.SalesRecord, rules []Rule) Report {
	rep := Report{
		Staged:  len(staged),
		Dropped: make(map[string]int, len(rules)),
		ByKind:  make(map[etlerr.Kind]int),
	}
	for _, rule := range rules {
		rep.Dropped[rule.Name] = 0
	}
	log := logging.Stage("quality")
	for _, r := range staged {
		if i := firstFailure(r, rules); i >= 0 {
			rule := rules[i]
			rep.Dropped[rule.Name]++
			if rule.Kind != "" {
				rep.ByKind[rule.Kind]++
			}
			log.Debug().
				Str("rule", rule.Name).
				Str("kind", string(rule.Kind)).
				Int64("order_id", r.OrderID).
				Msg("Dropped staged record")
			continue
		}
		rep.Passed++
	}
	return rep
}

func firstFailure(r model.SalesRecord, rules []Rule) int {
	for i, rule := range rules {
		if !rule.Valid(r) {
			return i
		}
	}
	return -1
}
