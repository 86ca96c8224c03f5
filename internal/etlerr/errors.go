//-------------------------------------------------------------------------
//
// pgEdge Star Schema ETL
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package etlerr defines the error taxonomy of the pipeline.
//
// Only ErrSourceUnavailable and ErrStorage are ever returned to callers.
// The remaining kinds describe data-quality conditions that are absorbed
// into run counters.
package etlerr

import (
	"errors"
	"fmt"
)

var (
	// ErrSourceUnavailable means the source could not be read. Fatal.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrStorage means a dataset could not be written or read. Fatal.
	ErrStorage = errors.New("storage failure")
)

// Kind labels a non-fatal data-quality condition.
type Kind string

const (
	// KindDimensionKeyConflict is a business key seen with differing
	// attributes within one build pass.
	KindDimensionKeyConflict Kind = "dimension_key_conflict"

	// KindUnresolvedReference is a fact business key with no dimension row.
	KindUnresolvedReference Kind = "unresolved_reference"

	// KindNullMeasure is a staged record dropped for a null quantity.
	KindNullMeasure Kind = "null_measure"
)

// SourceError wraps a failure reported by a named source.
type SourceError struct {
	Source string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s: source %s: %v", ErrSourceUnavailable, e.Source, e.Err)
}

// Unwrap lets errors.Is match both the sentinel and the cause.
func (e *SourceError) Unwrap() []error {
	return []error{ErrSourceUnavailable, e.Err}
}

// Source wraps err as a SourceError. A nil err returns nil.
func Source(name string, err error) error {
	if err == nil {
		return nil
	}
	return &SourceError{Source: name, Err: err}
}

// Storage wraps err with ErrStorage and the dataset it concerns.
func Storage(dataset string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrStorage, dataset, err)
}
