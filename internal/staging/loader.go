//-------------------------------------------------------------------------
//
// pgEdge Star Schema ETL
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package staging copies a source batch verbatim into the staging dataset.
package staging

import (
	"context"
	"errors"
	"time"

	"github.com/pgEdge/pgedge-starschema/internal/etlerr"
	"github.com/pgEdge/pgedge-starschema/internal/logging"
	"github.com/pgEdge/pgedge-starschema/internal/model"
	"github.com/pgEdge/pgedge-starschema/internal/source"
	"github.com/pgEdge/pgedge-starschema/internal/store"
)

// Loader replaces the staging dataset with a source batch.
type Loader struct {
	dataset store.Dataset[model.SalesRecord]
}

// NewLoader returns a loader writing to dataset.
func NewLoader(dataset store.Dataset[model.SalesRecord]) *Loader {
	return &Loader{dataset: dataset}
}

// Load reads the whole batch from src and replaces staging with it.
// The staged records are returned for the rest of the run. If the source
// cannot be read, staging is left untouched.
func (l *Loader) Load(ctx context.Context, src source.Source) ([]model.SalesRecord, error) {
	log := logging.Stage("staging")
	start := time.Now()

	records, err := src.ReadAll(ctx)
	if err != nil {
		if !errors.Is(err, etlerr.ErrSourceUnavailable) {
			err = etlerr.Source(src.Name(), err)
		}
		log.Error().Err(err).Str("source", src.Name()).Msg("Failed to read source")
		return nil, err
	}

	if err := l.dataset.Replace(ctx, records); err != nil {
		if !errors.Is(err, etlerr.ErrStorage) {
			err = etlerr.Storage("staging", err)
		}
		log.Error().Err(err).Msg("Failed to replace staging")
		return nil, err
	}

	log.Info().
		Str("source", src.Name()).
		Int("rows", len(records)).
		Dur("elapsed", time.Since(start)).
		Msg("Staged records")
	return records, nil
}
