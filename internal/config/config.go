//-------------------------------------------------------------------------
//
// pgEdge Star Schema ETL
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package config handles configuration management for pgedge-starschema.
// Configuration is loaded from config files and CLI flags (no environment variables).
// CLI flags take precedence over config file values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Source and store kinds.
const (
	KindPostgres  = "postgres"
	KindGenerated = "generated"
	KindMemory    = "memory"
)

// Config holds all configuration for pgedge-starschema.
type Config struct {
	// Connection is the PostgreSQL connection string.
	Connection string `mapstructure:"connection"`

	// LogLevel controls logging verbosity (debug, info, warn, error).
	LogLevel string `mapstructure:"log_level"`

	// Source selects where raw sales records are read from.
	Source SourceConfig `mapstructure:"source"`

	// Store selects where staging and the star schema are written.
	Store StoreConfig `mapstructure:"store"`

	// Pipeline holds tuning for the run subcommand.
	Pipeline PipelineConfig `mapstructure:"pipeline"`

	// Seed holds configuration for the seed subcommand and the generated source.
	Seed SeedConfig `mapstructure:"seed"`

	// Init holds configuration for the init subcommand.
	Init InitConfig `mapstructure:"init"`
}

// SourceConfig selects the raw sales source.
type SourceConfig struct {
	// Kind is "postgres" or "generated".
	Kind string `mapstructure:"kind"`

	// Table is the raw sales table read by the postgres source.
	Table string `mapstructure:"table"`
}

// StoreConfig selects the storage backend.
type StoreConfig struct {
	// Kind is "postgres" or "memory".
	Kind string `mapstructure:"kind"`
}

// PipelineConfig holds pipeline tuning.
type PipelineConfig struct {
	// Workers is the fact resolver pool size (0 = number of CPUs).
	Workers int `mapstructure:"workers"`
}

// SeedConfig controls synthetic sales data.
type SeedConfig struct {
	Rows      int    `mapstructure:"rows"`
	Seed      uint64 `mapstructure:"seed"`
	Customers int    `mapstructure:"customers"`
	Products  int    `mapstructure:"products"`

	// NullRatio is the fraction of records with a NULL quantity.
	NullRatio float64 `mapstructure:"null_ratio"`

	// DriftRatio is the fraction of records with a drifted customer name.
	DriftRatio float64 `mapstructure:"drift_ratio"`

	// BatchSize is the number of rows per COPY batch when seeding.
	BatchSize int `mapstructure:"batch_size"`
}

// InitConfig holds configuration for schema initialization.
type InitConfig struct {
	// DropExisting drops existing tables before initialization.
	DropExisting bool `mapstructure:"drop_existing"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Source: SourceConfig{
			Kind:  KindPostgres,
			Table: "raw_sales",
		},
		Store: StoreConfig{
			Kind: KindPostgres,
		},
		Seed: SeedConfig{
			Rows:       10000,
			Seed:       1,
			Customers:  500,
			Products:   200,
			NullRatio:  0.01,
			DriftRatio: 0.005,
			BatchSize:  1000,
		},
	}
}

// Load reads configuration from config files.
// Config file locations (in order of precedence):
// 1. Path specified by configFile parameter
// 2. ./pgedge-starschema.yaml
// 3. ~/.config/pgedge-starschema/pgedge-starschema.yaml
func Load(configFile string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("pgedge-starschema")
	v.SetConfigType("yaml")

	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "pgedge-starschema"))
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	}

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return cfg, nil
}

// Validate checks that a connection string is present.
func (c *Config) Validate() error {
	if c.Connection == "" {
		return fmt.Errorf("connection string is required")
	}
	return nil
}

// ValidateInit checks configuration required for init command.
func (c *Config) ValidateInit() error {
	return c.Validate()
}

// NeedsDatabase reports whether the configured source or store uses PostgreSQL.
func (c *Config) NeedsDatabase() bool {
	return c.Source.Kind == KindPostgres || c.Store.Kind == KindPostgres
}

// ValidateRun checks configuration required for run command.
func (c *Config) ValidateRun() error {
	switch c.Source.Kind {
	case KindPostgres:
		if c.Source.Table == "" {
			return fmt.Errorf("source table is required for the postgres source")
		}
	case KindGenerated:
		if err := c.validateSeedShape(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("source kind must be '%s' or '%s'", KindPostgres, KindGenerated)
	}
	if c.Store.Kind != KindPostgres && c.Store.Kind != KindMemory {
		return fmt.Errorf("store kind must be '%s' or '%s'", KindPostgres, KindMemory)
	}
	if c.Pipeline.Workers < 0 {
		return fmt.Errorf("workers must be non-negative")
	}
	if c.NeedsDatabase() {
		return c.Validate()
	}
	return nil
}

// ValidateSeed checks configuration required for seed command.
func (c *Config) ValidateSeed() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Source.Table == "" {
		return fmt.Errorf("source table is required")
	}
	if err := c.validateSeedShape(); err != nil {
		return err
	}
	if c.Seed.BatchSize < 1 {
		return fmt.Errorf("batch_size must be at least 1")
	}
	return nil
}

func (c *Config) validateSeedShape() error {
	if c.Seed.Rows < 1 {
		return fmt.Errorf("rows must be at least 1")
	}
	if c.Seed.NullRatio < 0 || c.Seed.NullRatio > 1 {
		return fmt.Errorf("null_ratio must be between 0 and 1")
	}
	if c.Seed.DriftRatio < 0 || c.Seed.DriftRatio > 1 {
		return fmt.Errorf("drift_ratio must be between 0 and 1")
	}
	return nil
}
