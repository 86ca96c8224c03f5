//-------------------------------------------------------------------------
//
// pgEdge Star Schema ETL
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCommandsRegistered(t *testing.T) {
	want := map[string]bool{"version": false, "init": false, "seed": false, "run": false, "status": false}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("Expected %s command to be registered", name)
		}
	}
	if seedCmd.RunE == nil || runCmd.RunE == nil {
		t.Error("Expected seed and run commands to have handlers")
	}
}

func TestRunGeneratedIntoMemory(t *testing.T) {
	disableColor(t)

	cfgPath := filepath.Join(t.TempDir(), "pgedge-starschema.yaml")
	if err := os.WriteFile(cfgPath, []byte("log_level: error\n"), 0o600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{
		"--config", cfgPath,
		"run", "--source", "generated", "--store", "memory",
		"--rows", "200", "--seed", "7", "--workers", "2",
	})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
		cfgFile, runSourceKind, runStoreKind = "", "", ""
		runRows, runWorkers, runGenSeed = 0, 0, 0
	})

	if err := Execute(); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if runGenSeed != 7 {
		t.Errorf("Expected run seed 7, got %d", runGenSeed)
	}
	if seedSeed != 0 {
		t.Errorf("Run seed flag leaked into the seed command: %d", seedSeed)
	}
	if cfg.Seed.Seed != 7 || cfg.Seed.Rows != 200 {
		t.Errorf("Flags not applied to config: %+v", cfg.Seed)
	}

	got := out.String()
	for _, want := range []string{"Source: generated", "Staged", "200", "DIMENSION", "customer"} {
		if !strings.Contains(got, want) {
			t.Errorf("Output missing %q:\n%s", want, got)
		}
	}
}
