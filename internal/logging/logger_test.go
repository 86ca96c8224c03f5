package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestInitJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Output: &buf})
	t.Cleanup(func() { Init(DefaultConfig()) })

	Info().Int("rows", 3).Msg("Staged records")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Expected JSON log line, got %q: %v", buf.String(), err)
	}
	if entry["message"] != "Staged records" {
		t.Errorf("Unexpected message: %v", entry["message"])
	}
	if entry["rows"] != float64(3) {
		t.Errorf("Expected rows 3, got %v", entry["rows"])
	}
}

func TestInitLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "warn", Output: &buf})
	t.Cleanup(func() { Init(DefaultConfig()) })

	Info().Msg("hidden")
	Warn().Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("Info message should be filtered at warn level")
	}
	if !strings.Contains(out, "shown") {
		t.Error("Warn message should be logged")
	}
}

func TestInitInvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "verbose", Output: &buf})
	t.Cleanup(func() { Init(DefaultConfig()) })

	Debug().Msg("debug")
	Info().Msg("info")

	out := buf.String()
	if strings.Contains(out, `"message":"debug"`) {
		t.Error("Debug should be filtered when level falls back to info")
	}
	if !strings.Contains(out, `"message":"info"`) {
		t.Error("Info message should be logged")
	}
}

func TestStageTagsLogger(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "info", Output: &buf})
	t.Cleanup(func() { Init(DefaultConfig()) })

	l := Stage("staging")
	l.Info().Msg("loaded")

	if !strings.Contains(buf.String(), `"stage":"staging"`) {
		t.Errorf("Expected stage field, got %q", buf.String())
	}
}
