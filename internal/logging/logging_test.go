package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestSetup_ProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	l := setup(&buf, "warn", "production")
	l.Info().Msg("dropped")
	l.Warn().Str("component", "test").Msg("kept")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1: %q", len(lines), buf.String())
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &m); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if m["message"] != "kept" || m["component"] != "test" || m["level"] != "warn" {
		t.Errorf("entry = %v", m)
	}
	if _, ok := m["time"].(float64); !ok {
		t.Errorf("time = %T, want unix number", m["time"])
	}
}

func TestSetup_UnknownLevelIsInfo(t *testing.T) {
	var buf bytes.Buffer
	setup(&buf, "loud", "development")
	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Errorf("level = %v, want info", zerolog.GlobalLevel())
	}
}
