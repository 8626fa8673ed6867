package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

// restores the default logger after the test swaps it
func keepDefault(t *testing.T) {
	t.Helper()
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
}

func TestInitTextLoggerFiltersLevel(t *testing.T) {
	keepDefault(t)
	var buf bytes.Buffer

	Init("warn", "text", &buf)
	slog.Info("hidden")
	slog.Warn("shown", "bytes", 4)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info record should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, "msg=shown") || !strings.Contains(out, "bytes=4") {
		t.Errorf("expected warn record in text format, got %s", out)
	}
}

func TestInitLoggerWritesJSON(t *testing.T) {
	keepDefault(t)
	var buf bytes.Buffer

	Init("DEBUG", "json", &buf)
	buf.Reset()
	slog.Debug("sent", "session_id", "abc")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("expected one json record, got %q: %v", buf.String(), err)
	}
	if record["msg"] != "sent" || record["session_id"] != "abc" {
		t.Errorf("unexpected record: %v", record)
	}
}

func TestUnknownLevelDefaultsToInfo(t *testing.T) {
	if LogLevel("loud").slogLevel() != slog.LevelInfo {
		t.Errorf("expected unknown level to map to info")
	}
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("WARN")
	if err != nil || level != LevelWarn {
		t.Errorf("expected warn, got %q %v", level, err)
	}
	if _, err := ParseLevel("verbos"); err == nil {
		t.Errorf("expected error for unknown level")
	}
}

func TestValidFormat(t *testing.T) {
	if err := ValidFormat("JSON"); err != nil {
		t.Errorf("expected json to be valid: %v", err)
	}
	if err := ValidFormat("yaml"); err == nil {
		t.Errorf("expected error for unknown format")
	}
}
