package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	testCases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		" INFO ":  zapcore.InfoLevel,
		"":        zapcore.InfoLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"verbose": zapcore.InfoLevel,
	}
	for input, expected := range testCases {
		if got := ParseLevel(input); got != expected {
			t.Fatalf("ParseLevel(%q) = %s, want %s", input, got, expected)
		}
	}
}

func TestNewWritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "unipilot.log")
	logger, err := New(Options{Level: "warn", File: path})
	if err != nil {
		t.Fatalf("unexpected logger error: %v", err)
	}
	logger.Info("dropped below level")
	logger.Warn("cache partition failed", zap.String("partition", "courses"))
	_ = logger.Sync()

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(contents)), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one entry, got %d: %s", len(lines), contents)
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("expected JSON entry: %v", err)
	}
	if entry["msg"] != "cache partition failed" || entry["partition"] != "courses" {
		t.Fatalf("unexpected entry %v", entry)
	}
}
