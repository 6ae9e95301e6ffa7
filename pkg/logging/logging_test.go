package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	for in, expected := range map[string]slog.Level{
		"error":   slog.LevelError,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"Debug":   slog.LevelDebug,
	} {
		l, err := ParseLevel(in)
		if err != nil {
			t.Errorf("ParseLevel(%q) failed: %v", in, err)
		} else if l != expected {
			t.Errorf("ParseLevel(%q) = %v, expected %v", in, l, expected)
		}
	}
	if _, err := ParseLevel("verbose"); err == nil {
		t.Error("Expected an error for an unknown level")
	}
}

func TestNewToFiltersByLevel(t *testing.T) {
	defer slog.SetDefault(slog.Default())
	var buf bytes.Buffer
	log, err := NewTo(&buf, "warn")
	if err != nil {
		t.Fatal(err)
	}
	log.Info("hidden")
	log.With("component", "motor").Warn("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("Info message logged at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "component=motor") {
		t.Errorf("Expected warning with component, got %q", out)
	}
}
