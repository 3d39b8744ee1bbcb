package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestLevels(t *testing.T) {
	tests := []struct {
		verbose bool
		level   zerolog.Level
	}{
		{false, zerolog.InfoLevel},
		{true, zerolog.TraceLevel},
	}

	for _, tt := range tests {
		if got := NewWithWriter(&bytes.Buffer{}, tt.verbose).GetLevel(); got != tt.level {
			t.Errorf("verbose=%v: level = %s, want %s", tt.verbose, got, tt.level)
		}
	}
}

func TestQuietDropsDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, false)

	logger.Debug().Msg("hidden")
	logger.Info().Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug message logged at info level: %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("info message missing: %q", out)
	}
}

func TestVerboseAddsCaller(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, true)

	logger.Trace().Msg("traced")

	out := buf.String()
	if !strings.Contains(out, "traced") {
		t.Fatalf("trace message missing: %q", out)
	}
	if !strings.Contains(out, "logging_test.go:") {
		t.Errorf("caller missing: %q", out)
	}
}
