package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewLoggerDefaultConfig(t *testing.T) {
	logger := NewLogger(nil)
	if logger == nil {
		t.Fatal("NewLogger(nil) returned nil")
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelWarn, Output: &buf})

	logger.Debug("should not appear")
	logger.Info("should not appear either")
	if buf.Len() != 0 {
		t.Fatalf("expected no output below configured level, got %q", buf.String())
	}

	logger.Warn("heads up")
	if !strings.Contains(buf.String(), "heads up") {
		t.Fatalf("expected warn message in output, got %q", buf.String())
	}

	buf.Reset()
	logger.Error("boom")
	if !strings.Contains(buf.String(), "boom") {
		t.Fatalf("expected error message in output, got %q", buf.String())
	}
}

func TestLoggerFormatArgs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelDebug, Output: &buf})

	logger.Info("submitted batch", "ring", 2, "count", 16)
	out := buf.String()
	if !strings.Contains(out, "ring=2") || !strings.Contains(out, "count=16") {
		t.Fatalf("expected key=value pairs in output, got %q", out)
	}
}

func TestDefaultAndSetDefault(t *testing.T) {
	var buf bytes.Buffer
	SetDefault(NewLogger(&Config{Level: LevelDebug, Output: &buf}))
	defer SetDefault(NewLogger(nil))

	Debug("via package-level helper")
	if !strings.Contains(buf.String(), "via package-level helper") {
		t.Fatalf("expected message routed through default logger, got %q", buf.String())
	}

	if Default() == nil {
		t.Fatal("Default() returned nil")
	}
}

func TestPrintfStyleLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelDebug, Output: &buf})

	logger.Debugf("tag=%d state=%s", 7, "inflight")
	if !strings.Contains(buf.String(), "tag=7 state=inflight") {
		t.Fatalf("expected formatted message, got %q", buf.String())
	}
}

func TestForHandleScopesMessageToTheHandle(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelWarn, Output: &buf})

	logger.ForHandle(42, "read_buffer", 1).Warnf("short transfer: got=%d want=%d", 10, 16)
	out := buf.String()
	for _, want := range []string{"handle=42", "op=read_buffer", "ring=1", "got=10", "want=16"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in scoped log output, got %q", want, out)
		}
	}
}
