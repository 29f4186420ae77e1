package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewLoggerWithWriter(t *testing.T) {
	t.Setenv("BAP_LOG_LEVEL", "")
	t.Setenv("BAP_LOG_PREFIX", "")

	var buf bytes.Buffer
	lg := NewLoggerWithWriter(&buf)
	lg.Info("hello", "n", 3)

	out := buf.String()
	if !strings.Contains(out, "hello") || !strings.Contains(out, "bap") {
		t.Errorf("Log output = %q, want the message with the default prefix", out)
	}
}

func TestDebugLevelFilters(t *testing.T) {
	t.Setenv("BAP_LOG_LEVEL", "")

	var buf bytes.Buffer
	lg := NewLoggerWithWriter(&buf)
	lg.Debug("invisible at info level")
	if buf.Len() != 0 {
		t.Errorf("Debug line leaked at info level: %q", buf.String())
	}

	t.Setenv("BAP_LOG_LEVEL", "debug")
	lg = NewLoggerWithWriter(&buf)
	lg.Debug("now visible")
	if !strings.Contains(buf.String(), "now visible") {
		t.Errorf("Debug line missing at debug level: %q", buf.String())
	}
}

func TestIsDebug(t *testing.T) {
	t.Setenv("BAP_LOG_LEVEL", "debug")
	if !IsDebug() {
		t.Error("IsDebug must follow BAP_LOG_LEVEL")
	}
	t.Setenv("BAP_LOG_LEVEL", "info")
	if IsDebug() {
		t.Error("IsDebug must be off at info level")
	}
}
