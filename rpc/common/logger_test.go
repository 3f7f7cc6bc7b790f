package common

import (
	"bytes"
	"strings"
	"testing"

	"github.com/lni/dragonboat/v4/logger"
)

func TestParseLogLevel(t *testing.T) {
	tests := map[string]logger.LogLevel{
		"debug":   logger.DEBUG,
		"INFO":    logger.INFO,
		"":        logger.INFO,
		"warn":    logger.WARNING,
		"warning": logger.WARNING,
		"error":   logger.ERROR,
	}
	for input, expected := range tests {
		level, err := ParseLogLevel(input)
		if err != nil {
			t.Errorf("unexpected error for %q: %v", input, err)
		}
		if level != expected {
			t.Errorf("expected level %v for %q, got %v", expected, input, level)
		}
	}

	if _, err := ParseLogLevel("verbose"); err == nil {
		t.Error("expected an error for an unknown level")
	}
}

func TestLoggerFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerFactory(&buf)("store")

	l.Debugf("hidden %d", 1)
	if buf.Len() != 0 {
		t.Errorf("debug message written at info level: %q", buf.String())
	}

	l.Warningf("evicted %d records", 3)
	out := buf.String()
	if !strings.Contains(out, "WARN  | store") || !strings.Contains(out, "evicted 3 records") {
		t.Errorf("unexpected log line %q", out)
	}

	buf.Reset()
	l.SetLevel(logger.ERROR)
	l.Infof("hidden")
	if buf.Len() != 0 {
		t.Errorf("info message written at error level: %q", buf.String())
	}
}
