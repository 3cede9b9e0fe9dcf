package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Fatalf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestNewJSONRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New("json", slog.LevelWarn, &buf)
	l.Info("hidden")
	l.Warn("frame_length_invalid", "len", 12)
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line should be filtered: %s", out)
	}
	if !strings.Contains(out, `"msg":"frame_length_invalid"`) || !strings.Contains(out, `"len":12`) {
		t.Fatalf("unexpected json output: %s", out)
	}
}

func TestSetIgnoresNil(t *testing.T) {
	prev := L()
	Set(nil)
	if L() != prev {
		t.Fatalf("Set(nil) replaced the logger")
	}
}
