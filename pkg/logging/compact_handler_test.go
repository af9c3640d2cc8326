package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestCompactHandler_Format(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewCompactHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	log.With("component", "sorter").With("session", "abc").Warn("edge dropped", "from", "a", "to", "b c")

	line := buf.String()
	if !strings.HasPrefix(line, "[WARN]  ") {
		t.Errorf("Expected WARN prefix, got %q", line)
	}
	for _, want := range []string{"sorter: edge dropped", "| session=abc", "from=a", `to="b c"`} {
		if !strings.Contains(line, want) {
			t.Errorf("Expected %q in %q", want, line)
		}
	}
	if strings.Contains(line, "component=") {
		t.Errorf("Expected component to be rendered as a prefix, got %q", line)
	}
}

func TestCompactHandler_Level(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewCompactHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	log.Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("Expected debug record to be dropped, got %q", buf.String())
	}
}

func TestSetLevel_IsDebug(t *testing.T) {
	defer SetLevel(slog.LevelInfo)

	SetLevel(slog.LevelInfo)
	if IsDebug() {
		t.Error("Expected IsDebug to be false at INFO")
	}
	SetLevel(slog.LevelDebug)
	if !IsDebug() {
		t.Error("Expected IsDebug to be true at DEBUG")
	}
}
