package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewLogger_WritesJSONWithAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := WithAttemptID(WithAthleteID(WithComponent(newLogger(&buf, "info"), "upload"), "a-1"), "att-1")
	logger.Debug("hidden")
	logger.Info("upload started")

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("expected one JSON line, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "upload started" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["component"] != "upload" || entry["athlete_id"] != "a-1" || entry["attempt_id"] != "att-1" {
		t.Errorf("missing attributes: %v", entry)
	}
}

func TestSanitizeToken(t *testing.T) {
	if got := SanitizeToken("short"); got != "****" {
		t.Errorf("SanitizeToken(short) = %q", got)
	}
	if got := SanitizeToken("abcdefghijkl"); got != "abcd...ijkl" {
		t.Errorf("SanitizeToken = %q", got)
	}
}

func TestSanitizePhone(t *testing.T) {
	if got := SanitizePhone("0812345678"); got != "*******678" {
		t.Errorf("SanitizePhone = %q", got)
	}
	if got := SanitizePhone("12"); got != "***" {
		t.Errorf("SanitizePhone(short) = %q", got)
	}
}
