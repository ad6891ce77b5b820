package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", DEBUG},
		{"DEBUG", DEBUG},
		{" info ", INFO},
		{"warning", WARN},
		{"error", ERROR},
		{"fatal", FATAL},
		{"", INFO},
		{"verbose", INFO},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLevel(tt.in); got != tt.want {
				t.Errorf("ParseLevel(%q) = %s, expected %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(WARN, false)
	logger.SetOutput(&buf)

	logger.Debug("hidden debug")
	logger.Info("hidden info")
	logger.Warn("visible warn")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("Expected entries below WARN to be dropped, got %q", out)
	}
	if !strings.Contains(out, "WARN: visible warn") {
		t.Errorf("Expected warn entry, got %q", out)
	}
}

func TestTextFieldsAreSorted(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(DEBUG, false)
	logger.SetOutput(&buf)

	logger.WithField("run_id", "abc").Info("started", Fields{"mode": "primary", "attempt": 1})

	line := strings.TrimSpace(buf.String())
	if !strings.HasSuffix(line, "attempt=1 mode=primary run_id=abc") {
		t.Errorf("Unexpected field rendering: %q", line)
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(INFO, true)
	logger.SetOutput(&buf)

	logger.WithField("component", "launcher").Error("install failed", Fields{"exit_code": 2})

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to decode entry %q: %v", buf.String(), err)
	}
	if entry.Level != "ERROR" || entry.Message != "install failed" {
		t.Errorf("Unexpected entry: %+v", entry)
	}
	if entry.Fields["component"] != "launcher" {
		t.Errorf("Expected component field, got %v", entry.Fields)
	}
	if entry.Fields["exit_code"] != float64(2) {
		t.Errorf("Expected exit_code=2, got %v", entry.Fields["exit_code"])
	}
}

func TestWithFieldDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := NewLogger(INFO, false)
	parent.SetOutput(&buf)

	_ = parent.WithField("child", true)
	parent.Info("plain")

	if strings.Contains(buf.String(), "child") {
		t.Errorf("Parent logger picked up child field: %q", buf.String())
	}
}

func TestFatalCallsExit(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(INFO, false)
	logger.SetOutput(&buf)

	code := -1
	logger.exit = func(c int) { code = c }
	logger.Fatal("boom")

	if code != 1 {
		t.Errorf("Expected exit code 1, got %d", code)
	}
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	logger.exit = func(int) { t.Fatal("discard logger must not exit") }
	logger.Error("nothing")
	logger.Fatal("nothing")
}
