package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"debug", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"DEBUG", LevelDebug},
		{"WARN", LevelWarn},

		// Empty string defaults to Info
		{"", LevelInfo},

		// Unrecognized defaults to Info
		{"trace", LevelInfo},
		{"unknown", LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := ParseLevel(tt.input)
			if result != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input    string
		expected Format
	}{
		{"json", FormatJSON},
		{"JSON", FormatJSON},
		{"text", FormatText},
		{"", FormatText},
		{"yaml", FormatText}, // unrecognized defaults to text
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := ParseFormat(tt.input)
			if result != tt.expected {
				t.Errorf("ParseFormat(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestNew_FormatSelection(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: LevelInfo, Format: FormatJSON, Output: &buf})
	log.Info("hello", "key", "value")
	if out := buf.String(); !strings.HasPrefix(out, "{") || !strings.Contains(out, `"key":"value"`) {
		t.Errorf("JSON output = %q", out)
	}

	buf.Reset()
	log = New(Config{Level: LevelInfo, Format: FormatText, Output: &buf})
	log.Info("hello", "key", "value")
	if out := buf.String(); strings.HasPrefix(out, "{") || !strings.Contains(out, "key=value") {
		t.Errorf("text output = %q", out)
	}
}

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: LevelWarn, Output: &buf})
	log.Info("should be dropped")
	log.Warn("should appear")
	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Error("info line logged below the configured level")
	}
	if !strings.Contains(out, "should appear") {
		t.Error("warn line missing")
	}
}

func TestNop(t *testing.T) {
	// Must not panic and must not write anywhere visible.
	Nop().Error("discarded")
}
