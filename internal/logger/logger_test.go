package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestCallsBeforeInitAreDropped(t *testing.T) {
	defaultLogger = nil
	Debug("dropped %d", 1)
	Info("dropped %d", 2)
	Warn("dropped %d", 3)
	Error("dropped %d", 4)
	Sync()
}

func TestInitLevels(t *testing.T) {
	t.Cleanup(func() { defaultLogger = nil })

	tests := []struct {
		level        string
		format       string
		debugEnabled bool
	}{
		{"debug", "json", true},
		{"info", "text", false},
		{"WARN", "json", false},
		{"bogus", "json", false},
	}

	for _, tt := range tests {
		Init(tt.level, tt.format)
		if defaultLogger == nil {
			t.Fatalf("Init(%q, %q) left logger nil", tt.level, tt.format)
		}
		got := defaultLogger.Desugar().Core().Enabled(zapcore.DebugLevel)
		if got != tt.debugEnabled {
			t.Errorf("Init(%q): debug enabled = %v, expected %v", tt.level, got, tt.debugEnabled)
		}
	}
}
