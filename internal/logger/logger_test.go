package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    zapcore.Level
		wantErr bool
	}{
		{"debug", zapcore.DebugLevel, false},
		{"info", zapcore.InfoLevel, false},
		{"warn", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"verbose", zapcore.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNew(t *testing.T) {
	for _, format := range []string{"json", "text"} {
		l, err := New("debug", format)
		if err != nil {
			t.Fatalf("New(debug, %s) error = %v", format, err)
		}
		if !l.Core().Enabled(zapcore.DebugLevel) {
			t.Errorf("New(debug, %s) does not enable debug", format)
		}
	}

	if _, err := New("loud", "json"); err == nil {
		t.Error("New() with invalid level should fail")
	}
}

func TestGetZapLogger_BeforeInit(t *testing.T) {
	if GetZapLogger() == nil {
		t.Fatal("GetZapLogger() returned nil before Init")
	}
	if ForRun("r1") == nil {
		t.Fatal("ForRun() returned nil")
	}
}
