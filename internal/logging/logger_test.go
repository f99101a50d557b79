package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLevelString(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelTrace, "TRACE"},
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.level.String(); got != tt.want {
				t.Errorf("Level.String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  Level
	}{
		{"trace", LevelTrace},
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{" Error ", LevelError},
		{"unknown", LevelInfo},
		{"", LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithOutput(&buf)
	logger.SetLevel(LevelWarn)

	logger.Trace("trace message")
	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	output := buf.String()

	for _, unwanted := range []string{"level=TRACE", "level=DEBUG", "level=INFO"} {
		if strings.Contains(output, unwanted) {
			t.Errorf("%s message should be filtered out", unwanted)
		}
	}
	if !strings.Contains(output, "level=WARN") {
		t.Error("WARN message should be present")
	}
	if !strings.Contains(output, "level=ERROR") {
		t.Error("ERROR message should be present")
	}
}

func TestLoggerTrace(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithOutput(&buf)

	logger.Trace("hidden")
	if buf.Len() != 0 {
		t.Fatalf("trace should be off at info level, got: %s", buf.String())
	}

	logger.SetLevel(LevelTrace)
	logger.Trace("line %d did not match", 7)

	output := buf.String()
	if !strings.Contains(output, "level=TRACE") {
		t.Errorf("expected TRACE level label, got: %s", output)
	}
	if !strings.Contains(output, "line 7 did not match") {
		t.Errorf("expected formatted trace message, got: %s", output)
	}
}

func TestLoggerFormatting(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithOutput(&buf)
	logger.SetLevel(LevelDebug)

	logger.Info("user %s logged in", "alice")

	output := buf.String()
	if !strings.Contains(output, "level=INFO") {
		t.Error("expected level=INFO")
	}
	if !strings.Contains(output, "user alice logged in") {
		t.Errorf("expected formatted message, got: %s", output)
	}
}

func TestLoggerPercentWithoutArgs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithOutput(&buf)

	logger.Info("100% done")
	if !strings.Contains(buf.String(), "100% done") {
		t.Errorf("message without args must not be formatted, got: %s", buf.String())
	}
}

func TestLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithFormat(&buf, "json")

	logger.WithField("provider", "app.log").Warn("dropped %d records", 3)

	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("expected valid JSON output, got error: %v\noutput: %s", err, buf.String())
	}
	if m["msg"] != "dropped 3 records" {
		t.Errorf("msg = %v, want %q", m["msg"], "dropped 3 records")
	}
	if m["provider"] != "app.log" {
		t.Errorf("provider = %v, want %q", m["provider"], "app.log")
	}
	if m["level"] != "WARN" {
		t.Errorf("level = %v, want WARN", m["level"])
	}
}

func TestLoggerWithField(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithOutput(&buf)
	logger.SetLevel(LevelDebug)

	logger.WithField("request_id", "abc123").Info("handling request")

	output := buf.String()
	if !strings.Contains(output, "request_id=abc123") {
		t.Errorf("expected field in output, got: %s", output)
	}
}

func TestLoggerWithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithOutput(&buf)
	logger.SetLevel(LevelDebug)

	fields := map[string]interface{}{
		"user_id":    42,
		"request_id": "xyz",
	}
	logger.WithFields(fields).Info("processing")

	output := buf.String()
	if !strings.Contains(output, "user_id=42") {
		t.Errorf("expected user_id field, got: %s", output)
	}
	if !strings.Contains(output, "request_id=xyz") {
		t.Errorf("expected request_id field, got: %s", output)
	}
}

func TestDerivedLoggerSharesLevelAndOutput(t *testing.T) {
	var first, second bytes.Buffer
	base := NewWithOutput(&first)
	derived := base.WithField("a", 1)

	base.SetLevel(LevelDebug)
	derived.Debug("visible")
	if !strings.Contains(first.String(), "visible") {
		t.Errorf("derived logger should follow base level, got: %s", first.String())
	}

	base.SetOutput(&second)
	derived.Info("moved")
	if !strings.Contains(second.String(), "moved") {
		t.Errorf("derived logger should follow base output, got: %s", second.String())
	}
}

func TestNopLogger(t *testing.T) {
	nop := NopLogger{}

	nop.Trace("test")
	nop.Debug("test")
	nop.Info("test")
	nop.Warn("test")
	nop.Error("test")

	chained := nop.WithField("key", "value")
	if _, ok := chained.(NopLogger); !ok {
		t.Error("WithField should return NopLogger")
	}

	chained = nop.WithFields(map[string]interface{}{"key": "value"})
	if _, ok := chained.(NopLogger); !ok {
		t.Error("WithFields should return NopLogger")
	}

	nop.SetLevel(LevelDebug)
	nop.SetOutput(&bytes.Buffer{})
}

func TestDefaultLogger(t *testing.T) {
	original := Default()
	defer SetDefault(original)

	var buf bytes.Buffer
	testLogger := NewWithOutput(&buf)
	testLogger.SetLevel(LevelDebug)
	SetDefault(testLogger)

	Debug("debug test")
	Info("info test")
	Warn("warn test")
	Error("error test")

	output := buf.String()
	for _, want := range []string{"debug test", "info test", "warn test", "error test"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output", want)
		}
	}

	if OrDefault(nil) != testLogger {
		t.Error("OrDefault(nil) should return the default logger")
	}
	nop := NopLogger{}
	if OrDefault(nop) != Logger(nop) {
		t.Error("OrDefault should return a non-nil logger unchanged")
	}
}

func TestLoggerImmutability(t *testing.T) {
	var buf bytes.Buffer
	base := NewWithOutput(&buf)
	base.SetLevel(LevelDebug)

	derived := base.WithField("source", "derived")

	buf.Reset()
	base.Info("base message")
	if strings.Contains(buf.String(), "source=derived") {
		t.Error("base logger should not have derived field")
	}

	buf.Reset()
	derived.Info("derived message")
	if !strings.Contains(buf.String(), "source=derived") {
		t.Error("derived logger should have field")
	}
}

func TestRefSwapsLogger(t *testing.T) {
	var ref Ref
	if ref.Load() != Default() {
		t.Error("zero Ref should log to the default logger")
	}

	var first, second bytes.Buffer
	ref.Store(NewWithOutput(&first))
	ref.Load().Info("to first")
	ref.Store(NewWithOutput(&second))
	ref.Load().Info("to second")

	if strings.Contains(first.String(), "to second") || !strings.Contains(first.String(), "to first") {
		t.Errorf("first = %q", first.String())
	}
	if !strings.Contains(second.String(), "to second") {
		t.Errorf("second = %q", second.String())
	}

	ref.Store(nil)
	if ref.Load() != Default() {
		t.Error("Store(nil) should select the default logger")
	}
}
