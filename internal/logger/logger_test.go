package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{
		Output:    &buf,
		MinLevel:  LevelDebug,
		WithStack: true,
	})

	if logger.output != &buf {
		t.Error("expected output to be set")
	}
	if logger.minLevel != LevelDebug {
		t.Errorf("expected minLevel DEBUG, got %s", logger.minLevel)
	}
	if !logger.withStack {
		t.Error("expected withStack to be true")
	}
}

func TestDefault(t *testing.T) {
	logger := Default()

	if logger.minLevel != LevelInfo {
		t.Errorf("expected minLevel INFO, got %s", logger.minLevel)
	}
	if logger.withStack {
		t.Error("expected withStack to be false")
	}
}

func TestDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{
		Output:   &buf,
		MinLevel: LevelDebug,
	})

	logger.Debug("debug message")

	var entry Entry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to unmarshal log entry: %v", err)
	}

	if entry.Level != LevelDebug {
		t.Errorf("expected level DEBUG, got %s", entry.Level)
	}
	if entry.Message != "debug message" {
		t.Errorf("expected message 'debug message', got %s", entry.Message)
	}
}

func TestInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{
		Output:   &buf,
		MinLevel: LevelInfo,
	})

	logger.Info("info message")

	var entry Entry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to unmarshal log entry: %v", err)
	}

	if entry.Level != LevelInfo {
		t.Errorf("expected level INFO, got %s", entry.Level)
	}
	if entry.Message != "info message" {
		t.Errorf("expected message 'info message', got %s", entry.Message)
	}
}

func TestWarn(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{
		Output:   &buf,
		MinLevel: LevelWarn,
	})

	logger.Warn("warning message")

	var entry Entry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to unmarshal log entry: %v", err)
	}

	if entry.Level != LevelWarn {
		t.Errorf("expected level WARN, got %s", entry.Level)
	}
	if entry.Message != "warning message" {
		t.Errorf("expected message 'warning message', got %s", entry.Message)
	}
}

func TestError(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{
		Output:   &buf,
		MinLevel: LevelError,
	})

	testErr := errors.New("test error")
	logger.Error("error message", testErr)

	var entry Entry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to unmarshal log entry: %v", err)
	}

	if entry.Level != LevelError {
		t.Errorf("expected level ERROR, got %s", entry.Level)
	}
	if entry.Message != "error message" {
		t.Errorf("expected message 'error message', got %s", entry.Message)
	}
	if entry.Error != "test error" {
		t.Errorf("expected error 'test error', got %s", entry.Error)
	}
}

func TestErrorWithStack(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{
		Output:    &buf,
		MinLevel:  LevelError,
		WithStack: true,
	})

	testErr := errors.New("test error")
	logger.Error("error with stack", testErr)

	var entry Entry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to unmarshal log entry: %v", err)
	}

	if len(entry.Stack) == 0 {
		t.Error("expected stack trace to be present")
	}
}

func TestMinLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{
		Output:   &buf,
		MinLevel: LevelWarn,
	})

	logger.Debug("debug message")
	logger.Info("info message")

	if buf.Len() > 0 {
		t.Error("expected no output for DEBUG and INFO when minLevel is WARN")
	}

	logger.Warn("warning message")

	if buf.Len() == 0 {
		t.Error("expected output for WARN when minLevel is WARN")
	}
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{
		Output:   &buf,
		MinLevel: LevelInfo,
	})

	fieldLogger := logger.WithFields(map[string]interface{}{
		"movie_id": 550,
		"action":   "save",
	})

	fieldLogger.Info("movie saved")

	var entry Entry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to unmarshal log entry: %v", err)
	}

	if entry.Context["movie_id"] != float64(550) {
		t.Errorf("expected movie_id 550, got %v", entry.Context["movie_id"])
	}
	if entry.Context["action"] != "save" {
		t.Errorf("expected action 'save', got %v", entry.Context["action"])
	}
}

func TestContextWithRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{
		Output:   &buf,
		MinLevel: LevelInfo,
	})

	ctx := ContextWithRequestID(context.Background(), "req-123")
	logger.InfoContext(ctx, "request received")

	var entry Entry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to unmarshal log entry: %v", err)
	}

	if entry.Context["request_id"] != "req-123" {
		t.Errorf("expected request_id 'req-123', got %v", entry.Context["request_id"])
	}
}

func TestContextWithSessionID(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{
		Output:   &buf,
		MinLevel: LevelInfo,
	})

	ctx := ContextWithSessionID(context.Background(), "sess-456")
	logger.InfoContext(ctx, "recommendations served")

	var entry Entry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to unmarshal log entry: %v", err)
	}

	if entry.Context["session_id"] != "sess-456" {
		t.Errorf("expected session_id 'sess-456', got %v", entry.Context["session_id"])
	}
}

func TestFieldLoggerDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{
		Output:   &buf,
		MinLevel: LevelDebug,
	})

	fieldLogger := logger.WithFields(map[string]interface{}{
		"component": "catalog",
	})

	fieldLogger.Debug("request started")

	var entry Entry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to unmarshal log entry: %v", err)
	}

	if entry.Level != LevelDebug {
		t.Errorf("expected level DEBUG, got %s", entry.Level)
	}
	if entry.Context["component"] != "catalog" {
		t.Errorf("expected component 'catalog', got %v", entry.Context["component"])
	}
}

func TestFieldLoggerError(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{
		Output:   &buf,
		MinLevel: LevelError,
	})

	fieldLogger := logger.WithFields(map[string]interface{}{
		"component": "database",
	})

	testErr := errors.New("connection failed")
	fieldLogger.Error("database error", testErr)

	var entry Entry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to unmarshal log entry: %v", err)
	}

	if entry.Level != LevelError {
		t.Errorf("expected level ERROR, got %s", entry.Level)
	}
	if entry.Error != "connection failed" {
		t.Errorf("expected error 'connection failed', got %s", entry.Error)
	}
	if entry.Context["component"] != "database" {
		t.Errorf("expected component 'database', got %v", entry.Context["component"])
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{
		Output:   &buf,
		MinLevel: LevelInfo,
	})

	logger.Info("test message")

	output := strings.TrimSpace(buf.String())

	if !json.Valid([]byte(output)) {
		t.Errorf("expected valid JSON, got: %s", output)
	}
}

func TestMultipleContextValues(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{
		Output:   &buf,
		MinLevel: LevelInfo,
	})

	ctx := context.Background()
	ctx = ContextWithRequestID(ctx, "req-123")
	ctx = ContextWithSessionID(ctx, "sess-456")

	logger.InfoContext(ctx, "multiple context values")

	var entry Entry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to unmarshal log entry: %v", err)
	}

	if entry.Context["request_id"] != "req-123" {
		t.Errorf("expected request_id 'req-123', got %v", entry.Context["request_id"])
	}
	if entry.Context["session_id"] != "sess-456" {
		t.Errorf("expected session_id 'sess-456', got %v", entry.Context["session_id"])
	}
}

func TestNewWithLevel(t *testing.T) {
	tests := []struct {
		level         string
		expectedLevel Level
		expectStack   bool
	}{
		{"debug", LevelDebug, true},
		{"info", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"error", LevelError, false},
		{"invalid", LevelInfo, false}, // defaults to info
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger := NewWithLevel(tt.level, "json")
			if logger.minLevel != tt.expectedLevel {
				t.Errorf("expected level %s, got %s", tt.expectedLevel, logger.minLevel)
			}
			if logger.withStack != tt.expectStack {
				t.Errorf("expected withStack %v, got %v", tt.expectStack, logger.withStack)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"debug", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"error", LevelError},
		{"invalid", LevelInfo},
		{"", LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level := parseLevel(tt.input)
			if level != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, level)
			}
		})
	}
}

func TestInitializeLoggers(t *testing.T) {
	// Reset loggers
	mu.Lock()
	appLogger = nil
	databaseLogger = nil
	mu.Unlock()

	InitializeLoggers("debug", "warn", "text")

	appLog := AppLogger()
	dbLog := DatabaseLogger()

	if appLog.minLevel != LevelDebug {
		t.Errorf("expected app logger level DEBUG, got %s", appLog.minLevel)
	}

	if dbLog.minLevel != LevelWarn {
		t.Errorf("expected database logger level WARN, got %s", dbLog.minLevel)
	}
	if appLog.format != FormatText {
		t.Errorf("expected text format, got %s", appLog.format)
	}
}

func TestSetAppLogger(t *testing.T) {
	customLogger := NewWithLevel("error", "json")
	SetAppLogger(customLogger)

	retrieved := AppLogger()
	if retrieved != customLogger {
		t.Error("expected custom logger to be set")
	}

	// Cleanup
	mu.Lock()
	appLogger = nil
	mu.Unlock()
}

func TestSetDatabaseLogger(t *testing.T) {
	customLogger := NewWithLevel("debug", "json")
	SetDatabaseLogger(customLogger)

	retrieved := DatabaseLogger()
	if retrieved != customLogger {
		t.Error("expected custom database logger to be set")
	}

	// Cleanup
	mu.Lock()
	databaseLogger = nil
	mu.Unlock()
}

func TestAppLogger_Singleton(t *testing.T) {
	// Reset
	mu.Lock()
	appLogger = nil
	mu.Unlock()

	logger1 := AppLogger()
	logger2 := AppLogger()

	if logger1 != logger2 {
		t.Error("expected AppLogger to return the same instance")
	}
}

func TestDatabaseLogger_Singleton(t *testing.T) {
	// Reset
	mu.Lock()
	databaseLogger = nil
	mu.Unlock()

	logger1 := DatabaseLogger()
	logger2 := DatabaseLogger()

	if logger1 != logger2 {
		t.Error("expected DatabaseLogger to return the same instance")
	}
}

func TestTextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{
		Output:   &buf,
		MinLevel: LevelInfo,
		Format:   FormatText,
	})

	logger.WithFields(map[string]interface{}{"lens": "smart", "count": 8}).
		Error("recommendation failed", errors.New("no candidates"))

	line := strings.TrimSpace(buf.String())
	if json.Valid([]byte(line)) {
		t.Fatalf("expected text output, got JSON: %s", line)
	}
	if !strings.Contains(line, "ERROR recommendation failed count=8 lens=smart") {
		t.Errorf("unexpected text line: %s", line)
	}
	if !strings.HasSuffix(line, `error="no candidates"`) {
		t.Errorf("expected quoted error suffix, got: %s", line)
	}
}

func TestComponentAndNestedFields(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Output: &buf, MinLevel: LevelInfo})

	ctx := ContextWithRequestID(context.Background(), "req-9")
	logger.Component("search").WithFields(map[string]interface{}{"term": "matrix"}).InfoContext(ctx, "term searched")

	var entry Entry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to unmarshal log entry: %v", err)
	}
	if entry.Context["component"] != "search" || entry.Context["term"] != "matrix" {
		t.Errorf("expected merged fields, got %v", entry.Context)
	}
	if entry.Context["request_id"] != "req-9" {
		t.Errorf("expected request_id from context, got %v", entry.Context["request_id"])
	}
}

func TestRequestIDFromContext(t *testing.T) {
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Errorf("expected empty request id, got %q", got)
	}
	ctx := ContextWithRequestID(context.Background(), "abc")
	if got := RequestIDFromContext(ctx); got != "abc" {
		t.Errorf("expected abc, got %q", got)
	}
}
