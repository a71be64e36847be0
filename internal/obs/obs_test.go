package obs

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestInitLoggerEmptyPathUsesStderr(t *testing.T) {
	logger, err := InitLogger("", slog.LevelInfo)
	if err != nil {
		t.Fatalf("InitLogger: %v", err)
	}
	if logger == nil {
		t.Fatal("InitLogger returned nil logger")
	}
}

func TestInitLoggerCreatesRotatingFile(t *testing.T) {
	dir := t.TempDir()
	logFile := filepath.Join(dir, "nested", "guestcore.log")

	logger, err := InitLogger(logFile, slog.LevelDebug)
	if err != nil {
		t.Fatalf("InitLogger: %v", err)
	}
	logger.Info("hello", "k", "v")

	if _, err := os.Stat(logFile); err != nil {
		t.Fatalf("expected log file to be created: %v", err)
	}
}

func TestInitTracingNoEndpointIsNoop(t *testing.T) {
	shutdown, err := InitTracing(t.Context(), "guestcore-test", "")
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	if err := shutdown(t.Context()); err != nil {
		t.Errorf("no-op shutdown returned error: %v", err)
	}
}

func TestStartSpanReturnsContext(t *testing.T) {
	ctx, span := StartSpan(t.Context(), "test.span")
	if ctx == nil {
		t.Fatal("StartSpan returned nil context")
	}
	span.End()
}
