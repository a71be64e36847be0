// Package obs wires up this module's ambient observability stack:
// structured logging to a rotating file (teacher pattern: cmd/sand's
// initSlog, generalized to rotate via lumberjack instead of a single
// truncated file) and OpenTelemetry tracing around guest creation and
// destruction (spec.md §9 "Observability" supplemented feature:
// Non-goals exclude CPU emulation and networking, not observability).
package obs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"gopkg.in/natefinch/lumberjack.v2"
)

// InitLogger installs a JSON slog.Logger writing to a lumberjack-rotated
// file as the process default, matching the teacher's JSON-over-a-file
// logging discipline but adding rotation (the teacher's single os.File
// handle never rotates, which is fine for a short-lived CLI invocation
// but not for a long-running daemon).
func InitLogger(logFile string, level slog.Level) (*slog.Logger, error) {
	if logFile == "" {
		logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)
		return logger, nil
	}

	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
		return nil, fmt.Errorf("obs: create log dir: %w", err)
	}

	w := &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    64, // megabytes
		MaxBackups: 5,
		MaxAge:     28, // days
		Compress:   true,
	}

	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	slog.Info("slog initialized", "logFile", logFile)
	return logger, nil
}

// ParseLevel maps the teacher's --log-level flag values onto slog levels.
func ParseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Tracer is the package-wide tracer used by span helpers below.
var Tracer = otel.Tracer("github.com/aurora-os/guestcore")

// InitTracing configures a global TracerProvider exporting spans over
// OTLP/gRPC to endpoint, returning a shutdown function the caller must
// invoke before exit to flush buffered spans. If endpoint is empty,
// tracing is left as the SDK's no-op default.
func InitTracing(ctx context.Context, serviceName, endpoint string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	// The otlp exporter's own gRPC client connection is instrumented with
	// otelgrpc so its export calls show up as spans/metrics too, useful
	// when debugging a collector that's silently dropping data.
	conn, err := grpc.NewClient(endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	)
	if err != nil {
		return nil, fmt.Errorf("obs: dial otlp collector: %w", err)
	}

	exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("obs: build otlp exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(serviceName),
	))
	if err != nil {
		return nil, fmt.Errorf("obs: build resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	Tracer = tp.Tracer(serviceName)

	return func(shutdownCtx context.Context) error {
		return tp.Shutdown(shutdownCtx)
	}, nil
}

// StartSpan is a thin convenience wrapper so call sites don't need to
// import otel/trace directly.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := Tracer.Start(ctx, name)
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	return ctx, span
}
