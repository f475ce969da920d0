// Package logger provides structured logging infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Context key types for storing values in context
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"
	// PlannerIDKey is the context key for the planner a request targets
	PlannerIDKey contextKey = "planner_id"
)

// FileOptions configures rotation when logging to a file.
type FileOptions struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Logger wraps slog.Logger for structured logging
type Logger struct {
	*slog.Logger
}

// New creates a new logger based on environment, writing to stdout.
func New(env string) *Logger {
	return newWithWriter(env, os.Stdout)
}

// NewWithFile creates a logger that writes to a size-rotated file.
// An empty path falls back to stdout.
func NewWithFile(env string, opts FileOptions) *Logger {
	if strings.TrimSpace(opts.Path) == "" {
		return New(env)
	}

	return newWithWriter(env, &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   true,
	})
}

// Discard returns a logger that drops everything. Useful in tests.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func newWithWriter(env string, w io.Writer) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithContext returns a logger with context values extracted.
// Supports request_id and planner_id from context.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	newLogger := l

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		newLogger = newLogger.WithRequestID(requestID)
	}

	if plannerID, ok := ctx.Value(PlannerIDKey).(string); ok && plannerID != "" {
		newLogger = newLogger.WithPlannerID(plannerID)
	}

	return newLogger
}

// WithRequestID returns a logger with request ID
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("request_id", requestID)),
	}
}

// WithPlannerID returns a logger with planner ID
func (l *Logger) WithPlannerID(plannerID string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("planner_id", plannerID)),
	}
}

// HTTPRequest logs an HTTP request
func (l *Logger) HTTPRequest(method, path string, status int, latencyMs float64, clientIP string) {
	l.Info("http_request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("latency_ms", latencyMs),
		slog.String("client_ip", clientIP),
	)
}

// HTTPError logs an HTTP error
func (l *Logger) HTTPError(method, path string, status int, err error, clientIP string) {
	l.Error("http_error",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.String("error", err.Error()),
		slog.String("client_ip", clientIP),
	)
}

// ProviderCall logs one round-trip to an upstream geocoding, routing or ip provider.
func (l *Logger) ProviderCall(provider, operation string, status int, latency time.Duration, err error) {
	if err != nil {
		l.Warn("provider_call",
			slog.String("provider", provider),
			slog.String("operation", operation),
			slog.Int("status", status),
			slog.Int64("latency_ms", latency.Milliseconds()),
			slog.String("error", err.Error()),
		)
		return
	}
	l.Debug("provider_call",
		slog.String("provider", provider),
		slog.String("operation", operation),
		slog.Int("status", status),
		slog.Int64("latency_ms", latency.Milliseconds()),
	)
}

// StaleResponse logs a response dropped because a newer request superseded it.
func (l *Logger) StaleResponse(kind, field string, seq, latest uint64) {
	l.Debug("stale_response",
		slog.String("kind", kind),
		slog.String("field", field),
		slog.Uint64("seq", seq),
		slog.Uint64("latest", latest),
	)
}

// RateLimitExceeded logs rate limit events
func (l *Logger) RateLimitExceeded(clientIP, path string) {
	l.Warn("rate_limit_exceeded",
		slog.String("client_ip", clientIP),
		slog.String("path", path),
	)
}
