// Package logging provides structured logging with request context fields.
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type contextKey string

const (
	// TraceIDKey holds the per-request trace id.
	TraceIDKey contextKey = "trace_id"
	// UserIDKey holds the authenticated identity-provider subject.
	UserIDKey contextKey = "user_id"
)

// Logger wraps logrus with the service name and context-derived fields.
type Logger struct {
	log     *logrus.Logger
	service string
}

// New creates a logger. format is "json" or "text"; unknown levels fall back to info.
func New(service, level, format string) *Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)

	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)

	if strings.EqualFold(format, "text") {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	}

	return &Logger{log: l, service: service}
}

// NewDiscard returns a logger that drops everything. Used by tests.
func NewDiscard() *Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return &Logger{log: l, service: "test"}
}

// SetOutput redirects log output.
func (l *Logger) SetOutput(w io.Writer) {
	l.log.SetOutput(w)
}

// WithContext returns an entry carrying the service name, trace id and user id.
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	entry := l.log.WithField("service", l.service)
	if ctx == nil {
		return entry
	}
	if traceID := GetTraceID(ctx); traceID != "" {
		entry = entry.WithField("trace_id", traceID)
	}
	if userID := GetUserID(ctx); userID != "" {
		entry = entry.WithField("user_id", userID)
	}
	return entry
}

// Debug logs at debug level.
func (l *Logger) Debug(ctx context.Context, msg string, fields map[string]interface{}) {
	l.WithContext(ctx).WithFields(fields).Debug(msg)
}

// Info logs at info level.
func (l *Logger) Info(ctx context.Context, msg string, fields map[string]interface{}) {
	l.WithContext(ctx).WithFields(fields).Info(msg)
}

// Warn logs at warn level.
func (l *Logger) Warn(ctx context.Context, msg string, fields map[string]interface{}) {
	l.WithContext(ctx).WithFields(fields).Warn(msg)
}

// Error logs at error level with the cause attached.
func (l *Logger) Error(ctx context.Context, msg string, err error, fields map[string]interface{}) {
	l.WithContext(ctx).WithFields(fields).WithError(err).Error(msg)
}

// LogRequest records a completed HTTP request.
func (l *Logger) LogRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
	entry := l.WithContext(ctx).WithFields(logrus.Fields{
		"method":      method,
		"path":        path,
		"status":      status,
		"duration_ms": duration.Milliseconds(),
	})
	switch {
	case status >= 500:
		entry.Error("request completed")
	case status >= 400:
		entry.Warn("request completed")
	default:
		entry.Info("request completed")
	}
}

// LogSecurityEvent records authentication and throttling events.
func (l *Logger) LogSecurityEvent(ctx context.Context, event string, fields map[string]interface{}) {
	l.WithContext(ctx).WithFields(fields).WithField("security_event", event).Warn("security event")
}

// =============================================================================
// Context helpers
// =============================================================================

// NewTraceID generates a trace id.
func NewTraceID() string {
	return uuid.New().String()
}

// WithTraceID stores a trace id in the context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// GetTraceID returns the trace id, or "".
func GetTraceID(ctx context.Context) string {
	v, _ := ctx.Value(TraceIDKey).(string)
	return v
}

// WithUserID stores the authenticated user id in the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// GetUserID returns the authenticated user id, or "".
func GetUserID(ctx context.Context) string {
	v, _ := ctx.Value(UserIDKey).(string)
	return v
}
