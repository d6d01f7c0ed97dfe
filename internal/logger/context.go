package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context
var logContextKey = contextKey{}

// LogContext holds request-scoped logging context
type LogContext struct {
	TraceID   string    // OpenTelemetry trace ID
	SpanID    string    // OpenTelemetry span ID
	Remote    string    // Remote name the operation belongs to
	Ref       string    // Ref being pulled, if any
	TxID      string    // Object store transaction ID, if any
	StartTime time.Time // For duration calculation
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a new LogContext for a pull against the given remote.
func NewLogContext(remote string) *LogContext {
	return &LogContext{
		Remote:    remote,
		StartTime: time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	return &LogContext{
		TraceID:   lc.TraceID,
		SpanID:    lc.SpanID,
		Remote:    lc.Remote,
		Ref:       lc.Ref,
		TxID:      lc.TxID,
		StartTime: lc.StartTime,
	}
}

// WithRef returns a copy with the ref set
func (lc *LogContext) WithRef(ref string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Ref = ref
	}
	return clone
}

// WithTxID returns a copy with the transaction ID set
func (lc *LogContext) WithTxID(txID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TxID = txID
	}
	return clone
}

// WithTrace returns a copy with trace info set
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TraceID = traceID
		clone.SpanID = spanID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
