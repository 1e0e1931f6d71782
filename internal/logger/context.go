package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for InvocationContext in context.Context
var logContextKey = contextKey{}

// InvocationContext holds request-scoped logging context for one RPC
// invocation (client-side Invoke or server-side Accept).
type InvocationContext struct {
	TraceID   string    // OpenTelemetry trace ID
	SpanID    string    // OpenTelemetry span ID
	Instance  string    // component instance name being called
	Function  string    // function name within the instance
	PeerAddr  string    // remote peer address (client IP or server endpoint)
	StartTime time.Time // for duration calculation
}

// WithContext returns a new context with the given InvocationContext.
func WithContext(ctx context.Context, ic *InvocationContext) context.Context {
	return context.WithValue(ctx, logContextKey, ic)
}

// FromContext retrieves the InvocationContext from context, or nil if not present.
func FromContext(ctx context.Context) *InvocationContext {
	if ctx == nil {
		return nil
	}
	ic, _ := ctx.Value(logContextKey).(*InvocationContext)
	return ic
}

// NewInvocationContext creates a new InvocationContext for a call to/from peerAddr.
func NewInvocationContext(peerAddr string) *InvocationContext {
	return &InvocationContext{
		PeerAddr:  peerAddr,
		StartTime: time.Now(),
	}
}

// Clone creates a copy of the InvocationContext.
func (ic *InvocationContext) Clone() *InvocationContext {
	if ic == nil {
		return nil
	}
	return &InvocationContext{
		TraceID:   ic.TraceID,
		SpanID:    ic.SpanID,
		Instance:  ic.Instance,
		Function:  ic.Function,
		PeerAddr:  ic.PeerAddr,
		StartTime: ic.StartTime,
	}
}

// WithCall returns a copy with the instance/function pair set.
func (ic *InvocationContext) WithCall(instance, function string) *InvocationContext {
	clone := ic.Clone()
	if clone != nil {
		clone.Instance = instance
		clone.Function = function
	}
	return clone
}

// WithTrace returns a copy with trace info set.
func (ic *InvocationContext) WithTrace(traceID, spanID string) *InvocationContext {
	clone := ic.Clone()
	if clone != nil {
		clone.TraceID = traceID
		clone.SpanID = spanID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds.
func (ic *InvocationContext) DurationMs() float64 {
	if ic == nil || ic.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(ic.StartTime).Microseconds()) / 1000.0
}
