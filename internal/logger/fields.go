package logger

import (
	"fmt"
	"log/slog"
)

// Standard field keys for structured logging across the codec, transport,
// client, serve, and polyfill packages. Use these keys consistently so
// log aggregation/querying stays uniform across the invocation lifecycle.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// ========================================================================
	// Invocation identity
	// ========================================================================
	KeyInstance = "instance" // component instance name
	KeyFunction = "function" // function name within the instance
	KeyStatus   = "status"   // operation status (ok, error, timeout)

	// ========================================================================
	// Transport
	// ========================================================================
	KeyPeerAddr     = "peer_addr"     // remote peer address
	KeySessionID    = "session_id"    // transport session identifier
	KeySubchannel   = "subchannel"    // sub-channel index path
	KeyCloseCode    = "close_code"    // graceful-close code observed on shutdown
	KeyBytesWritten = "bytes_written" // bytes written to a stream
	KeyBytesRead    = "bytes_read"    // bytes read from a stream

	// ========================================================================
	// Value codec
	// ========================================================================
	KeyTypeShape = "type_shape" // wit.Type shape name (record, variant, ...)
	KeyFieldName = "field_name" // record field / variant case name
	KeyDiscIndex = "disc_index" // decoded discriminant index

	// ========================================================================
	// Shared-resource table
	// ========================================================================
	KeyResourceID = "resource_id" // 128-bit shared-resource identifier

	// ========================================================================
	// Operation metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // operation duration in milliseconds
	KeyError      = "error"       // error message
	KeyErrorCode  = "error_code"  // numeric/string error code
	KeyOperation  = "operation"   // sub-operation label (encode, decode, flush, ...)
	KeyAttempt    = "attempt"     // retry/attempt counter (informational only; no retries performed)
)

// ============================================================================
// Field constructors for type safety
// ============================================================================

// TraceID returns a slog.Attr for the OpenTelemetry trace ID.
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// SpanID returns a slog.Attr for the OpenTelemetry span ID.
func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

// Instance returns a slog.Attr for the component instance name.
func Instance(name string) slog.Attr {
	return slog.String(KeyInstance, name)
}

// Function returns a slog.Attr for the function name.
func Function(name string) slog.Attr {
	return slog.String(KeyFunction, name)
}

// Status returns a slog.Attr for an operation status string.
func Status(status string) slog.Attr {
	return slog.String(KeyStatus, status)
}

// PeerAddr returns a slog.Attr for a remote peer address.
func PeerAddr(addr string) slog.Attr {
	return slog.String(KeyPeerAddr, addr)
}

// SessionID returns a slog.Attr for a transport session identifier.
func SessionID(id string) slog.Attr {
	return slog.String(KeySessionID, id)
}

// Subchannel returns a slog.Attr describing a sub-channel index path.
func Subchannel(path []uint32) slog.Attr {
	return slog.String(KeySubchannel, fmt.Sprintf("%v", path))
}

// CloseCode returns a slog.Attr for a transport graceful-close code.
func CloseCode(code uint32) slog.Attr {
	return slog.Uint64(KeyCloseCode, uint64(code))
}

// BytesWritten returns a slog.Attr for bytes written to a stream.
func BytesWritten(n int) slog.Attr {
	return slog.Int(KeyBytesWritten, n)
}

// BytesRead returns a slog.Attr for bytes read from a stream.
func BytesRead(n int) slog.Attr {
	return slog.Int(KeyBytesRead, n)
}

// TypeShape returns a slog.Attr for a wit.Type shape name.
func TypeShape(shape string) slog.Attr {
	return slog.String(KeyTypeShape, shape)
}

// FieldName returns a slog.Attr for a record field or variant case name.
func FieldName(name string) slog.Attr {
	return slog.String(KeyFieldName, name)
}

// DiscIndex returns a slog.Attr for a decoded discriminant index.
func DiscIndex(idx uint32) slog.Attr {
	return slog.Uint64(KeyDiscIndex, uint64(idx))
}

// ResourceID returns a slog.Attr for a shared-resource identifier.
func ResourceID(id string) slog.Attr {
	return slog.String(KeyResourceID, id)
}

// DurationMs returns a slog.Attr for an operation duration in milliseconds.
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error value, or a no-op attr if err is nil.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// ErrorCode returns a slog.Attr for a named error code.
func ErrorCode(code string) slog.Attr {
	return slog.String(KeyErrorCode, code)
}

// Operation returns a slog.Attr for a sub-operation label.
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// Attempt returns a slog.Attr for an attempt counter.
func Attempt(n int) slog.Attr {
	return slog.Int(KeyAttempt, n)
}
