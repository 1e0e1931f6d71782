// Package transport defines the narrow session/stream contract the codec,
// client, and serve packages need from a concrete RPC transport (spec.md
// §6). The QUIC binding lives in the transport/quic subpackage; tests use
// the in-process fake in transport/transporttest.
package transport

import (
	"context"
	"io"
)

// Stream is one bidirectional byte stream: either an invocation's main
// session stream, or a sub-channel obtained from one via Index. Every
// Stream must support further indexing so that a deferred writer nested
// three levels deep (e.g. a stream inside a list inside a record) can reach
// its own independent sub-channel.
type Stream interface {
	io.Reader
	io.Writer

	// Index returns the sub-channel at the given path, opening it if
	// necessary. Paths are relative to this stream: Index([]uint32{0}) on a
	// sub-channel already reached via Index([]uint32{2}) addresses the
	// overall path [2, 0]. Callers that are about to write a deferred value
	// (internal/deferred) use Index; it is the initiating side of the
	// sub-channel.
	Index(path []uint32) (Stream, error)

	// IndexIncoming returns the sub-channel at the given path that the peer
	// is expected to open, blocking until it arrives rather than opening a
	// new one locally. Callers that are about to decode a deferred value
	// (codec) use IndexIncoming; it is the accepting side of the
	// sub-channel. Bindings where open and accept are indistinguishable
	// (e.g. an in-process pipe) may implement this identically to Index.
	IndexIncoming(path []uint32) (Stream, error)

	// CloseWrite signals graceful shutdown of the send side with the given
	// application code. Per spec.md §6, code 1 ("done") on the peer's
	// receive side is success; any other code is a warning.
	CloseWrite(ctx context.Context, code uint32) error

	// Close releases the stream. Safe to call after CloseWrite.
	Close() error
}

// Session is one invocation's pair of streams: Outgoing carries the
// request (client side) or the response (server side); Incoming carries
// the reverse direction.
type Session struct {
	Outgoing Stream
	Incoming Stream
}

// Invocation is one accepted server-side session, paired with the instance
// and function name the peer asked to call.
type Invocation struct {
	Instance string
	Function string
	Session  Session
}

// Transport opens outbound invocation sessions and accepts inbound ones.
// A single Transport value is shared by both the invoking and serving
// sides of a process that does both.
type Transport interface {
	// Invoke opens a new bidirectional session addressed to (instance,
	// function) and returns it once the peer has accepted the open.
	Invoke(ctx context.Context, instance, function string) (Session, error)

	// Accept returns a channel of inbound invocations. The channel is
	// closed when ctx is done or the transport itself is closed; any error
	// encountered while accepting is delivered via errs.
	Accept(ctx context.Context) (invocations <-chan Invocation, errs <-chan error)
}
