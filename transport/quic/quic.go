// Package quic binds the transport.Transport/Stream contract onto QUIC
// bidirectional streams using github.com/quic-go/quic-go, one stream per
// session or sub-channel.
//
// Raw QUIC streams have no notion of Index; this binding synthesizes one by
// writing a header immediately after a stream opens: a tag byte, then for a
// sub-channel the root invocation stream's ID, the path length and each path
// component, all LEB128-encoded, so the accepting side can correlate an
// inbound stream with the sub-channel the sender meant.
package quic

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	quicgo "github.com/quic-go/quic-go"

	"github.com/marmos91/witrpc/internal/logger"
	"github.com/marmos91/witrpc/transport"
)

// doneCode is the graceful CloseWrite application code meaning success
// (spec.md §6). CloseWrite logs any other code as a warning on the closing
// side; the code itself is not sent to the peer, which only sees the stream
// end.
const doneCode = 1

// Transport adapts a quic-go *Listener (server side) and per-peer
// *Connection (client side) to transport.Transport.
type Transport struct {
	conn   quicgo.Connection
	connCS *connState

	// listener is set only on the accepting side; nil for a client-only
	// Transport built around a single dialed connection.
	listener *quicgo.Listener

	mu        sync.Mutex
	accept    chan transport.Invocation
	errs      chan error
	clientRun bool
}

// NewClient wraps an already-dialed QUIC connection for outbound Invoke calls.
func NewClient(conn quicgo.Connection) *Transport {
	return &Transport{conn: conn, connCS: newConnState()}
}

// NewServer wraps a QUIC listener for Accept. Every invocation-tagged bidi
// stream the peer opens on an accepted connection is read as one invocation
// request.
func NewServer(l *quicgo.Listener) *Transport {
	return &Transport{listener: l}
}

// Invoke implements transport.Transport.
func (t *Transport) Invoke(ctx context.Context, instance, function string) (transport.Session, error) {
	if t.conn == nil {
		return transport.Session{}, fmt.Errorf("quic: transport has no outbound connection")
	}

	t.ensureClientInboundLoop(ctx)

	stream, err := t.conn.OpenStreamSync(ctx)
	if err != nil {
		return transport.Session{}, fmt.Errorf("quic: open stream: %w", err)
	}

	header := requestHeader{Instance: instance, Function: function}
	if err := header.writeTo(stream); err != nil {
		_ = stream.Close()
		return transport.Session{}, fmt.Errorf("quic: write invocation header: %w", err)
	}

	s := wrapRootStream(t.conn, stream, t.connCS)
	return transport.Session{Outgoing: s, Incoming: s}, nil
}

// ensureClientInboundLoop starts, at most once, the background loop that
// classifies every stream the peer opens back on this connection: a client
// Transport otherwise never calls AcceptStream, so a sub-channel the peer
// opens while encoding a reply (e.g. an owned host input-stream in the
// results) would never be read and IndexIncoming would block forever.
func (t *Transport) ensureClientInboundLoop(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.clientRun {
		return
	}
	t.clientRun = true
	go acceptInbound(ctx, t.conn, t.connCS, nil)
}

// Accept implements transport.Transport.
func (t *Transport) Accept(ctx context.Context) (<-chan transport.Invocation, <-chan error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.accept == nil {
		t.accept = make(chan transport.Invocation)
		t.errs = make(chan error, 1)
		go t.acceptLoop(ctx)
	}
	return t.accept, t.errs
}

func (t *Transport) acceptLoop(ctx context.Context) {
	defer close(t.accept)

	for {
		conn, err := t.listener.Accept(ctx)
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			t.errs <- fmt.Errorf("quic: accept connection: %w", err)
			return
		}
		go acceptInbound(ctx, conn, newConnState(), t.accept)
	}
}

// acceptInbound runs the per-connection stream classifier loop: every
// stream the peer opens on conn arrives here first, tagged as either a new
// top-level invocation (delivered to invocations, if non-nil) or a
// sub-channel of an existing invocation (delivered to cs for a waiting
// IndexIncoming call). A client-side connection passes a nil invocations
// channel, since it never accepts inbound invocations of its own.
func acceptInbound(ctx context.Context, conn quicgo.Connection, cs *connState, invocations chan<- transport.Invocation) {
	for {
		stream, err := conn.AcceptStream(ctx)
		if err != nil {
			select {
			case <-ctx.Done():
			default:
				logger.Debug("quic: accept stream error", logger.Err(err))
			}
			return
		}

		tag, err := readTag(stream)
		if err != nil {
			logger.Warn("quic: malformed stream header", logger.Err(err))
			_ = stream.Close()
			continue
		}

		switch tag {
		case subTag:
			root, path, err := readSubHeader(stream)
			if err != nil {
				logger.Warn("quic: malformed sub-channel header", logger.Err(err))
				_ = stream.Close()
				continue
			}
			cs.deliver(root, path, stream)

		case invocationTag:
			if invocations == nil {
				logger.Warn("quic: received unexpected invocation stream on outbound-only connection")
				_ = stream.Close()
				continue
			}
			header, err := readRequestHeader(stream)
			if err != nil {
				logger.Warn("quic: malformed invocation header", logger.Err(err))
				_ = stream.Close()
				continue
			}
			s := wrapRootStream(conn, stream, cs)
			inv := transport.Invocation{
				Instance: header.Instance,
				Function: header.Function,
				Session:  transport.Session{Outgoing: s, Incoming: s},
			}
			select {
			case invocations <- inv:
			case <-ctx.Done():
				return
			}

		default:
			logger.Warn("quic: unknown stream tag, closing")
			_ = stream.Close()
		}
	}
}

func readTag(r io.Reader) (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, fmt.Errorf("read stream tag: %w", err)
	}
	return b[0], nil
}

// requestHeader is the synthetic framing written at the start of every
// top-level invocation stream, before any codec bytes.
type requestHeader struct {
	Instance string
	Function string
}

func (h requestHeader) writeTo(w io.Writer) error {
	var buf bytes.Buffer
	buf.WriteByte(invocationTag)
	writeLenPrefixed(&buf, h.Instance)
	writeLenPrefixed(&buf, h.Function)
	_, err := w.Write(buf.Bytes())
	return err
}

func readRequestHeader(r io.Reader) (requestHeader, error) {
	instance, err := readLenPrefixed(r)
	if err != nil {
		return requestHeader{}, err
	}
	function, err := readLenPrefixed(r)
	if err != nil {
		return requestHeader{}, err
	}
	return requestHeader{Instance: instance, Function: function}, nil
}

func writeLenPrefixed(buf *bytes.Buffer, s string) {
	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(s)))
	buf.Write(lenBuf[:n])
	buf.WriteString(s)
}

// byteAtATimeReader adapts an io.Reader to io.ByteReader without any
// read-ahead buffering, so binary.ReadUvarint never consumes bytes that
// belong to the frame following the header.
type byteAtATimeReader struct{ io.Reader }

func (r byteAtATimeReader) ReadByte() (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(r.Reader, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func readLenPrefixed(r io.Reader) (string, error) {
	n, err := binary.ReadUvarint(byteAtATimeReader{r})
	if err != nil {
		return "", fmt.Errorf("quic: read length prefix: %w", err)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("quic: read string body: %w", err)
	}
	return string(buf), nil
}
