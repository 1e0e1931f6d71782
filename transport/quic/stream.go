package quic

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	quicgo "github.com/quic-go/quic-go"

	"github.com/marmos91/witrpc/internal/logger"
	"github.com/marmos91/witrpc/transport"
)

// subTag/invocationTag distinguish a sub-channel stream's header from a
// top-level invocation's requestHeader, since both are plain QUIC streams
// multiplexed on the same connection and otherwise indistinguishable to
// whichever side accepts them.
const (
	invocationTag byte = 0
	subTag        byte = 1
)

// stream wraps one quic-go stream plus the parent connection it was opened
// on, so Index can open further sibling streams for sub-channels. root and
// path identify this stream's place in the sub-channel tree rooted at one
// top-level invocation, so inbound sub-channel streams arriving on the same
// connection can be routed back to the matching IndexIncoming call.
type stream struct {
	conn quicgo.Connection
	s    quicgo.Stream
	cs   *connState
	root quicgo.StreamID
	path []uint32

	mu   sync.Mutex
	subs map[uint32]transport.Stream
}

// wrapRootStream wraps a top-level invocation stream (either side: opened
// by Invoke or accepted by the connection's accept loop), rooting the
// sub-channel tree at its own stream ID.
func wrapRootStream(conn quicgo.Connection, s quicgo.Stream, cs *connState) *stream {
	return &stream{conn: conn, s: s, cs: cs, root: s.StreamID(), subs: make(map[uint32]transport.Stream)}
}

func wrapChildStream(conn quicgo.Connection, s quicgo.Stream, cs *connState, root quicgo.StreamID, path []uint32) *stream {
	return &stream{conn: conn, s: s, cs: cs, root: root, path: path, subs: make(map[uint32]transport.Stream)}
}

func (s *stream) Read(p []byte) (int, error)  { return s.s.Read(p) }
func (s *stream) Write(p []byte) (int, error) { return s.s.Write(p) }

// Index opens (or returns the cached) sub-channel for path, writing a
// sub-channel header so the peer's accept loop can route its own inbound
// stream to the matching IndexIncoming call.
func (s *stream) Index(path []uint32) (transport.Stream, error) {
	if len(path) == 0 {
		return s, nil
	}

	head := path[0]

	s.mu.Lock()
	cached, ok := s.subs[head]
	s.mu.Unlock()
	if ok {
		return cached.Index(path[1:])
	}

	if s.conn == nil {
		return nil, fmt.Errorf("quic: stream has no connection to open sub-channels on")
	}

	sub, err := s.conn.OpenStreamSync(context.Background())
	if err != nil {
		return nil, fmt.Errorf("quic: open sub-channel %d: %w", head, err)
	}

	childPath := append(append([]uint32(nil), s.path...), head)
	if err := writeSubHeader(sub, s.root, childPath); err != nil {
		return nil, fmt.Errorf("quic: write sub-channel header %d: %w", head, err)
	}

	wrapped := wrapChildStream(s.conn, sub, s.cs, s.root, childPath)

	s.mu.Lock()
	s.subs[head] = wrapped
	s.mu.Unlock()

	return wrapped.Index(path[1:])
}

// IndexIncoming implements transport.Stream by waiting for the peer to open
// the matching sub-channel, rather than opening one itself, resolving the
// asymmetry between the encoding side (which opens) and the decoding side
// (which must accept) of an owned-resource sub-channel.
func (s *stream) IndexIncoming(path []uint32) (transport.Stream, error) {
	if len(path) == 0 {
		return s, nil
	}

	head := path[0]

	s.mu.Lock()
	cached, ok := s.subs[head]
	s.mu.Unlock()
	if ok {
		return cached.IndexIncoming(path[1:])
	}

	if s.cs == nil {
		return nil, fmt.Errorf("quic: stream has no connection registry to accept sub-channels on")
	}

	childPath := append(append([]uint32(nil), s.path...), head)
	sub, err := s.cs.accept(context.Background(), s.root, childPath)
	if err != nil {
		return nil, fmt.Errorf("quic: accept sub-channel %d: %w", head, err)
	}

	wrapped := wrapChildStream(s.conn, sub, s.cs, s.root, childPath)

	s.mu.Lock()
	s.subs[head] = wrapped
	s.mu.Unlock()

	return wrapped.IndexIncoming(path[1:])
}

// CloseWrite implements transport.Stream by closing the send side of the
// QUIC stream. code is not transmitted; a code other than doneCode is only
// logged locally.
func (s *stream) CloseWrite(_ context.Context, code uint32) error {
	if code != doneCode {
		logger.Warn("quic: stream closed with non-success code",
			logger.CloseCode(code))
	}
	return s.s.Close()
}

// Close implements transport.Stream.
func (s *stream) Close() error {
	return s.s.Close()
}

var _ io.Reader = (*stream)(nil)
var _ io.Writer = (*stream)(nil)
var _ transport.Stream = (*stream)(nil)

// connState is the per-connection rendezvous registry routing inbound
// sub-channel streams (opened by the peer via Index) to local IndexIncoming
// calls waiting on them. One connState is shared by every stream wrapped on
// a given QUIC connection, client or server side alike.
type connState struct {
	mu      sync.Mutex
	ready   map[string]quicgo.Stream
	waiters map[string]chan quicgo.Stream
}

func newConnState() *connState {
	return &connState{
		ready:   make(map[string]quicgo.Stream),
		waiters: make(map[string]chan quicgo.Stream),
	}
}

func subKey(root quicgo.StreamID, path []uint32) string {
	return fmt.Sprintf("%d:%v", root, path)
}

// deliver hands an inbound sub-channel stream to a waiting IndexIncoming
// call, or stashes it until one arrives.
func (c *connState) deliver(root quicgo.StreamID, path []uint32, s quicgo.Stream) {
	key := subKey(root, path)

	c.mu.Lock()
	ch, ok := c.waiters[key]
	if ok {
		delete(c.waiters, key)
	} else {
		c.ready[key] = s
	}
	c.mu.Unlock()

	if ok {
		ch <- s
	}
}

// accept returns the inbound sub-channel stream for (root, path), blocking
// until it arrives if the peer hasn't opened it yet.
func (c *connState) accept(ctx context.Context, root quicgo.StreamID, path []uint32) (quicgo.Stream, error) {
	key := subKey(root, path)

	c.mu.Lock()
	if s, ok := c.ready[key]; ok {
		delete(c.ready, key)
		c.mu.Unlock()
		return s, nil
	}
	ch := make(chan quicgo.Stream, 1)
	c.waiters[key] = ch
	c.mu.Unlock()

	select {
	case s := <-ch:
		return s, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// writeSubHeader writes a sub-channel stream's routing header: the subTag,
// the root invocation stream's ID, the path length, and each path element,
// all LEB128-encoded.
func writeSubHeader(w io.Writer, root quicgo.StreamID, path []uint32) error {
	var buf [1 + binary.MaxVarintLen64*2]byte
	buf[0] = subTag
	n := 1
	n += binary.PutUvarint(buf[n:], uint64(root))
	n += binary.PutUvarint(buf[n:], uint64(len(path)))
	if _, err := w.Write(buf[:n]); err != nil {
		return err
	}
	for _, p := range path {
		var pbuf [binary.MaxVarintLen64]byte
		pn := binary.PutUvarint(pbuf[:], uint64(p))
		if _, err := w.Write(pbuf[:pn]); err != nil {
			return err
		}
	}
	return nil
}

// readSubHeader reads the root ID and path written by writeSubHeader,
// having already consumed the leading subTag byte.
func readSubHeader(r io.Reader) (quicgo.StreamID, []uint32, error) {
	br := byteAtATimeReader{r}
	root, err := binary.ReadUvarint(br)
	if err != nil {
		return 0, nil, fmt.Errorf("read root stream id: %w", err)
	}
	count, err := binary.ReadUvarint(br)
	if err != nil {
		return 0, nil, fmt.Errorf("read path length: %w", err)
	}
	path := make([]uint32, count)
	for i := range path {
		v, err := binary.ReadUvarint(br)
		if err != nil {
			return 0, nil, fmt.Errorf("read path element %d: %w", i, err)
		}
		path[i] = uint32(v)
	}
	return quicgo.StreamID(root), path, nil
}
