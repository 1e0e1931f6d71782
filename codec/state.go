package codec

import (
	"bytes"
	"context"
	"io"

	"github.com/marmos91/witrpc/hostvm"
	"github.com/marmos91/witrpc/internal/deferred"
	"github.com/marmos91/witrpc/transport"
)

// Writer is a deferred sub-channel writer collected while encoding a value:
// a byte-stream chunker for an owned host input-stream, or a nested
// encoder for a sub-value that belongs on its own sub-channel. It is run
// later by internal/deferred against the sub-channel at its Path.
type Writer = deferred.Writer

// EncodeState threads the buffer, host store, and deferred-writer
// accumulator through one top-level Encode call. A fresh EncodeState is
// created per call; it is not safe for concurrent use.
type EncodeState struct {
	Buf   *bytes.Buffer
	Store hostvm.Store

	// path is the sub-channel path of the value currently being encoded,
	// extended by one element per list/record/tuple/variant descent that
	// can itself carry deferred writers.
	path []uint32

	Deferred []Writer
}

// newEncodeState constructs an EncodeState around buf and store.
func newEncodeState(buf *bytes.Buffer, store hostvm.Store) *EncodeState {
	return &EncodeState{Buf: buf, Store: store}
}

// descend returns a new sub-channel path one level deeper than the current
// one, ending in index. The state itself is not changed; withPath applies
// the returned path for the duration of a callback.
func (s *EncodeState) descend(index uint32) []uint32 {
	path := make([]uint32, len(s.path)+1)
	copy(path, s.path)
	path[len(path)-1] = index
	return path
}

func (s *EncodeState) withPath(path []uint32, fn func(*EncodeState)) {
	saved := s.path
	s.path = path
	fn(s)
	s.path = saved
}

func (s *EncodeState) deferWriter(w func(ctx context.Context, stream transport.Stream) error) {
	s.Deferred = append(s.Deferred, Writer{Path: append([]uint32(nil), s.path...), Run: w})
}

// DecodeState threads the byte source, host store, and sub-channel stream
// through one top-level Decode call.
type DecodeState struct {
	R     io.Reader
	Store hostvm.Store

	// Stream is the owning transport.Stream, used to open sub-channels for
	// own/borrow host input-stream decoding. May be nil when decoding
	// values known not to contain host input-streams (e.g. in tests).
	Stream transport.Stream

	path []uint32
}

func newDecodeState(r io.Reader, store hostvm.Store, stream transport.Stream) *DecodeState {
	return &DecodeState{R: r, Store: store, Stream: stream}
}

func (s *DecodeState) descend(index uint32) []uint32 {
	path := make([]uint32, len(s.path)+1)
	copy(path, s.path)
	path[len(path)-1] = index
	return path
}

func (s *DecodeState) withPath(path []uint32, fn func(*DecodeState)) {
	saved := s.path
	s.path = path
	fn(s)
	s.path = saved
}
