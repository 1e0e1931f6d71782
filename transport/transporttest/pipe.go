// Package transporttest provides an in-process transport.Transport backed
// by io.Pipe, for tests that exercise client/serve/polyfill/codec without a
// live QUIC socket.
package transporttest

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/marmos91/witrpc/transport"
)

// Pair is a connected client/server pair of in-process transports. Use New
// to construct one.
type Pair struct {
	Client *Transport
	Server *Transport
}

// New constructs a connected client/server Pair sharing an unbuffered
// invocation channel: every Client.Invoke is delivered to Server.Accept.
func New() *Pair {
	invocations := make(chan transport.Invocation)
	return &Pair{
		Client: &Transport{peerInvocations: invocations},
		Server: &Transport{myInvocations: invocations},
	}
}

// Transport is one side of an in-process Pair.
type Transport struct {
	peerInvocations chan<- transport.Invocation
	myInvocations   <-chan transport.Invocation
}

// Invoke implements transport.Transport by creating a shared link and
// handing the server's end to the peer's Accept channel.
func (t *Transport) Invoke(ctx context.Context, instance, function string) (transport.Session, error) {
	if t.peerInvocations == nil {
		return transport.Session{}, fmt.Errorf("transporttest: this Transport has no peer to invoke")
	}

	l := newLink()
	clientStream := l.side(true)
	serverStream := l.side(false)

	clientSide := transport.Session{Outgoing: clientStream, Incoming: clientStream}
	serverSide := transport.Session{Outgoing: serverStream, Incoming: serverStream}

	select {
	case t.peerInvocations <- transport.Invocation{Instance: instance, Function: function, Session: serverSide}:
	case <-ctx.Done():
		return transport.Session{}, ctx.Err()
	}

	return clientSide, nil
}

// Accept implements transport.Transport.
func (t *Transport) Accept(ctx context.Context) (<-chan transport.Invocation, <-chan error) {
	errs := make(chan error)
	if t.myInvocations == nil {
		close(errs)
		empty := make(chan transport.Invocation)
		close(empty)
		return empty, errs
	}

	out := make(chan transport.Invocation)
	go func() {
		defer close(out)
		for {
			select {
			case inv, ok := <-t.myInvocations:
				if !ok {
					return
				}
				select {
				case out <- inv:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, errs
}

// link is a bidirectional, recursively-indexable connection between two
// stream endpoints. Each top-level Invoke creates one link; each Index call
// on either endpoint lazily creates a child link shared by both sides so
// that a sub-channel opened from the client end and the matching read from
// the server end resolve to the same pipe pair.
type link struct {
	aToB *io.PipeWriter
	bFromA *io.PipeReader
	bToA *io.PipeWriter
	aFromB *io.PipeReader

	mu       sync.Mutex
	children map[uint32]*link
}

func newLink() *link {
	bFromA, aToB := io.Pipe()
	aFromB, bToA := io.Pipe()
	return &link{
		aToB: aToB, bFromA: bFromA,
		bToA: bToA, aFromB: aFromB,
		children: make(map[uint32]*link),
	}
}

func (l *link) side(isA bool) *stream {
	return &stream{link: l, isA: isA}
}

// childAt returns (creating if necessary) the child link at index head,
// observed from either endpoint.
func (l *link) childAt(head uint32) *link {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.children[head]
	if !ok {
		c = newLink()
		l.children[head] = c
	}
	return c
}

// stream is one endpoint of a link: isA selects which pipe pair this
// endpoint reads from and writes to.
type stream struct {
	link *link
	isA  bool
}

func (s *stream) Read(p []byte) (int, error) {
	if s.isA {
		return s.link.aFromB.Read(p)
	}
	return s.link.bFromA.Read(p)
}

func (s *stream) Write(p []byte) (int, error) {
	if s.isA {
		return s.link.aToB.Write(p)
	}
	return s.link.bToA.Write(p)
}

// Index returns the sub-channel at path, materializing it on first use from
// either endpoint.
func (s *stream) Index(path []uint32) (transport.Stream, error) {
	if len(path) == 0 {
		return s, nil
	}
	child := s.link.childAt(path[0])
	return child.side(s.isA).Index(path[1:])
}

// IndexIncoming implements transport.Stream. The in-process link is
// symmetric: whichever endpoint touches a given path first materializes it,
// so accepting a sub-channel is the same operation as opening one.
func (s *stream) IndexIncoming(path []uint32) (transport.Stream, error) {
	return s.Index(path)
}

// CloseWrite half-closes the write side. io.Pipe has no half-close distinct
// from full close, so this closes the writer only; the code is accepted but
// not transmitted (the in-process fake has no wire to carry it on).
func (s *stream) CloseWrite(_ context.Context, _ uint32) error {
	if s.isA {
		return s.link.aToB.Close()
	}
	return s.link.bToA.Close()
}

func (s *stream) Close() error {
	var werr, rerr error
	if s.isA {
		werr = s.link.aToB.Close()
		rerr = s.link.aFromB.Close()
	} else {
		werr = s.link.bToA.Close()
		rerr = s.link.bFromA.Close()
	}
	if werr != nil {
		return werr
	}
	return rerr
}

var _ transport.Stream = (*stream)(nil)
