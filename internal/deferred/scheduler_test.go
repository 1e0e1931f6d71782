package deferred

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/witrpc/transport"
	"github.com/marmos91/witrpc/transport/transporttest"
)

// session returns a connected pair of streams from an in-process transport,
// draining the server side's Accept channel so the client's Invoke doesn't
// block forever on an unhandled invocation.
func session(t *testing.T) (client, server transport.Stream) {
	t.Helper()

	pair := transporttest.New()
	invocations, _ := pair.Server.Accept(context.Background())

	done := make(chan transport.Invocation, 1)
	go func() {
		inv := <-invocations
		done <- inv
	}()

	clientSession, err := pair.Client.Invoke(context.Background(), "wasi:rpc/bridge", "call")
	require.NoError(t, err)

	inv := <-done
	return clientSession.Outgoing, inv.Session.Incoming
}

func TestRun_NoWriters(t *testing.T) {
	client, _ := session(t)
	err := Run(context.Background(), client, nil)
	assert.NoError(t, err)
}

func TestRun_SingleWriterDelivers(t *testing.T) {
	client, server := session(t)

	written := make(chan []byte, 1)
	go func() {
		sub, err := server.Index([]uint32{0})
		require.NoError(t, err)
		buf := make([]byte, 5)
		n, _ := io.ReadFull(sub, buf)
		written <- buf[:n]
	}()

	err := Run(context.Background(), client, []Writer{
		{Path: []uint32{0}, Run: func(_ context.Context, s transport.Stream) error {
			_, err := s.Write([]byte("hello"))
			return err
		}},
	})
	require.NoError(t, err)

	assert.Equal(t, []byte("hello"), <-written)
}

func TestRun_FirstErrorWins(t *testing.T) {
	client, _ := session(t)

	boom := errors.New("boom")
	err := Run(context.Background(), client, []Writer{
		{Path: []uint32{0}, Run: func(_ context.Context, s transport.Stream) error {
			return boom
		}},
		{Path: []uint32{1}, Run: func(ctx context.Context, s transport.Stream) error {
			<-ctx.Done()
			return ctx.Err()
		}},
	})
	require.ErrorIs(t, err, boom)
}

func TestRun_IndependentSubChannels(t *testing.T) {
	client, server := session(t)

	const n = 4
	results := make(chan uint32, n)
	for i := uint32(0); i < n; i++ {
		i := i
		go func() {
			sub, err := server.Index([]uint32{i})
			require.NoError(t, err)
			buf := make([]byte, 1)
			_, _ = io.ReadFull(sub, buf)
			results <- uint32(buf[0])
		}()
	}

	writers := make([]Writer, n)
	for i := uint32(0); i < n; i++ {
		i := i
		writers[i] = Writer{Path: []uint32{i}, Run: func(_ context.Context, s transport.Stream) error {
			_, err := s.Write([]byte{byte(i)})
			return err
		}}
	}

	require.NoError(t, Run(context.Background(), client, writers))

	seen := map[uint32]bool{}
	for i := uint32(0); i < n; i++ {
		seen[<-results] = true
	}
	for i := uint32(0); i < n; i++ {
		assert.True(t, seen[i])
	}
}

func TestShutdown_ClosesWriteSide(t *testing.T) {
	client, _ := session(t)
	Shutdown(context.Background(), client)
}
