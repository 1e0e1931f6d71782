package client

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/witrpc/hostvm"
	"github.com/marmos91/witrpc/hostvm/hostvmtest"
	"github.com/marmos91/witrpc/internal/metrics"
	"github.com/marmos91/witrpc/serve"
	"github.com/marmos91/witrpc/transport"
	"github.com/marmos91/witrpc/transport/transporttest"
	"github.com/marmos91/witrpc/wit"
)

// fakeInvocationContext is a minimal hostvm.InvocationContext; these tests
// don't need a real deadline budget.
type fakeInvocationContext struct {
	timeout time.Duration
	set     bool
}

func (f fakeInvocationContext) InvocationTimeout() (time.Duration, bool) { return f.timeout, f.set }

func TestInvoke_RoundTripsThroughServe(t *testing.T) {
	pair := transporttest.New()
	store := hostvmtest.NewFakeStore()

	shape := wit.FuncType{
		Params:  []wit.Param{{Name: "x", Type: wit.U32()}},
		Results: []wit.Type{wit.U32()},
	}
	fn := &hostvmtest.FakeFunc{
		Shape: shape,
		Impl: func(_ context.Context, params []wit.Val) ([]wit.Val, error) {
			return []wit.Val{wit.U32Val(params[0].U32 * 2)}, nil
		},
	}

	server := serve.NewStatelessServer(
		map[serve.FunctionKey]hostvm.Func{
			{Instance: "demo:pkg/iface", Function: "double"}: fn,
		},
		func(context.Context, transport.Invocation) (hostvm.Store, error) { return store, nil },
		metrics.Null(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		_ = server.Accept(ctx, pair.Server)
	}()

	result, err := Invoke(
		context.Background(),
		pair.Client,
		fakeInvocationContext{},
		"demo:pkg/iface", "double",
		shape,
		[]wit.Val{wit.U32Val(21)},
		store,
		metrics.Null(),
	)
	require.NoError(t, err)
	require.Len(t, result.Values, 1)
	assert.Equal(t, uint32(42), result.Values[0].U32)
	assert.True(t, fn.Called())
}

func TestInvoke_ParamCountMismatch(t *testing.T) {
	pair := transporttest.New()
	store := hostvmtest.NewFakeStore()

	shape := wit.FuncType{
		Params:  []wit.Param{{Name: "x", Type: wit.U32()}},
		Results: []wit.Type{wit.U32()},
	}

	server := serve.NewStatelessServer(
		map[serve.FunctionKey]hostvm.Func{},
		func(context.Context, transport.Invocation) (hostvm.Store, error) { return store, nil },
		metrics.Null(),
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = server.Accept(ctx, pair.Server) }()

	_, err := Invoke(
		context.Background(),
		pair.Client,
		fakeInvocationContext{},
		"demo:pkg/iface", "double",
		shape,
		nil,
		store,
		metrics.Null(),
	)
	require.Error(t, err)
}

func TestInvoke_HonorsInvocationTimeout(t *testing.T) {
	pair := transporttest.New()
	store := hostvmtest.NewFakeStore()

	shape := wit.FuncType{Results: []wit.Type{wit.U32()}}

	// No server accepting: the in-process transport's Invoke blocks on an
	// unbuffered channel send that nothing receives, so the bounded context
	// must surface a timeout while opening the session rather than hang the
	// test.
	_, err := Invoke(
		context.Background(),
		pair.Client,
		fakeInvocationContext{timeout: 10 * time.Millisecond, set: true},
		"demo:pkg/iface", "never-served",
		shape,
		nil,
		store,
		metrics.Null(),
	)
	require.Error(t, err)
}
