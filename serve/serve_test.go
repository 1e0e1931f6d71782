package serve

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/witrpc/codec"
	"github.com/marmos91/witrpc/hostvm"
	"github.com/marmos91/witrpc/hostvm/hostvmtest"
	"github.com/marmos91/witrpc/internal/metrics"
	"github.com/marmos91/witrpc/transport"
	"github.com/marmos91/witrpc/transport/transporttest"
	"github.com/marmos91/witrpc/wit"
)

func TestServer_StatelessPerCall_DecodesCallsAndEncodesResults(t *testing.T) {
	pair := transporttest.New()
	store := hostvmtest.NewFakeStore()

	shape := wit.FuncType{
		Params:  []wit.Param{{Name: "n", Type: wit.U32()}},
		Results: []wit.Type{wit.U32()},
	}
	fn := &hostvmtest.FakeFunc{
		Shape: shape,
		Impl: func(_ context.Context, params []wit.Val) ([]wit.Val, error) {
			return []wit.Val{wit.U32Val(params[0].U32 + 1)}, nil
		},
	}

	key := FunctionKey{Instance: "demo:pkg/iface", Function: "increment"}
	server := NewStatelessServer(
		map[FunctionKey]hostvm.Func{key: fn},
		func(context.Context, transport.Invocation) (hostvm.Store, error) { return store, nil },
		metrics.Null(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = server.Accept(ctx, pair.Server) }()

	session, err := pair.Client.Invoke(context.Background(), key.Instance, key.Function)
	require.NoError(t, err)

	paramsType := wit.Tuple(shape.ParamTypes()...)
	encoded, _, err := codec.Encode(context.Background(), paramsType, wit.TupleVal(wit.U32Val(41)), store)
	require.NoError(t, err)
	_, err = session.Outgoing.Write(encoded)
	require.NoError(t, err)
	require.NoError(t, session.Outgoing.CloseWrite(context.Background(), 1))

	resultsType := wit.Tuple(shape.Results...)
	resultVal, err := codec.Decode(context.Background(), resultsType, session.Incoming, store, session.Incoming)
	require.NoError(t, err)

	require.Len(t, resultVal.Tuple, 1)
	assert.Equal(t, uint32(42), resultVal.Tuple[0].U32)
	assert.True(t, fn.Called())
}

func TestServer_UnregisteredFunction_ClosesSessionWithoutCallingFunc(t *testing.T) {
	pair := transporttest.New()
	store := hostvmtest.NewFakeStore()

	server := NewStatelessServer(
		map[FunctionKey]hostvm.Func{},
		func(context.Context, transport.Invocation) (hostvm.Store, error) { return store, nil },
		metrics.Null(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = server.Accept(ctx, pair.Server) }()

	session, err := pair.Client.Invoke(context.Background(), "demo:pkg/iface", "missing")
	require.NoError(t, err)

	buf := make([]byte, 1)
	_, readErr := session.Incoming.Read(buf)
	assert.Error(t, readErr)
}

func TestServer_SharedStoreMode_SerializesCalls(t *testing.T) {
	pair := transporttest.New()
	store := hostvmtest.NewFakeStore()

	shape := wit.FuncType{Results: []wit.Type{wit.U32()}}
	fn := &hostvmtest.FakeFunc{
		Shape: shape,
		Impl: func(_ context.Context, _ []wit.Val) ([]wit.Val, error) {
			return []wit.Val{wit.U32Val(7)}, nil
		},
	}

	key := FunctionKey{Instance: "demo:pkg/iface", Function: "seven"}
	server := NewSharedStoreServer(map[FunctionKey]hostvm.Func{key: fn}, store, metrics.Null())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = server.Accept(ctx, pair.Server) }()

	session, err := pair.Client.Invoke(context.Background(), key.Instance, key.Function)
	require.NoError(t, err)

	emptyParams, _, err := codec.Encode(context.Background(), wit.Tuple(), wit.TupleVal(), store)
	require.NoError(t, err)
	_, err = session.Outgoing.Write(emptyParams)
	require.NoError(t, err)
	require.NoError(t, session.Outgoing.CloseWrite(context.Background(), 1))

	resultVal, err := codec.Decode(context.Background(), wit.Tuple(shape.Results...), session.Incoming, store, session.Incoming)
	require.NoError(t, err)
	require.Len(t, resultVal.Tuple, 1)
	assert.Equal(t, uint32(7), resultVal.Tuple[0].U32)
}
