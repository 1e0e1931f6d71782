// Package serve implements the serve adapter (C5): accepting inbound
// invocations, decoding parameters, calling the matching host function,
// encoding and flushing results, running deferred writers, and invoking
// the guest's post-return cleanup hook.
package serve

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/witrpc/codec"
	"github.com/marmos91/witrpc/hostvm"
	"github.com/marmos91/witrpc/internal/deferred"
	"github.com/marmos91/witrpc/internal/logger"
	"github.com/marmos91/witrpc/internal/metrics"
	"github.com/marmos91/witrpc/internal/telemetry"
	"github.com/marmos91/witrpc/transport"
	"github.com/marmos91/witrpc/wit"
)

// Mode selects how concurrent calls share the underlying hostvm.Store.
type Mode int

const (
	// ModeStatelessPerCall hands each accepted invocation an independent
	// Store (StoreFactory is called once per call); calls never contend
	// with each other.
	ModeStatelessPerCall Mode = iota

	// ModeSharedStore serializes every call against a single shared Store
	// under a mutex, for guest components whose exported functions are not
	// safe to run concurrently against shared state.
	ModeSharedStore
)

// FunctionKey addresses one exported function by its containing instance.
type FunctionKey struct {
	Instance string
	Function string
}

// StoreFactory builds a fresh hostvm.Store for one invocation. Used only
// in ModeStatelessPerCall.
type StoreFactory func(ctx context.Context, inv transport.Invocation) (hostvm.Store, error)

// Server accepts invocations on a transport.Transport and dispatches them
// to registered host functions.
type Server struct {
	funcs   map[FunctionKey]hostvm.Func
	mode    Mode
	factory StoreFactory

	// sharedStore and callMu back ModeSharedStore; callMu serializes every
	// Func.Call against the one store.
	sharedStore hostvm.Store
	callMu      sync.Mutex

	// metrics is nil-safe; Server always has one (possibly metrics.Null()).
	metrics *metrics.Metrics
}

// NewStatelessServer constructs a Server in ModeStatelessPerCall.
func NewStatelessServer(funcs map[FunctionKey]hostvm.Func, factory StoreFactory, m *metrics.Metrics) *Server {
	return &Server{funcs: funcs, mode: ModeStatelessPerCall, factory: factory, metrics: m}
}

// NewSharedStoreServer constructs a Server in ModeSharedStore, serializing
// every call against store.
func NewSharedStoreServer(funcs map[FunctionKey]hostvm.Func, store hostvm.Store, m *metrics.Metrics) *Server {
	return &Server{funcs: funcs, mode: ModeSharedStore, sharedStore: store, metrics: m}
}

// Accept runs the accept loop against tr until ctx is done or tr's Accept
// channel closes. Each invocation is handled in its own goroutine under
// ModeStatelessPerCall; under ModeSharedStore, calls still run concurrently
// up to the point of acquiring callMu, so decode of independent calls is
// not serialized, only the actual Func.Call.
func (s *Server) Accept(ctx context.Context, tr transport.Transport) error {
	invocations, errs := tr.Accept(ctx)

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case inv, ok := <-invocations:
			if !ok {
				return nil
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.handle(ctx, inv)
			}()
		case err := <-errs:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Server) handle(ctx context.Context, inv transport.Invocation) {
	key := FunctionKey{Instance: inv.Instance, Function: inv.Function}
	fn, ok := s.funcs[key]
	if !ok {
		logger.Warn("serve: no handler registered for invocation",
			logger.Instance(inv.Instance), logger.Function(inv.Function))
		_ = inv.Session.Incoming.Close()
		return
	}

	store, err := s.storeFor(ctx, inv)
	if err != nil {
		logger.Error("serve: failed to obtain store for invocation",
			logger.Instance(inv.Instance), logger.Function(inv.Function), logger.Err(err))
		_ = inv.Session.Incoming.Close()
		return
	}

	if err := s.call(ctx, inv, fn, store); err != nil {
		logger.Error("serve: invocation failed",
			logger.Instance(inv.Instance), logger.Function(inv.Function), logger.Err(err))
	}
}

func (s *Server) storeFor(ctx context.Context, inv transport.Invocation) (hostvm.Store, error) {
	switch s.mode {
	case ModeSharedStore:
		return s.sharedStore, nil
	default:
		return s.factory(ctx, inv)
	}
}

func (s *Server) call(ctx context.Context, inv transport.Invocation, fn hostvm.Func, store hostvm.Store) (err error) {
	ctx, span := telemetry.StartServeSpan(ctx, inv.Instance, inv.Function)

	outcome := "ok"
	start := time.Now()
	defer func() {
		s.metrics.RecordInvocation(inv.Instance, inv.Function, outcome, time.Since(start).Seconds())
		telemetry.EndWithOutcome(span, outcome, err)
	}()

	shape := fn.Type()
	paramsType := wit.Tuple(shape.ParamTypes()...)

	paramsVal, err := codec.Decode(ctx, paramsType, inv.Session.Incoming, store, inv.Session.Incoming)
	if err != nil {
		outcome = "error"
		return fmt.Errorf("decode parameters: %w", err)
	}

	if s.mode == ModeSharedStore {
		s.callMu.Lock()
	}
	results, callErr := fn.Call(ctx, paramsVal.Tuple)
	if s.mode == ModeSharedStore {
		s.callMu.Unlock()
	}
	if callErr != nil {
		outcome = "error"
		return fmt.Errorf("call exported function: %w", callErr)
	}
	s.metrics.SetResourceTableSize(store.Resources().Len())

	resultsType := wit.Tuple(shape.Results...)
	resultsVal := wit.TupleVal(results...)

	encoded, writers, encErr := codec.Encode(ctx, resultsType, resultsVal, store)
	if encErr != nil {
		outcome = "error"
		return fmt.Errorf("encode results: %w", encErr)
	}
	s.metrics.RecordBytesWritten("results", len(encoded))
	span.SetAttributes(telemetry.ResultBytes(len(encoded)))

	if _, werr := inv.Session.Outgoing.Write(encoded); werr != nil {
		outcome = "error"
		return fmt.Errorf("write encoded results: %w", werr)
	}

	deferStart := time.Now()
	if derr := deferred.Run(ctx, inv.Session.Outgoing, writers); derr != nil {
		deferred.Shutdown(ctx, inv.Session.Outgoing)
		s.metrics.RecordDeferredWriter("error", time.Since(deferStart).Seconds())
		outcome = "error"
		return fmt.Errorf("run deferred result writers: %w", derr)
	}
	deferred.Shutdown(ctx, inv.Session.Outgoing)
	if len(writers) > 0 {
		s.metrics.RecordDeferredWriter("ok", time.Since(deferStart).Seconds())
	}

	if perr := fn.PostReturn(ctx); perr != nil {
		logger.Warn("serve: post-return cleanup failed",
			logger.Instance(inv.Instance), logger.Function(inv.Function), logger.Err(perr))
	}

	return nil
}
