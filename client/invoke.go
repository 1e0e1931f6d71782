// Package client implements the invoke adapter (C4): the caller side of one
// bridge call, opening a transport session, encoding parameters, reading
// back the encoded result, and running any deferred writers the parameters
// produced.
package client

import (
	"context"
	"errors"
	"fmt"
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

// Result is the decoded outcome of one Invoke call.
type Result struct {
	Values []wit.Val
}

// Invoke calls instance.function on t with the given parameter values,
// encoding them against shape.ParamTypes(), sending them over a fresh
// session on tr, and decoding shape.Results from the reply.
//
// If inv reports an invocation timeout, the whole call (session open
// through final decode) is bounded by it; a call that does not finish in
// time returns an error whose Timeout method reports true.
//
// m may be nil; every Metrics method is a documented no-op on a nil
// receiver, so callers that don't care about metrics can pass metrics.Null().
func Invoke(
	ctx context.Context,
	tr transport.Transport,
	inv hostvm.InvocationContext,
	instance, function string,
	shape wit.FuncType,
	params []wit.Val,
	store hostvm.Store,
	m *metrics.Metrics,
) (result Result, err error) {
	ctx, span := telemetry.StartInvokeSpan(ctx, instance, function)

	outcome := "ok"
	start := time.Now()
	defer func() {
		m.RecordInvocation(instance, function, outcome, time.Since(start).Seconds())
		telemetry.EndWithOutcome(span, outcome, err)
	}()

	if timeout, ok := inv.InvocationTimeout(); ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	session, err := tr.Invoke(ctx, instance, function)
	if err != nil {
		err = wrapTimeout(ctx, "open invocation session", err)
		outcome = timeoutOutcome(err)
		return Result{}, err
	}

	if len(params) != len(shape.Params) {
		err = &codecErr{op: "encode parameters", msg: fmt.Sprintf("expected %d parameters, got %d", len(shape.Params), len(params))}
		outcome = "error"
		return Result{}, err
	}

	paramsType := wit.Tuple(shape.ParamTypes()...)
	paramsVal := wit.TupleVal(params...)

	encoded, writers, encErr := codec.Encode(ctx, paramsType, paramsVal, store)
	if encErr != nil {
		outcome = "error"
		return Result{}, encErr
	}
	m.RecordBytesWritten("params", len(encoded))
	span.SetAttributes(telemetry.ParamBytes(len(encoded)))

	if _, werr := session.Outgoing.Write(encoded); werr != nil {
		err = wrapTimeout(ctx, "write encoded parameters", werr)
		outcome = timeoutOutcome(err)
		return Result{}, err
	}

	deferErr := deferred.Run(ctx, session.Outgoing, writers)
	deferred.Shutdown(ctx, session.Outgoing)
	if deferErr != nil {
		err = wrapTimeout(ctx, "run deferred parameter writers", deferErr)
		outcome = timeoutOutcome(err)
		return Result{}, err
	}

	resultsType := wit.Tuple(shape.Results...)
	resultVal, decErr := codec.Decode(ctx, resultsType, session.Incoming, store, session.Incoming)
	if decErr != nil {
		err = wrapTimeout(ctx, "decode call results", decErr)
		outcome = timeoutOutcome(err)
		return Result{}, err
	}

	logger.Debug("client: invocation complete",
		logger.Instance(instance), logger.Function(function),
		logger.DurationMs(float64(time.Since(start).Microseconds())/1000))

	return Result{Values: resultVal.Tuple}, nil
}

// timeoutOutcome classifies err as "timeout" or "error" for metrics labels.
func timeoutOutcome(err error) string {
	var ce *codecErr
	if errors.As(err, &ce) && ce.Timeout() {
		return "timeout"
	}
	return "error"
}

// wrapTimeout reclassifies err as a timeout error if ctx's deadline has
// already passed, since a context-cancellation error surfacing from a
// lower layer (transport read/write) would otherwise be indistinguishable
// from an ordinary transport error.
func wrapTimeout(ctx context.Context, op string, err error) error {
	if ctx.Err() == context.DeadlineExceeded {
		return &codecErr{op: op, msg: "invocation deadline exceeded", cause: err, timeout: true}
	}
	return &codecErr{op: op, msg: "invocation failed", cause: err}
}

// codecErr is a lightweight local error carrier, kept separate from
// codec.CodecError since client does not want to force every caller to
// import codec's ErrorCode taxonomy just to report transport-level
// failures that occur outside the codec itself.
type codecErr struct {
	op      string
	msg     string
	cause   error
	timeout bool
}

func (e *codecErr) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("client: %s: %s: %v", e.op, e.msg, e.cause)
	}
	return fmt.Sprintf("client: %s: %s", e.op, e.msg)
}

func (e *codecErr) Unwrap() error { return e.cause }

// Timeout reports whether this error represents an invocation deadline
// having been exceeded.
func (e *codecErr) Timeout() bool { return e.timeout }
