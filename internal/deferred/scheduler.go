// Package deferred implements the async deferred-write scheduler (C2):
// fanning a batch of sub-value/byte-stream writers out onto their own
// sub-channels concurrently, failing fast on the first error.
package deferred

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/marmos91/witrpc/internal/logger"
	"github.com/marmos91/witrpc/transport"
)

// Writer writes one deferred value onto the sub-channel it is handed.
type Writer struct {
	Path []uint32
	Run  func(ctx context.Context, s transport.Stream) error
}

// Run opens one sub-channel per writer off parent, at the writer's Path, and
// runs them concurrently. Each writer that succeeds has its sub-channel
// closed with the "done" code. The first writer (or sub-channel open or
// close) to fail cancels the rest (errgroup fail-fast semantics); Run
// returns that first error. Run does not close parent; callers do that with
// Shutdown.
func Run(ctx context.Context, parent transport.Stream, writers []Writer) error {
	if len(writers) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)

	for _, w := range writers {
		w := w
		g.Go(func() error {
			sub, err := parent.Index(w.Path)
			if err != nil {
				return err
			}
			if err := w.Run(gctx, sub); err != nil {
				return err
			}
			return sub.CloseWrite(gctx, doneCode)
		})
	}

	return g.Wait()
}

// doneCode is the graceful CloseWrite code meaning success, shared with the
// concrete transport bindings.
const doneCode = 1

// Shutdown gracefully closes parent's write side. Failures here are logged
// but not propagated: by the time all deferred writers have finished, the
// call's own success or failure is already fixed.
func Shutdown(ctx context.Context, parent transport.Stream) {
	if err := parent.CloseWrite(ctx, doneCode); err != nil {
		logger.Debug("deferred: shutdown of parent stream failed", logger.Err(err))
	}
}
