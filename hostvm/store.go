// Package hostvm defines the narrow contract the codec and serve packages
// need from the embedding guest VM and its host store (spec.md §6): enough
// to read/write host input-streams, mint and resolve guest-exported
// resources, and invoke/post-return exported functions. The VM's own
// engine, instantiation, and linking concerns live outside this module.
package hostvm

import (
	"context"
	"time"

	"github.com/marmos91/witrpc/resource"
	"github.com/marmos91/witrpc/wit"
)

// Store is the per-session collaborator the codec consults while encoding
// or decoding own<R>/borrow<R> values and while installing deferred
// byte-stream writers. A Store may serve a single call session or be shared
// across calls (serve's ModeSharedStore, polyfill stubs); its shared-resource
// table lives as long as the Store does.
type Store interface {
	// InstallInputStream registers a freshly received byte-stream reader
	// under a new host input-stream resource and returns a handle the guest
	// can subsequently read through. Called on the receiving side of an
	// owned host input-stream (spec.md §4.1 case 1).
	InstallInputStream(ctx context.Context, r InputStream) (ResourceHandle, error)

	// OpenInputStream returns the InputStream backing an input-stream
	// resource handle previously minted by this store, so its bytes can be
	// fanned out onto a deferred sub-channel (spec.md §4.1 case 1, send
	// side).
	OpenInputStream(ctx context.Context, h ResourceHandle) (InputStream, error)

	// Resources returns the shared-resource table scoped to this session,
	// used to mint and resolve guest-exported resource identifiers.
	Resources() *resource.Table

	// IsGuestExported reports whether the named resource type is exported
	// by the guest component currently bound to this store.
	IsGuestExported(name string) bool
}

// InputStream is the host's async byte-source resource, read in bounded
// chunks by the deferred-write scheduler (C2).
type InputStream interface {
	// Ready blocks until at least one byte is available, eof, or ctx is
	// done.
	Ready(ctx context.Context) error

	// Read returns up to len(p) bytes. eof is true once the stream is
	// exhausted; a final zero-length, eof=true read is expected and is not
	// itself an error.
	Read(ctx context.Context, p []byte) (n int, eof bool, err error)
}

// Func is one exported or imported component function, addressable by the
// serve/client packages without reference to the VM's own call mechanism.
type Func interface {
	// Type describes the function's parameter and result shape.
	Type() wit.FuncType

	// Call invokes the function with decoded parameter values and returns
	// its decoded results.
	Call(ctx context.Context, params []wit.Val) ([]wit.Val, error)

	// PostReturn runs the guest's post-return cleanup hook, if any, after
	// the results have been fully encoded and flushed (spec.md §4.5).
	PostReturn(ctx context.Context) error
}

// InvocationContext exposes host-session configuration the client and serve
// adapters need but that does not belong in the wire codec itself.
type InvocationContext interface {
	// InvocationTimeout returns the deadline budget for one call, if the
	// host has configured one.
	InvocationTimeout() (time.Duration, bool)
}
