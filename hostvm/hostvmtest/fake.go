package hostvmtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/marmos91/witrpc/hostvm"
	"github.com/marmos91/witrpc/resource"
	"github.com/marmos91/witrpc/wit"
)

// FakeStore is an in-memory hostvm.Store. Zero value is not usable; use
// NewFakeStore.
type FakeStore struct {
	mu       sync.Mutex
	streams  map[int]hostvm.InputStream
	nextKey  int
	exported map[string]bool
	res      *resource.Table
}

// NewFakeStore constructs an empty FakeStore. exported lists the
// guest-exported resource type names this store should report as such.
func NewFakeStore(exported ...string) *FakeStore {
	set := make(map[string]bool, len(exported))
	for _, n := range exported {
		set[n] = true
	}
	return &FakeStore{
		streams:  make(map[int]hostvm.InputStream),
		exported: set,
		res:      resource.NewTable(),
	}
}

// InstallInputStream implements hostvm.Store.
func (s *FakeStore) InstallInputStream(_ context.Context, r hostvm.InputStream) (hostvm.ResourceHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.nextKey
	s.nextKey++
	s.streams[key] = r
	return hostvm.InputStreamHandle{Opaque: key}, nil
}

// OpenInputStream implements hostvm.Store.
func (s *FakeStore) OpenInputStream(_ context.Context, h hostvm.ResourceHandle) (hostvm.InputStream, error) {
	handle, ok := h.(hostvm.InputStreamHandle)
	if !ok {
		return nil, fmt.Errorf("hostvmtest: not an input-stream handle: %T", h)
	}
	key, ok := handle.Opaque.(int)
	if !ok {
		return nil, fmt.Errorf("hostvmtest: malformed input-stream handle")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.streams[key]
	if !ok {
		return nil, fmt.Errorf("hostvmtest: no such input stream: %d", key)
	}
	return r, nil
}

// Resources implements hostvm.Store.
func (s *FakeStore) Resources() *resource.Table { return s.res }

// IsGuestExported implements hostvm.Store.
func (s *FakeStore) IsGuestExported(name string) bool { return s.exported[name] }

// ByteInputStream is a fixed in-memory hostvm.InputStream, handed out in
// chunks no larger than ChunkSize (default: the whole remainder).
type ByteInputStream struct {
	Data      []byte
	ChunkSize int

	pos int
}

// Ready implements hostvm.InputStream; a fixed in-memory stream is always ready.
func (b *ByteInputStream) Ready(_ context.Context) error { return nil }

// Read implements hostvm.InputStream.
func (b *ByteInputStream) Read(_ context.Context, p []byte) (int, bool, error) {
	if b.pos >= len(b.Data) {
		return 0, true, nil
	}
	n := len(p)
	if b.ChunkSize > 0 && b.ChunkSize < n {
		n = b.ChunkSize
	}
	remaining := len(b.Data) - b.pos
	if n > remaining {
		n = remaining
	}
	copy(p, b.Data[b.pos:b.pos+n])
	b.pos += n
	return n, b.pos >= len(b.Data), nil
}

// FakeFunc is a fixed-shape hostvm.Func backed by a plain Go function.
type FakeFunc struct {
	Shape        wit.FuncType
	Impl         func(ctx context.Context, params []wit.Val) ([]wit.Val, error)
	PostReturnFn func(ctx context.Context) error

	called bool
}

// Type implements hostvm.Func.
func (f *FakeFunc) Type() wit.FuncType { return f.Shape }

// Call implements hostvm.Func.
func (f *FakeFunc) Call(ctx context.Context, params []wit.Val) ([]wit.Val, error) {
	f.called = true
	return f.Impl(ctx, params)
}

// PostReturn implements hostvm.Func.
func (f *FakeFunc) PostReturn(ctx context.Context) error {
	if f.PostReturnFn == nil {
		return nil
	}
	return f.PostReturnFn(ctx)
}

// Called reports whether Call has run at least once. Test helper only.
func (f *FakeFunc) Called() bool { return f.called }
