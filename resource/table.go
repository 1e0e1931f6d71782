package resource

import (
	"sync"

	"github.com/marmos91/witrpc/internal/logger"
)

// Table is a mapping from shared-resource identifiers to opaque host
// handles, owned by the per-session host context. Table is mutated only
// under its own mutex; the mutex also serves as the exclusivity boundary
// that C1 (the codec) relies on when mutating the table during encode or
// decode of own<R>/borrow<R> values (spec.md §9).
//
// The table grows monotonically for the lifetime of a session: entries are
// never removed by this package. It is the caller's responsibility to drop
// the table (and everything it references) when the containing store is
// torn down.
type Table struct {
	mu      sync.Mutex
	entries map[ID]any
}

// NewTable constructs an empty shared-resource table.
func NewTable() *Table {
	return &Table{entries: make(map[ID]any)}
}

// Insert mints a fresh identifier for handle and records it in the table.
// A minted identifier colliding with an existing entry is a loud internal
// bug — vanishingly unlikely for a time-ordered 128-bit identifier — and is
// logged at error level. Per spec.md §3, the new binding still takes effect
// (the table is not allowed to silently keep serving the old entry's
// identity under a new handle), but the collision itself must not pass
// unnoticed.
func (t *Table) Insert(handle any) ID {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := newID()
	if _, exists := t.entries[id]; exists {
		logger.Error("shared-resource identifier collision",
			logger.ResourceID(id.String()))
	}
	t.entries[id] = handle
	return id
}

// Lookup returns the handle registered under id, or ok=false if absent.
func (t *Table) Lookup(id ID) (any, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	h, ok := t.entries[id]
	return h, ok
}

// Len reports the number of entries currently in the table. Exposed mainly
// for tests and metrics.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
