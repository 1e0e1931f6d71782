// Package resource implements the shared-resource table (spec.md §4.3): a
// mapping from locally-minted 128-bit time-ordered identifiers to host
// resource handles, owned by one host store.
package resource

import (
	"github.com/google/uuid"
)

// ID is a 128-bit time-ordered shared-resource identifier. It is minted
// locally when a guest-exported resource is first shared across the wire
// and is otherwise opaque to the peer that receives it.
type ID [16]byte

// String renders the identifier in canonical UUID form.
func (id ID) String() string {
	return uuid.UUID(id).String()
}

// Bytes returns the identifier's 16 raw bytes.
func (id ID) Bytes() []byte {
	return id[:]
}

// IDFromBytes parses a 16-byte slice into an ID. The caller must ensure len(b) == 16.
func IDFromBytes(b []byte) ID {
	var id ID
	copy(id[:], b)
	return id
}

// newID mints a fresh time-ordered (UUIDv7) identifier.
func newID() ID {
	u, err := uuid.NewV7()
	if err != nil {
		// uuid.NewV7 fails only when reading random bytes fails. The
		// fallback is uuid.New, a random (v4) identifier that is not time
		// ordered; it panics if randomness is still unavailable.
		return ID(uuid.New())
	}
	return ID(u)
}
