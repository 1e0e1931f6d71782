package hostvm

import "github.com/marmos91/witrpc/wit"

// ResourceHandle is the common type returned by Store for any resource
// minted or resolved on behalf of the codec. Concrete handles below narrow
// it to a specific resource identity; codec only ever needs the
// wit.ResourceHandle view.
type ResourceHandle = wit.ResourceHandle

// InputStreamHandle identifies a host input-stream resource previously
// installed in (or read from) a Store. Opaque is the store's own lookup key
// and is never interpreted by codec.
type InputStreamHandle struct {
	Opaque any
}

// ResourceKind implements wit.ResourceHandle.
func (InputStreamHandle) ResourceKind() wit.ResourceKind { return wit.ResourceHostInputStream }

// RemoteHandle wraps an opaque byte string minted by a remote peer for one
// of its own guest-exported resources. The local side cannot resolve it to
// anything beyond these bytes; it exists to be threaded back out over the
// wire unchanged (spec.md §4.1 case 3).
type RemoteHandle struct {
	Opaque []byte
}

// ResourceKind implements wit.ResourceHandle.
func (RemoteHandle) ResourceKind() wit.ResourceKind { return wit.ResourceRemote }

// GuestHandle identifies an instance of a resource type exported by the
// local guest component. TypeName matches a wit.Resource.Name; Object is
// the guest's own representation of the instance, opaque to codec.
type GuestHandle struct {
	TypeName string
	Object   any
}

// ResourceKind implements wit.ResourceHandle.
func (GuestHandle) ResourceKind() wit.ResourceKind { return wit.ResourceGuestExported }

// HostHandle wraps any other host-only resource. Attempting to encode one
// is always a hard error (spec.md §4.1 case 5); it exists so Store
// implementations have somewhere to put such values without codec needing
// to know their concrete host type.
type HostHandle struct {
	Object any
}

// ResourceKind implements wit.ResourceHandle.
func (HostHandle) ResourceKind() wit.ResourceKind { return wit.ResourceHost }
