package codec

import (
	"context"
	"fmt"
	"io"

	"github.com/marmos91/witrpc/hostvm"
	"github.com/marmos91/witrpc/resource"
	"github.com/marmos91/witrpc/transport"
	"github.com/marmos91/witrpc/wit"
)

// resourceIDLen is the fixed width of a minted shared-resource identifier.
const resourceIDLen = 16

// encodeResource handles own<R>/borrow<R> values. Which of the five
// sub-cases applies is determined entirely by the schema (t.Res.Kind),
// never by runtime inspection of the value alone, so encode and decode
// agree on the wire shape without an extra discriminant byte.
func encodeResource(ctx context.Context, state *EncodeState, t wit.Type, v wit.Val) error {
	switch t.Res.Kind {
	case wit.ResourceHostInputStream:
		if t.Kind == wit.KindBorrow {
			return newErr(ErrUnsupportedConstruct, "encode borrowed host input-stream",
				fmt.Errorf("borrowed input-streams cannot cross the wire"))
		}
		handle, ok := v.Handle.(hostvm.InputStreamHandle)
		if !ok {
			return shapeMismatch("encode owned host input-stream", "hostvm.InputStreamHandle", v.Handle)
		}
		src, err := state.Store.OpenInputStream(ctx, handle)
		if err != nil {
			return newErr(ErrHostVM, "open input stream for encode", err)
		}
		state.deferWriter(func(ctx context.Context, s transport.Stream) error {
			return writeInputStreamChunks(ctx, src, s)
		})
		return nil

	case wit.ResourceRemote:
		handle, ok := v.Handle.(hostvm.RemoteHandle)
		if !ok {
			return shapeMismatch("encode remote resource", "hostvm.RemoteHandle", v.Handle)
		}
		if err := writeUvarint(state.Buf, uint64(len(handle.Opaque))); err != nil {
			return newErr(ErrTransport, "write remote resource length", err)
		}
		if _, err := state.Buf.Write(handle.Opaque); err != nil {
			return newErr(ErrTransport, "write remote resource bytes", err)
		}
		return nil

	case wit.ResourceGuestExported:
		handle, ok := v.Handle.(hostvm.GuestHandle)
		if !ok {
			return shapeMismatch("encode guest-exported resource", "hostvm.GuestHandle", v.Handle)
		}
		if !state.Store.IsGuestExported(handle.TypeName) {
			return newErr(ErrUnsupportedConstruct, "encode guest-exported resource",
				fmt.Errorf("resource type %q is not exported by the bound guest component", handle.TypeName))
		}
		id := state.Store.Resources().Insert(handle)
		if err := writeUvarint(state.Buf, resourceIDLen); err != nil {
			return newErr(ErrResourceTable, "write resource id length", err)
		}
		if _, err := state.Buf.Write(id.Bytes()); err != nil {
			return newErr(ErrResourceTable, "write resource id", err)
		}
		return nil

	default:
		return newErr(ErrUnsupportedConstruct, "encode host resource",
			fmt.Errorf("resource kind %d cannot cross the wire", t.Res.Kind))
	}
}

// decodeResource is the inverse of encodeResource, dispatching on the same
// t.Res.Kind.
func decodeResource(ctx context.Context, state *DecodeState, t wit.Type) (wit.Val, error) {
	switch t.Res.Kind {
	case wit.ResourceHostInputStream:
		if t.Kind == wit.KindBorrow {
			return wit.Val{}, newErr(ErrUnsupportedConstruct, "decode borrowed host input-stream",
				fmt.Errorf("borrowed input-streams cannot cross the wire"))
		}
		if state.Stream == nil {
			return wit.Val{}, newErr(ErrUnsupportedConstruct, "decode owned host input-stream",
				fmt.Errorf("no transport stream available to open sub-channel"))
		}
		sub, err := state.Stream.IndexIncoming(state.path)
		if err != nil {
			return wit.Val{}, newErr(ErrTransport, "open input-stream sub-channel", err)
		}
		handle, err := state.Store.InstallInputStream(ctx, newChunkedInputStream(sub))
		if err != nil {
			return wit.Val{}, newErr(ErrHostVM, "install decoded input stream", err)
		}
		return wit.Val{Kind: t.Kind, Handle: handle}, nil

	case wit.ResourceRemote:
		n, err := readUvarint(state.R)
		if err != nil {
			return wit.Val{}, newErr(ErrDecode, "read remote resource length", err)
		}
		opaque := make([]byte, n)
		if _, err := io.ReadFull(state.R, opaque); err != nil {
			return wit.Val{}, newErr(ErrDecode, "read remote resource bytes", err)
		}
		return wit.Val{Kind: t.Kind, Handle: hostvm.RemoteHandle{Opaque: opaque}}, nil

	case wit.ResourceGuestExported:
		n, err := readUvarint(state.R)
		if err != nil {
			return wit.Val{}, newErr(ErrDecode, "read resource id length", err)
		}
		if n != resourceIDLen {
			return wit.Val{}, newErr(ErrDecode, "read resource id",
				fmt.Errorf("expected %d-byte identifier, got %d", resourceIDLen, n))
		}
		idBytes := make([]byte, n)
		if _, err := io.ReadFull(state.R, idBytes); err != nil {
			return wit.Val{}, newErr(ErrDecode, "read resource id bytes", err)
		}
		id := resource.IDFromBytes(idBytes)
		handle, ok := state.Store.Resources().Lookup(id)
		if !ok {
			return wit.Val{}, newErr(ErrResourceTable, "resolve resource id",
				fmt.Errorf("unknown shared-resource identifier %s", id))
		}
		resHandle, ok := handle.(wit.ResourceHandle)
		if !ok {
			return wit.Val{}, newErr(ErrResourceTable, "resolve resource id",
				fmt.Errorf("resolved handle does not implement wit.ResourceHandle"))
		}
		return wit.Val{Kind: t.Kind, Handle: resHandle}, nil

	default:
		return wit.Val{}, newErr(ErrUnsupportedConstruct, "decode host resource",
			fmt.Errorf("resource kind %d cannot cross the wire", t.Res.Kind))
	}
}
