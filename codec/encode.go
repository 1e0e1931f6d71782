package codec

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/marmos91/witrpc/hostvm"
	"github.com/marmos91/witrpc/wit"
)

// Encode serializes v against t, returning the encoded bytes for the main
// stream plus any deferred writers that must be run against sub-channels
// once the main bytes have been flushed (spec.md §4.1, §5). store resolves
// own/borrow resource values encountered along the way.
func Encode(ctx context.Context, t wit.Type, v wit.Val, store hostvm.Store) ([]byte, []Writer, error) {
	var buf bytes.Buffer
	state := newEncodeState(&buf, store)

	if err := encodeValue(ctx, state, t, v); err != nil {
		return nil, nil, err
	}
	return buf.Bytes(), state.Deferred, nil
}

func encodeValue(ctx context.Context, state *EncodeState, t wit.Type, v wit.Val) error {
	if v.Kind != t.Kind {
		return shapeMismatch("encode value", t.Kind, v.Kind)
	}

	switch t.Kind {
	case wit.KindBool:
		b := byte(0)
		if v.B {
			b = 1
		}
		return state.Buf.WriteByte(b)

	case wit.KindS8:
		return state.Buf.WriteByte(byte(v.I8))
	case wit.KindU8:
		return state.Buf.WriteByte(v.U8)
	case wit.KindS16:
		return writeVarint(state.Buf, int64(v.I16))
	case wit.KindU16:
		return writeUvarint(state.Buf, uint64(v.U16))
	case wit.KindS32:
		return writeVarint(state.Buf, int64(v.I32))
	case wit.KindU32:
		return writeUvarint(state.Buf, uint64(v.U32))
	case wit.KindS64:
		return writeVarint(state.Buf, v.I64)
	case wit.KindU64:
		return writeUvarint(state.Buf, v.U64)

	case wit.KindFloat32:
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], math.Float32bits(v.F32))
		_, err := state.Buf.Write(b[:])
		return err

	case wit.KindFloat64:
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], math.Float64bits(v.F64))
		_, err := state.Buf.Write(b[:])
		return err

	case wit.KindChar:
		_, err := state.Buf.WriteString(string(v.Ch))
		return err

	case wit.KindString:
		if err := writeUvarint(state.Buf, uint64(len(v.Str))); err != nil {
			return newErr(ErrTransport, "write string length", err)
		}
		_, err := state.Buf.WriteString(v.Str)
		return err

	case wit.KindList:
		return encodeList(ctx, state, t, v)

	case wit.KindRecord:
		return encodeRecord(ctx, state, t, v)

	case wit.KindTuple:
		return encodeTuple(ctx, state, t, v)

	case wit.KindVariant:
		return encodeVariant(ctx, state, t, v)

	case wit.KindEnum:
		return encodeEnum(state, t, v)

	case wit.KindOption:
		return encodeOption(ctx, state, t, v)

	case wit.KindResult:
		return encodeResult(ctx, state, t, v)

	case wit.KindFlags:
		return encodeFlags(state.Buf, t, v)

	case wit.KindOwn, wit.KindBorrow:
		return encodeResource(ctx, state, t, v)

	default:
		return newErr(ErrUnsupportedConstruct, "encode value", fmt.Errorf("unknown kind %v", t.Kind))
	}
}

func encodeList(ctx context.Context, state *EncodeState, t wit.Type, v wit.Val) error {
	if err := writeUvarint(state.Buf, uint64(len(v.List))); err != nil {
		return newErr(ErrTransport, "write list count", err)
	}
	for i, elem := range v.List {
		var err error
		state.withPath(state.descend(uint32(i)), func(s *EncodeState) {
			err = encodeValue(ctx, s, *t.Elem, elem)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func encodeRecord(ctx context.Context, state *EncodeState, t wit.Type, v wit.Val) error {
	if len(v.Record) != len(t.Fields) {
		return shapeMismatch("encode record", len(t.Fields), len(v.Record))
	}
	for i, field := range t.Fields {
		if v.Record[i].Name != field.Name {
			return shapeMismatch("encode record field order", field.Name, v.Record[i].Name)
		}
		var err error
		state.withPath(state.descend(uint32(i)), func(s *EncodeState) {
			err = encodeValue(ctx, s, field.Type, v.Record[i].Val)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func encodeTuple(ctx context.Context, state *EncodeState, t wit.Type, v wit.Val) error {
	if len(v.Tuple) != len(t.Elems) {
		return shapeMismatch("encode tuple", len(t.Elems), len(v.Tuple))
	}
	for i, elemType := range t.Elems {
		var err error
		state.withPath(state.descend(uint32(i)), func(s *EncodeState) {
			err = encodeValue(ctx, s, elemType, v.Tuple[i])
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func encodeVariant(ctx context.Context, state *EncodeState, t wit.Type, v wit.Val) error {
	width, err := discWidth(len(t.Cases))
	if err != nil {
		return newErr(ErrSchemaOverflow, "encode variant discriminant width", err)
	}

	idx, c := findCase(t.Cases, v.Case)
	if idx < 0 {
		return shapeMismatch("encode variant case", "declared case", v.Case)
	}
	if err := writeDisc(state.Buf, width, uint32(idx)); err != nil {
		return newErr(ErrTransport, "write variant discriminant", err)
	}

	if c.Type == nil {
		return nil
	}
	if v.Payload == nil {
		return shapeMismatch("encode variant payload", "payload present", "nil")
	}

	var payloadErr error
	state.withPath(state.descend(uint32(idx)), func(s *EncodeState) {
		payloadErr = encodeValue(ctx, s, *c.Type, *v.Payload)
	})
	return payloadErr
}

func encodeEnum(state *EncodeState, t wit.Type, v wit.Val) error {
	width, err := discWidth(len(t.Names))
	if err != nil {
		return newErr(ErrSchemaOverflow, "encode enum discriminant width", err)
	}
	idx := findName(t.Names, v.Case)
	if idx < 0 {
		return shapeMismatch("encode enum case", "declared case", v.Case)
	}
	return writeDisc(state.Buf, width, uint32(idx))
}

func encodeOption(ctx context.Context, state *EncodeState, t wit.Type, v wit.Val) error {
	if v.Some == nil {
		return state.Buf.WriteByte(0)
	}
	if err := state.Buf.WriteByte(1); err != nil {
		return err
	}
	var err error
	state.withPath(state.descend(0), func(s *EncodeState) {
		err = encodeValue(ctx, s, *t.Elem, *v.Some)
	})
	return err
}

func encodeResult(ctx context.Context, state *EncodeState, t wit.Type, v wit.Val) error {
	tag := byte(0)
	if v.IsErr {
		tag = 1
	}
	if err := state.Buf.WriteByte(tag); err != nil {
		return err
	}

	side := t.Ok
	if v.IsErr {
		side = t.Err
	}
	if side == nil {
		if v.ResultOf != nil {
			return shapeMismatch("encode result payload", "no payload declared", "payload present")
		}
		return nil
	}
	if v.ResultOf == nil {
		return shapeMismatch("encode result payload", "payload declared", "nil")
	}

	var err error
	state.withPath(state.descend(0), func(s *EncodeState) {
		err = encodeValue(ctx, s, *side, *v.ResultOf)
	})
	return err
}

func findCase(cases []wit.Case, name string) (int, wit.Case) {
	for i, c := range cases {
		if c.Name == name {
			return i, c
		}
	}
	return -1, wit.Case{}
}

func findName(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}
