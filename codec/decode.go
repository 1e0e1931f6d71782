package codec

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"unicode/utf8"

	"github.com/marmos91/witrpc/hostvm"
	"github.com/marmos91/witrpc/transport"
	"github.com/marmos91/witrpc/wit"
)

// Decode reads one value of shape t from r, consuming exactly as many
// bytes as t's shape dictates (the wire format is self-delimiting; there is
// no overall length prefix). store resolves own/borrow resource values;
// stream is the owning session stream, used to open sub-channels for owned
// host input-streams (may be nil if t is known not to contain any).
func Decode(ctx context.Context, t wit.Type, r io.Reader, store hostvm.Store, stream transport.Stream) (wit.Val, error) {
	state := newDecodeState(r, store, stream)
	return decodeValue(ctx, state, t)
}

// DecodeBytes is a convenience wrapper around Decode for callers that
// already have the full encoded value in memory (tests, primarily).
func DecodeBytes(ctx context.Context, t wit.Type, b []byte, store hostvm.Store, stream transport.Stream) (wit.Val, error) {
	return Decode(ctx, t, bytes.NewReader(b), store, stream)
}

func decodeValue(ctx context.Context, state *DecodeState, t wit.Type) (wit.Val, error) {
	switch t.Kind {
	case wit.KindBool:
		b, err := readByte(state.R)
		if err != nil {
			return wit.Val{}, newErr(ErrDecode, "decode bool", err)
		}
		return wit.BoolVal(b != 0), nil

	case wit.KindS8:
		b, err := readByte(state.R)
		if err != nil {
			return wit.Val{}, newErr(ErrDecode, "decode s8", err)
		}
		return wit.S8Val(int8(b)), nil

	case wit.KindU8:
		b, err := readByte(state.R)
		if err != nil {
			return wit.Val{}, newErr(ErrDecode, "decode u8", err)
		}
		return wit.U8Val(b), nil

	case wit.KindS16:
		v, err := readVarint(state.R)
		if err != nil {
			return wit.Val{}, newErr(ErrDecode, "decode s16", err)
		}
		return wit.S16Val(int16(v)), nil

	case wit.KindU16:
		v, err := readUvarint(state.R)
		if err != nil {
			return wit.Val{}, newErr(ErrDecode, "decode u16", err)
		}
		return wit.U16Val(uint16(v)), nil

	case wit.KindS32:
		v, err := readVarint(state.R)
		if err != nil {
			return wit.Val{}, newErr(ErrDecode, "decode s32", err)
		}
		return wit.S32Val(int32(v)), nil

	case wit.KindU32:
		v, err := readUvarint(state.R)
		if err != nil {
			return wit.Val{}, newErr(ErrDecode, "decode u32", err)
		}
		return wit.U32Val(uint32(v)), nil

	case wit.KindS64:
		v, err := readVarint(state.R)
		if err != nil {
			return wit.Val{}, newErr(ErrDecode, "decode s64", err)
		}
		return wit.S64Val(v), nil

	case wit.KindU64:
		v, err := readUvarint(state.R)
		if err != nil {
			return wit.Val{}, newErr(ErrDecode, "decode u64", err)
		}
		return wit.U64Val(v), nil

	case wit.KindFloat32:
		var b [4]byte
		if _, err := io.ReadFull(state.R, b[:]); err != nil {
			return wit.Val{}, newErr(ErrDecode, "decode float32", err)
		}
		return wit.Float32Val(math.Float32frombits(binary.LittleEndian.Uint32(b[:]))), nil

	case wit.KindFloat64:
		var b [8]byte
		if _, err := io.ReadFull(state.R, b[:]); err != nil {
			return wit.Val{}, newErr(ErrDecode, "decode float64", err)
		}
		return wit.Float64Val(math.Float64frombits(binary.LittleEndian.Uint64(b[:]))), nil

	case wit.KindChar:
		r, _, err := readRune(state.R)
		if err != nil {
			return wit.Val{}, newErr(ErrDecode, "decode char", err)
		}
		return wit.CharVal(r), nil

	case wit.KindString:
		n, err := readUvarint(state.R)
		if err != nil {
			return wit.Val{}, newErr(ErrDecode, "decode string length", err)
		}
		buf := make([]byte, n)
		if _, err := io.ReadFull(state.R, buf); err != nil {
			return wit.Val{}, newErr(ErrDecode, "decode string bytes", err)
		}
		return wit.StringVal(string(buf)), nil

	case wit.KindList:
		return decodeList(ctx, state, t)

	case wit.KindRecord:
		return decodeRecord(ctx, state, t)

	case wit.KindTuple:
		return decodeTuple(ctx, state, t)

	case wit.KindVariant:
		return decodeVariant(ctx, state, t)

	case wit.KindEnum:
		return decodeEnum(state, t)

	case wit.KindOption:
		return decodeOption(ctx, state, t)

	case wit.KindResult:
		return decodeResult(ctx, state, t)

	case wit.KindFlags:
		return decodeFlags(state.R, t)

	case wit.KindOwn, wit.KindBorrow:
		return decodeResource(ctx, state, t)

	default:
		return wit.Val{}, newErr(ErrUnsupportedConstruct, "decode value", fmt.Errorf("unknown kind %v", t.Kind))
	}
}

func decodeList(ctx context.Context, state *DecodeState, t wit.Type) (wit.Val, error) {
	n, err := readUvarint(state.R)
	if err != nil {
		return wit.Val{}, newErr(ErrDecode, "decode list count", err)
	}

	elems := make([]wit.Val, n)
	for i := range elems {
		var elemErr error
		state.withPath(state.descend(uint32(i)), func(s *DecodeState) {
			elems[i], elemErr = decodeValue(ctx, s, *t.Elem)
		})
		if elemErr != nil {
			return wit.Val{}, elemErr
		}
	}
	return wit.ListVal(elems...), nil
}

func decodeRecord(ctx context.Context, state *DecodeState, t wit.Type) (wit.Val, error) {
	fields := make([]wit.RecordField, len(t.Fields))
	for i, field := range t.Fields {
		var fieldVal wit.Val
		var err error
		state.withPath(state.descend(uint32(i)), func(s *DecodeState) {
			fieldVal, err = decodeValue(ctx, s, field.Type)
		})
		if err != nil {
			return wit.Val{}, err
		}
		fields[i] = wit.RecordField{Name: field.Name, Val: fieldVal}
	}
	return wit.RecordVal(fields...), nil
}

func decodeTuple(ctx context.Context, state *DecodeState, t wit.Type) (wit.Val, error) {
	elems := make([]wit.Val, len(t.Elems))
	for i, elemType := range t.Elems {
		var err error
		state.withPath(state.descend(uint32(i)), func(s *DecodeState) {
			elems[i], err = decodeValue(ctx, s, elemType)
		})
		if err != nil {
			return wit.Val{}, err
		}
	}
	return wit.TupleVal(elems...), nil
}

func decodeVariant(ctx context.Context, state *DecodeState, t wit.Type) (wit.Val, error) {
	width, err := discWidth(len(t.Cases))
	if err != nil {
		return wit.Val{}, newErr(ErrSchemaOverflow, "decode variant discriminant width", err)
	}

	idx, err := readDisc(state.R, width)
	if err != nil {
		return wit.Val{}, newErr(ErrDecode, "decode variant discriminant", err)
	}
	if int(idx) >= len(t.Cases) {
		return wit.Val{}, newErr(ErrShapeMismatch, "decode variant discriminant",
			fmt.Errorf("discriminant %d exceeds %d declared cases", idx, len(t.Cases)))
	}
	c := t.Cases[idx]

	if c.Type == nil {
		return wit.VariantVal(c.Name, nil), nil
	}

	var payload wit.Val
	var payloadErr error
	state.withPath(state.descend(idx), func(s *DecodeState) {
		payload, payloadErr = decodeValue(ctx, s, *c.Type)
	})
	if payloadErr != nil {
		return wit.Val{}, payloadErr
	}
	return wit.VariantVal(c.Name, &payload), nil
}

func decodeEnum(state *DecodeState, t wit.Type) (wit.Val, error) {
	width, err := discWidth(len(t.Names))
	if err != nil {
		return wit.Val{}, newErr(ErrSchemaOverflow, "decode enum discriminant width", err)
	}
	idx, err := readDisc(state.R, width)
	if err != nil {
		return wit.Val{}, newErr(ErrDecode, "decode enum discriminant", err)
	}
	if int(idx) >= len(t.Names) {
		return wit.Val{}, newErr(ErrShapeMismatch, "decode enum discriminant",
			fmt.Errorf("discriminant %d exceeds %d declared names", idx, len(t.Names)))
	}
	return wit.EnumVal(t.Names[idx]), nil
}

func decodeOption(ctx context.Context, state *DecodeState, t wit.Type) (wit.Val, error) {
	tag, err := readByte(state.R)
	if err != nil {
		return wit.Val{}, newErr(ErrDecode, "decode option tag", err)
	}
	if tag == 0 {
		return wit.NoneVal(), nil
	}

	var inner wit.Val
	var innerErr error
	state.withPath(state.descend(0), func(s *DecodeState) {
		inner, innerErr = decodeValue(ctx, s, *t.Elem)
	})
	if innerErr != nil {
		return wit.Val{}, innerErr
	}
	return wit.SomeVal(inner), nil
}

func decodeResult(ctx context.Context, state *DecodeState, t wit.Type) (wit.Val, error) {
	tag, err := readByte(state.R)
	if err != nil {
		return wit.Val{}, newErr(ErrDecode, "decode result tag", err)
	}
	isErr := tag != 0

	side := t.Ok
	if isErr {
		side = t.Err
	}
	if side == nil {
		if isErr {
			return wit.ErrVal(nil), nil
		}
		return wit.OkVal(nil), nil
	}

	var payload wit.Val
	var payloadErr error
	state.withPath(state.descend(0), func(s *DecodeState) {
		payload, payloadErr = decodeValue(ctx, s, *side)
	})
	if payloadErr != nil {
		return wit.Val{}, payloadErr
	}
	if isErr {
		return wit.ErrVal(&payload), nil
	}
	return wit.OkVal(&payload), nil
}

func readByte(r io.Reader) (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

// readRune reads one UTF-8 encoded char value, determining the sequence
// length from the leading byte before reading the rest.
func readRune(r io.Reader) (rune, int, error) {
	var first [1]byte
	if _, err := io.ReadFull(r, first[:]); err != nil {
		return 0, 0, err
	}

	n := utf8SeqLen(first[0])
	buf := make([]byte, n)
	buf[0] = first[0]
	if n > 1 {
		if _, err := io.ReadFull(r, buf[1:]); err != nil {
			return 0, 0, err
		}
	}

	ch, size := utf8.DecodeRune(buf)
	if ch == utf8.RuneError && size <= 1 {
		return 0, 0, fmt.Errorf("invalid UTF-8 char sequence")
	}
	return ch, size, nil
}

// utf8SeqLen returns the number of bytes in the UTF-8 sequence starting
// with lead, per the standard leading-byte prefix pattern.
func utf8SeqLen(lead byte) int {
	switch {
	case lead&0x80 == 0:
		return 1
	case lead&0xE0 == 0xC0:
		return 2
	case lead&0xF0 == 0xE0:
		return 3
	case lead&0xF8 == 0xF0:
		return 4
	default:
		return 1
	}
}
