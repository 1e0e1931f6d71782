package codec

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/witrpc/hostvm"
	"github.com/marmos91/witrpc/hostvm/hostvmtest"
	"github.com/marmos91/witrpc/resource"
	"github.com/marmos91/witrpc/transport"
	"github.com/marmos91/witrpc/wit"
)

// TestEncode_LiteralByteScenarios exercises every worked example from the
// wire format walkthrough, byte for byte.
func TestEncode_LiteralByteScenarios(t *testing.T) {
	t.Run("scalars in a tuple", func(t *testing.T) {
		store := hostvmtest.NewFakeStore()
		ty := wit.Tuple(wit.U32(), wit.String())
		val := wit.TupleVal(wit.U32Val(300), wit.StringVal("ok"))

		got, writers, err := Encode(context.Background(), ty, val, store)
		require.NoError(t, err)
		assert.Empty(t, writers)
		assert.Equal(t, []byte{0xAC, 0x02, 0x02, 0x6F, 0x6B}, got)
	})

	t.Run("variant with payload", func(t *testing.T) {
		store := hostvmtest.NewFakeStore()
		ty := wit.Variant(
			wit.Case{Name: "a"},
			wit.Case{Name: "b", Type: wit.CasePayload(wit.U8())},
			wit.Case{Name: "c"},
		)
		payload := wit.U8Val(7)
		val := wit.VariantVal("b", &payload)

		got, _, err := Encode(context.Background(), ty, val, store)
		require.NoError(t, err)
		assert.Equal(t, []byte{0x01, 0x07}, got)
	})

	t.Run("flags 3 of 5", func(t *testing.T) {
		store := hostvmtest.NewFakeStore()
		ty := wit.Flags("a", "b", "c", "d", "e")
		val := wit.FlagsVal("a", "c", "e")

		got, _, err := Encode(context.Background(), ty, val, store)
		require.NoError(t, err)
		assert.Equal(t, []byte{0x15}, got)
	})

	t.Run("flags 3 of 129", func(t *testing.T) {
		store := hostvmtest.NewFakeStore()
		names := make([]string, 129)
		for i := range names {
			names[i] = namesAt(i)
		}
		ty := wit.Flags(names...)
		val := wit.FlagsVal(names[0], names[64], names[128])

		got, _, err := Encode(context.Background(), ty, val, store)
		require.NoError(t, err)
		require.Len(t, got, 17)
		assert.Equal(t, byte(0x01), got[0])
		assert.Equal(t, byte(0x01), got[8])
		assert.Equal(t, byte(0x01), got[16])
		for i, b := range got {
			if i == 0 || i == 8 || i == 16 {
				continue
			}
			assert.Equalf(t, byte(0), b, "byte %d should be zero", i)
		}
	})

	t.Run("list of owned input streams fans out onto sub-channels", func(t *testing.T) {
		store := hostvmtest.NewFakeStore()
		hA, err := store.InstallInputStream(context.Background(), &hostvmtest.ByteInputStream{Data: []byte("hi")})
		require.NoError(t, err)
		hB, err := store.InstallInputStream(context.Background(), &hostvmtest.ByteInputStream{Data: []byte("world")})
		require.NoError(t, err)

		elem := wit.Own(wit.Resource{Kind: wit.ResourceHostInputStream})
		ty := wit.List(elem)
		val := wit.ListVal(wit.OwnVal(hA), wit.OwnVal(hB))

		got, writers, err := Encode(context.Background(), ty, val, store)
		require.NoError(t, err)
		assert.Equal(t, []byte{0x02}, got)
		require.Len(t, writers, 2)

		assert.Equal(t, []uint32{0}, writers[0].Path)
		var bufA bufferStream
		require.NoError(t, writers[0].Run(context.Background(), &bufA))
		assert.Equal(t, []byte{0x02, 'h', 'i', 0x00}, bufA.Bytes())

		assert.Equal(t, []uint32{1}, writers[1].Path)
		var bufB bufferStream
		require.NoError(t, writers[1].Run(context.Background(), &bufB))
		assert.Equal(t, []byte{0x05, 'w', 'o', 'r', 'l', 'd', 0x00}, bufB.Bytes())
	})

	t.Run("shared guest-exported resource", func(t *testing.T) {
		store := hostvmtest.NewFakeStore("R")
		ty := wit.Own(wit.Resource{Kind: wit.ResourceGuestExported, Name: "R"})
		handle := hostvm.GuestHandle{TypeName: "R"}
		val := wit.OwnVal(handle)

		got, writers, err := Encode(context.Background(), ty, val, store)
		require.NoError(t, err)
		assert.Empty(t, writers)
		require.Len(t, got, 1+16)
		assert.Equal(t, byte(16), got[0])

		id := resource.IDFromBytes(got[1:])
		resolved, ok := store.Resources().Lookup(id)
		require.True(t, ok)
		assert.Equal(t, handle, resolved)
	})
}

// namesAt deterministically derives a distinct flag name from its position,
// avoiding a 129-line literal list.
func namesAt(i int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	return string(letters[i%len(letters)]) + string(rune('0'+i/len(letters)))
}

// bufferStream is a transport.Stream over an in-memory buffer, enough to run
// a deferred writer and inspect the bytes it wrote.
type bufferStream struct{ bytes.Buffer }

func (s *bufferStream) Index([]uint32) (transport.Stream, error)         { return s, nil }
func (s *bufferStream) IndexIncoming([]uint32) (transport.Stream, error) { return s, nil }
func (s *bufferStream) CloseWrite(context.Context, uint32) error         { return nil }
func (s *bufferStream) Close() error                                     { return nil }

// TestRoundTrip encodes then decodes a representative value of every scalar
// kind plus record, option, result, list and enum, and checks the result is
// equal to the original.
func TestRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		ty   wit.Type
		val  wit.Val
	}{
		{"bool", wit.Bool(), wit.BoolVal(true)},
		{"s8", wit.S8(), wit.S8Val(-12)},
		{"u8", wit.U8(), wit.U8Val(250)},
		{"s16", wit.S16(), wit.S16Val(-1000)},
		{"u16", wit.U16(), wit.U16Val(60000)},
		{"s32", wit.S32(), wit.S32Val(-70000)},
		{"u32", wit.U32(), wit.U32Val(4000000000)},
		{"s64", wit.S64(), wit.S64Val(-9000000000000000000)},
		{"u64", wit.U64(), wit.U64Val(18000000000000000000)},
		{"float32", wit.Float32Type(), wit.Float32Val(3.5)},
		{"float64", wit.Float64Type(), wit.Float64Val(-2.25)},
		{"char", wit.Char(), wit.CharVal('λ')},
		{"string", wit.String(), wit.StringVal("hello, wit")},
		{
			"record",
			wit.Record(wit.Field{Name: "x", Type: wit.U32()}, wit.Field{Name: "y", Type: wit.String()}),
			wit.RecordVal(wit.RecordField{Name: "x", Val: wit.U32Val(1)}, wit.RecordField{Name: "y", Val: wit.StringVal("z")}),
		},
		{
			"option none",
			wit.Option(wit.U32()),
			wit.NoneVal(),
		},
		{
			"option some",
			wit.Option(wit.U32()),
			wit.SomeVal(wit.U32Val(9)),
		},
		{
			"result ok",
			wit.Result(typePtr(wit.U32()), typePtr(wit.String())),
			wit.OkVal(valPtr(wit.U32Val(1))),
		},
		{
			"result err",
			wit.Result(typePtr(wit.U32()), typePtr(wit.String())),
			wit.ErrVal(valPtr(wit.StringVal("bad"))),
		},
		{
			"list",
			wit.List(wit.U8()),
			wit.ListVal(wit.U8Val(1), wit.U8Val(2), wit.U8Val(3)),
		},
		{
			"enum",
			wit.Enum("red", "green", "blue"),
			wit.EnumVal("green"),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := hostvmtest.NewFakeStore()
			encoded, writers, err := Encode(context.Background(), tc.ty, tc.val, store)
			require.NoError(t, err)
			assert.Empty(t, writers)

			decoded, err := DecodeBytes(context.Background(), tc.ty, encoded, store, nil)
			require.NoError(t, err)
			assert.Equal(t, tc.val, decoded)
		})
	}
}

func typePtr(t wit.Type) *wit.Type { return &t }
func valPtr(v wit.Val) *wit.Val    { return &v }

// TestDiscriminant_Stability asserts the i-th declared variant/enum case
// always encodes as discriminant i, for case counts spanning every bucket
// boundary including values the previous fixed-width encoding mishandled.
func TestDiscriminant_Stability(t *testing.T) {
	for _, count := range []int{1, 2, 100, 127, 128, 129, 255, 256, 257, 300} {
		t.Run("", func(t *testing.T) {
			names := make([]string, count)
			for i := range names {
				names[i] = namesAt(i) + "-" + namesAt(i+1)
			}
			ty := wit.Enum(names...)

			for _, idx := range []int{0, count / 2, count - 1} {
				store := hostvmtest.NewFakeStore()
				encoded, _, err := Encode(context.Background(), ty, wit.EnumVal(names[idx]), store)
				require.NoError(t, err)

				expected, werr := leb128Bytes(uint64(idx))
				require.NoError(t, werr)
				assert.Equal(t, expected, encoded, "case index %d in a %d-case enum", idx, count)

				decoded, err := DecodeBytes(context.Background(), ty, encoded, store, nil)
				require.NoError(t, err)
				assert.Equal(t, names[idx], decoded.Case)
			}
		})
	}
}

func leb128Bytes(v uint64) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeUvarint(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// TestFlags_Bijection checks every bit position round-trips independently
// of every other, for declared sets spanning single- and multi-byte widths.
func TestFlags_Bijection(t *testing.T) {
	for _, count := range []int{1, 5, 8, 9, 64, 129} {
		t.Run("", func(t *testing.T) {
			names := make([]string, count)
			for i := range names {
				names[i] = namesAt(i) + "-" + namesAt(i+2)
			}
			ty := wit.Flags(names...)

			for _, idx := range []int{0, count - 1, count / 2} {
				store := hostvmtest.NewFakeStore()
				val := wit.FlagsVal(names[idx])
				encoded, _, err := Encode(context.Background(), ty, val, store)
				require.NoError(t, err)

				decoded, err := DecodeBytes(context.Background(), ty, encoded, store, nil)
				require.NoError(t, err)
				_, active := decoded.Set[names[idx]]
				assert.True(t, active)
				assert.Len(t, decoded.Set, 1)
			}
		})
	}
}

// TestDiscWidth_Buckets locks in the bucket boundaries from the wire format
// walkthrough: the 1-byte bucket tops out at 255 declared cases, not 256,
// and the 3-byte bucket is not skipped.
func TestDiscWidth_Buckets(t *testing.T) {
	cases := []struct {
		count int
		width int
	}{
		{1, 1},
		{0xff, 1},
		{0x100, 2},
		{0xffff, 2},
		{0x10000, 3},
		{0xffffff, 3},
		{0x1000000, 4},
		{0xffffffff, 4},
	}
	for _, tc := range cases {
		width, err := discWidth(tc.count)
		require.NoError(t, err)
		assert.Equal(t, tc.width, width, "case count %d", tc.count)
	}
}

// TestDisc_LEB128NotFixedWidth pins the defect the bucket table exists to
// describe but must never reintroduce: a discriminant of 150 must encode as
// the two-byte LEB128 sequence, not the single byte a fixed-width bucket
// would have produced.
func TestDisc_LEB128NotFixedWidth(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeDisc(&buf, 1, 150))
	assert.Equal(t, []byte{0x96, 0x01}, buf.Bytes())

	got, err := readDisc(&buf, 1)
	require.NoError(t, err)
	assert.Equal(t, uint32(150), got)
}

// TestEncode_ShapeMismatch asserts a Val whose Kind disagrees with its Type
// is rejected rather than silently mis-encoded.
func TestEncode_ShapeMismatch(t *testing.T) {
	store := hostvmtest.NewFakeStore()
	_, _, err := Encode(context.Background(), wit.U32(), wit.StringVal("oops"), store)
	require.Error(t, err)

	var ce *CodecError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrShapeMismatch, ce.Code)
}

// TestDecode_UnknownDiscriminant asserts a discriminant beyond the declared
// case count is rejected rather than panicking on an out-of-range index.
func TestDecode_UnknownDiscriminant(t *testing.T) {
	store := hostvmtest.NewFakeStore()
	ty := wit.Enum("a", "b")

	_, err := DecodeBytes(context.Background(), ty, []byte{0x05}, store, nil)
	require.Error(t, err)

	var ce *CodecError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrShapeMismatch, ce.Code)
}

// TestEncodeResource_RejectsNonExportedType asserts Non-blocking comment 1's
// fix: IsGuestExported is consulted, not merely documented.
func TestEncodeResource_RejectsNonExportedType(t *testing.T) {
	store := hostvmtest.NewFakeStore() // no type names declared exported
	ty := wit.Own(wit.Resource{Kind: wit.ResourceGuestExported, Name: "R"})
	val := wit.OwnVal(hostvm.GuestHandle{TypeName: "R"})

	_, _, err := Encode(context.Background(), ty, val, store)
	require.Error(t, err)

	var ce *CodecError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrUnsupportedConstruct, ce.Code)
}
