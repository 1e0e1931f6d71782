package codec

import (
	"fmt"
	"io"

	"github.com/marmos91/witrpc/wit"
)

// flagsByteWidth returns the number of bytes needed to hold count flag bits
// as a little-endian bit vector: ceil(count/8).
func flagsByteWidth(count int) int {
	return (count + 7) / 8
}

// encodeFlags packs the active flag names in v.Set into a little-endian bit
// vector over the declared names order in t.Names, and writes it as
// ceil(N/8) raw bytes. Per the wire format, declared sets of 128 or fewer
// names pack into a fixed-width unsigned integer; larger sets still pack
// into the same bit layout but as a raw byte vector rather than a Go
// integer type, so both cases share this one code path.
func encodeFlags(w io.Writer, t wit.Type, v wit.Val) error {
	width := flagsByteWidth(len(t.Names))
	bits := make([]byte, width)

	for i, name := range t.Names {
		if _, active := v.Set[name]; !active {
			continue
		}
		bits[i/8] |= 1 << uint(i%8)
	}

	_, err := w.Write(bits)
	return err
}

// decodeFlags reads a little-endian bit vector of ceil(len(names)/8) bytes
// and returns the subset of names whose bit is set.
func decodeFlags(r io.Reader, t wit.Type) (wit.Val, error) {
	width := flagsByteWidth(len(t.Names))
	bits := make([]byte, width)
	if _, err := io.ReadFull(r, bits); err != nil {
		return wit.Val{}, newErr(ErrDecode, "decode flags bit vector", err)
	}

	set := make(map[string]struct{})
	for i, name := range t.Names {
		if bits[i/8]&(1<<uint(i%8)) != 0 {
			set[name] = struct{}{}
		}
	}
	return wit.Val{Kind: wit.KindFlags, Set: set}, nil
}

// discWidth returns the declared bucket width, in bytes, for a variant/enum
// discriminant given the declared case count. This only bounds the value
// range a discriminant of this case count may need (spec.md §4.1); the
// on-wire encoding itself is always LEB128, not a fixed-width integer, so
// the bucket is informational rather than the number of bytes actually
// written.
func discWidth(caseCount int) (int, error) {
	switch {
	case caseCount <= 0xff:
		return 1, nil
	case caseCount <= 0xffff:
		return 2, nil
	case caseCount <= 0xffffff:
		return 3, nil
	case caseCount <= 0xffffffff:
		return 4, nil
	default:
		return 0, fmt.Errorf("case count %d exceeds maximum discriminant width", caseCount)
	}
}

// writeDisc writes index as an unsigned LEB128 value (spec.md §4.1); width
// is unused beyond having already been validated by discWidth and is kept
// as a parameter so callers read naturally at each call site.
func writeDisc(w io.Writer, width int, index uint32) error {
	_ = width
	return writeUvarint(w, uint64(index))
}

// readDisc reads an unsigned LEB128 discriminant; width is unused for the
// same reason as in writeDisc.
func readDisc(r io.Reader, width int) (uint32, error) {
	_ = width
	v, err := readUvarint(r)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}
