package codec

import (
	"fmt"
	"io"
)

// writeUvarint writes v as unsigned LEB128: 7 payload bits per byte, high
// bit set on every byte but the last.
func writeUvarint(w io.Writer, v uint64) error {
	var buf [10]byte
	n := 0
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		buf[n] = b
		n++
		if v == 0 {
			break
		}
	}
	_, err := w.Write(buf[:n])
	return err
}

// readUvarint reads an unsigned LEB128 value, capping at 10 bytes (64 bits).
func readUvarint(r io.Reader) (uint64, error) {
	var result uint64
	var shift uint
	var b [1]byte
	for i := 0; i < 10; i++ {
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, fmt.Errorf("read varint byte %d: %w", i, err)
		}
		result |= uint64(b[0]&0x7f) << shift
		if b[0]&0x80 == 0 {
			return result, nil
		}
		shift += 7
	}
	return 0, fmt.Errorf("varint exceeds 10 bytes")
}

// writeVarint writes v as signed LEB128: each byte carries 7 payload bits
// and the sign is propagated through the leading bits rather than via a
// separate zigzag pass.
func writeVarint(w io.Writer, v int64) error {
	var buf [10]byte
	n := 0
	for {
		b := byte(v & 0x7f)
		v >>= 7
		signBitSet := b&0x40 != 0
		done := (v == 0 && !signBitSet) || (v == -1 && signBitSet)
		if !done {
			b |= 0x80
		}
		buf[n] = b
		n++
		if done {
			break
		}
	}
	_, err := w.Write(buf[:n])
	return err
}

// readVarint reads a signed LEB128 value, sign-extending once the
// terminating byte is reached.
func readVarint(r io.Reader) (int64, error) {
	var result int64
	var shift uint
	var b [1]byte
	for i := 0; i < 10; i++ {
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, fmt.Errorf("read varint byte %d: %w", i, err)
		}
		result |= int64(b[0]&0x7f) << shift
		shift += 7
		if b[0]&0x80 == 0 {
			if shift < 64 && b[0]&0x40 != 0 {
				result |= -1 << shift
			}
			return result, nil
		}
	}
	return 0, fmt.Errorf("varint exceeds 10 bytes")
}
