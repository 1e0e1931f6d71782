package codec

import (
	"context"
	"fmt"
	"io"

	"github.com/marmos91/witrpc/hostvm"
	"github.com/marmos91/witrpc/internal/bufpool"
	"github.com/marmos91/witrpc/transport"
)

// streamChunkSize is the maximum number of payload bytes per chunk when an
// owned host input-stream is fanned out onto its own sub-channel.
const streamChunkSize = 8096

// writeInputStreamChunks drains src in streamChunkSize chunks onto w, each
// framed as a LEB128 length prefix followed by that many bytes, terminated
// by a single zero-length chunk. It is installed as a deferred Writer by
// encodeResource and run later by internal/deferred against the
// sub-channel it was registered for.
func writeInputStreamChunks(ctx context.Context, src hostvm.InputStream, w io.Writer) error {
	buf := bufpool.GetUint32(streamChunkSize)
	defer bufpool.Put(buf)
	for {
		if err := src.Ready(ctx); err != nil {
			return fmt.Errorf("wait for input stream: %w", err)
		}

		n, eof, err := src.Read(ctx, buf)
		if err != nil {
			return fmt.Errorf("read input stream: %w", err)
		}

		if n > 0 {
			if err := writeUvarint(w, uint64(n)); err != nil {
				return fmt.Errorf("write chunk length: %w", err)
			}
			if _, err := w.Write(buf[:n]); err != nil {
				return fmt.Errorf("write chunk body: %w", err)
			}
		}

		if eof {
			return writeUvarint(w, 0)
		}
	}
}

// chunkedInputStream adapts the receiving end of a length-prefixed chunk
// sub-channel to hostvm.InputStream, decoding one chunk per Read call.
type chunkedInputStream struct {
	r   io.Reader
	eof bool

	pending []byte
}

func newChunkedInputStream(s transport.Stream) *chunkedInputStream {
	return &chunkedInputStream{r: s}
}

// Ready implements hostvm.InputStream. The length-prefixed chunk protocol
// has no separate readiness signal distinct from Read itself, so Ready
// always succeeds; the first Read on an empty pending buffer blocks on the
// underlying stream instead.
func (c *chunkedInputStream) Ready(_ context.Context) error { return nil }

// Read implements hostvm.InputStream.
func (c *chunkedInputStream) Read(_ context.Context, p []byte) (int, bool, error) {
	if len(c.pending) == 0 && !c.eof {
		n, err := readUvarint(c.r)
		if err != nil {
			return 0, false, fmt.Errorf("read chunk length: %w", err)
		}
		if n == 0 {
			c.eof = true
			return 0, true, nil
		}
		chunk := make([]byte, n)
		if _, err := io.ReadFull(c.r, chunk); err != nil {
			return 0, false, fmt.Errorf("read chunk body: %w", err)
		}
		c.pending = chunk
	}

	if len(c.pending) == 0 {
		return 0, true, nil
	}

	n := copy(p, c.pending)
	c.pending = c.pending[n:]
	return n, c.eof && len(c.pending) == 0, nil
}
