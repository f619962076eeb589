package codec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"

	"github.com/goopsie/zpak/pkg/zerr"
)

// BrotliCompressor implements Codec over github.com/andybalholm/brotli, the
// maintained pure-Go brotli implementation. Brotli frames carry no reliable
// magic bytes, so Detect always returns false, matching LZ4.
type BrotliCompressor struct{}

var _ Codec = BrotliCompressor{}

// NewBrotliCompressor returns a stateless Brotli codec.
func NewBrotliCompressor() BrotliCompressor {
	return BrotliCompressor{}
}

func (BrotliCompressor) ID() uint8    { return IDBrotli }
func (BrotliCompressor) Name() string { return "brotli" }

func (BrotliCompressor) Bound(n int) int {
	return n + n/2 + 256
}

func (BrotliCompressor) Detect([]byte) bool {
	return false
}

func levelToBrotli(level Level) int {
	switch level {
	case LevelLow:
		return 3
	case LevelMedium:
		return 6
	case LevelHigh:
		return 11
	default:
		return 6
	}
}

func (c BrotliCompressor) Compress(data []byte, level Level) ([]byte, error) {
	if len(data) == 0 {
		return []byte{}, nil
	}

	var buf bytes.Buffer
	buf.Grow(c.Bound(len(data)))

	w := brotli.NewWriterLevel(&buf, levelToBrotli(level))
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("brotli write: %w: %w", zerr.ErrCompressionFailed, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("brotli close: %w: %w", zerr.ErrCompressionFailed, err)
	}
	return buf.Bytes(), nil
}

func (BrotliCompressor) Decompress(data []byte, hintSize int) ([]byte, error) {
	if len(data) == 0 {
		return []byte{}, nil
	}

	r := brotli.NewReader(bytes.NewReader(data))

	initial := chunkSize
	if hintSize > 0 {
		initial = hintSize
	}
	out := make([]byte, 0, initial)

	chunk := make([]byte, chunkSize)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			out = append(out, chunk[:n]...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("brotli read: %w: %w", zerr.ErrDecompressionFailed, err)
		}
	}
	return out, nil
}
