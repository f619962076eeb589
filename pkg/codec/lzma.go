package codec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ulikunitz/xz"

	"github.com/goopsie/zpak/pkg/zerr"
)

// xzMagic is the 6-byte magic identifying an xz stream container.
var xzMagic = [6]byte{0xFD, 0x37, 0x7A, 0x58, 0x5A, 0x00}

// chunkSize is the fixed growth increment streaming codecs (LZMA, Brotli)
// use while decompressing without a size hint.
const chunkSize = 64 * 1024

// LZMACompressor implements Codec over the full xz stream container (not
// raw LZMA), so the magic bytes this codec's Detect checks for are actually
// present on the wire.
//
// ulikunitz/xz does not expose a single numeric compression preset the way
// the reference xz CLI's -0..-9 flags do; its tunable knob is dictionary
// capacity, so Level is mapped onto DictCap as the closest available proxy
// for "more effort, more memory, better ratio".
type LZMACompressor struct{}

var _ Codec = LZMACompressor{}

// NewLZMACompressor returns a stateless LZMA/xz codec.
func NewLZMACompressor() LZMACompressor {
	return LZMACompressor{}
}

func (LZMACompressor) ID() uint8    { return IDLZMA }
func (LZMACompressor) Name() string { return "lzma" }

// Bound is a conservative estimate; LZMA is a streaming format with no
// fixed per-block expansion bound, so Compress uses it only to pre-size its
// output buffer, which grows further as needed.
func (LZMACompressor) Bound(n int) int {
	return n + n/2 + 256
}

func (LZMACompressor) Detect(data []byte) bool {
	if len(data) < len(xzMagic) {
		return false
	}
	for i, b := range xzMagic {
		if data[i] != b {
			return false
		}
	}
	return true
}

func dictCapForLevel(level Level) int {
	switch level {
	case LevelLow:
		return 1 << 20 // 1 MiB
	case LevelMedium:
		return 1 << 23 // 8 MiB
	case LevelHigh:
		return 1 << 26 // 64 MiB
	default:
		return 1 << 23
	}
}

func (c LZMACompressor) Compress(data []byte, level Level) ([]byte, error) {
	if len(data) == 0 {
		return []byte{}, nil
	}

	var buf bytes.Buffer
	buf.Grow(c.Bound(len(data)))

	w, err := xz.WriterConfig{DictCap: dictCapForLevel(level)}.NewWriter(&buf)
	if err != nil {
		return nil, fmt.Errorf("lzma writer init: %w: %w", zerr.ErrCompressionFailed, err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("lzma write: %w: %w", zerr.ErrCompressionFailed, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("lzma close: %w: %w", zerr.ErrCompressionFailed, err)
	}
	return buf.Bytes(), nil
}

func (LZMACompressor) Decompress(data []byte, hintSize int) ([]byte, error) {
	if len(data) == 0 {
		return []byte{}, nil
	}

	r, err := xz.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("lzma reader init: %w: %w", zerr.ErrDecompressionFailed, err)
	}

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
			return nil, fmt.Errorf("lzma read: %w: %w", zerr.ErrDecompressionFailed, err)
		}
	}
	return out, nil
}
