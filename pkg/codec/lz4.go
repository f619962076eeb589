package codec

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pierrec/lz4/v4"

	"github.com/goopsie/zpak/pkg/zerr"
)

// lz4CompressorPool pools the fast lz4.Compressor for Low/Medium levels;
// it carries internal hash-table state that benefits from reuse.
var lz4CompressorPool = sync.Pool{
	New: func() any {
		return &lz4.Compressor{}
	},
}

// LZ4Compressor implements Codec for raw LZ4 block frames.
//
// The pierrec/lz4/v4 block API does not expose the acceleration knob the
// format spec describes for Low/Medium (that control belongs to the
// reference lz4 implementation's streaming API, not this library's block
// compressor); Low and Medium therefore both use the fast Compressor, and
// High switches to the dedicated high-compression CompressorHC at level 9.
type LZ4Compressor struct{}

var _ Codec = LZ4Compressor{}

// NewLZ4Compressor returns a stateless LZ4 codec.
func NewLZ4Compressor() LZ4Compressor {
	return LZ4Compressor{}
}

func (LZ4Compressor) ID() uint8    { return IDLZ4 }
func (LZ4Compressor) Name() string { return "lz4" }

// Bound adds one byte to pierrec's own CompressBlockBound for the
// stored-literal marker Compress prepends.
func (LZ4Compressor) Bound(n int) int {
	return lz4.CompressBlockBound(n) + 1
}

// Detect always returns false: raw LZ4 blocks carry no magic bytes.
func (LZ4Compressor) Detect([]byte) bool {
	return false
}

func (c LZ4Compressor) Compress(data []byte, level Level) ([]byte, error) {
	if len(data) == 0 {
		return []byte{}, nil
	}

	dst := make([]byte, c.Bound(len(data))-1)

	var n int
	var err error
	if level == LevelHigh {
		hc := &lz4.CompressorHC{Level: lz4.Level9}
		n, err = hc.CompressBlock(data, dst)
	} else {
		lc, _ := lz4CompressorPool.Get().(*lz4.Compressor)
		defer lz4CompressorPool.Put(lc)
		n, err = lc.CompressBlock(data, dst)
	}
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w: %w", zerr.ErrCompressionFailed, err)
	}
	if n == 0 {
		// Incompressible input: lz4's block compressor returns 0 to mean
		// "store literally would be smaller than compressing"; zpak still
		// needs something it can round-trip, so store the raw bytes behind
		// a one-byte stored-literal marker.
		return append([]byte{0}, data...), nil
	}
	return append([]byte{1}, dst[:n]...), nil
}

func (c LZ4Compressor) Decompress(data []byte, hintSize int) ([]byte, error) {
	if len(data) == 0 {
		return []byte{}, nil
	}
	marker, body := data[0], data[1:]
	if marker == 0 {
		out := make([]byte, len(body))
		copy(out, body)
		return out, nil
	}

	if hintSize >= 0 {
		buf := make([]byte, hintSize)
		n, err := lz4.UncompressBlock(body, buf)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w: %w", zerr.ErrDecompressionFailed, err)
		}
		return buf[:n], nil
	}

	const maxMultiplier = 16
	bufSize := len(body) * 2
	maxSize := len(body) * maxMultiplier
	for bufSize <= maxSize {
		buf := make([]byte, bufSize)
		n, err := lz4.UncompressBlock(body, buf)
		if err == nil {
			return buf[:n], nil
		}
		if !errors.Is(err, lz4.ErrInvalidSourceShortBuffer) {
			return nil, fmt.Errorf("lz4 decompress: %w: %w", zerr.ErrDecompressionFailed, err)
		}
		bufSize *= 2
	}
	return nil, fmt.Errorf("lz4 decompress: output exceeds %dx input with no size hint: %w", maxMultiplier, zerr.ErrDecompressionFailed)
}
