package codec

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/goopsie/zpak/pkg/zerr"
)

// zstdEncoderPool and zstdDecoderPool pool klauspost/compress/zstd engines.
// The library is explicitly designed for this: its encoders/decoders are
// most efficient once "warmed up" and are safe to reuse across stateless
// EncodeAll/DecodeAll calls.
var zstdEncoderPools sync.Map // Level -> *sync.Pool

func zstdEncoderPool(level zstd.EncoderLevel) *sync.Pool {
	if p, ok := zstdEncoderPools.Load(level); ok {
		return p.(*sync.Pool)
	}
	p := &sync.Pool{
		New: func() any {
			enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level))
			if err != nil {
				panic(fmt.Sprintf("zstd: create encoder for pool: %v", err))
			}
			return enc
		},
	}
	actual, _ := zstdEncoderPools.LoadOrStore(level, p)
	return actual.(*sync.Pool)
}

var zstdDecoderPool = sync.Pool{
	New: func() any {
		dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		if err != nil {
			panic(fmt.Sprintf("zstd: create decoder for pool: %v", err))
		}
		return dec
	},
}

// zstdMagic is the 4-byte zstd frame magic number, used for format auto-detection.
var zstdMagic = [4]byte{0x28, 0xB5, 0x2F, 0xFD}

// ZstdCompressor implements Codec using klauspost/compress/zstd, a pure-Go
// port that avoids the cgo dependency the legacy DataDog/zstd codec carried.
type ZstdCompressor struct{}

var _ Codec = ZstdCompressor{}

// NewZstdCompressor returns a stateless Zstd codec.
func NewZstdCompressor() ZstdCompressor {
	return ZstdCompressor{}
}

func (ZstdCompressor) ID() uint8    { return IDZstd }
func (ZstdCompressor) Name() string { return "zstd" }

// Bound approximates zstd's own worst-case expansion formula
// (srcSize + srcSize/256 + a small fixed frame overhead); klauspost's
// package does not export a bound helper.
func (ZstdCompressor) Bound(n int) int {
	return n + n>>8 + 512
}

func (ZstdCompressor) Detect(data []byte) bool {
	if len(data) < 4 {
		return false
	}
	return data[0] == zstdMagic[0] && data[1] == zstdMagic[1] && data[2] == zstdMagic[2] && data[3] == zstdMagic[3]
}

func levelToZstd(level Level) zstd.EncoderLevel {
	switch level {
	case LevelLow:
		return zstd.EncoderLevelFromZstd(1)
	case LevelMedium:
		return zstd.EncoderLevelFromZstd(5)
	case LevelHigh:
		return zstd.EncoderLevelFromZstd(9)
	default:
		return zstd.SpeedDefault
	}
}

func (c ZstdCompressor) Compress(data []byte, level Level) ([]byte, error) {
	if len(data) == 0 {
		return []byte{}, nil
	}

	pool := zstdEncoderPool(levelToZstd(level))
	enc := pool.Get().(*zstd.Encoder)
	defer pool.Put(enc)

	return enc.EncodeAll(data, make([]byte, 0, c.Bound(len(data)))), nil
}

func (ZstdCompressor) Decompress(data []byte, _ int) ([]byte, error) {
	if len(data) == 0 {
		return []byte{}, nil
	}

	dec := zstdDecoderPool.Get().(*zstd.Decoder)
	defer zstdDecoderPool.Put(dec)

	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w: %w", zerr.ErrDecompressionFailed, err)
	}
	return out, nil
}
