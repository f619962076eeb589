// Package codec implements the pluggable compression codecs zpak archives
// are wrapped in (LZ4, Zstd, LZMA/xz, Brotli) behind one shared interface,
// plus the registry that looks codecs up by id, by name, or by sniffing
// their frame bytes.
//
// Each codec is stateless between calls: streaming codecs create a fresh
// encoder/decoder engine per operation (pooled where the underlying library
// supports it), matching the single-threaded, synchronous core described by
// the archive container above this package.
package codec

import "fmt"

// Level is a three-point ordinal abstracting over each codec's native
// quality knob. The mapping from Level to a concrete knob is fixed per codec.
type Level int

const (
	LevelLow Level = iota
	LevelMedium
	LevelHigh
)

// String renders the level the way --level flag values are spelled.
func (l Level) String() string {
	switch l {
	case LevelLow:
		return "low"
	case LevelMedium:
		return "medium"
	case LevelHigh:
		return "high"
	default:
		return fmt.Sprintf("Level(%d)", int(l))
	}
}

// ParseLevel parses a --level flag value. It is case-sensitive, matching the
// registry's name lookup.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "low":
		return LevelLow, nil
	case "medium":
		return LevelMedium, nil
	case "high":
		return LevelHigh, nil
	default:
		return 0, fmt.Errorf("unknown compression level %q", s)
	}
}

// Codec ids, stable across versions. These values are part of the manifest
// wire format (algorithm_id) and must never be renumbered.
const (
	IDLZ4    uint8 = 1
	IDZstd   uint8 = 2
	IDLZMA   uint8 = 3
	IDBrotli uint8 = 4
)

// NoSizeHint indicates Decompress has no expected-output-size hint.
const NoSizeHint = -1

// Codec compresses and decompresses byte buffers for one algorithm.
type Codec interface {
	// ID returns the codec's stable numeric id.
	ID() uint8

	// Name returns the codec's human-readable, case-sensitive name.
	Name() string

	// Compress compresses data at the given level. The returned slice is
	// newly allocated and owned by the caller.
	Compress(data []byte, level Level) ([]byte, error)

	// Decompress decompresses data. hintSize is the expected original size
	// if known, or NoSizeHint if not. The returned slice is newly allocated
	// and owned by the caller.
	Decompress(data []byte, hintSize int) ([]byte, error)

	// Bound returns an upper bound on the compressed size of an input of
	// inputSize bytes, for pre-sizing an output buffer.
	Bound(inputSize int) int

	// Detect reports whether data begins with this codec's frame magic.
	// It must be conservative: a codec with no reliable magic bytes always
	// returns false rather than matching unconditionally.
	Detect(data []byte) bool
}
