package codec

import (
	"fmt"

	"github.com/goopsie/zpak/pkg/zerr"
)

// Registry is a fixed catalogue of codec instances, grounded on mebo's
// CreateCodec/GetCodec factory-and-lookup-map pattern and extended with
// by-name and content-sniffing lookups.
//
// Registration order is fixed by NewRegistry (LZ4, Zstd, LZMA, Brotli,
// matching the id assignments 1-4) so Detect and any sniff-and-try fallback
// built on top of it are deterministic.
type Registry struct {
	ordered []Codec
	byID    map[uint8]Codec
	byName  map[string]Codec
}

// NewRegistry returns a registry with every built-in codec registered.
func NewRegistry() *Registry {
	r := &Registry{
		byID:   make(map[uint8]Codec),
		byName: make(map[string]Codec),
	}
	r.register(NewLZ4Compressor())
	r.register(NewZstdCompressor())
	r.register(NewLZMACompressor())
	r.register(NewBrotliCompressor())
	return r
}

func (r *Registry) register(c Codec) {
	r.ordered = append(r.ordered, c)
	r.byID[c.ID()] = c
	r.byName[c.Name()] = c
}

// ByID looks up a codec by its stable numeric id.
func (r *Registry) ByID(id uint8) (Codec, error) {
	if c, ok := r.byID[id]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("codec id %d: %w", id, zerr.ErrAlgorithmNotFound)
}

// ByName looks up a codec by its case-sensitive name.
func (r *Registry) ByName(name string) (Codec, error) {
	if c, ok := r.byName[name]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("codec %q: %w", name, zerr.ErrAlgorithmNotFound)
}

// Detect returns the first registered codec whose Detect reports true for
// data, iterating in registration order. Ties are impossible: the magic
// numbers of the codecs that implement Detect are disjoint.
func (r *Registry) Detect(data []byte) (Codec, bool) {
	for _, c := range r.ordered {
		if c.Detect(data) {
			return c, true
		}
	}
	return nil, false
}

// All returns every registered codec in registration order, for the
// sniff-and-try decompression fallback.
func (r *Registry) All() []Codec {
	out := make([]Codec, len(r.ordered))
	copy(out, r.ordered)
	return out
}
