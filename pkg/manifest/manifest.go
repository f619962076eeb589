// Package manifest implements the self-describing manifest record at the
// head of every zpak archive: one Entry per packed file plus the manifest
// version and, for current-format archives, the outer codec's algorithm id.
//
// Encoding follows pkg/wire's length-prefixed scheme exactly as laid out by
// the format's wire layout; this file is the hand-written encode/decode pair
// for the two record types that schema ever describes (Manifest and Entry),
// rather than a general-purpose reflective serializer.
package manifest

import (
	"fmt"

	"github.com/goopsie/zpak/pkg/wire"
	"github.com/goopsie/zpak/pkg/zerr"
)

// Version is the only manifest version this implementation produces or
// accepts. A decoded manifest declaring a higher version is rejected with
// zerr.ErrUnsupportedManifestVersion.
const Version uint32 = 1

// Entry describes one packed file: its path, its locator in the data
// region, its size, and the CRC-32 of its original bytes.
type Entry struct {
	// OriginalPath is the file's path relative to the packed directory,
	// using forward slashes regardless of host OS.
	OriginalPath string

	// EncodedPath is a synthetic "offset:<decimal>" locator into the data
	// region. It is a string, not a structured field, to keep the manifest
	// schema purely textual.
	EncodedPath string

	// OriginalSize is the file's size in bytes.
	OriginalSize uint64

	// EncodedSize equals OriginalSize in this format version; it is kept
	// as a separate field so a future per-entry transformation would not
	// require a format change.
	EncodedSize uint64

	// Checksum is the IEEE CRC-32 of the file's original bytes.
	Checksum uint32
}

// Manifest is the index record written at the head of a serialized archive,
// before compression is applied.
type Manifest struct {
	// Version is always manifest.Version for manifests this package writes.
	Version uint32

	// Entries lists every packed file in the order the encoder packed them;
	// extraction uses this same order.
	Entries []Entry

	// HasAlgorithmID is false for legacy (pre-versioned) archives that
	// omitted the algorithm_id field. The decoder facade does not read it:
	// it picks the outer codec by content sniffing or trial decompression
	// for every archive.
	HasAlgorithmID bool

	// AlgorithmID identifies the codec used to compress the archive's outer
	// payload. Only meaningful when HasAlgorithmID is true.
	AlgorithmID uint8
}

// New returns an empty manifest at the current version with the given
// outer codec id recorded.
func New(algorithmID uint8) *Manifest {
	return &Manifest{
		Version:        Version,
		HasAlgorithmID: true,
		AlgorithmID:    algorithmID,
	}
}

// Marshal encodes m per the manifest wire layout. The returned buffer is
// newly allocated and owned by the caller.
func (m *Manifest) Marshal() []byte {
	e := wire.NewEncoder()
	e.WriteField(wire.Uint32Bytes(m.Version))
	e.WriteField(marshalEntries(m.Entries))
	if m.HasAlgorithmID {
		e.WriteField(wire.Uint8Bytes(m.AlgorithmID))
	} else {
		e.WriteField(nil)
	}
	return e.Bytes()
}

func marshalEntries(entries []Entry) []byte {
	e := wire.NewEncoder()
	e.WriteUint64(uint64(len(entries)))
	for _, entry := range entries {
		ee := wire.NewEncoder()
		ee.WriteField(wire.StringBytes(entry.OriginalPath))
		ee.WriteField(wire.StringBytes(entry.EncodedPath))
		ee.WriteField(wire.Uint64Bytes(entry.OriginalSize))
		ee.WriteField(wire.Uint64Bytes(entry.EncodedSize))
		ee.WriteField(wire.Uint32Bytes(entry.Checksum))
		e.WriteElement(ee.Bytes())
	}
	return e.Bytes()
}

// entryMinWireSize is the minimum number of bytes one sequence element can
// occupy: its own u64 elem_len prefix. Used to bounds-check a declared entry
// count against the remaining buffer before allocating a slice for it.
const entryMinWireSize = 8

// Unmarshal decodes a manifest previously produced by Marshal. It fails
// with zerr.ErrCorruptedData on any truncated prefix, declared length that
// exceeds the remaining buffer, or primitive whose length does not match
// its expected width, and with zerr.ErrUnsupportedManifestVersion if the
// decoded version exceeds Version.
func Unmarshal(data []byte) (*Manifest, error) {
	d := wire.NewDecoder(data)

	versionField, err := d.ReadField()
	if err != nil {
		return nil, fmt.Errorf("manifest: read version field: %w", err)
	}
	version, err := readExactUint32(versionField)
	if err != nil {
		return nil, fmt.Errorf("manifest: decode version: %w", err)
	}
	if version > Version {
		return nil, fmt.Errorf("manifest version %d: %w", version, zerr.ErrUnsupportedManifestVersion)
	}

	entriesField, err := d.ReadField()
	if err != nil {
		return nil, fmt.Errorf("manifest: read entries field: %w", err)
	}
	entries, err := unmarshalEntries(entriesField)
	if err != nil {
		return nil, err
	}

	algoField, err := d.ReadField()
	if err != nil {
		return nil, fmt.Errorf("manifest: read algorithm_id field: %w", err)
	}

	m := &Manifest{Version: version, Entries: entries}
	if len(algoField) > 0 {
		id, err := requireLen(algoField, 1)
		if err != nil {
			return nil, fmt.Errorf("manifest: decode algorithm_id: %w", err)
		}
		m.HasAlgorithmID = true
		m.AlgorithmID = id[0]
	}

	return m, nil
}

func unmarshalEntries(payload []byte) ([]Entry, error) {
	d := wire.NewDecoder(payload)

	count, err := d.ReadSequenceCount(entryMinWireSize)
	if err != nil {
		return nil, fmt.Errorf("manifest: read entry count: %w", err)
	}

	entries := make([]Entry, 0, count)
	for i := 0; i < count; i++ {
		elem, err := d.ReadElement()
		if err != nil {
			return nil, fmt.Errorf("manifest: read entry %d: %w", i, err)
		}
		entry, err := unmarshalEntry(elem)
		if err != nil {
			return nil, fmt.Errorf("manifest: decode entry %d: %w", i, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func unmarshalEntry(payload []byte) (Entry, error) {
	d := wire.NewDecoder(payload)
	var entry Entry

	origPathField, err := d.ReadField()
	if err != nil {
		return entry, fmt.Errorf("read original_path field: %w", err)
	}
	entry.OriginalPath, err = wire.NewDecoder(origPathField).ReadString()
	if err != nil {
		return entry, fmt.Errorf("decode original_path: %w", err)
	}

	encPathField, err := d.ReadField()
	if err != nil {
		return entry, fmt.Errorf("read encoded_path field: %w", err)
	}
	entry.EncodedPath, err = wire.NewDecoder(encPathField).ReadString()
	if err != nil {
		return entry, fmt.Errorf("decode encoded_path: %w", err)
	}

	origSizeField, err := d.ReadField()
	if err != nil {
		return entry, fmt.Errorf("read original_size field: %w", err)
	}
	entry.OriginalSize, err = readExactUint64(origSizeField)
	if err != nil {
		return entry, fmt.Errorf("decode original_size: %w", err)
	}

	encSizeField, err := d.ReadField()
	if err != nil {
		return entry, fmt.Errorf("read encoded_size field: %w", err)
	}
	entry.EncodedSize, err = readExactUint64(encSizeField)
	if err != nil {
		return entry, fmt.Errorf("decode encoded_size: %w", err)
	}

	checksumField, err := d.ReadField()
	if err != nil {
		return entry, fmt.Errorf("read checksum field: %w", err)
	}
	entry.Checksum, err = readExactUint32(checksumField)
	if err != nil {
		return entry, fmt.Errorf("decode checksum: %w", err)
	}

	return entry, nil
}

func requireLen(b []byte, want int) ([]byte, error) {
	if len(b) != want {
		return nil, fmt.Errorf("expected %d bytes, got %d: %w", want, len(b), zerr.ErrCorruptedData)
	}
	return b, nil
}

func readExactUint32(b []byte) (uint32, error) {
	if _, err := requireLen(b, 4); err != nil {
		return 0, err
	}
	return wire.NewDecoder(b).ReadUint32()
}

func readExactUint64(b []byte) (uint64, error) {
	if _, err := requireLen(b, 8); err != nil {
		return 0, err
	}
	return wire.NewDecoder(b).ReadUint64()
}
