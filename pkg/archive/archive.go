// Package archive implements the in-memory archive container: one manifest
// plus the contiguous data region holding every packed file's bytes in
// entry order. It owns the build path (AddFile), the wire format
// (Serialize/Parse), and the extraction path (Extract), exactly the
// responsibilities the format spec assigns to the archive container layer.
//
// An Archive is created empty, mutated only by AddFile during encoding (or
// filled once by Parse during decoding), then serialized or extracted. It is
// not safe for concurrent use; each Encoder/Decoder should own its own
// Archive instance, matching the core's single-threaded, synchronous
// resource model.
package archive

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goopsie/zpak/pkg/manifest"
	"github.com/goopsie/zpak/pkg/zerr"
)

// headerSize is the width of the leading manifest_size field in the
// serialized archive layout.
const headerSize = 8

// Archive is the in-memory representation of {manifest, data region}.
type Archive struct {
	manifest *manifest.Manifest
	data     []byte
	seen     map[string]struct{}
}

// New creates an empty archive at the current manifest version, recording
// algorithmID as the codec that will compress the serialized archive.
func New(algorithmID uint8) *Archive {
	return &Archive{
		manifest: manifest.New(algorithmID),
		seen:     make(map[string]struct{}),
	}
}

// Manifest returns the archive's manifest. Callers must not mutate it
// directly; use AddFile to add entries.
func (a *Archive) Manifest() *manifest.Manifest {
	return a.manifest
}

// EntryCount returns the number of files currently in the archive.
func (a *Archive) EntryCount() int {
	return len(a.manifest.Entries)
}

// AddFile appends content to the data region and records a manifest entry
// for it under relPath, which must be a non-empty, relative,
// forward-slash-separated path with no ".." component, unique within the
// archive.
func (a *Archive) AddFile(relPath string, content []byte) error {
	if err := validateRelPath(relPath); err != nil {
		return err
	}
	if _, dup := a.seen[relPath]; dup {
		return fmt.Errorf("duplicate path %q in manifest: %w", relPath, zerr.ErrCorruptedData)
	}

	offset := uint64(len(a.data))
	a.data = append(a.data, content...)
	checksum := crc32.ChecksumIEEE(content)

	a.manifest.Entries = append(a.manifest.Entries, manifest.Entry{
		OriginalPath: relPath,
		EncodedPath:  "offset:" + strconv.FormatUint(offset, 10),
		OriginalSize: uint64(len(content)),
		EncodedSize:  uint64(len(content)),
		Checksum:     checksum,
	})
	a.seen[relPath] = struct{}{}
	return nil
}

// Serialize emits [u64 manifest_size][manifest_bytes][data_bytes]. The
// returned buffer is newly allocated and owned by the caller.
func (a *Archive) Serialize() []byte {
	manifestBytes := a.manifest.Marshal()

	out := make([]byte, 0, headerSize+len(manifestBytes)+len(a.data))
	var sizeBuf [headerSize]byte
	binary.LittleEndian.PutUint64(sizeBuf[:], uint64(len(manifestBytes)))
	out = append(out, sizeBuf[:]...)
	out = append(out, manifestBytes...)
	out = append(out, a.data...)
	return out
}

// Parse reconstructs an Archive from bytes previously produced by
// Serialize (after decompression). It fails with zerr.ErrInvalidArchive if
// the header is truncated or declares a manifest_size exceeding the
// remaining buffer, and propagates zerr.ErrCorruptedData /
// zerr.ErrUnsupportedManifestVersion from the manifest decoder.
func Parse(data []byte) (*Archive, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("archive header truncated (%d bytes): %w", len(data), zerr.ErrInvalidArchive)
	}

	manifestSize := binary.LittleEndian.Uint64(data[:headerSize])
	if manifestSize > uint64(len(data)-headerSize) {
		return nil, fmt.Errorf("manifest_size %d exceeds remaining %d bytes: %w",
			manifestSize, len(data)-headerSize, zerr.ErrInvalidArchive)
	}

	manifestBytes := data[headerSize : headerSize+manifestSize]
	m, err := manifest.Unmarshal(manifestBytes)
	if err != nil {
		return nil, err
	}

	rest := data[headerSize+manifestSize:]
	dataCopy := make([]byte, len(rest))
	copy(dataCopy, rest)

	seen := make(map[string]struct{}, len(m.Entries))
	for _, e := range m.Entries {
		seen[e.OriginalPath] = struct{}{}
	}

	return &Archive{manifest: m, data: dataCopy, seen: seen}, nil
}

// Extract writes every entry's bytes to outputDir, in manifest order.
// Destination paths that would escape outputDir fail with
// zerr.ErrUnsafeExtractionPath. A malformed encoded_path fails with
// zerr.ErrCorruptedData. A CRC-32 mismatch fails with
// zerr.ErrChecksumMismatch and aborts the remaining entries; files already
// written before the failure are not rolled back, but no file is ever
// written with an unverified checksum or bytes sourced from outside the
// data region.
func (a *Archive) Extract(outputDir string) error {
	for _, e := range a.manifest.Entries {
		destPath, err := resolveExtractionPath(outputDir, e.OriginalPath)
		if err != nil {
			return err
		}

		offset, err := parseEncodedPath(e.EncodedPath)
		if err != nil {
			return err
		}

		if offset > uint64(len(a.data)) || e.OriginalSize > uint64(len(a.data))-offset {
			return fmt.Errorf("entry %q: offset %d + size %d exceeds data region (%d bytes): %w",
				e.OriginalPath, offset, e.OriginalSize, len(a.data), zerr.ErrCorruptedData)
		}

		chunk := a.data[offset : offset+e.OriginalSize]
		if crc32.ChecksumIEEE(chunk) != e.Checksum {
			return fmt.Errorf("entry %q: %w", e.OriginalPath, zerr.ErrChecksumMismatch)
		}

		if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
			return fmt.Errorf("create parent directory for %q: %w", e.OriginalPath, err)
		}
		if err := os.WriteFile(destPath, chunk, 0644); err != nil {
			return fmt.Errorf("write %q: %w", e.OriginalPath, err)
		}
	}
	return nil
}

// validateRelPath enforces the manifest invariants on original_path: it
// must be non-empty, must not start with "/", and must contain no ".."
// component.
func validateRelPath(p string) error {
	if p == "" {
		return fmt.Errorf("empty path: %w", zerr.ErrCorruptedData)
	}
	if strings.HasPrefix(p, "/") {
		return fmt.Errorf("path %q is absolute: %w", p, zerr.ErrUnsafeExtractionPath)
	}
	for _, part := range strings.Split(p, "/") {
		if part == ".." {
			return fmt.Errorf("path %q contains '..': %w", p, zerr.ErrUnsafeExtractionPath)
		}
	}
	return nil
}

// resolveExtractionPath joins outputDir with relPath (translating forward
// slashes to the host separator) and rejects any result that would escape
// outputDir.
func resolveExtractionPath(outputDir, relPath string) (string, error) {
	if err := validateRelPath(relPath); err != nil {
		return "", err
	}

	dest := filepath.Join(outputDir, filepath.FromSlash(relPath))
	cleanOutput := filepath.Clean(outputDir)

	rel, err := filepath.Rel(cleanOutput, dest)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes output directory: %w", relPath, zerr.ErrUnsafeExtractionPath)
	}
	return dest, nil
}

// parseEncodedPath parses the decimal offset out of an "offset:<decimal>"
// locator, rejecting anything else as corrupted.
func parseEncodedPath(encodedPath string) (uint64, error) {
	const prefix = "offset:"
	if !strings.HasPrefix(encodedPath, prefix) {
		return 0, fmt.Errorf("encoded_path %q missing %q prefix: %w", encodedPath, prefix, zerr.ErrCorruptedData)
	}
	tail := encodedPath[len(prefix):]
	if tail == "" {
		return 0, fmt.Errorf("encoded_path %q has empty offset: %w", encodedPath, zerr.ErrCorruptedData)
	}
	for _, r := range tail {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("encoded_path %q has non-decimal offset: %w", encodedPath, zerr.ErrCorruptedData)
		}
	}
	offset, err := strconv.ParseUint(tail, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("encoded_path %q: %w: %w", encodedPath, zerr.ErrCorruptedData, err)
	}
	return offset, nil
}
