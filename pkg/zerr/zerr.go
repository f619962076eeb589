// Package zerr defines the sentinel error kinds shared across zpak's core
// packages. Callers match them with errors.Is; every fallible function wraps
// one of these with context via fmt.Errorf("...: %w", ...).
package zerr

import "errors"

var (
	// ErrPathNotFound is returned when an input directory or archive file is absent.
	ErrPathNotFound = errors.New("path not found")

	// ErrInvalidArchive is returned when the archive header is truncated or
	// declares an implausible manifest size.
	ErrInvalidArchive = errors.New("invalid archive")

	// ErrCorruptedData is returned when the serializer finds a truncated or
	// malformed length prefix, a malformed encoded_path, or a bounds violation.
	ErrCorruptedData = errors.New("corrupted data")

	// ErrChecksumMismatch is returned when an entry's CRC-32 does not match
	// its recorded checksum.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrUnsupportedManifestVersion is returned when a manifest declares a
	// version newer than this implementation understands.
	ErrUnsupportedManifestVersion = errors.New("unsupported manifest version")

	// ErrCompressionFailed is returned when a codec fails to compress data.
	ErrCompressionFailed = errors.New("compression failed")

	// ErrDecompressionFailed is returned when a codec fails to decompress
	// data, including when every registered codec fails the sniff-and-try
	// fallback.
	ErrDecompressionFailed = errors.New("decompression failed")

	// ErrAlgorithmNotFound is returned when a caller requests a codec name
	// or id that is not in the registry.
	ErrAlgorithmNotFound = errors.New("algorithm not found")

	// ErrUnsafeExtractionPath is returned when an entry's resolved
	// destination would escape the output directory.
	ErrUnsafeExtractionPath = errors.New("unsafe extraction path")
)
