// Package zpak is the end-to-end orchestration layer: directory → Archive →
// wire bytes → codec → file, and back. It is the only package that touches
// the filesystem outside of extraction's own write-out step in pkg/archive.
//
// Encode and Decode are configured with the same closure-based Option
// pattern the legacy package builder used for its extract options
// (WithPreserveGroups, WithDecimalNames): a small unexported config struct
// mutated by exported With* functions, rather than a long positional
// parameter list or a public struct literal.
package zpak

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/goopsie/zpak/pkg/archive"
	"github.com/goopsie/zpak/pkg/codec"
	"github.com/goopsie/zpak/pkg/zerr"
)

// encodeConfig holds Encode's tunables.
type encodeConfig struct {
	algorithm string
	level     codec.Level
	onFile    func(relPath string)
}

// EncodeOption configures Encode.
type EncodeOption func(*encodeConfig)

// WithAlgorithm selects the outer compression codec by name (lz4, zstd,
// lzma, brotli). The default, if never set, is lz4.
func WithAlgorithm(name string) EncodeOption {
	return func(c *encodeConfig) { c.algorithm = name }
}

// WithLevel selects the compression level. The default, if never set, is
// codec.LevelMedium.
func WithLevel(level codec.Level) EncodeOption {
	return func(c *encodeConfig) { c.level = level }
}

// WithProgress registers a callback invoked with each file's archive-relative
// path as it is packed. Intended for a CLI's -v/--verbose flag; core callers
// may leave it unset.
func WithProgress(fn func(relPath string)) EncodeOption {
	return func(c *encodeConfig) { c.onFile = fn }
}

// DecodeOption configures Decode.
type DecodeOption func(*decodeConfig)

type decodeConfig struct {
	onFile func(relPath string)
}

// WithExtractProgress registers a callback invoked with each entry's path, in
// manifest order, once the archive has been parsed and before any file is
// written. It is called for every entry, even if extraction then fails.
func WithExtractProgress(fn func(relPath string)) DecodeOption {
	return func(c *decodeConfig) { c.onFile = fn }
}

// Result summarizes a completed Encode or Decode, for a CLI's success message.
type Result struct {
	EntryCount     int
	CompressedSize int
}

// Encode walks inputDir depth-first in alphabetical order, packs every
// regular file it finds into an archive, compresses the serialized archive
// with the configured codec and level, and atomically writes it to
// outputPath. Non-regular files (symlinks, sockets, devices, FIFOs) are
// silently skipped; empty directories are not preserved.
func Encode(inputDir, outputPath string, opts ...EncodeOption) (Result, error) {
	cfg := encodeConfig{algorithm: "lz4", level: codec.LevelMedium}
	for _, opt := range opts {
		opt(&cfg)
	}

	registry := codec.NewRegistry()
	chosen, err := registry.ByName(cfg.algorithm)
	if err != nil {
		return Result{}, err
	}

	info, err := os.Stat(inputDir)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{}, fmt.Errorf("input directory %q: %w", inputDir, zerr.ErrPathNotFound)
		}
		return Result{}, fmt.Errorf("stat input directory: %w", err)
	}
	if !info.IsDir() {
		return Result{}, fmt.Errorf("input %q is not a directory: %w", inputDir, zerr.ErrPathNotFound)
	}

	a := archive.New(chosen.ID())

	walkErr := filepath.WalkDir(inputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		relPath, err := filepath.Rel(inputDir, path)
		if err != nil {
			return fmt.Errorf("relativize %q: %w", path, err)
		}
		relPath = filepath.ToSlash(relPath)

		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %q: %w", path, err)
		}

		if err := a.AddFile(relPath, content); err != nil {
			return fmt.Errorf("add %q: %w", relPath, err)
		}
		if cfg.onFile != nil {
			cfg.onFile(relPath)
		}
		return nil
	})
	if walkErr != nil {
		return Result{}, walkErr
	}

	serialized := a.Serialize()
	compressed, err := chosen.Compress(serialized, cfg.level)
	if err != nil {
		return Result{}, fmt.Errorf("compress archive: %w", err)
	}

	if err := writeFileAtomically(outputPath, compressed); err != nil {
		return Result{}, err
	}

	return Result{EntryCount: a.EntryCount(), CompressedSize: len(compressed)}, nil
}

// Decode reads inputPath, determines the outer codec, decompresses, parses
// the archive, and extracts it to outputDir.
func Decode(inputPath, outputDir string, opts ...DecodeOption) (Result, error) {
	var cfg decodeConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	raw, err := os.ReadFile(inputPath)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{}, fmt.Errorf("archive %q: %w", inputPath, zerr.ErrPathNotFound)
		}
		return Result{}, fmt.Errorf("read %q: %w", inputPath, err)
	}

	registry := codec.NewRegistry()
	serialized, err := decompressOuterPayload(registry, raw)
	if err != nil {
		return Result{}, err
	}

	a, err := archive.Parse(serialized)
	if err != nil {
		return Result{}, err
	}

	if cfg.onFile != nil {
		for _, e := range a.Manifest().Entries {
			cfg.onFile(e.OriginalPath)
		}
	}

	if err := a.Extract(outputDir); err != nil {
		return Result{}, err
	}

	return Result{EntryCount: a.EntryCount(), CompressedSize: len(raw)}, nil
}

// decompressOuterPayload recovers the serialized archive bytes from a
// compressed zpak file.
//
// The wire format (§6.1) gives the outer payload no envelope and no magic
// number of its own: algorithm_id lives inside the manifest, which is itself
// inside the compressed bytes being decoded. Selecting a codec from
// algorithm_id before decompression is therefore not possible from the file
// alone; it can only be consulted after decompression succeeds, at which
// point it would merely confirm what already worked. This function resolves
// that by sniffing frame magic first (cheap, unambiguous for Zstd and LZMA),
// then falling back to trial decompression in registration order for
// codecs with no reliable magic (LZ4, Brotli) — matching the spec's
// acknowledgment that the LZ4 trial loop is best-effort.
func decompressOuterPayload(registry *codec.Registry, raw []byte) ([]byte, error) {
	if c, ok := registry.Detect(raw); ok {
		out, err := c.Decompress(raw, codec.NoSizeHint)
		if err == nil {
			return out, nil
		}
	}

	for _, c := range registry.All() {
		out, err := c.Decompress(raw, codec.NoSizeHint)
		if err != nil {
			continue
		}
		if looksLikeArchive(out) {
			return out, nil
		}
	}

	return nil, fmt.Errorf("no registered codec could decompress archive: %w", zerr.ErrDecompressionFailed)
}

// looksLikeArchive applies a cheap sanity check to a trial-decompressed
// buffer before accepting it as the serialized archive: it must parse with
// archive.Parse, header and manifest both. This rejects garbage that a tolerant decompressor (e.g. LZ4's block
// decoder on arbitrary input) might otherwise accept without error.
func looksLikeArchive(data []byte) bool {
	if len(data) < 8 {
		return false
	}
	_, err := archive.Parse(data)
	return err == nil
}

// writeFileAtomically writes data to a temporary file in outputPath's
// directory, then renames it into place, so a failed or interrupted write
// never leaves a partial file at outputPath.
func writeFileAtomically(outputPath string, data []byte) error {
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(outputPath)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, outputPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}
