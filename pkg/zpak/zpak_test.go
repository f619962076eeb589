package zpak

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/goopsie/zpak/pkg/archive"
	"github.com/goopsie/zpak/pkg/codec"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		full := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			t.Fatalf("mkdir for %s: %v", rel, err)
		}
		if err := os.WriteFile(full, []byte(content), 0644); err != nil {
			t.Fatalf("write %s: %v", rel, err)
		}
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, algo := range []string{"lz4", "zstd", "lzma", "brotli"} {
		algo := algo
		t.Run(algo, func(t *testing.T) {
			src := t.TempDir()
			writeTree(t, src, map[string]string{
				"a.txt":         "hello",
				"nested/b.txt":  "world",
				"nested/c/d.md": "# heading\n\nsome body text repeated. some body text repeated.",
			})

			archivePath := filepath.Join(t.TempDir(), "out.zpak")
			result, err := Encode(src, archivePath, WithAlgorithm(algo), WithLevel(codec.LevelHigh))
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			if result.EntryCount != 3 {
				t.Fatalf("got %d entries, want 3", result.EntryCount)
			}

			dst := t.TempDir()
			if _, err := Decode(archivePath, dst); err != nil {
				t.Fatalf("decode: %v", err)
			}

			for rel, want := range map[string]string{
				"a.txt":         "hello",
				"nested/b.txt":  "world",
				"nested/c/d.md": "# heading\n\nsome body text repeated. some body text repeated.",
			} {
				got, err := os.ReadFile(filepath.Join(dst, filepath.FromSlash(rel)))
				if err != nil {
					t.Fatalf("read back %s: %v", rel, err)
				}
				if string(got) != want {
					t.Errorf("%s: got %q, want %q", rel, got, want)
				}
			}
		})
	}
}

func TestEncodeSkipsSymlinksAndEmptyDirs(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"kept.txt": "data"})
	if err := os.MkdirAll(filepath.Join(src, "empty"), 0755); err != nil {
		t.Fatalf("mkdir empty: %v", err)
	}
	if err := os.Symlink(filepath.Join(src, "kept.txt"), filepath.Join(src, "link.txt")); err != nil {
		t.Skipf("symlinks unsupported on this platform: %v", err)
	}

	archivePath := filepath.Join(t.TempDir(), "out.zpak")
	result, err := Encode(src, archivePath)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if result.EntryCount != 1 {
		t.Fatalf("got %d entries, want 1 (symlink and empty dir should be skipped)", result.EntryCount)
	}
}

func TestEncodeOrdersEntriesAlphabetically(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{
		"zebra.txt": "z",
		"alpha.txt": "a",
		"beta/b.txt": "b",
	})

	archivePath := filepath.Join(t.TempDir(), "out.zpak")
	if _, err := Encode(src, archivePath, WithAlgorithm("lz4")); err != nil {
		t.Fatalf("encode: %v", err)
	}

	raw, err := os.ReadFile(archivePath)
	if err != nil {
		t.Fatalf("read archive: %v", err)
	}
	serialized, err := decompressOuterPayload(codecRegistryForTest(), raw)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}

	a, err := archive.Parse(serialized)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	var paths []string
	for _, e := range a.Manifest().Entries {
		paths = append(paths, e.OriginalPath)
	}
	if !sort.StringsAreSorted(paths) {
		t.Errorf("entries not alphabetically ordered: %v", paths)
	}
}

func TestEncodeRejectsMissingInputDir(t *testing.T) {
	_, err := Encode(filepath.Join(t.TempDir(), "does-not-exist"), filepath.Join(t.TempDir(), "out.zpak"))
	if err == nil {
		t.Fatalf("expected error for missing input directory")
	}
}

func TestEncodeRejectsUnknownAlgorithm(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"a.txt": "x"})
	_, err := Encode(src, filepath.Join(t.TempDir(), "out.zpak"), WithAlgorithm("gzip"))
	if err == nil {
		t.Fatalf("expected error for unknown algorithm")
	}
}

func TestDecodeSucceedsWhenOuterPayloadRecompressedWithDifferentCodec(t *testing.T) {
	// Mirrors encoding with Brotli, then re-compressing the same inner bytes
	// with Zstd: decode must still succeed because codec identification
	// follows frame content, not any previously stored metadata.
	src := t.TempDir()
	writeTree(t, src, map[string]string{"a.txt": "hello"})

	firstPath := filepath.Join(t.TempDir(), "brotli.zpak")
	if _, err := Encode(src, firstPath, WithAlgorithm("brotli")); err != nil {
		t.Fatalf("encode: %v", err)
	}

	raw, err := os.ReadFile(firstPath)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	registry := codecRegistryForTest()
	inner, err := decompressOuterPayload(registry, raw)
	if err != nil {
		t.Fatalf("decompress inner: %v", err)
	}

	zstd, err := registry.ByName("zstd")
	if err != nil {
		t.Fatalf("lookup zstd: %v", err)
	}
	recompressed, err := zstd.Compress(inner, codec.LevelMedium)
	if err != nil {
		t.Fatalf("recompress: %v", err)
	}

	recompressedPath := filepath.Join(t.TempDir(), "recompressed.zpak")
	if err := os.WriteFile(recompressedPath, recompressed, 0644); err != nil {
		t.Fatalf("write recompressed: %v", err)
	}

	dst := t.TempDir()
	if _, err := Decode(recompressedPath, dst); err != nil {
		t.Fatalf("decode recompressed archive: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(dst, "a.txt"))
	if err != nil || string(got) != "hello" {
		t.Errorf("a.txt: got %q, %v", got, err)
	}
}

func TestDecodeRejectsMissingArchive(t *testing.T) {
	_, err := Decode(filepath.Join(t.TempDir(), "missing.zpak"), t.TempDir())
	if err == nil {
		t.Fatalf("expected error for missing archive file")
	}
}

func codecRegistryForTest() *codec.Registry {
	return codec.NewRegistry()
}
