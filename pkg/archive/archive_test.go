package archive

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/goopsie/zpak/pkg/zerr"
)

func TestAddFileAndSerializeRoundTrip(t *testing.T) {
	a := New(2)
	if err := a.AddFile("a.txt", []byte("hello")); err != nil {
		t.Fatalf("add a.txt: %v", err)
	}
	if err := a.AddFile("dir/b.bin", bytes.Repeat([]byte{0xAB}, 1024)); err != nil {
		t.Fatalf("add dir/b.bin: %v", err)
	}

	serialized := a.Serialize()

	parsed, err := Parse(serialized)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if parsed.EntryCount() != 2 {
		t.Fatalf("got %d entries, want 2", parsed.EntryCount())
	}
	entries := parsed.Manifest().Entries
	if entries[0].OriginalPath != "a.txt" || entries[0].OriginalSize != 5 || entries[0].Checksum != 0x3610A686 {
		t.Errorf("entry 0 mismatch: %+v", entries[0])
	}
	if entries[0].EncodedPath != "offset:0" {
		t.Errorf("entry 0 encoded_path: got %q, want offset:0", entries[0].EncodedPath)
	}
	if entries[1].EncodedPath != "offset:5" {
		t.Errorf("entry 1 encoded_path: got %q, want offset:5", entries[1].EncodedPath)
	}
}

func TestZeroByteFileRoundTrips(t *testing.T) {
	a := New(1)
	if err := a.AddFile("empty.txt", nil); err != nil {
		t.Fatalf("add: %v", err)
	}

	parsed, err := Parse(a.Serialize())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	e := parsed.Manifest().Entries[0]
	if e.OriginalSize != 0 {
		t.Errorf("got size %d, want 0", e.OriginalSize)
	}
	if e.Checksum != 0 {
		t.Errorf("got checksum %x, want crc32(\"\") = 0", e.Checksum)
	}
}

func TestExtractWritesFilesAndVerifiesChecksum(t *testing.T) {
	a := New(2)
	_ = a.AddFile("a.txt", []byte("hello"))
	_ = a.AddFile("nested/deep/b.txt", []byte("world"))

	dir := t.TempDir()
	if err := a.Extract(dir); err != nil {
		t.Fatalf("extract: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dir, "a.txt"))
	if err != nil || string(got) != "hello" {
		t.Errorf("a.txt: got %q, %v", got, err)
	}
	got, err = os.ReadFile(filepath.Join(dir, "nested", "deep", "b.txt"))
	if err != nil || string(got) != "world" {
		t.Errorf("nested/deep/b.txt: got %q, %v", got, err)
	}
}

func TestExtractFailsOnChecksumMismatch(t *testing.T) {
	a := New(2)
	_ = a.AddFile("a.txt", []byte("hello"))

	serialized := a.Serialize()
	parsed, err := Parse(serialized)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	parsed.Manifest().Entries[0].Checksum ^= 0xFFFFFFFF

	dir := t.TempDir()
	err = parsed.Extract(dir)
	if !errors.Is(err, zerr.ErrChecksumMismatch) {
		t.Errorf("got %v, want ErrChecksumMismatch", err)
	}
}

func TestExtractRejectsPathEscape(t *testing.T) {
	a := New(2)
	_ = a.AddFile("safe.txt", []byte("ok"))
	parsed, err := Parse(a.Serialize())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	parsed.Manifest().Entries[0].OriginalPath = "../escape.txt"

	err = parsed.Extract(t.TempDir())
	if !errors.Is(err, zerr.ErrUnsafeExtractionPath) {
		t.Errorf("got %v, want ErrUnsafeExtractionPath", err)
	}
}

func TestAddFileRejectsUnsafePaths(t *testing.T) {
	cases := []string{"", "/abs/path", "a/../b", ".."}
	for _, p := range cases {
		a := New(1)
		if err := a.AddFile(p, []byte("x")); err == nil {
			t.Errorf("AddFile(%q): expected error, got nil", p)
		}
	}
}

func TestAddFileRejectsDuplicatePath(t *testing.T) {
	a := New(1)
	if err := a.AddFile("a.txt", []byte("1")); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if err := a.AddFile("a.txt", []byte("2")); err == nil {
		t.Errorf("expected duplicate-path error")
	}
}

func TestParseFailsOnTruncatedHeader(t *testing.T) {
	_, err := Parse([]byte{0x01, 0x02, 0x03, 0x04})
	if !errors.Is(err, zerr.ErrInvalidArchive) {
		t.Errorf("got %v, want ErrInvalidArchive", err)
	}
}

func TestParseFailsWhenManifestSizeExceedsBuffer(t *testing.T) {
	a := New(1)
	_ = a.AddFile("a.txt", []byte("hi"))
	serialized := a.Serialize()

	serialized[0] = 0xFF
	serialized[1] = 0xFF
	serialized[2] = 0xFF
	serialized[3] = 0xFF

	_, err := Parse(serialized)
	if !errors.Is(err, zerr.ErrInvalidArchive) {
		t.Errorf("got %v, want ErrInvalidArchive", err)
	}
}

func TestEncodedPathAtBlockBoundarySize(t *testing.T) {
	a := New(2)
	block := bytes.Repeat([]byte{0x42}, 64*1024)
	_ = a.AddFile("block.bin", block)
	_ = a.AddFile("next.bin", []byte("x"))

	parsed, err := Parse(a.Serialize())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.Manifest().Entries[1].EncodedPath != "offset:65536" {
		t.Errorf("got %q, want offset:65536", parsed.Manifest().Entries[1].EncodedPath)
	}

	dir := t.TempDir()
	if err := parsed.Extract(dir); err != nil {
		t.Fatalf("extract: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(dir, "block.bin"))
	if err != nil || !bytes.Equal(got, block) {
		t.Errorf("block.bin round trip mismatch")
	}
}
