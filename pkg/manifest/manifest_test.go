package manifest

import (
	"errors"
	"testing"

	"github.com/goopsie/zpak/pkg/zerr"
)

func sampleManifest() *Manifest {
	m := New(2)
	m.Entries = []Entry{
		{OriginalPath: "a.txt", EncodedPath: "offset:0", OriginalSize: 5, EncodedSize: 5, Checksum: 0x3610A686},
		{OriginalPath: "dir/b.bin", EncodedPath: "offset:5", OriginalSize: 1024, EncodedSize: 1024, Checksum: 0xDEADBEEF},
	}
	return m
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	m := sampleManifest()

	decoded, err := Unmarshal(m.Marshal())
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if decoded.Version != m.Version {
		t.Errorf("version: got %d, want %d", decoded.Version, m.Version)
	}
	if decoded.HasAlgorithmID != true || decoded.AlgorithmID != 2 {
		t.Errorf("algorithm id: got (%v, %d)", decoded.HasAlgorithmID, decoded.AlgorithmID)
	}
	if len(decoded.Entries) != len(m.Entries) {
		t.Fatalf("entry count: got %d, want %d", len(decoded.Entries), len(m.Entries))
	}
	for i := range m.Entries {
		if decoded.Entries[i] != m.Entries[i] {
			t.Errorf("entry %d: got %+v, want %+v", i, decoded.Entries[i], m.Entries[i])
		}
	}
}

func TestEmptyManifestRoundTrip(t *testing.T) {
	m := New(1)
	decoded, err := Unmarshal(m.Marshal())
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(decoded.Entries) != 0 {
		t.Errorf("expected zero entries, got %d", len(decoded.Entries))
	}
}

func TestLegacyManifestWithoutAlgorithmID(t *testing.T) {
	m := &Manifest{Version: 1, HasAlgorithmID: false}
	m.Entries = []Entry{{OriginalPath: "x", EncodedPath: "offset:0", OriginalSize: 1, EncodedSize: 1, Checksum: 1}}

	decoded, err := Unmarshal(m.Marshal())
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.HasAlgorithmID {
		t.Errorf("expected legacy manifest to decode with HasAlgorithmID=false")
	}
}

func TestUnsupportedVersionFails(t *testing.T) {
	m := sampleManifest()
	m.Version = 2

	_, err := Unmarshal(m.Marshal())
	if !errors.Is(err, zerr.ErrUnsupportedManifestVersion) {
		t.Errorf("got %v, want ErrUnsupportedManifestVersion", err)
	}
}

func TestTruncatedManifestFailsCorrupted(t *testing.T) {
	m := sampleManifest()
	data := m.Marshal()

	// Flip a byte of the entries field's u64 length prefix (bytes 12..19),
	// so it declares far more bytes than remain and the buffer reads as
	// truncated.
	data[16] ^= 0xFF

	_, err := Unmarshal(data)
	if !errors.Is(err, zerr.ErrCorruptedData) {
		t.Fatalf("got %v, want ErrCorruptedData", err)
	}
}

func TestTruncatedToFourBytesFails(t *testing.T) {
	_, err := Unmarshal([]byte{0x01, 0x02, 0x03, 0x04})
	if !errors.Is(err, zerr.ErrCorruptedData) {
		t.Errorf("got %v, want ErrCorruptedData", err)
	}
}

func TestEntryCountBeyondBufferFailsWithoutUnboundedAlloc(t *testing.T) {
	// A declared entry count that vastly exceeds what the buffer could hold.
	m := sampleManifest()
	data := m.Marshal()

	// entries field starts right after the version field (8-byte field_len
	// plus 4-byte payload = 12 bytes in). The entries field's first 8 bytes
	// (after its own field_len) are the u64 count, 20 bytes in.
	// Corrupt the count to an enormous, implausible value.
	countOffset := 8 + 4 + 8 // version field_len+payload, entries field_len
	for i := 0; i < 8; i++ {
		data[countOffset+i] = 0xFF
	}

	_, err := Unmarshal(data)
	if !errors.Is(err, zerr.ErrCorruptedData) {
		t.Errorf("got %v, want ErrCorruptedData", err)
	}
}
