// Package wire implements the length-prefixed binary encoding used for the
// zpak manifest. It is hand-written against the fixed layout in the format
// spec rather than built as a general-purpose reflective serializer: the byte
// format is the authority, and only two record types ever cross this
// boundary (Manifest and its entries).
//
// Encoding rules:
//   - fixed-width primitives are written as native little-endian bytes.
//   - every structured-record field is wrapped in a u64 field length.
//   - every sequence element is wrapped in a u64 element length, after a u64
//     sequence count.
//   - byte strings carry their own u64 length inside their field payload.
//
// All lengths are unaligned little-endian u64.
package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/goopsie/zpak/pkg/zerr"
)

// Encoder accumulates a single owned output buffer. It does not stream.
type Encoder struct {
	buf []byte
}

// NewEncoder returns an empty Encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Bytes returns the accumulated output. The caller owns the returned slice.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// WriteUint8 appends a single byte.
func (e *Encoder) WriteUint8(v uint8) {
	e.buf = append(e.buf, v)
}

// WriteUint32 appends v as 4 little-endian bytes.
func (e *Encoder) WriteUint32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

// WriteUint64 appends v as 8 little-endian bytes.
func (e *Encoder) WriteUint64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

// WriteRaw appends b with no length framing of its own.
func (e *Encoder) WriteRaw(b []byte) {
	e.buf = append(e.buf, b...)
}

// WriteString appends a self-lengthed byte string: a u64 length followed by
// the bytes of s.
func (e *Encoder) WriteString(s string) {
	e.WriteUint64(uint64(len(s)))
	e.buf = append(e.buf, s...)
}

// WriteField wraps payload in a u64 field length, per the structured-record
// encoding rule.
func (e *Encoder) WriteField(payload []byte) {
	e.WriteUint64(uint64(len(payload)))
	e.buf = append(e.buf, payload...)
}

// WriteElement wraps payload in a u64 element length. Mechanically identical
// to WriteField; kept as a distinct name to mirror the spec's field_len vs
// elem_len vocabulary at call sites.
func (e *Encoder) WriteElement(payload []byte) {
	e.WriteField(payload)
}

// StringBytes encodes s as a standalone self-lengthed byte string, for
// building a field payload before it is passed to WriteField.
func StringBytes(s string) []byte {
	sub := NewEncoder()
	sub.WriteString(s)
	return sub.Bytes()
}

// Uint64Bytes encodes v as a standalone 8-byte field payload.
func Uint64Bytes(v uint64) []byte {
	sub := NewEncoder()
	sub.WriteUint64(v)
	return sub.Bytes()
}

// Uint32Bytes encodes v as a standalone 4-byte field payload.
func Uint32Bytes(v uint32) []byte {
	sub := NewEncoder()
	sub.WriteUint32(v)
	return sub.Bytes()
}

// Uint8Bytes encodes v as a standalone 1-byte field payload.
func Uint8Bytes(v uint8) []byte {
	return []byte{v}
}

// Decoder reads a length-prefixed buffer produced by Encoder. Every read is
// bounds-checked; any truncation or oversized declared length fails with
// zerr.ErrCorruptedData. It does not check that a field's length equals the
// width of the primitive inside it; callers such as pkg/manifest do that.
type Decoder struct {
	buf []byte
	pos int
}

// NewDecoder wraps buf for sequential reads. buf is not copied.
func NewDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf}
}

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int {
	return len(d.buf) - d.pos
}

func (d *Decoder) take(n int) ([]byte, error) {
	if n < 0 || n > d.Remaining() {
		return nil, fmt.Errorf("wire: take %d bytes with %d remaining: %w", n, d.Remaining(), zerr.ErrCorruptedData)
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

// ReadUint8 reads a single byte.
func (d *Decoder) ReadUint8() (uint8, error) {
	b, err := d.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadUint32 reads 4 little-endian bytes.
func (d *Decoder) ReadUint32() (uint32, error) {
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ReadUint64 reads 8 little-endian bytes.
func (d *Decoder) ReadUint64() (uint64, error) {
	b, err := d.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// ReadRaw reads exactly n unframed bytes.
func (d *Decoder) ReadRaw(n int) ([]byte, error) {
	return d.take(n)
}

// ReadString reads a self-lengthed byte string: a u64 length followed by
// that many bytes.
func (d *Decoder) ReadString() (string, error) {
	n, err := d.ReadUint64()
	if err != nil {
		return "", fmt.Errorf("wire: read string length: %w", err)
	}
	b, err := d.take(int(n))
	if err != nil {
		return "", fmt.Errorf("wire: read string body: %w", err)
	}
	return string(b), nil
}

// ReadField reads a u64 field length followed by that many bytes and returns
// the payload unparsed, for the caller to hand to a sub-decoder.
func (d *Decoder) ReadField() ([]byte, error) {
	n, err := d.ReadUint64()
	if err != nil {
		return nil, fmt.Errorf("wire: read field length: %w", err)
	}
	return d.take(int(n))
}

// ReadElement reads a u64 element length followed by that many bytes.
// Mechanically identical to ReadField; kept distinct to mirror the spec's
// elem_len vocabulary at call sites.
func (d *Decoder) ReadElement() ([]byte, error) {
	return d.ReadField()
}

// ReadSequenceCount reads a u64 element count and bounds-checks
// count*minElemSize against the remaining buffer so a corrupted count
// cannot force an unbounded allocation downstream.
func (d *Decoder) ReadSequenceCount(minElemSize int) (int, error) {
	count, err := d.ReadUint64()
	if err != nil {
		return 0, fmt.Errorf("wire: read sequence count: %w", err)
	}
	if minElemSize > 0 {
		maxCount := uint64(d.Remaining()) / uint64(minElemSize)
		if count > maxCount {
			return 0, fmt.Errorf("wire: sequence count %d exceeds what %d remaining bytes could hold: %w",
				count, d.Remaining(), zerr.ErrCorruptedData)
		}
	}
	return int(count), nil
}
