package binary

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"unicode/utf8"
)

// ErrOverflow reports a varint that does not fit its target width.
var ErrOverflow = errors.New("varint overflow")

// Reader decodes .ilm primitives from an in-memory buffer. The offset is
// always the count of consumed bytes, so errors can point at the exact
// byte that broke a section.
type Reader struct {
	data []byte
	off  int
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Position is the offset of the next unread byte.
func (r *Reader) Position() int { return r.off }

// Len is the number of bytes left.
func (r *Reader) Len() int { return len(r.data) - r.off }

func (r *Reader) ReadByte() (byte, error) {
	if r.off >= len(r.data) {
		return 0, io.EOF
	}
	b := r.data[r.off]
	r.off++
	return b, nil
}

// ReadBool accepts only the canonical encodings 0 and 1.
func (r *Reader) ReadBool() (bool, error) {
	b, err := r.ReadByte()
	if err != nil {
		return false, err
	}
	if b > 1 {
		return false, r.at(fmt.Errorf("bool byte 0x%02x", b))
	}
	return b == 1, nil
}

// ReadBytes returns a copy of the next n bytes.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	span, err := r.take(n)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), span...), nil
}

// ReadRemaining consumes the rest of the buffer.
func (r *Reader) ReadRemaining() ([]byte, error) {
	return r.ReadBytes(r.Len())
}

func (r *Reader) ReadU32() (uint32, error) {
	v, err := r.uvarint(32)
	return uint32(v), err
}

// ReadCount reads an element count for a list whose elements take at least
// one byte each, so a count larger than the unread input is rejected before
// anything is allocated for it.
func (r *Reader) ReadCount() (int, error) {
	n, err := r.ReadU32()
	if err != nil {
		return 0, err
	}
	if int64(n) > int64(r.Len()) {
		return 0, r.at(fmt.Errorf("count %d exceeds %d remaining bytes: %w", n, r.Len(), io.ErrUnexpectedEOF))
	}
	return int(n), nil
}

func (r *Reader) ReadU64() (uint64, error) {
	return r.uvarint(64)
}

func (r *Reader) ReadS32() (int32, error) {
	v, err := r.varint()
	if err != nil {
		return 0, err
	}
	if v != int64(int32(v)) {
		return 0, r.at(ErrOverflow)
	}
	return int32(v), nil
}

func (r *Reader) ReadS64() (int64, error) {
	return r.varint()
}

func (r *Reader) ReadF32() (float32, error) {
	bits, err := r.ReadU32LE()
	return math.Float32frombits(bits), err
}

func (r *Reader) ReadF64() (float64, error) {
	span, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(span)), nil
}

// ReadU32LE reads a fixed-width little-endian word, used for the magic and
// format version.
func (r *Reader) ReadU32LE() (uint32, error) {
	span, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(span), nil
}

// ReadName reads a varint length followed by that many UTF-8 bytes.
func (r *Reader) ReadName() (string, error) {
	n, err := r.ReadU32()
	if err != nil {
		return "", err
	}
	span, err := r.take(int(n))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(span) {
		return "", r.at(errors.New("name is not valid UTF-8"))
	}
	return string(span), nil
}

// WrapError tags err with the section being decoded and the current offset.
func (r *Reader) WrapError(section string, err error) error {
	return &ParseError{Err: err, Section: section, Position: r.off}
}

func (r *Reader) take(n int) ([]byte, error) {
	if n < 0 || n > r.Len() {
		return nil, r.at(io.ErrUnexpectedEOF)
	}
	span := r.data[r.off : r.off+n]
	r.off += n
	return span, nil
}

// uvarint decodes an unsigned LEB128 value of at most width bits.
func (r *Reader) uvarint(width uint) (uint64, error) {
	var v uint64
	for shift := uint(0); ; shift += 7 {
		if shift >= width+6 {
			return 0, r.at(ErrOverflow)
		}
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		v |= uint64(b&0x7f) << shift
		if b < 0x80 {
			if width < 64 && v>>width != 0 {
				return 0, r.at(ErrOverflow)
			}
			return v, nil
		}
	}
}

// varint decodes a signed LEB128 value into 64 bits.
func (r *Reader) varint() (int64, error) {
	var v int64
	shift := uint(0)
	for {
		if shift >= 70 {
			return 0, r.at(ErrOverflow)
		}
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		v |= int64(b&0x7f) << shift
		shift += 7
		if b < 0x80 {
			if shift < 64 && b&0x40 != 0 {
				v |= -1 << shift
			}
			return v, nil
		}
	}
}

func (r *Reader) at(err error) error {
	return fmt.Errorf("offset %d: %w", r.off, err)
}

// ParseError locates a decode failure inside a module image.
type ParseError struct {
	Err      error
	Section  string
	Position int
}

func (e *ParseError) Error() string {
	where := fmt.Sprintf("offset %d", e.Position)
	if e.Section != "" {
		where = e.Section + " section, " + where
	}
	return "ilm: " + where + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error { return e.Err }
