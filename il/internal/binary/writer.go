package binary

import (
	"encoding/binary"
	"math"
)

// Writer appends .ilm primitives to a growing buffer. Sections are built
// in their own Writer and copied into the module with a length prefix.
type Writer struct {
	out []byte
}

func NewWriter() *Writer {
	return &Writer{out: make([]byte, 0, 64)}
}

// Bytes returns the buffer without copying it.
func (w *Writer) Bytes() []byte { return w.out }

func (w *Writer) Len() int { return len(w.out) }

func (w *Writer) Byte(b byte) {
	w.out = append(w.out, b)
}

func (w *Writer) Bool(v bool) {
	var b byte
	if v {
		b = 1
	}
	w.out = append(w.out, b)
}

func (w *Writer) WriteBytes(data []byte) {
	w.out = append(w.out, data...)
}

func (w *Writer) WriteU32(v uint32) {
	w.out = binary.AppendUvarint(w.out, uint64(v))
}

func (w *Writer) WriteU64(v uint64) {
	w.out = binary.AppendUvarint(w.out, v)
}

func (w *Writer) WriteS32(v int32) {
	w.WriteS64(int64(v))
}

// WriteS64 emits signed LEB128, not the zig-zag form of encoding/binary.
func (w *Writer) WriteS64(v int64) {
	for {
		b := byte(v) & 0x7f
		v >>= 7
		done := v == 0 && b&0x40 == 0 || v == -1 && b&0x40 != 0
		if done {
			w.out = append(w.out, b)
			return
		}
		w.out = append(w.out, b|0x80)
	}
}

func (w *Writer) WriteF32(v float32) {
	w.WriteU32LE(math.Float32bits(v))
}

func (w *Writer) WriteF64(v float64) {
	w.out = binary.LittleEndian.AppendUint64(w.out, math.Float64bits(v))
}

// WriteName writes the byte length then the raw UTF-8 bytes.
func (w *Writer) WriteName(s string) {
	w.WriteU32(uint32(len(s)))
	w.out = append(w.out, s...)
}

func (w *Writer) WriteU32LE(v uint32) {
	w.out = binary.LittleEndian.AppendUint32(w.out, v)
}
