package wire

import (
	"bytes"
	"encoding/binary"
	"unicode/utf16"
)

// Writer provides buffered encoding of sres primitives.
type Writer struct {
	buf *bytes.Buffer
}

// NewWriter creates a new Writer.
func NewWriter() *Writer {
	return &Writer{buf: &bytes.Buffer{}}
}

// Bytes returns the written bytes.
func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}

// Len returns the number of bytes written.
func (w *Writer) Len() int {
	return w.buf.Len()
}

// Byte writes a single byte.
func (w *Writer) Byte(b byte) {
	w.buf.WriteByte(b)
}

// WriteBytes writes a raw byte slice.
func (w *Writer) WriteBytes(data []byte) {
	w.buf.Write(data)
}

// WriteVaruint writes v as a varuint.
func (w *Writer) WriteVaruint(v uint32) {
	var scratch [MaxVaruintLen]byte
	w.buf.Write(AppendVaruint(scratch[:0], v))
}

// WriteInt16 writes the low 16 bits of v big-endian.
func (w *Writer) WriteInt16(v int32) {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], uint16(v)) //nolint:gosec // truncation to the wire width
	w.buf.Write(buf[:])
}

// WriteInt32 writes v big-endian.
func (w *Writer) WriteInt32(v int32) {
	w.WriteUint32(uint32(v)) //nolint:gosec // two's complement reinterpretation
}

// WriteUint32 writes v big-endian.
func (w *Writer) WriteUint32(v uint32) {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	w.buf.Write(buf[:])
}

// WriteRun writes a varuint length followed by data.
func (w *Writer) WriteRun(data []byte) {
	w.WriteVaruint(uint32(len(data))) //nolint:gosec // runs are bounded by the 32-bit length field
	w.buf.Write(data)
}

// WriteStringsUTF8 writes a pool body of UTF-8 strings.
func (w *Writer) WriteStringsUTF8(strs []string) {
	w.WriteVaruint(uint32(len(strs))) //nolint:gosec // pool sizes are bounded by the 32-bit count field
	for _, s := range strs {
		w.WriteVaruint(uint32(len(s))) //nolint:gosec // see above
		w.buf.WriteString(s)
	}
}

// WriteStringsUTF16 writes a pool body of UTF-16BE strings.
func (w *Writer) WriteStringsUTF16(strs []string) {
	w.WriteVaruint(uint32(len(strs))) //nolint:gosec // pool sizes are bounded by the 32-bit count field
	for _, s := range strs {
		w.WriteRun(EncodeUTF16BE(s))
	}
}

// AppendVaruint appends the varuint encoding of v to dst.
func AppendVaruint(dst []byte, v uint32) []byte {
	var units [MaxVaruintLen]byte
	n := 0
	for {
		units[n] = byte(v & 0x7f)
		n++
		v >>= 7
		if v == 0 {
			break
		}
	}
	for i := n - 1; i > 0; i-- {
		dst = append(dst, units[i]|0x80)
	}
	return append(dst, units[0])
}

// EncodeUTF16BE returns the UTF-16BE bytes of s without a byte order mark.
func EncodeUTF16BE(s string) []byte {
	units := utf16.Encode([]rune(s))
	out := make([]byte, 2*len(units))
	for i, u := range units {
		binary.BigEndian.PutUint16(out[2*i:], u)
	}
	return out
}
