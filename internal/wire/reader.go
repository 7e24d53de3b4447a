package wire

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

var (
	// ErrTruncated is returned when the input ends in the middle of a primitive.
	ErrTruncated = errors.New("sres: truncated input")

	// ErrVaruintOverflow is returned when a varuint does not terminate within
	// MaxVaruintLen bytes or does not fit in 32 bits.
	ErrVaruintOverflow = fmt.Errorf("%w: varuint overflow", ErrTruncated)

	// ErrInvalidUTF8 is returned for a malformed UTF-8 sequence in a pool string.
	ErrInvalidUTF8 = errors.New("sres: malformed utf-8")
)

// smallRun is the largest byte run allocated up front. Longer runs grow with the
// data actually read so a corrupt length cannot force a huge allocation.
const smallRun = 64 << 10

// Reader reads sres primitives from a stream and tracks the byte offset.
type Reader struct {
	r   io.Reader
	br  io.ByteReader
	pos int64
}

// NewReader returns a Reader over r. Streams that do not implement
// io.ByteReader are buffered.
func NewReader(r io.Reader) *Reader {
	br, ok := r.(io.ByteReader)
	if !ok {
		b := bufio.NewReader(r)
		r, br = b, b
	}
	return &Reader{r: r, br: br}
}

// Position returns the number of bytes consumed so far.
func (r *Reader) Position() int64 {
	return r.pos
}

// Read implements io.Reader.
func (r *Reader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	r.pos += int64(n)
	return n, err
}

// ReadByte reads a single byte. End of input is reported as ErrTruncated.
func (r *Reader) ReadByte() (byte, error) {
	b, err := r.br.ReadByte()
	if err != nil {
		return 0, truncated(err)
	}
	r.pos++
	return b, nil
}

// NextTag reads a section tag. ok is false when the input ended cleanly
// before the tag.
func (r *Reader) NextTag() (tag byte, ok bool, err error) {
	b, err := r.br.ReadByte()
	if errors.Is(err, io.EOF) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	r.pos++
	return b, true, nil
}

// ReadVaruint reads a variable-width unsigned integer. Groups of seven bits are
// stored most significant first; a byte with the high bit clear ends the value.
func (r *Reader) ReadVaruint() (uint32, error) {
	var v uint32
	for range MaxVaruintLen {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		if v > math.MaxUint32>>7 {
			return 0, ErrVaruintOverflow
		}
		v = v<<7 | uint32(b&0x7f)
		if b&0x80 == 0 {
			return v, nil
		}
	}
	return 0, ErrVaruintOverflow
}

// ReadInt16 reads a big-endian 16-bit integer and sign-extends it.
func (r *Reader) ReadInt16() (int32, error) {
	var buf [2]byte
	if err := r.readFull(buf[:]); err != nil {
		return 0, err
	}
	return int32(int16(binary.BigEndian.Uint16(buf[:]))), nil
}

// ReadInt32 reads a big-endian 32-bit integer.
func (r *Reader) ReadInt32() (int32, error) {
	var buf [4]byte
	if err := r.readFull(buf[:]); err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(buf[:])), nil //nolint:gosec // two's complement reinterpretation
}

// ReadUint32 reads a big-endian 32-bit word.
func (r *Reader) ReadUint32() (uint32, error) {
	var buf [4]byte
	if err := r.readFull(buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

// ReadBytes reads exactly n bytes, retrying short reads until the run is
// complete or the input ends.
func (r *Reader) ReadBytes(n uint32) ([]byte, error) {
	if n <= smallRun {
		buf := make([]byte, n)
		if err := r.readFull(buf); err != nil {
			return nil, err
		}
		return buf, nil
	}
	var buf bytes.Buffer
	buf.Grow(smallRun)
	if _, err := io.CopyN(&buf, r, int64(n)); err != nil {
		return nil, truncated(err)
	}
	return buf.Bytes(), nil
}

// ReadStringsUTF8 reads a pool body of UTF-8 strings: a varuint count followed
// by that many length-prefixed runs.
func (r *Reader) ReadStringsUTF8() ([]string, error) {
	return r.readPool(DecodeUTF8)
}

// ReadStringsUTF16 reads a pool body of UTF-16BE strings.
func (r *Reader) ReadStringsUTF16() ([]string, error) {
	return r.readPool(func(b []byte) (string, error) {
		return DecodeUTF16BE(b), nil
	})
}

func (r *Reader) readPool(decode func([]byte) (string, error)) ([]string, error) {
	n, err := r.ReadVaruint()
	if err != nil {
		return nil, err
	}
	strs := make([]string, 0, min(n, 1024))
	for range n {
		size, err := r.ReadVaruint()
		if err != nil {
			return nil, err
		}
		raw, err := r.ReadBytes(size)
		if err != nil {
			return nil, err
		}
		s, err := decode(raw)
		if err != nil {
			return nil, err
		}
		strs = append(strs, s)
	}
	return strs, nil
}

func (r *Reader) readFull(buf []byte) error {
	if _, err := io.ReadFull(r, buf); err != nil {
		return truncated(err)
	}
	return nil
}

func truncated(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrTruncated
	}
	return err
}
