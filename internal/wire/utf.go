package wire

import (
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// DecodeUTF8 decodes a pool string. Runs that are pure ASCII are converted
// without inspecting individual sequences.
func DecodeUTF8(b []byte) (string, error) {
	i := 0
	for i < len(b) && b[i] < utf8.RuneSelf {
		i++
	}
	if i == len(b) {
		return string(b), nil
	}

	var sb strings.Builder
	sb.Grow(len(b))
	sb.Write(b[:i])
	for i < len(b) {
		r, n, err := decodeSequence(b[i:])
		if err != nil {
			return "", err
		}
		sb.WriteRune(r)
		i += n
	}
	return sb.String(), nil
}

// DecodeUTF8ToUTF16 is the UTF-16 target form of DecodeUTF8: it decodes b
// into code units, writing scalars at or above U+10000 as a surrogate pair.
// It backs sres.String.UTF16.
func DecodeUTF8ToUTF16(b []byte) ([]uint16, error) {
	out := make([]uint16, 0, len(b))
	for i := 0; i < len(b); {
		r, n, err := decodeSequence(b[i:])
		if err != nil {
			return nil, err
		}
		i += n
		if r < 0x10000 {
			out = append(out, uint16(r)) //nolint:gosec // r < 0x10000
			continue
		}
		s := uint32(r) //nolint:gosec // r is a non-negative scalar
		high := ((s>>16)-1)<<6 | (s>>10)&0x3f | 0xD800
		low := s&0x3FF | 0xDC00
		out = append(out, uint16(high), uint16(low)) //nolint:gosec // both fit in 16 bits
	}
	return out, nil
}

// decodeSequence classifies the lead byte of b and decodes one 1 to 4 byte
// sequence.
func decodeSequence(b []byte) (rune, int, error) {
	c := b[0]
	var n int
	var r rune
	switch {
	case c < 0x80:
		return rune(c), 1, nil
	case c&0xE0 == 0xC0:
		n, r = 2, rune(c&0x1F)
	case c&0xF0 == 0xE0:
		n, r = 3, rune(c&0x0F)
	case c&0xF8 == 0xF0:
		n, r = 4, rune(c&0x07)
	default:
		return 0, 0, ErrInvalidUTF8
	}
	if len(b) < n {
		return 0, 0, ErrInvalidUTF8
	}
	for _, cont := range b[1:n] {
		if cont&0xC0 != 0x80 {
			return 0, 0, ErrInvalidUTF8
		}
		r = r<<6 | rune(cont&0x3F)
	}
	return r, n, nil
}

// DecodeUTF16BE decodes big-endian code unit pairs. Surrogates are not
// validated; an odd trailing byte is ignored.
func DecodeUTF16BE(b []byte) string {
	units := make([]uint16, len(b)/2)
	for i := range units {
		units[i] = uint16(b[2*i])<<8 | uint16(b[2*i+1])
	}
	return string(utf16.Decode(units))
}
