package wire

import (
	"bytes"
	"math"
	"testing"
	"testing/iotest"
	"unicode/utf16"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVaruintRoundTrip(t *testing.T) {
	t.Parallel()

	values := []uint32{0, 1, 0x7f, 0x80, 0x81, 0x3fff, 0x4000, 0x1fffff, 0x200000,
		0xfffffff, 0x10000000, math.MaxInt32 - 1, math.MaxInt32, math.MaxUint32}
	for v := uint32(1); v < math.MaxInt32/3; v = v*3 + 1 {
		values = append(values, v)
	}

	for _, v := range values {
		w := NewWriter()
		w.WriteVaruint(v)
		require.LessOrEqual(t, w.Len(), MaxVaruintLen)

		got, err := NewReader(bytes.NewReader(w.Bytes())).ReadVaruint()
		require.NoError(t, err, "value %d", v)
		assert.Equal(t, v, got)
	}
}

func TestVaruintEncoding(t *testing.T) {
	t.Parallel()

	tests := []struct {
		v    uint32
		want []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{127, []byte{0x7f}},
		{128, []byte{0x81, 0x00}},
		{129, []byte{0x81, 0x01}},
		{math.MaxUint32, []byte{0x8f, 0xff, 0xff, 0xff, 0x7f}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, AppendVaruint(nil, tt.v), "value %d", tt.v)
	}
}

func TestVaruintRejectsSixthByte(t *testing.T) {
	t.Parallel()

	data := []byte{0x81, 0x80, 0x80, 0x80, 0x80, 0x00}
	_, err := NewReader(bytes.NewReader(data)).ReadVaruint()
	require.ErrorIs(t, err, ErrVaruintOverflow)
	require.ErrorIs(t, err, ErrTruncated)
}

func TestVaruintRejectsWideValue(t *testing.T) {
	t.Parallel()

	// 0x1f in the leading group needs 33 bits.
	data := []byte{0x9f, 0xff, 0xff, 0xff, 0x7f}
	_, err := NewReader(bytes.NewReader(data)).ReadVaruint()
	require.ErrorIs(t, err, ErrVaruintOverflow)
}

func TestVaruintTruncated(t *testing.T) {
	t.Parallel()

	_, err := NewReader(bytes.NewReader([]byte{0x81, 0x80})).ReadVaruint()
	require.ErrorIs(t, err, ErrTruncated)
}

func TestReadInt16SignExtends(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   []byte
		want int32
	}{
		{[]byte{0xff, 0xff}, -1},
		{[]byte{0x7f, 0xff}, 32767},
		{[]byte{0x80, 0x00}, -32768},
		{[]byte{0x00, 0x2a}, 42},
	}
	for _, tt := range tests {
		got, err := NewReader(bytes.NewReader(tt.in)).ReadInt16()
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestReadInt32(t *testing.T) {
	t.Parallel()

	r := NewReader(bytes.NewReader([]byte{0xff, 0xff, 0xff, 0xfe, 0x00, 0x00, 0x01}))
	got, err := r.ReadInt32()
	require.NoError(t, err)
	assert.Equal(t, int32(-2), got)
	assert.Equal(t, int64(4), r.Position())

	_, err = r.ReadInt32()
	require.ErrorIs(t, err, ErrTruncated)
}

func TestReadBytesRetriesShortReads(t *testing.T) {
	t.Parallel()

	payload := bytes.Repeat([]byte("abcdefgh"), 1024)
	w := NewWriter()
	w.WriteRun(payload)

	r := NewReader(iotest.OneByteReader(bytes.NewReader(w.Bytes())))
	n, err := r.ReadVaruint()
	require.NoError(t, err)
	got, err := r.ReadBytes(n)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestReadBytesLargeRun(t *testing.T) {
	t.Parallel()

	payload := bytes.Repeat([]byte{0xab}, smallRun*2+3)
	r := NewReader(iotest.HalfReader(bytes.NewReader(payload)))
	got, err := r.ReadBytes(uint32(len(payload)))
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestReadBytesTruncated(t *testing.T) {
	t.Parallel()

	_, err := NewReader(bytes.NewReader([]byte{1, 2, 3})).ReadBytes(4)
	require.ErrorIs(t, err, ErrTruncated)

	// A corrupt length larger than the input fails without allocating it.
	_, err = NewReader(bytes.NewReader([]byte{1, 2, 3})).ReadBytes(1 << 30)
	require.ErrorIs(t, err, ErrTruncated)
}

func TestNextTag(t *testing.T) {
	t.Parallel()

	r := NewReader(bytes.NewReader([]byte{SectionKeyPool}))
	tag, ok, err := r.NextTag()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, SectionKeyPool, tag)

	_, ok, err = r.NextTag()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStringPools(t *testing.T) {
	t.Parallel()

	utf8Pool := []string{"", "one", "größe", "日本語"}
	utf16Pool := []string{"𝄞 clef", "αβγ"}

	w := NewWriter()
	w.WriteStringsUTF8(utf8Pool)
	w.WriteStringsUTF16(utf16Pool)

	r := NewReader(iotest.OneByteReader(bytes.NewReader(w.Bytes())))
	got8, err := r.ReadStringsUTF8()
	require.NoError(t, err)
	assert.Equal(t, utf8Pool, got8)

	got16, err := r.ReadStringsUTF16()
	require.NoError(t, err)
	assert.Equal(t, utf16Pool, got16)
}

func TestDecodeUTF8(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      []byte
		want    string
		wantErr bool
	}{
		{name: "ascii", in: []byte("plain"), want: "plain"},
		{name: "empty", in: []byte{}, want: ""},
		{name: "two byte", in: []byte("é"), want: "é"},
		{name: "three byte", in: []byte("€"), want: "€"},
		{name: "four byte", in: []byte("😀"), want: "😀"},
		{name: "mixed", in: []byte("a€b😀c"), want: "a€b😀c"},
		{name: "bad continuation", in: []byte{0xC3, 0x28}, wantErr: true},
		{name: "stray continuation", in: []byte{'a', 0x80}, wantErr: true},
		{name: "short sequence", in: []byte{0xE2, 0x82}, wantErr: true},
		{name: "invalid lead", in: []byte{0xFF}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := DecodeUTF8(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidUTF8)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeUTF8ToUTF16SurrogatePair(t *testing.T) {
	t.Parallel()

	in := []byte("x\U0001F600")
	units, err := DecodeUTF8ToUTF16(in)
	require.NoError(t, err)
	assert.Equal(t, []uint16{'x', 0xD83D, 0xDE00}, units)
	assert.Equal(t, utf16.Encode([]rune("x\U0001F600")), units)
	assert.Equal(t, "x\U0001F600", string(utf16.Decode(units)))
}

func TestDecodeUTF16BE(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "A😀", DecodeUTF16BE([]byte{0x00, 0x41, 0xD8, 0x3D, 0xDE, 0x00}))
	assert.Equal(t, "A", DecodeUTF16BE([]byte{0x00, 0x41, 0x42}))
	assert.Equal(t, []byte{0x00, 0x41, 0xD8, 0x3D, 0xDE, 0x00}, EncodeUTF16BE("A😀"))
}
