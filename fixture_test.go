package sres

import (
	"github.com/meigma/sres/internal/wire"
)

// fixture builds a bundle file by hand.
type fixture struct {
	flags uint32
	keys  []string
	utf8  []string
	utf16 []string
	body  func(w *wire.Writer)
}

func (f fixture) bytes() []byte {
	w := wire.NewWriter()
	w.WriteUint32(f.flags)
	if f.keys != nil {
		w.Byte(wire.SectionKeyPool)
		w.WriteStringsUTF8(f.keys)
	}
	if f.utf8 != nil {
		w.Byte(wire.SectionStringsUTF8)
		w.WriteStringsUTF8(f.utf8)
	}
	if f.utf16 != nil {
		w.Byte(wire.SectionStringsUTF16)
		w.WriteStringsUTF16(f.utf16)
	}
	w.Byte(wire.SectionResourceData)
	if f.body != nil {
		f.body(w)
	}
	return w.Bytes()
}

func sharedPoolFile(keys ...string) []byte {
	w := wire.NewWriter()
	w.Byte(wire.SectionKeyPool)
	w.WriteStringsUTF8(keys)
	return w.Bytes()
}

// tableHeader writes a table tag and entry count.
func tableHeader(w *wire.Writer, n uint32) {
	w.Byte(wire.TagTable)
	w.WriteVaruint(n)
}

func stringValue(w *wire.Writer, index uint32) {
	w.Byte(wire.TagString)
	w.WriteVaruint(index)
}

func int32Value(w *wire.Writer, v int32) {
	w.Byte(wire.TagInt32)
	w.WriteInt32(v)
}
