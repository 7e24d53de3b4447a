package sres

import (
	"fmt"

	"github.com/meigma/sres/internal/wire"
)

// prealloc caps capacity reserved from an untrusted count.
const prealloc = 1024

// pool is the logical concatenation of two string lists. Indices below
// len(first) address first; the rest address second.
type pool struct {
	first  []string
	second []string
}

func (p pool) len() int {
	return len(p.first) + len(p.second)
}

func (p pool) at(i uint32) (string, error) {
	n := uint64(len(p.first))
	if uint64(i) < n {
		return p.first[i], nil
	}
	if j := uint64(i) - n; j < uint64(len(p.second)) {
		return p.second[j], nil
	}
	return "", fmt.Errorf("%w: pool index %d, size %d", ErrIndexOutOfRange, i, p.len())
}

// decoder holds the state of one resource data section.
type decoder struct {
	r        *wire.Reader
	keys     pool // local keys, then shared keys
	strs     pool // UTF-8 strings, then UTF-16BE strings
	origin   Origin
	reader   *Reader
	maxDepth int
}

func (d *decoder) decode(depth int) (Resource, error) {
	tag, err := d.r.ReadByte()
	if err != nil {
		return nil, err
	}
	switch tag {
	case wire.TagString:
		s, err := d.string()
		return String(s), err
	case wire.TagInt16:
		v, err := d.r.ReadInt16()
		return Int16(v), err
	case wire.TagInt32:
		v, err := d.r.ReadInt32()
		return Int32(v), err
	case wire.TagByteArray:
		n, err := d.r.ReadVaruint()
		if err != nil {
			return nil, err
		}
		b, err := d.r.ReadBytes(n)
		return Bytes(b), err
	case wire.TagInt16Array:
		v, err := d.ints(d.r.ReadInt16)
		return Int16Array(v), err
	case wire.TagInt32Array:
		v, err := d.ints(d.r.ReadInt32)
		return Int32Array(v), err
	case wire.TagStringArray:
		return d.stringArray()
	case wire.TagObjectArray:
		if depth >= d.maxDepth {
			return nil, ErrMaxDepth
		}
		return d.array(depth + 1)
	case wire.TagTable:
		if depth >= d.maxDepth {
			return nil, ErrMaxDepth
		}
		return d.table(depth + 1)
	case wire.TagAlias:
		s, err := d.string()
		return Alias(s), err
	case wire.TagAuxiliary:
		serial, err := d.r.ReadVaruint()
		if err != nil {
			return nil, err
		}
		return newAuxiliary(d.reader, d.origin, serial), nil
	default:
		return nil, fmt.Errorf("%w: 0x%02x", ErrUnknownResourceTag, tag)
	}
}

func (d *decoder) string() (string, error) {
	i, err := d.r.ReadVaruint()
	if err != nil {
		return "", err
	}
	return d.strs.at(i)
}

func (d *decoder) ints(read func() (int32, error)) ([]int32, error) {
	n, err := d.r.ReadVaruint()
	if err != nil {
		return nil, err
	}
	out := make([]int32, 0, min(n, prealloc))
	for range n {
		v, err := read()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (d *decoder) stringArray() (StringArray, error) {
	n, err := d.r.ReadVaruint()
	if err != nil {
		return nil, err
	}
	out := make(StringArray, 0, min(n, prealloc))
	for range n {
		s, err := d.string()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (d *decoder) array(depth int) (*Array, error) {
	n, err := d.r.ReadVaruint()
	if err != nil {
		return nil, err
	}
	items := make([]Resource, 0, min(n, prealloc))
	for range n {
		item, err := d.decode(depth)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return NewArray(items...), nil
}

func (d *decoder) table(depth int) (*Table, error) {
	n, err := d.r.ReadVaruint()
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, min(n, prealloc))
	for range n {
		i, err := d.r.ReadVaruint()
		if err != nil {
			return nil, err
		}
		key, err := d.keys.at(i)
		if err != nil {
			return nil, err
		}
		value, err := d.decode(depth)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Key: key, Value: value})
	}
	return NewTable(entries...), nil
}
