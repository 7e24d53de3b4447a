package encode

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/meigma/sres"
	"github.com/meigma/sres/internal/wire"
)

// node is a resolved resource prepared for writing.
type node struct {
	value    sres.Resource // scalar or typed vector; nil for containers
	kind     sres.Kind
	keys     []string // table keys, parallel to kids
	kids     []*node
	external bool
	serial   uint32
}

// planner resolves a tree and assigns auxiliary serials depth first.
type planner struct {
	filter   Filter
	next     uint32
	external []*node
}

func (p *planner) build(path string, r sres.Resource, root bool) (*node, error) {
	r, err := sres.Resolve(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", displayPath(path), err)
	}
	if r == nil {
		return nil, fmt.Errorf("%s: nil resource", displayPath(path))
	}

	n := &node{kind: r.Kind()}
	// The serial is taken before the children are visited.
	if !root && p.filter != nil && p.filter(path, r) {
		n.external = true
		n.serial = p.next
		p.next++
		p.external = append(p.external, n)
	}

	switch v := r.(type) {
	case *sres.Table:
		for key, value := range v.All() {
			if !utf8.ValidString(key) {
				return nil, fmt.Errorf("%s: key %q: %w", displayPath(path), key, sres.ErrInvalidUTF8)
			}
			kid, err := p.build(path+"/"+key, value, false)
			if err != nil {
				return nil, err
			}
			n.keys = append(n.keys, key)
			n.kids = append(n.kids, kid)
		}
	case *sres.Array:
		for i, item := range v.All() {
			kid, err := p.build(path+"/"+strconv.Itoa(i), item, false)
			if err != nil {
				return nil, err
			}
			n.kids = append(n.kids, kid)
		}
	default:
		if err := checkText(r); err != nil {
			return nil, fmt.Errorf("%s: %w", displayPath(path), err)
		}
		n.value = r
	}
	return n, nil
}

// checkText rejects string values the decoder could not read back.
func checkText(r sres.Resource) error {
	switch v := r.(type) {
	case sres.String:
		if !utf8.ValidString(string(v)) {
			return fmt.Errorf("string %q: %w", string(v), sres.ErrInvalidUTF8)
		}
	case sres.Alias:
		if !utf8.ValidString(string(v)) {
			return fmt.Errorf("alias %q: %w", string(v), sres.ErrInvalidUTF8)
		}
	case sres.StringArray:
		for i, s := range v {
			if !utf8.ValidString(s) {
				return fmt.Errorf("string %d %q: %w", i, s, sres.ErrInvalidUTF8)
			}
		}
	}
	return nil
}

func displayPath(path string) string {
	if path == "" {
		return "/"
	}
	return path
}

// filePools holds the key and string pools of one file.
type filePools struct {
	localKeys []string
	keyIndex  map[string]uint32
	utf8      []string
	utf16     []string
	strIndex  map[string]uint32
}

// newFilePools collects the keys and strings reachable from top without
// crossing into other auxiliary files.
func newFilePools(top *node, shared map[string]uint32) *filePools {
	keys := make(map[string]struct{})
	strs := make(map[string]struct{})
	var walk func(n *node, isTop bool)
	walk = func(n *node, isTop bool) {
		if n.external && !isTop {
			return
		}
		for _, k := range n.keys {
			if _, ok := shared[k]; !ok {
				keys[k] = struct{}{}
			}
		}
		switch v := n.value.(type) {
		case sres.String:
			strs[string(v)] = struct{}{}
		case sres.Alias:
			strs[string(v)] = struct{}{}
		case sres.StringArray:
			for _, s := range v {
				strs[s] = struct{}{}
			}
		}
		for _, kid := range n.kids {
			walk(kid, false)
		}
	}
	walk(top, true)

	fp := &filePools{
		keyIndex: make(map[string]uint32, len(keys)+len(shared)),
		strIndex: make(map[string]uint32, len(strs)),
	}
	for k := range keys {
		fp.localKeys = append(fp.localKeys, k)
	}
	slices.Sort(fp.localKeys)
	for i, k := range fp.localKeys {
		fp.keyIndex[k] = uint32(i) //nolint:gosec // bounded by the 32-bit count field
	}
	local := uint32(len(fp.localKeys)) //nolint:gosec // see above
	for k, i := range shared {
		fp.keyIndex[k] = local + i
	}

	for s := range strs {
		if preferUTF8(s) {
			fp.utf8 = append(fp.utf8, s)
		} else {
			fp.utf16 = append(fp.utf16, s)
		}
	}
	slices.Sort(fp.utf8)
	slices.Sort(fp.utf16)
	for i, s := range fp.utf8 {
		fp.strIndex[s] = uint32(i) //nolint:gosec // bounded by the 32-bit count field
	}
	first := uint32(len(fp.utf8)) //nolint:gosec // see above
	for i, s := range fp.utf16 {
		fp.strIndex[s] = first + uint32(i) //nolint:gosec // see above
	}
	return fp
}

// preferUTF8 reports whether s is shorter in UTF-8 than in UTF-16.
func preferUTF8(s string) bool {
	var units int
	for _, r := range s {
		units += utf16.RuneLen(r)
	}
	return len(s) < 2*units || s == ""
}

func (fp *filePools) encode(w *wire.Writer, n *node, isTop bool) error {
	if n.external && !isTop {
		w.Byte(wire.TagAuxiliary)
		w.WriteVaruint(n.serial)
		return nil
	}

	switch n.kind {
	case sres.KindTable:
		w.Byte(wire.TagTable)
		w.WriteVaruint(uint32(len(n.kids))) //nolint:gosec // bounded by the 32-bit count field
		for i, kid := range n.kids {
			w.WriteVaruint(fp.keyIndex[n.keys[i]])
			if err := fp.encode(w, kid, false); err != nil {
				return err
			}
		}
		return nil
	case sres.KindArray:
		w.Byte(wire.TagObjectArray)
		w.WriteVaruint(uint32(len(n.kids))) //nolint:gosec // bounded by the 32-bit count field
		for _, kid := range n.kids {
			if err := fp.encode(w, kid, false); err != nil {
				return err
			}
		}
		return nil
	}

	switch v := n.value.(type) {
	case sres.String:
		w.Byte(wire.TagString)
		w.WriteVaruint(fp.strIndex[string(v)])
	case sres.Alias:
		w.Byte(wire.TagAlias)
		w.WriteVaruint(fp.strIndex[string(v)])
	case sres.Int16:
		if !fitsInt16(int32(v)) {
			return fmt.Errorf("%w: %d", ErrValueRange, v)
		}
		w.Byte(wire.TagInt16)
		w.WriteInt16(int32(v))
	case sres.Int32:
		w.Byte(wire.TagInt32)
		w.WriteInt32(int32(v))
	case sres.Bytes:
		w.Byte(wire.TagByteArray)
		w.WriteRun(v)
	case sres.Int16Array:
		w.Byte(wire.TagInt16Array)
		w.WriteVaruint(uint32(len(v))) //nolint:gosec // bounded by the 32-bit count field
		for _, x := range v {
			if !fitsInt16(x) {
				return fmt.Errorf("%w: %d", ErrValueRange, x)
			}
			w.WriteInt16(x)
		}
	case sres.Int32Array:
		w.Byte(wire.TagInt32Array)
		w.WriteVaruint(uint32(len(v))) //nolint:gosec // bounded by the 32-bit count field
		for _, x := range v {
			w.WriteInt32(x)
		}
	case sres.StringArray:
		w.Byte(wire.TagStringArray)
		w.WriteVaruint(uint32(len(v))) //nolint:gosec // bounded by the 32-bit count field
		for _, s := range v {
			w.WriteVaruint(fp.strIndex[s])
		}
	default:
		return fmt.Errorf("unsupported resource %T", n.value)
	}
	return nil
}

func fitsInt16(v int32) bool {
	return v >= math.MinInt16 && v <= math.MaxInt16
}
