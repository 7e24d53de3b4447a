// Package convert maps resource trees to and from YAML nodes and plain Go
// values.
//
// YAML input follows these rules: mappings become tables (order and
// duplicate keys are kept), strings become String, integers become Int16 or
// Int32 by range, !!binary becomes Bytes, and sequences of only strings or
// only integers become typed vectors. Local tags override the defaults:
// !int16, !int32, !alias, !strings, !int16s, !int32s and !array.
package convert

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/meigma/sres"
	"github.com/meigma/sres/encode"
)

// Local YAML tags.
const (
	TagInt16     = "!int16"
	TagInt32     = "!int32"
	TagAlias     = "!alias"
	TagAuxiliary = "!aux"
	TagStrings   = "!strings"
	TagInt16s    = "!int16s"
	TagInt32s    = "!int32s"
	TagArray     = "!array"

	tagStr    = "!!str"
	tagInt    = "!!int"
	tagBinary = "!!binary"
	tagNull   = "!!null"
)

// ErrUnsupported is returned for YAML content without a resource equivalent.
var ErrUnsupported = errors.New("convert: unsupported yaml content")

// FromYAML converts a YAML node into a resource tree.
func FromYAML(n *yaml.Node) (sres.Resource, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) != 1 {
			return nil, fmt.Errorf("%w: empty document", ErrUnsupported)
		}
		return FromYAML(n.Content[0])
	case yaml.AliasNode:
		return FromYAML(n.Alias)
	case yaml.MappingNode:
		return tableFromYAML(n)
	case yaml.SequenceNode:
		return sequenceFromYAML(n)
	case yaml.ScalarNode:
		return scalarFromYAML(n)
	default:
		return nil, nodeError(n, "unknown node kind")
	}
}

func tableFromYAML(n *yaml.Node) (*sres.Table, error) {
	entries := make([]sres.Entry, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i]
		if key.Kind != yaml.ScalarNode {
			return nil, nodeError(key, "table keys must be scalars")
		}
		value, err := FromYAML(n.Content[i+1])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key.Value, err)
		}
		entries = append(entries, sres.Entry{Key: key.Value, Value: value})
	}
	return sres.NewTable(entries...), nil
}

func sequenceFromYAML(n *yaml.Node) (sres.Resource, error) {
	switch n.Tag {
	case TagStrings:
		return stringsFromYAML(n)
	case TagInt16s:
		v, err := intsFromYAML(n, 16)
		return sres.Int16Array(v), err
	case TagInt32s:
		v, err := intsFromYAML(n, 32)
		return sres.Int32Array(v), err
	case TagArray:
		return arrayFromYAML(n)
	}

	if len(n.Content) > 0 {
		switch {
		case allScalars(n.Content, tagStr):
			return stringsFromYAML(n)
		case allScalars(n.Content, tagInt):
			v, err := intsFromYAML(n, 32)
			if err != nil {
				return nil, err
			}
			return encode.Ints(v), nil
		}
	}
	return arrayFromYAML(n)
}

func allScalars(nodes []*yaml.Node, tag string) bool {
	for _, c := range nodes {
		if c.Kind != yaml.ScalarNode || c.ShortTag() != tag {
			return false
		}
	}
	return true
}

func stringsFromYAML(n *yaml.Node) (sres.StringArray, error) {
	out := make(sres.StringArray, 0, len(n.Content))
	for _, c := range n.Content {
		if c.Kind != yaml.ScalarNode {
			return nil, nodeError(c, "string vector elements must be scalars")
		}
		out = append(out, c.Value)
	}
	return out, nil
}

func intsFromYAML(n *yaml.Node, bits int) ([]int32, error) {
	out := make([]int32, 0, len(n.Content))
	for _, c := range n.Content {
		v, err := parseInt(c, bits)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func arrayFromYAML(n *yaml.Node) (*sres.Array, error) {
	items := make([]sres.Resource, 0, len(n.Content))
	for i, c := range n.Content {
		item, err := FromYAML(c)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		items = append(items, item)
	}
	return sres.NewArray(items...), nil
}

func scalarFromYAML(n *yaml.Node) (sres.Resource, error) {
	switch n.Tag {
	case TagInt16:
		v, err := parseInt(n, 16)
		return sres.Int16(v), err
	case TagInt32:
		v, err := parseInt(n, 32)
		return sres.Int32(v), err
	case TagAlias:
		return sres.Alias(n.Value), nil
	case TagAuxiliary:
		return nil, nodeError(n, "auxiliary references cannot be built from yaml")
	}

	switch n.ShortTag() {
	case tagInt:
		v, err := parseInt(n, 32)
		if err != nil {
			return nil, err
		}
		return encode.Int(v), nil
	case tagBinary:
		b, err := base64.StdEncoding.DecodeString(n.Value)
		if err != nil {
			return nil, nodeError(n, "invalid base64: "+err.Error())
		}
		return sres.Bytes(b), nil
	case tagNull:
		return nil, nodeError(n, "null has no resource equivalent")
	default:
		// Booleans, floats and timestamps are kept as their literal text.
		return sres.String(n.Value), nil
	}
}

func parseInt(n *yaml.Node, bits int) (int32, error) {
	if n.Kind != yaml.ScalarNode {
		return 0, nodeError(n, "expected an integer")
	}
	v, err := strconv.ParseInt(n.Value, 0, bits)
	if err != nil {
		return 0, nodeError(n, fmt.Sprintf("invalid %d-bit integer %q", bits, n.Value))
	}
	return int32(v), nil //nolint:gosec // ParseInt enforced the bit size
}

func nodeError(n *yaml.Node, msg string) error {
	return fmt.Errorf("%w: line %d: %s", ErrUnsupported, n.Line, msg)
}

// ToYAML converts a resource tree into a YAML node that FromYAML maps back
// to an equal tree. With resolve set, auxiliary handles are replaced by
// their content; otherwise they are written as !aux scalars naming the file.
func ToYAML(r sres.Resource, resolve bool) (*yaml.Node, error) {
	switch v := r.(type) {
	case *sres.Auxiliary:
		if !resolve {
			return scalar(TagAuxiliary, v.Name()), nil
		}
		res, err := v.Resolve()
		if err != nil {
			return nil, err
		}
		return ToYAML(res, resolve)
	case *sres.Table:
		n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for key, value := range v.All() {
			child, err := ToYAML(value, resolve)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			n.Content = append(n.Content, scalar(tagStr, key), child)
		}
		return n, nil
	case *sres.Array:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for i, item := range v.All() {
			child, err := ToYAML(item, resolve)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			n.Content = append(n.Content, child)
		}
		if len(n.Content) > 0 && (allScalars(n.Content, tagStr) || allScalars(n.Content, tagInt)) {
			n.Tag = TagArray
		}
		return n, nil
	case sres.String:
		return scalar(tagStr, string(v)), nil
	case sres.Int16:
		return scalar(tagInt, strconv.Itoa(int(v))), nil
	case sres.Int32:
		tag := tagInt
		if _, small := encode.Int(int32(v)).(sres.Int16); small {
			tag = TagInt32
		}
		return scalar(tag, strconv.Itoa(int(v))), nil
	case sres.Bytes:
		return scalar(tagBinary, base64.StdEncoding.EncodeToString(v)), nil
	case sres.Alias:
		return scalar(TagAlias, string(v)), nil
	case sres.StringArray:
		n := sequence("!!seq", len(v))
		for _, s := range v {
			n.Content = append(n.Content, scalar(tagStr, s))
		}
		if len(v) == 0 {
			n.Tag = TagStrings
		}
		return n, nil
	case sres.Int16Array:
		n := intSequence(v)
		if len(v) == 0 {
			n.Tag = TagInt16s
		}
		return n, nil
	case sres.Int32Array:
		n := intSequence(v)
		if _, wide := encode.Ints(v).(sres.Int32Array); !wide || len(v) == 0 {
			n.Tag = TagInt32s
		}
		return n, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupported, r)
	}
}

func scalar(tag, value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value}
}

func sequence(tag string, n int) *yaml.Node {
	return &yaml.Node{Kind: yaml.SequenceNode, Tag: tag, Content: make([]*yaml.Node, 0, n), Style: yaml.FlowStyle}
}

func intSequence(v []int32) *yaml.Node {
	n := sequence("!!seq", len(v))
	for _, x := range v {
		n.Content = append(n.Content, scalar(tagInt, strconv.Itoa(int(x))))
	}
	return n
}
