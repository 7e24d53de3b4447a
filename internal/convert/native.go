package convert

import (
	"fmt"

	"github.com/meigma/sres"
)

// ToNative converts a resource tree into maps, slices and scalars suitable
// for JSON or CBOR encoding. Tables become maps, so shadowed duplicate keys
// are dropped. Aliases become {"alias": path}; unresolved auxiliary handles
// become {"auxiliary": file name}.
func ToNative(r sres.Resource, resolve bool) (any, error) {
	switch v := r.(type) {
	case *sres.Auxiliary:
		if !resolve {
			return map[string]any{"auxiliary": v.Name()}, nil
		}
		res, err := v.Resolve()
		if err != nil {
			return nil, err
		}
		return ToNative(res, resolve)
	case *sres.Table:
		m := make(map[string]any, v.Len())
		for key, value := range v.All() {
			nv, err := ToNative(value, resolve)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			m[key] = nv
		}
		return m, nil
	case *sres.Array:
		out := make([]any, 0, v.Len())
		for i, item := range v.All() {
			nv, err := ToNative(item, resolve)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out = append(out, nv)
		}
		return out, nil
	case sres.String:
		return string(v), nil
	case sres.Int16:
		return int32(v), nil
	case sres.Int32:
		return int32(v), nil
	case sres.Bytes:
		return []byte(v), nil
	case sres.Int16Array:
		return []int32(v), nil
	case sres.Int32Array:
		return []int32(v), nil
	case sres.StringArray:
		return []string(v), nil
	case sres.Alias:
		return map[string]any{"alias": string(v)}, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupported, r)
	}
}
