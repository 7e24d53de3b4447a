package encode

import (
	"slices"

	"github.com/meigma/sres"
)

// Int returns v as Int16 when it fits in 16 bits and as Int32 otherwise.
func Int(v int32) sres.Resource {
	if fitsInt16(v) {
		return sres.Int16(v)
	}
	return sres.Int32(v)
}

// Ints returns vs as Int16Array when every element fits in 16 bits and as
// Int32Array otherwise.
func Ints(vs []int32) sres.Resource {
	for _, v := range vs {
		if !fitsInt16(v) {
			return sres.Int32Array(vs)
		}
	}
	return sres.Int16Array(vs)
}

// ExternalizeTopLevel is a Filter that stores every table and array directly
// under the root in its own auxiliary file.
func ExternalizeTopLevel(path string, r sres.Resource) bool {
	if path == "" || path[0] != '/' {
		return false
	}
	for i := 1; i < len(path); i++ {
		if path[i] == '/' {
			return false
		}
	}
	switch r.Kind() {
	case sres.KindTable, sres.KindArray:
		return true
	default:
		return false
	}
}

// CommonKeys returns, in sorted order, the table keys that occur in at least
// minCount tables across roots. A key repeated within one table counts once.
func CommonKeys(roots []sres.Resource, minCount int) ([]string, error) {
	counts := make(map[string]int)
	var walk func(r sres.Resource) error
	walk = func(r sres.Resource) error {
		r, err := sres.Resolve(r)
		if err != nil {
			return err
		}
		switch v := r.(type) {
		case *sres.Table:
			seen := make(map[string]struct{}, v.Len())
			for key, value := range v.All() {
				if _, dup := seen[key]; !dup {
					seen[key] = struct{}{}
					counts[key]++
				}
				if err := walk(value); err != nil {
					return err
				}
			}
		case *sres.Array:
			for _, item := range v.All() {
				if err := walk(item); err != nil {
					return err
				}
			}
		}
		return nil
	}
	for _, root := range roots {
		if err := walk(root); err != nil {
			return nil, err
		}
	}

	var keys []string
	for key, n := range counts {
		if n >= minCount {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)
	return keys, nil
}
