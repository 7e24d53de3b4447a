package sres

import "fmt"

// Resolve follows auxiliary handles until it reaches a non-auxiliary resource.
// Other resources are returned unchanged. The chain length is bounded by the
// maximum depth of the Reader that produced the first handle.
func Resolve(r Resource) (Resource, error) {
	limit := DefaultMaxDepth
	if aux, ok := r.(*Auxiliary); ok && aux.reader != nil {
		limit = aux.reader.maxDepth
	}
	for range limit {
		aux, ok := r.(*Auxiliary)
		if !ok {
			return r, nil
		}
		var err error
		if r, err = aux.Resolve(); err != nil {
			return nil, err
		}
	}
	if _, ok := r.(*Auxiliary); !ok {
		return r, nil
	}
	return nil, fmt.Errorf("%w: auxiliary chain", ErrMaxDepth)
}

// AsString returns the value of a string resource.
func AsString(r Resource) (string, error) {
	r, err := Resolve(r)
	if err != nil {
		return "", err
	}
	s, ok := r.(String)
	if !ok {
		return "", mismatch(r, KindString)
	}
	return string(s), nil
}

// AsInt returns the value of a 16 or 32 bit integer resource.
func AsInt(r Resource) (int32, error) {
	r, err := Resolve(r)
	if err != nil {
		return 0, err
	}
	switch v := r.(type) {
	case Int16:
		return int32(v), nil
	case Int32:
		return int32(v), nil
	default:
		return 0, mismatch(r, KindInt32)
	}
}

// AsInts returns the elements of a 16 or 32 bit integer vector.
func AsInts(r Resource) ([]int32, error) {
	r, err := Resolve(r)
	if err != nil {
		return nil, err
	}
	switch v := r.(type) {
	case Int16Array:
		return v, nil
	case Int32Array:
		return v, nil
	default:
		return nil, mismatch(r, KindInt32Array)
	}
}

// AsBytes returns the content of a binary resource.
func AsBytes(r Resource) ([]byte, error) {
	r, err := Resolve(r)
	if err != nil {
		return nil, err
	}
	b, ok := r.(Bytes)
	if !ok {
		return nil, mismatch(r, KindBytes)
	}
	return b, nil
}

// AsStrings returns the elements of a string vector. An object array whose
// elements are all strings is accepted as well.
func AsStrings(r Resource) ([]string, error) {
	r, err := Resolve(r)
	if err != nil {
		return nil, err
	}
	switch v := r.(type) {
	case StringArray:
		return v, nil
	case *Array:
		out := make([]string, 0, v.Len())
		for _, item := range v.items {
			s, err := AsString(item)
			if err != nil {
				return nil, mismatch(r, KindStringArray)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, mismatch(r, KindStringArray)
	}
}

// AsTable returns a table resource.
func AsTable(r Resource) (*Table, error) {
	r, err := Resolve(r)
	if err != nil {
		return nil, err
	}
	t, ok := r.(*Table)
	if !ok {
		return nil, mismatch(r, KindTable)
	}
	return t, nil
}

// AsArray returns an object array resource.
func AsArray(r Resource) (*Array, error) {
	r, err := Resolve(r)
	if err != nil {
		return nil, err
	}
	a, ok := r.(*Array)
	if !ok {
		return nil, mismatch(r, KindArray)
	}
	return a, nil
}

// AsAlias returns the path of an alias resource.
func AsAlias(r Resource) (string, error) {
	r, err := Resolve(r)
	if err != nil {
		return "", err
	}
	a, ok := r.(Alias)
	if !ok {
		return "", mismatch(r, KindAlias)
	}
	return string(a), nil
}

func mismatch(r Resource, want Kind) error {
	return fmt.Errorf("%w: have %s, want %s", ErrTypeMismatch, r.Kind(), want)
}
