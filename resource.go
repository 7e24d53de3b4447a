package sres

import (
	"bytes"
	"fmt"
	"slices"

	"github.com/meigma/sres/internal/wire"
)

// Kind identifies the variant of a Resource.
type Kind uint8

const (
	KindString Kind = iota + 1
	KindInt16
	KindInt32
	KindBytes
	KindInt16Array
	KindInt32Array
	KindStringArray
	KindArray
	KindTable
	KindAlias
	KindAuxiliary
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt16:
		return "int16"
	case KindInt32:
		return "int32"
	case KindBytes:
		return "bytes"
	case KindInt16Array:
		return "int16-array"
	case KindInt32Array:
		return "int32-array"
	case KindStringArray:
		return "string-array"
	case KindArray:
		return "array"
	case KindTable:
		return "table"
	case KindAlias:
		return "alias"
	case KindAuxiliary:
		return "auxiliary"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Resource is one decoded node of a bundle tree.
//
// The concrete types are String, Int16, Int32, Bytes, Int16Array, Int32Array,
// StringArray, *Array, *Table, Alias and *Auxiliary. A decoded tree is
// immutable; only auxiliary resolution and a table's key index do deferred work.
type Resource interface {
	Kind() Kind
	resource()
}

type (
	// String is a string resource.
	String string

	// Int16 is an integer stored in 16 bits on the wire, sign-extended.
	Int16 int32

	// Int32 is an integer stored in 32 bits on the wire.
	Int32 int32

	// Bytes is a binary resource.
	Bytes []byte

	// Int16Array is an integer vector stored with 16 bits per element.
	Int16Array []int32

	// Int32Array is an integer vector stored with 32 bits per element.
	Int32Array []int32

	// StringArray is a vector of strings.
	StringArray []string

	// Alias is an unresolved path to another resource. Resolving the path is
	// left to the caller.
	Alias string
)

func (String) Kind() Kind      { return KindString }
func (Int16) Kind() Kind       { return KindInt16 }
func (Int32) Kind() Kind       { return KindInt32 }
func (Bytes) Kind() Kind       { return KindBytes }
func (Int16Array) Kind() Kind  { return KindInt16Array }
func (Int32Array) Kind() Kind  { return KindInt32Array }
func (StringArray) Kind() Kind { return KindStringArray }
func (Alias) Kind() Kind       { return KindAlias }

func (String) resource()      {}
func (Int16) resource()       {}
func (Int32) resource()       {}
func (Bytes) resource()       {}
func (Int16Array) resource()  {}
func (Int32Array) resource()  {}
func (StringArray) resource() {}
func (Alias) resource()       {}

// UTF16 returns s as UTF-16 code units, with scalars at or above U+10000
// written as surrogate pairs. Malformed UTF-8 yields ErrInvalidUTF8.
func (s String) UTF16() ([]uint16, error) {
	return wire.DecodeUTF8ToUTF16([]byte(s))
}

// Path returns the alias target.
func (a Alias) Path() string { return string(a) }

// At returns the byte at index i.
func (b Bytes) At(i int) (byte, error) {
	if i < 0 || i >= len(b) {
		return 0, indexError(i, len(b))
	}
	return b[i], nil
}

// At returns the element at index i.
func (a Int16Array) At(i int) (int32, error) {
	if i < 0 || i >= len(a) {
		return 0, indexError(i, len(a))
	}
	return a[i], nil
}

// At returns the element at index i.
func (a Int32Array) At(i int) (int32, error) {
	if i < 0 || i >= len(a) {
		return 0, indexError(i, len(a))
	}
	return a[i], nil
}

// At returns the element at index i.
func (a StringArray) At(i int) (string, error) {
	if i < 0 || i >= len(a) {
		return "", indexError(i, len(a))
	}
	return a[i], nil
}

func indexError(i, n int) error {
	return fmt.Errorf("%w: index %d, length %d", ErrIndexOutOfRange, i, n)
}

// Equal reports whether two resource trees hold the same values. Auxiliary
// handles are equal when they name the same file; they are not resolved.
func Equal(a, b Resource) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch x := a.(type) {
	case String, Int16, Int32, Alias:
		return a == b
	case Bytes:
		return bytes.Equal(x, b.(Bytes)) //nolint:errcheck // kinds match
	case Int16Array:
		return slices.Equal(x, b.(Int16Array)) //nolint:errcheck // kinds match
	case Int32Array:
		return slices.Equal(x, b.(Int32Array)) //nolint:errcheck // kinds match
	case StringArray:
		return slices.Equal(x, b.(StringArray)) //nolint:errcheck // kinds match
	case *Array:
		y := b.(*Array) //nolint:errcheck // kinds match
		return slices.EqualFunc(x.items, y.items, Equal)
	case *Table:
		y := b.(*Table) //nolint:errcheck // kinds match
		return slices.EqualFunc(x.entries, y.entries, func(e, f Entry) bool {
			return e.Key == f.Key && Equal(e.Value, f.Value)
		})
	case *Auxiliary:
		y := b.(*Auxiliary) //nolint:errcheck // kinds match
		return x.origin == y.origin && x.serial == y.serial
	default:
		return false
	}
}
