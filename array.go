package sres

import (
	"fmt"
	"iter"
)

// Array is an ordered list of resources of any kind.
type Array struct {
	items []Resource
}

// NewArray returns an array over items.
func NewArray(items ...Resource) *Array {
	return &Array{items: items}
}

func (*Array) Kind() Kind { return KindArray }
func (*Array) resource()  {}

// Len returns the number of elements.
func (a *Array) Len() int {
	return len(a.items)
}

// Get returns the element at index i. Auxiliary elements are returned
// unresolved.
func (a *Array) Get(i int) (Resource, error) {
	if i < 0 || i >= len(a.items) {
		return nil, indexError(i, len(a.items))
	}
	return a.items[i], nil
}

// Lookup is like Get but resolves auxiliary elements.
func (a *Array) Lookup(i int) (Resource, error) {
	r, err := a.Get(i)
	if err != nil {
		return nil, err
	}
	return Resolve(r)
}

// All iterates over the elements in order.
func (a *Array) All() iter.Seq2[int, Resource] {
	return func(yield func(int, Resource) bool) {
		for i, r := range a.items {
			if !yield(i, r) {
				return
			}
		}
	}
}

// GetString returns the string at index i.
func (a *Array) GetString(i int) (string, error) {
	return arrayGet(a, i, AsString)
}

// GetInt returns the integer at index i.
func (a *Array) GetInt(i int) (int32, error) {
	return arrayGet(a, i, AsInt)
}

// GetInts returns the integer vector at index i.
func (a *Array) GetInts(i int) ([]int32, error) {
	return arrayGet(a, i, AsInts)
}

// GetBytes returns the binary value at index i.
func (a *Array) GetBytes(i int) ([]byte, error) {
	return arrayGet(a, i, AsBytes)
}

// GetStrings returns the string vector at index i.
func (a *Array) GetStrings(i int) ([]string, error) {
	return arrayGet(a, i, AsStrings)
}

// GetTable returns the table at index i.
func (a *Array) GetTable(i int) (*Table, error) {
	return arrayGet(a, i, AsTable)
}

// GetArray returns the object array at index i.
func (a *Array) GetArray(i int) (*Array, error) {
	return arrayGet(a, i, AsArray)
}

// GetAlias returns the alias path at index i.
func (a *Array) GetAlias(i int) (string, error) {
	return arrayGet(a, i, AsAlias)
}

func arrayGet[T any](a *Array, i int, as func(Resource) (T, error)) (T, error) {
	r, err := a.Lookup(i)
	if err != nil {
		var zero T
		return zero, err
	}
	v, err := as(r)
	if err != nil {
		return v, fmt.Errorf("index %d: %w", i, err)
	}
	return v, nil
}
