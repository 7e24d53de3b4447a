package sres

import (
	"fmt"
	"iter"
	"sync"
)

// Entry is one key/value pair of a table.
type Entry struct {
	Key   string
	Value Resource
}

// Table is an ordered list of keyed resources.
//
// Keys need not be unique. Keyed lookup returns the last entry listed for a
// key, while indexed access and iteration reach every entry in on-wire order,
// including shadowed ones. The zero value is an empty table.
type Table struct {
	entries []Entry

	indexOnce sync.Once
	keyIndex  map[string]int
}

// NewTable returns a table over entries in the given order.
func NewTable(entries ...Entry) *Table {
	return &Table{entries: entries}
}

func (*Table) Kind() Kind { return KindTable }
func (*Table) resource()  {}

// index returns the key index, building it on first use.
func (t *Table) index() map[string]int {
	t.indexOnce.Do(func() {
		t.keyIndex = t.buildIndex()
	})
	return t.keyIndex
}

// buildIndex maps each key to the position of its last entry.
func (t *Table) buildIndex() map[string]int {
	idx := make(map[string]int, len(t.entries))
	for i, e := range t.entries {
		idx[e.Key] = i
	}
	return idx
}

// Len returns the number of entries, including shadowed duplicates.
func (t *Table) Len() int {
	return len(t.entries)
}

// At returns the entry at position i.
func (t *Table) At(i int) (Entry, error) {
	if i < 0 || i >= len(t.entries) {
		return Entry{}, indexError(i, len(t.entries))
	}
	return t.entries[i], nil
}

// Get returns the value of the last entry with the given key. Auxiliary
// values are returned unresolved.
func (t *Table) Get(key string) (Resource, bool) {
	i, ok := t.index()[key]
	if !ok {
		return nil, false
	}
	return t.entries[i].Value, true
}

// Lookup is like Get but resolves auxiliary values and reports a missing key
// as ErrKeyNotFound.
func (t *Table) Lookup(key string) (Resource, error) {
	r, ok := t.Get(key)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrKeyNotFound, key)
	}
	return Resolve(r)
}

// All iterates over every entry in order.
func (t *Table) All() iter.Seq2[string, Resource] {
	return func(yield func(string, Resource) bool) {
		for _, e := range t.entries {
			if !yield(e.Key, e.Value) {
				return
			}
		}
	}
}

// Keys iterates over the keys of every entry in order.
func (t *Table) Keys() iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, e := range t.entries {
			if !yield(e.Key) {
				return
			}
		}
	}
}

// GetString returns the string stored under key.
func (t *Table) GetString(key string) (string, error) {
	return tableGet(t, key, AsString)
}

// GetInt returns the integer stored under key.
func (t *Table) GetInt(key string) (int32, error) {
	return tableGet(t, key, AsInt)
}

// GetInts returns the integer vector stored under key.
func (t *Table) GetInts(key string) ([]int32, error) {
	return tableGet(t, key, AsInts)
}

// GetBytes returns the binary value stored under key.
func (t *Table) GetBytes(key string) ([]byte, error) {
	return tableGet(t, key, AsBytes)
}

// GetStrings returns the string vector stored under key.
func (t *Table) GetStrings(key string) ([]string, error) {
	return tableGet(t, key, AsStrings)
}

// GetTable returns the table stored under key.
func (t *Table) GetTable(key string) (*Table, error) {
	return tableGet(t, key, AsTable)
}

// GetArray returns the object array stored under key.
func (t *Table) GetArray(key string) (*Array, error) {
	return tableGet(t, key, AsArray)
}

// GetAlias returns the alias path stored under key.
func (t *Table) GetAlias(key string) (string, error) {
	return tableGet(t, key, AsAlias)
}

func tableGet[T any](t *Table, key string, as func(Resource) (T, error)) (T, error) {
	r, err := t.Lookup(key)
	if err != nil {
		var zero T
		return zero, err
	}
	v, err := as(r)
	if err != nil {
		return v, fmt.Errorf("key %q: %w", key, err)
	}
	return v, nil
}
