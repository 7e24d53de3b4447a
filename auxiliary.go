package sres

import (
	"fmt"
	"sync/atomic"
	"weak"
)

// Origin identifies the bundle a file belongs to.
type Origin struct {
	Base string
	Name string
}

// Auxiliary is a sub-resource stored in its own file and decoded on demand.
//
// The decoded value is cached. Tables and arrays are cached through weak
// pointers, so the garbage collector may reclaim them once no caller holds
// them; the next Resolve decodes the file again. Two resolutions may
// therefore return distinct but equal values.
type Auxiliary struct {
	origin Origin
	serial uint32
	reader *Reader
	slot   atomic.Pointer[auxSlot]
}

// auxSlot holds at most one of its fields.
type auxSlot struct {
	table weak.Pointer[Table]
	array weak.Pointer[Array]
	value Resource
}

func newSlot(res Resource) *auxSlot {
	switch v := res.(type) {
	case *Table:
		return &auxSlot{table: weak.Make(v)}
	case *Array:
		return &auxSlot{array: weak.Make(v)}
	default:
		return &auxSlot{value: res}
	}
}

// load returns the cached value, or nil if the slot is empty or reclaimed.
func (s *auxSlot) load() Resource {
	if s == nil {
		return nil
	}
	if s.value != nil {
		return s.value
	}
	if t := s.table.Value(); t != nil {
		return t
	}
	if a := s.array.Value(); a != nil {
		return a
	}
	return nil
}

func newAuxiliary(r *Reader, origin Origin, serial uint32) *Auxiliary {
	return &Auxiliary{origin: origin, serial: serial, reader: r}
}

func (*Auxiliary) Kind() Kind { return KindAuxiliary }
func (*Auxiliary) resource()  {}

// Origin returns the bundle the handle was decoded from.
func (a *Auxiliary) Origin() Origin {
	return a.origin
}

// Serial returns the number of the auxiliary file within its bundle.
func (a *Auxiliary) Serial() uint32 {
	return a.serial
}

// Name returns the full name of the auxiliary file.
func (a *Auxiliary) Name() string {
	return AuxiliaryName(a.origin.Base, a.origin.Name, a.serial)
}

// Resolve returns the resource stored in the auxiliary file, decoding it if
// it is not cached. A missing file is reported as ErrMissingAuxiliaryResource.
func (a *Auxiliary) Resolve() (Resource, error) {
	if res := a.slot.Load().load(); res != nil {
		return res, nil
	}
	name := a.Name()
	if a.reader == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingAuxiliaryResource, name)
	}

	r := a.reader
	v, err, _ := r.auxGroup.Do(name, func() (any, error) {
		r.log().Debug("auxiliary cache miss", "name", name)
		res, ok, err := r.readFile(a.origin, a.serial, true)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingAuxiliaryResource, name)
		}
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	res := v.(Resource) //nolint:errcheck // singleflight returns what the closure stored
	a.slot.Store(newSlot(res))
	return res, nil
}

// Evict drops the cached value. The next Resolve decodes the file again.
func (a *Auxiliary) Evict() {
	a.slot.Store(nil)
}

// Cached reports whether a decoded value is currently cached.
func (a *Auxiliary) Cached() bool {
	return a.slot.Load().load() != nil
}
