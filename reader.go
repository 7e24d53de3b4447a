package sres

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/meigma/sres/internal/wire"
)

// Reader decodes bundles opened through a Loader.
//
// A Reader is safe for concurrent use. Auxiliary handles decoded by a Reader
// keep a reference to it and load their files through the same Loader.
type Reader struct {
	loader   Loader
	pools    *PoolCache
	logger   *slog.Logger
	maxDepth int
	auxGroup singleflight.Group // zero value is valid
}

// NewReader returns a Reader that opens files with loader.
func NewReader(loader Loader, opts ...Option) *Reader {
	r := &Reader{
		loader:   loader,
		maxDepth: DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.pools == nil {
		r.pools = NewPoolCache()
	}
	return r
}

func (r *Reader) log() *slog.Logger {
	if r.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return r.logger
}

// Load decodes the bundle name under base and returns its root resource.
//
// ok is false when the file does not exist or holds no resource data section.
// Any other failure is returned as an error, usually a *DecodeError.
func (r *Reader) Load(base, name string) (res Resource, ok bool, err error) {
	return r.readFile(Origin{Base: base, Name: name}, 0, false)
}

// LoadTable is like Load but requires the root resource to be a table.
func (r *Reader) LoadTable(base, name string) (*Table, bool, error) {
	res, ok, err := r.Load(base, name)
	if err != nil || !ok {
		return nil, ok, err
	}
	t, isTable := res.(*Table)
	if !isTable {
		return nil, false, fmt.Errorf("%w: root of %s is %s", ErrTypeMismatch, FullName(base, name), res.Kind())
	}
	return t, true, nil
}

// readFile opens and decodes one file. Auxiliary files are named after
// origin plus serial.
func (r *Reader) readFile(origin Origin, serial uint32, aux bool) (Resource, bool, error) {
	name := FullName(origin.Base, origin.Name)
	if aux {
		name = AuxiliaryName(origin.Base, origin.Name, serial)
	}

	rc, err := r.loader.Open(name)
	if errors.Is(err, fs.ErrNotExist) {
		r.log().Debug("bundle not found", "name", name)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("open %s: %w", name, err)
	}
	defer rc.Close()

	return r.readSections(name, origin, rc)
}

// readSections consumes the header and the optional pools in their fixed
// order, then decodes the resource data section.
func (r *Reader) readSections(name string, origin Origin, src io.Reader) (Resource, bool, error) {
	wr := wire.NewReader(src)
	fail := func(err error) (Resource, bool, error) {
		return nil, false, &DecodeError{Name: name, Offset: wr.Position(), Err: err}
	}

	flags, err := wr.ReadUint32()
	if err != nil {
		return fail(err)
	}
	d := &decoder{
		r:        wr,
		reader:   r,
		origin:   origin,
		maxDepth: r.maxDepth,
	}
	if flags&wire.FlagSharedKeys != 0 {
		shared, err := r.sharedKeys(origin.Base)
		if err != nil {
			return nil, false, err
		}
		d.keys.second = shared
	}

	// Each pool section is optional but they appear in this order.
	sections := []struct {
		tag  byte
		read func() error
	}{
		{wire.SectionKeyPool, func() (err error) { d.keys.first, err = wr.ReadStringsUTF8(); return err }},
		{wire.SectionStringsUTF8, func() (err error) { d.strs.first, err = wr.ReadStringsUTF8(); return err }},
		{wire.SectionStringsUTF16, func() (err error) { d.strs.second, err = wr.ReadStringsUTF16(); return err }},
	}
	tag, ok, err := wr.NextTag()
	for _, sec := range sections {
		if err != nil || !ok || tag != sec.tag {
			continue
		}
		if err := sec.read(); err != nil {
			return fail(err)
		}
		tag, ok, err = wr.NextTag()
	}
	if err != nil {
		return fail(err)
	}
	if !ok || tag != wire.SectionResourceData {
		r.log().Debug("no resource data section", "name", name, "offset", wr.Position())
		return nil, false, nil
	}

	root, err := d.decode(0)
	if err != nil {
		return fail(err)
	}
	return root, true, nil
}
