// Package encode writes resource trees as sres bundle files.
//
// An Encoder turns one resource tree into a bundle file plus one auxiliary
// file per sub-resource selected by its Filter. Table keys listed in the
// shared key set are stored once per base location in a pool file written by
// WriteSharedKeys.
package encode

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"unicode/utf8"

	"github.com/meigma/sres"
	"github.com/meigma/sres/internal/file"
	"github.com/meigma/sres/internal/wire"
)

// ErrValueRange is returned for an Int16 or Int16Array value outside the
// 16-bit range.
var ErrValueRange = errors.New("encode: value out of 16-bit range")

// Compression selects the framing of written files.
type Compression = file.Compression

const (
	CompressionNone = file.CompressionNone
	CompressionZstd = file.CompressionZstd
	CompressionLZ4  = file.CompressionLZ4
)

// ParseCompression parses "none", "zstd" or "lz4".
func ParseCompression(name string) (Compression, error) {
	return file.ParseCompression(name)
}

// Filter reports whether the resource at path is stored in its own auxiliary
// file. Paths join table keys and array indices with '/' below the root "".
// The root itself is never externalized.
type Filter func(path string, r sres.Resource) bool

// Stats summarizes one Write call.
type Stats struct {
	Files int
	Bytes uint64
}

// Encoder writes bundles. It is safe for concurrent use.
type Encoder struct {
	shared      []string
	sharedIndex map[string]uint32
	filter      Filter
	compression Compression
	logger      *slog.Logger
}

// Option configures an Encoder.
type Option func(*Encoder)

// WithSharedKeys stores keys in the shared key pool instead of each file.
// Duplicates are dropped and the pool is kept sorted.
func WithSharedKeys(keys []string) Option {
	return func(e *Encoder) {
		shared := slices.Clone(keys)
		slices.Sort(shared)
		e.shared = slices.Compact(shared)
	}
}

// WithFilter selects sub-resources to externalize into auxiliary files.
func WithFilter(f Filter) Option {
	return func(e *Encoder) {
		e.filter = f
	}
}

// WithCompression frames every written file with c (default: none).
func WithCompression(c Compression) Option {
	return func(e *Encoder) {
		e.compression = c
	}
}

// WithLogger sets the logger for written files.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Encoder) {
		e.logger = logger
	}
}

// New creates an Encoder.
func New(opts ...Option) *Encoder {
	e := &Encoder{}
	for _, opt := range opts {
		opt(e)
	}
	e.sharedIndex = make(map[string]uint32, len(e.shared))
	for i, k := range e.shared {
		e.sharedIndex[k] = uint32(i) //nolint:gosec // pool sizes are bounded by the 32-bit count field
	}
	return e
}

func (e *Encoder) log() *slog.Logger {
	if e.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return e.logger
}

// SharedKeys returns the shared key set in pool order.
func (e *Encoder) SharedKeys() []string {
	return slices.Clone(e.shared)
}

// Write encodes root as bundle name under base, followed by its auxiliary
// files. Auxiliary handles in root are resolved and their content inlined or
// externalized again according to the filter.
func (e *Encoder) Write(sink Sink, base, name string, root sres.Resource) (Stats, error) {
	p := &planner{filter: e.filter}
	top, err := p.build("", root, true)
	if err != nil {
		return Stats{}, fmt.Errorf("encode %s: %w", sres.FullName(base, name), err)
	}

	var stats Stats
	if err := e.writeFile(sink, sres.FullName(base, name), top, &stats); err != nil {
		return stats, err
	}
	for _, aux := range p.external {
		if err := e.writeFile(sink, sres.AuxiliaryName(base, name, aux.serial), aux, &stats); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

// WriteSharedKeys writes the shared key pool file for base.
func (e *Encoder) WriteSharedKeys(sink Sink, base string) error {
	for _, k := range e.shared {
		if !utf8.ValidString(k) {
			return fmt.Errorf("shared key %q: %w", k, sres.ErrInvalidUTF8)
		}
	}
	w := wire.NewWriter()
	w.Byte(wire.SectionKeyPool)
	w.WriteStringsUTF8(e.shared)
	var stats Stats
	return e.emit(sink, sres.FullName(base, sres.SharedPoolName), w.Bytes(), &stats)
}

func (e *Encoder) writeFile(sink Sink, name string, top *node, stats *Stats) error {
	data, err := e.encodeFile(top)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	return e.emit(sink, name, data, stats)
}

func (e *Encoder) emit(sink Sink, name string, data []byte, stats *Stats) error {
	var buf bytes.Buffer
	if err := file.CompressTo(&buf, e.compression, data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := sink.WriteFile(name, buf.Bytes()); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	size := buf.Len()
	stats.Files++
	stats.Bytes += uint64(size) //nolint:gosec // lengths are non-negative
	e.log().Info("wrote bundle file", "name", name, "bytes", size, "compression", e.compression.String())
	return nil
}

// encodeFile lays out the sections of one file whose root is top.
func (e *Encoder) encodeFile(top *node) ([]byte, error) {
	fp := newFilePools(top, e.sharedIndex)

	w := wire.NewWriter()
	var flags uint32
	if len(e.shared) > 0 {
		flags |= wire.FlagSharedKeys
	}
	w.WriteUint32(flags)
	if len(fp.localKeys) > 0 {
		w.Byte(wire.SectionKeyPool)
		w.WriteStringsUTF8(fp.localKeys)
	}
	if len(fp.utf8) > 0 {
		w.Byte(wire.SectionStringsUTF8)
		w.WriteStringsUTF8(fp.utf8)
	}
	if len(fp.utf16) > 0 {
		w.Byte(wire.SectionStringsUTF16)
		w.WriteStringsUTF16(fp.utf16)
	}
	w.Byte(wire.SectionResourceData)
	if err := fp.encode(w, top, true); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}
