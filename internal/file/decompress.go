package file

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/meigma/sres/internal/sizing"
)

// DecompressPool manages reusable zstd decoders to reduce allocation overhead.
type DecompressPool struct {
	pool               *sync.Pool
	maxDecoderMemory   uint64
	decoderConcurrency int
	decoderLowmem      bool
}

// DecompressOption configures a DecompressPool.
type DecompressOption func(*DecompressPool)

// WithDecoderConcurrency sets the decoder concurrency level (default: 1).
// Values < 0 are treated as 0 (use GOMAXPROCS).
func WithDecoderConcurrency(n int) DecompressOption {
	return func(p *DecompressPool) {
		p.decoderConcurrency = max(n, 0)
	}
}

// WithDecoderLowmem enables or disables low-memory mode for decoders.
func WithDecoderLowmem(enabled bool) DecompressOption {
	return func(p *DecompressPool) {
		p.decoderLowmem = enabled
	}
}

// NewDecompressPool creates a new pool for zstd decoders.
// If maxMemory is 0, no memory limit is applied to decoders.
func NewDecompressPool(maxMemory uint64, opts ...DecompressOption) *DecompressPool {
	p := &DecompressPool{
		maxDecoderMemory:   maxMemory,
		decoderConcurrency: 1,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.pool = &sync.Pool{
		New: func() any {
			dec, err := p.newDecoder(nil)
			if err != nil {
				return nil
			}
			return dec
		},
	}
	return p
}

// Get returns a decoder configured to read from r.
// The caller must call the returned release function when done.
// If an error is returned, no release function needs to be called.
func (p *DecompressPool) Get(r io.Reader) (*zstd.Decoder, func(), error) {
	if p == nil || p.pool == nil {
		dec, err := p.newDecoder(r)
		if err != nil {
			return nil, nil, err
		}
		return dec, dec.Close, nil
	}

	dec, ok := p.pool.Get().(*zstd.Decoder)
	if !ok {
		// Pool's New function failed, try directly
		newDec, err := p.newDecoder(r)
		if err != nil {
			return nil, nil, err
		}
		return newDec, newDec.Close, nil
	}

	if err := dec.Reset(r); err != nil {
		dec.Close()
		newDec, err := p.newDecoder(r)
		if err != nil {
			return nil, nil, err
		}
		return newDec, newDec.Close, nil
	}

	return dec, func() {
		_ = dec.Reset(nil) //nolint:errcheck // clearing state before pool return
		p.pool.Put(dec)
	}, nil
}

// Decompress returns the payload of data, decompressing zstd and lz4 frames.
// Uncompressed data is returned as is. A payload larger than maxSize yields
// tooLarge; maxSize 0 disables the limit.
func (p *DecompressPool) Decompress(data []byte, maxSize uint64, tooLarge error) ([]byte, Compression, error) {
	c := Detect(data)
	var r io.Reader
	switch c {
	case CompressionZstd:
		dec, release, err := p.Get(bytes.NewReader(data))
		if err != nil {
			return nil, c, fmt.Errorf("zstd decoder: %w", err)
		}
		defer release()
		r = dec
	case CompressionLZ4:
		r = lz4.NewReader(bytes.NewReader(data))
	default:
		return data, c, nil
	}

	var out []byte
	var err error
	if maxSize == 0 {
		out, err = io.ReadAll(r)
	} else {
		out, err = sizing.ReadAllWithLimit(r, maxSize, tooLarge)
	}
	if err != nil {
		return nil, c, fmt.Errorf("%s decompress: %w", c, err)
	}
	return out, c, nil
}

// newDecoder creates a new zstd decoder with the configured memory limit.
func (p *DecompressPool) newDecoder(r io.Reader) (*zstd.Decoder, error) {
	if p == nil {
		return zstd.NewReader(r)
	}
	opts := []zstd.DOption{
		zstd.WithDecoderConcurrency(p.decoderConcurrency),
		zstd.WithDecoderLowmem(p.decoderLowmem),
	}
	if p.maxDecoderMemory != 0 {
		opts = append(opts, zstd.WithDecoderMaxMemory(p.maxDecoderMemory))
	}
	return zstd.NewReader(r, opts...)
}
