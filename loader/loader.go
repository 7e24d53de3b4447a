// Package loader provides sres.Loader implementations backed by file systems.
//
// Files may be stored plain or framed with zstd or lz4; the framing is
// detected from the leading magic number and removed transparently.
// Decompressed payloads can be kept in a cache.Cache keyed by the digest of
// the stored bytes.
package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/opencontainers/go-digest"
	"golang.org/x/sync/singleflight"

	"github.com/meigma/sres"
	"github.com/meigma/sres/cache"
	"github.com/meigma/sres/internal/file"
	"github.com/meigma/sres/internal/platform"
	"github.com/meigma/sres/internal/sizing"
)

const (
	// DefaultMaxFileSize is the default limit for stored and decompressed files.
	DefaultMaxFileSize = 64 << 20

	// DefaultMaxDecoderMemory is the default zstd decoder memory limit.
	DefaultMaxDecoderMemory = 256 << 20
)

// ErrFileTooLarge is returned when a stored or decompressed file exceeds the
// configured size limit.
var ErrFileTooLarge = errors.New("loader: file too large")

var _ sres.Loader = (*Loader)(nil)

// Loader opens bundle files from a file system.
// It is safe for concurrent use.
type Loader struct {
	open  func(name string) (io.ReadCloser, error)
	close func() error

	maxFileSize        uint64
	maxDecoderMemory   uint64
	decoderConcurrency int
	decoderLowmem      bool
	pool               *file.DecompressPool

	cache     cache.Cache
	fillGroup singleflight.Group // zero value is valid
	logger    *slog.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithMaxFileSize limits the size of stored and decompressed files.
// Set limit to 0 to disable the limit.
func WithMaxFileSize(limit uint64) Option {
	return func(l *Loader) {
		l.maxFileSize = limit
	}
}

// WithMaxDecoderMemory limits the maximum memory used by the zstd decoder.
// Set limit to 0 to disable the limit.
func WithMaxDecoderMemory(limit uint64) Option {
	return func(l *Loader) {
		l.maxDecoderMemory = limit
	}
}

// WithDecoderConcurrency sets the zstd decoder concurrency (default: 1).
// Values < 0 are treated as 0 (use GOMAXPROCS).
func WithDecoderConcurrency(n int) Option {
	return func(l *Loader) {
		l.decoderConcurrency = max(n, 0)
	}
}

// WithDecoderLowmem sets whether the zstd decoder should use low-memory mode (default: false).
func WithDecoderLowmem(enabled bool) Option {
	return func(l *Loader) {
		l.decoderLowmem = enabled
	}
}

// WithCache keeps decompressed payloads in c. Concurrent opens of the same
// stored content are deduplicated.
func WithCache(c cache.Cache) Option {
	return func(l *Loader) {
		l.cache = c
	}
}

// WithLogger sets the logger for debug events.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		l.logger = logger
	}
}

// New returns a Loader reading from fsys.
func New(fsys fs.FS, opts ...Option) *Loader {
	return newLoader(func(name string) (io.ReadCloser, error) {
		return fsys.Open(name)
	}, nil, opts)
}

// NewDir returns a Loader reading below dir. Names cannot escape dir and
// symbolic links are refused. Close releases the directory handle.
func NewDir(dir string, opts ...Option) (*Loader, error) {
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, err
	}
	return newLoader(func(name string) (io.ReadCloser, error) {
		return platform.OpenFileNoFollow(root, name)
	}, root.Close, opts), nil
}

func newLoader(open func(string) (io.ReadCloser, error), closeFn func() error, opts []Option) *Loader {
	l := &Loader{
		open:               open,
		close:              closeFn,
		maxFileSize:        DefaultMaxFileSize,
		maxDecoderMemory:   DefaultMaxDecoderMemory,
		decoderConcurrency: 1,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.pool = file.NewDecompressPool(l.maxDecoderMemory,
		file.WithDecoderConcurrency(l.decoderConcurrency),
		file.WithDecoderLowmem(l.decoderLowmem),
	)
	return l
}

func (l *Loader) log() *slog.Logger {
	if l.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return l.logger
}

// Close releases resources held by a Loader created with NewDir.
func (l *Loader) Close() error {
	if l.close == nil {
		return nil
	}
	return l.close()
}

// Open implements sres.Loader. A missing file yields an error matching
// fs.ErrNotExist.
func (l *Loader) Open(name string) (io.ReadCloser, error) {
	data, err := l.ReadFile(name)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// ReadFile returns the plain content of name.
func (l *Loader) ReadFile(name string) ([]byte, error) {
	raw, err := l.readStored(name)
	if err != nil {
		return nil, err
	}
	if file.Detect(raw) == file.CompressionNone {
		return raw, nil
	}
	if l.cache == nil {
		return l.decompress(name, raw)
	}

	d := digest.FromBytes(raw)
	if data, ok := l.cache.Get(d); ok {
		l.log().Debug("content cache hit", "name", name, "digest", d)
		return data, nil
	}
	v, err, _ := l.fillGroup.Do(d.String(), func() (any, error) {
		// Double-check after acquiring singleflight
		if data, ok := l.cache.Get(d); ok {
			return data, nil
		}
		l.log().Debug("content cache miss", "name", name, "digest", d)
		data, err := l.decompress(name, raw)
		if err != nil {
			return nil, err
		}
		if err := l.cache.Put(d, data); err != nil {
			l.log().Warn("content cache put failed", "name", name, "digest", d, "error", err)
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil //nolint:errcheck // singleflight returns what the closure stored
}

func (l *Loader) readStored(name string) ([]byte, error) {
	f, err := l.open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var raw []byte
	if l.maxFileSize == 0 {
		raw, err = io.ReadAll(f)
	} else {
		raw, err = sizing.ReadAllWithLimit(f, l.maxFileSize, ErrFileTooLarge)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return raw, nil
}

func (l *Loader) decompress(name string, raw []byte) ([]byte, error) {
	data, c, err := l.pool.Decompress(raw, l.maxFileSize, ErrFileTooLarge)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	l.log().Debug("decompressed bundle file", "name", name, "compression", c.String(),
		"stored", len(raw), "size", len(data))
	return data, nil
}
