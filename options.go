package sres

import "log/slog"

// DefaultMaxDepth is the default limit on resource nesting.
const DefaultMaxDepth = 256

// Option configures a Reader.
type Option func(*Reader)

// WithLogger sets the logger for debug events. A nil logger disables logging.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reader) {
		r.logger = logger
	}
}

// WithPoolCache shares a shared key pool cache between readers. By default
// each Reader owns a private cache.
func WithPoolCache(c *PoolCache) Option {
	return func(r *Reader) {
		if c != nil {
			r.pools = c
		}
	}
}

// WithMaxDepth limits how deeply containers may nest within one file and
// how many auxiliary files Resolve follows in a row. Values <= 0 select
// DefaultMaxDepth.
func WithMaxDepth(depth int) Option {
	return func(r *Reader) {
		if depth <= 0 {
			depth = DefaultMaxDepth
		}
		r.maxDepth = depth
	}
}
