package sres

import (
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/meigma/sres/internal/wire"
)

// PoolCache holds decoded shared key pools keyed by full name.
//
// A PoolCache may be shared by several readers that open the same files. It is
// safe for concurrent use. Cached pools are never modified.
type PoolCache struct {
	mu    sync.RWMutex
	pools map[string][]string
	group singleflight.Group // zero value is valid
}

// NewPoolCache returns an empty cache.
func NewPoolCache() *PoolCache {
	return &PoolCache{pools: make(map[string][]string)}
}

// Len returns the number of cached pools.
func (c *PoolCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.pools)
}

// Purge drops every cached pool.
func (c *PoolCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.pools)
}

func (c *PoolCache) get(name string) ([]string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys, ok := c.pools[name]
	return keys, ok
}

// putIfAbsent stores keys unless a pool is already cached under name, and
// returns the cached pool.
func (c *PoolCache) putIfAbsent(name string, keys []string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.pools[name]; ok {
		return cur
	}
	c.pools[name] = keys
	return keys
}

// SharedKeys returns a copy of the shared key pool stored under base.
func (r *Reader) SharedKeys(base string) ([]string, error) {
	keys, err := r.sharedKeys(base)
	if err != nil {
		return nil, err
	}
	return slices.Clone(keys), nil
}

func (r *Reader) sharedKeys(base string) ([]string, error) {
	name := FullName(base, SharedPoolName)
	if keys, ok := r.pools.get(name); ok {
		r.log().Debug("shared key pool cache hit", "name", name)
		return keys, nil
	}

	v, err, _ := r.pools.group.Do(name, func() (any, error) {
		// A concurrent load may have finished while we waited.
		if keys, ok := r.pools.get(name); ok {
			return keys, nil
		}
		r.log().Debug("shared key pool cache miss", "name", name)
		keys, err := r.readSharedKeys(name)
		if err != nil {
			return nil, err
		}
		return r.pools.putIfAbsent(name, keys), nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil //nolint:errcheck // singleflight returns what the closure stored
}

// readSharedKeys decodes a pool file: a single key pool section.
func (r *Reader) readSharedKeys(name string) ([]string, error) {
	rc, err := r.loader.Open(name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrMissingSharedPool, name)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer rc.Close()

	wr := wire.NewReader(rc)
	tag, ok, err := wr.NextTag()
	if err != nil {
		return nil, &DecodeError{Name: name, Offset: wr.Position(), Err: err}
	}
	if !ok || tag != wire.SectionKeyPool {
		return nil, fmt.Errorf("%w: %s has no key pool section", ErrMissingSharedPool, name)
	}
	keys, err := wr.ReadStringsUTF8()
	if err != nil {
		return nil, &DecodeError{Name: name, Offset: wr.Position(), Err: err}
	}
	return keys, nil
}
