package testutil

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"sync"
	"testing/iotest"
)

// MapLoader serves files from memory. It satisfies sres.Loader.
type MapLoader struct {
	mu         sync.RWMutex
	files      map[string][]byte
	shortReads bool
}

// NewMapLoader returns a loader over files keyed by full name.
func NewMapLoader(files map[string][]byte) *MapLoader {
	if files == nil {
		files = make(map[string][]byte)
	}
	return &MapLoader{files: files}
}

// WithShortReads makes every stream return one byte per Read call.
func (l *MapLoader) WithShortReads() *MapLoader {
	l.shortReads = true
	return l
}

// Put adds or replaces a file.
func (l *MapLoader) Put(name string, data []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.files[name] = data
}

// Remove deletes a file.
func (l *MapLoader) Remove(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.files, name)
}

// Open returns a stream over the named file or an error matching fs.ErrNotExist.
func (l *MapLoader) Open(name string) (io.ReadCloser, error) {
	l.mu.RLock()
	data, ok := l.files[name]
	l.mu.RUnlock()
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	var r io.Reader = bytes.NewReader(data)
	if l.shortReads {
		r = iotest.OneByteReader(r)
	}
	return io.NopCloser(r), nil
}

// Opener is the subset of sres.Loader wrapped by CountingLoader.
type Opener interface {
	Open(name string) (io.ReadCloser, error)
}

// CountingLoader records how often each name is opened.
type CountingLoader struct {
	Opener

	mu     sync.Mutex
	counts map[string]int
}

// NewCountingLoader wraps next.
func NewCountingLoader(next Opener) *CountingLoader {
	return &CountingLoader{Opener: next, counts: make(map[string]int)}
}

// Open counts the call and delegates.
func (l *CountingLoader) Open(name string) (io.ReadCloser, error) {
	l.mu.Lock()
	l.counts[name]++
	l.mu.Unlock()
	return l.Opener.Open(name)
}

// Count returns the number of Open calls for name.
func (l *CountingLoader) Count(name string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counts[name]
}

// FailingLoader returns err from every Open call.
type FailingLoader struct {
	Err error
}

// Open implements sres.Loader.
func (l FailingLoader) Open(name string) (io.ReadCloser, error) {
	return nil, fmt.Errorf("open %s: %w", name, l.Err)
}
