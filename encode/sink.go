package encode

import (
	"bytes"
	"io"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

// Sink receives encoded files by full name.
type Sink interface {
	WriteFile(name string, data []byte) error
}

// DirSink writes files below a directory, replacing existing files
// atomically.
type DirSink struct {
	Dir     string
	DirPerm os.FileMode // default 0o755
}

// WriteFile implements Sink.
func (s DirSink) WriteFile(name string, data []byte) error {
	target := filepath.Join(s.Dir, filepath.FromSlash(name))
	perm := s.DirPerm
	if perm == 0 {
		perm = 0o755
	}
	if err := os.MkdirAll(filepath.Dir(target), perm); err != nil {
		return err
	}
	return writeFileAtomic(target, data)
}

// writeFileAtomic writes data to a temp file then renames it to target.
func writeFileAtomic(target string, data []byte) error {
	dir := filepath.Dir(target)
	tmp, err := os.CreateTemp(dir, ".sres-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// MemSink keeps files in memory. It also serves them back as an sres.Loader.
type MemSink struct {
	mu    sync.RWMutex
	files map[string][]byte
}

// NewMemSink returns an empty MemSink.
func NewMemSink() *MemSink {
	return &MemSink{files: make(map[string][]byte)}
}

// WriteFile implements Sink.
func (s *MemSink) WriteFile(name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[name] = bytes.Clone(data)
	return nil
}

// File returns the content of name.
func (s *MemSink) File(name string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.files[name]
	return data, ok
}

// Names returns the stored file names in sorted order.
func (s *MemSink) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.files))
}

// Remove deletes name.
func (s *MemSink) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, name)
}

// Open returns a reader over name or an error matching fs.ErrNotExist.
func (s *MemSink) Open(name string) (io.ReadCloser, error) {
	data, ok := s.File(name)
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}
