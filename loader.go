package sres

import "io"

// Loader opens bundle files by full name.
//
// A missing file must be reported with an error matching fs.ErrNotExist.
// Loader implementations must be safe for concurrent use.
type Loader interface {
	Open(name string) (io.ReadCloser, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(name string) (io.ReadCloser, error)

// Open calls f(name).
func (f LoaderFunc) Open(name string) (io.ReadCloser, error) {
	return f(name)
}
