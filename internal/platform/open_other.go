//go:build !unix

// Package platform wraps operating system specific file access.
package platform

import (
	"errors"
	"io/fs"
	"os"
)

// ErrSymlink is returned when a bundle path names a symbolic link.
var ErrSymlink = errors.New("symbolic links not supported")

// OpenFileNoFollow opens name inside root without following a final symlink.
func OpenFileNoFollow(root *os.Root, name string) (*os.File, error) {
	info, err := root.Lstat(name)
	if err != nil {
		return nil, err
	}
	if info.Mode()&fs.ModeSymlink != 0 {
		return nil, ErrSymlink
	}
	return root.Open(name)
}
