// Package sizing reads bundle files and decompressed payloads under a size
// limit.
package sizing

import (
	"bytes"
	"io"
	"io/fs"
	"math"
)

const defaultHint = 512

// statter is implemented by opened files.
type statter interface {
	Stat() (fs.FileInfo, error)
}

// ReadAllWithLimit reads r to the end and returns overflowErr once more than
// maxSize bytes arrive. When r is a file reporting its size, an oversized
// file is refused before reading and the buffer is sized up front.
func ReadAllWithLimit(r io.Reader, maxSize uint64, overflowErr error) ([]byte, error) {
	if maxSize > uint64(math.MaxInt-1) {
		return nil, overflowErr
	}

	hint := defaultHint
	if s, ok := r.(statter); ok {
		if info, err := s.Stat(); err == nil && info.Mode().IsRegular() && info.Size() >= 0 {
			if uint64(info.Size()) > maxSize {
				return nil, overflowErr
			}
			hint = int(info.Size()) + 1
		}
	}

	var buf bytes.Buffer
	buf.Grow(hint)
	if _, err := buf.ReadFrom(io.LimitReader(r, int64(maxSize)+1)); err != nil { //nolint:gosec // checked above
		return nil, err
	}
	if uint64(buf.Len()) > maxSize {
		return nil, overflowErr
	}
	return buf.Bytes(), nil
}
