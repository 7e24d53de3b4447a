package sizing

import (
	"bytes"
	"errors"
	"io/fs"
	"math"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBig = errors.New("big")

func TestReadAllWithLimit(t *testing.T) {
	t.Parallel()

	data, err := ReadAllWithLimit(bytes.NewReader([]byte("abcd")), 4, errBig)
	require.NoError(t, err)
	assert.Equal(t, []byte("abcd"), data)

	_, err = ReadAllWithLimit(bytes.NewReader([]byte("abcde")), 4, errBig)
	require.ErrorIs(t, err, errBig)

	_, err = ReadAllWithLimit(bytes.NewReader(nil), math.MaxUint64, errBig)
	require.ErrorIs(t, err, errBig)
}

// unreadFile reports a size through Stat and fails the test if read.
type unreadFile struct {
	t    *testing.T
	info fs.FileInfo
}

func (f unreadFile) Stat() (fs.FileInfo, error) { return f.info, nil }

func (f unreadFile) Read([]byte) (int, error) {
	f.t.Error("oversized file was read")
	return 0, errors.New("read")
}

func TestReadAllWithLimitUsesStat(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{"data/en.sres": &fstest.MapFile{Data: []byte("0123456789")}}
	info, err := fs.Stat(fsys, "data/en.sres")
	require.NoError(t, err)

	_, err = ReadAllWithLimit(unreadFile{t: t, info: info}, 4, errBig)
	require.ErrorIs(t, err, errBig)

	f, err := fsys.Open("data/en.sres")
	require.NoError(t, err)
	defer f.Close()
	data, err := ReadAllWithLimit(f, 10, errBig)
	require.NoError(t, err)
	assert.Equal(t, []byte("0123456789"), data)
}
