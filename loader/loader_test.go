package loader_test

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/sres"
	"github.com/meigma/sres/cache/disk"
	"github.com/meigma/sres/encode"
	"github.com/meigma/sres/loader"
)

func bundle(t *testing.T, c encode.Compression) []byte {
	t.Helper()
	sink := encode.NewMemSink()
	root := sres.NewTable(
		sres.Entry{Key: "greeting", Value: sres.String("hello")},
		sres.Entry{Key: "padding", Value: sres.Bytes(bytes.Repeat([]byte{7}, 2048))},
	)
	_, err := encode.New(encode.WithCompression(c)).Write(sink, "", "b", root)
	require.NoError(t, err)
	data, ok := sink.File("b.sres")
	require.True(t, ok)
	return data
}

func TestLoaderDecodesAllFramings(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"data/plain.sres": {Data: bundle(t, encode.CompressionNone)},
		"data/zstd.sres":  {Data: bundle(t, encode.CompressionZstd)},
		"data/lz4.sres":   {Data: bundle(t, encode.CompressionLZ4)},
	}
	r := sres.NewReader(loader.New(fsys))

	for _, name := range []string{"plain", "zstd", "lz4"} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			tbl, ok, err := r.LoadTable("data", name)
			require.NoError(t, err)
			require.True(t, ok)
			s, err := tbl.GetString("greeting")
			require.NoError(t, err)
			assert.Equal(t, "hello", s)
		})
	}
}

func TestLoaderNotFound(t *testing.T) {
	t.Parallel()

	l := loader.New(fstest.MapFS{})
	_, err := l.Open("missing.sres")
	require.ErrorIs(t, err, fs.ErrNotExist)

	_, ok, err := sres.NewReader(l).Load("", "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoaderMaxFileSize(t *testing.T) {
	t.Parallel()

	plain := bundle(t, encode.CompressionNone)
	packed := bundle(t, encode.CompressionZstd)
	require.Less(t, len(packed), 1024)
	fsys := fstest.MapFS{
		"plain.sres": {Data: plain},
		"zstd.sres":  {Data: packed},
	}
	l := loader.New(fsys, loader.WithMaxFileSize(1024))

	_, err := l.ReadFile("plain.sres")
	require.ErrorIs(t, err, loader.ErrFileTooLarge)

	// The stored file fits but its payload does not.
	_, err = l.ReadFile("zstd.sres")
	require.ErrorIs(t, err, loader.ErrFileTooLarge)

	data, err := loader.New(fsys, loader.WithMaxFileSize(0)).ReadFile("zstd.sres")
	require.NoError(t, err)
	assert.Equal(t, plain, data)
}

// countingCache records cache traffic.
type countingCache struct {
	mu   sync.Mutex
	data map[digest.Digest][]byte
	gets int
	hits int
	puts int
}

func newCountingCache() *countingCache {
	return &countingCache{data: make(map[digest.Digest][]byte)}
}

func (c *countingCache) Get(d digest.Digest) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	data, ok := c.data[d]
	if ok {
		c.hits++
	}
	return data, ok
}

func (c *countingCache) Put(d digest.Digest, content []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.puts++
	c.data[d] = content
	return nil
}

func (c *countingCache) Delete(d digest.Digest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, d)
	return nil
}

func TestLoaderCache(t *testing.T) {
	t.Parallel()

	packed := bundle(t, encode.CompressionZstd)
	fsys := fstest.MapFS{
		"a.sres": {Data: packed},
		"b.sres": {Data: packed},
		"p.sres": {Data: bundle(t, encode.CompressionNone)},
	}
	c := newCountingCache()
	l := loader.New(fsys, loader.WithCache(c))

	first, err := l.ReadFile("a.sres")
	require.NoError(t, err)
	second, err := l.ReadFile("b.sres")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, c.puts)
	assert.Equal(t, 1, c.hits)

	_, err = l.ReadFile("p.sres")
	require.NoError(t, err)
	assert.Equal(t, 1, c.puts, "plain files bypass the cache")

	cached, ok := c.data[digest.FromBytes(packed)]
	require.True(t, ok)
	assert.Equal(t, first, cached)
}

func TestLoaderDiskCache(t *testing.T) {
	t.Parallel()

	dc, err := disk.New(t.TempDir())
	require.NoError(t, err)
	fsys := fstest.MapFS{"x/en.sres": {Data: bundle(t, encode.CompressionLZ4)}}

	l := loader.New(fsys, loader.WithCache(dc), loader.WithDecoderConcurrency(2), loader.WithDecoderLowmem(true))
	r := sres.NewReader(l)
	for range 2 {
		tbl, ok, err := r.LoadTable("x", "en")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, 2, tbl.Len())
	}
	assert.Positive(t, dc.SizeBytes())
}

func TestLoaderConcurrentOpens(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{"z.sres": {Data: bundle(t, encode.CompressionZstd)}}
	l := loader.New(fsys, loader.WithCache(newCountingCache()), loader.WithMaxDecoderMemory(8<<20))

	var wg sync.WaitGroup
	for range 16 {
		wg.Go(func() {
			rc, err := l.Open("z.sres")
			if !assert.NoError(t, err) {
				return
			}
			defer rc.Close()
			data, err := io.ReadAll(rc)
			assert.NoError(t, err)
			assert.NotEmpty(t, data)
		})
	}
	wg.Wait()
}

func TestNewDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, err := encode.New(encode.WithCompression(encode.CompressionZstd)).Write(
		encode.DirSink{Dir: dir}, "com.example", "en",
		sres.NewTable(sres.Entry{Key: "k", Value: sres.Int32(9)}),
	)
	require.NoError(t, err)

	l, err := loader.NewDir(dir)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, l.Close()) })

	tbl, ok, err := sres.NewReader(l).LoadTable("com.example", "en")
	require.NoError(t, err)
	require.True(t, ok)
	v, err := tbl.GetInt("k")
	require.NoError(t, err)
	assert.Equal(t, int32(9), v)

	_, ok, err = sres.NewReader(l).Load("com.example", "fr")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = l.Open("../escape.sres")
	require.Error(t, err)
}

func TestNewDirRefusesSymlinks(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "real.sres"), bundle(t, encode.CompressionNone), 0o600))
	if err := os.Symlink("real.sres", filepath.Join(dir, "link.sres")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	l, err := loader.NewDir(dir)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	_, err = l.Open("link.sres")
	require.Error(t, err)
	assert.False(t, errors.Is(err, fs.ErrNotExist))

	_, err = loader.NewDir(filepath.Join(dir, "missing"))
	require.Error(t, err)
}
