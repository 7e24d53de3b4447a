package sres

import (
	"bytes"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/sres/internal/testutil"
	"github.com/meigma/sres/internal/wire"
)

func TestPoolAddressing(t *testing.T) {
	t.Parallel()

	p := pool{first: []string{"a", "b"}, second: []string{"c"}}
	for i, want := range []string{"a", "b", "c"} {
		got, err := p.at(uint32(i))
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := p.at(3)
	require.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestLoadTableEndToEnd(t *testing.T) {
	t.Parallel()

	file := fixture{
		keys: []string{"one", "two"},
		utf8: []string{"x"},
		body: func(w *wire.Writer) {
			tableHeader(w, 2)
			w.WriteVaruint(0)
			stringValue(w, 0)
			w.WriteVaruint(1)
			int32Value(w, 42)
		},
	}.bytes()
	r := NewReader(testutil.NewMapLoader(map[string][]byte{"data/en.sres": file}))

	tbl, ok, err := r.LoadTable("data", "en")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, tbl.Len())

	one, ok := tbl.Get("one")
	require.True(t, ok)
	assert.Equal(t, String("x"), one)

	two, ok := tbl.Get("two")
	require.True(t, ok)
	assert.Equal(t, Int32(42), two)
}

func TestLoadAllKinds(t *testing.T) {
	t.Parallel()

	file := fixture{
		keys:  []string{"k"},
		utf8:  []string{"plain"},
		utf16: []string{"日本語"},
		body: func(w *wire.Writer) {
			w.Byte(wire.TagObjectArray)
			w.WriteVaruint(9)
			stringValue(w, 1)
			w.Byte(wire.TagInt16)
			w.WriteInt16(-1)
			int32Value(w, -70000)
			w.Byte(wire.TagByteArray)
			w.WriteRun([]byte{1, 2, 3})
			w.Byte(wire.TagInt16Array)
			w.WriteVaruint(2)
			w.WriteInt16(0x7fff)
			w.WriteInt16(-2)
			w.Byte(wire.TagInt32Array)
			w.WriteVaruint(1)
			w.WriteInt32(1 << 20)
			w.Byte(wire.TagStringArray)
			w.WriteVaruint(2)
			w.WriteVaruint(0)
			w.WriteVaruint(1)
			w.Byte(wire.TagAlias)
			w.WriteVaruint(0)
			tableHeader(w, 1)
			w.WriteVaruint(0)
			w.Byte(wire.TagAuxiliary)
			w.WriteVaruint(7)
		},
	}.bytes()
	r := NewReader(testutil.NewMapLoader(map[string][]byte{"b/n.sres": file}))

	res, ok, err := r.Load("b", "n")
	require.NoError(t, err)
	require.True(t, ok)

	want := NewArray(
		String("日本語"),
		Int16(-1),
		Int32(-70000),
		Bytes{1, 2, 3},
		Int16Array{32767, -2},
		Int32Array{1 << 20},
		StringArray{"plain", "日本語"},
		Alias("plain"),
		NewTable(Entry{Key: "k", Value: newAuxiliary(nil, Origin{Base: "b", Name: "n"}, 7)}),
	)
	assert.True(t, Equal(want, res), "decoded %#v", res)
}

func TestLoadNotFound(t *testing.T) {
	t.Parallel()

	r := NewReader(testutil.NewMapLoader(nil))
	res, ok, err := r.Load("data", "missing")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, res)
}

func TestLoadUnrecognizedSection(t *testing.T) {
	t.Parallel()

	w := wire.NewWriter()
	w.WriteUint32(0)
	w.Byte('Z')
	r := NewReader(testutil.NewMapLoader(map[string][]byte{"root.sres": w.Bytes()}))

	_, ok, err := r.Load("", "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoadHeaderOnly(t *testing.T) {
	t.Parallel()

	w := wire.NewWriter()
	w.WriteUint32(0)
	r := NewReader(testutil.NewMapLoader(map[string][]byte{"root.sres": w.Bytes()}))

	_, ok, err := r.Load("", "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()

	full := fixture{
		utf8: []string{"abc"},
		body: func(w *wire.Writer) {
			w.Byte(wire.TagByteArray)
			w.WriteRun([]byte("0123456789"))
		},
	}.bytes()

	tests := []struct {
		name string
		file []byte
		want error
	}{
		{
			name: "truncated header",
			file: []byte{0, 0},
			want: ErrTruncatedInput,
		},
		{
			name: "truncated byte run",
			file: full[:len(full)-3],
			want: ErrTruncatedInput,
		},
		{
			name: "missing root resource",
			file: fixture{}.bytes(),
			want: ErrTruncatedInput,
		},
		{
			name: "unknown tag",
			file: fixture{body: func(w *wire.Writer) { w.Byte(0x7f) }}.bytes(),
			want: ErrUnknownResourceTag,
		},
		{
			name: "string index out of range",
			file: fixture{utf8: []string{"a"}, body: func(w *wire.Writer) { stringValue(w, 1) }}.bytes(),
			want: ErrIndexOutOfRange,
		},
		{
			name: "key index out of range",
			file: fixture{keys: []string{"a"}, body: func(w *wire.Writer) {
				tableHeader(w, 1)
				w.WriteVaruint(5)
				int32Value(w, 1)
			}}.bytes(),
			want: ErrIndexOutOfRange,
		},
		{
			name: "varuint overflow",
			file: fixture{body: func(w *wire.Writer) {
				w.Byte(wire.TagByteArray)
				w.WriteBytes([]byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x00})
			}}.bytes(),
			want: ErrVaruintOverflow,
		},
		{
			name: "malformed utf-8 pool",
			file: fixture{utf8: []string{"\xc3("}, body: func(w *wire.Writer) { stringValue(w, 0) }}.bytes(),
			want: ErrInvalidUTF8,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := NewReader(testutil.NewMapLoader(map[string][]byte{"x/y.sres": tt.file}))

			_, ok, err := r.Load("x", "y")
			require.ErrorIs(t, err, tt.want)
			assert.False(t, ok)

			var de *DecodeError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, "x/y.sres", de.Name)
		})
	}
}

func TestLoadMaxDepth(t *testing.T) {
	t.Parallel()

	file := fixture{body: func(w *wire.Writer) {
		for range 3 {
			w.Byte(wire.TagObjectArray)
			w.WriteVaruint(1)
		}
		int32Value(w, 1)
	}}.bytes()
	loader := testutil.NewMapLoader(map[string][]byte{"root.sres": file})

	_, _, err := NewReader(loader, WithMaxDepth(2)).Load("", "")
	require.ErrorIs(t, err, ErrMaxDepth)

	_, ok, err := NewReader(loader, WithMaxDepth(3)).Load("", "")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLoadShortReads(t *testing.T) {
	t.Parallel()

	payload := bytes.Repeat([]byte{0xab}, 300)
	file := fixture{
		utf16: []string{"wide"},
		body: func(w *wire.Writer) {
			w.Byte(wire.TagObjectArray)
			w.WriteVaruint(2)
			w.Byte(wire.TagByteArray)
			w.WriteRun(payload)
			stringValue(w, 0)
		},
	}.bytes()
	r := NewReader(testutil.NewMapLoader(map[string][]byte{"root.sres": file}).WithShortReads())

	res, ok, err := r.Load("", "")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, Equal(NewArray(Bytes(payload), String("wide")), res))
}

func TestLoadTableRejectsOtherRoot(t *testing.T) {
	t.Parallel()

	file := fixture{body: func(w *wire.Writer) { int32Value(w, 1) }}.bytes()
	r := NewReader(testutil.NewMapLoader(map[string][]byte{"root.sres": file}))

	_, ok, err := r.LoadTable("", "")
	require.ErrorIs(t, err, ErrTypeMismatch)
	assert.False(t, ok)
}

func TestLoadLoaderError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	r := NewReader(testutil.FailingLoader{Err: boom})

	_, _, err := r.Load("a", "b")
	require.ErrorIs(t, err, boom)
}

func sharedKeyBundle(t *testing.T) []byte {
	t.Helper()
	return fixture{
		flags: wire.FlagSharedKeys,
		keys:  []string{"local"},
		body: func(w *wire.Writer) {
			tableHeader(w, 2)
			w.WriteVaruint(0)
			int32Value(w, 1)
			w.WriteVaruint(1) // first shared key
			int32Value(w, 2)
		},
	}.bytes()
}

func TestSharedPoolLoadedOnce(t *testing.T) {
	t.Parallel()

	files := testutil.NewMapLoader(map[string][]byte{
		"data/pool.sres": sharedPoolFile("shared"),
		"data/a.sres":    sharedKeyBundle(t),
		"data/b.sres":    sharedKeyBundle(t),
	})
	counting := testutil.NewCountingLoader(files)
	r := NewReader(counting)

	for _, name := range []string{"a", "b", "a"} {
		tbl, ok, err := r.LoadTable("data", name)
		require.NoError(t, err)
		require.True(t, ok)

		v, err := tbl.GetInt("shared")
		require.NoError(t, err)
		assert.Equal(t, int32(2), v)

		v, err = tbl.GetInt("local")
		require.NoError(t, err)
		assert.Equal(t, int32(1), v)
	}
	assert.Equal(t, 1, counting.Count("data/pool.sres"))
	assert.Equal(t, 1, r.pools.Len())

	keys, err := r.SharedKeys("data")
	require.NoError(t, err)
	assert.Equal(t, []string{"shared"}, keys)
}

func TestSharedPoolConcurrentLoads(t *testing.T) {
	t.Parallel()

	files := testutil.NewMapLoader(map[string][]byte{
		"data/pool.sres": sharedPoolFile("shared"),
		"data/a.sres":    sharedKeyBundle(t),
	})
	counting := testutil.NewCountingLoader(files)
	cache := NewPoolCache()

	var wg sync.WaitGroup
	for range 16 {
		wg.Go(func() {
			r := NewReader(counting, WithPoolCache(cache))
			_, ok, err := r.Load("data", "a")
			assert.NoError(t, err)
			assert.True(t, ok)
		})
	}
	wg.Wait()

	assert.Equal(t, 1, cache.Len())
	assert.LessOrEqual(t, counting.Count("data/pool.sres"), 16)

	cache.Purge()
	assert.Equal(t, 0, cache.Len())
}

func TestSharedPoolMissing(t *testing.T) {
	t.Parallel()

	r := NewReader(testutil.NewMapLoader(map[string][]byte{"data/a.sres": sharedKeyBundle(t)}))
	_, _, err := r.Load("data", "a")
	require.ErrorIs(t, err, ErrMissingSharedPool)

	r = NewReader(testutil.NewMapLoader(map[string][]byte{
		"data/pool.sres": {wire.SectionStringsUTF8, 0},
		"data/a.sres":    sharedKeyBundle(t),
	}))
	_, _, err = r.Load("data", "a")
	require.ErrorIs(t, err, ErrMissingSharedPool)
}

func TestSharedPoolFailureNotCached(t *testing.T) {
	t.Parallel()

	files := testutil.NewMapLoader(map[string][]byte{"data/a.sres": sharedKeyBundle(t)})
	r := NewReader(files)

	_, _, err := r.Load("data", "a")
	require.ErrorIs(t, err, ErrMissingSharedPool)

	files.Put("data/pool.sres", sharedPoolFile("shared"))
	_, ok, err := r.Load("data", "a")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReaderLogsDebugEvents(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	r := NewReader(testutil.NewMapLoader(nil), WithLogger(logger))

	_, ok, err := r.Load("data", "gone")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, buf.String(), "bundle not found")
	assert.Contains(t, buf.String(), "data/gone.sres")
}
