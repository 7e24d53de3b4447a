package main

import (
	"errors"
	"fmt"
	"log"
	"math/rand" //nolint:gosec // intentional use for reproducible benchmarks
	"net/http"
	_ "net/http/pprof" //nolint:gosec // intentional profiling endpoint
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
	"strconv"
	"time"

	"github.com/felixge/fgprof"
	"github.com/spf13/pflag"

	"github.com/meigma/sres"
	"github.com/meigma/sres/cache/disk"
	"github.com/meigma/sres/encode"
	"github.com/meigma/sres/loader"
)

const (
	cacheNone  = "none"
	bundleBase = "data"
)

type config struct {
	mode        string
	bundles     int
	keys        int
	depth       int
	valueSize   int
	sharedKeys  bool
	externalize bool
	compression string
	fgProfile   string
	duration    time.Duration
	iterations  int
	pprofAddr   string
	cpuProfile  string
	memProfile  string
	traceFile   string
	cache       string
	cacheDir    string
	readRandom  bool
	tempDir     string
	keepTemp    bool
	randomSeed  int64
}

//nolint:unused // sink variables prevent compiler optimizations in profiling
var (
	sinkResource sres.Resource
	sinkCount    int
)

//nolint:gocognit,gocyclo // main function complexity is acceptable for CLI tool
func main() {
	cfg := parseFlags()

	if cfg.pprofAddr != "" {
		go func() {
			log.Printf("pprof listening on %s", cfg.pprofAddr)
			//nolint:gosec // intentional pprof server without timeouts for profiling
			if err := http.ListenAndServe(cfg.pprofAddr, nil); err != nil {
				log.Printf("pprof server error: %v", err)
			}
		}()
	}

	dir, cleanup, err := setupTempDir(cfg)
	if err != nil {
		log.Fatal(err)
	}
	if cleanup != nil {
		defer cleanup() //nolint:errcheck // cleanup errors are non-fatal in profiler
	}

	names, roots, err := writeBundles(dir, cfg)
	if err != nil {
		log.Fatal(err) //nolint:gocritic // exitAfterDefer is intentional - cleanup is best-effort
	}

	var stopFG func() error
	if cfg.fgProfile != "" {
		fgFile, fgErr := os.Create(cfg.fgProfile)
		if fgErr != nil {
			log.Fatal(fgErr)
		}
		stopFG = fgprof.Start(fgFile, fgprof.FormatPprof)
		defer func() {
			if err := stopFG(); err != nil {
				log.Printf("fgprof stop error: %v", err)
			}
			_ = fgFile.Close()
		}()
	}

	if cfg.cpuProfile != "" {
		cpuFile, cpuErr := os.Create(cfg.cpuProfile)
		if cpuErr != nil {
			log.Fatal(cpuErr)
		}
		if cpuErr = pprof.StartCPUProfile(cpuFile); cpuErr != nil {
			log.Fatal(cpuErr)
		}
		defer func() {
			pprof.StopCPUProfile()
			_ = cpuFile.Close()
		}()
	}

	if cfg.traceFile != "" {
		traceFile, traceErr := os.Create(cfg.traceFile)
		if traceErr != nil {
			log.Fatal(traceErr)
		}
		if traceErr = trace.Start(traceFile); traceErr != nil {
			log.Fatal(traceErr)
		}
		defer func() {
			trace.Stop()
			_ = traceFile.Close()
		}()
	}

	stats, err := runProfile(cfg, dir, names, roots)
	if err != nil {
		log.Fatal(err)
	}

	if cfg.memProfile != "" {
		runtime.GC()
		f, err := os.Create(cfg.memProfile)
		if err != nil {
			log.Fatal(err)
		}
		if err := pprof.WriteHeapProfile(f); err != nil {
			log.Fatal(err)
		}
		_ = f.Close()
	}

	fmt.Printf("mode=%s ops=%d resources=%d elapsed=%s rate=%.0f ops/s\n",
		cfg.mode,
		stats.ops,
		stats.resources,
		stats.elapsed,
		float64(stats.ops)/stats.elapsed.Seconds(),
	)
}

type profileStats struct {
	ops       int
	resources int
	elapsed   time.Duration
}

//nolint:gocognit,gocyclo,gocritic // complexity is inherent to multi-mode profiler dispatch; hugeParam acceptable for profiler
func runProfile(cfg config, dir string, names []string, roots []sres.Resource) (profileStats, error) {
	start := time.Now()
	ops := 0
	resources := 0

	shouldContinue := func() bool {
		if cfg.iterations > 0 {
			return ops < cfg.iterations
		}
		return time.Since(start) < cfg.duration
	}

	ld, cleanup, err := newLoader(cfg, dir)
	if err != nil {
		return profileStats{}, err
	}
	defer cleanup() //nolint:errcheck // cleanup errors are non-fatal in profiler

	rng := rand.New(rand.NewSource(cfg.randomSeed)) //nolint:gosec // intentional for reproducible benchmarks

	switch cfg.mode {
	case "load-cold":
		// A new reader per load decodes the shared key pool every time.
		for shouldContinue() {
			name := pickName(names, ops, rng, cfg.readRandom)
			root, ok, err := sres.NewReader(ld).Load(bundleBase, name)
			if err != nil {
				return profileStats{}, err
			}
			if !ok {
				return profileStats{}, fmt.Errorf("missing bundle %q", name)
			}
			sinkResource = root
			ops++
		}

	case "load":
		reader := sres.NewReader(ld, sres.WithPoolCache(sres.NewPoolCache()))
		for shouldContinue() {
			name := pickName(names, ops, rng, cfg.readRandom)
			root, ok, err := reader.Load(bundleBase, name)
			if err != nil {
				return profileStats{}, err
			}
			if !ok {
				return profileStats{}, fmt.Errorf("missing bundle %q", name)
			}
			sinkResource = root
			ops++
		}

	case "walk":
		reader := sres.NewReader(ld)
		tables := make([]*sres.Table, 0, len(names))
		for _, name := range names {
			t, ok, err := reader.LoadTable(bundleBase, name)
			if err != nil {
				return profileStats{}, err
			}
			if !ok {
				return profileStats{}, fmt.Errorf("missing bundle %q", name)
			}
			tables = append(tables, t)
		}
		start = time.Now()
		for shouldContinue() {
			t := tables[pickIndex(len(tables), ops, rng, cfg.readRandom)]
			n, err := walk(t)
			if err != nil {
				return profileStats{}, err
			}
			resources += n
			ops++
		}

	case "lookup":
		reader := sres.NewReader(ld)
		t, ok, err := reader.LoadTable(bundleBase, names[0])
		if err != nil {
			return profileStats{}, err
		}
		if !ok {
			return profileStats{}, fmt.Errorf("missing bundle %q", names[0])
		}
		keys := make([]string, 0, t.Len())
		for k := range t.Keys() {
			keys = append(keys, k)
		}
		start = time.Now()
		for shouldContinue() {
			v, err := t.Lookup(keys[pickIndex(len(keys), ops, rng, cfg.readRandom)])
			if err != nil {
				return profileStats{}, err
			}
			sinkResource = v
			ops++
		}

	case "encode":
		enc := newEncoder(cfg, roots)
		for shouldContinue() {
			sink := encode.NewMemSink()
			i := pickIndex(len(roots), ops, rng, cfg.readRandom)
			stats, err := enc.Write(sink, bundleBase, names[i], roots[i])
			if err != nil {
				return profileStats{}, err
			}
			resources += stats.Files
			ops++
		}

	default:
		return profileStats{}, fmt.Errorf("unknown mode: %s", cfg.mode)
	}

	return profileStats{
		ops:       ops,
		resources: resources,
		elapsed:   time.Since(start),
	}, nil
}

// walk visits every resource below r, resolving auxiliary files, and
// returns the number visited.
func walk(r sres.Resource) (int, error) {
	r, err := sres.Resolve(r)
	if err != nil {
		return 0, err
	}
	count := 1
	switch v := r.(type) {
	case *sres.Table:
		for _, value := range v.All() {
			n, err := walk(value)
			if err != nil {
				return 0, err
			}
			count += n
		}
	case *sres.Array:
		for _, item := range v.All() {
			n, err := walk(item)
			if err != nil {
				return 0, err
			}
			count += n
		}
	}
	return count, nil
}

func parseFlags() config {
	var cfg config
	flag := pflag.CommandLine
	flag.StringVar(&cfg.mode, "mode", "load", "mode: load, load-cold, walk, lookup, encode")
	flag.IntVar(&cfg.bundles, "bundles", 16, "number of bundles")
	flag.IntVar(&cfg.keys, "keys", 256, "keys per table")
	flag.IntVar(&cfg.depth, "depth", 2, "table nesting depth")
	flag.IntVar(&cfg.valueSize, "value-size", 24, "string value length in characters")
	flag.BoolVar(&cfg.sharedKeys, "shared-keys", true, "move keys common to all bundles into the shared pool")
	flag.BoolVar(&cfg.externalize, "externalize", false, "store top-level tables in auxiliary files")
	flag.StringVar(&cfg.compression, "compression", "zstd", "compression: none, zstd or lz4")
	flag.StringVar(&cfg.fgProfile, "fgprofile", "", "write fgprof (wall clock) profile to file")
	flag.DurationVar(&cfg.duration, "duration", 10*time.Second, "duration to run (ignored if iterations > 0)")
	flag.IntVar(&cfg.iterations, "iterations", 0, "number of iterations to run")
	flag.StringVar(&cfg.pprofAddr, "pprof-addr", "", "pprof listen address (e.g. :6060)")
	flag.StringVar(&cfg.cpuProfile, "cpuprofile", "", "write CPU profile to file")
	flag.StringVar(&cfg.memProfile, "memprofile", "", "write heap profile to file")
	flag.StringVar(&cfg.traceFile, "trace", "", "write trace to file")
	flag.StringVar(&cfg.cache, "cache", cacheNone, "decompressed content cache: disk or none")
	flag.StringVar(&cfg.cacheDir, "cache-dir", "", "cache directory (disk cache only)")
	flag.BoolVar(&cfg.readRandom, "read-random", true, "randomize bundle and key selection")
	flag.StringVar(&cfg.tempDir, "temp-dir", "", "directory to use for generated bundles")
	flag.BoolVar(&cfg.keepTemp, "keep-temp", false, "keep temp dir after run")
	flag.Int64Var(&cfg.randomSeed, "seed", 1, "random seed")
	pflag.Parse()
	return cfg
}

func pickIndex(n, idx int, rng *rand.Rand, random bool) int {
	if random {
		return rng.Intn(n)
	}
	return idx % n
}

func pickName(names []string, idx int, rng *rand.Rand, random bool) string {
	return names[pickIndex(len(names), idx, rng, random)]
}

//nolint:gocritic // hugeParam acceptable for config struct in CLI tool
func setupTempDir(cfg config) (string, func() error, error) {
	if cfg.tempDir != "" {
		return cfg.tempDir, nil, os.MkdirAll(cfg.tempDir, 0o755) //nolint:gosec // 0o755 is intentional for profiler temp dirs
	}
	dir, err := os.MkdirTemp("", "sres-profiler-*")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() error {
		if cfg.keepTemp {
			return nil
		}
		return os.RemoveAll(dir)
	}
	return dir, cleanup, nil
}

// makeTable builds a table of cfg.keys entries nested cfg.depth levels deep.
// Keys repeat across bundles so the shared pool has something to hold.
func makeTable(rng *rand.Rand, keys, depth, valueSize int) *sres.Table {
	entries := make([]sres.Entry, 0, keys)
	for i := range keys {
		key := "key" + strconv.Itoa(i)
		var value sres.Resource
		switch {
		case depth > 1 && i%16 == 0:
			value = makeTable(rng, max(keys/16, 1), depth-1, valueSize)
		case i%5 == 0:
			value = encode.Int(int32(rng.Intn(1 << 20))) //nolint:gosec // bounded above
		case i%7 == 0:
			value = sres.StringArray{randomString(rng, valueSize), randomString(rng, valueSize)}
		default:
			value = sres.String(randomString(rng, valueSize))
		}
		entries = append(entries, sres.Entry{Key: key, Value: value})
	}
	return sres.NewTable(entries...)
}

func randomString(rng *rand.Rand, n int) string {
	const letters = "abcdefghijklmnopqrstuvwxyzäöüéè"
	runes := []rune(letters)
	out := make([]rune, n)
	for i := range out {
		out[i] = runes[rng.Intn(len(runes))]
	}
	return string(out)
}

//nolint:gocritic // hugeParam acceptable for config struct in CLI tool
func newEncoder(cfg config, roots []sres.Resource) *encode.Encoder {
	compression, err := encode.ParseCompression(cfg.compression)
	if err != nil {
		log.Fatal(err)
	}
	opts := []encode.Option{encode.WithCompression(compression)}
	if cfg.externalize {
		opts = append(opts, encode.WithFilter(encode.ExternalizeTopLevel))
	}
	if cfg.sharedKeys {
		keys, err := encode.CommonKeys(roots, len(roots))
		if err != nil {
			log.Fatal(err)
		}
		opts = append(opts, encode.WithSharedKeys(keys))
	}
	return encode.New(opts...)
}

//nolint:gocritic // hugeParam acceptable for config struct in CLI tool
func writeBundles(dir string, cfg config) ([]string, []sres.Resource, error) {
	if cfg.bundles <= 0 || cfg.keys <= 0 {
		return nil, nil, errors.New("bundles and keys must be positive")
	}
	rng := rand.New(rand.NewSource(cfg.randomSeed)) //nolint:gosec // intentional use for reproducible benchmarks
	names := make([]string, 0, cfg.bundles)
	roots := make([]sres.Resource, 0, cfg.bundles)
	for i := range cfg.bundles {
		names = append(names, fmt.Sprintf("b%03d", i))
		roots = append(roots, makeTable(rng, cfg.keys, cfg.depth, cfg.valueSize))
	}

	enc := newEncoder(cfg, roots)
	sink := encode.DirSink{Dir: dir}
	for i, root := range roots {
		if _, err := enc.Write(sink, bundleBase, names[i], root); err != nil {
			return nil, nil, err
		}
	}
	if len(enc.SharedKeys()) > 0 {
		if err := enc.WriteSharedKeys(sink, bundleBase); err != nil {
			return nil, nil, err
		}
	}
	return names, roots, nil
}

//nolint:gocritic // hugeParam acceptable for config struct in CLI tool
func newLoader(cfg config, rootDir string) (*loader.Loader, func() error, error) {
	var opts []loader.Option
	cleanup := func() error { return nil }
	switch cfg.cache {
	case cacheNone:
	case "disk":
		cacheDir := cfg.cacheDir
		if cacheDir == "" {
			dir, err := os.MkdirTemp(rootDir, "cache-*")
			if err != nil {
				return nil, nil, err
			}
			cacheDir = dir
			cleanup = func() error { return os.RemoveAll(dir) }
		}
		c, err := disk.New(filepath.Clean(cacheDir))
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, loader.WithCache(c))
	default:
		return nil, nil, fmt.Errorf("unknown cache: %s", cfg.cache)
	}

	ld, err := loader.NewDir(rootDir, opts...)
	if err != nil {
		_ = cleanup()
		return nil, nil, err
	}
	return ld, func() error {
		_ = ld.Close()
		return cleanup()
	}, nil
}
