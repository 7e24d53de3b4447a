package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/meigma/sres"
	"github.com/meigma/sres/encode"
	"github.com/meigma/sres/internal/convert"
)

type buildConfig struct {
	out         string
	base        string
	sharedMin   int
	externalize bool
	compression string
	verbose     bool
	inputs      []string
}

func runBuild(args []string, stdout, stderr io.Writer) error {
	var cfg buildConfig
	flagSet := newFlagSet("build", "sres build [flags] <file.yaml>...", stderr)
	flagSet.StringVarP(&cfg.out, "out", "o", ".", "output directory")
	flagSet.StringVarP(&cfg.base, "base", "b", "", "bundle base path inside the output directory")
	flagSet.IntVar(&cfg.sharedMin, "shared-min", 0, "move keys used by at least this many tables into the shared pool (0 disables)")
	flagSet.BoolVar(&cfg.externalize, "externalize", false, "store each top-level table or array in an auxiliary file")
	flagSet.StringVarP(&cfg.compression, "compression", "c", "none", "file compression: none, zstd or lz4")
	flagSet.BoolVarP(&cfg.verbose, "verbose", "v", false, "log each written file to stderr")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if flagSet.NArg() == 0 {
		flagSet.Usage()
		return errors.New("build expects at least one input file")
	}
	cfg.inputs = flagSet.Args()

	return build(&cfg, stdout, newLogger(stderr, cfg.verbose))
}

type bundleInput struct {
	name string
	root sres.Resource
}

func build(cfg *buildConfig, stdout io.Writer, logger *slog.Logger) error {
	compression, err := encode.ParseCompression(cfg.compression)
	if err != nil {
		return err
	}

	inputs := make([]bundleInput, 0, len(cfg.inputs))
	roots := make([]sres.Resource, 0, len(cfg.inputs))
	for _, path := range cfg.inputs {
		root, err := readYAML(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		inputs = append(inputs, bundleInput{name: name, root: root})
		roots = append(roots, root)
	}

	opts := []encode.Option{
		encode.WithCompression(compression),
		encode.WithLogger(logger),
	}
	if cfg.externalize {
		opts = append(opts, encode.WithFilter(encode.ExternalizeTopLevel))
	}
	if cfg.sharedMin > 0 {
		keys, err := encode.CommonKeys(roots, cfg.sharedMin)
		if err != nil {
			return err
		}
		opts = append(opts, encode.WithSharedKeys(keys))
	}
	enc := encode.New(opts...)

	sink := encode.DirSink{Dir: cfg.out}
	var total encode.Stats
	for _, in := range inputs {
		stats, err := enc.Write(sink, cfg.base, in.name, in.root)
		if err != nil {
			return fmt.Errorf("%s: %w", in.name, err)
		}
		total.Files += stats.Files
		total.Bytes += stats.Bytes
	}
	if len(enc.SharedKeys()) > 0 {
		if err := enc.WriteSharedKeys(sink, cfg.base); err != nil {
			return err
		}
		total.Files++
	}

	fmt.Fprintf(stdout, "bundles=%d files=%d bytes=%d shared_keys=%d\n",
		len(inputs), total.Files, total.Bytes, len(enc.SharedKeys()))
	return nil
}

func readYAML(path string) (sres.Resource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var n yaml.Node
	if err := yaml.Unmarshal(data, &n); err != nil {
		return nil, err
	}
	if n.Kind == 0 {
		return nil, errors.New("empty document")
	}
	return convert.FromYAML(&n)
}
