package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/fxamacker/cbor/v2"
	"gopkg.in/yaml.v3"

	"github.com/meigma/sres"
	"github.com/meigma/sres/cache/disk"
	sreshttp "github.com/meigma/sres/http"
	"github.com/meigma/sres/internal/convert"
	"github.com/meigma/sres/loader"
)

const (
	formatYAML = "yaml"
	formatJSON = "json"
	formatCBOR = "cbor"
)

type dumpConfig struct {
	dir         string
	url         string
	format      string
	resolve     bool
	cacheDir    string
	cacheMax    int64
	maxFileSize uint64
	maxDepth    int
	verbose     bool
	base        string
	name        string
}

func runDump(args []string, stdout, stderr io.Writer) error {
	var cfg dumpConfig
	flagSet := newFlagSet("dump", "sres dump [flags] <base> <name>", stderr)
	flagSet.StringVarP(&cfg.dir, "dir", "d", ".", "directory holding the bundle tree")
	flagSet.StringVar(&cfg.url, "url", "", "fetch bundle files from this base URL instead of --dir")
	flagSet.StringVarP(&cfg.format, "format", "f", formatYAML, "output format: yaml, json or cbor")
	flagSet.BoolVar(&cfg.resolve, "resolve", false, "inline auxiliary files instead of naming them")
	flagSet.StringVar(&cfg.cacheDir, "cache-dir", "", "keep decompressed files in this directory")
	flagSet.Int64Var(&cfg.cacheMax, "cache-max-bytes", 0, "disk cache size limit (0 for unlimited)")
	flagSet.Uint64Var(&cfg.maxFileSize, "max-file-size", loader.DefaultMaxFileSize, "largest stored or decompressed file accepted")
	flagSet.IntVar(&cfg.maxDepth, "max-depth", sres.DefaultMaxDepth, "container nesting limit")
	flagSet.BoolVarP(&cfg.verbose, "verbose", "v", false, "log debug output to stderr")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if flagSet.NArg() != 2 {
		flagSet.Usage()
		return fmt.Errorf("dump expects <base> <name>, got %d arguments", flagSet.NArg())
	}
	cfg.base, cfg.name = flagSet.Arg(0), flagSet.Arg(1)
	return dump(&cfg, stdout, newLogger(stderr, cfg.verbose))
}

func dump(cfg *dumpConfig, stdout io.Writer, logger *slog.Logger) error {
	switch cfg.format {
	case formatYAML, formatJSON, formatCBOR:
	default:
		return fmt.Errorf("unknown format %q", cfg.format)
	}

	opts := []loader.Option{
		loader.WithLogger(logger),
		loader.WithMaxFileSize(cfg.maxFileSize),
	}
	if cfg.cacheDir != "" {
		c, err := disk.New(cfg.cacheDir, disk.WithMaxBytes(cfg.cacheMax))
		if err != nil {
			return fmt.Errorf("open cache: %w", err)
		}
		opts = append(opts, loader.WithCache(c))
	}
	ld, err := openLoader(cfg, opts)
	if err != nil {
		return err
	}
	defer ld.Close()

	reader := sres.NewReader(ld, sres.WithLogger(logger), sres.WithMaxDepth(cfg.maxDepth))
	root, ok, err := reader.Load(cfg.base, cfg.name)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("bundle %s not found", sres.FullName(cfg.base, cfg.name))
	}
	return writeResource(stdout, cfg.format, root, cfg.resolve)
}

func openLoader(cfg *dumpConfig, opts []loader.Option) (*loader.Loader, error) {
	if cfg.url == "" {
		return loader.NewDir(cfg.dir, opts...)
	}
	fsys, err := sreshttp.NewFS(cfg.url)
	if err != nil {
		return nil, err
	}
	return loader.New(fsys, opts...), nil
}

func writeResource(w io.Writer, format string, root sres.Resource, resolve bool) error {
	if format == formatYAML {
		n, err := convert.ToYAML(root, resolve)
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(&yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{n}}); err != nil {
			return err
		}
		return enc.Close()
	}

	native, err := convert.ToNative(root, resolve)
	if err != nil {
		return err
	}
	if format == formatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(native)
	}
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return err
	}
	return em.NewEncoder(w).Encode(native)
}
