package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/weaver/il"
	"github.com/wippyai/weaver/weave"
)

type options struct {
	config      string
	output      string
	search      string
	matching    string
	capability  string
	handlers    string
	noVerify    bool
	verbose     bool
	dryRun      bool
	list        bool
	interactive bool
}

func main() {
	var opts options
	flag.StringVar(&opts.config, "config", "", "Path to the config file (default ./"+weave.ConfigFile+" when present)")
	flag.StringVar(&opts.output, "o", "", "Write the woven module here instead of overwriting the input")
	flag.StringVar(&opts.search, "search", "", "Search path for referenced modules (path-list separated)")
	flag.StringVar(&opts.matching, "match", "", "Handler matching: structural, base-type or exact")
	flag.StringVar(&opts.capability, "capability", "", "Capability base type for base-type matching")
	flag.StringVar(&opts.handlers, "handlers", "", "Handler types for exact matching (comma-separated)")
	flag.BoolVar(&opts.noVerify, "no-verify", false, "Skip stack verification of woven methods")
	flag.BoolVar(&opts.verbose, "v", false, "Verbose (debug) logging")
	flag.BoolVar(&opts.dryRun, "dry-run", false, "Weave in memory and report without writing")
	flag.BoolVar(&opts.list, "list", false, "List qualifying methods and exit")
	flag.BoolVar(&opts.interactive, "i", false, "Interactive mode with TUI")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Usage: weave [flags] <module.ilm>...")
		fmt.Fprintln(os.Stderr, "       weave -list <module.ilm>")
		fmt.Fprintln(os.Stderr, "       weave -i <module.ilm>  (interactive mode)")
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg, err := configure(opts, os.LookupEnv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if opts.interactive {
		if err := runInteractive(flag.Arg(0), cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	log, err := newLogger(cfg.Log.Level, opts.verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	weave.SetLogger(log)

	if cfg.Output != "" && flag.NArg() > 1 {
		fmt.Fprintln(os.Stderr, "Error: -o requires a single input module")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	failed := false
	for _, path := range flag.Args() {
		if err := run(ctx, path, cfg, opts); err != nil {
			log.Error("weave failed", zap.String("module", path), zap.Error(err))
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

// configure layers flags over the config file (or defaults) and the
// environment. Without -config, ./weaver.toml is used if it exists.
// Priority: flags > env vars > TOML file > defaults
func configure(opts options, lookup func(string) (string, bool)) (weave.Config, error) {
	cfg := weave.DefaultConfig()
	path := opts.config
	if path == "" {
		if _, err := os.Stat(weave.ConfigFile); err == nil {
			path = weave.ConfigFile
		}
	}
	if path != "" {
		loaded, err := weave.LoadConfig(path)
		if err != nil {
			return weave.Config{}, err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(lookup); err != nil {
		return weave.Config{}, err
	}

	if opts.output != "" {
		cfg.Output = opts.output
	}
	if opts.search != "" {
		cfg.SearchPaths = append(filepath.SplitList(opts.search), cfg.SearchPaths...)
	}
	if opts.matching != "" {
		cfg.Matching = opts.matching
	}
	if opts.capability != "" {
		cfg.Capability = opts.capability
	}
	if opts.handlers != "" {
		cfg.Handlers = nil
		for _, h := range strings.Split(opts.handlers, ",") {
			if h = strings.TrimSpace(h); h != "" {
				cfg.Handlers = append(cfg.Handlers, h)
			}
		}
	}
	if opts.noVerify {
		cfg.Verify = false
	}
	return cfg, nil
}

func run(ctx context.Context, path string, cfg weave.Config, opts options) error {
	if opts.list || opts.dryRun {
		m, err := il.ReadFile(path)
		if err != nil {
			return err
		}
		if cfg.Resolver == nil {
			cfg.Resolver = il.NewResolver(append(append([]string(nil), cfg.SearchPaths...), filepath.Dir(path))...)
		}

		if opts.list {
			targets, skipped, err := weave.List(m, cfg)
			if err != nil {
				return err
			}
			fmt.Printf("Module: %s (%s)\n", m.Name, path)
			fmt.Printf("\nQualifying methods: %d\n", len(targets))
			for _, t := range targets {
				fmt.Printf("  %s  <- %s\n", t.Method, t.Handler)
			}
			printSkipped(skipped)
			return nil
		}

		report, err := weave.Apply(m, cfg)
		if err != nil {
			return err
		}
		printReport(path, report, true)
		return nil
	}

	report, err := weave.Weave(ctx, path, cfg)
	if err != nil {
		return err
	}
	printReport(path, report, false)
	return nil
}

func printReport(path string, r *weave.Report, dryRun bool) {
	fmt.Printf("Module: %s (%s)\n", r.Module, path)
	fmt.Printf("\nWoven methods: %d\n", len(r.Woven))
	for _, w := range r.Woven {
		fmt.Printf("  %s  <- %s\n", w.Method, w.Handler)
	}
	printSkipped(r.Skipped)
	switch {
	case dryRun:
		fmt.Printf("\nDry run: nothing written.\n")
	case r.Output != "":
		fmt.Printf("\nWritten: %s\n", r.Output)
	}
}

func printSkipped(skipped []weave.Skip) {
	if len(skipped) == 0 {
		return
	}
	fmt.Printf("\nSkipped annotations: %d\n", len(skipped))
	for _, s := range skipped {
		fmt.Printf("  %s on %s: %v\n", s.Annotation, s.Method, s.Err)
	}
}
