package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"

	"kernelchk/internal/config"
	"kernelchk/internal/diagnostics"
	kerr "kernelchk/internal/errors"
	"kernelchk/internal/exportfmt"
	"kernelchk/internal/kernel/convert"
	"kernelchk/internal/kernel/env"
	"kernelchk/internal/kernel/pipeline"
	"kernelchk/internal/name"
	"kernelchk/internal/pretty"
)

func main() {
	threads := flag.Int("threads", -1, "checker worker count (0 or 1 forces serial)")
	printDefs := flag.Bool("print", false, "pretty-print the configured set of definitions after checking")
	printOnly := flag.String("print-only", "", "comma-separated declaration names to print (implies --print)")
	configPath := flag.String("config", "", "config file path (default: "+config.DefaultFileName+" if present)")
	verbose := flag.Int("verbose", -2, "log verbosity (0 = notices, 1 = info, 2 = debug)")
	flag.Parse()

	files := flag.Args()
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: kernelchk [flags] <export-file>...")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := resolveConfig(*configPath)
	if err != nil {
		color.Red("Failed to read config: %s", err)
		os.Exit(1)
	}
	if *threads >= 0 {
		cfg.Threads = *threads
	}
	if *printDefs {
		cfg.Print = true
	}
	if *printOnly != "" {
		cfg.Print = true
		cfg.PrintOnly = strings.Split(*printOnly, ",")
	}
	if *verbose > -2 {
		cfg.Verbosity = *verbose
	}

	diagnostics.Configure(cfg.Verbosity)
	reporter := kerr.NewReporter()

	start := time.Now()
	total := 0
	for _, path := range files {
		n, err := checkFile(path, cfg)
		if err != nil {
			fmt.Fprintln(os.Stderr, reporter.Format(err))
			os.Exit(1)
		}
		total += n
	}

	color.Green("✓ checked %d declarations in %s", total, time.Since(start).Round(time.Millisecond))
}

func resolveConfig(path string) (config.Config, error) {
	base := config.Default()
	if path != "" {
		return config.Load(path, base)
	}
	return config.LoadIfPresent(config.DefaultFileName, base)
}

func checkFile(path string, cfg config.Config) (int, error) {
	decls, _, err := exportfmt.ParseFile(path)
	if err != nil {
		return 0, err
	}

	e := env.New(convert.NewChecker)
	p := pipeline.New(e, cfg.Threads)
	n, err := p.Run(decls)
	if err != nil {
		return 0, err
	}

	if cfg.Print {
		printConfigured(e, cfg.PrintOnly)
	}
	return n, nil
}

func printConfigured(e *env.Env, only []string) {
	for _, raw := range only {
		n := nameFromDotted(strings.TrimSpace(raw))
		ci, ok := e.Get(n)
		if !ok {
			color.Yellow("-- %s: not declared", n)
			continue
		}
		fmt.Println(pretty.Constant(ci))
	}
}

func nameFromDotted(s string) name.Name {
	n := name.Anonymous
	for _, seg := range strings.Split(s, ".") {
		if seg != "" {
			n = n.ExtendStr(seg)
		}
	}
	return n
}
