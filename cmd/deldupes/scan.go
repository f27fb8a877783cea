package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jgaa/deldupes/internal/appconfig"
	"github.com/jgaa/deldupes/internal/hashsum"
	"github.com/jgaa/deldupes/internal/osfs"
	"github.com/jgaa/deldupes/internal/scan"
	"github.com/jgaa/deldupes/internal/walk"

	flag "github.com/spf13/pflag"
)

func runScan(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("scan", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	workers := fs.IntP("workers", "j", 0, "hashing worker pool size (0 = runtime.NumCPU())")
	batchMaxOps := fs.Int("batch-max-ops", 0, "writer batch size before a forced commit (0 = config default)")
	verbose := fs.BoolP("verbose", "v", false, "print progress to stderr")
	paranoid := fs.Bool("paranoid", false, "rehash every file regardless of the size/mtime identity shortcut (extension point, not yet implemented)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() != 1 {
		return fmt.Errorf("scan: expected exactly one root directory argument")
	}

	root := fs.Arg(0)

	db, cfg, err := openDB(ctx, root)
	if err != nil {
		return err
	}

	defer func() { _ = db.Close() }()

	cfg = appconfig.ApplyCLIOverrides(cfg, *workers, *paranoid, fs.Changed("paranoid"), *batchMaxOps)

	paths, walkErrc := walk.Walk(ctx, root)

	opts := scan.Options{
		Cwd:              root,
		Workers:          cfg.Workers,
		BatchMaxOps:      cfg.BatchMaxOps,
		BatchMaxInterval: cfg.BatchMaxInterval,
		Sink:             stderrSink{errOut: os.Stderr, verbose: *verbose},
	}

	stats, runErr := scan.Run(ctx, opts, db.Store, osfs.NewReal(), hashsum.Default{}, paths)

	if walkErr := <-walkErrc; walkErr != nil && runErr == nil {
		runErr = walkErr
	}

	fmt.Fprintf(os.Stdout, "observed=%d created=%d skipped=%d errors=%d commits=%d\n",
		stats.Observed, stats.Created, stats.Skipped, stats.Errors, stats.Commits)

	return runErr
}
