package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jgaa/deldupes/internal/osfs"
	"github.com/jgaa/deldupes/internal/plan"

	flag "github.com/spf13/pflag"
)

// runPlan implements both the `plan` (dry run) and `apply` (execute)
// subcommands, which share every flag and the plan-building step; apply
// additionally calls plan.Apply and, per spec.md §6's exit semantics,
// returns a non-nil error only when at least one unlink actually failed.
func runPlan(ctx context.Context, args []string, execute bool) error {
	name := "plan"
	if execute {
		name = "apply"
	}

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var scope scopeFlag
	fs.Var(&scope, "scope", "restrict deletions to this path (repeatable); files outside scope are always kept")

	preserve := fs.String("preserve", string(plan.DefaultStrategy), "which copy to keep: oldest|newest|shortest_path|longest_path|alpha_first|alpha_last")
	root := fs.StringP("root", "r", currentDir(), "database root directory")

	if err := fs.Parse(args); err != nil {
		return err
	}

	strategy := plan.Strategy(*preserve)

	db, _, err := openDB(ctx, *root)
	if err != nil {
		return err
	}

	defer func() { _ = db.Close() }()

	normScope, err := normalizeScope(*root, scope.values)
	if err != nil {
		return err
	}

	tx, err := db.Store.BeginRead(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	entries, buildErr := plan.Build(tx, normScope, strategy)

	_ = tx.Close()

	if buildErr != nil {
		return fmt.Errorf("%s: %w", name, buildErr)
	}

	printPlan(os.Stdout, entries)

	if !execute {
		return nil
	}

	if len(entries) == 0 {
		return nil
	}

	stats, reasons, applyErr := plan.Apply(ctx, db.Store, osfs.NewReal(), entries)
	if applyErr != nil {
		return fmt.Errorf("apply: %w", applyErr)
	}

	fmt.Fprintf(os.Stdout, "deleted=%d skipped=%d failed=%d\n", stats.Deleted, stats.Skipped, stats.Failed)

	for _, r := range reasons {
		fmt.Fprintf(os.Stderr, "%s: %s\n", r.Path, r.Reason)
	}

	if stats.Failed > 0 {
		return fmt.Errorf("apply: %d deletion(s) failed", stats.Failed)
	}

	return nil
}

func printPlan(out *os.File, entries []plan.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(out, "no deletions planned")

		return
	}

	for _, e := range entries {
		fmt.Fprintf(out, "%x: keep %d, delete %d\n", e.Hash, len(e.Keepers), len(e.Deletes))
	}
}
