package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jgaa/deldupes/internal/query"

	flag "github.com/spf13/pflag"
)

func runDupes(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("dupes", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var scope scopeFlag
	fs.Var(&scope, "scope", "restrict results to groups with at least one member under this path (repeatable)")

	root := fs.StringP("root", "r", currentDir(), "database root directory")

	if err := fs.Parse(args); err != nil {
		return err
	}

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
		return fmt.Errorf("dupes: %w", err)
	}

	defer func() { _ = tx.Close() }()

	groups, err := query.ExactDuplicates(tx, normScope)
	if err != nil {
		return fmt.Errorf("dupes: %w", err)
	}

	printGroups(os.Stdout, groups)

	return nil
}

func runPotential(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("potential", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	root := fs.StringP("root", "r", currentDir(), "database root directory")

	if err := fs.Parse(args); err != nil {
		return err
	}

	db, _, err := openDB(ctx, *root)
	if err != nil {
		return err
	}

	defer func() { _ = db.Close() }()

	tx, err := db.Store.BeginRead(ctx)
	if err != nil {
		return fmt.Errorf("potential: %w", err)
	}

	defer func() { _ = tx.Close() }()

	groups, err := query.PotentialDuplicates(tx)
	if err != nil {
		return fmt.Errorf("potential: %w", err)
	}

	printGroups(os.Stdout, groups)

	return nil
}

func printGroups(out *os.File, groups []query.Group) {
	if len(groups) == 0 {
		fmt.Fprintln(out, "no duplicate groups found")

		return
	}

	for _, g := range groups {
		fmt.Fprintf(out, "%x (%d members)\n", g.Hash, len(g.Members))

		for _, m := range g.Members {
			fmt.Fprintf(out, "  %s  size=%d mtime=%d file_id=%d\n", m.Path, m.Meta.Size, m.Meta.MtimeSecs, m.FileID)
		}
	}
}
