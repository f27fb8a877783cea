// Command deldupes is a thin CLI front end over the deldupes library:
// scan a directory tree, query its duplicates, and plan/apply deletions.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, usage())
		return 2
	}

	sub, rest := args[0], args[1:]

	var err error

	switch sub {
	case "scan":
		err = runScan(ctx, rest)
	case "dupes":
		err = runDupes(ctx, rest)
	case "potential":
		err = runPotential(ctx, rest)
	case "plan":
		err = runPlan(ctx, rest, false)
	case "apply":
		err = runPlan(ctx, rest, true)
	case "-h", "--help", "help":
		fmt.Fprintln(os.Stdout, usage())
		return 0
	default:
		fmt.Fprintf(os.Stderr, "deldupes: unknown subcommand %q\n\n%s\n", sub, usage())
		return 2
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "deldupes:", err)
		return 1
	}

	return 0
}

func usage() string {
	return `usage: deldupes <command> [flags]

commands:
  scan <root>                         index the directory tree rooted at root
  dupes [--scope path]...             list exact duplicate groups
  potential                           list potential duplicate groups
  plan --preserve=<strategy> [--scope path]...
                                       compute a deletion plan (dry run)
  apply --preserve=<strategy> [--scope path]...
                                       compute and execute a deletion plan
`
}
