// Package walk is the concrete, but optional, filesystem-enumeration
// collaborator spec.md §1 treats as external: internal/scan depends only
// on a <-chan scan.PathEvent-shaped input, never on this package, so a
// caller embedding the library can supply paths from anywhere (a prior
// listing, a network source, a test fixture) without linking walk at all.
// cmd/deldupes uses it so the CLI is runnable end to end.
package walk

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/jgaa/deldupes/internal/scan"
)

// Walk enumerates every regular file under root, in filepath.WalkDir's
// lexical order, and sends one scan.PathEvent per file to the returned
// channel. The channel is closed when enumeration completes, ctx is
// cancelled, or an unrecoverable walk error occurs. Per-entry errors (a
// single unreadable directory) do not abort the walk; Walk skips that
// entry and continues.
func Walk(ctx context.Context, root string) (<-chan scan.PathEvent, <-chan error) {
	out := make(chan scan.PathEvent, 64)
	errc := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errc)

		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			if err != nil {
				// Best-effort enumeration: skip the entry, keep walking.
				return nil
			}

			if d.IsDir() {
				return nil
			}

			if d.Type()&fs.ModeSymlink != 0 {
				return nil
			}

			if !d.Type().IsRegular() {
				return nil
			}

			select {
			case out <- scan.PathEvent{Path: path}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})

		if err != nil {
			errc <- fmt.Errorf("walk: %w", err)
		}
	}()

	return out, errc
}
