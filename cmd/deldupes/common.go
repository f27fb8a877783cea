package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jgaa/deldupes/internal/appconfig"
	"github.com/jgaa/deldupes/internal/hashsum"
	"github.com/jgaa/deldupes/internal/lifecycle"
	"github.com/jgaa/deldupes/internal/osfs"
	"github.com/jgaa/deldupes/internal/pathnorm"
)

// dbDirName is the directory, relative to the scanned root, deldupes keeps
// its index under — analogous to .git or .tk.
const dbDirName = ".deldupes"

// openDB opens (creating if absent) the deldupes database for root,
// loading root/deldupes.json and the global config layer first.
func openDB(ctx context.Context, root string) (*lifecycle.DB, appconfig.Config, error) {
	cfg, err := appconfig.Load(root)
	if err != nil {
		return nil, appconfig.Config{}, fmt.Errorf("load config: %w", err)
	}

	fs := osfs.NewReal()

	dbDir, err := pathnorm.Normalize(root, dbDirName)
	if err != nil {
		return nil, appconfig.Config{}, fmt.Errorf("resolve database dir: %w", err)
	}

	db, err := lifecycle.Open(ctx, fs, dbDir, hashsum.Default{})
	if err != nil {
		return nil, appconfig.Config{}, fmt.Errorf("open database: %w", err)
	}

	return db, cfg, nil
}

// scopeFlag accumulates repeated --scope flags into a []string, the pflag
// idiom for multi-value flags.
type scopeFlag struct {
	values []string
}

func (s *scopeFlag) String() string {
	return fmt.Sprint(s.values)
}

func (s *scopeFlag) Set(v string) error {
	s.values = append(s.values, v)

	return nil
}

func (s *scopeFlag) Type() string {
	return "stringSlice"
}

// normalizeScope resolves each raw scope path against cwd so it can be
// compared against the normalized paths stored in the index.
func normalizeScope(cwd string, raw []string) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	out := make([]string, 0, len(raw))

	for _, p := range raw {
		norm, err := pathnorm.Normalize(cwd, p)
		if err != nil {
			return nil, fmt.Errorf("normalize scope %q: %w", p, err)
		}

		out = append(out, norm)
	}

	return out, nil
}

func currentDir() string {
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}

	return cwd
}
