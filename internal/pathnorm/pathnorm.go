// Package pathnorm canonicalizes filesystem paths the way spec.md §4.C
// requires: purely lexically, with no filesystem access. Symlink-aware
// canonicalization is deliberately avoided — it would conflate distinct
// names that legitimately share content via a symlink, and would change
// under filesystem mutation between scans.
package pathnorm

import (
	"path/filepath"
	"strings"
)

// Normalize returns the canonical form of path:
//  1. made absolute against cwd if relative,
//  2. with "." segments collapsed,
//  3. with ".." segments collapsed against preceding non-root segments
//     (segments above root are discarded, never escaping root),
//  4. with redundant separators removed, never stripping the trailing
//     separator from a bare root.
//
// Normalize never touches the filesystem: it does not resolve symlinks,
// does not canonicalize case, and does not expand home-directory
// shortcuts.
func Normalize(cwd, path string) (string, error) {
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(cwd, abs)
	}

	clean := filepath.Clean(abs)

	// filepath.Clean on an absolute path never leaves a trailing
	// separator except for the root itself ("/"); that is exactly the
	// root-preservation rule spec.md §4.C.4 asks for, so no further
	// handling is needed here beyond documenting the invariant.
	return clean, nil
}

// IsRoot reports whether p is the filesystem root on the current platform
// (e.g. "/" on Unix).
func IsRoot(p string) bool {
	return p == string(filepath.Separator) || p == filepath.VolumeName(p)+string(filepath.Separator)
}

// Split separates p into its directory and its lexical base name, both
// already normalized forms (no filesystem access).
func Split(p string) (dir, base string) {
	dir, base = filepath.Split(p)
	dir = strings.TrimSuffix(dir, string(filepath.Separator))

	if dir == "" {
		dir = string(filepath.Separator)
	}

	return dir, base
}
