// Package plan implements the deletion planner spec.md §4.G describes:
// partitioning each duplicate group's Live members into those inside and
// outside a scope, choosing a keeper by one of six preserve strategies,
// and (when applying) safely unlinking the rest under a re-stat guard. No
// teacher analog exists for this domain logic; it is built directly from
// spec.md §4.G on top of internal/query's group/member lookups.
package plan

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jgaa/deldupes/internal/index"
	"github.com/jgaa/deldupes/internal/kv"
	"github.com/jgaa/deldupes/internal/osfs"
	"github.com/jgaa/deldupes/internal/query"
)

// Strategy selects which inside member a group keeps when no outside
// member already satisfies the last-copy invariant.
type Strategy string

const (
	StrategyOldest       Strategy = "oldest"
	StrategyNewest       Strategy = "newest"
	StrategyShortestPath Strategy = "shortest_path"
	StrategyLongestPath  Strategy = "longest_path"
	StrategyAlphaFirst   Strategy = "alpha_first"
	StrategyAlphaLast    Strategy = "alpha_last"
)

// DefaultStrategy is used when the caller does not specify one.
const DefaultStrategy = StrategyOldest

// ErrInvalidStrategy is returned by Build for an unrecognized strategy
// name.
var ErrInvalidStrategy = errors.New("plan: invalid preserve strategy")

// ErrLastCopyViolation indicates a plan entry would leave a content group
// with no keeper — a programmer error per spec.md §4.G's last-copy
// invariant, not a condition callers should attempt to recover from
// dynamically.
var ErrLastCopyViolation = errors.New("plan: last-copy invariant violated")

// Entry is one content group's deletion plan.
type Entry struct {
	Hash    []byte
	Keepers []uint64
	Deletes []uint64

	// members indexes every Live member of this group by file_id, for the
	// apply phase's re-stat step.
	members map[uint64]query.Member
}

// Build computes a deletion plan for every exact-duplicate content group,
// per spec.md §4.G's algorithm. scope is a set of normalized path
// prefixes; an empty scope treats every member as inside.
func Build(tx *kv.ReadTx, scope []string, strategy Strategy) ([]Entry, error) {
	if !validStrategy(strategy) {
		return nil, fmt.Errorf("plan: %q: %w", strategy, ErrInvalidStrategy)
	}

	groups, err := query.ExactDuplicates(tx, nil)
	if err != nil {
		return nil, fmt.Errorf("plan: build: %w", err)
	}

	entries := make([]Entry, 0, len(groups))

	for _, g := range groups {
		entry, err := buildEntry(g, scope, strategy)
		if err != nil {
			return nil, err
		}

		entries = append(entries, entry)
	}

	return entries, nil
}

func buildEntry(g query.Group, scope []string, strategy Strategy) (Entry, error) {
	var inside, outside []query.Member

	for _, m := range g.Members {
		if underScope(m.Path, scope) {
			inside = append(inside, m)
		} else {
			outside = append(outside, m)
		}
	}

	var keepers, deletes []uint64

	if len(outside) > 0 {
		for _, m := range inside {
			deletes = append(deletes, m.FileID)
		}

		for _, m := range outside {
			keepers = append(keepers, m.FileID)
		}
	} else {
		keeper, err := choose(inside, strategy)
		if err != nil {
			return Entry{}, fmt.Errorf("plan: group %x: %w", g.Hash, err)
		}

		for _, m := range inside {
			if m.FileID == keeper.FileID {
				keepers = append(keepers, m.FileID)
			} else {
				deletes = append(deletes, m.FileID)
			}
		}
	}

	if len(keepers) == 0 {
		return Entry{}, fmt.Errorf("plan: group %x: %w", g.Hash, ErrLastCopyViolation)
	}

	sort.Slice(keepers, func(i, j int) bool { return keepers[i] < keepers[j] })
	sort.Slice(deletes, func(i, j int) bool { return deletes[i] < deletes[j] })

	members := make(map[uint64]query.Member, len(g.Members))
	for _, m := range g.Members {
		members[m.FileID] = m
	}

	return Entry{Hash: g.Hash, Keepers: keepers, Deletes: deletes, members: members}, nil
}

func validStrategy(s Strategy) bool {
	switch s {
	case StrategyOldest, StrategyNewest, StrategyShortestPath, StrategyLongestPath, StrategyAlphaFirst, StrategyAlphaLast:
		return true
	default:
		return false
	}
}

func underScope(path string, scope []string) bool {
	if len(scope) == 0 {
		return true
	}

	for _, prefix := range scope {
		if path == prefix || strings.HasPrefix(path, strings.TrimSuffix(prefix, "/")+"/") {
			return true
		}
	}

	return false
}

// choose picks the keeper from candidates per strategy's ordering key, with
// ascending file_id as the final deterministic tiebreak.
func choose(candidates []query.Member, strategy Strategy) (query.Member, error) {
	if len(candidates) == 0 {
		return query.Member{}, errors.New("plan: choose: no candidates")
	}

	best := candidates[0]

	for _, m := range candidates[1:] {
		if wins(m, best, strategy) {
			best = m
		}
	}

	return best, nil
}

// wins reports whether a is preferred over b as the keeper, under
// strategy's ordering key (ties broken by ascending file_id).
func wins(a, b query.Member, strategy Strategy) bool {
	switch strategy {
	case StrategyOldest:
		if a.Meta.MtimeSecs != b.Meta.MtimeSecs {
			return a.Meta.MtimeSecs < b.Meta.MtimeSecs
		}
	case StrategyNewest:
		if a.Meta.MtimeSecs != b.Meta.MtimeSecs {
			return a.Meta.MtimeSecs > b.Meta.MtimeSecs
		}
	case StrategyShortestPath:
		if len(a.Path) != len(b.Path) {
			return len(a.Path) < len(b.Path)
		}
	case StrategyLongestPath:
		if len(a.Path) != len(b.Path) {
			return len(a.Path) > len(b.Path)
		}
	case StrategyAlphaFirst:
		if a.Path != b.Path {
			return a.Path < b.Path
		}

		return a.FileID < b.FileID
	case StrategyAlphaLast:
		if a.Path != b.Path {
			return a.Path > b.Path
		}

		return a.FileID < b.FileID
	}

	if a.Path != b.Path {
		return a.Path < b.Path
	}

	return a.FileID < b.FileID
}

// ApplyStats summarizes one Apply run.
type ApplyStats struct {
	Deleted int
	Skipped int
	Failed  int
}

// SkipReason records why a planned deletion did not happen (a failed
// re-stat, a file changed since planning, or a failed unlink), for the
// caller to surface.
type SkipReason struct {
	Hash   []byte
	FileID uint64
	Path   string
	Reason string
}

// Apply executes entries' planned deletions, per spec.md §4.G's apply
// phase: for each deletion, in (hash, path) order, re-stat the file and
// skip if it changed since planning, unlink it, then mark_missing in the
// write transaction. A failed unlink leaves the database untouched for
// that file and is recorded, without aborting the rest of the batch.
func Apply(ctx context.Context, store *kv.Store, fs osfs.FS, entries []Entry) (ApplyStats, []SkipReason, error) {
	if ctx == nil {
		return ApplyStats{}, nil, errors.New("plan: apply: nil context")
	}

	tx, err := store.BeginWrite(ctx)
	if err != nil {
		return ApplyStats{}, nil, fmt.Errorf("plan: apply: begin write: %w", err)
	}

	var stats ApplyStats
	var reasons []SkipReason

	for _, entry := range entries {
		deletes := make([]query.Member, 0, len(entry.Deletes))

		for _, id := range entry.Deletes {
			deletes = append(deletes, entry.members[id])
		}

		sort.Slice(deletes, func(i, j int) bool { return deletes[i].Path < deletes[j].Path })

		for _, m := range deletes {
			info, err := fs.Stat(m.Path)
			if err != nil {
				stats.Skipped++
				reasons = append(reasons, SkipReason{Hash: entry.Hash, FileID: m.FileID, Path: m.Path, Reason: fmt.Sprintf("stat: %v", err)})

				continue
			}

			if uint64(info.Size()) != m.Meta.Size || uint64(info.ModTime().Unix()) != m.Meta.MtimeSecs {
				stats.Skipped++
				reasons = append(reasons, SkipReason{Hash: entry.Hash, FileID: m.FileID, Path: m.Path, Reason: "changed since plan"})

				continue
			}

			if err := fs.Remove(m.Path); err != nil {
				stats.Failed++
				reasons = append(reasons, SkipReason{Hash: entry.Hash, FileID: m.FileID, Path: m.Path, Reason: fmt.Sprintf("unlink: %v", err)})

				continue
			}

			if err := index.MarkMissing(tx, m.FileID); err != nil {
				_ = tx.Rollback()
				return stats, reasons, fmt.Errorf("plan: apply: mark missing %q: %w", m.Path, err)
			}

			stats.Deleted++
		}
	}

	if err := tx.Commit(); err != nil {
		return stats, reasons, fmt.Errorf("plan: apply: commit: %w", err)
	}

	return stats, reasons, nil
}
