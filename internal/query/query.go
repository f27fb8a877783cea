// Package query implements the read-only duplicate lookups spec.md §4.F
// defines: exact_duplicates, potential_duplicates, check_by_path, and
// check_by_hash. No teacher analog exists for this domain logic; its shape
// follows spec.md §4.F directly, built on internal/index's group/meta
// lookups the same way internal/scan's writer is.
package query

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/jgaa/deldupes/internal/codec"
	"github.com/jgaa/deldupes/internal/index"
	"github.com/jgaa/deldupes/internal/kv"
)

// Group is one content or prefix group's Live membership, in the
// deterministic order spec.md §4.F requires: members by ascending file_id.
type Group struct {
	Hash    []byte
	Members []Member
}

// Member is one Live file version participating in a group.
type Member struct {
	FileID uint64
	Path   string
	Meta   codec.FileMeta
}

func pathOf(tx *kv.ReadTx, pathID uint64) (string, error) {
	v, ok, err := tx.Get(kv.TableIDToPath, idBytes(pathID))
	if err != nil {
		return "", fmt.Errorf("query: path lookup: %w", err)
	}

	if !ok {
		return "", fmt.Errorf("query: path lookup: path_id %d not found", pathID)
	}

	return string(v), nil
}

func idBytes(id uint64) []byte {
	buf := make([]byte, 8)

	for i := range buf {
		buf[i] = byte(id >> (8 * i))
	}

	return buf
}

// liveMembers resolves a sorted file_id list down to its Live members, with
// path and meta attached, preserving ascending file_id order.
func liveMembers(tx *kv.ReadTx, ids []uint64) ([]Member, error) {
	members := make([]Member, 0, len(ids))

	for _, id := range ids {
		state, err := index.GetState(tx, id)
		if err != nil {
			return nil, fmt.Errorf("query: get state: %w", err)
		}

		if state != codec.StateLive {
			continue
		}

		meta, err := index.GetMeta(tx, id)
		if err != nil {
			return nil, fmt.Errorf("query: get meta: %w", err)
		}

		path, err := pathOf(tx, meta.PathID)
		if err != nil {
			return nil, fmt.Errorf("query: resolve path: %w", err)
		}

		members = append(members, Member{FileID: id, Path: path, Meta: meta})
	}

	return members, nil
}

// underScope reports whether path lies under at least one of the given
// normalized scope prefixes. An empty scope matches every path.
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

// ExactDuplicates implements spec.md §4.F's exact_duplicates: for every
// content hash with >= 2 Live members, emit the group. If scope is
// non-empty, a group is included only if at least one member's path falls
// under scope; every Live member is still listed regardless of scope, so
// the caller can see context.
func ExactDuplicates(tx *kv.ReadTx, scope []string) ([]Group, error) {
	it, err := tx.Iterate(kv.TableContentGroup, nil)
	if err != nil {
		return nil, fmt.Errorf("query: exact duplicates: %w", err)
	}

	defer func() { _ = it.Close() }()

	var groups []Group

	for it.First(); it.Valid(); it.Next() {
		hash := append([]byte(nil), it.Key()...)

		ids, err := codec.DecodeIDList(it.Value())
		if err != nil {
			return nil, fmt.Errorf("query: exact duplicates: decode group %x: %w", hash, err)
		}

		members, err := liveMembers(tx, ids)
		if err != nil {
			return nil, fmt.Errorf("query: exact duplicates: %w", err)
		}

		if len(members) < 2 {
			continue
		}

		if len(scope) > 0 {
			inScope := false

			for _, m := range members {
				if underScope(m.Path, scope) {
					inScope = true
					break
				}
			}

			if !inScope {
				continue
			}
		}

		groups = append(groups, Group{Hash: hash, Members: members})
	}

	sortGroups(groups)

	return groups, nil
}

// PotentialDuplicates implements spec.md §4.F's potential_duplicates: for
// every prefix hash with >= 2 Live members, drop the group if every member
// shares the same content hash (those are already reported as exact
// duplicates), and emit the rest as informational.
func PotentialDuplicates(tx *kv.ReadTx) ([]Group, error) {
	it, err := tx.Iterate(kv.TablePrefixGroup, nil)
	if err != nil {
		return nil, fmt.Errorf("query: potential duplicates: %w", err)
	}

	defer func() { _ = it.Close() }()

	var groups []Group

	for it.First(); it.Valid(); it.Next() {
		hash := append([]byte(nil), it.Key()...)

		ids, err := codec.DecodeIDList(it.Value())
		if err != nil {
			return nil, fmt.Errorf("query: potential duplicates: decode group %x: %w", hash, err)
		}

		members, err := liveMembers(tx, ids)
		if err != nil {
			return nil, fmt.Errorf("query: potential duplicates: %w", err)
		}

		if len(members) < 2 {
			continue
		}

		if allSameContentHash(members) {
			continue
		}

		groups = append(groups, Group{Hash: hash, Members: members})
	}

	sortGroups(groups)

	return groups, nil
}

func allSameContentHash(members []Member) bool {
	for i := 1; i < len(members); i++ {
		if members[i].Meta.Hash256 != members[0].Meta.Hash256 {
			return false
		}
	}

	return true
}

func sortGroups(groups []Group) {
	sort.Slice(groups, func(i, j int) bool {
		return bytes.Compare(groups[i].Hash, groups[j].Hash) < 0
	})
}

// PathFact is check_by_path's result: the DB's recorded facts about a path.
// It carries no on-disk information; the file is not re-stat'd or rehashed.
type PathFact struct {
	PathID        uint64
	CurrentFileID uint64
	HasCurrent    bool
	Meta          codec.FileMeta
	State         codec.State
}

// CheckByPath implements spec.md §4.F's check_by_path: a read-only lookup
// of path's recorded current version, if any. It never mutates the
// database and never stats or rehashes the file itself — that re-stat/
// rehash step is the caller's (cmd/deldupes's) responsibility, since it
// requires filesystem access this package deliberately avoids.
func CheckByPath(tx *kv.ReadTx, normalizedPath string) (PathFact, error) {
	v, ok, err := tx.Get(kv.TablePathToID, []byte(normalizedPath))
	if err != nil {
		return PathFact{}, fmt.Errorf("query: check by path: %w", err)
	}

	if !ok {
		return PathFact{}, nil
	}

	pathID := decodeIDBytes(v)

	fileID, hasCurrent, err := index.CurrentVersion(tx, pathID)
	if err != nil {
		return PathFact{}, fmt.Errorf("query: check by path: %w", err)
	}

	fact := PathFact{PathID: pathID, CurrentFileID: fileID, HasCurrent: hasCurrent}

	if hasCurrent {
		fact.Meta, err = index.GetMeta(tx, fileID)
		if err != nil {
			return PathFact{}, fmt.Errorf("query: check by path: %w", err)
		}

		fact.State, err = index.GetState(tx, fileID)
		if err != nil {
			return PathFact{}, fmt.Errorf("query: check by path: %w", err)
		}
	}

	return fact, nil
}

// CheckByHash implements spec.md §4.F's check_by_hash: the Live members of
// the content group for hash256, in ascending file_id order.
func CheckByHash(tx *kv.ReadTx, hash256 [codec.HashSize]byte) ([]Member, error) {
	ids, err := index.ListContentGroup(tx, hash256)
	if err != nil {
		return nil, fmt.Errorf("query: check by hash: %w", err)
	}

	members, err := liveMembers(tx, ids)
	if err != nil {
		return nil, fmt.Errorf("query: check by hash: %w", err)
	}

	return members, nil
}

func decodeIDBytes(b []byte) uint64 {
	var v uint64
	for i := range b {
		v |= uint64(b[i]) << (8 * i)
	}

	return v
}
