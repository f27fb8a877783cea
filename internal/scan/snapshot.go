package scan

import (
	"context"
	"fmt"

	"github.com/jgaa/deldupes/internal/index"
	"github.com/jgaa/deldupes/internal/kv"
)

// identity is the (size, mtime_secs) fingerprint the producer compares
// against a freshly stat'd file to decide whether hashing can be skipped.
type identity struct {
	fileID    uint64
	size      uint64
	mtimeSecs uint64
}

// buildSnapshot reads every known path's current-version identity into a
// map, up front, once, under a single read transaction — "a snapshot map
// built at start of scan", the alternative spec.md §4.E names to a
// per-path round trip to the writer.
func buildSnapshot(ctx context.Context, store *kv.Store) (map[string]identity, error) {
	tx, err := store.BeginRead(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan: snapshot: begin read: %w", err)
	}

	defer func() { _ = tx.Close() }()

	it, err := tx.Iterate(kv.TablePathToID, nil)
	if err != nil {
		return nil, fmt.Errorf("scan: snapshot: iterate paths: %w", err)
	}

	defer func() { _ = it.Close() }()

	snap := make(map[string]identity)

	for it.First(); it.Valid(); it.Next() {
		path := string(it.Key())

		if len(it.Value()) != 8 {
			continue
		}

		pathID := decodeID(it.Value())

		fileID, ok, err := index.CurrentVersion(tx, pathID)
		if err != nil {
			return nil, fmt.Errorf("scan: snapshot: current version: %w", err)
		}

		if !ok {
			continue
		}

		meta, err := index.GetMeta(tx, fileID)
		if err != nil {
			return nil, fmt.Errorf("scan: snapshot: get meta: %w", err)
		}

		snap[path] = identity{fileID: fileID, size: meta.Size, mtimeSecs: meta.MtimeSecs}
	}

	return snap, nil
}

func decodeID(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}

	return v
}
