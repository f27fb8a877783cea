// Package lifecycle implements spec.md §4.H: opening, creating, and locking
// a deldupes database directory. Grounded on the teacher's
// internal/store.Store.Open, which performs the same
// create-if-absent/validate/lock sequence over a directory it owns.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/jgaa/deldupes/internal/hashsum"
	"github.com/jgaa/deldupes/internal/kv"
	"github.com/jgaa/deldupes/internal/osfs"
)

// SchemaVersion1 is the only on-disk schema version this build writes and
// accepts.
const SchemaVersion1 = 1

// ErrNotADatabase is returned when an existing directory lacks the
// artifacts a deldupes database requires (spec.md §4.H.2: "fail... rather
// than repurposing a foreign directory").
var ErrNotADatabase = errors.New("lifecycle: not a deldupes database")

// ErrBusy is returned when another process already holds the database
// lock.
var ErrBusy = errors.New("lifecycle: database busy")

// ErrSchemaMismatch is returned when an existing database's recorded
// schema version is one this build does not understand.
var ErrSchemaMismatch = errors.New("lifecycle: schema version mismatch")

// ErrAlgorithmMismatch is returned when an existing database's recorded
// hash algorithm differs from the one this build would use. Opening with a
// mismatched algorithm would poison ContentGroup/PrefixGroup membership
// with digests from two incompatible hash spaces.
var ErrAlgorithmMismatch = errors.New("lifecycle: hash algorithm mismatch")

const (
	dataDirName = "data"
	lockName    = "LOCK"
	metaName    = "meta"
)

// lockAcquireTimeout bounds how long Open waits for the advisory lock
// before reporting the database as busy.
const lockAcquireTimeout = 2 * time.Second

// DB is a live handle on an opened deldupes database directory: its KV
// store plus the advisory lock that must outlive every transaction.
type DB struct {
	Store *kv.Store
	Meta  Meta

	dir  string
	fs   osfs.FS
	lock *osfs.Lock
}

// Meta is the fixed-layout descriptor written to <dir>/meta at creation
// time and validated on every subsequent open.
type Meta struct {
	SchemaVersion  uint32
	CreatedAtUnix  int64
	HashAlgorithm  string
}

// Open opens the deldupes database at dir, creating it (including parent
// directories) if it does not yet exist, per spec.md §4.H. algo identifies
// the hash algorithm this process will use; on an existing database it
// must match the recorded one.
func Open(ctx context.Context, fs osfs.FS, dir string, algo hashsum.Algorithm) (*DB, error) {
	if ctx == nil {
		return nil, errors.New("lifecycle: nil context")
	}

	named, ok := algo.(interface{ Name() string })
	if !ok {
		return nil, errors.New("lifecycle: algorithm does not expose a stable Name()")
	}

	algoName := named.Name()

	exists, err := fs.Exists(dir)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: stat %s: %w", dir, err)
	}

	metaPath := filepath.Join(dir, metaName)
	dataPath := filepath.Join(dir, dataDirName)
	lockPath := filepath.Join(dir, lockName)

	var meta Meta

	if !exists {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("lifecycle: create %s: %w", dir, err)
		}

		meta = Meta{SchemaVersion: SchemaVersion1, CreatedAtUnix: time.Now().Unix(), HashAlgorithm: algoName}

		if err := writeMeta(fs, metaPath, meta); err != nil {
			return nil, fmt.Errorf("lifecycle: write meta: %w", err)
		}
	} else {
		metaExists, err := fs.Exists(metaPath)
		if err != nil {
			return nil, fmt.Errorf("lifecycle: stat %s: %w", metaPath, err)
		}

		if !metaExists {
			return nil, fmt.Errorf("lifecycle: %s: %w", dir, ErrNotADatabase)
		}

		meta, err = readMeta(fs, metaPath)
		if err != nil {
			return nil, fmt.Errorf("lifecycle: read meta: %w", err)
		}

		if meta.SchemaVersion != SchemaVersion1 {
			return nil, fmt.Errorf("lifecycle: recorded version %d: %w", meta.SchemaVersion, ErrSchemaMismatch)
		}

		if meta.HashAlgorithm != algoName {
			return nil, fmt.Errorf("lifecycle: recorded %q, requested %q: %w", meta.HashAlgorithm, algoName, ErrAlgorithmMismatch)
		}
	}

	locker := osfs.NewLocker(fs)

	lockCtx, cancel := context.WithTimeout(ctx, lockAcquireTimeout)
	defer cancel()

	lock, err := locker.Lock(lockCtx, lockPath)
	if err != nil {
		if errors.Is(err, osfs.ErrWouldBlock) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("lifecycle: %s: %w", dir, ErrBusy)
		}

		return nil, fmt.Errorf("lifecycle: acquire lock: %w", err)
	}

	store, err := kv.Open(dataPath)
	if err != nil {
		_ = lock.Close()

		return nil, fmt.Errorf("lifecycle: open store: %w", err)
	}

	return &DB{Store: store, Meta: meta, dir: dir, fs: fs, lock: lock}, nil
}

// Close releases the database's store and advisory lock, in that order, so
// the lock is held for the store's entire lifetime.
func (d *DB) Close() error {
	storeErr := d.Store.Close()
	lockErr := d.lock.Close()

	if storeErr != nil {
		return fmt.Errorf("lifecycle: close store: %w", storeErr)
	}

	if lockErr != nil {
		return fmt.Errorf("lifecycle: release lock: %w", lockErr)
	}

	return nil
}

// Dir returns the database's root directory.
func (d *DB) Dir() string {
	return d.dir
}
