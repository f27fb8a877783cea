// Package kv abstracts an ordered embedded key-value store.
//
// Every other package in deldupes depends only on this package's own types
// ([Store], [ReadTx], [WriteTx], [Iterator]) and the [Table] enumeration; no
// other package imports the concrete engine package directly. The concrete
// engine is github.com/cockroachdb/pebble, an LSM-tree store that gives us,
// natively, the two properties spec.md §4.A and §5 require: durable
// synchronous commits and MVCC-style read snapshots that don't block the
// writer.
package kv

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
)

// ErrWriterBusy is returned by [Store.BeginWrite] when another write
// transaction is already open on this Store handle. Per spec.md §4.A, only
// one write transaction is active per process per database directory;
// cross-process exclusion is a separate concern (internal/lifecycle's
// advisory lock).
var ErrWriterBusy = errors.New("kv: a write transaction is already open")

// ErrClosed is returned by any operation on a [Store] after [Store.Close].
var ErrClosed = errors.New("kv: store is closed")

// Store is an open handle to the embedded ordered key-value store backing
// one deldupes database directory.
type Store struct {
	db *pebble.DB

	mu     sync.Mutex
	closed bool
	writer bool // true while a WriteTx is open
}

// Open opens (creating if absent) the pebble store rooted at dir.
func Open(dir string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("kv: open %q: %w", dir, err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying engine. Safe to call once; subsequent calls
// return [ErrClosed].
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	s.closed = true

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("kv: close: %w", err)
	}

	return nil
}

// BeginRead opens a read-only transaction backed by a point-in-time
// snapshot: readers are unaffected by writes committed after the snapshot
// was taken (spec.md §5, "in-flight readers see their snapshot").
func (s *Store) BeginRead(ctx context.Context) (*ReadTx, error) {
	if ctx == nil {
		return nil, errors.New("kv: context is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}

	snap := s.db.NewSnapshot()

	return &ReadTx{reader: snap, closer: snap}, nil
}

// BeginWrite opens the single write transaction for this Store handle.
// Returns [ErrWriterBusy] if one is already open; the caller must call
// [WriteTx.Commit] or [WriteTx.Rollback] before another BeginWrite succeeds.
func (s *Store) BeginWrite(ctx context.Context) (*WriteTx, error) {
	if ctx == nil {
		return nil, errors.New("kv: context is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}

	if s.writer {
		return nil, ErrWriterBusy
	}

	s.writer = true
	batch := s.db.NewIndexedBatch()

	return &WriteTx{store: s, batch: batch, reader: batch}, nil
}

func (s *Store) releaseWriter() {
	s.mu.Lock()
	s.writer = false
	s.mu.Unlock()
}
