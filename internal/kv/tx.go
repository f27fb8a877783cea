package kv

import (
	"errors"
	"fmt"
	"io"

	"github.com/cockroachdb/pebble"
)

// reader is the subset of pebble's read API both a snapshot and an indexed
// batch satisfy; it lets ReadTx and WriteTx share Get/Iterate logic.
type reader interface {
	Get(key []byte) (value []byte, closer io.Closer, err error)
	NewIter(o *pebble.IterOptions) (*pebble.Iterator, error)
}

// ReadTx is a read-only transaction over a point-in-time snapshot.
type ReadTx struct {
	reader reader
	closer io.Closer
	closed bool
}

// Get returns the value for key in table, or (nil, false, nil) if absent.
func (tx *ReadTx) Get(table Table, k []byte) ([]byte, bool, error) {
	if tx.closed {
		return nil, false, errors.New("kv: transaction closed")
	}

	v, closer, err := tx.reader.Get(key(table, k))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, fmt.Errorf("kv: get: %w", err)
	}

	out := append([]byte(nil), v...)

	if cerr := closer.Close(); cerr != nil {
		return nil, false, fmt.Errorf("kv: release get handle: %w", cerr)
	}

	return out, true, nil
}

// Iterate returns an [Iterator] over every key in table with the given
// prefix, in ascending lexicographic order. Pass a nil prefix to iterate
// the whole table.
func (tx *ReadTx) Iterate(table Table, prefix []byte) (*Iterator, error) {
	if tx.closed {
		return nil, errors.New("kv: transaction closed")
	}

	lower := key(table, prefix)

	var upper []byte

	if up := prefixUpperBound(prefix); up != nil {
		upper = key(table, up)
	} else {
		upper = key(table+1, nil)
	}

	it, err := tx.reader.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, fmt.Errorf("kv: new iterator: %w", err)
	}

	return &Iterator{it: it, table: table}, nil
}

// Close releases the snapshot. Safe to call once.
func (tx *ReadTx) Close() error {
	if tx.closed {
		return nil
	}

	tx.closed = true

	if err := tx.closer.Close(); err != nil {
		return fmt.Errorf("kv: close read tx: %w", err)
	}

	return nil
}

// WriteTx is the single write transaction for a [Store]. Writes are
// buffered in an indexed batch (so Get/Iterate within the same transaction
// observe not-yet-committed writes) and applied durably on [WriteTx.Commit].
type WriteTx struct {
	store  *Store
	batch  *pebble.Batch
	reader reader
	done   bool
}

// Get reads key in table, seeing this transaction's own uncommitted writes.
func (tx *WriteTx) Get(table Table, k []byte) ([]byte, bool, error) {
	if tx.done {
		return nil, false, errors.New("kv: transaction closed")
	}

	v, closer, err := tx.reader.Get(key(table, k))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, fmt.Errorf("kv: get: %w", err)
	}

	out := append([]byte(nil), v...)

	if cerr := closer.Close(); cerr != nil {
		return nil, false, fmt.Errorf("kv: release get handle: %w", cerr)
	}

	return out, true, nil
}

// Iterate iterates table with prefix, seeing this transaction's own
// uncommitted writes.
func (tx *WriteTx) Iterate(table Table, prefix []byte) (*Iterator, error) {
	if tx.done {
		return nil, errors.New("kv: transaction closed")
	}

	lower := key(table, prefix)

	var upper []byte

	if up := prefixUpperBound(prefix); up != nil {
		upper = key(table, up)
	} else {
		upper = key(table+1, nil)
	}

	it, err := tx.reader.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, fmt.Errorf("kv: new iterator: %w", err)
	}

	return &Iterator{it: it, table: table}, nil
}

// Put buffers a write of value for key in table.
func (tx *WriteTx) Put(table Table, k, v []byte) error {
	if tx.done {
		return errors.New("kv: transaction closed")
	}

	if err := tx.batch.Set(key(table, k), v, nil); err != nil {
		return fmt.Errorf("kv: put: %w", err)
	}

	return nil
}

// Delete buffers a deletion of key in table.
func (tx *WriteTx) Delete(table Table, k []byte) error {
	if tx.done {
		return errors.New("kv: transaction closed")
	}

	if err := tx.batch.Delete(key(table, k), nil); err != nil {
		return fmt.Errorf("kv: delete: %w", err)
	}

	return nil
}

// Commit applies the buffered writes durably: the write is fsynced before
// Commit returns, per spec.md §4.A ("committed writes are durable on commit
// return").
func (tx *WriteTx) Commit() error {
	if tx.done {
		return errors.New("kv: transaction closed")
	}

	tx.done = true
	tx.store.releaseWriter()

	if err := tx.batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("kv: commit: %w", err)
	}

	return nil
}

// Rollback discards the buffered writes without applying them.
func (tx *WriteTx) Rollback() error {
	if tx.done {
		return nil
	}

	tx.done = true
	tx.store.releaseWriter()

	if err := tx.batch.Close(); err != nil {
		return fmt.Errorf("kv: rollback: %w", err)
	}

	return nil
}
