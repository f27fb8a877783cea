package kv

import (
	"fmt"

	"github.com/cockroachdb/pebble"
)

// Iterator walks keys within one table in ascending lexicographic order.
// The zero value is not usable; obtain one via [ReadTx.Iterate] or
// [WriteTx.Iterate].
type Iterator struct {
	it      *pebble.Iterator
	table   Table
	started bool
}

// First positions the iterator at the first key. Returns false if the
// table (under the given prefix) is empty.
func (i *Iterator) First() bool {
	i.started = true
	return i.it.First()
}

// Next advances the iterator. Call [Iterator.First] before the first Next.
// Returns false when iteration is exhausted.
func (i *Iterator) Next() bool {
	if !i.started {
		return i.First()
	}

	return i.it.Next()
}

// Valid reports whether the iterator is positioned at a valid entry.
func (i *Iterator) Valid() bool {
	return i.it.Valid()
}

// Key returns the logical key (table prefix byte stripped) at the current
// position. The returned slice is only valid until the next Next call.
func (i *Iterator) Key() []byte {
	return i.it.Key()[1:]
}

// Value returns the value at the current position. The returned slice is
// only valid until the next Next call; callers that need to retain it must
// copy.
func (i *Iterator) Value() []byte {
	return i.it.Value()
}

// Close releases the iterator's resources.
func (i *Iterator) Close() error {
	if err := i.it.Close(); err != nil {
		return fmt.Errorf("kv: close iterator: %w", err)
	}

	return nil
}
