package kv

// Table names one of the flat key-spaces the index repository (internal/index)
// stores its entities under. Pebble, like the engines it's modeled on
// (bbolt, mdbx), has one flat keyspace; tables are namespaced here by
// prepending a fixed one-byte prefix to every key, the same way erigon-lib's
// kv package enumerates table names over its own flat keyspace.
type Table byte

const (
	// TablePathToID maps a raw normalized path string to its 8-byte path_id.
	TablePathToID Table = iota + 1
	// TableIDToPath maps an 8-byte path_id to its raw normalized path string.
	TableIDToPath
	// TablePathCurrent maps an 8-byte path_id to the 8-byte file_id of its
	// current Live version, if any.
	TablePathCurrent
	// TableFileMeta maps an 8-byte file_id to its encoded FileMeta record.
	TableFileMeta
	// TableFileState maps an 8-byte file_id to its one-byte state.
	TableFileState
	// TableContentGroup maps a 32-byte content hash to an encoded, sorted,
	// unique list of file_ids.
	TableContentGroup
	// TablePrefixGroup maps a 20-byte prefix hash to an encoded list of
	// file_ids.
	TablePrefixGroup
	// TableMeta holds singleton records: the next path_id and file_id
	// counters. The schema version, hash algorithm name and creation
	// timestamp are kept in the database directory's meta file
	// (internal/lifecycle), not in this table.
	TableMeta
)

// key builds the physical pebble key for a (table, logical key) pair.
func key(t Table, k []byte) []byte {
	out := make([]byte, 1+len(k))
	out[0] = byte(t)
	copy(out[1:], k)

	return out
}

// prefixUpperBound returns the smallest key strictly greater than every key
// with the given prefix, for use as a pebble iterator upper bound.
func prefixUpperBound(prefix []byte) []byte {
	upper := make([]byte, len(prefix))
	copy(upper, prefix)

	for i := len(upper) - 1; i >= 0; i-- {
		upper[i]++
		if upper[i] != 0 {
			return upper[:i+1]
		}
	}

	// prefix was all 0xFF bytes: unbounded above.
	return nil
}
