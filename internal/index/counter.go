package index

import (
	"encoding/binary"
	"fmt"

	"github.com/jgaa/deldupes/internal/kv"
)

// Counter keys live in the meta table as the *next* value to allocate, per
// spec.md §5 ("path_id and file_id counters... never reused even across
// process restarts").
var (
	metaKeyNextPathID = []byte("next_path_id")
	metaKeyNextFileID = []byte("next_file_id")
)

// nextID reads the counter at metaKey, increments it, persists the new
// value, and returns the value that was allocated (the pre-increment
// value). The first allocation for a fresh database returns 1, reserving 0
// as "no id".
func nextID(tx txWriter, metaKey []byte) (uint64, error) {
	v, ok, err := tx.Get(kv.TableMeta, metaKey)
	if err != nil {
		return 0, fmt.Errorf("index: read counter %q: %w", metaKey, err)
	}

	var next uint64 = 1

	if ok {
		if len(v) != 8 {
			return 0, fmt.Errorf("index: counter %q has invalid width %d", metaKey, len(v))
		}

		next = binary.LittleEndian.Uint64(v)
	}

	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, next+1)

	if err := tx.Put(kv.TableMeta, metaKey, buf); err != nil {
		return 0, fmt.Errorf("index: persist counter %q: %w", metaKey, err)
	}

	return next, nil
}
