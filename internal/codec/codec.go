// Package codec implements the fixed, versioned, little-endian byte layouts
// spec.md §4.B defines for every persisted record. Every encoder here is a
// pure []byte builder with named offset constants; every decoder validates
// the leading one-byte record version before trusting the rest of the
// buffer, so that a reader never misinterprets a record written by a newer
// schema version (spec.md §6: "readers reject records whose version exceeds
// what they understand"). The style is grounded on the teacher's
// pkg/slotcache/format.go fixed-header encoder.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrUnsupportedVersion is returned when a record's version byte is greater
// than the version this build of deldupes understands.
var ErrUnsupportedVersion = errors.New("codec: unsupported record version")

// ErrTruncated is returned when a buffer is shorter than its declared shape
// requires.
var ErrTruncated = errors.New("codec: truncated record")

// ErrMalformed is returned when a buffer's structure is internally
// inconsistent (e.g. a duplicate id in a sorted-unique list).
var ErrMalformed = errors.New("codec: malformed record")

// FileMetaVersion1 is the only FileMeta record version this build emits and
// understands.
const FileMetaVersion1 = 1

// HashSize is the width, in bytes, of the authoritative content hash
// ("hash256" in spec.md, §3/§4.2).
const HashSize = 32

// PrefixHashSize is the width, in bytes, of the informational prefix hash.
const PrefixHashSize = 20

// IDSize is the width, in bytes, of a path_id or file_id.
const IDSize = 8

// FileMeta is the decoded form of spec.md §3's FileMeta entity.
type FileMeta struct {
	Size        uint64
	MtimeSecs   uint64
	Hash256     [HashSize]byte
	HasPrefix   bool
	SHA1Prefix  [PrefixHashSize]byte
	PathID      uint64
}

// EncodeFileMeta serializes m per spec.md §4.B:
// [ver:1][size:8][mtime_secs:8][hash256:32][has_prefix:1][sha1_prefix:0 or 20][path_id:8].
func EncodeFileMeta(m FileMeta) []byte {
	size := 1 + 8 + 8 + HashSize + 1 + IDSize
	if m.HasPrefix {
		size += PrefixHashSize
	}

	buf := make([]byte, size)
	buf[0] = FileMetaVersion1

	off := 1
	binary.LittleEndian.PutUint64(buf[off:], m.Size)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], m.MtimeSecs)
	off += 8
	copy(buf[off:], m.Hash256[:])
	off += HashSize

	if m.HasPrefix {
		buf[off] = 1
	} else {
		buf[off] = 0
	}

	off++

	if m.HasPrefix {
		copy(buf[off:], m.SHA1Prefix[:])
		off += PrefixHashSize
	}

	binary.LittleEndian.PutUint64(buf[off:], m.PathID)

	return buf
}

// DecodeFileMeta parses buf produced by [EncodeFileMeta].
func DecodeFileMeta(buf []byte) (FileMeta, error) {
	if len(buf) < 1 {
		return FileMeta{}, fmt.Errorf("file meta: %w", ErrTruncated)
	}

	ver := buf[0]
	if ver == 0 || ver > FileMetaVersion1 {
		return FileMeta{}, fmt.Errorf("file meta: version %d: %w", ver, ErrUnsupportedVersion)
	}

	const fixedLen = 1 + 8 + 8 + HashSize + 1
	if len(buf) < fixedLen {
		return FileMeta{}, fmt.Errorf("file meta: %w", ErrTruncated)
	}

	var m FileMeta

	off := 1
	m.Size = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	m.MtimeSecs = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	copy(m.Hash256[:], buf[off:off+HashSize])
	off += HashSize

	hasPrefix := buf[off]
	off++

	switch hasPrefix {
	case 0:
		m.HasPrefix = false
	case 1:
		m.HasPrefix = true

		if len(buf) < off+PrefixHashSize+IDSize {
			return FileMeta{}, fmt.Errorf("file meta: %w", ErrTruncated)
		}

		copy(m.SHA1Prefix[:], buf[off:off+PrefixHashSize])
		off += PrefixHashSize
	default:
		return FileMeta{}, fmt.Errorf("file meta: has_prefix byte %d: %w", hasPrefix, ErrMalformed)
	}

	if len(buf) < off+IDSize {
		return FileMeta{}, fmt.Errorf("file meta: %w", ErrTruncated)
	}

	m.PathID = binary.LittleEndian.Uint64(buf[off:])

	return m, nil
}

// State is one byte from the closed set spec.md §3/§6 define.
type State byte

const (
	StateLive     State = 0
	StateReplaced State = 1
	StateMissing  State = 2
)

// String implements fmt.Stringer for diagnostics.
func (s State) String() string {
	switch s {
	case StateLive:
		return "live"
	case StateReplaced:
		return "replaced"
	case StateMissing:
		return "missing"
	default:
		return fmt.Sprintf("state(%d)", byte(s))
	}
}

// EncodeFileState serializes a FileState record: [state:1].
func EncodeFileState(s State) []byte {
	return []byte{byte(s)}
}

// DecodeFileState parses a FileState record. Unknown states are a forward
// compatibility error per spec.md §6 ("unknown states cause a load-time
// error").
func DecodeFileState(buf []byte) (State, error) {
	if len(buf) != 1 {
		return 0, fmt.Errorf("file state: %w", ErrTruncated)
	}

	s := State(buf[0])

	switch s {
	case StateLive, StateReplaced, StateMissing:
		return s, nil
	default:
		return 0, fmt.Errorf("file state: unknown state %d: %w", buf[0], ErrMalformed)
	}
}

// EncodePathCurrent serializes a PathCurrent record: [file_id:8].
func EncodePathCurrent(fileID uint64) []byte {
	buf := make([]byte, IDSize)
	binary.LittleEndian.PutUint64(buf, fileID)

	return buf
}

// DecodePathCurrent parses a PathCurrent record.
func DecodePathCurrent(buf []byte) (uint64, error) {
	if len(buf) != IDSize {
		return 0, fmt.Errorf("path current: %w", ErrTruncated)
	}

	return binary.LittleEndian.Uint64(buf), nil
}

// EncodeIDList serializes a ContentGroup/PrefixGroup value: a varint count
// followed by that many 8-byte ids, sorted ascending with no duplicates.
// The caller must pass ids already sorted and deduplicated; EncodeIDList
// does not sort defensively so that callers who already maintain sorted
// order (internal/index does, via insertion) don't pay for a redundant sort.
func EncodeIDList(ids []uint64) []byte {
	head := make([]byte, binary.MaxVarintLen64)
	n := binary.PutUvarint(head, uint64(len(ids)))

	buf := make([]byte, n+len(ids)*IDSize)
	copy(buf, head[:n])

	off := n
	for _, id := range ids {
		binary.LittleEndian.PutUint64(buf[off:], id)
		off += IDSize
	}

	return buf
}

// DecodeIDList parses a value produced by [EncodeIDList]. It validates that
// ids are strictly ascending (sorted, no duplicates) per spec.md §4.B.
func DecodeIDList(buf []byte) ([]uint64, error) {
	count, n := binary.Uvarint(buf)
	if n <= 0 {
		return nil, fmt.Errorf("id list: decode count: %w", ErrTruncated)
	}

	rest := buf[n:]
	if uint64(len(rest)) != count*IDSize {
		return nil, fmt.Errorf("id list: expected %d bytes for %d ids, got %d: %w", count*IDSize, count, len(rest), ErrTruncated)
	}

	ids := make([]uint64, count)

	var prev uint64

	for i := range ids {
		id := binary.LittleEndian.Uint64(rest[i*IDSize:])
		if i > 0 && id <= prev {
			return nil, fmt.Errorf("id list: ids not strictly ascending at index %d: %w", i, ErrMalformed)
		}

		ids[i] = id
		prev = id
	}

	return ids, nil
}
