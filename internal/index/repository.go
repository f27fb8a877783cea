// Package index implements the index repository: spec.md §4.D's
// intern_path, current_version, record_observation, mark_missing, and the
// group/meta/state lookups, all built directly on internal/kv's table
// abstraction and internal/codec's record layouts. There is no teacher
// analog for this package's domain logic (ticket tracking has no content
// dedup concept); its shape follows spec.md §4.D directly, exercised
// through the same single-write-transaction-per-batch discipline the
// teacher's internal/store package uses for its own mutations.
package index

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/jgaa/deldupes/internal/codec"
	"github.com/jgaa/deldupes/internal/kv"
)

// ErrUnknownFile is returned when get_meta/get_state/mark_missing are asked
// about a file_id that was never written.
var ErrUnknownFile = errors.New("index: unknown file id")

// txReader is satisfied by both *kv.ReadTx and *kv.WriteTx, letting the
// read-only lookups in this file accept either.
type txReader interface {
	Get(table kv.Table, k []byte) ([]byte, bool, error)
	Iterate(table kv.Table, prefix []byte) (*kv.Iterator, error)
}

// txWriter is satisfied by *kv.WriteTx; every mutating repository
// operation requires one, so that all of record_observation's five steps
// land in the caller's single write transaction per spec.md §4.D ("All
// mutating operations execute inside exactly one write transaction per
// scan batch... to preserve invariants atomically").
type txWriter interface {
	txReader
	Put(table kv.Table, k, v []byte) error
	Delete(table kv.Table, k []byte) error
}

func idKey(id uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, id)

	return buf
}

// InternPath returns path's path_id, allocating and persisting a new one on
// first sight. Idempotent: a second call with the same path returns the
// same id.
func InternPath(tx txWriter, path string) (uint64, error) {
	key := []byte(path)

	if v, ok, err := tx.Get(kv.TablePathToID, key); err != nil {
		return 0, fmt.Errorf("index: intern path: lookup: %w", err)
	} else if ok {
		if len(v) != 8 {
			return 0, fmt.Errorf("index: intern path: corrupt path_id width %d", len(v))
		}

		return binary.LittleEndian.Uint64(v), nil
	}

	id, err := nextID(tx, metaKeyNextPathID)
	if err != nil {
		return 0, fmt.Errorf("index: intern path: allocate id: %w", err)
	}

	if err := tx.Put(kv.TablePathToID, key, idKey(id)); err != nil {
		return 0, fmt.Errorf("index: intern path: write path->id: %w", err)
	}

	if err := tx.Put(kv.TableIDToPath, idKey(id), key); err != nil {
		return 0, fmt.Errorf("index: intern path: write id->path: %w", err)
	}

	return id, nil
}

// CurrentVersion returns the file_id of pathID's current Live version, if
// one exists. Read-only.
func CurrentVersion(tx txReader, pathID uint64) (uint64, bool, error) {
	v, ok, err := tx.Get(kv.TablePathCurrent, idKey(pathID))
	if err != nil {
		return 0, false, fmt.Errorf("index: current version: %w", err)
	}

	if !ok {
		return 0, false, nil
	}

	fileID, err := codec.DecodePathCurrent(v)
	if err != nil {
		return 0, false, fmt.Errorf("index: current version: decode: %w", err)
	}

	return fileID, true, nil
}

// Observation is the identity and content fingerprint record_observation
// compares against the current version, and writes if it differs.
type Observation struct {
	Size       uint64
	MtimeSecs  uint64
	Hash256    [codec.HashSize]byte
	HasPrefix  bool
	SHA1Prefix [codec.PrefixHashSize]byte
}

// RecordObservation implements spec.md §4.D's record_observation. If
// PathCurrent[pathID] already points at a version whose FileMeta matches
// obs exactly (size, mtime_secs, hash256), it returns that file_id
// unchanged with created=false — the per-path identity shortcut that lets
// internal/scan skip rewriting unchanged files. Otherwise it performs the
// five-step transition spec.md §4.D lists and returns the new file_id with
// created=true.
func RecordObservation(tx txWriter, pathID uint64, obs Observation) (fileID uint64, created bool, err error) {
	prevFileID, hasPrev, err := CurrentVersion(tx, pathID)
	if err != nil {
		return 0, false, fmt.Errorf("index: record observation: %w", err)
	}

	if hasPrev {
		prevMeta, err := GetMeta(tx, prevFileID)
		if err != nil {
			return 0, false, fmt.Errorf("index: record observation: read previous meta: %w", err)
		}

		if prevMeta.Size == obs.Size && prevMeta.MtimeSecs == obs.MtimeSecs && prevMeta.Hash256 == obs.Hash256 {
			return prevFileID, false, nil
		}

		// Step 1: transition the previous current version Live -> Replaced.
		if err := setState(tx, prevFileID, codec.StateReplaced); err != nil {
			return 0, false, fmt.Errorf("index: record observation: replace previous: %w", err)
		}
	}

	// Step 2: allocate the new file_id, write FileMeta, set state Live.
	newFileID, err := nextID(tx, metaKeyNextFileID)
	if err != nil {
		return 0, false, fmt.Errorf("index: record observation: allocate file id: %w", err)
	}

	meta := codec.FileMeta{
		Size:       obs.Size,
		MtimeSecs:  obs.MtimeSecs,
		Hash256:    obs.Hash256,
		HasPrefix:  obs.HasPrefix,
		SHA1Prefix: obs.SHA1Prefix,
		PathID:     pathID,
	}

	if err := tx.Put(kv.TableFileMeta, idKey(newFileID), codec.EncodeFileMeta(meta)); err != nil {
		return 0, false, fmt.Errorf("index: record observation: write meta: %w", err)
	}

	if err := setState(tx, newFileID, codec.StateLive); err != nil {
		return 0, false, fmt.Errorf("index: record observation: set live: %w", err)
	}

	// Step 3: insert into ContentGroup[hash256], sorted and unique.
	if err := insertIntoGroup(tx, kv.TableContentGroup, obs.Hash256[:], newFileID); err != nil {
		return 0, false, fmt.Errorf("index: record observation: content group: %w", err)
	}

	// Step 4: insert into PrefixGroup[sha1_prefix], if present.
	if obs.HasPrefix {
		if err := insertIntoGroup(tx, kv.TablePrefixGroup, obs.SHA1Prefix[:], newFileID); err != nil {
			return 0, false, fmt.Errorf("index: record observation: prefix group: %w", err)
		}
	}

	// Step 5: set PathCurrent[pathID] = new file_id.
	if err := tx.Put(kv.TablePathCurrent, idKey(pathID), codec.EncodePathCurrent(newFileID)); err != nil {
		return 0, false, fmt.Errorf("index: record observation: set path current: %w", err)
	}

	return newFileID, true, nil
}

// MarkMissing transitions fileID Live -> Missing and clears PathCurrent for
// its path_id if it still points at fileID. A no-op on the state itself if
// fileID is already non-Live, but PathCurrent is still cleared in that
// case, matching spec.md §4.D.
func MarkMissing(tx txWriter, fileID uint64) error {
	meta, err := GetMeta(tx, fileID)
	if err != nil {
		return fmt.Errorf("index: mark missing: %w", err)
	}

	state, err := GetState(tx, fileID)
	if err != nil {
		return fmt.Errorf("index: mark missing: %w", err)
	}

	if state == codec.StateLive {
		if err := setState(tx, fileID, codec.StateMissing); err != nil {
			return fmt.Errorf("index: mark missing: %w", err)
		}
	}

	cur, ok, err := CurrentVersion(tx, meta.PathID)
	if err != nil {
		return fmt.Errorf("index: mark missing: read path current: %w", err)
	}

	if ok && cur == fileID {
		if err := tx.Delete(kv.TablePathCurrent, idKey(meta.PathID)); err != nil {
			return fmt.Errorf("index: mark missing: clear path current: %w", err)
		}
	}

	return nil
}

// ListContentGroup returns the sorted, unique file_ids sharing hash256, or
// nil if the group is empty.
func ListContentGroup(tx txReader, hash256 [codec.HashSize]byte) ([]uint64, error) {
	return readGroup(tx, kv.TableContentGroup, hash256[:])
}

// ListPrefixGroup returns the sorted, unique file_ids sharing prefix.
func ListPrefixGroup(tx txReader, prefix [codec.PrefixHashSize]byte) ([]uint64, error) {
	return readGroup(tx, kv.TablePrefixGroup, prefix[:])
}

// GetMeta returns fileID's FileMeta record.
func GetMeta(tx txReader, fileID uint64) (codec.FileMeta, error) {
	v, ok, err := tx.Get(kv.TableFileMeta, idKey(fileID))
	if err != nil {
		return codec.FileMeta{}, fmt.Errorf("index: get meta: %w", err)
	}

	if !ok {
		return codec.FileMeta{}, fmt.Errorf("index: get meta: file_id %d: %w", fileID, ErrUnknownFile)
	}

	m, err := codec.DecodeFileMeta(v)
	if err != nil {
		return codec.FileMeta{}, fmt.Errorf("index: get meta: decode: %w", err)
	}

	return m, nil
}

// GetState returns fileID's current state.
func GetState(tx txReader, fileID uint64) (codec.State, error) {
	v, ok, err := tx.Get(kv.TableFileState, idKey(fileID))
	if err != nil {
		return 0, fmt.Errorf("index: get state: %w", err)
	}

	if !ok {
		return 0, fmt.Errorf("index: get state: file_id %d: %w", fileID, ErrUnknownFile)
	}

	s, err := codec.DecodeFileState(v)
	if err != nil {
		return 0, fmt.Errorf("index: get state: decode: %w", err)
	}

	return s, nil
}

func setState(tx txWriter, fileID uint64, s codec.State) error {
	return tx.Put(kv.TableFileState, idKey(fileID), codec.EncodeFileState(s))
}

func readGroup(tx txReader, table kv.Table, groupKey []byte) ([]uint64, error) {
	v, ok, err := tx.Get(table, groupKey)
	if err != nil {
		return nil, fmt.Errorf("index: read group: %w", err)
	}

	if !ok {
		return nil, nil
	}

	ids, err := codec.DecodeIDList(v)
	if err != nil {
		return nil, fmt.Errorf("index: read group: decode: %w", err)
	}

	return ids, nil
}

func insertIntoGroup(tx txWriter, table kv.Table, groupKey []byte, fileID uint64) error {
	ids, err := readGroup(tx, table, groupKey)
	if err != nil {
		return err
	}

	pos := 0
	for pos < len(ids) && ids[pos] < fileID {
		pos++
	}

	if pos < len(ids) && ids[pos] == fileID {
		return nil
	}

	ids = append(ids, 0)
	copy(ids[pos+1:], ids[pos:])
	ids[pos] = fileID

	return tx.Put(table, groupKey, codec.EncodeIDList(ids))
}
