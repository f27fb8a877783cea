package lifecycle

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/jgaa/deldupes/internal/osfs"
)

// meta record layout: [schema_version:4][created_at_unix:8][algo_len:2][algo_name].
// Fixed-header, versioned, little-endian, same style as internal/codec —
// kept separate because the database descriptor is a single small file
// written once at creation, not a hot-path record.
func encodeMeta(m Meta) []byte {
	algo := []byte(m.HashAlgorithm)

	buf := make([]byte, 4+8+2+len(algo))
	binary.LittleEndian.PutUint32(buf[0:], m.SchemaVersion)
	binary.LittleEndian.PutUint64(buf[4:], uint64(m.CreatedAtUnix))
	binary.LittleEndian.PutUint16(buf[12:], uint16(len(algo)))
	copy(buf[14:], algo)

	return buf
}

func decodeMeta(buf []byte) (Meta, error) {
	if len(buf) < 14 {
		return Meta{}, fmt.Errorf("lifecycle: meta record truncated (%d bytes)", len(buf))
	}

	var m Meta
	m.SchemaVersion = binary.LittleEndian.Uint32(buf[0:])
	m.CreatedAtUnix = int64(binary.LittleEndian.Uint64(buf[4:]))

	algoLen := int(binary.LittleEndian.Uint16(buf[12:]))
	if len(buf) < 14+algoLen {
		return Meta{}, fmt.Errorf("lifecycle: meta record truncated (algo name)")
	}

	m.HashAlgorithm = string(buf[14 : 14+algoLen])

	return m, nil
}

func writeMeta(fs osfs.FS, path string, m Meta) error {
	w := osfs.NewAtomicWriter(fs)

	if err := w.Write(path, bytes.NewReader(encodeMeta(m)), w.DefaultOptions()); err != nil {
		return fmt.Errorf("lifecycle: atomic write meta: %w", err)
	}

	return nil
}

func readMeta(fs osfs.FS, path string) (Meta, error) {
	f, err := fs.Open(path)
	if err != nil {
		return Meta{}, fmt.Errorf("lifecycle: open meta: %w", err)
	}

	defer func() { _ = f.Close() }()

	buf, err := io.ReadAll(f)
	if err != nil {
		return Meta{}, fmt.Errorf("lifecycle: read meta: %w", err)
	}

	m, err := decodeMeta(buf)
	if err != nil {
		return Meta{}, err
	}

	return m, nil
}
