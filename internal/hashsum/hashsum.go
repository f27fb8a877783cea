// Package hashsum provides the pluggable hash-algorithm seam spec.md §9
// calls for. Grounded on go-git's plumbing.Hasher, which wraps stdlib
// crypto.Hash implementations behind a thin interface rather than reaching
// for a third-party hash package: hashing stays out of internal/scan so a
// future algorithm swap only touches this seam plus a schema version bump.
package hashsum

import (
	"crypto/sha1"
	"crypto/sha256"
	"fmt"
	"io"
)

// ContentHashSize and PrefixHashSize mirror internal/codec's widths; they
// are redeclared here rather than imported so hashsum has no dependency on
// the persistence layer.
const (
	ContentHashSize = 32
	PrefixHashSize  = 20
)

// PrefixThresholdBytes is the prefix length hashed by PrefixSum. internal/scan
// computes a prefix hash only for files strictly larger than this size.
const PrefixThresholdBytes = 32 * 1024

// Algorithm computes the digests internal/scan needs for one file's
// content. Implementations must be safe for concurrent use by multiple
// hashing workers, each calling with an independent io.Reader.
type Algorithm interface {
	// ContentSum consumes r fully and returns the 256-bit content digest.
	ContentSum(r io.Reader) ([ContentHashSize]byte, error)

	// PrefixSum consumes up to PrefixThresholdBytes from r and returns the
	// 160-bit prefix digest. ok is false if r produced fewer bytes than
	// PrefixThresholdBytes; ok is true when r produced at least that many
	// bytes, including exactly that many.
	PrefixSum(r io.Reader) (sum [PrefixHashSize]byte, ok bool, err error)
}

// Default is the algorithm pair whose Name is recorded in every deldupes
// database's meta file: SHA-256 for the content digest, SHA-1 over the first
// PrefixThresholdBytes for the prefix digest.
type Default struct{}

var _ Algorithm = Default{}

// ContentSum implements [Algorithm].
func (Default) ContentSum(r io.Reader) ([ContentHashSize]byte, error) {
	h := sha256.New()

	if _, err := io.Copy(h, r); err != nil {
		return [ContentHashSize]byte{}, fmt.Errorf("hashsum: content sum: %w", err)
	}

	var out [ContentHashSize]byte
	copy(out[:], h.Sum(nil))

	return out, nil
}

// PrefixSum implements [Algorithm].
func (Default) PrefixSum(r io.Reader) ([PrefixHashSize]byte, bool, error) {
	h := sha1.New()

	n, err := io.CopyN(h, r, PrefixThresholdBytes)
	if err != nil && err != io.EOF {
		return [PrefixHashSize]byte{}, false, fmt.Errorf("hashsum: prefix sum: %w", err)
	}

	if n < PrefixThresholdBytes {
		return [PrefixHashSize]byte{}, false, nil
	}

	var out [PrefixHashSize]byte
	copy(out[:], h.Sum(nil))

	return out, true, nil
}

// Name identifies the algorithm pair for storage in the meta file, so
// internal/lifecycle can refuse to open a database created with a
// different pair.
func (Default) Name() string {
	return "sha256+sha1-prefix32k"
}
