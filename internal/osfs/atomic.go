package osfs

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
)

// ErrDirSync indicates the parent directory could not be synced after
// rename. The new file is in place but durability across a crash is not
// guaranteed.
var ErrDirSync = errors.New("osfs: dir sync")

// AtomicWriter writes single files atomically via temp-file-then-rename.
type AtomicWriter struct {
	fs FS
}

// NewAtomicWriter creates an AtomicWriter backed by fs.
func NewAtomicWriter(fs FS) *AtomicWriter {
	if fs == nil {
		panic("osfs: fs is nil")
	}

	return &AtomicWriter{fs: fs}
}

// WriteOptions configures [AtomicWriter.Write].
type WriteOptions struct {
	// SyncDir controls whether the parent directory is fsynced after
	// rename. [AtomicWriter.DefaultOptions] sets it to true; the zero value
	// (false) skips the directory sync.
	SyncDir bool

	// Perm is the file's permission bits. Must be non-zero.
	Perm os.FileMode
}

// DefaultOptions returns {SyncDir: true, Perm: 0o644}.
func (*AtomicWriter) DefaultOptions() WriteOptions {
	return WriteOptions{SyncDir: true, Perm: 0o644}
}

// Write durably replaces path with the bytes read from r: it writes to a
// temp file in the same directory, fsyncs it, renames it over path, then
// (if opts.SyncDir) fsyncs the parent directory.
//
// If the directory sync step fails, the returned error wraps [ErrDirSync];
// the rename has already completed and the new content is in place.
func (w *AtomicWriter) Write(path string, r io.Reader, opts WriteOptions) error {
	if r == nil {
		panic("osfs: reader is nil")
	}

	if path == "" {
		return errors.New("osfs: path is empty")
	}

	if opts.Perm == 0 {
		return errors.New("osfs: opts.Perm must be non-zero")
	}

	dir, base := filepath.Split(path)
	if base == "" || base == "." {
		return fmt.Errorf("osfs: invalid path %q", path)
	}

	if dir == "" {
		dir = "."
	}

	dir = filepath.Clean(dir)

	tmpFile, tmpPath, err := createTempFile(w.fs, dir, base, opts.Perm)
	if err != nil {
		return err
	}

	cleanup := func() error {
		closeErr := closeNamed(tmpPath, tmpFile)
		removeErr := removeIfExists(w.fs, tmpPath)

		return errors.Join(closeErr, removeErr)
	}

	if err := tmpFile.Chmod(opts.Perm); err != nil {
		return errors.Join(fmt.Errorf("osfs: chmod temp file %q: %w", tmpPath, err), cleanup())
	}

	if err := writeAndSync(tmpFile, tmpPath, r); err != nil {
		return errors.Join(err, cleanup())
	}

	if err := w.fs.Rename(tmpPath, path); err != nil {
		return errors.Join(fmt.Errorf("osfs: rename: %w", err), cleanup())
	}

	cleanupErr := cleanup()

	if opts.SyncDir {
		if err := fsyncDir(w.fs, dir); err != nil {
			return errors.Join(err, cleanupErr)
		}
	}

	return nil
}

func writeAndSync(file File, path string, r io.Reader) error {
	if _, err := io.Copy(file, r); err != nil {
		return fmt.Errorf("osfs: write temp file %q: %w", path, err)
	}

	if err := file.Sync(); err != nil {
		return fmt.Errorf("osfs: sync temp file %q: %w", path, err)
	}

	return nil
}

const maxTempFileAttempts = 10000

var tempFileCounter atomic.Uint64

func createTempFile(fs FS, dir, base string, perm os.FileMode) (File, string, error) {
	for range maxTempFileAttempts {
		seq := tempFileCounter.Add(1)
		path := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d", base, seq))

		file, err := fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
		if err == nil {
			return file, path, nil
		}

		if os.IsExist(err) {
			continue
		}

		return nil, "", fmt.Errorf("osfs: create temp file: %w", err)
	}

	return nil, "", fmt.Errorf("osfs: exhausted temp file attempts in %q", dir)
}

func fsyncDir(fs FS, dirPath string) error {
	dirFd, err := fs.Open(dirPath)
	if err != nil {
		return errors.Join(ErrDirSync, fmt.Errorf("osfs: open dir %q: %w", dirPath, err))
	}

	syncErr := dirFd.Sync()
	if syncErr == nil {
		return closeNamed(dirPath, dirFd)
	}

	return errors.Join(ErrDirSync, fmt.Errorf("osfs: sync dir %q: %w", dirPath, syncErr), closeNamed(dirPath, dirFd))
}

func closeNamed(path string, file File) error {
	if err := file.Close(); err != nil {
		return fmt.Errorf("osfs: close %q: %w", path, err)
	}

	return nil
}

func removeIfExists(fs FS, path string) error {
	err := fs.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("osfs: remove %q: %w", path, err)
	}

	return nil
}
