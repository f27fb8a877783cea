// Package osfs provides the filesystem abstractions the rest of deldupes is
// built on: an [FS] interface for testability, a [Real] implementation
// backed by the os package, an advisory [Locker], and an [AtomicWriter] for
// durable single-file writes.
//
// Paths use OS semantics (os, path/filepath), not the slash-separated paths
// of the standard library io/fs package.
package osfs

import (
	"io"
	"os"
)

// File is an open file descriptor. Satisfied by [os.File].
//
// Fd must return a valid OS file descriptor usable with syscalls (flock)
// until the file is closed, the way [os.File.Fd] does.
type File interface {
	io.ReadWriteCloser
	io.Seeker

	Fd() uintptr
	Stat() (os.FileInfo, error)
	Sync() error
	Chmod(mode os.FileMode) error
}

// FS defines the filesystem operations deldupes needs. Implementations must
// be safe for concurrent use by multiple goroutines.
type FS interface {
	Open(path string) (File, error)
	Create(path string) (File, error)
	OpenFile(path string, flag int, perm os.FileMode) (File, error)
	ReadDir(path string) ([]os.DirEntry, error)
	MkdirAll(path string, perm os.FileMode) error
	Stat(path string) (os.FileInfo, error)
	Exists(path string) (bool, error)
	Remove(path string) error
	Rename(oldpath, newpath string) error
}

var _ File = (*os.File)(nil)
