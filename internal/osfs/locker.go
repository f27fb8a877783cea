package osfs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"
)

// ErrWouldBlock is returned by TryLock/TryRLock when the lock is held by
// another process, and (wrapping ctx.Err()) by Lock/RLock when ctx is done
// before the lock is acquired.
var ErrWouldBlock = errors.New("osfs: lock would block")

// errInodeMismatch is an internal sentinel indicating the lock file was
// replaced between open and flock; callers retry.
var errInodeMismatch = errors.New("osfs: lock file replaced")

// Locker provides advisory file locking using flock(2).
//
// flock locks an inode (the open file descriptor), not a pathname, so
// Locker re-verifies after acquiring the lock that the path still refers to
// the inode it locked (see acquire). Lock a dedicated, stable path and avoid
// replacing it while locks may be held.
type Locker struct {
	fs    FS
	flock func(fd int, how int) error
}

// NewLocker creates a Locker that uses fs for file operations.
func NewLocker(fs FS) *Locker {
	return &Locker{fs: fs, flock: syscall.Flock}
}

// Lock represents a held advisory lock. Call [Lock.Close] to release it.
type Lock struct {
	mu    sync.Mutex
	file  File
	flock func(fd int, how int) error
}

// Close releases the lock and closes the underlying descriptor. Idempotent.
func (lk *Lock) Close() error {
	lk.mu.Lock()
	defer lk.mu.Unlock()

	if lk.file == nil {
		return nil
	}

	fd := int(lk.file.Fd())

	unlockErr := flockRetryEINTR(lk.flock, fd, syscall.LOCK_UN)
	closeErr := lk.file.Close()
	lk.file = nil

	if unlockErr != nil {
		return fmt.Errorf("osfs: unlock: %w", unlockErr)
	}

	if closeErr != nil {
		return fmt.Errorf("osfs: close lock fd: %w", closeErr)
	}

	return nil
}

type lockType int

const (
	sharedLock    lockType = syscall.LOCK_SH
	exclusiveLock lockType = syscall.LOCK_EX
)

// Lock acquires an exclusive lock on path, retrying with backoff until ctx
// is done. The lock file and its parent directories are created if absent.
func (l *Locker) Lock(ctx context.Context, path string) (*Lock, error) {
	return l.acquireWithBackoff(ctx, path, exclusiveLock)
}

// RLock acquires a shared lock on path, retrying with backoff until ctx is
// done. Multiple shared locks may be held simultaneously; a shared lock
// blocks, and is blocked by, an exclusive lock.
func (l *Locker) RLock(ctx context.Context, path string) (*Lock, error) {
	return l.acquireWithBackoff(ctx, path, sharedLock)
}

// TryLock attempts to acquire an exclusive lock without blocking. Returns
// [ErrWouldBlock] immediately if another process holds it.
func (l *Locker) TryLock(path string) (*Lock, error) {
	return l.acquireOnce(path, exclusiveLock)
}

// TryRLock attempts to acquire a shared lock without blocking.
func (l *Locker) TryRLock(path string) (*Lock, error) {
	return l.acquireOnce(path, sharedLock)
}

func (l *Locker) acquireOnce(path string, lt lockType) (*Lock, error) {
	for {
		file, err := l.openLockFile(path, openFlagForLockType(lt))
		if err != nil {
			return nil, fmt.Errorf("osfs: open lock file: %w", err)
		}

		err = l.acquire(file, path, lt, true)
		if err == nil {
			return &Lock{file: file, flock: l.flock}, nil
		}

		_ = file.Close()

		if errors.Is(err, errInodeMismatch) {
			continue
		}

		return nil, err
	}
}

// acquireWithBackoff polls with non-blocking flock and exponential backoff
// (1ms to 25ms) because the backing syscall has no way to interrupt a
// blocking flock call on ctx cancellation.
func (l *Locker) acquireWithBackoff(ctx context.Context, path string, lt lockType) (*Lock, error) {
	if ctx == nil {
		return nil, errors.New("osfs: context is nil")
	}

	backoff := time.Millisecond

	for {
		lock, err := l.acquireOnce(path, lt)
		if err == nil {
			return lock, nil
		}

		if !errors.Is(err, ErrWouldBlock) {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrWouldBlock, ctx.Err())
		case <-time.After(backoff):
		}

		if backoff < 25*time.Millisecond {
			backoff *= 2
			if backoff > 25*time.Millisecond {
				backoff = 25 * time.Millisecond
			}
		}
	}
}

// acquire flocks file non-blocking and verifies the inode at path still
// matches. On failure the file is unlocked but left open; the caller closes
// it. See inodeMatchesPath for why the re-check is necessary.
func (l *Locker) acquire(file File, path string, lt lockType, nonBlocking bool) error {
	fd := int(file.Fd())

	flags := int(lt)
	if nonBlocking {
		flags |= syscall.LOCK_NB
	}

	if err := flockRetryEINTR(l.flock, fd, flags); err != nil {
		if isWouldBlock(err) {
			return ErrWouldBlock
		}

		return err
	}

	match, err := l.inodeMatchesPath(path, file)
	if err != nil {
		_ = flockRetryEINTR(l.flock, fd, syscall.LOCK_UN)

		if errors.Is(err, os.ErrNotExist) {
			return errInodeMismatch
		}

		return fmt.Errorf("osfs: verify lock file identity: %w", err)
	}

	if !match {
		_ = flockRetryEINTR(l.flock, fd, syscall.LOCK_UN)
		return errInodeMismatch
	}

	return nil
}

const (
	lockFilePerm = 0o600
	lockDirPerm  = 0o755
)

func (l *Locker) openLockFile(path string, flag int) (File, error) {
	f, err := l.fs.OpenFile(path, flag|os.O_CREATE, lockFilePerm)
	if err == nil || !errors.Is(err, os.ErrNotExist) {
		return f, err
	}

	if err := l.fs.MkdirAll(filepath.Dir(path), lockDirPerm); err != nil {
		return nil, err
	}

	return l.fs.OpenFile(path, flag|os.O_CREATE, lockFilePerm)
}

// inodeMatchesPath guards against the lock path being replaced (rename,
// delete+recreate) between open and flock: flock locks the inode of the
// open descriptor, not the pathname, so without this check two callers
// could each believe they hold "the lock on path" while actually holding
// flocks on two different inodes.
func (l *Locker) inodeMatchesPath(path string, f File) (bool, error) {
	openInfo, err := f.Stat()
	if err != nil {
		return false, err
	}

	openSys, ok := openInfo.Sys().(*syscall.Stat_t)
	if !ok || openSys == nil {
		return false, fmt.Errorf("osfs: Stat.Sys()=%T, want *syscall.Stat_t", openInfo.Sys())
	}

	pathInfo, err := l.fs.Stat(path)
	if err != nil {
		return false, err
	}

	pathSys, ok := pathInfo.Sys().(*syscall.Stat_t)
	if !ok || pathSys == nil {
		return false, fmt.Errorf("osfs: Stat.Sys()=%T, want *syscall.Stat_t", pathInfo.Sys())
	}

	return openSys.Dev == pathSys.Dev && openSys.Ino == pathSys.Ino, nil
}

func isWouldBlock(err error) bool {
	return errors.Is(err, syscall.EWOULDBLOCK) || errors.Is(err, syscall.EAGAIN)
}

func openFlagForLockType(lt lockType) int {
	if lt == sharedLock {
		return os.O_RDONLY
	}

	return os.O_RDWR
}

// flockRetryEINTR retries flock on EINTR, capped so a pathological signal
// storm can't spin forever.
func flockRetryEINTR(flock func(fd int, how int) error, fd int, how int) error {
	const maxEINTRRetries = 10000

	var err error

	for range maxEINTRRetries {
		err = flock(fd, how)
		if err == nil || !errors.Is(err, syscall.EINTR) {
			return err
		}
	}

	return err
}
