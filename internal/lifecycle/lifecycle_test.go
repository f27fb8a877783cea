package lifecycle_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/jgaa/deldupes/internal/hashsum"
	"github.com/jgaa/deldupes/internal/lifecycle"
	"github.com/jgaa/deldupes/internal/osfs"
)

func Test_Open_Creates_Fresh_Database_Directory(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "db")

	db, err := lifecycle.Open(t.Context(), osfs.NewReal(), dir, hashsum.Default{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	defer func() { _ = db.Close() }()

	if db.Meta.SchemaVersion != lifecycle.SchemaVersion1 {
		t.Fatalf("schema version=%d, want %d", db.Meta.SchemaVersion, lifecycle.SchemaVersion1)
	}
}

func Test_Open_Reopens_Existing_Database_After_Close(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "db")

	db1, err := lifecycle.Open(t.Context(), osfs.NewReal(), dir, hashsum.Default{})
	if err != nil {
		t.Fatalf("open 1: %v", err)
	}

	createdAt := db1.Meta.CreatedAtUnix

	if err := db1.Close(); err != nil {
		t.Fatalf("close 1: %v", err)
	}

	db2, err := lifecycle.Open(t.Context(), osfs.NewReal(), dir, hashsum.Default{})
	if err != nil {
		t.Fatalf("open 2: %v", err)
	}

	defer func() { _ = db2.Close() }()

	if db2.Meta.CreatedAtUnix != createdAt {
		t.Fatalf("creation timestamp changed across reopen: %d vs %d", db2.Meta.CreatedAtUnix, createdAt)
	}
}

func Test_Open_Second_Process_Sees_Busy_While_First_Holds_Lock(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "db")

	db1, err := lifecycle.Open(t.Context(), osfs.NewReal(), dir, hashsum.Default{})
	if err != nil {
		t.Fatalf("open 1: %v", err)
	}

	defer func() { _ = db1.Close() }()

	_, err = lifecycle.Open(t.Context(), osfs.NewReal(), dir, hashsum.Default{})
	if !errors.Is(err, lifecycle.ErrBusy) {
		t.Fatalf("err=%v, want ErrBusy", err)
	}
}

func Test_Open_Rejects_Foreign_Directory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	if err := osfs.NewReal().MkdirAll(filepath.Join(dir, "not-a-db"), 0o755); err != nil {
		t.Fatalf("setup: %v", err)
	}

	// dir itself exists (as t.TempDir created it) but has no meta record.
	_, err := lifecycle.Open(t.Context(), osfs.NewReal(), dir, hashsum.Default{})
	if !errors.Is(err, lifecycle.ErrNotADatabase) {
		t.Fatalf("err=%v, want ErrNotADatabase", err)
	}
}
