package osfs_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jgaa/deldupes/internal/osfs"
)

func Test_Real_Exists_Returns_False_When_Path_Does_Not_Exist(t *testing.T) {
	t.Parallel()

	fs := osfs.NewReal()
	dir := t.TempDir()

	exists, err := fs.Exists(filepath.Join(dir, "missing.txt"))
	if err != nil {
		t.Fatalf("exists: %v", err)
	}

	if exists {
		t.Fatal("exists=true, want false")
	}
}

func Test_Real_Exists_Returns_True_For_File_And_Dir(t *testing.T) {
	t.Parallel()

	fs := osfs.NewReal()
	dir := t.TempDir()
	filePath := filepath.Join(dir, "a.txt")

	if err := os.WriteFile(filePath, []byte("x"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	exists, err := fs.Exists(filePath)
	if err != nil || !exists {
		t.Fatalf("exists=%v err=%v, want true nil", exists, err)
	}

	exists, err = fs.Exists(dir)
	if err != nil || !exists {
		t.Fatalf("exists=%v err=%v, want true nil", exists, err)
	}
}

func Test_Real_Rename_Replaces_Destination(t *testing.T) {
	t.Parallel()

	fs := osfs.NewReal()
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "dst.txt")

	if err := os.WriteFile(src, []byte("new"), 0o644); err != nil {
		t.Fatalf("setup src: %v", err)
	}

	if err := os.WriteFile(dst, []byte("old"), 0o644); err != nil {
		t.Fatalf("setup dst: %v", err)
	}

	if err := fs.Rename(src, dst); err != nil {
		t.Fatalf("rename: %v", err)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read dst: %v", err)
	}

	if string(got) != "new" {
		t.Fatalf("dst content=%q, want %q", got, "new")
	}
}
