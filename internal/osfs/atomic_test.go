package osfs_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jgaa/deldupes/internal/osfs"
)

func Test_AtomicWriter_Write_Creates_New_File(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "meta")
	w := osfs.NewAtomicWriter(osfs.NewReal())

	err := w.Write(path, strings.NewReader("hello"), w.DefaultOptions())
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	if string(got) != "hello" {
		t.Fatalf("content=%q, want %q", got, "hello")
	}
}

func Test_AtomicWriter_Write_Replaces_Existing_File_Atomically(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "meta")
	w := osfs.NewAtomicWriter(osfs.NewReal())

	if err := w.Write(path, strings.NewReader("v1"), w.DefaultOptions()); err != nil {
		t.Fatalf("write v1: %v", err)
	}

	if err := w.Write(path, strings.NewReader("v2-longer"), w.DefaultOptions()); err != nil {
		t.Fatalf("write v2: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	if string(got) != "v2-longer" {
		t.Fatalf("content=%q, want %q", got, "v2-longer")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}

	if len(entries) != 1 {
		t.Fatalf("dir has %d entries after write, want 1 (no leftover temp files): %v", len(entries), entries)
	}
}

func Test_AtomicWriter_Write_Rejects_Zero_Perm(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "meta")
	w := osfs.NewAtomicWriter(osfs.NewReal())

	err := w.Write(path, strings.NewReader("x"), osfs.WriteOptions{})
	if err == nil {
		t.Fatal("want error for zero Perm, got nil")
	}
}
