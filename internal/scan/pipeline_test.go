package scan_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jgaa/deldupes/internal/codec"
	"github.com/jgaa/deldupes/internal/hashsum"
	"github.com/jgaa/deldupes/internal/index"
	"github.com/jgaa/deldupes/internal/kv"
	"github.com/jgaa/deldupes/internal/osfs"
	"github.com/jgaa/deldupes/internal/scan"
)

func openTestStore(t *testing.T) *kv.Store {
	t.Helper()

	s, err := kv.Open(filepath.Join(t.TempDir(), "db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	t.Cleanup(func() { _ = s.Close() })

	return s
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func Test_Run_Records_New_Files_As_Created(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "hello")
	writeFile(t, filepath.Join(dir, "b.txt"), "hello")

	store := openTestStore(t)

	events := make(chan scan.PathEvent, 2)
	events <- scan.PathEvent{Path: filepath.Join(dir, "a.txt")}
	events <- scan.PathEvent{Path: filepath.Join(dir, "b.txt")}
	close(events)

	stats, err := scan.Run(t.Context(), scan.Options{Cwd: dir, Workers: 2}, store, osfs.NewReal(), hashsum.Default{}, events)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if stats.Observed != 2 || stats.Created != 2 {
		t.Fatalf("stats=%+v, want Observed=2 Created=2", stats)
	}

	tx, err := store.BeginRead(t.Context())
	if err != nil {
		t.Fatalf("begin read: %v", err)
	}

	defer func() { _ = tx.Close() }()

	contentHash := hashOfString(t, "hello")

	ids, err := index.ListContentGroup(tx, contentHash)
	if err != nil {
		t.Fatalf("list content group: %v", err)
	}

	if len(ids) != 2 {
		t.Fatalf("got %d ids in content group, want 2 (identical content)", len(ids))
	}
}

func Test_Run_Second_Scan_Of_Unchanged_File_Is_Skipped(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	writeFile(t, path, "hello")

	store := openTestStore(t)

	run := func() scan.Stats {
		events := make(chan scan.PathEvent, 1)
		events <- scan.PathEvent{Path: path}
		close(events)

		stats, err := scan.Run(t.Context(), scan.Options{Cwd: dir, Workers: 1}, store, osfs.NewReal(), hashsum.Default{}, events)
		if err != nil {
			t.Fatalf("run: %v", err)
		}

		return stats
	}

	first := run()
	if first.Created != 1 {
		t.Fatalf("first run: stats=%+v, want Created=1", first)
	}

	second := run()
	if second.Skipped != 1 || second.Created != 0 {
		t.Fatalf("second run: stats=%+v, want Skipped=1 Created=0", second)
	}
}

func Test_Run_Reports_Stat_Errors_Without_Failing_The_Scan(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	store := openTestStore(t)

	events := make(chan scan.PathEvent, 1)
	events <- scan.PathEvent{Path: filepath.Join(dir, "does-not-exist.txt")}
	close(events)

	stats, err := scan.Run(t.Context(), scan.Options{Cwd: dir, Workers: 1}, store, osfs.NewReal(), hashsum.Default{}, events)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if stats.Errors != 1 {
		t.Fatalf("stats=%+v, want Errors=1", stats)
	}
}

func hashOfString(t *testing.T, s string) [codec.HashSize]byte {
	t.Helper()

	sum, err := hashsum.Default{}.ContentSum(strings.NewReader(s))
	if err != nil {
		t.Fatalf("content sum: %v", err)
	}

	return sum
}
