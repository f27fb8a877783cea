package walk_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jgaa/deldupes/internal/walk"
)

func Test_Walk_Enumerates_Regular_Files_Only(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o644); err != nil {
		t.Fatalf("write a: %v", err)
	}

	if err := os.MkdirAll(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatalf("mkdir sub: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "sub", "b.txt"), []byte("b"), 0o644); err != nil {
		t.Fatalf("write b: %v", err)
	}

	out, errc := walk.Walk(t.Context(), dir)

	var got []string

	for ev := range out {
		got = append(got, ev.Path)
	}

	if err := <-errc; err != nil {
		t.Fatalf("walk error: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("got %v, want 2 files", got)
	}
}

func Test_Walk_Stops_On_Cancelled_Context(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	for i := range 50 {
		if err := os.WriteFile(filepath.Join(dir, string(rune('a'+i))+".txt"), []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, _ := walk.Walk(ctx, dir)

	count := 0
	for range out {
		count++
	}

	if count == 50 {
		t.Fatalf("expected cancellation to cut enumeration short, got all %d files", count)
	}
}
