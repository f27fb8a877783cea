package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// captureStdout redirects os.Stdout for the duration of fn and returns
// everything written to it. The CLI subcommands write straight to
// os.Stdout rather than through an injected writer, so integration tests
// redirect the real file descriptor instead.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()

	orig := os.Stdout

	r, w, err := os.Pipe()
	require.NoError(t, err)

	os.Stdout = w

	defer func() { os.Stdout = orig }()

	fn()

	require.NoError(t, w.Close())

	var buf bytes.Buffer
	_, err = io.Copy(&buf, r)
	require.NoError(t, err)

	return buf.String()
}

func writeDupFiles(t *testing.T, dir string) (a, b string) {
	t.Helper()

	a = filepath.Join(dir, "a.txt")
	b = filepath.Join(dir, "b.txt")

	require.NoError(t, os.WriteFile(a, []byte("duplicate content"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("duplicate content"), 0o644))

	return a, b
}

func Test_Scan_Then_Dupes_Reports_The_Pair(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	a, b := writeDupFiles(t, dir)

	code := run([]string{"scan", dir})
	require.Equal(t, 0, code, "scan should succeed")

	out := captureStdout(t, func() {
		code = run([]string{"dupes", "-r", dir})
	})
	require.Equal(t, 0, code, "dupes should succeed")
	require.Contains(t, out, a)
	require.Contains(t, out, b)
}

func Test_Plan_Dry_Run_Does_Not_Delete(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	a, b := writeDupFiles(t, dir)

	require.Equal(t, 0, run([]string{"scan", dir}))

	code := run([]string{"plan", "-r", dir, "--preserve=oldest"})
	require.Equal(t, 0, code)

	_, errA := os.Stat(a)
	_, errB := os.Stat(b)
	require.NoError(t, errA, "plan must not remove files")
	require.NoError(t, errB, "plan must not remove files")
}

func Test_Apply_Deletes_One_Copy_And_Keeps_The_Other(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	a, b := writeDupFiles(t, dir)

	require.Equal(t, 0, run([]string{"scan", dir}))

	code := run([]string{"apply", "-r", dir, "--preserve=alpha_first"})
	require.Equal(t, 0, code)

	_, errA := os.Stat(a)
	_, errB := os.Stat(b)

	// alpha_first keeps a.txt (lexically first) and removes b.txt.
	require.NoError(t, errA, "kept file should still exist")
	require.True(t, os.IsNotExist(errB), "deleted file should be gone")
}

func Test_Unknown_Subcommand_Returns_Nonzero(t *testing.T) {
	t.Parallel()

	code := run([]string{"bogus"})
	require.Equal(t, 2, code)
}

func Test_No_Args_Prints_Usage_And_Returns_Nonzero(t *testing.T) {
	t.Parallel()

	code := run(nil)
	require.Equal(t, 2, code)
}
