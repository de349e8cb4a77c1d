package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftworks/weft/internal/logging"
	"github.com/weftworks/weft/internal/types"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// waitForChange waits for any of the wanted paths on the stream, ignoring
// events for other paths (editors and the OS can produce extra ones).
func waitForChange(t *testing.T, w *FileWatcher, want string, timeout time.Duration) bool {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case path, ok := <-w.Changes():
			if !ok {
				return false
			}
			if path == want {
				return true
			}
		case <-deadline:
			return false
		}
	}
}

func TestNextEmitsChangeForWatchedFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "page.html")
	writeFile(t, file, "before")

	w := New(logging.NewNop())
	defer w.Complete()

	require.NoError(t, w.Next([]string{file}))

	// Give the watch loop a moment to arm before touching the file.
	time.Sleep(50 * time.Millisecond)
	writeFile(t, file, "after")

	assert.True(t, waitForChange(t, w, file, 2*time.Second), "expected a change event for %s", file)
}

func TestDirectoryPointFiltersUnrelatedSiblings(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.html")
	b := filepath.Join(dir, "b.html")
	unrelated := filepath.Join(dir, "scratch.tmp")
	writeFile(t, a, "a")
	writeFile(t, b, "b")
	writeFile(t, unrelated, "x")

	w := New(logging.NewNop())
	defer w.Complete()

	require.NoError(t, w.Next([]string{a, b}))

	points := w.WatchPoints()
	require.Len(t, points, 1)
	assert.Equal(t, types.WatchDirectory, points[0].Kind)

	time.Sleep(50 * time.Millisecond)
	writeFile(t, unrelated, "y")
	writeFile(t, a, "a2")

	// The whitelisted file is reported; the unrelated sibling never is.
	assert.True(t, waitForChange(t, w, a, 2*time.Second))
	select {
	case path := <-w.Changes():
		assert.NotEqual(t, unrelated, path)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestNextReplacesPreviousWatchSet(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old", "page.html")
	fresh := filepath.Join(dir, "fresh", "page.html")
	writeFile(t, old, "old")
	writeFile(t, fresh, "fresh")

	w := New(logging.NewNop())
	defer w.Complete()

	require.NoError(t, w.Next([]string{old}))
	require.NoError(t, w.Next([]string{fresh}))

	points := w.WatchPoints()
	require.Len(t, points, 1)
	assert.Equal(t, fresh, points[0].Path)

	time.Sleep(50 * time.Millisecond)
	writeFile(t, old, "old2")

	select {
	case path := <-w.Changes():
		assert.NotEqual(t, old, path, "re-armed watcher must not report paths from the replaced set")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestNextSkipsUnresolvablePaths(t *testing.T) {
	dir := t.TempDir()
	real := filepath.Join(dir, "page.html")
	writeFile(t, real, "x")

	w := New(logging.NewNop())
	defer w.Complete()

	require.NoError(t, w.Next([]string{
		filepath.Join(dir, "does-not-exist.html"),
		"layout/header", // logical module path, not a file
		real,
	}))

	points := w.WatchPoints()
	require.Len(t, points, 1)
	assert.Equal(t, types.WatchFile, points[0].Kind)
	assert.Equal(t, real, points[0].Path)
}

func TestCompleteIsIdempotentAndClosesStream(t *testing.T) {
	w := New(logging.NewNop())

	w.Complete()
	w.Complete()

	_, ok := <-w.Changes()
	assert.False(t, ok, "changes stream must be closed after Complete")

	assert.ErrorIs(t, w.Next([]string{"anything"}), ErrTerminated)
}

func TestErrorTerminates(t *testing.T) {
	w := New(logging.NewNop())

	w.Error(assert.AnError)
	w.Error(assert.AnError) // idempotent

	assert.ErrorIs(t, w.Next(nil), ErrTerminated)
}

func TestNextWithOnlyUnresolvablePathsArmsNothing(t *testing.T) {
	w := New(logging.NewNop())
	defer w.Complete()

	require.NoError(t, w.Next([]string{"nope/missing.html"}))
	assert.Empty(t, w.WatchPoints())
}
