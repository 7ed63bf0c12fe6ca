// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDebounce = 50 * time.Millisecond

func startWatcher(t *testing.T, path string) (*FileWatcher, context.CancelFunc) {
	t.Helper()
	w, err := New(path, testDebounce, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))
	t.Cleanup(func() {
		cancel()
		w.Stop()
	})
	return w, cancel
}

func waitChange(t *testing.T, w *FileWatcher) Change {
	t.Helper()
	select {
	case c, ok := <-w.Events():
		require.True(t, ok, "events closed")
		return c
	case <-time.After(5 * time.Second):
		t.Fatal("no change event")
		return Change{}
	}
}

func assertQuiet(t *testing.T, w *FileWatcher) {
	t.Helper()
	select {
	case c := <-w.Events():
		t.Fatalf("unexpected change: %q", c.Content)
	case <-time.After(6 * testDebounce):
	}
}

func TestFileWatcherEmitsNewContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.txt")
	require.NoError(t, os.WriteFile(path, []byte("first"), 0o644))

	w, _ := startWatcher(t, path)

	require.NoError(t, os.WriteFile(path, []byte("second\n\nparagraph"), 0o644))
	c := waitChange(t, w)
	assert.Equal(t, "second\n\nparagraph", c.Content)
	assert.Equal(t, w.Path(), c.Path)
}

func TestFileWatcherIgnoresUnchangedContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.txt")
	require.NoError(t, os.WriteFile(path, []byte("same"), 0o644))

	w, _ := startWatcher(t, path)

	require.NoError(t, os.WriteFile(path, []byte("same"), 0o644))
	assertQuiet(t, w)
}

func TestFileWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.txt")
	require.NoError(t, os.WriteFile(path, []byte("doc"), 0o644))

	w, _ := startWatcher(t, path)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("noise"), 0o644))
	assertQuiet(t, w)
}

func TestFileWatcherDebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.txt")
	require.NoError(t, os.WriteFile(path, []byte("v0"), 0o644))

	w, err := New(path, time.Second, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() { cancel(); w.Stop() })
	require.NoError(t, w.Start(ctx))

	for _, v := range []string{"v1", "v2", "v3"} {
		require.NoError(t, os.WriteFile(path, []byte(v), 0o644))
	}

	c := waitChange(t, w)
	assert.Equal(t, "v3", c.Content)
	select {
	case extra := <-w.Events():
		t.Fatalf("burst produced a second event: %q", extra.Content)
	case <-time.After(1500 * time.Millisecond):
	}
}

func TestFileWatcherWaitsForSustainedBurst(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.txt")
	require.NoError(t, os.WriteFile(path, []byte("v0"), 0o644))

	debounce := 300 * time.Millisecond
	w, err := New(path, debounce, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() { cancel(); w.Stop() })
	require.NoError(t, w.Start(ctx))

	// The burst lasts several debounce intervals with short gaps.
	const writes = 15
	for i := 1; i <= writes; i++ {
		require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf("v%d", i)), 0o644))
		time.Sleep(debounce / 5)
	}

	c := waitChange(t, w)
	assert.Equal(t, fmt.Sprintf("v%d", writes), c.Content)
	select {
	case extra := <-w.Events():
		t.Fatalf("burst produced a second event: %q", extra.Content)
	case <-time.After(3 * debounce):
	}
}

func TestStartFailureClosesWatcher(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "policy.txt")
	w, err := New(path, testDebounce, nil)
	require.NoError(t, err)

	err = w.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "watching")

	assert.ErrorIs(t, w.watcher.Add(t.TempDir()), fsnotify.ErrClosed)
	assert.NoError(t, w.Stop())
}

func TestFileWatcherFileCreatedLater(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "later.txt")

	w, _ := startWatcher(t, path)

	require.NoError(t, os.WriteFile(path, []byte("created"), 0o644))
	assert.Equal(t, "created", waitChange(t, w).Content)
}

func TestFileWatcherClosesOnCancel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	w, cancel := startWatcher(t, path)
	cancel()

	select {
	case _, ok := <-w.Events():
		assert.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("events channel not closed")
	}
}

func TestNewDefaultsDebounce(t *testing.T) {
	w, err := New("relative.txt", 0, nil)
	require.NoError(t, err)
	defer w.Stop()
	assert.Equal(t, DefaultDebounce, w.debounce)
	assert.True(t, filepath.IsAbs(w.Path()))
}
