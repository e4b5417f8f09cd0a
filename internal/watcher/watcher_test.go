package watcher_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/taskreview/internal/watcher"
)

func startWatcher(t *testing.T, root string) <-chan struct{} {
	t.Helper()
	w, err := watcher.New(watcher.Config{Root: root, DebounceDur: 50 * time.Millisecond})
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Stop() })

	onChange, err := w.Start()
	require.NoError(t, err)
	return onChange
}

func expectSignal(t *testing.T, ch <-chan struct{}, msg string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal(msg)
	}
}

func expectQuiet(t *testing.T, ch <-chan struct{}, msg string) {
	t.Helper()
	select {
	case <-ch:
		t.Fatal(msg)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestWatcher_DebounceMultipleWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.go")
	require.NoError(t, os.WriteFile(path, []byte("package main"), 0o644))

	onChange := startWatcher(t, dir)

	for i := range 10 {
		require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf("package main // %d", i)), 0o644))
		time.Sleep(10 * time.Millisecond)
	}

	expectSignal(t, onChange, "expected notification after burst")
	expectQuiet(t, onChange, "burst should produce one notification")
}

func TestWatcher_WatchesNestedAndNewDirectories(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "pkg", "sub"), 0o755))

	onChange := startWatcher(t, dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "pkg", "sub", "a.go"), []byte("package sub"), 0o644))
	expectSignal(t, onChange, "expected notification for nested file")

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "fresh"), 0o755))
	expectSignal(t, onChange, "expected notification for new directory")

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fresh", "b.go"), []byte("package fresh"), 0o644))
	expectSignal(t, onChange, "expected notification inside new directory")
}

func TestWatcher_IgnoresGitDirectory(t *testing.T) {
	dir := t.TempDir()
	gitDir := filepath.Join(dir, ".git")
	require.NoError(t, os.MkdirAll(gitDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(gitDir, "index"), []byte("x"), 0o644))

	onChange := startWatcher(t, dir)

	require.NoError(t, os.WriteFile(filepath.Join(gitDir, "index"), []byte("changed"), 0o644))
	expectQuiet(t, onChange, "should not notify for .git writes")
}

func TestWatcher_RemoveTriggers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gone.go")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	onChange := startWatcher(t, dir)

	require.NoError(t, os.Remove(path))
	expectSignal(t, onChange, "expected notification for removal")
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w, err := watcher.New(watcher.DefaultConfig(t.TempDir()))
	require.NoError(t, err)
	_, err = w.Start()
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		assert.NoError(t, w.Stop())
		assert.NoError(t, w.Stop())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop() timed out")
	}
}

func TestWatcher_StartMissingRoot(t *testing.T) {
	w, err := watcher.New(watcher.DefaultConfig(filepath.Join(t.TempDir(), "missing")))
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	_, err = w.Start()
	require.Error(t, err)
}

func TestDefaultConfig(t *testing.T) {
	cfg := watcher.DefaultConfig("/work")

	assert.Equal(t, "/work", cfg.Root)
	assert.Equal(t, 500*time.Millisecond, cfg.DebounceDur)
	assert.Contains(t, cfg.IgnoreDirs, ".git")
}
