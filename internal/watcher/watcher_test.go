package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T) *Watcher {
	t.Helper()
	w, err := New(Options{Debounce: 50 * time.Millisecond, Logger: slog.New(slog.DiscardHandler)})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
		_ = w.Close()
	})
	return w
}

func waitFor(t *testing.T, w *Watcher, match func(Event) bool) []Event {
	t.Helper()
	var all []Event
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		all = append(all, w.Drain()...)
		for _, e := range all {
			if match(e) {
				return all
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("no matching event, got %+v", all)
	return nil
}

func TestWatcher_DeliversCreate(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t)
	w.SetRoot(dir)
	require.Eventually(t, func() bool { return w.Root() == dir }, 5*time.Second, 10*time.Millisecond)

	target := filepath.Join(dir, "a.png")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o644))

	waitFor(t, w, func(e Event) bool { return e.Kind == Create && e.Paths[0] == target })
}

func TestWatcher_RenameBoth(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.png")
	require.NoError(t, os.WriteFile(old, []byte("x"), 0o644))

	w := startWatcher(t)
	w.SetRoot(dir)
	require.Eventually(t, func() bool { return w.Root() == dir }, 5*time.Second, 10*time.Millisecond)

	renamed := filepath.Join(dir, "new.png")
	require.NoError(t, os.Rename(old, renamed))

	all := waitFor(t, w, func(e Event) bool { return e.Kind == RenameBoth })
	for _, e := range all {
		if e.Kind == RenameBoth {
			assert.Equal(t, []string{old, renamed}, e.Paths)
		}
	}
}

func TestWatcher_SetRootSwitches(t *testing.T) {
	first, second := t.TempDir(), t.TempDir()
	w := startWatcher(t)

	w.SetRoot(first)
	require.Eventually(t, func() bool { return w.Root() == first }, 5*time.Second, 10*time.Millisecond)
	w.SetRoot(second)
	require.Eventually(t, func() bool { return w.Root() == second }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(first, "ignored.png"), []byte("x"), 0o644))
	target := filepath.Join(second, "seen.png")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o644))

	all := waitFor(t, w, func(e Event) bool { return e.Kind == Create && e.Paths[0] == target })
	for _, e := range all {
		assert.NotEqual(t, filepath.Join(first, "ignored.png"), e.Paths[0])
	}
}

func TestWatcher_MissingRootKeepsRunning(t *testing.T) {
	w := startWatcher(t)
	w.SetRoot(filepath.Join(t.TempDir(), "missing"))

	dir := t.TempDir()
	w.SetRoot(dir)
	require.Eventually(t, func() bool { return w.Root() == dir }, 5*time.Second, 10*time.Millisecond)
}

func TestWatcher_CloseStopsRun(t *testing.T) {
	w, err := New(Options{Logger: slog.New(slog.DiscardHandler)})
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() { done <- w.Run(context.Background()) }()

	require.NoError(t, w.Close())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Close")
	}
}
