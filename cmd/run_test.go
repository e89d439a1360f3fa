package cmd

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/agentic-research/dirworld/api"
	"github.com/agentic-research/dirworld/internal/archive"
	"github.com/agentic-research/dirworld/internal/cache"
	"github.com/agentic-research/dirworld/internal/config"
	"github.com/agentic-research/dirworld/internal/ingest"
	"github.com/agentic-research/dirworld/internal/writeback"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRunSessionPersistsLiveEdits drives a whole session on a real
// directory: the edits still live in the room at exit end up in the cache
// database.
func TestRunSessionPersistsLiveEdits(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "room1"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "room1", "a.txt"), []byte("alpha"), 0o644))

	sessions := t.TempDir()
	orig := sessionsDir
	sessionsDir = func() (string, error) { return sessions, nil }
	defer func() { sessionsDir = orig }()

	cfg := config.Default()
	cfg.CacheDB = filepath.Join(t.TempDir(), "cache.db")
	// Keep watcher events for our own save out of this short session.
	cfg.Debounce = "1m"

	in := strings.NewReader("cd room1\nsave a.txt\nmove a.txt 1 2 3\nquit\n")
	var out bytes.Buffer
	log := slog.New(slog.DiscardHandler)
	require.NoError(t, runSession(context.Background(), cfg, root, log, in, &out))
	assert.Contains(t, out.String(), "saved a.txt")
	assert.NotContains(t, out.String(), "error:")

	store, err := cache.OpenSQLite(cfg.CacheDB, log)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	entries, err := store.Restore(context.Background())
	require.NoError(t, err)

	p, ok := entries[filepath.Join(root, "room1", "a.txt")]
	require.True(t, ok, "live edit not flushed: %v", entries)
	assert.Equal(t, api.Vec3{1, 2, 3}, p.Transform.Translation)

	left, err := os.ReadDir(sessions)
	require.NoError(t, err)
	assert.Empty(t, left, "session sidecar must be removed on exit")
}

// TestRunSessionFinishesJobsBeforeExit quits right after a lock: the
// session must still save the door payload onto the archive.
func TestRunSessionFinishesJobsBeforeExit(t *testing.T) {
	root := t.TempDir()
	vault := filepath.Join(root, "vault")
	require.NoError(t, os.MkdirAll(vault, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(vault, "gold.txt"), []byte("shiny"), 0o644))

	sessions := t.TempDir()
	orig := sessionsDir
	sessionsDir = func() (string, error) { return sessions, nil }
	defer func() { sessionsDir = orig }()

	cfg := config.Default()
	cfg.Debounce = "1m"
	codecs, err := cfg.Registry()
	require.NoError(t, err)
	log := slog.New(slog.DiscardHandler)
	fsys := osfs.New("/")
	door := api.NewPayload()
	require.NoError(t, writeback.Save(fsys, codecs, vault, door, writeback.Options{Marker: cfg.Marker, Logger: log}))

	in := strings.NewReader("lock vault correct-horse-battery\nquit\n")
	var out bytes.Buffer
	require.NoError(t, runSession(context.Background(), cfg, root, log, in, &out))
	assert.NotContains(t, out.String(), "error:")

	sealed := archive.ArchivePath(vault)
	assert.False(t, ingest.IsDir(fsys, vault))
	locked := ingest.Extract(fsys, sealed, codecs, ingest.Options{Marker: cfg.Marker, Logger: log}).Payload
	require.NotNil(t, locked, "door payload not saved onto the archive")
	assert.Equal(t, door.ID, locked.ID)
	digest, err := archive.KeyDigest([]byte("correct-horse-battery"))
	require.NoError(t, err)
	got, ok := locked.Relationship(api.KeyRelationship)
	require.True(t, ok)
	assert.Equal(t, digest, got)
}

func TestRunSessionRejectsMissingRoot(t *testing.T) {
	cfg := config.Default()
	err := runSession(context.Background(), cfg, filepath.Join(t.TempDir(), "nope"), slog.New(slog.DiscardHandler), strings.NewReader(""), &bytes.Buffer{})
	assert.Error(t, err)
}

func TestScanLinesStopsWithoutReader(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	lines := make(chan string)
	done := make(chan struct{})
	go func() {
		scanLines(ctx, strings.NewReader("pwd\nls\n"), lines)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scanLines blocked on a channel nobody reads")
	}
	_, ok := <-lines
	assert.False(t, ok, "lines must be closed")
}
