package world

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/agentic-research/dirworld/api"
	"github.com/agentic-research/dirworld/internal/archive"
	"github.com/agentic-research/dirworld/internal/codec"
	"github.com/agentic-research/dirworld/internal/ingest"
	"github.com/agentic-research/dirworld/internal/tasks"
	"github.com/agentic-research/dirworld/internal/writeback"
)

// Command is a deferred mutation produced by a background job and applied
// on the world's goroutine.
type Command interface {
	Apply(w *World) error
}

// SaveEntityCommand persists Payload to the entry at Path.
type SaveEntityCommand struct {
	Path    string
	Payload *api.Payload
}

func (c SaveEntityCommand) Apply(w *World) error {
	return w.SaveEntity(c.Path, c.Payload)
}

// DespawnCommand removes the live node for Path if there is one.
type DespawnCommand struct {
	Path string
}

func (c DespawnCommand) Apply(w *World) error {
	w.despawnAll(c.Path)
	return nil
}

// ReconcileCommand respawns Path when it belongs to the current room.
type ReconcileCommand struct {
	Path string
}

func (c ReconcileCommand) Apply(w *World) error {
	if !w.inRoom(c.Path) {
		return nil
	}
	_, err := w.ReconcileEntry(c.Path)
	return err
}

// SaveEntity writes payload to the entry at p and refreshes the payload of
// its live node.
func (w *World) SaveEntity(p string, payload *api.Payload) error {
	err := writeback.Save(w.fs, w.codecs, p, payload, writeback.Options{Marker: w.marker, Logger: w.log})
	if err != nil {
		return err
	}
	if n, ok := w.graph.FindByPath(p); ok {
		if err := w.graph.SetPayload(n.ID, payload.Clone()); err != nil {
			w.log.Warn("save: payload sync failed", "path", p, "error", err)
		}
	}
	w.log.Debug("entity saved", "path", p)
	return nil
}

// LockDoor seals the directory p into an encrypted archive in the
// background. The door's payload gains a "key" relationship holding the key
// digest and is saved onto the archive once the job finishes.
func (w *World) LockDoor(p string, key []byte) (tasks.JobID, error) {
	p = filepath.Clean(p)
	if err := w.checkLockTarget(p); err != nil {
		return 0, fmt.Errorf("lock %s: %w", p, err)
	}
	if w.isBusy(p) || w.isBusy(archive.ArchivePath(p)) {
		return 0, fmt.Errorf("lock %s: %w", p, ErrBusy)
	}
	if !ingest.IsDir(w.fs, p) {
		return 0, fmt.Errorf("lock %s: %w", p, ErrNotDir)
	}
	// The archive must map back to p or it can never be unlocked.
	if a := archive.ArchivePath(p); codec.Stem(a) != filepath.Base(p) || !archive.IsArchive(a) {
		return 0, fmt.Errorf("lock %s: %w", p, ErrDottedName)
	}
	digest, err := archive.KeyDigest(key)
	if err != nil {
		return 0, fmt.Errorf("lock %s: %w", p, err)
	}

	payload := ingest.Extract(w.fs, p, w.codecs, w.extractOptions()).Payload
	if payload == nil {
		payload = api.NewPayload()
	}
	payload.SetRelationship(api.KeyRelationship, digest)
	key = bytes.Clone(key)
	fsys := w.fs

	id, err := w.ledger.Spawn("lock "+p, func() ([]Command, error) {
		out, err := archive.Lock(fsys, p, key)
		if err != nil {
			return nil, err
		}
		return []Command{
			DespawnCommand{Path: p},
			SaveEntityCommand{Path: out, Payload: payload},
			ReconcileCommand{Path: out},
		}, nil
	})
	if err != nil {
		return 0, fmt.Errorf("lock %s: %w", p, err)
	}
	w.markBusy(id, p, archive.ArchivePath(p))
	w.log.Info("locking door", "path", p, "job", id)
	return id, nil
}

// UnlockDoor restores the archive p into a directory in the background. The
// "key" relationship is checked against key before anything is spawned and
// is stripped from the payload saved into the restored room.
func (w *World) UnlockDoor(p string, key []byte) (tasks.JobID, error) {
	p = filepath.Clean(p)
	if w.root == "" {
		return 0, fmt.Errorf("unlock %s: %w", p, ErrNoRoot)
	}
	if !w.withinRoot(p) {
		return 0, fmt.Errorf("unlock %s: %w", p, ErrOutsideRoot)
	}
	if !archive.IsArchive(p) {
		return 0, fmt.Errorf("unlock %s: %w", p, ErrNotArchive)
	}
	dir := archive.RestoredPath(p)
	if w.isBusy(p) || w.isBusy(dir) {
		return 0, fmt.Errorf("unlock %s: %w", p, ErrBusy)
	}
	digest, err := archive.KeyDigest(key)
	if err != nil {
		return 0, fmt.Errorf("unlock %s: %w", p, err)
	}

	entry := ingest.Extract(w.fs, p, w.codecs, w.extractOptions())
	if entry.Carrier == nil {
		return 0, fmt.Errorf("unlock %s: archive unreadable", p)
	}
	payload := entry.Payload
	if payload == nil {
		payload = api.NewPayload()
	}
	if want, ok := payload.Relationship(api.KeyRelationship); ok && want != digest {
		return 0, fmt.Errorf("unlock %s: %w", p, ErrWrongKey)
	}
	payload.DeleteRelationship(api.KeyRelationship)
	key = bytes.Clone(key)
	ciphertext := entry.Carrier
	fsys := w.fs

	id, err := w.ledger.Spawn("unlock "+p, func() ([]Command, error) {
		restored, err := archive.Unlock(fsys, p, ciphertext, key)
		if err != nil {
			return nil, err
		}
		return []Command{
			DespawnCommand{Path: p},
			SaveEntityCommand{Path: restored, Payload: payload},
			ReconcileCommand{Path: restored},
		}, nil
	})
	if err != nil {
		return 0, fmt.Errorf("unlock %s: %w", p, err)
	}
	w.markBusy(id, p, dir)
	w.log.Info("unlocking door", "path", p, "job", id)
	return id, nil
}

// checkLockTarget rejects targets outside the root and rooms the world is
// standing in.
func (w *World) checkLockTarget(p string) error {
	if w.root == "" {
		return ErrNoRoot
	}
	if !w.withinRoot(p) {
		return ErrOutsideRoot
	}
	if p == w.root || w.room == p || strings.HasPrefix(w.room, p+string(filepath.Separator)) {
		return ErrOccupied
	}
	return nil
}

func (w *World) isBusy(p string) bool {
	_, ok := w.busy[p]
	return ok
}

func (w *World) markBusy(id tasks.JobID, paths ...string) {
	for _, p := range paths {
		w.busy[p] = id
	}
}

func (w *World) applyResult(r tasks.Result[Command]) {
	for p, id := range w.busy {
		if id == r.ID {
			delete(w.busy, p)
		}
	}
	err := r.Err
	for _, c := range r.Commands {
		if cerr := c.Apply(w); cerr != nil {
			w.log.Error("deferred command failed", "job", r.Label, "command", fmt.Sprintf("%T", c), "error", cerr)
			if err == nil {
				err = fmt.Errorf("%s: %w", r.Label, cerr)
			}
		}
	}
	w.metrics.jobFinished(err)
	w.notify(Notification{Kind: JobFinished, Job: r.Label, Err: err})
}

// Wait blocks until every background job has finished. Their commands are
// applied by the next Tick.
func (w *World) Wait(ctx context.Context) error {
	return w.ledger.Wait(ctx)
}
