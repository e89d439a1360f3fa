package world

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/agentic-research/dirworld/internal/graph"
	"github.com/agentic-research/dirworld/internal/ingest"
	"github.com/agentic-research/dirworld/internal/observer"
	"github.com/agentic-research/dirworld/internal/watcher"
)

// ChangeRoot makes dir the world root and enters it.
func (w *World) ChangeRoot(dir string) error {
	dir = filepath.Clean(dir)
	info, err := w.fs.Stat(dir)
	if err != nil {
		return fmt.Errorf("change root %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("change root %s: %w", dir, ErrNotDir)
	}
	prev := w.root
	w.root = dir
	if err := w.moveTo(dir); err != nil {
		w.root = prev
		return err
	}
	w.log.Info("world root changed", "root", dir)
	return nil
}

// Navigate moves to rel, resolved against the current room. Absolute paths
// are accepted as long as they stay inside the root.
func (w *World) Navigate(rel string) error {
	if w.root == "" {
		return ErrNoRoot
	}
	target := rel
	if !filepath.IsAbs(target) {
		target = filepath.Join(w.room, rel)
	}
	target = filepath.Clean(target)
	if !w.withinRoot(target) {
		return fmt.Errorf("navigate %s: %w", rel, ErrOutsideRoot)
	}
	return w.moveTo(target)
}

func (w *World) withinRoot(p string) bool {
	r, err := filepath.Rel(w.root, p)
	if err != nil {
		return false
	}
	return r != ".." && !strings.HasPrefix(r, ".."+string(filepath.Separator))
}

// moveTo lists dir before leaving the current room, so a room that cannot
// be read leaves the live graph as it was.
func (w *World) moveTo(dir string) error {
	entries, err := ingest.ListRoom(w.fs, dir, w.root)
	if err != nil {
		w.log.Error("enter room failed", "room", dir, "error", err)
		return err
	}
	if w.room != "" {
		w.Leave()
	}
	w.enterListed(dir, entries)
	return nil
}

// Enter materializes dir without leaving the current room first.
func (w *World) Enter(dir string) error {
	if w.root == "" {
		return ErrNoRoot
	}
	dir = filepath.Clean(dir)
	entries, err := ingest.ListRoom(w.fs, dir, w.root)
	if err != nil {
		w.log.Error("enter room failed", "room", dir, "error", err)
		return err
	}
	w.enterListed(dir, entries)
	return nil
}

func (w *World) enterListed(dir string, entries []string) {
	w.roomPayload = ingest.Extract(w.fs, dir, w.codecs, w.extractOptions()).Payload
	w.room = dir
	if w.watcher != nil {
		w.watcher.SetRoot(dir)
	}
	for _, p := range entries {
		w.spawnEntry(p)
	}
	w.log.Debug("entered room", "room", dir, "entries", len(entries))
	w.notify(Notification{Kind: EnteredRoom, Path: dir})
}

// Leave evicts every non-persistent top-level node into the cache, live
// transform included, and despawns it.
func (w *World) Leave() {
	room := w.room
	for _, n := range w.graph.Nodes() {
		if n.Parent != 0 || w.graph.IsPersistent(n.ID) {
			continue
		}
		if n.Path != "" && n.Payload != nil {
			p := n.Payload.Clone()
			p.Transform = n.Transform
			if p.Actor != nil {
				w.vars.SyncActor(p.ID.String(), p.Actor)
			}
			w.cache.Put(n.Path, p)
		}
		if err := w.graph.Despawn(n.ID); err != nil && !errors.Is(err, graph.ErrNotFound) {
			w.log.Warn("leave: despawn failed", "path", n.Path, "error", err)
			continue
		}
		w.metrics.nodeDespawned()
	}
	w.room = ""
	w.roomPayload = nil
	w.notify(Notification{Kind: LeftRoom, Path: room})
}

// spawnEntry extracts p, lets a cached payload override the disk one, spawns
// the node and runs the observer for its kind.
func (w *World) spawnEntry(p string) graph.NodeID {
	entry := ingest.Extract(w.fs, p, w.codecs, w.extractOptions())
	payload := entry.Payload
	if cached, ok := w.cache.Take(p); ok {
		payload = cached
		w.metrics.cacheHit()
	}

	n := &graph.Node{Path: p, Payload: payload}
	if payload != nil {
		n.Transform = payload.Transform
		if payload.Actor != nil {
			w.vars.LoadActor(payload.ID.String(), payload.Actor)
		}
	}
	id := w.graph.Spawn(n)
	w.metrics.nodeSpawned()

	kind := observer.KindOf(p, ingest.IsDir(w.fs, p))
	if fn, ok := w.observers.Lookup(kind); ok {
		err := fn(w.graph, observer.Spawn{Node: id, Path: p, Carrier: entry.Carrier})
		if err != nil {
			w.log.Warn("observer failed", "path", p, "kind", kind.String(), "error", err)
		}
	}
	return id
}

// ReconcileEntry brings the live node for p in line with disk. Any node
// already spawned for p is replaced, so repeated events are harmless.
func (w *World) ReconcileEntry(p string) (graph.NodeID, error) {
	if ingest.IsHidden(filepath.Base(p)) && !ingest.IsParent(p) {
		return 0, nil
	}
	if _, err := w.fs.Stat(p); err != nil {
		return 0, fmt.Errorf("reconcile %s: %w", p, err)
	}
	w.despawnAll(p)
	return w.spawnEntry(p), nil
}

// DespawnByPath removes the node spawned for p and its subtree. A path with
// no live node is reported with graph.ErrNotFound and changes nothing.
func (w *World) DespawnByPath(p string) error {
	if w.despawnAll(p) == 0 {
		w.log.Warn("despawn: no live node", "path", p)
		return fmt.Errorf("despawn %s: %w", p, graph.ErrNotFound)
	}
	return nil
}

func (w *World) despawnAll(p string) int {
	count := 0
	for {
		n, ok := w.graph.FindByPath(p)
		if !ok {
			return count
		}
		if err := w.graph.Despawn(n.ID); err != nil {
			w.log.Warn("despawn failed", "path", p, "error", err)
			return count
		}
		w.metrics.nodeDespawned()
		count++
	}
}

// HandleChange applies one coalesced watcher event. Only entries of the
// current room are considered.
func (w *World) HandleChange(ev watcher.Event) {
	w.metrics.watcherEvent(ev.Kind.String())
	w.notify(Notification{Kind: WatcherChange, Path: w.room, Event: &ev})

	switch ev.Kind {
	case watcher.Remove, watcher.RenameFrom:
		for _, p := range ev.Paths {
			if w.inRoom(p) {
				_ = w.DespawnByPath(p)
			}
		}
	case watcher.Create, watcher.RenameTo:
		for _, p := range ev.Paths {
			w.reconcileLogged(p)
		}
	case watcher.RenameBoth:
		if len(ev.Paths) != 2 {
			w.log.Warn("rename event without two paths", "paths", ev.Paths)
			return
		}
		if w.inRoom(ev.Paths[0]) {
			_ = w.DespawnByPath(ev.Paths[0])
		}
		w.reconcileLogged(ev.Paths[1])
	case watcher.Metadata:
		for _, p := range ev.Paths {
			if w.inRoom(p) {
				_ = w.DespawnByPath(p)
			}
			w.reconcileLogged(p)
		}
	default:
		w.log.Debug("ignoring watcher event", "kind", ev.Kind.String(), "paths", ev.Paths)
	}
}

func (w *World) reconcileLogged(p string) {
	if !w.inRoom(p) {
		return
	}
	if _, err := w.ReconcileEntry(p); err != nil {
		w.log.Warn("reconcile failed", "path", p, "error", err)
	}
}

// Tick drains watcher events and finished jobs. It never blocks.
func (w *World) Tick() {
	if w.watcher != nil {
		for _, ev := range w.watcher.Drain() {
			w.HandleChange(ev)
		}
	}
	w.ledger.Poll(w.applyResult)
}
