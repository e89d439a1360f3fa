// Package watcher watches the current room directory and delivers debounced,
// coalesced changes to the world loop.
//
// The watcher never touches the live graph. It talks to its owner through
// two unbounded queues: roots flow in through SetRoot, events flow out
// through Drain.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the coalescing window.
const DefaultDebounce = 500 * time.Millisecond

// ErrClosed is returned by Run when the backend shuts down underneath it.
var ErrClosed = errors.New("watcher backend closed")

type Options struct {
	// Debounce is the window raw events are collected for before they are
	// coalesced and delivered.
	Debounce time.Duration
	Logger   *slog.Logger
	// OnFlush, when set, is called with each delivered batch.
	OnFlush func([]Event)
}

type Watcher struct {
	fsw      *fsnotify.Watcher
	debounce time.Duration
	log      *slog.Logger
	onFlush  func([]Event)

	control *queue[string]
	changes *queue[Event]

	mu   sync.Mutex
	root string

	done     chan struct{}
	stopOnce sync.Once
}

func New(opts Options) (*Watcher, error) {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	return &Watcher{
		fsw:      fsw,
		debounce: opts.Debounce,
		log:      opts.Logger,
		onFlush:  opts.OnFlush,
		control:  newQueue[string](),
		changes:  newQueue[Event](),
		done:     make(chan struct{}),
	}, nil
}

// SetRoot asks the watcher to watch dir instead of the previous root.
// It never blocks.
func (w *Watcher) SetRoot(dir string) {
	w.control.push(dir)
}

// Root returns the directory currently watched.
func (w *Watcher) Root() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.root
}

// Drain returns every change delivered so far without blocking.
func (w *Watcher) Drain() []Event {
	return w.changes.drain()
}

// Pending reports how many delivered changes have not been drained.
func (w *Watcher) Pending() int {
	return w.changes.len()
}

// Run processes roots and filesystem events until ctx is done or Close is
// called. A failing backend ends Run with an error; the rest of the system
// keeps going without file watching.
func (w *Watcher) Run(ctx context.Context) error {
	var batch []fsnotify.Event
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func() {
		if timer != nil {
			timer.Stop()
			timer, timerC = nil, nil
		}
		if len(batch) == 0 {
			return
		}
		events := Coalesce(batch)
		batch = batch[:0]
		if len(events) == 0 {
			return
		}
		w.changes.push(events...)
		if w.onFlush != nil {
			w.onFlush(events)
		}
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return ctx.Err()
		case <-w.done:
			flush()
			return nil
		case _, ok := <-w.control.wait():
			if !ok {
				return nil
			}
			for _, dir := range w.control.drain() {
				// Events for the old room are stale once the root moves.
				batch = batch[:0]
				w.swapRoot(dir)
			}
		case ev, ok := <-w.fsw.Events:
			if !ok {
				flush()
				if w.closing() {
					return nil
				}
				w.log.Error("watcher: event channel closed")
				return ErrClosed
			}
			batch = append(batch, ev)
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				flush()
				if w.closing() {
					return nil
				}
				w.log.Error("watcher: error channel closed")
				return ErrClosed
			}
			w.log.Error("watcher: backend error", "error", err)
		case <-timerC:
			timer, timerC = nil, nil
			flush()
		}
	}
}

// swapRoot unwatches the previous root and watches dir, non-recursively:
// each room owns only its immediate entries.
func (w *Watcher) swapRoot(dir string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.root == dir {
		return
	}
	if w.root != "" {
		if err := w.fsw.Remove(w.root); err != nil {
			w.log.Warn("watcher: unwatch failed", "path", w.root, "error", err)
		}
	}
	w.root = ""
	if err := w.fsw.Add(dir); err != nil {
		w.log.Error("watcher: watch failed", "path", dir, "error", err)
		return
	}
	w.root = dir
	w.log.Debug("watcher: watching", "path", dir)
}

func (w *Watcher) closing() bool {
	select {
	case <-w.done:
		return true
	default:
		return false
	}
}

// Close stops Run and releases the backend.
func (w *Watcher) Close() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		w.control.close()
		w.changes.close()
		err = w.fsw.Close()
	})
	return err
}
