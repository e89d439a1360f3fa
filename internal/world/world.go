// Package world keeps a live node graph in step with a directory tree.
//
// The World owns the graph, the eviction cache and the task ledger, and
// mutates them only from the goroutine that calls its methods. The watcher
// and archival jobs run elsewhere and hand their results over through
// queues that Tick drains.
package world

import (
	"errors"
	"log/slog"
	"path/filepath"

	"github.com/agentic-research/dirworld/api"
	"github.com/agentic-research/dirworld/internal/cache"
	"github.com/agentic-research/dirworld/internal/codec"
	"github.com/agentic-research/dirworld/internal/graph"
	"github.com/agentic-research/dirworld/internal/ingest"
	"github.com/agentic-research/dirworld/internal/observer"
	"github.com/agentic-research/dirworld/internal/tasks"
	"github.com/agentic-research/dirworld/internal/watcher"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
)

var (
	ErrNoRoot      = errors.New("no world root set")
	ErrOutsideRoot = errors.New("path is outside the world root")
	ErrNotDir      = errors.New("not a directory")
	ErrNotArchive  = errors.New("not a locked archive")
	ErrBusy        = errors.New("a job is already running on this path")
	ErrWrongKey    = errors.New("key does not match the door")
	ErrOccupied    = errors.New("cannot lock the root or the room you are in")
	ErrDottedName  = errors.New("a locked room's name must not contain a dot")
)

// Source delivers filesystem changes for the current room.
// *watcher.Watcher implements it.
type Source interface {
	SetRoot(dir string)
	Drain() []watcher.Event
}

type Options struct {
	FS        billy.Filesystem // default osfs rooted at /
	Codecs    *codec.Registry  // default codec.Default()
	Observers *observer.Registry
	Graph     graph.Graph // default a new MemoryStore
	Cache     *cache.Cache
	Watcher   Source // optional
	Logger    *slog.Logger
	Metrics   *Metrics
	Marker    string
}

type World struct {
	fs        billy.Filesystem
	codecs    *codec.Registry
	observers *observer.Registry
	graph     graph.Graph
	cache     *cache.Cache
	watcher   Source
	log       *slog.Logger
	metrics   *Metrics
	marker    string

	root        string
	room        string
	roomPayload *api.Payload

	ledger *tasks.Ledger[Command]
	busy   map[string]tasks.JobID
	vars   *Variables
	subs   []func(Notification)
}

func New(opts Options) *World {
	if opts.FS == nil {
		opts.FS = osfs.New("/")
	}
	if opts.Codecs == nil {
		opts.Codecs = codec.Default()
	}
	if opts.Observers == nil {
		opts.Observers = observer.NewRegistry()
	}
	if opts.Graph == nil {
		opts.Graph = graph.NewMemoryStore()
	}
	if opts.Cache == nil {
		opts.Cache = cache.New()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Marker == "" {
		opts.Marker = ingest.DefaultMarker
	}
	return &World{
		fs:        opts.FS,
		codecs:    opts.Codecs,
		observers: opts.Observers,
		graph:     opts.Graph,
		cache:     opts.Cache,
		watcher:   opts.Watcher,
		log:       opts.Logger,
		metrics:   opts.Metrics,
		marker:    opts.Marker,
		ledger:    tasks.New[Command](opts.Logger),
		busy:      make(map[string]tasks.JobID),
		vars:      NewVariables(),
	}
}

func (w *World) Graph() graph.Graph           { return w.graph }
func (w *World) Cache() *cache.Cache          { return w.cache }
func (w *World) Variables() *Variables        { return w.vars }
func (w *World) Codecs() *codec.Registry      { return w.codecs }
func (w *World) Filesystem() billy.Filesystem { return w.fs }

// Root returns the world root, "" before ChangeRoot.
func (w *World) Root() string { return w.root }

// Room returns the current room and its payload (nil when the room has no
// marker file).
func (w *World) Room() (string, *api.Payload) { return w.room, w.roomPayload }

// Pending lists the labels of background jobs not yet applied.
func (w *World) Pending() []string { return w.ledger.Pending() }

// Close stops accepting background jobs. Running jobs finish on their own.
func (w *World) Close() { w.ledger.Close() }

func (w *World) extractOptions() ingest.Options {
	return ingest.Options{Marker: w.marker, Logger: w.log}
}

// inRoom reports whether p is an entry of the current room.
func (w *World) inRoom(p string) bool {
	return w.room != "" && filepath.Dir(p) == w.room
}

// NotificationKind says what happened.
type NotificationKind int

const (
	LeftRoom NotificationKind = iota
	EnteredRoom
	WatcherChange
	JobFinished
)

func (k NotificationKind) String() string {
	switch k {
	case LeftRoom:
		return "left-room"
	case EnteredRoom:
		return "entered-room"
	case WatcherChange:
		return "watcher-change"
	case JobFinished:
		return "job-finished"
	default:
		return "unknown"
	}
}

// Notification is delivered to subscribers after the world changed.
type Notification struct {
	Kind  NotificationKind
	Path  string         // room for Left/EnteredRoom
	Event *watcher.Event // WatcherChange only
	Job   string         // JobFinished only
	Err   error          // JobFinished only
}

// Subscribe registers fn for every notification. Subscribers run on the
// world's goroutine and must not block.
func (w *World) Subscribe(fn func(Notification)) {
	w.subs = append(w.subs, fn)
}

func (w *World) notify(n Notification) {
	for _, fn := range w.subs {
		fn(n)
	}
}
