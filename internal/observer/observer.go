// Package observer maps entry kinds to the callbacks that materialize them.
package observer

import (
	"sync"

	"github.com/agentic-research/dirworld/internal/codec"
	"github.com/agentic-research/dirworld/internal/graph"
)

// Kind is either a folder or a file with a given dotted extension.
type Kind struct {
	Folder    bool
	Extension string
}

func FolderKind() Kind        { return Kind{Folder: true} }
func FileKind(ext string) Kind { return Kind{Extension: ext} }

// KindOf classifies the entry at path.
func KindOf(path string, dir bool) Kind {
	if dir {
		return FolderKind()
	}
	return FileKind(codec.Extension(path))
}

func (k Kind) String() string {
	if k.Folder {
		return "folder"
	}
	if k.Extension == "" {
		return "file"
	}
	return "." + k.Extension
}

// Spawn describes a node that was just materialized for an entry.
type Spawn struct {
	Node    graph.NodeID
	Path    string
	Carrier []byte // leftover file bytes, nil for folders
}

// Func attaches kind-specific behavior to a freshly spawned node.
type Func func(g graph.Graph, s Spawn) error

type Registry struct {
	mu  sync.RWMutex
	fns map[Kind]Func
}

func NewRegistry() *Registry {
	return &Registry{fns: make(map[Kind]Func)}
}

// Register maps every kind in kinds to fn.
func (r *Registry) Register(kinds []Kind, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range kinds {
		r.fns[k] = fn
	}
}

func (r *Registry) Lookup(k Kind) (Func, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.fns[k]
	return fn, ok
}
