// Package graph is the live node graph rooms are materialized into.
package graph

import (
	"errors"
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring"
	"github.com/agentic-research/dirworld/api"
)

var ErrNotFound = errors.New("node not found")

// NodeID identifies a live node. IDs start at 1 and are never reused, so a
// stale ID held across a despawn cannot alias a newer node.
type NodeID uint32

// Node is one live object. Nodes spawned for a filesystem entry carry its
// Path; nodes an observer attaches underneath them usually do not.
type Node struct {
	ID         NodeID
	Parent     NodeID // 0 for top-level nodes
	Children   []NodeID
	Path       string
	Transform  api.Transform
	Payload    *api.Payload      // nil when the entry has none
	Properties map[string][]byte // observer attachments (mesh bytes, script names, ...)
}

// Graph is the contract the world needs from its host graph.
type Graph interface {
	// Spawn adds n and returns its new ID. A non-zero n.Parent links it
	// beneath that node.
	Spawn(n *Node) NodeID
	// Despawn removes id and its whole subtree.
	Despawn(id NodeID) error
	GetNode(id NodeID) (*Node, error)
	// Nodes returns every live node in ID order.
	Nodes() []*Node
	// FindByPath returns the oldest live node spawned for path p.
	FindByPath(p string) (*Node, bool)
	// MarkPersistent keeps id alive when its room is left.
	MarkPersistent(id NodeID) error
	IsPersistent(id NodeID) bool
	// SetTransform moves a node. Its payload transform follows.
	SetTransform(id NodeID, t api.Transform) error
	// SetPayload replaces the payload of id and moves the node to the
	// payload's transform.
	SetPayload(id NodeID, p *api.Payload) error
	SetProperty(id NodeID, key string, value []byte) error
	// Reparent moves id beneath parent, or to the top level when parent
	// is 0.
	Reparent(id, parent NodeID) error
}

// ErrCycle is returned when a node would become its own ancestor.
var ErrCycle = errors.New("node would become its own ancestor")

// MemoryStore is an in-process Graph. It is safe for concurrent reads, but
// the world only mutates it from its own loop.
type MemoryStore struct {
	mu     sync.RWMutex
	nodes  map[NodeID]*Node
	nextID NodeID

	// Roaring bitmap indexes over node IDs.
	byPath     map[string]*roaring.Bitmap // Path → nodes spawned for it
	persistent *roaring.Bitmap
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nodes:      make(map[NodeID]*Node),
		byPath:     make(map[string]*roaring.Bitmap),
		persistent: roaring.New(),
	}
}

func (s *MemoryStore) Spawn(n *Node) NodeID {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	n.ID = s.nextID
	n.Children = nil
	if n.Transform.IsZero() {
		n.Transform = api.Identity()
	}
	if n.Parent != 0 {
		if parent, ok := s.nodes[n.Parent]; ok {
			parent.Children = append(parent.Children, n.ID)
		} else {
			n.Parent = 0
		}
	}
	s.nodes[n.ID] = n
	if n.Path != "" {
		bm, ok := s.byPath[n.Path]
		if !ok {
			bm = roaring.New()
			s.byPath[n.Path] = bm
		}
		bm.Add(uint32(n.ID))
	}
	return n.ID
}

func (s *MemoryStore) Despawn(id NodeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	root, ok := s.nodes[id]
	if !ok {
		return ErrNotFound
	}

	// 1. Collect the subtree
	doomed := roaring.New()
	stack := []NodeID{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		doomed.Add(uint32(cur))
		if n, ok := s.nodes[cur]; ok {
			stack = append(stack, n.Children...)
		}
	}

	// 2. Unlink from the parent
	if parent, ok := s.nodes[root.Parent]; ok {
		kept := parent.Children[:0]
		for _, c := range parent.Children {
			if c != id {
				kept = append(kept, c)
			}
		}
		parent.Children = kept
	}

	// 3. Drop nodes and index entries
	it := doomed.Iterator()
	for it.HasNext() {
		nid := NodeID(it.Next())
		n := s.nodes[nid]
		if n == nil {
			continue
		}
		if bm, ok := s.byPath[n.Path]; ok {
			bm.Remove(uint32(nid))
			if bm.IsEmpty() {
				delete(s.byPath, n.Path)
			}
		}
		delete(s.nodes, nid)
	}
	s.persistent.AndNot(doomed)
	return nil
}

func (s *MemoryStore) GetNode(id NodeID) (*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return nil, ErrNotFound
	}
	return n, nil
}

func (s *MemoryStore) Nodes() []*Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *MemoryStore) FindByPath(p string) (*Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bm, ok := s.byPath[p]
	if !ok || bm.IsEmpty() {
		return nil, false
	}
	return s.nodes[NodeID(bm.Minimum())], true
}

func (s *MemoryStore) MarkPersistent(id NodeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.nodes[id]; !ok {
		return ErrNotFound
	}
	s.persistent.Add(uint32(id))
	return nil
}

func (s *MemoryStore) IsPersistent(id NodeID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.persistent.Contains(uint32(id))
}

func (s *MemoryStore) SetTransform(id NodeID, t api.Transform) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok {
		return ErrNotFound
	}
	n.Transform = t
	if n.Payload != nil {
		n.Payload.Transform = t
	}
	return nil
}

func (s *MemoryStore) SetPayload(id NodeID, p *api.Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok {
		return ErrNotFound
	}
	n.Payload = p
	if p != nil {
		if p.Transform.IsZero() {
			p.Transform = api.Identity()
		}
		n.Transform = p.Transform
	}
	return nil
}

func (s *MemoryStore) SetProperty(id NodeID, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok {
		return ErrNotFound
	}
	if n.Properties == nil {
		n.Properties = make(map[string][]byte)
	}
	n.Properties[key] = value
	return nil
}

func (s *MemoryStore) Reparent(id, parent NodeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok {
		return ErrNotFound
	}
	if parent != 0 {
		if _, ok := s.nodes[parent]; !ok {
			return ErrNotFound
		}
		for cur := parent; cur != 0; cur = s.nodes[cur].Parent {
			if cur == id {
				return ErrCycle
			}
		}
	}
	if old, ok := s.nodes[n.Parent]; ok {
		kept := old.Children[:0]
		for _, c := range old.Children {
			if c != id {
				kept = append(kept, c)
			}
		}
		old.Children = kept
	}
	n.Parent = parent
	if parent != 0 {
		s.nodes[parent].Children = append(s.nodes[parent].Children, id)
	}
	return nil
}

// Ancestors returns the parent chain of id, nearest first.
func Ancestors(g Graph, id NodeID) []NodeID {
	var out []NodeID
	seen := map[NodeID]bool{id: true}
	for {
		n, err := g.GetNode(id)
		if err != nil || n.Parent == 0 || seen[n.Parent] {
			return out
		}
		out = append(out, n.Parent)
		seen[n.Parent] = true
		id = n.Parent
	}
}
