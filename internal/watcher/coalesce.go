package watcher

import (
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// EventKind classifies a coalesced change.
type EventKind int

const (
	Create EventKind = iota
	Remove
	RenameFrom // moved away; the destination is unknown
	RenameTo   // moved in; the source is unknown
	RenameBoth // Paths holds [old, new]
	Metadata   // attributes changed, or the entry was replaced in place
	Data       // contents written
)

func (k EventKind) String() string {
	switch k {
	case Create:
		return "create"
	case Remove:
		return "remove"
	case RenameFrom:
		return "rename-from"
	case RenameTo:
		return "rename-to"
	case RenameBoth:
		return "rename-both"
	case Metadata:
		return "metadata"
	case Data:
		return "data"
	default:
		return "unknown"
	}
}

// Event is one coalesced filesystem change.
type Event struct {
	Kind  EventKind
	Paths []string
}

func (e Event) key() string {
	return e.Kind.String() + "\x00" + strings.Join(e.Paths, "\x00")
}

// Coalesce merges the raw events of one debounce window, in order:
//   - a rename followed by a create pairs into RenameBoth[old, new]
//   - a create then remove of the same path cancels out
//   - a remove then create of the same path becomes Metadata
//   - chmod is Metadata, write is Data
//   - dotfiles are dropped, as are exact duplicates
func Coalesce(batch []fsnotify.Event) []Event {
	var out []Event
	dropped := make(map[int]bool)
	created := make(map[string]int) // path → index of a pending Create
	removed := make(map[string]int) // path → index of a pending Remove
	var renames []int               // indices of RenameFrom awaiting their create

	for _, ev := range batch {
		p := ev.Name
		if p == "" || strings.HasPrefix(filepath.Base(p), ".") {
			continue
		}
		switch {
		case ev.Has(fsnotify.Remove):
			if i, ok := created[p]; ok {
				dropped[i] = true
				delete(created, p)
				continue
			}
			removed[p] = len(out)
			out = append(out, Event{Kind: Remove, Paths: []string{p}})
		case ev.Has(fsnotify.Rename):
			delete(created, p)
			renames = append(renames, len(out))
			out = append(out, Event{Kind: RenameFrom, Paths: []string{p}})
		case ev.Has(fsnotify.Create):
			if len(renames) > 0 {
				i := renames[0]
				renames = renames[1:]
				if old := out[i].Paths[0]; old != p {
					out[i] = Event{Kind: RenameBoth, Paths: []string{old, p}}
				} else {
					out[i] = Event{Kind: Metadata, Paths: []string{p}}
				}
				continue
			}
			if i, ok := removed[p]; ok {
				out[i] = Event{Kind: Metadata, Paths: []string{p}}
				delete(removed, p)
				continue
			}
			created[p] = len(out)
			out = append(out, Event{Kind: Create, Paths: []string{p}})
		case ev.Has(fsnotify.Write):
			out = append(out, Event{Kind: Data, Paths: []string{p}})
		case ev.Has(fsnotify.Chmod):
			out = append(out, Event{Kind: Metadata, Paths: []string{p}})
		}
	}

	seen := make(map[string]bool, len(out))
	result := make([]Event, 0, len(out))
	for i, e := range out {
		if dropped[i] || seen[e.key()] {
			continue
		}
		seen[e.key()] = true
		result = append(result, e)
	}
	return result
}
