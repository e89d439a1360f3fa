package cmd

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/agentic-research/dirworld/api"
	"github.com/agentic-research/dirworld/internal/archive"
	"github.com/agentic-research/dirworld/internal/graph"
	"github.com/agentic-research/dirworld/internal/world"
)

var errQuit = errors.New("quit")

const replHelp = `commands:
  ls                    list the entries of the current room
  pwd                   print the current room
  cd <dir>              walk into a room (.. goes back up)
  lock <dir> <key>      seal a room into an encrypted archive
  unlock <archive> <key>
  move <name> <x> <y> <z>
  save <name>           write the live payload of an entry to disk
  jobs                  list running background jobs
  quit
`

// repl turns text commands into world operations. It runs on the world's
// goroutine.
type repl struct {
	w   *world.World
	out io.Writer
}

// exec runs one command line. It returns errQuit when the session should end.
func (r *repl) exec(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	args := fields[1:]
	switch fields[0] {
	case "quit", "exit":
		return errQuit
	case "help", "?":
		_, _ = io.WriteString(r.out, replHelp)
	case "pwd":
		room, _ := r.w.Room()
		_, _ = fmt.Fprintln(r.out, room)
	case "ls":
		r.list()
	case "cd":
		if len(args) != 1 {
			return fmt.Errorf("usage: cd <dir>")
		}
		return r.w.Navigate(args[0])
	case "lock":
		if len(args) != 2 {
			return fmt.Errorf("usage: lock <dir> <key>")
		}
		id, err := r.w.LockDoor(r.resolve(args[0]), []byte(args[1]))
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(r.out, "job %d: locking %s\n", id, args[0])
	case "unlock":
		if len(args) != 2 {
			return fmt.Errorf("usage: unlock <archive> <key>")
		}
		id, err := r.w.UnlockDoor(r.resolve(args[0]), []byte(args[1]))
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(r.out, "job %d: unlocking %s\n", id, args[0])
	case "move":
		if len(args) != 4 {
			return fmt.Errorf("usage: move <name> <x> <y> <z>")
		}
		return r.move(args[0], args[1:])
	case "save":
		if len(args) != 1 {
			return fmt.Errorf("usage: save <name>")
		}
		return r.save(args[0])
	case "jobs":
		for _, label := range r.w.Pending() {
			_, _ = fmt.Fprintln(r.out, label)
		}
	default:
		return fmt.Errorf("unknown command %q (try help)", fields[0])
	}
	return nil
}

func (r *repl) resolve(name string) string {
	if filepath.IsAbs(name) {
		return filepath.Clean(name)
	}
	room, _ := r.w.Room()
	return filepath.Join(room, name)
}

func (r *repl) list() {
	room, _ := r.w.Room()
	for _, n := range r.w.Graph().Nodes() {
		if n.Parent != 0 || n.Path == "" || filepath.Dir(n.Path) != room {
			continue
		}
		base := filepath.Base(n.Path)
		kind := "file"
		switch {
		case base == "..":
			kind = "up"
		case archive.IsArchive(n.Path):
			kind = "locked"
		case len(n.Properties) > 0 || len(n.Children) > 0:
			kind = "object"
		}
		name := base
		if n.Payload != nil {
			name = n.Payload.DisplayName(base)
		}
		t := n.Transform.Translation
		_, _ = fmt.Fprintf(r.out, "%-6s %-24s %s (%g, %g, %g)\n", kind, base, name, t[0], t[1], t[2])
	}
}

func (r *repl) node(name string) (*graph.Node, error) {
	p := r.resolve(name)
	n, ok := r.w.Graph().FindByPath(p)
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, graph.ErrNotFound)
	}
	return n, nil
}

func (r *repl) move(name string, coords []string) error {
	n, err := r.node(name)
	if err != nil {
		return err
	}
	var v api.Vec3
	for i, c := range coords {
		f, err := strconv.ParseFloat(c, 32)
		if err != nil {
			return fmt.Errorf("coordinate %q: %w", c, err)
		}
		v[i] = float32(f)
	}
	t := n.Transform
	t.Translation = v
	return r.w.MoveNode(n.ID, t)
}

// save persists the live payload of an entry. Entries without one get a
// fresh payload at their current position.
func (r *repl) save(name string) error {
	n, err := r.node(name)
	if err != nil {
		return err
	}
	p := n.Payload
	if p == nil {
		p = api.NewPayload()
		p.Transform = n.Transform
	}
	if err := r.w.SaveEntity(n.Path, p); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(r.out, "saved %s (%s)\n", name, p.ID)
	return nil
}
