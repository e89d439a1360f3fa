package cmd

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/agentic-research/dirworld/api"
	"github.com/agentic-research/dirworld/internal/codec"
	"github.com/agentic-research/dirworld/internal/ingest"
	"github.com/agentic-research/dirworld/internal/world"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
)

func setupREPL(t *testing.T) (*repl, *bytes.Buffer, billy.Filesystem) {
	t.Helper()
	fsys := memfs.New()
	for p, data := range map[string]string{
		"/world/room1/a.txt":       "alpha",
		"/world/room1/vault/g.txt": "gold",
		"/world/readme.txt":        "hi",
	} {
		if err := util.WriteFile(fsys, p, []byte(data), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	w := world.New(world.Options{FS: fsys, Logger: slog.New(slog.DiscardHandler)})
	t.Cleanup(w.Close)
	if err := w.ChangeRoot("/world"); err != nil {
		t.Fatal(err)
	}
	out := &bytes.Buffer{}
	return &repl{w: w, out: out}, out, fsys
}

func TestREPLNavigateAndList(t *testing.T) {
	r, out, _ := setupREPL(t)

	if err := r.exec("ls"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "readme.txt") || !strings.Contains(out.String(), "room1") {
		t.Fatalf("ls output missing entries:\n%s", out.String())
	}

	out.Reset()
	if err := r.exec("cd room1"); err != nil {
		t.Fatal(err)
	}
	if err := r.exec("pwd"); err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(out.String()); got != "/world/room1" {
		t.Fatalf("pwd = %q, want /world/room1", got)
	}

	out.Reset()
	if err := r.exec("ls"); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 entries (.., a.txt, vault), got:\n%s", out.String())
	}
	if !strings.HasPrefix(lines[0], "up") {
		t.Fatalf("first entry should lead up, got %q", lines[0])
	}
}

func TestREPLMoveAndSave(t *testing.T) {
	r, out, fsys := setupREPL(t)
	if err := r.exec("move readme.txt 1 2 3"); err != nil {
		t.Fatal(err)
	}
	if err := r.exec("save readme.txt"); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out.String(), "saved readme.txt") {
		t.Fatalf("unexpected output %q", out.String())
	}

	entry := ingest.Extract(fsys, "/world/readme.txt", codec.Default(), ingest.Options{Logger: slog.New(slog.DiscardHandler)})
	if entry.Payload == nil {
		t.Fatal("payload not written")
	}
	if entry.Payload.Transform.Translation != (api.Vec3{1, 2, 3}) {
		t.Fatalf("translation = %v, want [1 2 3]", entry.Payload.Transform.Translation)
	}
	if string(entry.Carrier) != "hi" {
		t.Fatalf("carrier = %q, want original contents", entry.Carrier)
	}
}

func TestREPLLockUnlock(t *testing.T) {
	r, out, fsys := setupREPL(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := r.exec("cd room1"); err != nil {
		t.Fatal(err)
	}
	if err := r.exec("lock vault correct-horse-battery"); err != nil {
		t.Fatal(err)
	}
	if err := r.w.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	r.w.Tick()
	if ingest.IsDir(fsys, "/world/room1/vault") {
		t.Fatal("vault should be sealed")
	}

	out.Reset()
	if err := r.exec("ls"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "locked") {
		t.Fatalf("archive not listed as locked:\n%s", out.String())
	}

	if err := r.exec("unlock vault.tar.xz.aes correct-horse-battery"); err != nil {
		t.Fatal(err)
	}
	if err := r.w.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	r.w.Tick()
	data, err := util.ReadFile(fsys, "/world/room1/vault/g.txt")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "gold" {
		t.Fatalf("restored contents = %q", data)
	}
}

func TestREPLLockRefusesCurrentRoomAndAncestors(t *testing.T) {
	r, _, fsys := setupREPL(t)
	if err := r.exec("cd room1"); err != nil {
		t.Fatal(err)
	}
	for _, line := range []string{"lock . correct-horse-battery", "lock .. correct-horse-battery"} {
		if err := r.exec(line); !errors.Is(err, world.ErrOccupied) {
			t.Errorf("%q: got %v, want ErrOccupied", line, err)
		}
	}
	if len(r.w.Pending()) != 0 {
		t.Fatalf("jobs spawned: %v", r.w.Pending())
	}
	for _, dir := range []string{"/world", "/world/room1"} {
		if !ingest.IsDir(fsys, dir) {
			t.Fatalf("%s was sealed", dir)
		}
	}
}

func TestREPLErrors(t *testing.T) {
	r, _, _ := setupREPL(t)
	for _, line := range []string{"dance", "cd", "cd ..", "move nothing 1 2 3", "move readme.txt x 0 0", "lock readme.txt 0123456789abcdef"} {
		if err := r.exec(line); err == nil {
			t.Errorf("%q: expected an error", line)
		}
	}
	if err := r.exec("   "); err != nil {
		t.Errorf("blank line: %v", err)
	}
	if err := r.exec("quit"); !errors.Is(err, errQuit) {
		t.Errorf("quit returned %v", err)
	}
}

func TestServeStopsOnQuit(t *testing.T) {
	r, out, _ := setupREPL(t)
	lines := make(chan string, 3)
	lines <- "pwd"
	lines <- "bogus"
	lines <- "quit"

	err := serve(context.Background(), r.w, r, lines, time.Millisecond)
	if !errors.Is(err, errQuit) {
		t.Fatalf("serve returned %v, want errQuit", err)
	}
	if !strings.Contains(out.String(), "/world") || !strings.Contains(out.String(), "error:") {
		t.Fatalf("unexpected output:\n%s", out.String())
	}
}

func TestServeStopsOnEOF(t *testing.T) {
	r, _, _ := setupREPL(t)
	lines := make(chan string)
	close(lines)
	if err := serve(context.Background(), r.w, r, lines, time.Millisecond); !errors.Is(err, errQuit) {
		t.Fatalf("serve returned %v, want errQuit", err)
	}
}
