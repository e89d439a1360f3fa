// Package ingest reads filesystem entries into payloads.
package ingest

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/agentic-research/dirworld/api"
	"github.com/agentic-research/dirworld/internal/codec"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// DefaultMarker is the hidden file inside a folder that holds its payload.
const DefaultMarker = ".door"

// Options configures extraction.
type Options struct {
	Marker string
	Logger *slog.Logger
}

func (o Options) marker() string {
	if o.Marker == "" {
		return DefaultMarker
	}
	return o.Marker
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// Entry is what extraction found at a path. Either field may be nil.
type Entry struct {
	Payload *api.Payload
	Carrier []byte
}

// Extract reads the payload and carrier bytes of the entry at p.
//
// Nothing here fails the caller: unreadable files, malformed payloads and
// codec errors are logged and degrade to an entry without a payload.
func Extract(fsys billy.Filesystem, p string, reg *codec.Registry, opts Options) Entry {
	log := opts.logger()

	info, err := fsys.Stat(p)
	if err != nil {
		log.Warn("extract: stat failed", "path", p, "error", err)
		return Entry{}
	}
	if info.IsDir() {
		return extractFolder(fsys, p, opts)
	}

	raw, err := util.ReadFile(fsys, p)
	if err != nil {
		log.Warn("extract: read failed", "path", p, "error", err)
		return Entry{}
	}
	c, ok := reg.ForPath(p)
	if !ok {
		return Entry{Carrier: raw}
	}

	carrier, embedded, err := c.Decode(raw)
	switch {
	case err == nil:
		payload, perr := api.UnmarshalPayload(embedded)
		if perr != nil {
			log.Warn("extract: malformed payload", "path", p, "codec", c.Name(), "error", perr)
			return Entry{Carrier: carrier}
		}
		return Entry{Payload: payload, Carrier: carrier}
	case errors.Is(err, codec.ErrNoPayload):
		return Entry{Carrier: raw}
	default:
		log.Error("extract: codec failed", "path", p, "codec", c.Name(), "error", err)
		return Entry{}
	}
}

func extractFolder(fsys billy.Filesystem, dir string, opts Options) Entry {
	marker := filepath.Join(dir, opts.marker())
	raw, err := util.ReadFile(fsys, marker)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) && !os.IsNotExist(err) {
			opts.logger().Warn("extract: read marker failed", "path", marker, "error", err)
		}
		return Entry{}
	}
	payload, err := api.UnmarshalPayload(raw)
	if err != nil {
		opts.logger().Warn("extract: malformed marker", "path", marker, "error", err)
		return Entry{}
	}
	return Entry{Payload: payload}
}

// IsDir reports whether p is a directory.
func IsDir(fsys billy.Filesystem, p string) bool {
	info, err := fsys.Stat(p)
	return err == nil && info.IsDir()
}
