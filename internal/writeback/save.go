// Package writeback persists payloads back into the filesystem.
package writeback

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/agentic-research/dirworld/api"
	"github.com/agentic-research/dirworld/internal/codec"
	"github.com/agentic-research/dirworld/internal/ingest"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// ErrNoCodec means a file payload cannot be saved because no codec handles
// the file's extension.
var ErrNoCodec = errors.New("no codec for extension")

// Options configures Save.
type Options struct {
	Marker string
	Logger *slog.Logger
}

// Save writes payload to the entry at p. A folder gets its marker file
// rewritten. A file is decoded to recover its carrier, which is re-encoded
// with the new payload and written back atomically.
func Save(fsys billy.Filesystem, reg *codec.Registry, p string, payload *api.Payload, opts Options) error {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	data, err := api.MarshalPayload(payload)
	if err != nil {
		return fmt.Errorf("save %s: %w", p, err)
	}

	if ingest.IsDir(fsys, p) {
		marker := opts.Marker
		if marker == "" {
			marker = ingest.DefaultMarker
		}
		if err := WriteAtomic(fsys, filepath.Join(p, marker), data, 0o644); err != nil {
			return fmt.Errorf("save %s: %w", p, err)
		}
		return nil
	}

	c, ok := reg.ForPath(p)
	if !ok {
		return fmt.Errorf("save %s: %w", p, ErrNoCodec)
	}
	raw, err := util.ReadFile(fsys, p)
	if err != nil {
		return fmt.Errorf("save %s: %w", p, err)
	}

	carrier, _, err := c.Decode(raw)
	switch {
	case err == nil:
	case errors.Is(err, codec.ErrDependency):
		return fmt.Errorf("save %s: %w", p, err)
	case errors.Is(err, codec.ErrNoPayload):
		carrier = raw
	default:
		log.Warn("save: existing embedding unreadable, treating file as carrier", "path", p, "codec", c.Name(), "error", err)
		carrier = raw
	}

	out, err := c.Encode(carrier, data)
	if err != nil {
		return fmt.Errorf("save %s: encode with %s: %w", p, c.Name(), err)
	}
	if err := WriteAtomic(fsys, p, out, 0o644); err != nil {
		return fmt.Errorf("save %s: %w", p, err)
	}
	return nil
}
