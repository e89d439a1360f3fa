// Package codec embeds payload bytes inside carrier files.
//
// A Codec splits a file into the bytes that make it a valid image, sound or
// archive (the carrier) and the payload hidden alongside them. Codecs are
// registered by the full dotted extension of the files they handle.
package codec

import (
	"errors"
	"fmt"
	"os/exec"
	"path"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrNoPayload means the carrier is valid but nothing is embedded in it.
	// It is not a failure.
	ErrNoPayload = errors.New("no payload embedded")
	// ErrDependency means the codec needs something that is not available.
	// Saving through such a codec must be abandoned.
	ErrDependency = errors.New("codec dependency unavailable")
	// ErrCorrupt means an embedding was found but could not be read.
	ErrCorrupt = errors.New("corrupt embedding")
)

// Codec embeds and extracts payload bytes.
type Codec interface {
	Name() string
	// Decode returns the carrier and the embedded payload.
	Decode(raw []byte) (carrier, payload []byte, err error)
	// Encode returns carrier with payload embedded.
	Encode(carrier, payload []byte) ([]byte, error)
}

// Registry maps dotted extensions to codecs. It is safe for concurrent use
// so archival jobs can share it with the main loop.
type Registry struct {
	mu     sync.RWMutex
	codecs map[string]Codec
}

func NewRegistry() *Registry {
	return &Registry{codecs: make(map[string]Codec)}
}

// Register maps every extension in exts to c, replacing earlier mappings.
func (r *Registry) Register(exts []string, c Codec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range exts {
		r.codecs[normalize(ext)] = c
	}
}

// Lookup returns the codec for a full dotted extension such as "tar.xz.aes".
func (r *Registry) Lookup(ext string) (Codec, bool) {
	if ext == "" {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.codecs[normalize(ext)]
	return c, ok
}

// ForPath returns the codec for the file at p.
func (r *Registry) ForPath(p string) (Codec, bool) {
	return r.Lookup(Extension(p))
}

// Extensions lists every registered extension in sorted order.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.codecs))
	for ext := range r.codecs {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

func normalize(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// Extension returns everything after the first dot of the base name of p,
// lower-cased. Dotfiles and names without a dot have no extension.
func Extension(p string) string {
	base := path.Base(p)
	if strings.HasPrefix(base, ".") {
		return ""
	}
	i := strings.IndexByte(base, '.')
	if i < 0 {
		return ""
	}
	return strings.ToLower(base[i+1:])
}

// Stem returns the base name of p up to its first dot.
func Stem(p string) string {
	base := path.Base(p)
	if strings.HasPrefix(base, ".") {
		return base
	}
	if i := strings.IndexByte(base, '.'); i >= 0 {
		return base[:i]
	}
	return base
}

// Requires wraps c so that both operations fail with ErrDependency when
// tool cannot be found on PATH.
func Requires(c Codec, tool string) Codec {
	return &requires{Codec: c, tool: tool}
}

type requires struct {
	Codec
	tool string
}

func (r *requires) check() error {
	if _, err := exec.LookPath(r.tool); err != nil {
		return fmt.Errorf("%s needs %s: %w", r.Codec.Name(), r.tool, ErrDependency)
	}
	return nil
}

func (r *requires) Decode(raw []byte) ([]byte, []byte, error) {
	if err := r.check(); err != nil {
		return nil, nil, err
	}
	return r.Codec.Decode(raw)
}

func (r *requires) Encode(carrier, payload []byte) ([]byte, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	return r.Codec.Encode(carrier, payload)
}

// ByName returns a built-in codec: "png", "riff" or "trailer".
func ByName(name string) (Codec, error) {
	switch name {
	case "png":
		return PNG{}, nil
	case "riff", "wav":
		return RIFF{}, nil
	case "trailer":
		return Trailer{}, nil
	}
	return nil, fmt.Errorf("unknown codec %q", name)
}

// DefaultExtensions is the built-in extension mapping.
var DefaultExtensions = map[string][]string{
	"png":     {"png"},
	"riff":    {"wav"},
	"trailer": {"tar.xz.aes", "glb", "gltf", "ogg", "mp3", "txt", "lua", "yarn"},
}

// Default returns a registry holding the built-in mapping.
func Default() *Registry {
	r := NewRegistry()
	for name, exts := range DefaultExtensions {
		c, _ := ByName(name)
		r.Register(exts, c)
	}
	return r
}
