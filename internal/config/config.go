// Package config loads dirworld.hcl.
//
//	root         = "/home/me/world"
//	marker       = ".door"
//	debounce     = "500ms"
//	cache_db     = "/home/me/.dirworld/cache.db"
//	log_level    = "info"
//	metrics_addr = "127.0.0.1:9464"
//
//	codec "trailer" {
//	  extensions = ["fbx"]
//	}
//	codec "trailer" {
//	  extensions = ["flac"]
//	  requires   = "flac"
//	}
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/agentic-research/dirworld/internal/codec"
	"github.com/agentic-research/dirworld/internal/ingest"
	"github.com/agentic-research/dirworld/internal/watcher"
	"github.com/hashicorp/hcl/v2/hclsimple"
)

type Config struct {
	Root        string  `hcl:"root,optional"`
	Marker      string  `hcl:"marker,optional"`
	Debounce    string  `hcl:"debounce,optional"`
	CacheDB     string  `hcl:"cache_db,optional"`
	LogLevel    string  `hcl:"log_level,optional"`
	MetricsAddr string  `hcl:"metrics_addr,optional"`
	Codecs      []Codec `hcl:"codec,block"`
}

// Codec maps extra extensions to a built-in codec.
type Codec struct {
	Kind       string   `hcl:"kind,label"`
	Extensions []string `hcl:"extensions"`
	// Requires names an executable the codec depends on.
	Requires string `hcl:"requires,optional"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Marker:   ingest.DefaultMarker,
		Debounce: watcher.DefaultDebounce.String(),
		LogLevel: "info",
	}
}

// Load reads an HCL file. Unset attributes keep their defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if err := hclsimple.DecodeFile(path, nil, &cfg); err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg.finish()
}

// Parse decodes HCL source. filename is used in diagnostics and must end in
// .hcl.
func Parse(filename string, src []byte) (Config, error) {
	cfg := Default()
	if err := hclsimple.Decode(filename, src, nil, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", filename, err)
	}
	return cfg.finish()
}

func (c Config) finish() (Config, error) {
	d := Default()
	if c.Marker == "" {
		c.Marker = d.Marker
	}
	if c.Debounce == "" {
		c.Debounce = d.Debounce
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	return c, c.Validate()
}

// Validate checks every attribute that can be checked without touching
// the filesystem.
func (c Config) Validate() error {
	if strings.ContainsRune(c.Marker, '/') || !strings.HasPrefix(c.Marker, ".") {
		return fmt.Errorf("marker %q must be a dotfile name", c.Marker)
	}
	if _, err := c.DebounceDuration(); err != nil {
		return err
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	for _, cb := range c.Codecs {
		if _, err := codec.ByName(cb.Kind); err != nil {
			return err
		}
		if len(cb.Extensions) == 0 {
			return fmt.Errorf("codec %q: no extensions", cb.Kind)
		}
	}
	return nil
}

func (c Config) DebounceDuration() (time.Duration, error) {
	d, err := time.ParseDuration(c.Debounce)
	if err != nil {
		return 0, fmt.Errorf("debounce %q: %w", c.Debounce, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("debounce %q must be positive", c.Debounce)
	}
	return d, nil
}

func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level %q: %w", c.LogLevel, err)
	}
	return l, nil
}

// Registry builds the codec registry: the built-in mapping, then every
// codec block in file order.
func (c Config) Registry() (*codec.Registry, error) {
	reg := codec.Default()
	for _, cb := range c.Codecs {
		cd, err := codec.ByName(cb.Kind)
		if err != nil {
			return nil, err
		}
		if cb.Requires != "" {
			cd = codec.Requires(cd, cb.Requires)
		}
		reg.Register(cb.Extensions, cd)
	}
	return reg, nil
}
