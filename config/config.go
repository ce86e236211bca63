// Package config loads runtime configuration for a render index and its
// engine.
//
// A Config is read from a TOML or YAML file, chosen by extension, and then
// overridden by environment variables:
//
//	HD_WORKERS         sync fan-out, 0 means GOMAXPROCS
//	HD_SAFE_MODE       double-check shared resources on hash hits
//	HD_FORCE_REFINE    force refined representations
//	HD_GC_EVERY_FRAME  garbage collect after every engine frame
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/gogpu/hydra/hd"
)

// Environment variables read by ApplyEnv.
const (
	EnvWorkers      = "HD_WORKERS"
	EnvSafeMode     = "HD_SAFE_MODE"
	EnvForceRefine  = "HD_FORCE_REFINE"
	EnvGCEveryFrame = "HD_GC_EVERY_FRAME"
)

var (
	// ErrUnknownFormat is returned for a file extension other than
	// .toml, .yaml or .yml.
	ErrUnknownFormat = errors.New("config: unknown file format")

	// ErrInvalid is returned when a value is out of range.
	ErrInvalid = errors.New("config: invalid value")
)

// Config is the runtime configuration of a render index and its engine.
type Config struct {
	// Workers is the rprim sync fan-out. 0 means GOMAXPROCS.
	Workers int `toml:"workers" yaml:"workers"`
	// SafeMode double-checks the content of shared resources on a hash hit.
	SafeMode bool `toml:"safe_mode" yaml:"safe_mode"`
	// ForceRefine makes prims draw their refined representation.
	ForceRefine bool `toml:"force_refine" yaml:"force_refine"`
	// DirtyListCacheSize bounds the number of cached dirty-list entries.
	// 0 keeps the index default.
	DirtyListCacheSize int `toml:"dirty_list_cache_size" yaml:"dirty_list_cache_size"`
	// GCEveryFrame runs resource garbage collection after every frame.
	GCEveryFrame bool `toml:"gc_every_frame" yaml:"gc_every_frame"`
	// RenderSettings are the initial render delegate settings.
	RenderSettings map[string]any `toml:"render_settings" yaml:"render_settings"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{}
}

// Load reads the file at path and applies the environment. An empty path
// only applies the environment to Default.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: %w", err)
		}
		if err := Decode(&cfg, data, filepath.Ext(path)); err != nil {
			return cfg, fmt.Errorf("config: %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Decode parses data into cfg. ext selects the format and includes the
// leading dot.
func Decode(cfg *Config, data []byte, ext string) error {
	switch strings.ToLower(ext) {
	case ".toml":
		return toml.Unmarshal(data, cfg)
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, ext)
	}
}

// Encode writes cfg in the format selected by ext.
func Encode(cfg Config, ext string) ([]byte, error) {
	switch strings.ToLower(ext) {
	case ".toml":
		return toml.Marshal(cfg)
	case ".yaml", ".yml":
		return yaml.Marshal(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, ext)
	}
}

// ApplyEnv overrides fields from the environment. lookup has the
// signature of os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvWorkers); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrInvalid, EnvWorkers, v)
		}
		c.Workers = n
	}
	for _, b := range []struct {
		key string
		dst *bool
	}{
		{EnvSafeMode, &c.SafeMode},
		{EnvForceRefine, &c.ForceRefine},
		{EnvGCEveryFrame, &c.GCEveryFrame},
	} {
		v, ok := lookup(b.key)
		if !ok {
			continue
		}
		on, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrInvalid, b.key, v)
		}
		*b.dst = on
	}
	return nil
}

// Validate reports out-of-range values.
func (c Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers %d", ErrInvalid, c.Workers)
	}
	if c.DirtyListCacheSize < 0 {
		return fmt.Errorf("%w: dirty_list_cache_size %d", ErrInvalid, c.DirtyListCacheSize)
	}
	return nil
}

// IndexOptions converts the configuration into render index options.
// log may be nil.
func (c Config) IndexOptions(log *slog.Logger) []hd.Option {
	opts := []hd.Option{
		hd.WithWorkers(c.Workers),
		hd.WithSafeMode(c.SafeMode),
		hd.WithForceRefine(c.ForceRefine),
	}
	if c.DirtyListCacheSize > 0 {
		opts = append(opts, hd.WithDirtyListCacheSize(c.DirtyListCacheSize))
	}
	if log != nil {
		opts = append(opts, hd.WithLogger(log))
	}
	return opts
}

// EngineOptions converts the configuration into engine options.
func (c Config) EngineOptions() []hd.EngineOption {
	return []hd.EngineOption{hd.WithGarbageCollectEveryFrame(c.GCEveryFrame)}
}

// DelegateSettings returns the settings passed to a render delegate
// factory. SafeMode is added under "safeMode" unless set explicitly.
func (c Config) DelegateSettings() map[string]any {
	out := make(map[string]any, len(c.RenderSettings)+1)
	for k, v := range c.RenderSettings {
		out[k] = v
	}
	if _, ok := out["safeMode"]; !ok {
		out["safeMode"] = c.SafeMode
	}
	return out
}
