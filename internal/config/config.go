// Package config loads nativebind.toml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
)

// FileName is the config file looked up from the working directory.
const FileName = "nativebind.toml"

// Config is the merged generation configuration.
type Config struct {
	Target   TargetConfig   `toml:"target"`
	Generate GenerateConfig `toml:"generate"`
	Output   OutputConfig   `toml:"output"`
	Cache    CacheConfig    `toml:"cache"`

	// Path is the file the config was loaded from, empty for defaults.
	Path string `toml:"-"`
}

type TargetConfig struct {
	PointerSize int `toml:"pointer_size"`
}

type GenerateConfig struct {
	Jobs             int      `toml:"jobs"`
	Deny             []string `toml:"deny"`
	IncludeTemplates bool     `toml:"include_templates"`
	MaxDiagnostics   int      `toml:"max_diagnostics"`
}

type OutputConfig struct {
	Format string `toml:"format"`
	Path   string `toml:"path"`
}

type CacheConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

// Formats lists the accepted dump formats.
var Formats = []string{"json", "msgpack"}

// Default returns the configuration used without a file.
func Default() Config {
	return Config{
		Target:   TargetConfig{PointerSize: 8},
		Generate: GenerateConfig{IncludeTemplates: true, MaxDiagnostics: 100},
		Output:   OutputConfig{Format: "json"},
		Cache:    CacheConfig{Enabled: true},
	}
}

// Find walks up from startDir to locate nativebind.toml.
func Find(startDir string) (path string, ok bool, err error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Load reads path over the defaults. Keys absent from the file keep their
// default values.
func Load(path string) (Config, error) {
	var file Config
	meta, err := toml.DecodeFile(path, &file)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}

	cfg := Default()
	cfg.Path = path
	if meta.IsDefined("target", "pointer_size") {
		cfg.Target.PointerSize = file.Target.PointerSize
	}
	if meta.IsDefined("generate", "jobs") {
		cfg.Generate.Jobs = file.Generate.Jobs
	}
	if meta.IsDefined("generate", "deny") {
		cfg.Generate.Deny = file.Generate.Deny
	}
	if meta.IsDefined("generate", "include_templates") {
		cfg.Generate.IncludeTemplates = file.Generate.IncludeTemplates
	}
	if meta.IsDefined("generate", "max_diagnostics") {
		cfg.Generate.MaxDiagnostics = file.Generate.MaxDiagnostics
	}
	if meta.IsDefined("output", "format") {
		cfg.Output.Format = file.Output.Format
	}
	if meta.IsDefined("output", "path") {
		cfg.Output.Path = file.Output.Path
	}
	if meta.IsDefined("cache", "enabled") {
		cfg.Cache.Enabled = file.Cache.Enabled
	}
	if meta.IsDefined("cache", "dir") {
		cfg.Cache.Dir = file.Cache.Dir
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Discover loads the nearest nativebind.toml above startDir, or the
// defaults when there is none.
func Discover(startDir string) (Config, error) {
	path, ok, err := Find(startDir)
	if err != nil {
		return Config{}, err
	}
	if !ok {
		return Default(), nil
	}
	return Load(path)
}

// Validate checks value ranges.
func (c Config) Validate() error {
	switch c.Target.PointerSize {
	case 4, 8:
	default:
		return fmt.Errorf("[target].pointer_size must be 4 or 8, got %d", c.Target.PointerSize)
	}
	if c.Generate.Jobs < 0 {
		return fmt.Errorf("[generate].jobs must not be negative, got %d", c.Generate.Jobs)
	}
	if !slices.Contains(Formats, c.Output.Format) {
		return fmt.Errorf("[output].format must be one of %s, got %q", strings.Join(Formats, "|"), c.Output.Format)
	}
	for _, d := range c.Generate.Deny {
		if strings.TrimSpace(d) == "" {
			return errors.New("[generate].deny contains an empty name")
		}
	}
	return nil
}
