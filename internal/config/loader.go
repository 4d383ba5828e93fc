package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes environment overrides. A double underscore separates
// nesting levels: OAF_DATASET__BASE_URL sets dataset.base_url.
const EnvPrefix = "OAF_"

// Defaults.
const (
	DefaultDatasetID = "default"
	DefaultBaseURL   = "http://localhost:8080"
	DefaultLogLevel  = "info"
)

// flagKeys maps CLI flag names to configuration keys.
var flagKeys = map[string]string{
	"base-url":  "dataset.base_url",
	"log-level": "log_level",
}

// Load reads the configuration.
// Precedence (highest to lowest): flags > env vars > config file > defaults.
// Relative source paths are resolved against the directory of path.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]any{
		"dataset.id":       DefaultDatasetID,
		"dataset.base_url": DefaultBaseURL,
		"log_level":        DefaultLogLevel,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if path != "" {
		cfg.resolvePaths(filepath.Dir(path))
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// resolvePaths makes relative source paths relative to baseDir.
func (c *Config) resolvePaths(baseDir string) {
	for i := range c.Stores {
		for id, src := range c.Stores[i].Sources {
			if src.Path != "" && !filepath.IsAbs(src.Path) {
				src.Path = filepath.Join(baseDir, src.Path)
				c.Stores[i].Sources[id] = src
			}
		}
	}
}
