// Package config loads drydock's settings file. Configuration is optional:
// every field has a working default, and the file only exists to pin tool
// paths or policy on machines that need it.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"
)

// Tools pins the external programs drydock invokes. Empty values mean PATH
// lookup.
type Tools struct {
	Codesign  string `toml:"codesign"`
	AssetUtil string `toml:"assetutil"`
	Linker    string `toml:"linker"`
}

// Link holds patch-link policy.
type Link struct {
	// MinPercentage is the smallest acceptable link percentage; 0 disables
	// the check.
	MinPercentage float64 `toml:"min_percentage"`
	// BuildDir receives link outputs and the debug-info archive.
	BuildDir string `toml:"build_dir"`
}

// Cache controls the hash-manifest cache.
type Cache struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"` // empty means the per-user default
}

type Config struct {
	Tools Tools `toml:"tools"`
	Link  Link  `toml:"link"`
	Cache Cache `toml:"cache"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Link:  Link{BuildDir: "build"},
		Cache: Cache{Enabled: true},
	}
}

// DefaultPath is the per-user config location.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, "drydock", "config.toml")
}

// Load reads configuration with the following precedence: the explicit path
// when given, then ./drydock.toml, then the per-user config. Values absent
// from the file keep their defaults. No file at all is not an error; an
// explicit path that does not exist is.
func Load(explicit string) (*Config, error) {
	cfg := Default()

	if explicit != "" {
		if _, err := toml.DecodeFile(explicit, cfg); err != nil {
			return nil, fmt.Errorf("load config %s: %w", explicit, err)
		}
		return cfg, nil
	}

	for _, path := range []string{"drydock.toml", DefaultPath()} {
		_, err := toml.DecodeFile(path, cfg)
		if err == nil {
			return cfg, nil
		}
		if os.IsNotExist(err) {
			continue
		}
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}
