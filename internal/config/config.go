// Package config loads and persists the small amount of state the core
// pipeline consumes but does not itself own the UX for: the mod.io OAuth
// token, install-path overrides, and the application data directories.
// Configuration persistence proper (the GUI's settings dialog) is out of
// scope for this module; this package exists so the core has a concrete
// shape to read, with a simple fallback chain (CLI flag, then config
// file, then error).
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"mint/internal/mint"
)

// legacyAppName is honored when a directory by that name already exists,
// so upgrades keep their cache and profiles.
const (
	appName       = "mint"
	legacyAppName = "drg-mint"
	configFile    = "config.yaml"
)

// Config is the persisted shape the core consumes.
type Config struct {
	ModioToken string `yaml:"modio_token,omitempty"`
	GamePath   string `yaml:"game_path,omitempty"`
	AppDataDir string `yaml:"app_data_dir,omitempty"`
	Theme      string `yaml:"theme,omitempty"`
}

// Dirs holds the resolved platform-standard per-user locations, with
// legacy directory names preferred when they already exist on disk.
type Dirs struct {
	Config string
	Cache  string
	Data   string
}

// ResolveDirs returns the config/cache/data roots for mint, honoring an
// explicit override (e.g. from the --app-data-dir CLI flag) and
// otherwise preferring a pre-existing legacy directory over the current
// xdg-standard one.
func ResolveDirs(override string) Dirs {
	if override != "" {
		return Dirs{
			Config: filepath.Join(override, "config"),
			Cache:  filepath.Join(override, "cache"),
			Data:   filepath.Join(override, "data"),
		}
	}

	legacy := legacyDirs()
	standard := Dirs{
		Config: filepath.Join(xdg.ConfigHome, appName),
		Cache:  filepath.Join(xdg.CacheHome, appName),
		Data:   filepath.Join(xdg.DataHome, appName),
	}

	if dirExists(legacy.Config) {
		standard.Config = legacy.Config
	}
	if dirExists(legacy.Cache) {
		standard.Cache = legacy.Cache
	}
	if dirExists(legacy.Data) {
		standard.Data = legacy.Data
	}
	return standard
}

func legacyDirs() Dirs {
	return Dirs{
		Config: filepath.Join(xdg.ConfigHome, legacyAppName),
		Cache:  filepath.Join(xdg.CacheHome, legacyAppName),
		Data:   filepath.Join(xdg.DataHome, legacyAppName),
	}
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// Load reads config.yaml from dirs.Config. A missing file is not an error;
// it returns a zero-value Config so callers can layer CLI flags on top.
func Load(dirs Dirs) (*Config, error) {
	path := filepath.Join(dirs.Config, configFile)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Config{}, nil
	}
	if err != nil {
		return nil, mint.Wrap(mint.KindIO, err, "reading config %s", path)
	}

	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, mint.Wrap(mint.KindIO, err, "parsing config %s", path)
	}
	return &c, nil
}

// Save writes config.yaml via temp-file + rename, matching the store's
// atomic-publication convention elsewhere in the pipeline.
func Save(dirs Dirs, c *Config) error {
	if err := os.MkdirAll(dirs.Config, 0o755); err != nil {
		return mint.Wrap(mint.KindIO, err, "creating config dir %s", dirs.Config)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return mint.Wrap(mint.KindIO, err, "marshalling config")
	}

	path := filepath.Join(dirs.Config, configFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return mint.Wrap(mint.KindIO, err, "writing config temp file")
	}
	if err := os.Rename(tmp, path); err != nil {
		return mint.Wrap(mint.KindIO, err, "renaming config into place")
	}
	return nil
}

// RequireToken returns the effective modio token from flag (priority) or
// config, erroring with KindAuthMissing if neither is set.
func RequireToken(flagToken string, c *Config) (string, error) {
	if flagToken != "" {
		return flagToken, nil
	}
	if c != nil && c.ModioToken != "" {
		return c.ModioToken, nil
	}
	return "", &mint.Error{Kind: mint.KindAuthMissing, Message: "modio token required but not set (flag or config)"}
}

// EnsureDirs creates the config/cache/data roots if absent.
func EnsureDirs(dirs Dirs) error {
	for _, d := range []string{dirs.Config, dirs.Cache, dirs.Data} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", d, err)
		}
	}
	return nil
}
