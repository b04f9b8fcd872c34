// Package config loads the optional bucketctl configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the optional bucketctl configuration file.
type Config struct {
	Backend  BackendConfig  `toml:"backend"`
	Server   ServerConfig   `toml:"server"`
	Defaults DefaultsConfig `toml:"defaults"`
	Theme    ThemeConfig    `toml:"theme"`
}

// BackendConfig locates the backend helper.
type BackendConfig struct {
	Executable *string  `toml:"executable"`
	Args       []string `toml:"args"`
}

// ServerConfig holds connection defaults. The password is never read from
// the file.
type ServerConfig struct {
	Host *string `toml:"host"`
	Port *int    `toml:"port"`
	User *string `toml:"user"`
}

// DefaultsConfig holds persistent flag defaults.
type DefaultsConfig struct {
	BWLimitIn  *string `toml:"bwlimit_in"`
	BWLimitOut *string `toml:"bwlimit_out"`
	CacheTTL   *string `toml:"cache_ttl"`
	Checksum   *bool   `toml:"checksum"`
}

// ThemeConfig holds optional color overrides for listings.
type ThemeConfig struct {
	Dir   *string `toml:"dir"`
	File  *string `toml:"file"`
	Muted *string `toml:"muted"`
}

// CacheTTL parses defaults.cache_ttl. ok is false when it is unset.
func (c Config) CacheTTL() (ttl time.Duration, ok bool, err error) {
	if c.Defaults.CacheTTL == nil {
		return 0, false, nil
	}
	ttl, err = time.ParseDuration(*c.Defaults.CacheTTL)
	if err != nil {
		return 0, false, fmt.Errorf("cache_ttl: %w", err)
	}
	return ttl, true, nil
}

// Path returns the resolved path to the config file.
func Path() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "bucketctl", "config.toml")
}

// Load reads the config file from the XDG path. Returns a zero Config
// (no error) if the file does not exist. Config is always optional.
func Load() (Config, error) {
	path := Path()
	if path == "" {
		return Config{}, nil
	}
	return LoadFile(path)
}

// LoadFile reads the config file at path. A missing file yields a zero
// Config.
func LoadFile(path string) (Config, error) {
	var cfg Config
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("load %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load %s: unknown key %q", path, undecoded[0].String())
	}
	return cfg, nil
}
