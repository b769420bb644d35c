// Package config loads the optional skiff configuration file from the XDG
// config path. Every value is a flag default; command-line flags win.
package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the optional skiff configuration file.
type Config struct {
	Defaults  DefaultsConfig  `toml:"defaults"`
	Bootstrap BootstrapConfig `toml:"bootstrap"`
}

// DefaultsConfig holds persistent flag defaults.
type DefaultsConfig struct {
	RemotePath *string  `toml:"remote_path"`
	Identity   *string  `toml:"identity"`
	Port       *int     `toml:"port"`
	Verify     *bool    `toml:"verify"`
	Clean      *bool    `toml:"clean"`
	IOURing    *bool    `toml:"iouring"`
	BWLimit    *string  `toml:"bwlimit"`
	Excludes   []string `toml:"excludes"`
}

// BootstrapConfig holds remote provisioning defaults.
type BootstrapConfig struct {
	Python       *string `toml:"python"`
	Requirements *string `toml:"requirements"`
	AppEntry     *string `toml:"app_entry"`
	AppPort      *int    `toml:"app_port"`
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
	return filepath.Join(dir, "skiff", "config.toml")
}

// Load reads the config file from the XDG path. Returns a zero Config
// (no error) if the file does not exist. Config is always optional.
func Load() (Config, error) {
	path := Path()
	if path == "" {
		return Config{}, nil
	}

	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, err
	}
	return cfg, nil
}
