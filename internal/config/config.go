// Package config loads haumaru's YAML configuration file, rejecting
// unknown keys, and discovers it by walking parent directories looking
// for .haumaru/config.yml.
package config

import (
	"bytes"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/cuemby/haumaru/internal/herror"
)

// DefaultPeriod is the number of seconds between backup passes when
// Period is unset
const DefaultPeriod = 900

// Config is the recognised set of top-level keys in .haumaru/config.yml.
// Unknown keys are rejected at parse time.
type Config struct {
	Path        string `yaml:"path"`
	Working     string `yaml:"working"`
	Period      int64  `yaml:"period"`
	MaxFileSize int64  `yaml:"max_file_size"`
	Bucket      string `yaml:"bucket"`
	Prefix      string `yaml:"prefix"`
}

// Load parses the YAML file at path, rejecting unrecognised keys, and
// fills in defaults (Period).
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, herror.Wrap(herror.Config, "read config file", err)
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, herror.Wrap(herror.Config, "parse config file", err)
	}

	if cfg.Period == 0 {
		cfg.Period = DefaultPeriod
	}
	if cfg.Path == "" {
		return Config{}, herror.New(herror.Config, "config missing required key: path")
	}
	if cfg.Working == "" {
		return Config{}, herror.New(herror.Config, "config missing required key: working")
	}
	return cfg, nil
}

// Discover walks upward from startDir looking for .haumaru/config.yml,
// returning its path. Returns herror.Config-wrapped os.ErrNotExist if it
// reaches the filesystem root without finding one.
func Discover(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", herror.Wrap(herror.Config, "resolve start directory", err)
	}

	for {
		candidate := filepath.Join(dir, ".haumaru", "config.yml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", herror.Wrap(herror.Config, "discover config file", os.ErrNotExist)
		}
		dir = parent
	}
}
