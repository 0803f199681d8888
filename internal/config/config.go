package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Storage backend names accepted in the config file.
const (
	StorageLocal  = "local"
	StorageMemory = "memory"
)

// Config is the top-level configuration for the depot server.
type Config struct {
	// Listen is the TCP address the HTTP server binds to.
	// Defaults to ":8481".
	Listen string `yaml:"listen"`

	// DataDir is the root directory where artifact payloads are stored.
	// Defaults to ./data.
	DataDir string `yaml:"data_dir"`

	// Storage selects the blob-store backend: "local" (filesystem, the
	// default) or "memory" (volatile, for development).
	Storage string `yaml:"storage"`

	// MaxBytes caps the total byte size of stored artifacts. Zero means
	// unlimited.
	MaxBytes int64 `yaml:"max_bytes"`

	// AnonymousRead allows GET/HEAD requests without credentials. Writes
	// always require authentication when any users or tokens are
	// configured.
	AnonymousRead bool `yaml:"anonymous_read"`

	// Users maps usernames to passwords for HTTP basic authentication.
	Users map[string]string `yaml:"users"`

	// Tokens lists accepted bearer tokens for deploy automation.
	Tokens []string `yaml:"tokens"`
}

// Default returns the configuration used when no config file is given.
func Default() Config {
	return Config{
		Listen:        ":8481",
		DataDir:       "./data",
		Storage:       StorageLocal,
		AnonymousRead: true,
	}
}

// Load reads a YAML config file and overlays it on the defaults. An empty
// path returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen must not be empty")
	}
	if c.Storage != StorageLocal && c.Storage != StorageMemory {
		return fmt.Errorf("unknown storage backend %q", c.Storage)
	}
	if c.Storage == StorageLocal && c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty for local storage")
	}
	if c.MaxBytes < 0 {
		return fmt.Errorf("max_bytes must not be negative")
	}
	return nil
}
