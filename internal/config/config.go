// Package config holds the bridge's runtime configuration: resource
// ceilings for the protocol server, workspace roots, logging and the
// discovery directory. Persisted as JSON in the user config directory.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/RandyBoBandy92/claude-code-bridge/internal/consts"
)

// Config represents application configuration
type Config struct {
	// MaxConnections caps concurrent client connections
	MaxConnections int `json:"max_connections"`

	// RecvBufferLimit caps bytes buffered per connection while waiting
	// for a complete frame
	RecvBufferLimit int `json:"recv_buffer_limit"`

	// MessageSizeLimit caps a single decoded message payload
	MessageSizeLimit int `json:"message_size_limit"`

	// SweepIntervalSeconds is the dead-connection sweep period
	SweepIntervalSeconds int `json:"sweep_interval_seconds"`

	// LockDir is where discovery descriptors are published; empty means
	// the per-user default
	LockDir string `json:"lock_dir,omitempty"`

	// WorkspaceDirs are the editor workspace roots
	WorkspaceDirs []string `json:"workspace_dirs,omitempty"`

	// LogLevel is one of debug, info, warn, error, none
	LogLevel string `json:"log_level"`

	// LogPath is resolved at startup, not persisted
	LogPath string `json:"-"`
}

// DefaultConfig returns a configuration with all defaults applied
func DefaultConfig() *Config {
	return &Config{
		MaxConnections:       consts.DefaultMaxConnections,
		RecvBufferLimit:      consts.DefaultRecvBufferLimit,
		MessageSizeLimit:     consts.DefaultMessageSizeLimit,
		SweepIntervalSeconds: int(consts.DefaultSweepInterval / time.Second),
		LogLevel:             "info",
	}
}

// SweepInterval returns the sweep period as a duration
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

// GetConfigPath returns the path of the persisted configuration file
func GetConfigPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(configDir, "claude-code-bridge", "config.json")
}

// Load reads the configuration from path, falling back to defaults for a
// missing file and for any zero-valued field
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

// Save writes the configuration as indented JSON
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyDefaults backfills zero-valued fields after a partial file load
func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.MaxConnections <= 0 {
		c.MaxConnections = def.MaxConnections
	}
	if c.RecvBufferLimit <= 0 {
		c.RecvBufferLimit = def.RecvBufferLimit
	}
	if c.MessageSizeLimit <= 0 {
		c.MessageSizeLimit = def.MessageSizeLimit
	}
	if c.SweepIntervalSeconds <= 0 {
		c.SweepIntervalSeconds = def.SweepIntervalSeconds
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
}
