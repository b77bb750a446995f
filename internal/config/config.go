// Package config loads host configuration from a JSON file with sensible
// defaults for every field.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// SocketConfig holds the WebSocket listener settings
type SocketConfig struct {
	Port                    int `json:"port"`
	MaxConnections          int `json:"max_connections"`
	HandshakeTimeoutSeconds int `json:"handshake_timeout_seconds"`
}

// StatusConfig holds the HTTP status endpoint settings
type StatusConfig struct {
	Enabled bool `json:"enabled"`
	Port    int  `json:"port"`
}

// CatalogConfig holds plugin discovery settings
type CatalogConfig struct {
	PluginDirs []string `json:"plugin_dirs"`
	CachePath  string   `json:"cache_path"`
	Watch      bool     `json:"watch"`
}

// PushConfig holds UI frame streaming settings
type PushConfig struct {
	FPS         int `json:"fps"`
	JPEGQuality int `json:"jpeg_quality"`
}

// Config represents application configuration
type Config struct {
	Socket            SocketConfig  `json:"socket"`
	Status            StatusConfig  `json:"status"`
	Catalog           CatalogConfig `json:"catalog"`
	Push              PushConfig    `json:"push"`
	DefaultSampleRate float64       `json:"default_sample_rate"`
	LogLevel          string        `json:"log_level"` // debug, info, warn, error, none
	LogPath           string        `json:"log_path,omitempty"`
}

// Default returns a configuration with all defaults applied.
func Default() *Config {
	return &Config{
		Socket: SocketConfig{
			Port:                    8765,
			MaxConnections:          32,
			HandshakeTimeoutSeconds: 5,
		},
		Status: StatusConfig{
			Enabled: true,
			Port:    8766,
		},
		Catalog: CatalogConfig{
			PluginDirs: defaultPluginDirs(),
			CachePath:  defaultCachePath(),
			Watch:      true,
		},
		Push: PushConfig{
			FPS:         30,
			JPEGQuality: 75,
		},
		DefaultSampleRate: 44100,
		LogLevel:          "info",
	}
}

// Load reads configuration from path, layering the file's values over the
// defaults. A missing file is not an error; the defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

// Save writes the configuration to path as indented JSON.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// applyDefaults fills zero values left by a partial config file.
func (c *Config) applyDefaults() {
	def := Default()

	if c.Socket.Port <= 0 {
		c.Socket.Port = def.Socket.Port
	}
	if c.Socket.MaxConnections <= 0 {
		c.Socket.MaxConnections = def.Socket.MaxConnections
	}
	if c.Socket.HandshakeTimeoutSeconds <= 0 {
		c.Socket.HandshakeTimeoutSeconds = def.Socket.HandshakeTimeoutSeconds
	}
	if c.Status.Port <= 0 {
		c.Status.Port = def.Status.Port
	}
	if len(c.Catalog.PluginDirs) == 0 {
		c.Catalog.PluginDirs = def.Catalog.PluginDirs
	}
	if c.Catalog.CachePath == "" {
		c.Catalog.CachePath = def.Catalog.CachePath
	}
	if c.Push.FPS <= 0 {
		c.Push.FPS = def.Push.FPS
	}
	if c.Push.JPEGQuality <= 0 || c.Push.JPEGQuality > 100 {
		c.Push.JPEGQuality = def.Push.JPEGQuality
	}
	if c.DefaultSampleRate <= 0 {
		c.DefaultSampleRate = def.DefaultSampleRate
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
}

func defaultPluginDirs() []string {
	switch runtime.GOOS {
	case "windows":
		return []string{
			`C:\Program Files\Common Files\Nova`,
			`C:\Program Files (x86)\Common Files\Nova`,
		}
	case "darwin":
		home, _ := os.UserHomeDir()
		return []string{
			"/Library/Audio/Plug-Ins/Nova",
			filepath.Join(home, "Library/Audio/Plug-Ins/Nova"),
		}
	default:
		home, _ := os.UserHomeDir()
		return []string{
			"/usr/lib/nova-plugins",
			filepath.Join(home, ".nova/plugins"),
		}
	}
}

func defaultCachePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".nova", "catalog.db")
}
