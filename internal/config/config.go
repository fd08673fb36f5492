// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/rigchat/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete rigchat configuration.
type Config struct {
	// General settings
	Version      string `toml:"version"`
	DefaultModel string `toml:"default_model"`

	// Server (backend) configuration
	Server ServerConfig `toml:"server"`

	// Chat behavior configuration
	Chat ChatConfig `toml:"chat"`

	// Storage configuration
	Storage StorageConfig `toml:"storage"`

	// UI configuration
	UI UIConfig `toml:"ui"`
}

// ServerConfig contains backend connection configuration.
type ServerConfig struct {
	// BaseURL is the backend API base URL
	BaseURL string `toml:"base_url"`
	// TokenFile is the path to the auth token file (empty = no auth)
	TokenFile string `toml:"token_file"`
	// RequestTimeoutSecs bounds one REST request (default: 30)
	RequestTimeoutSecs int `toml:"request_timeout_secs"`
	// ConnectTimeoutSecs bounds one stream connection attempt (default: 5)
	ConnectTimeoutSecs int `toml:"connect_timeout_secs"`
	// MaxConnectAttempts is the total stream open attempts per turn (default: 3)
	MaxConnectAttempts int `toml:"max_connect_attempts"`
	// RetryDelaySecs is the base backoff between attempts (default: 1)
	RetryDelaySecs int `toml:"retry_delay_secs"`
}

// ChatConfig contains per-turn defaults.
type ChatConfig struct {
	// WebSearch enables web search for new sessions
	WebSearch bool `toml:"web_search"`
}

// StorageConfig contains local persistence configuration.
type StorageConfig struct {
	// DataDir holds conversation transcripts and the thinking span
	// database (empty = ~/.rigchat/data)
	DataDir string `toml:"data_dir"`
}

// UIConfig contains terminal UI configuration.
type UIConfig struct {
	// Theme selects the color theme: "dark" or "light"
	Theme string `toml:"theme"`
	// ShowThinking renders thinking spans in the transcript
	ShowThinking bool `toml:"show_thinking"`
	// ShowTimestamps renders message timestamps
	ShowTimestamps bool `toml:"show_timestamps"`
}

// =============================================================================
// DEFAULTS AND PATHS
// =============================================================================

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Version:      "1",
		DefaultModel: "",
		Server: ServerConfig{
			// Explicit IPv4 address instead of localhost to avoid IPv6
			// resolution issues on Windows
			BaseURL:            "http://127.0.0.1:8000",
			RequestTimeoutSecs: 30,
			ConnectTimeoutSecs: 5,
			MaxConnectAttempts: 3,
			RetryDelaySecs:     1,
		},
		Chat: ChatConfig{
			WebSearch: false,
		},
		UI: UIConfig{
			Theme:          "dark",
			ShowThinking:   true,
			ShowTimestamps: false,
		},
	}
}

// ConfigDir returns the rigchat configuration directory (~/.rigchat).
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".rigchat"), nil
}

// ConfigPath returns the path to the TOML configuration file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ResolvedDataDir returns the effective data directory.
func (c *Config) ResolvedDataDir() (string, error) {
	if c.Storage.DataDir != "" {
		return c.Storage.DataDir, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "data"), nil
}

// =============================================================================
// DURATION ACCESSORS
// =============================================================================

// RequestTimeout returns the REST request timeout.
func (s ServerConfig) RequestTimeout() time.Duration {
	return time.Duration(s.RequestTimeoutSecs) * time.Second
}

// ConnectTimeout returns the per-attempt stream connect timeout.
func (s ServerConfig) ConnectTimeout() time.Duration {
	return time.Duration(s.ConnectTimeoutSecs) * time.Second
}

// RetryDelay returns the base backoff between connection attempts.
func (s ServerConfig) RetryDelay() time.Duration {
	return time.Duration(s.RetryDelaySecs) * time.Second
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads the configuration from the default path, falling back to the
// built-in defaults when no file exists. Environment variable overrides
// are applied last.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg = Default()
		} else {
			return nil, err
		}
	}

	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromPath reads the configuration from a specific TOML file. Missing
// fields keep their default values.
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration to the default path atomically.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the configuration to a specific path atomically.
func SaveTo(cfg *Config, path string) error {
	var sb strings.Builder
	if err := toml.NewEncoder(&sb).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	// Config may reference a token file path; keep it private.
	if err := util.AtomicWriteFile(path, []byte(sb.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError describes a single invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// Validate checks the configuration and clamps recoverable values.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Server.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ValidationError{Field: "server.base_url", Message: "must be an absolute http(s) URL"}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ValidationError{Field: "server.base_url", Message: "scheme must be http or https"}
	}

	if c.UI.Theme != "dark" && c.UI.Theme != "light" {
		return ValidationError{Field: "ui.theme", Message: "must be \"dark\" or \"light\""}
	}

	// Clamp rather than reject: a bad timeout should not brick the app.
	if c.Server.RequestTimeoutSecs <= 0 {
		c.Server.RequestTimeoutSecs = 30
	}
	if c.Server.ConnectTimeoutSecs <= 0 {
		c.Server.ConnectTimeoutSecs = 5
	}
	if c.Server.MaxConnectAttempts <= 0 {
		c.Server.MaxConnectAttempts = 3
	}
	if c.Server.RetryDelaySecs <= 0 {
		c.Server.RetryDelaySecs = 1
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides:
//   - RIGCHAT_MODEL: overrides default_model
//   - RIGCHAT_SERVER_URL: overrides server.base_url
//   - RIGCHAT_TOKEN_FILE: overrides server.token_file
//   - RIGCHAT_DATA_DIR: overrides storage.data_dir
//   - RIGCHAT_WEB_SEARCH: set to "1" or "true" to enable web search
func (c *Config) ApplyEnvOverrides() {
	if model := os.Getenv("RIGCHAT_MODEL"); model != "" {
		c.DefaultModel = model
	}
	if u := os.Getenv("RIGCHAT_SERVER_URL"); u != "" {
		c.Server.BaseURL = u
	}
	if f := os.Getenv("RIGCHAT_TOKEN_FILE"); f != "" {
		c.Server.TokenFile = f
	}
	if d := os.Getenv("RIGCHAT_DATA_DIR"); d != "" {
		c.Storage.DataDir = d
	}
	if ws := os.Getenv("RIGCHAT_WEB_SEARCH"); ws != "" {
		if v, err := strconv.ParseBool(ws); err == nil {
			c.Chat.WebSearch = v
		}
	}
}
