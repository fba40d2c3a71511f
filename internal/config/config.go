package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config represents the application configuration
type Config struct {
	Bridge  BridgeConfig  `json:"bridge"`
	User    UserConfig    `json:"user"`
	Display DisplayConfig `json:"display"`
}

// BridgeConfig holds the health bridge API endpoint and OAuth credentials
type BridgeConfig struct {
	BaseURL      string `json:"base_url"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

// UserConfig holds user-specific settings
type UserConfig struct {
	// Timezone is an IANA zone name, e.g. "Europe/Berlin". Empty means the
	// system local zone. Calendar day boundaries follow this zone.
	Timezone string `json:"timezone"`
}

// DisplayConfig holds display preferences
type DisplayConfig struct {
	// Output selects the default output mode: "summary" or "json"
	Output string `json:"output"`
}

// ErrNoConfig is returned when the config file doesn't exist
var ErrNoConfig = errors.New("config file not found")

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Bridge: BridgeConfig{
			BaseURL: "http://localhost:4170",
		},
		Display: DisplayConfig{
			Output: "summary",
		},
	}
}

// Load reads the configuration from ~/.pulse/config.json
func Load() (*Config, error) {
	path, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ErrNoConfig
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply defaults for missing values
	defaults := DefaultConfig()
	if cfg.Bridge.BaseURL == "" {
		cfg.Bridge.BaseURL = defaults.Bridge.BaseURL
	}
	if cfg.Display.Output == "" {
		cfg.Display.Output = defaults.Display.Output
	}

	return &cfg, nil
}

// Save writes the configuration to ~/.pulse/config.json
func Save(cfg *Config) error {
	path, err := getConfigPath()
	if err != nil {
		return err
	}

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// CreateExample creates an example config file if none exists
func CreateExample() error {
	path, err := getConfigPath()
	if err != nil {
		return err
	}

	// Check if config already exists
	if _, err := os.Stat(path); err == nil {
		return nil // Config exists, don't overwrite
	}

	example := Config{
		Bridge: BridgeConfig{
			BaseURL:      "http://localhost:4170",
			ClientID:     "YOUR_CLIENT_ID",
			ClientSecret: "YOUR_CLIENT_SECRET",
		},
		Display: DisplayConfig{
			Output: "summary",
		},
	}

	return Save(&example)
}

// Validate checks if the config has required fields
func (c *Config) Validate() error {
	if c.Bridge.ClientID == "" || c.Bridge.ClientID == "YOUR_CLIENT_ID" {
		return errors.New("bridge.client_id is required - register the app with your health bridge")
	}
	if c.Bridge.ClientSecret == "" || c.Bridge.ClientSecret == "YOUR_CLIENT_SECRET" {
		return errors.New("bridge.client_secret is required - register the app with your health bridge")
	}

	if c.User.Timezone != "" {
		if _, err := time.LoadLocation(c.User.Timezone); err != nil {
			return fmt.Errorf("user.timezone %q is not a valid IANA zone: %w", c.User.Timezone, err)
		}
	}

	if c.Display.Output != "" && c.Display.Output != "summary" && c.Display.Output != "json" {
		return fmt.Errorf("display.output must be \"summary\" or \"json\", got %q", c.Display.Output)
	}

	return nil
}

// Location resolves the configured timezone, falling back to the system zone.
func (c *Config) Location() (*time.Location, error) {
	if c.User.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.User.Timezone)
}

// getConfigPath returns the path to the config file
func getConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".pulse", "config.json"), nil
}

// GetConfigDir returns the path to the config directory
func GetConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".pulse"), nil
}
