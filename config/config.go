// Package config loads daemon settings from defaults, an optional TOML file
// and the GHOSTEDIT_CONFIG environment variable, in that order.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"ghostedit/types"

	"github.com/pelletier/go-toml/v2"
)

const (
	EnvJSON = "GHOSTEDIT_CONFIG"
	EnvFile = "GHOSTEDIT_CONFIG_FILE"

	FileName = "ghostedit.toml"
)

type Config struct {
	NsID                   int     `json:"ns_id" toml:"ns_id"`
	ProviderURL            string  `json:"provider_url" toml:"provider_url"`
	ProviderModel          string  `json:"provider_model" toml:"provider_model"`
	ProviderAPIKey         string  `json:"provider_api_key" toml:"provider_api_key"`
	ProviderTemperature    float64 `json:"provider_temperature" toml:"provider_temperature"`
	ProviderMaxTokens      int     `json:"provider_max_tokens" toml:"provider_max_tokens"`
	MaxContextTokens       int     `json:"max_context_tokens" toml:"max_context_tokens"`
	CompletionTimeout      int     `json:"completion_timeout" toml:"completion_timeout"` // in milliseconds
	IdleShutdown           int     `json:"idle_shutdown" toml:"idle_shutdown"`           // in milliseconds
	DebugImmediateShutdown bool    `json:"debug_immediate_shutdown" toml:"debug_immediate_shutdown"`
	LogLevel               string  `json:"log_level" toml:"log_level"` // trace, debug, info, warn, error
	CompressRequests       bool    `json:"compress_requests" toml:"compress_requests"`
	CustomInstructions     string  `json:"custom_instructions" toml:"custom_instructions"`
}

func Default() Config {
	return Config{
		ProviderURL:         "http://localhost:8000",
		ProviderModel:       "gpt-4o-mini",
		ProviderTemperature: 0,
		ProviderMaxTokens:   2048,
		MaxContextTokens:    4096,
		CompletionTimeout:   20000,
		IdleShutdown:        30000,
		LogLevel:            "info",
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch {
	case c.ProviderURL == "":
		return errors.New("provider_url must be set")
	case c.ProviderTemperature < 0 || c.ProviderTemperature > 2:
		return fmt.Errorf("provider_temperature %v outside [0, 2]", c.ProviderTemperature)
	case c.CompletionTimeout < 0:
		return fmt.Errorf("completion_timeout must not be negative, got %d", c.CompletionTimeout)
	case c.IdleShutdown < 0:
		return fmt.Errorf("idle_shutdown must not be negative, got %d", c.IdleShutdown)
	case c.ProviderMaxTokens < 0 || c.MaxContextTokens < 0:
		return errors.New("token limits must not be negative")
	}
	return nil
}

// Provider returns the settings the stream source needs.
func (c Config) Provider() *types.ProviderConfig {
	return &types.ProviderConfig{
		ProviderURL:         c.ProviderURL,
		APIKey:              c.ProviderAPIKey,
		ProviderModel:       c.ProviderModel,
		ProviderTemperature: c.ProviderTemperature,
		ProviderMaxTokens:   c.ProviderMaxTokens,
		MaxContextTokens:    c.MaxContextTokens,
		CompressRequests:    c.CompressRequests,
		CustomInstructions:  c.CustomInstructions,
	}
}

// FilePath returns the TOML file location: $GHOSTEDIT_CONFIG_FILE, or
// ghostedit.toml in dir.
func FilePath(dir string) string {
	if p := os.Getenv(EnvFile); p != "" {
		return p
	}
	return filepath.Join(dir, FileName)
}

// LoadFile overlays the TOML file at path onto c. A missing file is not an
// error.
func LoadFile(c *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

// LoadEnv overlays the JSON in $GHOSTEDIT_CONFIG onto c.
func LoadEnv(c *Config) error {
	raw := os.Getenv(EnvJSON)
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), c); err != nil {
		return fmt.Errorf("parsing %s: %w", EnvJSON, err)
	}
	return nil
}

// Load builds the effective configuration for a daemon whose config file
// lives in dir.
func Load(dir string) (Config, error) {
	return loadFrom(FilePath(dir))
}

func loadFrom(path string) (Config, error) {
	c := Default()
	if err := LoadFile(&c, path); err != nil {
		return c, err
	}
	if err := LoadEnv(&c); err != nil {
		return c, err
	}
	return c, c.Validate()
}
