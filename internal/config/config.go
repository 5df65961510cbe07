// Package config loads the narvik.json gateway configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "narvik.json"

	// DefaultPort is the default gateway port.
	DefaultPort = 3000

	// DefaultHost is the default gateway host.
	DefaultHost = "localhost"

	// DefaultAPIBaseURL is the default backend base URL.
	DefaultAPIBaseURL = "http://localhost:8000/api"
)

// Config is the complete narvik.json configuration.
type Config struct {
	// Server configures the gateway listener.
	Server ServerConfig `json:"server,omitempty"`

	// API configures the backend client.
	API APIConfig `json:"api,omitempty"`

	// Redis configures the optional persisted-session backend. Empty Addr
	// selects the in-memory store.
	Redis RedisConfig `json:"redis,omitempty"`

	// Presence configures the optional live presence feed. Empty URL
	// disables it.
	Presence PresenceConfig `json:"presence,omitempty"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host string `json:"host,omitempty"`
	Port int    `json:"port,omitempty"`
}

// APIConfig configures the backend client.
type APIConfig struct {
	// BaseURL is the backend root, e.g. "https://club.example.com/api".
	BaseURL string `json:"baseUrl,omitempty"`

	// Badger selects the secondary (kiosk) credential audience for this
	// process.
	Badger bool `json:"badger,omitempty"`
}

// RedisConfig configures the Redis persistence backend.
type RedisConfig struct {
	Addr     string `json:"addr,omitempty"`
	Password string `json:"password,omitempty"`
	DB       int    `json:"db,omitempty"`
}

// PresenceConfig configures the live presence feed.
type PresenceConfig struct {
	// URL is the ws:// or wss:// feed endpoint.
	URL string `json:"url,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Host: DefaultHost, Port: DefaultPort},
		API:    APIConfig{BaseURL: DefaultAPIBaseURL},
	}
}

// Load reads the configuration file, filling unset fields with defaults.
// A missing file is not an error; defaults apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if cfg.Server.Host == "" {
		cfg.Server.Host = DefaultHost
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultPort
	}
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = DefaultAPIBaseURL
	}
	return cfg, nil
}

// Addr returns the host:port the gateway listens on.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
