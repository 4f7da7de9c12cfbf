package config

import (
	"os"
	"time"
)

// Config holds runtime settings for the client.
type Config struct {
	BackendURL     string
	BackendAnonKey string
	// DatabaseDSN switches relational queries to a direct Postgres connection.
	DatabaseDSN string

	LocalDBPath         string
	OnlineCheckInterval time.Duration
	RequestTimeout      time.Duration

	StorageBucket        string
	StorageRegion        string
	StorageEndpoint      string
	StorageAccessKey     string
	StorageSecretKey     string
	StoragePublicBaseURL string

	LogLevel   string
	Demo       bool
	AppVersion string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.LocalDBPath = "templesanathan.db"
	c.OnlineCheckInterval = 5 * time.Second
	c.RequestTimeout = 15 * time.Second
	c.StorageBucket = "avatars"
	c.StorageRegion = "us-east-1"
	c.LogLevel = "info"
	c.AppVersion = "1.0.0"
}

// Configured reports whether a backend is reachable through some route.
func (c *Config) Configured() bool {
	return c.Demo || (c.BackendURL != "" && c.BackendAnonKey != "") || c.DatabaseDSN != ""
}

// StorageConfigured reports whether object storage credentials are present.
func (c *Config) StorageConfigured() bool {
	return c.StorageEndpoint != "" && c.StorageAccessKey != "" && c.StorageSecretKey != ""
}

// LoadConfig constructs a Config from defaults, JSON, environment and flags.
// It panics on malformed input, like a bad JSON file or flag value.
func LoadConfig() *Config {
	return loadFrom(os.Args[1:])
}

func loadFrom(args []string) *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg, args)
	parseEnv(cfg)
	parseFlags(cfg, args)
	return cfg
}
