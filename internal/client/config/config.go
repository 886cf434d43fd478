package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Config holds runtime settings for the CLI.
type Config struct {
	// ServerURL is the base URL of the HTTP API, e.g. "http://127.0.0.1:8000".
	ServerURL string
	// RequestTimeout bounds a single API call.
	RequestTimeout time.Duration
	// OnlineCheckInterval is how often the client polls /healthz.
	OnlineCheckInterval time.Duration
	// DownloadDir is where barcode images land when no path is given.
	DownloadDir string
}

func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8000"
	c.RequestTimeout = 10 * time.Second
	c.OnlineCheckInterval = 3 * time.Second
	c.DownloadDir = "."
}

func (c *Config) Validate() error {
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return fmt.Errorf("server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server url: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("server url: missing host")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("request timeout must be positive")
	}
	if c.OnlineCheckInterval <= 0 {
		return errors.New("online check interval must be positive")
	}
	return nil
}

// LoadConfig builds a Config from defaults, the JSON file named by
// -c/-config and command-line flags. Later sources win.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseJson(cfg); err != nil {
		return nil, fmt.Errorf("json config: %w", err)
	}
	if err := parseFlags(cfg); err != nil {
		return nil, fmt.Errorf("flags: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
