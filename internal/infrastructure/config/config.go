package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
	Network   NetworkConfig
}

// ServerConfig holds debug server configuration.
type ServerConfig struct {
	Port        string   `envconfig:"PORT" default:"8000"`
	Host        string   `envconfig:"HOST" default:"0.0.0.0"`
	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"*"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// NetworkConfig holds the limits applied to every computer's network access.
type NetworkConfig struct {
	HTTPEnabled       bool          `envconfig:"NETSANDBOX_HTTP_ENABLED" default:"true"`
	WebsocketEnabled  bool          `envconfig:"NETSANDBOX_WEBSOCKET_ENABLED" default:"true"`
	MaxRequests       int           `envconfig:"NETSANDBOX_MAX_REQUESTS" default:"16"`
	MaxWebsockets     int           `envconfig:"NETSANDBOX_MAX_WEBSOCKETS" default:"4"`
	UploadBandwidth   int64         `envconfig:"NETSANDBOX_UPLOAD_BANDWIDTH" default:"33554432"`
	DownloadBandwidth int64         `envconfig:"NETSANDBOX_DOWNLOAD_BANDWIDTH" default:"33554432"`
	UserAgent         string        `envconfig:"NETSANDBOX_USER_AGENT" default:"netsandbox/1.0"`
	RulesFile         string        `envconfig:"NETSANDBOX_RULES_FILE"`
	Workers           int           `envconfig:"NETSANDBOX_WORKERS" default:"4"`
	DialTimeout       time.Duration `envconfig:"NETSANDBOX_DIAL_TIMEOUT" default:"30s"`
	EventCapacity     int           `envconfig:"NETSANDBOX_EVENT_CAPACITY" default:"256"`
	Proxy             ProxyConfig
}

// ProxyConfig holds the SOCKS5 proxy used by rules with use_proxy set.
type ProxyConfig struct {
	Address  string `envconfig:"NETSANDBOX_PROXY_ADDR"`
	Username string `envconfig:"NETSANDBOX_PROXY_USER"`
	Password string `envconfig:"NETSANDBOX_PROXY_PASSWORD"`
}

// Validate checks that the network limits are usable.
func (n NetworkConfig) Validate() error {
	switch {
	case n.MaxRequests < 0:
		return fmt.Errorf("max requests must not be negative, got %d", n.MaxRequests)
	case n.MaxWebsockets < 0:
		return fmt.Errorf("max websockets must not be negative, got %d", n.MaxWebsockets)
	case n.UploadBandwidth < 0 || n.DownloadBandwidth < 0:
		return fmt.Errorf("bandwidth must not be negative")
	case n.Workers <= 0:
		return fmt.Errorf("workers must be positive, got %d", n.Workers)
	case n.EventCapacity <= 0:
		return fmt.Errorf("event capacity must be positive, got %d", n.EventCapacity)
	}
	return nil
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Network.Validate(); err != nil {
		return nil, fmt.Errorf("invalid network config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "8000",
			Host:        "0.0.0.0",
			CORSOrigins: []string{"*"},
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		Network: NetworkConfig{
			HTTPEnabled:       true,
			WebsocketEnabled:  true,
			MaxRequests:       16,
			MaxWebsockets:     4,
			UploadBandwidth:   32 << 20,
			DownloadBandwidth: 32 << 20,
			UserAgent:         "netsandbox/1.0",
			Workers:           4,
			DialTimeout:       30 * time.Second,
			EventCapacity:     256,
		},
	}
}
