// Package config loads the engine configuration: defaults, then an
// optional TOML file, then environment overrides for the Redis bridge.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config holds the debugger engine configuration.
type Config struct {
	// Listen is the HTTP listen address of the debugger server.
	Listen string `toml:"listen"`
	// Path is the WebSocket endpoint path.
	Path string `toml:"path"`
	// Subprotocol is the WebSocket subprotocol clients must offer.
	Subprotocol string `toml:"subprotocol"`

	// PollIntervalMS paces broadcaster polling on idle connections.
	PollIntervalMS int `toml:"poll_interval_ms"`
	// WriteTimeoutSec bounds a single outbound frame write.
	WriteTimeoutSec int `toml:"write_timeout_seconds"`
	// CloseGraceSec bounds the wait for a close handshake to finish.
	CloseGraceSec   int `toml:"close_grace_seconds"`
	ReadBufferSize  int `toml:"read_buffer_size"`
	WriteBufferSize int `toml:"write_buffer_size"`

	// LogTailDepth bounds per-connection log buffering.
	LogTailDepth int `toml:"log_tail_depth"`

	Redis Redis `toml:"redis"`
}

// Redis holds the bridge connection settings.
type Redis struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Prefix   string `toml:"prefix"`
}

// Default returns the configuration used when no file or overrides are
// present.
func Default() *Config {
	return &Config{
		Listen:          ":45333",
		Path:            "/debugger",
		Subprotocol:     "debugger.emucore.org",
		PollIntervalMS:  16,
		WriteTimeoutSec: 10,
		CloseGraceSec:   5,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		LogTailDepth:    128,
		Redis: Redis{
			Addr:   "localhost:6379",
			Prefix: "debugsock:",
		},
	}
}

// Load reads the configuration from a TOML file, starting from the
// defaults. A missing file is not an error; the defaults apply.
// Environment variables override the Redis settings either way.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnv()
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overrides the Redis settings from the environment, so
// deployments can point one binary at different brokers.
func (c *Config) applyEnv() {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		c.Redis.Addr = addr
	}
	if pw := os.Getenv("REDIS_PASSWORD"); pw != "" {
		c.Redis.Password = pw
	}
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		if db, err := strconv.Atoi(dbStr); err == nil {
			c.Redis.DB = db
		}
	}
	if prefix := os.Getenv("REDIS_PREFIX"); prefix != "" {
		c.Redis.Prefix = prefix
	}
}

// PollInterval returns the broadcaster poll pace.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// WriteTimeout returns the bound on one outbound frame write.
func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutSec) * time.Second
}

// CloseGrace returns the wait allowed for a close handshake.
func (c *Config) CloseGrace() time.Duration {
	return time.Duration(c.CloseGraceSec) * time.Second
}
