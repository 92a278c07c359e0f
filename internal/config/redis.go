package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	// EnvRedisEnabled overrides whether Redis is used for session state.
	EnvRedisEnabled = "REDIS_ENABLED"

	// EnvRedisHost overrides the Redis host.
	EnvRedisHost = "REDIS_HOST"

	// EnvRedisPort overrides the Redis port.
	EnvRedisPort = "REDIS_PORT"

	// EnvRedisPassword overrides the Redis password.
	EnvRedisPassword = "REDIS_PASSWORD"

	// EnvRedisDB overrides the Redis database index.
	EnvRedisDB = "REDIS_DB"
)

// RedisConfig contains Redis connection configuration for the session
// store. When disabled, sessions fall back to the in-memory store.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Host       string `toml:"host"`
	Port       int    `toml:"port"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	SessionTTL string `toml:"session_ttl"`
}

// Addr returns the host:port Redis address.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SessionTTLDuration parses and returns the session TTL as a time.Duration.
func (c *RedisConfig) SessionTTLDuration() time.Duration {
	d, _ := time.ParseDuration(c.SessionTTL)
	return d
}

// Finalize applies defaults, loads environment overrides, and validates the Redis configuration.
func (c *RedisConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge applies values from overlay configuration, including the enabled flag.
func (c *RedisConfig) Merge(overlay *RedisConfig) {
	c.Enabled = overlay.Enabled

	if overlay.Host != "" {
		c.Host = overlay.Host
	}
	if overlay.Port != 0 {
		c.Port = overlay.Port
	}
	if overlay.Password != "" {
		c.Password = overlay.Password
	}
	if overlay.DB != 0 {
		c.DB = overlay.DB
	}
	if overlay.SessionTTL != "" {
		c.SessionTTL = overlay.SessionTTL
	}
}

func (c *RedisConfig) loadDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6379
	}
	if c.SessionTTL == "" {
		c.SessionTTL = "24h"
	}
}

func (c *RedisConfig) loadEnv() {
	if v := os.Getenv(EnvRedisEnabled); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			c.Enabled = enabled
		}
	}
	if v := os.Getenv(EnvRedisHost); v != "" {
		c.Host = v
	}
	if v := os.Getenv(EnvRedisPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		}
	}
	if v := os.Getenv(EnvRedisPassword); v != "" {
		c.Password = v
	}
	if v := os.Getenv(EnvRedisDB); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.DB = db
		}
	}
}

func (c *RedisConfig) validate() error {
	if _, err := time.ParseDuration(c.SessionTTL); err != nil {
		return fmt.Errorf("invalid session_ttl: %w", err)
	}
	return nil
}
