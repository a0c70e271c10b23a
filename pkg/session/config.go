package session

import "time"

// Config holds session store configuration from YAML.
type Config struct {
	// TTL is the maximum idle duration before a session becomes eligible
	// for removal by Cleanup.
	// Default: 24h
	TTL time.Duration `yaml:"ttl"`

	// MaxExchanges bounds the number of exchanges kept per session.
	// Default: 50
	MaxExchanges int `yaml:"max_exchanges"`

	// CleanupSchedule is a cron spec for the background sweeper
	// (e.g. "@every 1h"). Empty disables periodic cleanup.
	CleanupSchedule string `yaml:"cleanup_schedule"`
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{
		TTL:             24 * time.Hour,
		MaxExchanges:    50,
		CleanupSchedule: "@every 1h",
	}
}
