package redis

import "time"

// Config holds Redis connection and behavior settings
type Config struct {
	// URL is the Redis connection URL (e.g., redis://localhost:6379)
	URL string

	// Pool settings
	PoolSize     int
	MinIdleConns int

	// GuestUserTTL expires guest accounts; registered users never expire
	GuestUserTTL time.Duration

	// MaxWatchRetries bounds optimistic-lock retries on conditional session updates
	MaxWatchRetries int
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		URL:             "redis://localhost:6379",
		PoolSize:        10,
		MinIdleConns:    2,
		GuestUserTTL:    7 * 24 * time.Hour,
		MaxWatchRetries: 5,
	}
}
