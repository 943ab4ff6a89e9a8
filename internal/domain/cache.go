package domain

import (
	"context"
	"time"
)

// Cache caches computed recommendation lists keyed by profile
// fingerprint, and provides windowed counters for request limiting.
// The catalog is immutable per process, so cached entries never need
// invalidation beyond their TTL.
type Cache interface {
	// Get retrieves a value from cache.
	// Returns nil, nil if key not found.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, key string) error

	// GetRecommendations retrieves a cached recommendation list by
	// profile fingerprint. Returns nil, nil on miss.
	GetRecommendations(ctx context.Context, fingerprint string) ([]Recommendation, error)

	// SetRecommendations caches a recommendation list by profile fingerprint.
	SetRecommendations(ctx context.Context, fingerprint string, recs []Recommendation, ttl time.Duration) error

	// IncrementCounter atomically increments a fixed-window counter and
	// returns the new value. Used for per-client request limiting.
	IncrementCounter(ctx context.Context, key string, window time.Duration) (int64, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string

	// Local LRU cache settings
	LocalMaxSize int
	LocalTTL     time.Duration

	// Redis settings
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Two-phase settings
	EnableTwoPhase bool // If true, check local first, then Redis
}
