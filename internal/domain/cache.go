package domain

import (
	"context"
	"time"
)

// Cache defines the interface for caching operations.
// Supports two-phase caching: local LRU (Community) + Redis (Pro).
// All methods require orgID for strict multi-tenancy isolation.
type Cache interface {
	// Get retrieves a value from cache.
	// Returns nil, nil if key not found.
	Get(ctx context.Context, orgID string, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, orgID string, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, orgID string, key string) error

	// GetHistory retrieves the cached transaction history snapshot for an org.
	GetHistory(ctx context.Context, orgID string) ([]Transaction, error)

	// SetHistory caches an org's transaction history snapshot for check handling.
	SetHistory(ctx context.Context, orgID string, history []Transaction, ttl time.Duration) error

	// InvalidateHistory drops the cached history after new transactions land.
	InvalidateHistory(ctx context.Context, orgID string) error

	// IncrementCounter atomically increments a counter and returns new value.
	// Used for per-org request rate limiting.
	IncrementCounter(ctx context.Context, orgID string, key string, window time.Duration) (int64, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string

	// Local LRU cache settings (Community tier)
	LocalMaxSize int
	LocalTTL     time.Duration

	// Redis settings (Pro tier)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Two-phase settings
	EnableTwoPhase bool // If true, check local first, then Redis
}
