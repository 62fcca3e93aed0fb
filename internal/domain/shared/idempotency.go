package shared

import (
	"context"
	"time"
)

// IdempotentResponse is the stored outcome of a request carrying an idempotency key
type IdempotentResponse struct {
	// Pending is true while the first request holding the key is still running
	Pending    bool   `json:"pending"`
	StatusCode int    `json:"status_code"`
	Body       []byte `json:"body"`
	// Fingerprint is a digest of the first request body. A retry whose body
	// differs is rejected instead of replayed.
	Fingerprint string `json:"fingerprint,omitempty"`
}

// IdempotencyStore remembers idempotency keys so that a retried mutation
// returns the first outcome instead of running twice
type IdempotencyStore interface {
	// Reserve claims a key with a TTL.
	// Returns true if the key was newly claimed, false if it already exists
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Complete records the response for a reserved key
	Complete(ctx context.Context, key string, resp IdempotentResponse, ttl time.Duration) error

	// Lookup returns the stored response for a key, if any
	Lookup(ctx context.Context, key string) (*IdempotentResponse, error)

	// Release drops a reservation so the request can be retried
	Release(ctx context.Context, key string) error

	// Close closes the store and releases resources
	Close() error
}

// IdempotencyConfig holds configuration for idempotency handling
type IdempotencyConfig struct {
	// TTL is how long a key and its response are remembered
	// Default: 24 hours
	TTL time.Duration

	// Enabled determines whether idempotency checking is enabled
	// Default: true
	Enabled bool
}

// DefaultIdempotencyConfig returns the default idempotency configuration
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     24 * time.Hour,
		Enabled: true,
	}
}
