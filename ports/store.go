package ports

import (
	"context"
	"time"
)

// Store is the short-lived key/value cache holding one-time codes, captcha
// solutions and revoked token identifiers. Missing or expired keys yield
// core.ErrNotFound.
type Store interface {
	// Set stores value under key, overwriting any previous entry
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Get retrieves a value by key
	Get(ctx context.Context, key string) (string, error)

	// Delete removes a key; deleting a missing key is not an error
	Delete(ctx context.Context, key string) error

	// Take atomically retrieves and removes a key. At most one concurrent
	// caller observes the value.
	Take(ctx context.Context, key string) (string, error)

	// Incr atomically increments the counter under key and returns the new
	// value. A new counter starts at 1 and expires after ttl; incrementing
	// keeps the original expiry.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}
