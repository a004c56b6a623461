package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound     = errors.New("key not found in cache")
	ErrInvalidValue = errors.New("invalid value for cache")
	ErrClosed       = errors.New("cache is closed")
)

// Cache is the response cache of the pipeline. Values are opaque JSON blobs
// keyed by string; a Get miss returns ErrNotFound (never a zero value).
type Cache interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	Get(ctx context.Context, key string, value interface{}) error

	Delete(ctx context.Context, key string) error

	// DeleteByPrefix removes every key under the given prefix. Used to
	// invalidate a user's cached recommendations when their résumé changes.
	DeleteByPrefix(ctx context.Context, prefix string) error

	Close() error
}

type Options struct {
	DefaultTTL time.Duration

	RedisAddr string

	RedisPassword string

	RedisDB int
}

func DefaultOptions() Options {
	return Options{
		DefaultTTL: 24 * time.Hour,
	}
}

// RecommendKey is the recommend-mode cache key: one entry per (user, page).
func RecommendKey(userID string, page int) string {
	return fmt.Sprintf("jobs:recommend:%s:%d", userID, page)
}

// RecommendPrefix covers every page cached for one user.
func RecommendPrefix(userID string) string {
	return fmt.Sprintf("jobs:recommend:%s:", userID)
}
