// Package cache backs the query API's short-lived response cache. Listings
// are re-read far more often than the ingest loop changes them, so even a
// small TTL absorbs most of the read traffic.
package cache

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
)

type Store interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// New selects a backend by name. Anything unrecognized, or redis without an
// address, degrades to the in-process store rather than failing startup.
func New(backend, redisAddr, redisPassword string, redisDB int, log *zap.Logger) Store {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", "memory":
		return NewMemoryStore()
	case "redis":
		if strings.TrimSpace(redisAddr) == "" {
			if log != nil {
				log.Warn("cache.backend=redis without a redis address, using memory store")
			}
			return NewMemoryStore()
		}
		return NewRedisStore(redisAddr, redisPassword, redisDB)
	default:
		if log != nil {
			log.Warn("unknown cache backend, using memory store", zap.String("backend", backend))
		}
		return NewMemoryStore()
	}
}
