// Package cache holds the stores used to memoise raw catalog responses.
//
// Keys are catalog endpoints exactly as requested (path plus query, without
// credentials). Values are the undecoded response bodies.
package cache

import (
	"context"
	"fmt"

	"github.com/glefebvre/cinefinder/internal/config"
)

// Store memoises response bodies by key
type Store interface {
	// Get returns the cached value and whether it was present
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value under key
	Set(ctx context.Context, key string, value []byte) error
	// Clear drops every entry owned by the store
	Clear(ctx context.Context) error
	// Name identifies the backend in logs and metrics
	Name() string
}

// New builds the store selected by cfg.Cache.Backend. The returned close
// function releases backend connections and is never nil.
func New(ctx context.Context, cfg *config.Config) (Store, func() error, error) {
	switch cfg.Cache.Backend {
	case "", "memory":
		return NewMemory(), func() error { return nil }, nil
	case "redis":
		r, err := NewRedis(ctx, RedisOptions{
			Addr:      cfg.Cache.Redis.Addr,
			Password:  cfg.Cache.Redis.Password,
			DB:        cfg.Cache.Redis.DB,
			KeyPrefix: cfg.Cache.Redis.KeyPrefix,
			TTL:       cfg.CacheTTL(),
		})
		if err != nil {
			return nil, nil, err
		}
		return r, r.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}
