package auth

import (
	"context"
	"sync"
	"time"

	"dispatch-monitor/sentinel/internal/config"
)

// KeyLookup resolves an API key to its operator principal ("" if unknown).
type KeyLookup interface {
	GetAPIKey(ctx context.Context, apiKey string) (string, error)
}

type cacheEntry struct {
	principal string
	expiresAt time.Time
}

// Authenticator validates operator API keys with a three-level lookup:
// static config keys, an in-memory cache, then the backing store.
type Authenticator struct {
	localCache sync.Map
	lookup     KeyLookup
	ttl        time.Duration
	staticKeys map[string]bool
}

func NewAuthenticator(cfg *config.Config, lookup KeyLookup) *Authenticator {
	staticKeys := make(map[string]bool, len(cfg.ValidAPIKeys))
	for _, k := range cfg.ValidAPIKeys {
		if k != "" {
			staticKeys[k] = true
		}
	}

	return &Authenticator{
		lookup:     lookup,
		ttl:        time.Duration(cfg.AuthCacheTTLSeconds) * time.Second,
		staticKeys: staticKeys,
	}
}

func (a *Authenticator) Validate(ctx context.Context, apiKey string) bool {
	// Level 0: static config keys
	if a.staticKeys[apiKey] {
		return true
	}

	// Level 1: in-memory cache
	if raw, ok := a.localCache.Load(apiKey); ok {
		entry := raw.(cacheEntry)
		if time.Now().Before(entry.expiresAt) {
			return true
		}
		a.localCache.Delete(apiKey)
	}

	// Level 2: backing store lookup
	if a.lookup == nil {
		return false
	}
	principal, err := a.lookup.GetAPIKey(ctx, apiKey)
	if err != nil || principal == "" {
		return false
	}

	a.localCache.Store(apiKey, cacheEntry{
		principal: principal,
		expiresAt: time.Now().Add(a.ttl),
	})

	return true
}
