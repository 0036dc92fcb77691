package settings

import (
	"context"
	"log/slog"
	"sync"
)

// Cache holds the last configuration loaded from a Provider. A pass takes a
// snapshot with Current and passes it along explicitly; nothing reads the
// cache mid-pass.
type Cache struct {
	provider Provider
	defaults Configuration
	logger   *slog.Logger

	mu  sync.RWMutex
	cur Configuration
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithCacheLogger sets a custom logger.
func WithCacheLogger(l *slog.Logger) CacheOption {
	return func(c *Cache) { c.logger = l }
}

// WithDefaults overrides Defaults() as the merge base and fallback.
func WithDefaults(d Configuration) CacheOption {
	return func(c *Cache) { c.defaults = d.Clone() }
}

// NewCache creates a Cache seeded with the defaults. Call Refresh to load.
func NewCache(p Provider, opts ...CacheOption) *Cache {
	c := &Cache{
		provider: p,
		defaults: Defaults(),
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	c.cur = c.defaults.Clone()
	return c
}

// Refresh reloads the configuration. A failing or missing provider is not
// fatal: the cache falls back to the defaults and logs a warning.
func (c *Cache) Refresh(ctx context.Context) {
	next := c.defaults.Clone()
	if c.provider != nil {
		cfg, err := c.provider.Get(ctx, c.defaults.Clone())
		if err != nil {
			c.logger.Warn("settings: load failed, using defaults", "error", err)
		} else {
			next = cfg.Clone()
		}
	}

	c.mu.Lock()
	c.cur = next
	c.mu.Unlock()
}

// Current returns a copy of the cached configuration.
func (c *Cache) Current() Configuration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cur.Clone()
}
