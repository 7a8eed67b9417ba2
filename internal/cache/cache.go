// Package cache provides caching for rendered PNGs and cell-query results.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/allegro/bigcache/v3"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Config contains cache configuration.
type Config struct {
	RenderCacheSizeMB int
	RenderTTL         time.Duration
	QueryCacheSize    int
}

// Manager manages the render and query caches.
type Manager struct {
	renderCache *bigcache.BigCache
	queryCache  *lru.Cache[string, []byte]
}

// NewManager creates a new cache manager.
func NewManager(cfg Config) (*Manager, error) {
	renderCacheConfig := bigcache.Config{
		Shards:             256,
		LifeWindow:         cfg.RenderTTL,
		CleanWindow:        cfg.RenderTTL / 2,
		MaxEntriesInWindow: 10000,
		MaxEntrySize:       4 * 1024 * 1024, // full-frame PNGs
		HardMaxCacheSize:   cfg.RenderCacheSizeMB,
		Verbose:            false,
	}

	renderCache, err := bigcache.New(context.Background(), renderCacheConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create render cache: %w", err)
	}

	queryCache, err := lru.New[string, []byte](cfg.QueryCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create query cache: %w", err)
	}

	return &Manager{
		renderCache: renderCache,
		queryCache:  queryCache,
	}, nil
}

// GetRender retrieves a rendered PNG from cache.
func (m *Manager) GetRender(key string) ([]byte, bool) {
	data, err := m.renderCache.Get(key)
	if err != nil {
		return nil, false
	}
	return data, true
}

// SetRender stores a rendered PNG in cache.
func (m *Manager) SetRender(key string, data []byte) error {
	return m.renderCache.Set(key, data)
}

// GetQuery retrieves a query result from cache.
func (m *Manager) GetQuery(key string) ([]byte, bool) {
	return m.queryCache.Get(key)
}

// SetQuery stores a query result in cache.
func (m *Manager) SetQuery(key string, data []byte) {
	m.queryCache.Add(key, data)
}

// RenderKey generates a cache key for a rendered view. rev identifies the
// dataset revision so mutations invalidate naturally.
func RenderKey(kind string, rev int, extra string) string {
	if extra == "" {
		return fmt.Sprintf("render:%s:r%d", kind, rev)
	}
	return fmt.Sprintf("render:%s:r%d:%s", kind, rev, extra)
}

// QueryKey generates a cache key for a cell query.
func QueryKey(kind string, rev int, key string) string {
	return fmt.Sprintf("query:%s:r%d:%s", kind, rev, key)
}

// Stats returns cache statistics.
func (m *Manager) Stats() map[string]interface{} {
	return map[string]interface{}{
		"render_cache_len": m.renderCache.Len(),
		"render_cache_cap": m.renderCache.Capacity(),
		"query_cache_len":  m.queryCache.Len(),
	}
}

// Close closes the cache manager.
func (m *Manager) Close() error {
	return m.renderCache.Close()
}
