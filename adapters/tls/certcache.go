// Package tls provides automatic TLS certificates for the shell.
package tls

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/inventorius/inventorius-web/ports"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/acme/autocert"
)

// DBCertCache implements autocert.Cache on top of a ports.CertCacheStore.
// Entries are kept in memory once read so repeated handshakes do not touch
// the database.
type DBCertCache struct {
	store  ports.CertCacheStore
	logger zerolog.Logger

	mu    sync.RWMutex
	cache map[string][]byte
}

// NewDBCertCache creates a database-backed certificate cache. A nil store
// keeps everything in memory only.
func NewDBCertCache(store ports.CertCacheStore, logger zerolog.Logger) *DBCertCache {
	return &DBCertCache{
		store:  store,
		logger: logger,
		cache:  make(map[string][]byte),
	}
}

// Get retrieves cached data. Implements autocert.Cache.
func (c *DBCertCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	data, ok := c.cache[key]
	c.mu.RUnlock()
	if ok {
		return data, nil
	}

	if c.store == nil {
		return nil, autocert.ErrCacheMiss
	}

	start := time.Now()
	data, err := c.store.GetCacheEntry(ctx, key)
	if errors.Is(err, ports.ErrCacheMiss) || (err == nil && len(data) == 0) {
		c.logger.Debug().Str("key", truncateKey(key)).Msg("acme cache miss")
		return nil, autocert.ErrCacheMiss
	}
	if err != nil {
		c.logger.Error().Err(err).Str("key", truncateKey(key)).Msg("acme cache read failed")
		return nil, fmt.Errorf("get acme cache entry: %w", err)
	}

	c.mu.Lock()
	c.cache[key] = data
	c.mu.Unlock()

	c.logger.Debug().
		Str("key", truncateKey(key)).
		Int("data_len", len(data)).
		Dur("duration", time.Since(start)).
		Msg("acme cache entry loaded")
	return data, nil
}

// Put stores data. Implements autocert.Cache.
func (c *DBCertCache) Put(ctx context.Context, key string, data []byte) error {
	if c.store != nil {
		if err := c.store.PutCacheEntry(ctx, key, data); err != nil {
			c.logger.Error().Err(err).Str("key", truncateKey(key)).Msg("acme cache write failed")
			return fmt.Errorf("put acme cache entry: %w", err)
		}
	}

	c.mu.Lock()
	c.cache[key] = data
	c.mu.Unlock()

	c.logger.Info().
		Str("key", truncateKey(key)).
		Bool("certificate", isCertificateKey(key)).
		Msg("acme cache entry stored")
	return nil
}

// Delete removes data. Implements autocert.Cache.
func (c *DBCertCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.cache, key)
	c.mu.Unlock()

	if c.store == nil {
		return nil
	}
	if err := c.store.DeleteCacheEntry(ctx, key); err != nil {
		return fmt.Errorf("delete acme cache entry: %w", err)
	}
	return nil
}

// ClearMemoryCache drops the in-memory layer.
func (c *DBCertCache) ClearMemoryCache() {
	c.mu.Lock()
	c.cache = make(map[string][]byte)
	c.mu.Unlock()
}

// isCertificateKey reports whether an autocert key names a certificate
// rather than the account key or an http-01 token.
func isCertificateKey(key string) bool {
	if strings.Contains(key, "acme_account") || strings.HasSuffix(key, "+token") {
		return false
	}
	return !strings.HasPrefix(key, "+")
}

// truncateKey shortens a key for logging.
func truncateKey(key string) string {
	if len(key) > 50 {
		return key[:47] + "..."
	}
	return key
}

var _ autocert.Cache = (*DBCertCache)(nil)
