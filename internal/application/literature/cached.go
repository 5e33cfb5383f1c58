package literature

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Cache 文献结果缓存（由 Redis 实现）
type Cache interface {
	GetOrLoadSafe(ctx context.Context, key string, ttl time.Duration, loader func() (any, error)) ([]byte, error)
}

// CachedSource 对单个源做 read-through 缓存
type CachedSource struct {
	inner Source
	cache Cache
	ttl   time.Duration
}

// NewCachedSource 包装文献源
func NewCachedSource(inner Source, cache Cache, ttl time.Duration) *CachedSource {
	return &CachedSource{inner: inner, cache: cache, ttl: ttl}
}

func (c *CachedSource) Name() string {
	return c.inner.Name()
}

func (c *CachedSource) Search(ctx context.Context, q Query) ([]Paper, error) {
	b, err := c.cache.GetOrLoadSafe(ctx, cacheKey(c.inner.Name(), q), c.ttl, func() (any, error) {
		return c.inner.Search(ctx, q)
	})
	if err != nil {
		return nil, err
	}
	var papers []Paper
	if err := json.Unmarshal(b, &papers); err != nil {
		return nil, fmt.Errorf("failed to decode cached papers: %w", err)
	}
	return papers, nil
}

func cacheKey(source string, q Query) string {
	sum := sha1.Sum([]byte(strings.ToLower(strings.TrimSpace(q.Topic))))
	return fmt.Sprintf("%s:%d:%s", source, q.Limit, hex.EncodeToString(sum[:]))
}
