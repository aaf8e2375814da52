package redis

import (
	"context"
	"encoding/json"
	"time"

	apperrors "video-rag-qa-api/pkg/errors"
	"video-rag-qa-api/pkg/logger"
)

const catalogKey = "video_qa:catalog"

// CatalogCache 视频目录缓存。目录随摄取批次变化，缓存用短 TTL 兜底，
// 摄取成功后由调用方主动失效。
type CatalogCache struct {
	client *Client
	ttl    time.Duration
}

// NewCatalogCache 创建目录缓存
func NewCatalogCache(client *Client, ttl time.Duration) *CatalogCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &CatalogCache{client: client, ttl: ttl}
}

// Get 读取缓存的目录映射（展示名 -> 视频 ID）。未命中返回 (nil, false, nil)。
func (c *CatalogCache) Get(ctx context.Context) (map[string]string, bool, error) {
	raw, err := c.client.Get(ctx, catalogKey)
	if err != nil {
		if IsNil(err) {
			return nil, false, nil
		}
		return nil, false, apperrors.Wrap(err, apperrors.CodeCacheError, "failed to read catalog cache")
	}

	var catalog map[string]string
	if err := json.Unmarshal([]byte(raw), &catalog); err != nil {
		// 缓存内容异常时按未命中处理，让上游回源重建
		logger.Warn(ctx, "corrupt catalog cache entry, treating as miss", "key", catalogKey)
		return nil, false, nil
	}
	return catalog, true, nil
}

// Put 写入目录缓存
func (c *CatalogCache) Put(ctx context.Context, catalog map[string]string) error {
	data, err := json.Marshal(catalog)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeCacheError, "failed to encode catalog")
	}
	if err := c.client.Set(ctx, catalogKey, data, c.ttl); err != nil {
		return apperrors.Wrap(err, apperrors.CodeCacheError, "failed to write catalog cache")
	}
	return nil
}

// Invalidate 失效目录缓存
func (c *CatalogCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, catalogKey); err != nil {
		return apperrors.Wrap(err, apperrors.CodeCacheError, "failed to invalidate catalog cache")
	}
	return nil
}
