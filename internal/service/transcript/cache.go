package transcript

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	redisclient "omnisum/internal/redis"
)

const cacheKeyPrefix = "transcript:"

// Cache is the subset of the redis wrapper the decorator needs.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// CachedFetcher serves transcripts from redis and falls back to the wrapped
// fetcher on a miss. Cache failures never fail the request.
type CachedFetcher struct {
	next   Fetcher
	cache  Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedFetcher returns next unchanged when cache is nil or ttl is not positive.
func NewCachedFetcher(next Fetcher, cache *redisclient.Client, ttl time.Duration, logger *zap.Logger) Fetcher {
	if cache == nil || ttl <= 0 {
		return next
	}
	return newCachedFetcher(next, cache, ttl, logger)
}

func newCachedFetcher(next Fetcher, cache Cache, ttl time.Duration, logger *zap.Logger) *CachedFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedFetcher{next: next, cache: cache, ttl: ttl, logger: logger}
}

func (c *CachedFetcher) Fetch(ctx context.Context, videoID string) ([]Fragment, error) {
	key := cacheKeyPrefix + videoID
	raw, err := c.cache.Get(ctx, key)
	switch {
	case err == nil:
		var fragments []Fragment
		if jsonErr := json.Unmarshal([]byte(raw), &fragments); jsonErr == nil {
			c.logger.Debug("transcript cache hit", zap.String("video_id", videoID))
			return fragments, nil
		}
		c.logger.Warn("discard corrupt transcript cache entry", zap.String("key", key))
	case errors.Is(err, redisclient.ErrCacheMiss):
	default:
		c.logger.Warn("transcript cache read", zap.String("key", key), zap.Error(err))
	}

	fragments, err := c.next.Fetch(ctx, videoID)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(fragments)
	if err != nil {
		return fragments, nil
	}
	if err := c.cache.Set(ctx, key, payload, c.ttl); err != nil {
		c.logger.Warn("transcript cache write", zap.String("key", key), zap.Error(err))
	}
	return fragments, nil
}
