package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"KabuSentinel/internal/metrics"
	"KabuSentinel/internal/model"
)

// RedisConfig configures the optional redis bar cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient connects to redis and pings it. It returns nil (and no error)
// when no address is configured, so callers fall back to the memory cache.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}

type memEntry struct {
	bars    []model.OHLCV
	expires time.Time
}

// CachedFetcher wraps a Fetcher and caches bar series in redis, or in process
// memory when redis is unavailable. Current prices are never cached.
type CachedFetcher struct {
	next    Fetcher
	rdb     *redis.Client
	ttl     time.Duration
	metrics *metrics.Metrics

	mu  sync.Mutex
	mem map[string]memEntry
	now func() time.Time
}

// NewCachedFetcher creates a caching wrapper. rdb may be nil.
func NewCachedFetcher(next Fetcher, rdb *redis.Client, ttl time.Duration, m *metrics.Metrics) *CachedFetcher {
	return &CachedFetcher{
		next:    next,
		rdb:     rdb,
		ttl:     ttl,
		metrics: m,
		mem:     make(map[string]memEntry),
		now:     time.Now,
	}
}

func (c *CachedFetcher) Name() string { return c.next.Name() + "+cache" }

func cacheKey(code string, interval model.Interval, count int) string {
	return fmt.Sprintf("kabu:bars:%s:%s:%d", code, interval, count)
}

func (c *CachedFetcher) FetchDailyBars(ctx context.Context, code string, days int) ([]model.OHLCV, error) {
	return c.cached(ctx, cacheKey(code, model.IntervalDaily, days), func() ([]model.OHLCV, error) {
		return c.next.FetchDailyBars(ctx, code, days)
	})
}

func (c *CachedFetcher) FetchWeeklyBars(ctx context.Context, code string, weeks int) ([]model.OHLCV, error) {
	return c.cached(ctx, cacheKey(code, model.IntervalWeekly, weeks), func() ([]model.OHLCV, error) {
		return c.next.FetchWeeklyBars(ctx, code, weeks)
	})
}

func (c *CachedFetcher) FetchCurrentPrice(ctx context.Context, code string) (float64, error) {
	return c.next.FetchCurrentPrice(ctx, code)
}

// FetchName delegates to the wrapped fetcher when it can resolve names.
func (c *CachedFetcher) FetchName(ctx context.Context, code string) (string, error) {
	if namer, ok := c.next.(Namer); ok {
		return namer.FetchName(ctx, code)
	}
	return "", fmt.Errorf("%s: names not supported", c.next.Name())
}

func (c *CachedFetcher) cached(ctx context.Context, key string, load func() ([]model.OHLCV, error)) ([]model.OHLCV, error) {
	if bars, ok := c.get(ctx, key); ok {
		return bars, nil
	}
	bars, err := load()
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, bars)
	return bars, nil
}

func (c *CachedFetcher) get(ctx context.Context, key string) ([]model.OHLCV, bool) {
	if c.rdb != nil {
		data, err := c.rdb.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			var bars []model.OHLCV
			if err := json.Unmarshal(data, &bars); err == nil {
				c.metrics.CacheHit("redis")
				return bars, true
			}
			zap.L().Warn("corrupt cache entry", zap.String("key", key))
		case err != redis.Nil:
			zap.L().Warn("redis get failed, using memory cache", zap.String("key", key), zap.Error(err))
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.mem[key]
	if !ok {
		return nil, false
	}
	if c.now().After(e.expires) {
		delete(c.mem, key)
		return nil, false
	}
	c.metrics.CacheHit("memory")
	return slices.Clone(e.bars), true
}

func (c *CachedFetcher) set(ctx context.Context, key string, bars []model.OHLCV) {
	if c.rdb != nil {
		data, err := json.Marshal(bars)
		if err == nil {
			err = c.rdb.Set(ctx, key, data, c.ttl).Err()
		}
		if err == nil {
			return
		}
		zap.L().Warn("redis set failed, using memory cache", zap.String("key", key), zap.Error(err))
	}

	c.mu.Lock()
	c.mem[key] = memEntry{bars: slices.Clone(bars), expires: c.now().Add(c.ttl)}
	c.mu.Unlock()
}
