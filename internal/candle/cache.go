package candle

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	ttl             = 30 * time.Second
	redisKey        = "btcbot:candles"
	maxFailures     = 3
	recoveryBackoff = 30 * time.Second
)

// Cache holds the single global candle series for TTL seconds. When REDIS_ADDR
// is configured it is backed by Redis; otherwise (or when Redis degrades) it
// falls back to an in-process, mutex-guarded cache. Set always replaces the
// current entry: concurrent writers are not arbitrated, so the last Set wins.
type Cache struct {
	redisClient *redis.Client

	mu           sync.RWMutex
	healthy      bool
	failureCount int
	lastCheck    time.Time

	local       []Candle
	localSource string
	localAt     time.Time
}

// NewCache builds a cache. If redisAddr is empty the cache operates purely
// in-process.
func NewCache(redisAddr string) *Cache {
	c := &Cache{}
	if redisAddr == "" {
		return c
	}

	c.redisClient = redis.NewClient(&redis.Options{
		Addr:         redisAddr,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := c.redisClient.Ping(ctx).Err(); err != nil {
		slog.Warn("candle cache: redis unreachable at startup, running in-process", "addr", redisAddr, "err", err)
		c.healthy = false
		return c
	}
	c.healthy = true
	c.lastCheck = time.Now()
	slog.Info("candle cache: redis connected", "addr", redisAddr)
	return c
}

type cacheEntry struct {
	Candles []Candle `json:"candles"`
	Source  string   `json:"source"`
	At      int64    `json:"at"` // unix nanos
}

// Get returns the cached candles and source tag, and whether the entry is
// still fresh.
func (c *Cache) Get() ([]Candle, string, bool) {
	if c.redisClient != nil && c.isHealthy() {
		if candles, source, ok := c.getRedis(); ok {
			return candles, source, true
		}
	}
	return c.getLocal()
}

// Set populates the cache with a freshly fetched series.
func (c *Cache) Set(candles []Candle, source string) {
	if c.redisClient != nil && c.isHealthy() {
		if c.setRedis(candles, source) {
			return
		}
	}
	c.setLocal(candles, source)
}

func (c *Cache) getLocal() ([]Candle, string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if time.Since(c.localAt) > ttl || len(c.local) == 0 {
		return nil, "", false
	}
	return c.local, c.localSource, true
}

func (c *Cache) setLocal(candles []Candle, source string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.local = candles
	c.localSource = source
	c.localAt = time.Now()
}

func (c *Cache) getRedis() ([]Candle, string, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	raw, err := c.redisClient.Get(ctx, redisKey).Result()
	if err != nil {
		if err != redis.Nil {
			c.recordFailure()
		}
		return nil, "", false
	}
	c.recordSuccess()

	var entry cacheEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, "", false
	}
	return entry.Candles, entry.Source, true
}

func (c *Cache) setRedis(candles []Candle, source string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	entry := cacheEntry{Candles: candles, Source: source, At: time.Now().UnixNano()}
	data, err := json.Marshal(entry)
	if err != nil {
		return false
	}

	if err := c.redisClient.Set(ctx, redisKey, data, ttl).Err(); err != nil {
		c.recordFailure()
		return false
	}
	c.recordSuccess()
	return true
}

func (c *Cache) isHealthy() bool {
	c.mu.RLock()
	healthy := c.healthy
	sinceCheck := time.Since(c.lastCheck)
	c.mu.RUnlock()

	if healthy || sinceCheck < recoveryBackoff {
		return healthy
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.redisClient.Ping(ctx).Err(); err == nil {
		c.recordSuccess()
		return true
	}
	return false
}

func (c *Cache) recordFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failureCount++
	c.lastCheck = time.Now()
	if c.failureCount >= maxFailures && c.healthy {
		slog.Warn("candle cache: redis marked unhealthy, falling back to in-process cache", "failures", c.failureCount)
		c.healthy = false
	}
}

func (c *Cache) recordSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.healthy {
		slog.Info("candle cache: redis recovered")
	}
	c.healthy = true
	c.failureCount = 0
	c.lastCheck = time.Now()
}
