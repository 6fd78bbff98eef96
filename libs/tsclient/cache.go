package tsclient

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// SpotCache holds the latest underlying price per symbol. It is
// write-mostly (the underlying poller updates it) and read by every parsed
// option quote to compute ATM/ITM/OTM classification and GEX inputs. When
// RedisURL is configured it's shared across a horizontally-scaled
// ingestion fleet; otherwise it falls back to an in-memory map guarded by
// a mutex.
type SpotCache struct {
	redis *redis.Client
	ttl   time.Duration

	mu    sync.RWMutex
	local map[string]float64
}

// NewSpotCache builds a cache backed by Redis when redisURL is non-empty,
// or an in-process map otherwise.
func NewSpotCache(redisURL string, ttl time.Duration) (*SpotCache, error) {
	c := &SpotCache{ttl: ttl, local: make(map[string]float64)}
	if redisURL == "" {
		return c, nil
	}

	client := redis.NewClient(&redis.Options{Addr: redisURL})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	c.redis = client
	return c, nil
}

// SetSpot records the latest underlying price for symbol.
func (c *SpotCache) SetSpot(ctx context.Context, symbol string, price float64) error {
	if c.redis == nil {
		c.mu.Lock()
		c.local[symbol] = price
		c.mu.Unlock()
		return nil
	}
	return c.redis.Set(ctx, spotKey(symbol), strconv.FormatFloat(price, 'f', -1, 64), c.ttl).Err()
}

// GetSpot returns the most recently cached underlying price for symbol.
func (c *SpotCache) GetSpot(ctx context.Context, symbol string) (float64, bool) {
	if c.redis == nil {
		c.mu.RLock()
		price, ok := c.local[symbol]
		c.mu.RUnlock()
		return price, ok
	}

	val, err := c.redis.Get(ctx, spotKey(symbol)).Result()
	if err != nil {
		return 0, false
	}
	price, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, false
	}
	return price, true
}

// Close releases the underlying Redis connection, if any.
func (c *SpotCache) Close() error {
	if c.redis == nil {
		return nil
	}
	return c.redis.Close()
}

func spotKey(symbol string) string { return "tsclient:spot:" + symbol }
