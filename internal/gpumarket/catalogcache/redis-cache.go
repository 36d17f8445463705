package catalogcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"gpu-market/internal/common/clientprotocol"
)

const (
	offersKey = "gpumarket:offers"

	DefaultTTL = 10 * time.Second
)

// RedisCache keeps the mapped partner catalog for a short TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func New(ctx context.Context, url string, ttl time.Duration) (*RedisCache, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCache{
		client: client,
		ttl:    ttl,
	}, nil
}

// GetOffers returns ok=false on a cache miss.
func (c *RedisCache) GetOffers(ctx context.Context) ([]clientprotocol.Offer, bool, error) {
	raw, err := c.client.Get(ctx, offersKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read offers from cache: %w", err)
	}
	var offers []clientprotocol.Offer
	if err := json.Unmarshal(raw, &offers); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached offers: %w", err)
	}
	return offers, true, nil
}

func (c *RedisCache) SetOffers(ctx context.Context, offers []clientprotocol.Offer) error {
	raw, err := json.Marshal(offers)
	if err != nil {
		return fmt.Errorf("failed to encode offers: %w", err)
	}
	if err := c.client.Set(ctx, offersKey, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write offers to cache: %w", err)
	}
	return nil
}

func (c *RedisCache) Close() error {
	return c.client.Close() //nolint:wrapcheck // unnecessary
}
