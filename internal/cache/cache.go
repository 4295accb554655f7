package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	currentPriceKey    = "pricing:current"
	latestHealthKey    = "grid:health:latest"
	currentPriceExpiry = time.Hour
	latestHealthExpiry = 30 * time.Minute
)

// Cache holds hot copies of the latest pricing and health results so the
// admin surface does not hit Postgres on every lookup.
type Cache struct {
	client *redis.Client
}

func New(ctx context.Context, addr string) (*Cache, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return &Cache{client: client}, nil
}

func (c *Cache) Close() error {
	return c.client.Close()
}

func (c *Cache) SetCurrentPrice(ctx context.Context, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, currentPriceKey, data, currentPriceExpiry).Err()
}

func (c *Cache) GetCurrentPrice(ctx context.Context, out any) (bool, error) {
	data, err := c.client.Get(ctx, currentPriceKey).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(data, out)
}

func (c *Cache) SetLatestHealth(ctx context.Context, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, latestHealthKey, data, latestHealthExpiry).Err()
}

func (c *Cache) GetLatestHealth(ctx context.Context, out any) (bool, error) {
	data, err := c.client.Get(ctx, latestHealthKey).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(data, out)
}
