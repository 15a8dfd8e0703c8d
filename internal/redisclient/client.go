// Package redisclient provides the advisory read cache for variant stock
// and pincode delivery estimates. It is never authoritative: the intake
// transaction's conditional update is the only check-and-reserve that
// counts, and cache misses or errors always fall through to the store.
package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewClient creates a new Redis client. ttl bounds how stale a cached stock
// or delivery-days value may get.
func NewClient(addr, password string, db int, ttl time.Duration) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb, ttl: ttl}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func stockKey(variantID string) string {
	return fmt.Sprintf("stock:%s", variantID)
}

func deliveryKey(storeID, pincode string) string {
	return fmt.Sprintf("delivery:%s:%s", storeID, pincode)
}

// GetStock reads the cached stock for a variant; ok is false on a miss
func (c *Client) GetStock(ctx context.Context, variantID string) (int, bool, error) {
	stock, err := c.rdb.Get(ctx, stockKey(variantID)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return stock, true, nil
}

// SetStock caches a variant's stock level
func (c *Client) SetStock(ctx context.Context, variantID string, stock int) error {
	return c.rdb.Set(ctx, stockKey(variantID), stock, c.ttl).Err()
}

// InvalidateStock drops a variant's cached stock so the next read falls
// through to the store.
func (c *Client) InvalidateStock(ctx context.Context, variantID string) error {
	return c.rdb.Del(ctx, stockKey(variantID)).Err()
}

// GetDeliveryDays reads the cached delivery estimate for a pincode
func (c *Client) GetDeliveryDays(ctx context.Context, storeID, pincode string) (int, bool, error) {
	days, err := c.rdb.Get(ctx, deliveryKey(storeID, pincode)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return days, true, nil
}

// SetDeliveryDays caches a pincode's delivery estimate. Location groups
// change rarely, so these entries live ten times longer than stock.
func (c *Client) SetDeliveryDays(ctx context.Context, storeID, pincode string, days int) error {
	return c.rdb.Set(ctx, deliveryKey(storeID, pincode), days, 10*c.ttl).Err()
}
