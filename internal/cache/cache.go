// Package cache holds charge listings per user and direction.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/punchamoorthee/chargeops/internal/domain"
	"github.com/redis/go-redis/v9"
)

type Direction string

const (
	Sent     Direction = "sent"
	Received Direction = "received"
)

// ChargeCache is a read-through cache for charge listings. A miss is
// reported with ok=false and a nil error.
type ChargeCache interface {
	Get(ctx context.Context, dir Direction, userID int64, status domain.ChargeStatus) (charges []domain.Charge, ok bool, err error)
	Put(ctx context.Context, dir Direction, userID int64, status domain.ChargeStatus, charges []domain.Charge) error
	// Invalidate drops every cached listing of the given users.
	Invalidate(ctx context.Context, userIDs ...int64) error
}

// RedisChargeCache stores one hash per (direction, user). Hash fields are
// the status filter, "ALL" for an unfiltered listing.
type RedisChargeCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisChargeCache(client redis.UniversalClient, ttl time.Duration) *RedisChargeCache {
	return &RedisChargeCache{client: client, ttl: ttl}
}

func key(dir Direction, userID int64) string {
	return fmt.Sprintf("charges:%s:%d", dir, userID)
}

func field(status domain.ChargeStatus) string {
	if status == "" {
		return "ALL"
	}
	return string(status)
}

func (c *RedisChargeCache) Get(ctx context.Context, dir Direction, userID int64, status domain.ChargeStatus) ([]domain.Charge, bool, error) {
	raw, err := c.client.HGet(ctx, key(dir, userID), field(status)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var charges []domain.Charge
	if err := json.Unmarshal(raw, &charges); err != nil {
		return nil, false, fmt.Errorf("decode cached charges: %w", err)
	}
	return charges, true, nil
}

func (c *RedisChargeCache) Put(ctx context.Context, dir Direction, userID int64, status domain.ChargeStatus, charges []domain.Charge) error {
	raw, err := json.Marshal(charges)
	if err != nil {
		return err
	}
	k := key(dir, userID)
	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, k, field(status), raw)
	if c.ttl > 0 {
		pipe.Expire(ctx, k, c.ttl)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (c *RedisChargeCache) Invalidate(ctx context.Context, userIDs ...int64) error {
	if len(userIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, 2*len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, key(Sent, id), key(Received, id))
	}
	return c.client.Del(ctx, keys...).Err()
}

// Nop never hits. Used when no redis address is configured.
type Nop struct{}

func (Nop) Get(context.Context, Direction, int64, domain.ChargeStatus) ([]domain.Charge, bool, error) {
	return nil, false, nil
}

func (Nop) Put(context.Context, Direction, int64, domain.ChargeStatus, []domain.Charge) error {
	return nil
}

func (Nop) Invalidate(context.Context, ...int64) error { return nil }
