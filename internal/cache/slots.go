// Package cache holds the redis-backed read-side cache for availability
// browsing. Booking never goes through here; the store transaction is
// the source of truth and every slot mutation drops the cached listing.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"mediq/backend/internal/domain"
)

type SlotCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *slog.Logger
}

func NewSlotCache(client *redis.Client, ttl time.Duration, log *slog.Logger) *SlotCache {
	if log == nil {
		log = slog.Default()
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &SlotCache{
		client: client,
		ttl:    ttl,
		log:    log.With(slog.String("component", "cache.slots")),
	}
}

func openSlotsKey(doctorID string) string {
	return "slots:open:" + doctorID
}

func (c *SlotCache) GetOpenSlots(ctx context.Context, doctorID string) ([]domain.Slot, bool) {
	raw, err := c.client.Get(ctx, openSlotsKey(doctorID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("cache read failed", slog.String("doctor_id", doctorID), slog.Any("err", err))
		}
		return nil, false
	}

	var slots []domain.Slot
	if err := json.Unmarshal(raw, &slots); err != nil {
		c.log.Warn("cache entry malformed, dropping", slog.String("doctor_id", doctorID), slog.Any("err", err))
		c.Invalidate(ctx, doctorID)
		return nil, false
	}
	return slots, true
}

func (c *SlotCache) SetOpenSlots(ctx context.Context, doctorID string, slots []domain.Slot) {
	raw, err := json.Marshal(slots)
	if err != nil {
		c.log.Warn("cache encode failed", slog.String("doctor_id", doctorID), slog.Any("err", err))
		return
	}
	if err := c.client.Set(ctx, openSlotsKey(doctorID), raw, c.ttl).Err(); err != nil {
		c.log.Warn("cache write failed", slog.String("doctor_id", doctorID), slog.Any("err", err))
	}
}

func (c *SlotCache) Invalidate(ctx context.Context, doctorID string) {
	if err := c.client.Del(ctx, openSlotsKey(doctorID)).Err(); err != nil {
		c.log.Warn("cache invalidate failed", slog.String("doctor_id", doctorID), slog.Any("err", err))
	}
}

// NewClient connects to redis and verifies connectivity before use.
func NewClient(addr, username, password string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Username:     username,
		Password:     password,
		DB:           0,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
		MinIdleConns: 1,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return rdb, nil
}
