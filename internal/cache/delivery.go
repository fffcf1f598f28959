// Package cache keeps short-lived Redis state that speeds up, but never
// decides, payment reconciliation.
package cache

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const deliveryPrefix = "payments:delivery:"

type store interface {
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// DeliveryGuard remembers webhook deliveries that were already applied so
// provider retries can be acknowledged without touching the database.
// Redis failures degrade to "not seen"; the ledger stays authoritative.
type DeliveryGuard struct {
	rdb store
	ttl time.Duration
	log *zap.Logger
}

func NewDeliveryGuard(rdb *redis.Client, ttl time.Duration, log *zap.Logger) *DeliveryGuard {
	return newDeliveryGuard(rdb, ttl, log)
}

func newDeliveryGuard(rdb store, ttl time.Duration, log *zap.Logger) *DeliveryGuard {
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &DeliveryGuard{
		rdb: rdb,
		ttl: ttl,
		log: log.With(zap.String("component", "delivery_guard")),
	}
}

func key(provider, eventID string) string {
	return deliveryPrefix + provider + ":" + eventID
}

func (g *DeliveryGuard) Seen(ctx context.Context, provider, eventID string) bool {
	n, err := g.rdb.Exists(ctx, key(provider, eventID)).Result()
	if err != nil {
		g.log.Warn("Delivery lookup failed", zap.Error(err), zap.String("provider", provider))
		return false
	}
	return n > 0
}

func (g *DeliveryGuard) Remember(ctx context.Context, provider, eventID string) {
	if err := g.rdb.Set(ctx, key(provider, eventID), 1, g.ttl).Err(); err != nil {
		g.log.Warn("Failed to remember delivery",
			zap.Error(err),
			zap.String("provider", provider),
			zap.String("event_id", eventID),
		)
	}
}

// NewClient opens the Redis client used for caching and health checks.
func NewClient(addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}
