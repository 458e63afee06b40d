package metering

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	appmetering "github.com/schoolsaas/backend/internal/application/metering"
	"go.uber.org/zap"
)

const (
	minuteBucketTTL = 2 * time.Minute
	hourBucketTTL   = 2 * time.Hour
)

// RedisAPICallCounter tracks per-tenant API call volume in fixed windows.
// Every observed call increments a per-minute and a per-hour bucket; buckets
// expire on their own so the keyspace stays bounded.
type RedisAPICallCounter struct {
	client *redis.Client
	logger *zap.Logger
	now    func() time.Time
}

// NewRedisAPICallCounter creates a new Redis-backed API call counter
func NewRedisAPICallCounter(client *redis.Client, logger *zap.Logger) *RedisAPICallCounter {
	return &RedisAPICallCounter{
		client: client,
		logger: logger,
		now:    time.Now,
	}
}

// Observe records one API call for the tenant. Errors are logged, not
// returned; losing a count must never fail the request being counted.
func (c *RedisAPICallCounter) Observe(ctx context.Context, tenantID uuid.UUID) {
	now := c.now()
	pipe := c.client.Pipeline()

	minuteKey := c.minuteKey(tenantID, now)
	pipe.Incr(ctx, minuteKey)
	pipe.Expire(ctx, minuteKey, minuteBucketTTL)

	hourKey := c.hourKey(tenantID, now)
	pipe.Incr(ctx, hourKey)
	pipe.Expire(ctx, hourKey, hourBucketTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("Failed to record API call",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err))
	}
}

// CallsLastMinute returns the call count in the current minute bucket
func (c *RedisAPICallCounter) CallsLastMinute(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	return c.readBucket(ctx, c.minuteKey(tenantID, c.now()))
}

// CallsLastHour returns the call count in the current hour bucket
func (c *RedisAPICallCounter) CallsLastHour(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	return c.readBucket(ctx, c.hourKey(tenantID, c.now()))
}

func (c *RedisAPICallCounter) readBucket(ctx context.Context, key string) (int64, error) {
	val, err := c.client.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading counter %s: %w", key, err)
	}
	return val, nil
}

func (c *RedisAPICallCounter) minuteKey(tenantID uuid.UUID, at time.Time) string {
	return fmt.Sprintf("api:calls:%s:m:%d", tenantID, at.Unix()/60)
}

func (c *RedisAPICallCounter) hourKey(tenantID uuid.UUID, at time.Time) string {
	return fmt.Sprintf("api:calls:%s:h:%d", tenantID, at.Unix()/3600)
}

// Ensure RedisAPICallCounter implements the interface
var _ appmetering.APICallCounter = (*RedisAPICallCounter)(nil)
