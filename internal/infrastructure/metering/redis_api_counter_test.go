package metering

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupCounter(t *testing.T) (*RedisAPICallCounter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisAPICallCounter(client, zap.NewNop()), mr
}

func TestRedisAPICallCounter(t *testing.T) {
	counter, _ := setupCounter(t)
	ctx := context.Background()
	tenantID := uuid.New()

	// pin the clock so every observation lands in one bucket
	at := time.Date(2026, 3, 10, 12, 30, 15, 0, time.UTC)
	counter.now = func() time.Time { return at }

	for i := 0; i < 5; i++ {
		counter.Observe(ctx, tenantID)
	}

	perMinute, err := counter.CallsLastMinute(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), perMinute)

	perHour, err := counter.CallsLastHour(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), perHour)

	t.Run("a new minute starts a fresh bucket", func(t *testing.T) {
		counter.now = func() time.Time { return at.Add(time.Minute) }

		perMinute, err := counter.CallsLastMinute(ctx, tenantID)
		require.NoError(t, err)
		assert.Zero(t, perMinute)

		perHour, err := counter.CallsLastHour(ctx, tenantID)
		require.NoError(t, err)
		assert.Equal(t, int64(5), perHour, "hour bucket carries across minutes")
	})

	t.Run("tenants are counted separately", func(t *testing.T) {
		counter.now = func() time.Time { return at }

		perMinute, err := counter.CallsLastMinute(ctx, uuid.New())
		require.NoError(t, err)
		assert.Zero(t, perMinute)
	})
}

func TestRedisAPICallCounter_BucketsExpire(t *testing.T) {
	counter, mr := setupCounter(t)
	ctx := context.Background()
	tenantID := uuid.New()

	at := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	counter.now = func() time.Time { return at }
	counter.Observe(ctx, tenantID)

	mr.FastForward(3 * time.Hour)

	perHour, err := counter.CallsLastHour(ctx, tenantID)
	require.NoError(t, err)
	assert.Zero(t, perHour)
}

func TestRedisAPICallCounter_ObserveSurvivesOutage(t *testing.T) {
	counter, mr := setupCounter(t)
	mr.Close()

	// must not panic or block when redis is down
	counter.Observe(context.Background(), uuid.New())
}
