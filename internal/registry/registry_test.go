package registry

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/gre2g/internal/config"
	"github.com/zsiec/gre2g/internal/errors"
)

func setupTestRedis(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, *redis.Client, *RedisRegistry) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	registry := NewRedisRegistry(client, logger, ttl)
	t.Cleanup(func() { registry.Close() })
	return mr, client, registry
}

// registries runs the shared contract against both implementations.
func registries(t *testing.T) map[string]Registry {
	_, _, redisReg := setupTestRedis(t, time.Hour)
	return map[string]Registry{
		"memory": NewMemoryRegistry(),
		"redis":  redisReg,
	}
}

func TestRegistryLifecycle(t *testing.T) {
	for name, reg := range registries(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			run := NewRun([]string{"recordings", "chess", "t1", "cam"}, "frames_ratio")

			require.NoError(t, reg.Start(ctx, run))

			got, err := reg.Get(ctx, run.ID)
			require.NoError(t, err)
			assert.Equal(t, StatusRunning, got.Status)
			assert.Equal(t, run.RecordingPath, got.RecordingPath)

			run.Complete(120, []int{0, 40, 95})
			require.NoError(t, reg.Finish(ctx, run))

			got, err = reg.Get(ctx, run.ID)
			require.NoError(t, err)
			assert.Equal(t, StatusCompleted, got.Status)
			assert.Equal(t, 120, got.FrameCount)
			assert.Equal(t, []int{0, 40, 95}, got.KeyFrames)
			assert.False(t, got.FinishedAt.IsZero())
		})
	}
}

func TestRegistryDuplicateStart(t *testing.T) {
	for name, reg := range registries(t) {
		t.Run(name, func(t *testing.T) {
			run := NewRun([]string{"a"}, "pixels_dist")
			require.NoError(t, reg.Start(context.Background(), run))
			err := reg.Start(context.Background(), run)
			assert.True(t, errors.IsAlreadyExists(err))
		})
	}
}

func TestRegistryUnknownRun(t *testing.T) {
	for name, reg := range registries(t) {
		t.Run(name, func(t *testing.T) {
			_, err := reg.Get(context.Background(), "missing")
			assert.True(t, errors.IsNotFound(err))

			err = reg.Finish(context.Background(), NewRun(nil, "frames_diff"))
			assert.True(t, errors.IsNotFound(err))
		})
	}
}

func TestRegistryListNewestFirst(t *testing.T) {
	for name, reg := range registries(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
			for i := 0; i < 3; i++ {
				run := NewRun([]string{fmt.Sprintf("r%d", i)}, "frames_ratio")
				run.StartedAt = base.Add(time.Duration(i) * time.Minute)
				require.NoError(t, reg.Start(ctx, run))
			}

			runs, err := reg.List(ctx)
			require.NoError(t, err)
			require.Len(t, runs, 3)
			assert.Equal(t, []string{"r2"}, runs[0].RecordingPath)
			assert.Equal(t, []string{"r0"}, runs[2].RecordingPath)
		})
	}
}

func TestMemoryRegistryReturnsCopies(t *testing.T) {
	reg := NewMemoryRegistry()
	run := NewRun([]string{"a"}, "frames_ratio")
	require.NoError(t, reg.Start(context.Background(), run))

	got, err := reg.Get(context.Background(), run.ID)
	require.NoError(t, err)
	got.RecordingPath[0] = "changed"

	again, err := reg.Get(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, "a", again.RecordingPath[0])
}

func TestRedisRegistryKeysAndTTL(t *testing.T) {
	mr, client, reg := setupTestRedis(t, time.Minute)
	ctx := context.Background()

	run := NewRun([]string{"a"}, "frames_ratio")
	require.NoError(t, reg.Start(ctx, run))

	exists, err := client.Exists(ctx, "gre2g:runs:"+run.ID).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists)

	member, err := client.SIsMember(ctx, "gre2g:runs:all", run.ID).Result()
	require.NoError(t, err)
	assert.True(t, member)

	mr.FastForward(2 * time.Minute)

	_, err = reg.Get(ctx, run.ID)
	assert.True(t, errors.IsNotFound(err))

	runs, err := reg.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, runs)

	member, err = client.SIsMember(ctx, "gre2g:runs:all", run.ID).Result()
	require.NoError(t, err)
	assert.False(t, member, "expired ids are pruned by List")
}

func TestRedisRegistryConnectionError(t *testing.T) {
	mr, _, reg := setupTestRedis(t, time.Minute)
	mr.Close()

	err := reg.Start(context.Background(), NewRun(nil, "frames_ratio"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnavailable))

	_, err = reg.List(context.Background())
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnavailable))
}

func TestRunFail(t *testing.T) {
	run := NewRun([]string{"a"}, "frames_ratio")
	run.Fail(12, assert.AnError)

	assert.Equal(t, StatusFailed, run.Status)
	assert.Equal(t, 12, run.FrameCount)
	assert.Equal(t, assert.AnError.Error(), run.Error)
	assert.GreaterOrEqual(t, run.Duration(), time.Duration(0))
}

func TestNewClient(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := NewClient(config.RedisConfig{Addresses: []string{mr.Addr()}, PoolSize: 2})
	defer client.Close()
	assert.NoError(t, client.Ping(context.Background()).Err())
}
