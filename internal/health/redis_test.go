package health

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/gre2g/internal/registry"
)

func TestRedisChecker(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	checker := NewRedisChecker(client)
	assert.Equal(t, "redis", checker.Name())
	require.NoError(t, checker.Check(context.Background()))
	assert.Equal(t, int64(0), checker.Details()["tracked_runs"])

	_, err := mr.SAdd(registry.RunIndexKey, "r1", "r2")
	require.NoError(t, err)
	require.NoError(t, checker.Check(context.Background()))
	details := checker.Details()
	assert.Equal(t, int64(2), details["tracked_runs"])
	assert.Contains(t, details, "pool_total_conns")

	mr.Close()
	err = checker.Check(context.Background())
	require.Error(t, err)
	var degraded *DegradedError
	assert.ErrorAs(t, err, &degraded)
}

func TestRedisCheckerNilClient(t *testing.T) {
	err := NewRedisChecker(nil).Check(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}
