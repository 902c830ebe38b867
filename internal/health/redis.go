package health

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/redis/go-redis/v9"

	"github.com/zsiec/gre2g/internal/registry"
)

// RedisChecker checks connectivity to the run registry.
type RedisChecker struct {
	client redis.UniversalClient

	runs atomic.Int64
}

// NewRedisChecker creates a new Redis health checker.
func NewRedisChecker(client redis.UniversalClient) *RedisChecker {
	return &RedisChecker{client: client}
}

func (r *RedisChecker) Name() string {
	return "redis"
}

// Check pings redis. Without redis the registry cannot record runs but
// the store keeps working, so failures degrade the service.
func (r *RedisChecker) Check(ctx context.Context) error {
	if r.client == nil {
		return fmt.Errorf("redis client not configured")
	}
	if err := r.client.Ping(ctx).Err(); err != nil {
		return Degraded(fmt.Errorf("redis ping failed: %w", err))
	}
	n, err := r.client.SCard(ctx, registry.RunIndexKey).Result()
	if err != nil {
		return Degraded(fmt.Errorf("run index unreadable: %w", err))
	}
	r.runs.Store(n)
	return nil
}

// Details reports the tracked run count and the connection pool state.
func (r *RedisChecker) Details() map[string]interface{} {
	out := map[string]interface{}{"tracked_runs": r.runs.Load()}
	if r.client != nil {
		stats := r.client.PoolStats()
		out["pool_total_conns"] = stats.TotalConns
		out["pool_idle_conns"] = stats.IdleConns
	}
	return out
}
