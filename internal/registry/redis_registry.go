package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/zsiec/gre2g/internal/config"
	"github.com/zsiec/gre2g/internal/errors"
)

const keyPrefix = "gre2g:runs:"

// RunIndexKey is the redis set holding the ids of all known runs.
const RunIndexKey = keyPrefix + "all"

// Start uses SET NX so two runs can never share an id.
var startScript = redis.NewScript(`
	local key = KEYS[1]
	local all_key = KEYS[2]
	local ok = redis.call('SET', key, ARGV[1], 'PX', tonumber(ARGV[2]), 'NX')
	if not ok then
		return 0
	end
	redis.call('SADD', all_key, ARGV[3])
	return 1
`)

// List drops ids whose run has expired.
var listScript = redis.NewScript(`
	local all_key = KEYS[1]
	local prefix = ARGV[1]
	local ids = redis.call('SMEMBERS', all_key)
	local result = {}
	for _, id in ipairs(ids) do
		local run = redis.call('GET', prefix .. id)
		if run then
			table.insert(result, run)
		else
			redis.call('SREM', all_key, id)
		end
	end
	return result
`)

// RedisRegistry stores runs as JSON values that expire after a TTL.
type RedisRegistry struct {
	client *redis.Client
	logger *logrus.Logger
	ttl    time.Duration
}

// NewClient builds a redis client from configuration.
func NewClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addresses[0],
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
	})
}

// NewRedisRegistry creates a redis backed registry.
func NewRedisRegistry(client *redis.Client, logger *logrus.Logger, ttl time.Duration) *RedisRegistry {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &RedisRegistry{client: client, logger: logger, ttl: ttl}
}

func (r *RedisRegistry) Start(ctx context.Context, run *Run) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	created, err := startScript.Run(ctx, r.client,
		[]string{keyPrefix + run.ID, RunIndexKey},
		data, r.ttl.Milliseconds(), run.ID).Int()
	if err != nil {
		return errors.WrapUnavailableError(err, "run registry")
	}
	if created == 0 {
		return errors.NewAlreadyExistsError("run " + run.ID)
	}

	r.logger.WithFields(logrus.Fields{
		"run_id":    run.ID,
		"algorithm": run.Algorithm,
	}).Debug("Run registered")
	return nil
}

func (r *RedisRegistry) Finish(ctx context.Context, run *Run) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	// XX keeps Finish from resurrecting an expired or unknown run.
	ok, err := r.client.SetXX(ctx, keyPrefix+run.ID, data, r.ttl).Result()
	if err != nil {
		return errors.WrapUnavailableError(err, "run registry")
	}
	if !ok {
		return errors.NewNotFoundError("run " + run.ID)
	}

	r.logger.WithFields(logrus.Fields{
		"run_id": run.ID,
		"status": run.Status,
	}).Debug("Run finished")
	return nil
}

func (r *RedisRegistry) Get(ctx context.Context, id string) (*Run, error) {
	data, err := r.client.Get(ctx, keyPrefix+id).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, errors.NewNotFoundError("run " + id)
		}
		return nil, errors.WrapUnavailableError(err, "run registry")
	}

	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run: %w", err)
	}
	return &run, nil
}

func (r *RedisRegistry) List(ctx context.Context) ([]*Run, error) {
	res, err := listScript.Run(ctx, r.client, []string{RunIndexKey}, keyPrefix).StringSlice()
	if err != nil {
		return nil, errors.WrapUnavailableError(err, "run registry")
	}

	runs := make([]*Run, 0, len(res))
	for _, data := range res {
		var run Run
		if err := json.Unmarshal([]byte(data), &run); err != nil {
			r.logger.WithError(err).Warn("Failed to unmarshal run")
			continue
		}
		runs = append(runs, &run)
	}
	sortNewestFirst(runs)
	return runs, nil
}

func (r *RedisRegistry) Close() error {
	return r.client.Close()
}
