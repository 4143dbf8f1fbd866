package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const runKeyPrefix = "helpdesk:scheduler:last-run:"

// RedisRunStore keeps the last result of each job in Redis.
type RedisRunStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisRunStore builds a store. A zero ttl keeps results indefinitely.
func NewRedisRunStore(client redis.Cmdable, ttl time.Duration) *RedisRunStore {
	return &RedisRunStore{client: client, ttl: ttl}
}

// Save stores result as the job's latest run.
func (s *RedisRunStore) Save(ctx context.Context, result RunResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode run result: %w", err)
	}
	return s.client.Set(ctx, runKeyPrefix+result.Job, payload, s.ttl).Err()
}

// Last returns the job's latest run, or nil when none is stored.
func (s *RedisRunStore) Last(ctx context.Context, job string) (*RunResult, error) {
	payload, err := s.client.Get(ctx, runKeyPrefix+job).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var result RunResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("decode run result: %w", err)
	}
	return &result, nil
}
