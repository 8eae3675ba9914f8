package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Gstxxx/picpay-simplificado/internal/infrastructure/resilience"
	"github.com/redis/go-redis/v9"
)

const (
	fieldFailures    = "failures"
	fieldLastFailure = "last_failure"
)

// RedisBreakerStore shares breaker state between process instances through a
// Redis hash per destination.
type RedisBreakerStore struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
}

// NewRedisBreakerStore creates a store on an existing client. Keys expire
// after ttl without failures so abandoned destinations do not linger.
func NewRedisBreakerStore(client redis.UniversalClient, keyPrefix string, ttl time.Duration) *RedisBreakerStore {
	if keyPrefix == "" {
		keyPrefix = "breaker:"
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisBreakerStore{client: client, keyPrefix: keyPrefix, ttl: ttl}
}

// State returns the failure count and last failure time for destination
func (s *RedisBreakerStore) State(ctx context.Context, destination string) (int, time.Time, error) {
	values, err := s.client.HMGet(ctx, s.key(destination), fieldFailures, fieldLastFailure).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("failed to read breaker state: %w", err)
	}

	failures, err := parseInt(values[0])
	if err != nil {
		return 0, time.Time{}, err
	}
	nanos, err := parseInt(values[1])
	if err != nil {
		return 0, time.Time{}, err
	}
	if failures == 0 {
		return 0, time.Time{}, nil
	}
	return int(failures), time.Unix(0, nanos), nil
}

// RecordFailure atomically increments the failure count and stamps the failure time
func (s *RedisBreakerStore) RecordFailure(ctx context.Context, destination string, at time.Time) (int, error) {
	key := s.key(destination)
	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.HIncrBy(ctx, key, fieldFailures, 1)
		pipe.HSet(ctx, key, fieldLastFailure, at.UnixNano())
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to record breaker failure: %w", err)
	}
	return int(incr.Val()), nil
}

// Reset clears the state for destination
func (s *RedisBreakerStore) Reset(ctx context.Context, destination string) error {
	if err := s.client.Del(ctx, s.key(destination)).Err(); err != nil {
		return fmt.Errorf("failed to reset breaker: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (s *RedisBreakerStore) Close() error {
	return s.client.Close()
}

func (s *RedisBreakerStore) key(destination string) string {
	return s.keyPrefix + destination
}

func parseInt(v any) (int64, error) {
	if v == nil {
		return 0, nil
	}
	str, ok := v.(string)
	if !ok {
		return 0, errors.New("unexpected breaker field type")
	}
	n, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid breaker field %q: %w", str, err)
	}
	return n, nil
}

var _ resilience.BreakerStore = (*RedisBreakerStore)(nil)
