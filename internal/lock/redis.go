package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Redis is a Locker backed by Redis, for running several API instances
// against one database.
type Redis struct {
	rdb    *redis.Client
	client *redislock.Client
	ttl    time.Duration
	log    logrus.FieldLogger
}

// NewRedis connects to addr and verifies the connection with a ping.
// ttl bounds how long a crashed holder can block a user.
func NewRedis(ctx context.Context, addr string, ttl time.Duration, log logrus.FieldLogger) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		DB:       0,
		PoolSize: 20,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Redis{
		rdb:    rdb,
		client: redislock.New(rdb),
		ttl:    ttl,
		log:    log,
	}, nil
}

func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	// LimitRetry counts attempts, so each Obtain needs its own strategy.
	const backoff = 50 * time.Millisecond
	retry := redislock.LimitRetry(redislock.LinearBackoff(backoff), int(r.ttl/backoff))
	l, err := r.client.Obtain(ctx, key, r.ttl, &redislock.Options{RetryStrategy: retry})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("lock %s: %w", key, err)
	}
	if err != nil {
		return nil, fmt.Errorf("obtain lock %s: %w", key, err)
	}
	return func() {
		// Release with a fresh context: the caller's may already be cancelled.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := l.Release(ctx); err != nil && r.log != nil {
			r.log.WithFields(logrus.Fields{"key": key}).Warn("failed to release redis lock: " + err.Error())
		}
	}, nil
}

// Close closes the underlying Redis connection pool.
func (r *Redis) Close() error {
	return r.rdb.Close()
}
