// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package rediscache implements auth.SessionCache on Redis.
package rediscache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/holomush/accountd/internal/auth"
)

// Cache stores session tokens as plain string keys with a TTL.
type Cache struct {
	client redis.Cmdable
}

// New wraps an existing client.
func New(client redis.Cmdable) *Cache {
	return &Cache{client: client}
}

// Dial parses redisURL, connects, and waits up to attempts pings for the
// server to answer. The caller owns the returned client.
func Dial(ctx context.Context, redisURL string, attempts uint64) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, oops.Code("REDIS_CONFIG_INVALID").With("operation", "parse redis url").Wrap(err)
	}
	client := redis.NewClient(opts)

	if attempts == 0 {
		attempts = 1
	}
	backoff := retry.WithMaxRetries(attempts-1, retry.NewExponential(200*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := client.Ping(ctx).Err(); err != nil {
			slog.WarnContext(ctx, "redis not ready", "addr", opts.Addr, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		_ = client.Close()
		return nil, oops.Code("REDIS_CONNECT_FAILED").With("addr", opts.Addr).Wrap(err)
	}
	return client, nil
}

// Put stores token under the account's session key with ttl.
func (c *Cache) Put(ctx context.Context, accountID, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return oops.Code(auth.CodeSessionCacheFailure).With("ttl", ttl).Errorf("session ttl must be positive")
	}
	key := auth.SessionKey(accountID)
	if err := c.client.Set(ctx, key, token, ttl).Err(); err != nil {
		return oops.Code(auth.CodeSessionCacheFailure).With("operation", "put session").With("key", key).Wrap(err)
	}
	return nil
}

// Get returns the cached token, or auth.ErrNotFound when the key is absent.
func (c *Cache) Get(ctx context.Context, accountID string) (string, error) {
	key := auth.SessionKey(accountID)
	token, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", oops.Code(auth.CodeSessionNotFound).With("key", key).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return "", oops.Code(auth.CodeSessionCacheFailure).With("operation", "get session").With("key", key).Wrap(err)
	}
	return token, nil
}

// Ping reports whether Redis is reachable. Used by the readiness probe.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

var _ auth.SessionCache = (*Cache)(nil)
