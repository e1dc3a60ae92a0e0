// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/holomush/accountd/internal/auth"
	"github.com/holomush/accountd/internal/store"
)

// SessionCache implements auth.SessionCache on the session_cache table.
// Expired rows are invisible to Get and removed by PurgeExpired.
type SessionCache struct {
	db store.Querier
}

// NewSessionCache creates a new SessionCache.
func NewSessionCache(db store.Querier) *SessionCache {
	return &SessionCache{db: db}
}

// Put stores token under the account's session key, replacing any previous entry.
func (c *SessionCache) Put(ctx context.Context, accountID, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return oops.Code(auth.CodeSessionCacheFailure).With("ttl", ttl).Errorf("session ttl must be positive")
	}

	key := auth.SessionKey(accountID)
	_, err := c.db.Exec(ctx, `
		INSERT INTO session_cache (key, token, expires_at)
		VALUES ($1, $2, now() + make_interval(secs => $3))
		ON CONFLICT (key) DO UPDATE
		SET token = EXCLUDED.token, expires_at = EXCLUDED.expires_at
	`, key, token, ttl.Seconds())
	if err != nil {
		return oops.Code(auth.CodeSessionCacheFailure).With("operation", "put session").With("key", key).Wrap(err)
	}
	return nil
}

// Get returns the cached token, or auth.ErrNotFound when absent or expired.
func (c *SessionCache) Get(ctx context.Context, accountID string) (string, error) {
	key := auth.SessionKey(accountID)

	var token string
	err := c.db.QueryRow(ctx, `
		SELECT token FROM session_cache WHERE key = $1 AND expires_at > now()
	`, key).Scan(&token)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", oops.Code(auth.CodeSessionNotFound).With("key", key).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return "", oops.Code(auth.CodeSessionCacheFailure).With("operation", "get session").With("key", key).Wrap(err)
	}
	return token, nil
}

// PurgeExpired deletes expired entries and returns how many were removed.
func (c *SessionCache) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := c.db.Exec(ctx, `DELETE FROM session_cache WHERE expires_at <= now()`)
	if err != nil {
		return 0, oops.Code(auth.CodeSessionCacheFailure).With("operation", "purge expired sessions").Wrap(err)
	}
	return tag.RowsAffected(), nil
}

var _ auth.SessionCache = (*SessionCache)(nil)
