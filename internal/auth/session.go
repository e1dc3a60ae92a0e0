// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"time"
)

// DefaultSessionTTL is how long an issued token stays in the session cache.
const DefaultSessionTTL = time.Hour

// SessionKey returns the cache key for an account's current session token.
func SessionKey(accountID string) string {
	return "user:" + accountID
}

// SessionCache maps account IDs to their most recently issued token.
type SessionCache interface {
	// Put stores token for the account, replacing any previous entry.
	Put(ctx context.Context, accountID, token string, ttl time.Duration) error

	// Get returns the cached token. Returns ErrNotFound when absent or expired.
	Get(ctx context.Context, accountID string) (string, error)
}

// Caller is an authenticated request principal.
type Caller struct {
	Account *Account
	Token   string
}

type callerKey struct{}

// WithCaller returns a context carrying the authenticated caller.
func WithCaller(ctx context.Context, caller *Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// CallerFromContext returns the authenticated caller, if any.
func CallerFromContext(ctx context.Context) (*Caller, bool) {
	caller, ok := ctx.Value(callerKey{}).(*Caller)
	return caller, ok && caller != nil && caller.Account != nil
}
