// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package authtest provides in-memory auth collaborators for tests.
package authtest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/accountd/internal/auth"
)

// AccountStore is an in-memory auth.AccountRepository that enforces the
// same uniqueness rules as the postgres schema.
type AccountStore struct {
	mu       sync.Mutex
	accounts map[string]auth.Account
}

// NewAccountStore creates an empty AccountStore.
func NewAccountStore() *AccountStore {
	return &AccountStore{accounts: make(map[string]auth.Account)}
}

var _ auth.AccountRepository = (*AccountStore)(nil)

// Len returns the number of stored accounts.
func (s *AccountStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.accounts)
}

// Create stores a copy of account.
func (s *AccountStore) Create(_ context.Context, account *auth.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[account.ID]; ok {
		return conflict("accounts_pkey")
	}
	if err := s.checkUnique(account); err != nil {
		return err
	}
	s.accounts[account.ID] = *account
	return nil
}

// GetByID returns a copy of the account with id.
func (s *AccountStore) GetByID(_ context.Context, id string) (*auth.Account, error) {
	return s.find(func(a auth.Account) bool { return a.ID == id })
}

// FindByIdentifiers returns the first account matching any non-empty argument.
func (s *AccountStore) FindByIdentifiers(_ context.Context, userName, emailAddress, identityNumber string) (*auth.Account, error) {
	return s.find(func(a auth.Account) bool {
		return (userName != "" && a.UserName == userName) ||
			(emailAddress != "" && a.EmailAddress == emailAddress) ||
			(identityNumber != "" && a.IdentityNumber == identityNumber)
	})
}

// FindByAccountNumber returns the account with the given account number.
func (s *AccountStore) FindByAccountNumber(_ context.Context, accountNumber string) (*auth.Account, error) {
	return s.find(func(a auth.Account) bool { return a.AccountNumber == accountNumber })
}

// FindByIdentityNumber returns the account with the given identity number.
func (s *AccountStore) FindByIdentityNumber(_ context.Context, identityNumber string) (*auth.Account, error) {
	return s.find(func(a auth.Account) bool { return a.IdentityNumber == identityNumber })
}

// Update replaces the mutable fields of an existing account.
func (s *AccountStore) Update(_ context.Context, account *auth.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.accounts[account.ID]
	if !ok {
		return oops.Code(auth.CodeAccountNotFound).With("id", account.ID).Wrap(auth.ErrNotFound)
	}
	if err := s.checkUnique(account); err != nil {
		return err
	}
	stored.UserName = account.UserName
	stored.EmailAddress = account.EmailAddress
	stored.PasswordHash = account.PasswordHash
	stored.UpdatedAt = account.UpdatedAt
	s.accounts[account.ID] = stored
	return nil
}

// UpdatePassword replaces the stored password hash.
func (s *AccountStore) UpdatePassword(_ context.Context, id, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.accounts[id]
	if !ok {
		return oops.Code(auth.CodeAccountNotFound).With("id", id).Wrap(auth.ErrNotFound)
	}
	stored.PasswordHash = passwordHash
	s.accounts[id] = stored
	return nil
}

// Delete removes an account.
func (s *AccountStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[id]; !ok {
		return oops.Code(auth.CodeAccountNotFound).With("id", id).Wrap(auth.ErrNotFound)
	}
	delete(s.accounts, id)
	return nil
}

func (s *AccountStore) find(match func(auth.Account) bool) (*auth.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.accounts {
		if match(a) {
			found := a
			return &found, nil
		}
	}
	return nil, oops.Code(auth.CodeAccountNotFound).Wrap(auth.ErrNotFound)
}

// checkUnique must be called with mu held.
func (s *AccountStore) checkUnique(account *auth.Account) error {
	for id, other := range s.accounts {
		if id == account.ID {
			continue
		}
		switch {
		case other.UserName == account.UserName:
			return conflict("accounts_user_name_key")
		case other.EmailAddress == account.EmailAddress:
			return conflict("accounts_email_address_key")
		case other.IdentityNumber == account.IdentityNumber:
			return conflict("accounts_identity_number_key")
		case other.AccountNumber == account.AccountNumber:
			return oops.Code(auth.CodeAccountNumberTaken).
				With("constraint", "accounts_account_number_key").
				Public("Duplicate field value: accounts_account_number_key").
				Errorf("account number already assigned")
		}
	}
	return nil
}

func conflict(constraint string) error {
	return oops.Code(auth.CodeConflict).
		With("constraint", constraint).
		Public(fmt.Sprintf("Duplicate field value: %s", constraint)).
		Errorf("unique violation on %s", constraint)
}

type sessionEntry struct {
	token     string
	expiresAt time.Time
}

// SessionCache is an in-memory auth.SessionCache with a controllable clock.
type SessionCache struct {
	mu      sync.Mutex
	entries map[string]sessionEntry
	now     func() time.Time
}

// NewSessionCache creates an empty SessionCache using time.Now.
func NewSessionCache() *SessionCache {
	return &SessionCache{entries: make(map[string]sessionEntry), now: time.Now}
}

var _ auth.SessionCache = (*SessionCache)(nil)

// SetClock overrides the cache's clock.
func (c *SessionCache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Put stores token under the account's session key.
func (c *SessionCache) Put(_ context.Context, accountID, token string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[auth.SessionKey(accountID)] = sessionEntry{token: token, expiresAt: c.now().Add(ttl)}
	return nil
}

// Get returns the cached token, or auth.ErrNotFound when absent or expired.
func (c *SessionCache) Get(_ context.Context, accountID string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[auth.SessionKey(accountID)]
	if !ok || !c.now().Before(entry.expiresAt) {
		return "", oops.Code(auth.CodeSessionNotFound).With("account_id", accountID).Wrap(auth.ErrNotFound)
	}
	return entry.token, nil
}

// Evict removes the account's session entry.
func (c *SessionCache) Evict(accountID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, auth.SessionKey(accountID))
}

// Keys returns the cache keys currently stored, expired or not.
func (c *SessionCache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	return keys
}
