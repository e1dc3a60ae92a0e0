// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/holomush/accountd/pkg/errutil"
)

// accountNumberRetries bounds regeneration after an account-number collision.
const accountNumberRetries = 3

// Tokens issues and verifies session tokens.
type Tokens interface {
	Issue(claims Claims) (string, error)
	Verify(token string) (*Claims, error)
}

// Service implements account registration, login and the authenticated
// account operations.
type Service struct {
	accounts       AccountRepository
	sessions       SessionCache
	hasher         PasswordHasher
	tokens         Tokens
	logger         *slog.Logger
	sessionTTL     time.Duration
	strictSessions bool
	now            func() time.Time
	accountNumber  func() (string, error)
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger used for best-effort failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithSessionTTL sets how long issued tokens stay cached.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) { s.sessionTTL = ttl }
}

// WithStrictSessions requires the presented token to equal the cached one.
// By default only the presence of a cache entry is checked.
func WithStrictSessions(strict bool) Option {
	return func(s *Service) { s.strictSessions = strict }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithAccountNumberGenerator overrides GenerateAccountNumber.
func WithAccountNumberGenerator(gen func() (string, error)) Option {
	return func(s *Service) { s.accountNumber = gen }
}

// NewService creates a Service. All collaborators are required.
func NewService(accounts AccountRepository, sessions SessionCache, hasher PasswordHasher, tokens Tokens, opts ...Option) (*Service, error) {
	if accounts == nil {
		return nil, oops.Errorf("accounts repository is required")
	}
	if sessions == nil {
		return nil, oops.Errorf("session cache is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if tokens == nil {
		return nil, oops.Errorf("token service is required")
	}

	s := &Service{
		accounts:      accounts,
		sessions:      sessions,
		hasher:        hasher,
		tokens:        tokens,
		logger:        slog.Default(),
		sessionTTL:    DefaultSessionTTL,
		now:           time.Now,
		accountNumber: GenerateAccountNumber,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		return nil, oops.Errorf("logger cannot be nil")
	}
	if s.sessionTTL <= 0 {
		return nil, oops.With("session_ttl", s.sessionTTL).Errorf("session TTL must be positive")
	}
	return s, nil
}

// Register opens a new account and starts a session for it.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Account, string, error) {
	existing, err := s.accounts.FindByIdentifiers(ctx, in.UserName, in.EmailAddress, in.IdentityNumber)
	switch {
	case err == nil && existing != nil:
		return nil, "", oops.Code(CodeConflict).
			Public("User already exists").
			With("user_name", in.UserName).
			Errorf("account already exists")
	case err != nil && !errors.Is(err, ErrNotFound):
		return nil, "", oops.Code("ACCOUNT_REGISTER_FAILED").
			With("operation", "check existing account").
			Wrap(err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, "", oops.With("operation", "hash password").Wrap(err)
	}

	now := s.now().UTC()
	account := &Account{
		ID:             NewAccountID(),
		UserName:       in.UserName,
		EmailAddress:   in.EmailAddress,
		IdentityNumber: in.IdentityNumber,
		PasswordHash:   hash,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	backoff := retry.WithMaxRetries(accountNumberRetries, retry.NewConstant(10*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		number, genErr := s.accountNumber()
		if genErr != nil {
			return genErr
		}
		account.AccountNumber = number

		createErr := s.accounts.Create(ctx, account)
		if CodeOf(createErr) == CodeAccountNumberTaken {
			s.logger.DebugContext(ctx, "account number collision, regenerating",
				"account_id", account.ID)
			return retry.RetryableError(createErr)
		}
		return createErr
	})
	if err != nil {
		return nil, "", oops.With("operation", "create account").Wrap(err)
	}

	token, err := s.startSession(ctx, account)
	if err != nil {
		return nil, "", err
	}
	return account, token, nil
}

// Login authenticates by user name or email and starts a fresh session.
func (s *Service) Login(ctx context.Context, in LoginInput) (*Account, string, error) {
	if in.UserName == "" && in.EmailAddress == "" {
		return nil, "", oops.Code(CodeValidation).
			Public("userName or emailAddress is required").
			Errorf("login requires user name or email")
	}

	account, err := s.accounts.FindByIdentifiers(ctx, in.UserName, in.EmailAddress, "")
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			key := in.UserName
			if key == "" {
				key = in.EmailAddress
			}
			return nil, "", notFound(key)
		}
		return nil, "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "find account").
			Wrap(err)
	}

	valid, err := s.hasher.Verify(in.Password, account.PasswordHash)
	if err != nil {
		return nil, "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			With("account_id", account.ID).
			Wrap(err)
	}
	if !valid {
		return nil, "", oops.Code(CodeInvalidCredentials).
			Public("Invalid password").
			With("account_id", account.ID).
			Errorf("invalid password")
	}

	if s.hasher.NeedsUpgrade(account.PasswordHash) {
		s.upgradeHash(ctx, account, in.Password)
	}

	token, err := s.startSession(ctx, account)
	if err != nil {
		return nil, "", err
	}
	return account, token, nil
}

// Authenticate verifies a bearer token and resolves the account it names.
// It does not consult the session cache.
func (s *Service) Authenticate(ctx context.Context, token string) (*Caller, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, oops.Code(CodeMissingToken).Public("Unauthorized").Errorf("missing bearer token")
	}

	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, oops.Code(CodeInvalidToken).Public("Unauthorized").Wrap(err)
	}

	account, err := s.loadAccount(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	return &Caller{Account: account, Token: token}, nil
}

// Update applies the supplied changes to the caller's account.
func (s *Service) Update(ctx context.Context, caller *Caller, in UpdateInput) (*Account, error) {
	account, err := s.authorize(ctx, caller)
	if err != nil {
		return nil, err
	}

	if in.UserName != nil {
		account.UserName = *in.UserName
	}
	if in.EmailAddress != nil {
		account.EmailAddress = *in.EmailAddress
	}
	if in.Password != nil {
		hash, hashErr := s.hasher.Hash(*in.Password)
		if hashErr != nil {
			return nil, oops.With("operation", "hash password").Wrap(hashErr)
		}
		account.PasswordHash = hash
	}
	account.UpdatedAt = s.now().UTC()

	if err := s.accounts.Update(ctx, account); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, notFound(account.ID)
		}
		return nil, oops.With("operation", "update account").With("account_id", account.ID).Wrap(err)
	}
	return account, nil
}

// Delete removes the caller's account. The cached session is left to expire.
func (s *Service) Delete(ctx context.Context, caller *Caller) error {
	account, err := s.authorize(ctx, caller)
	if err != nil {
		return err
	}

	if err := s.accounts.Delete(ctx, account.ID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return notFound(account.ID)
		}
		return oops.With("operation", "delete account").With("account_id", account.ID).Wrap(err)
	}
	return nil
}

// GetSelf returns the caller's current account record.
func (s *Service) GetSelf(ctx context.Context, caller *Caller) (*Account, error) {
	return s.authorize(ctx, caller)
}

// GetByAccountNumber looks up an account by its 10-digit account number.
func (s *Service) GetByAccountNumber(ctx context.Context, accountNumber string) (*Account, error) {
	if len(accountNumber) != AccountNumberLength {
		return nil, oops.Code(CodeValidation).
			Public("accountNumber must be exactly 10 characters").
			Errorf("invalid account number length %d", len(accountNumber))
	}
	return s.lookup(ctx, accountNumber, s.accounts.FindByAccountNumber)
}

// GetByIdentityNumber looks up an account by its 16-character identity number.
func (s *Service) GetByIdentityNumber(ctx context.Context, identityNumber string) (*Account, error) {
	if len(identityNumber) != IdentityNumberLength {
		return nil, oops.Code(CodeValidation).
			Public("identityNumber must be exactly 16 characters").
			Errorf("invalid identity number length %d", len(identityNumber))
	}
	return s.lookup(ctx, identityNumber, s.accounts.FindByIdentityNumber)
}

func (s *Service) lookup(ctx context.Context, key string, find func(context.Context, string) (*Account, error)) (*Account, error) {
	account, err := find(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, notFound(key)
		}
		return nil, oops.With("operation", "lookup account").Wrap(err)
	}
	return account, nil
}

// authorize runs the session-cache liveness check and reloads the account.
func (s *Service) authorize(ctx context.Context, caller *Caller) (*Account, error) {
	if caller == nil || caller.Account == nil {
		return nil, oops.Code(CodeSessionNotCached).Public("Unauthorized").Errorf("no authenticated caller")
	}
	id := caller.Account.ID

	cached, err := s.sessions.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code(CodeSessionNotCached).
				Public("Unauthorized").
				With("account_id", id).
				Errorf("no cached session")
		}
		return nil, oops.Code(CodeSessionCacheFailure).
			With("operation", "get session").
			With("account_id", id).
			Wrap(err)
	}

	if s.strictSessions && subtle.ConstantTimeCompare([]byte(cached), []byte(caller.Token)) != 1 {
		return nil, oops.Code(CodeSessionMismatch).
			Public("Unauthorized").
			With("account_id", id).
			Errorf("presented token is not the current session")
	}

	return s.loadAccount(ctx, id)
}

func (s *Service) loadAccount(ctx context.Context, id string) (*Account, error) {
	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, notFound(id)
		}
		return nil, oops.With("operation", "get account").With("account_id", id).Wrap(err)
	}
	return account, nil
}

func (s *Service) startSession(ctx context.Context, account *Account) (string, error) {
	token, err := s.tokens.Issue(ClaimsFor(account))
	if err != nil {
		return "", oops.With("operation", "issue token").Wrap(err)
	}

	if err := s.sessions.Put(ctx, account.ID, token, s.sessionTTL); err != nil {
		return "", oops.Code(CodeSessionCacheFailure).
			With("operation", "put session").
			With("account_id", account.ID).
			Wrap(err)
	}
	return token, nil
}

func (s *Service) upgradeHash(ctx context.Context, account *Account, password string) {
	newHash, err := s.hasher.Hash(password)
	if err != nil {
		errutil.LogWarn(ctx, s.logger, "best-effort password hash upgrade failed", err,
			"operation", "hash_password",
			"account_id", account.ID)
		return
	}
	if err := s.accounts.UpdatePassword(ctx, account.ID, newHash); err != nil {
		errutil.LogWarn(ctx, s.logger, "best-effort password hash upgrade failed", err,
			"operation", "update_password",
			"account_id", account.ID)
		return
	}
	account.PasswordHash = newHash
}

func notFound(key string) error {
	return oops.Code(CodeAccountNotFound).
		Public("User not found").
		With("key", key).
		Wrap(ErrNotFound)
}
