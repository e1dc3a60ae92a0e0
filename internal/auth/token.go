// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"
)

// DefaultTokenExpiry is the lifetime of an issued session token.
const DefaultTokenExpiry = 24 * time.Hour

// Claims is the identity carried by a session token.
type Claims struct {
	ID             string `json:"id"`
	EmailAddress   string `json:"emailAddress"`
	UserName       string `json:"userName"`
	AccountNumber  string `json:"accountNumber"`
	IdentityNumber string `json:"identityNumber"`
}

// ClaimsFor returns the token claims for an account.
func ClaimsFor(a *Account) Claims {
	return Claims{
		ID:             a.ID,
		EmailAddress:   a.EmailAddress,
		UserName:       a.UserName,
		AccountNumber:  a.AccountNumber,
		IdentityNumber: a.IdentityNumber,
	}
}

type tokenClaims struct {
	Claims
	jwt.RegisteredClaims
}

// TokenConfig configures a TokenService.
type TokenConfig struct {
	Secret string
	Expiry time.Duration
	Issuer string
	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time
}

// TokenService issues and verifies HS256-signed session tokens.
type TokenService struct {
	secret []byte
	expiry time.Duration
	issuer string
	now    func() time.Time
	parser *jwt.Parser
}

// NewTokenService creates a TokenService. The secret is required.
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if cfg.Secret == "" {
		return nil, oops.Code("TOKEN_CONFIG_INVALID").Errorf("token secret is required")
	}
	if cfg.Expiry < 0 {
		return nil, oops.Code("TOKEN_CONFIG_INVALID").With("expiry", cfg.Expiry).Errorf("token expiry cannot be negative")
	}
	if cfg.Expiry == 0 {
		cfg.Expiry = DefaultTokenExpiry
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(cfg.Now),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	return &TokenService{
		secret: []byte(cfg.Secret),
		expiry: cfg.Expiry,
		issuer: cfg.Issuer,
		now:    cfg.Now,
		parser: jwt.NewParser(opts...),
	}, nil
}

// Expiry returns the lifetime of issued tokens.
func (s *TokenService) Expiry() time.Duration {
	return s.expiry
}

// Issue signs a token carrying claims that expires after the configured lifetime.
func (s *TokenService) Issue(claims Claims) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		Claims: claims,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
		},
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", oops.Code(CodeTokenSigningFailed).With("account_id", claims.ID).Wrap(err)
	}
	return signed, nil
}

// Verify checks the token signature and expiry and returns its claims.
// All failures wrap ErrInvalidToken.
func (s *TokenService) Verify(token string) (*Claims, error) {
	parsed := &tokenClaims{}
	tok, err := s.parser.ParseWithClaims(token, parsed, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, oops.Code(CodeInvalidToken).Wrapf(ErrInvalidToken, "%s", err.Error())
	}
	if !tok.Valid || parsed.Claims.ID == "" {
		return nil, oops.Code(CodeInvalidToken).Wrap(ErrInvalidToken)
	}

	claims := parsed.Claims
	return &claims, nil
}
