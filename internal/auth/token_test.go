// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/accountd/internal/auth"
	"github.com/holomush/accountd/pkg/errutil"
)

func sampleClaims() auth.Claims {
	return auth.Claims{
		ID:             "01HZX3Q9V8K7M6N5P4R3S2T1A0",
		EmailAddress:   "a@x.com",
		UserName:       "alice",
		AccountNumber:  "1234567890",
		IdentityNumber: "1234567890123456",
	}
}

func TestNewTokenService(t *testing.T) {
	t.Run("requires secret", func(t *testing.T) {
		_, err := auth.NewTokenService(auth.TokenConfig{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "secret is required")
	})

	t.Run("rejects negative expiry", func(t *testing.T) {
		_, err := auth.NewTokenService(auth.TokenConfig{Secret: "s", Expiry: -time.Second})
		require.Error(t, err)
	})

	t.Run("defaults expiry to one day", func(t *testing.T) {
		svc, err := auth.NewTokenService(auth.TokenConfig{Secret: "s"})
		require.NoError(t, err)
		assert.Equal(t, 24*time.Hour, svc.Expiry())
	})
}

func TestTokenService_RoundTrip(t *testing.T) {
	svc, err := auth.NewTokenService(auth.TokenConfig{Secret: "test-secret", Issuer: "accountd"})
	require.NoError(t, err)

	token, err := svc.Issue(sampleClaims())
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(token, "."))

	claims, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, sampleClaims(), *claims)
}

func TestTokenService_WireClaims(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	svc, err := auth.NewTokenService(auth.TokenConfig{Secret: "test-secret", Now: func() time.Time { return now }})
	require.NoError(t, err)

	token, err := svc.Issue(sampleClaims())
	require.NoError(t, err)

	parsed := jwt.MapClaims{}
	_, _, err = jwt.NewParser().ParseUnverified(token, parsed)
	require.NoError(t, err)

	assert.Equal(t, "01HZX3Q9V8K7M6N5P4R3S2T1A0", parsed["id"])
	assert.Equal(t, "a@x.com", parsed["emailAddress"])
	assert.Equal(t, "alice", parsed["userName"])
	assert.Equal(t, "1234567890", parsed["accountNumber"])
	assert.Equal(t, "1234567890123456", parsed["identityNumber"])
	assert.InDelta(t, float64(now.Unix()), parsed["iat"], 0)
	assert.InDelta(t, float64(now.Add(24*time.Hour).Unix()), parsed["exp"], 0)
}

func TestTokenService_VerifyFailures(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	clock := func() time.Time { return now }

	svc, err := auth.NewTokenService(auth.TokenConfig{Secret: "test-secret", Expiry: time.Hour, Now: clock})
	require.NoError(t, err)
	token, err := svc.Issue(sampleClaims())
	require.NoError(t, err)

	tamper := func(tok string) string {
		b := []byte(tok)
		last := len(b) - 2
		if b[last] == 'A' {
			b[last] = 'B'
		} else {
			b[last] = 'A'
		}
		return string(b)
	}

	other, err := auth.NewTokenService(auth.TokenConfig{Secret: "other-secret", Now: clock})
	require.NoError(t, err)
	foreign, err := other.Issue(sampleClaims())
	require.NoError(t, err)

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"id":  "x",
		"exp": now.Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"id": "x"}).
		SignedString([]byte("test-secret"))
	require.NoError(t, err)

	noID, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": now.Add(time.Hour).Unix()}).
		SignedString([]byte("test-secret"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		svc   *auth.TokenService
	}{
		{"empty", "", svc},
		{"malformed", "not-a-token", svc},
		{"one byte of signature altered", tamper(token), svc},
		{"signed with another secret", foreign, svc},
		{"none algorithm", noneToken, svc},
		{"missing expiry", noExpiry, svc},
		{"missing id claim", noID, svc},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := tt.svc.Verify(tt.token)
			require.Error(t, err)
			assert.Nil(t, claims)
			assert.ErrorIs(t, err, auth.ErrInvalidToken)
			errutil.AssertErrorCode(t, err, auth.CodeInvalidToken)
		})
	}

	t.Run("expired", func(t *testing.T) {
		later, err := auth.NewTokenService(auth.TokenConfig{
			Secret: "test-secret",
			Now:    func() time.Time { return now.Add(time.Hour + time.Second) },
		})
		require.NoError(t, err)

		_, err = later.Verify(token)
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})
}
