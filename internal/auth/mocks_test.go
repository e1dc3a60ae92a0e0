// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/holomush/accountd/internal/auth"
)

type mockAccountRepository struct {
	mock.Mock
}

func (m *mockAccountRepository) Create(ctx context.Context, account *auth.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *mockAccountRepository) GetByID(ctx context.Context, id string) (*auth.Account, error) {
	args := m.Called(ctx, id)
	if a := args.Get(0); a != nil {
		return a.(*auth.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAccountRepository) FindByIdentifiers(ctx context.Context, userName, emailAddress, identityNumber string) (*auth.Account, error) {
	args := m.Called(ctx, userName, emailAddress, identityNumber)
	if a := args.Get(0); a != nil {
		return a.(*auth.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAccountRepository) FindByAccountNumber(ctx context.Context, accountNumber string) (*auth.Account, error) {
	args := m.Called(ctx, accountNumber)
	if a := args.Get(0); a != nil {
		return a.(*auth.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAccountRepository) FindByIdentityNumber(ctx context.Context, identityNumber string) (*auth.Account, error) {
	args := m.Called(ctx, identityNumber)
	if a := args.Get(0); a != nil {
		return a.(*auth.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAccountRepository) Update(ctx context.Context, account *auth.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *mockAccountRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	args := m.Called(ctx, id, passwordHash)
	return args.Error(0)
}

func (m *mockAccountRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockSessionCache struct {
	mock.Mock
}

func (m *mockSessionCache) Put(ctx context.Context, accountID, token string, ttl time.Duration) error {
	args := m.Called(ctx, accountID, token, ttl)
	return args.Error(0)
}

func (m *mockSessionCache) Get(ctx context.Context, accountID string) (string, error) {
	args := m.Called(ctx, accountID)
	return args.String(0), args.Error(1)
}
