// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Field constraints shared by request validation and the service.
const (
	MinUserNameLength    = 4
	MinPasswordLength    = 6
	IdentityNumberLength = 16
	AccountNumberLength  = 10
)

// Account number range: 10 digits, no leading zero.
var (
	accountNumberMin   = big.NewInt(1_000_000_000)
	accountNumberRange = big.NewInt(9_000_000_000)
)

// Account is a registered user account.
// PasswordHash never leaves the service boundary in JSON.
type Account struct {
	ID             string    `json:"id"`
	UserName       string    `json:"userName"`
	EmailAddress   string    `json:"emailAddress"`
	IdentityNumber string    `json:"identityNumber"`
	AccountNumber  string    `json:"accountNumber"`
	PasswordHash   string    `json:"-"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Summary is the account with password, email and identity number stripped.
type Summary struct {
	ID            string    `json:"id"`
	UserName      string    `json:"userName"`
	AccountNumber string    `json:"accountNumber"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Profile is the restricted projection returned by lookups.
type Profile struct {
	ID             string `json:"id"`
	UserName       string `json:"userName"`
	AccountNumber  string `json:"accountNumber"`
	EmailAddress   string `json:"emailAddress"`
	IdentityNumber string `json:"identityNumber"`
}

// Summary returns the account without sensitive fields.
func (a *Account) Summary() Summary {
	return Summary{
		ID:            a.ID,
		UserName:      a.UserName,
		AccountNumber: a.AccountNumber,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

// Profile returns the restricted lookup projection.
func (a *Account) Profile() Profile {
	return Profile{
		ID:             a.ID,
		UserName:       a.UserName,
		AccountNumber:  a.AccountNumber,
		EmailAddress:   a.EmailAddress,
		IdentityNumber: a.IdentityNumber,
	}
}

// NewAccountID returns a fresh account identifier.
func NewAccountID() string {
	return ulid.Make().String()
}

// GenerateAccountNumber returns a random 10-digit account number.
// Uniqueness is enforced by the datastore, not here.
func GenerateAccountNumber() (string, error) {
	n, err := rand.Int(rand.Reader, accountNumberRange)
	if err != nil {
		return "", oops.Code("ACCOUNT_NUMBER_FAILED").Wrap(err)
	}
	return n.Add(n, accountNumberMin).String(), nil
}

// AccountRepository manages account persistence.
type AccountRepository interface {
	// Create persists a new account.
	// Unique violations return CodeConflict, or CodeAccountNumberTaken when
	// only the account number collided.
	Create(ctx context.Context, account *Account) error

	// GetByID retrieves an account by ID.
	GetByID(ctx context.Context, id string) (*Account, error)

	// FindByIdentifiers returns the first account matching any non-empty
	// argument. Returns ErrNotFound when nothing matches.
	FindByIdentifiers(ctx context.Context, userName, emailAddress, identityNumber string) (*Account, error)

	// FindByAccountNumber retrieves an account by its account number.
	FindByAccountNumber(ctx context.Context, accountNumber string) (*Account, error)

	// FindByIdentityNumber retrieves an account by its identity number.
	FindByIdentityNumber(ctx context.Context, identityNumber string) (*Account, error)

	// Update persists user name, email, password hash and updated_at.
	Update(ctx context.Context, account *Account) error

	// UpdatePassword updates only the password hash.
	UpdatePassword(ctx context.Context, id, passwordHash string) error

	// Delete removes an account.
	Delete(ctx context.Context, id string) error
}

// RegisterInput is the data required to open an account.
type RegisterInput struct {
	UserName       string `json:"userName" jsonschema:"minLength=4"`
	EmailAddress   string `json:"emailAddress" jsonschema:"format=email"`
	IdentityNumber string `json:"identityNumber" jsonschema:"minLength=16,maxLength=16"`
	Password       string `json:"password" jsonschema:"minLength=6"`
}

// LoginInput identifies an account by user name or email.
type LoginInput struct {
	UserName     string `json:"userName,omitempty" jsonschema:"minLength=4"`
	EmailAddress string `json:"emailAddress,omitempty" jsonschema:"format=email"`
	Password     string `json:"password" jsonschema:"minLength=6"`
}

// UpdateInput carries optional account changes. Nil fields are left alone.
type UpdateInput struct {
	UserName     *string `json:"userName,omitempty" jsonschema:"minLength=4"`
	EmailAddress *string `json:"emailAddress,omitempty" jsonschema:"format=email"`
	Password     *string `json:"password,omitempty" jsonschema:"minLength=6"`
}

// AccountNumberQuery is the lookup-by-account-number query.
type AccountNumberQuery struct {
	AccountNumber string `json:"accountNumber" jsonschema:"minLength=10,maxLength=10"`
}

// IdentityNumberQuery is the lookup-by-identity-number query.
type IdentityNumberQuery struct {
	IdentityNumber string `json:"identityNumber" jsonschema:"minLength=16,maxLength=16"`
}
