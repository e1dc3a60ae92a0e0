// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package postgres implements the auth repositories on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/holomush/accountd/internal/auth"
	"github.com/holomush/accountd/internal/store"
)

const accountNumberConstraint = "accounts_account_number_key"

const accountColumns = `id, user_name, email_address, identity_number, account_number,
		       password_hash, created_at, updated_at`

// AccountRepository implements auth.AccountRepository using PostgreSQL.
type AccountRepository struct {
	db store.Querier
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(db store.Querier) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create stores a new account.
func (r *AccountRepository) Create(ctx context.Context, account *auth.Account) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO accounts (
			id, user_name, email_address, identity_number, account_number,
			password_hash, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		account.ID,
		account.UserName,
		account.EmailAddress,
		account.IdentityNumber,
		account.AccountNumber,
		account.PasswordHash,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		return translate(err, oops.With("operation", "insert account").With("id", account.ID))
	}
	return nil
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*auth.Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	return scanAccount(row, oops.With("operation", "get account by id").With("id", id))
}

// FindByIdentifiers returns the oldest account matching any non-empty argument.
func (r *AccountRepository) FindByIdentifiers(ctx context.Context, userName, emailAddress, identityNumber string) (*auth.Account, error) {
	if userName == "" && emailAddress == "" && identityNumber == "" {
		return nil, oops.Code(auth.CodeAccountNotFound).Wrap(auth.ErrNotFound)
	}

	row := r.db.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE ($1 <> '' AND user_name = $1)
		   OR ($2 <> '' AND email_address = $2)
		   OR ($3 <> '' AND identity_number = $3)
		ORDER BY created_at
		LIMIT 1
	`, userName, emailAddress, identityNumber)
	return scanAccount(row, oops.With("operation", "find account by identifiers").With("user_name", userName))
}

// FindByAccountNumber retrieves an account by account number.
func (r *AccountRepository) FindByAccountNumber(ctx context.Context, accountNumber string) (*auth.Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE account_number = $1`, accountNumber)
	return scanAccount(row, oops.With("operation", "find account by account number").With("account_number", accountNumber))
}

// FindByIdentityNumber retrieves an account by identity number.
func (r *AccountRepository) FindByIdentityNumber(ctx context.Context, identityNumber string) (*auth.Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE identity_number = $1`, identityNumber)
	return scanAccount(row, oops.With("operation", "find account by identity number"))
}

// Update persists user name, email address, password hash and updated_at.
func (r *AccountRepository) Update(ctx context.Context, account *auth.Account) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE accounts
		SET user_name = $2, email_address = $3, password_hash = $4, updated_at = $5
		WHERE id = $1
	`, account.ID, account.UserName, account.EmailAddress, account.PasswordHash, account.UpdatedAt)
	if err != nil {
		return translate(err, oops.With("operation", "update account").With("id", account.ID))
	}
	if tag.RowsAffected() == 0 {
		return oops.Code(auth.CodeAccountNotFound).With("id", account.ID).Wrap(auth.ErrNotFound)
	}
	return nil
}

// UpdatePassword replaces the password hash.
func (r *AccountRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE accounts SET password_hash = $2, updated_at = now() WHERE id = $1
	`, id, passwordHash)
	if err != nil {
		return oops.With("operation", "update password").With("id", id).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code(auth.CodeAccountNotFound).With("id", id).Wrap(auth.ErrNotFound)
	}
	return nil
}

// Delete removes an account.
func (r *AccountRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return translate(err, oops.With("operation", "delete account").With("id", id))
	}
	if tag.RowsAffected() == 0 {
		return oops.Code(auth.CodeAccountNotFound).With("id", id).Wrap(auth.ErrNotFound)
	}
	return nil
}

func scanAccount(row pgx.Row, b oops.OopsErrorBuilder) (*auth.Account, error) {
	var a auth.Account
	err := row.Scan(
		&a.ID,
		&a.UserName,
		&a.EmailAddress,
		&a.IdentityNumber,
		&a.AccountNumber,
		&a.PasswordHash,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, b.Code(auth.CodeAccountNotFound).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, b.Wrap(err)
	}
	return &a, nil
}

// translate maps constraint violations onto auth error codes so that
// storage-engine codes never reach callers.
func translate(err error, b oops.OopsErrorBuilder) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return b.Wrap(err)
	}

	b = b.With("constraint", pgErr.ConstraintName).With("sqlstate", pgErr.Code)
	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		code := auth.CodeConflict
		if pgErr.ConstraintName == accountNumberConstraint {
			code = auth.CodeAccountNumberTaken
		}
		return b.Code(code).
			Public(fmt.Sprintf("Duplicate field value: %s", pgErr.ConstraintName)).
			Errorf("unique violation on %s", pgErr.ConstraintName)
	case pgerrcode.ForeignKeyViolation, pgerrcode.NotNullViolation, pgerrcode.CheckViolation,
		pgerrcode.StringDataRightTruncationDataException:
		return b.Code(auth.CodeValidation).
			Public(fmt.Sprintf("Invalid input data: %s", pgErr.ConstraintName)).
			Errorf("constraint violation: %s", pgErr.Message)
	default:
		return b.Wrap(err)
	}
}

var _ auth.AccountRepository = (*AccountRepository)(nil)
