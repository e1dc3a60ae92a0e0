// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"errors"

	"github.com/samber/oops"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidToken is returned when a session token fails verification.
var ErrInvalidToken = errors.New("invalid token")

// Error codes attached to service and repository errors.
const (
	CodeValidation          = "VALIDATION_FAILED"
	CodeConflict            = "ACCOUNT_CONFLICT"
	CodeAccountNumberTaken  = "ACCOUNT_NUMBER_TAKEN"
	CodeAccountNotFound     = "ACCOUNT_NOT_FOUND"
	CodeMissingToken        = "AUTH_MISSING_TOKEN"
	CodeInvalidToken        = "AUTH_INVALID_TOKEN"
	CodeInvalidCredentials  = "AUTH_INVALID_CREDENTIALS"
	CodeSessionNotCached    = "SESSION_NOT_CACHED"
	CodeSessionMismatch     = "SESSION_TOKEN_MISMATCH"
	CodeSessionNotFound     = "SESSION_NOT_FOUND"
	CodeInvalidHash         = "AUTH_INVALID_HASH"
	CodeEmptyPassword       = "AUTH_EMPTY_PASSWORD"
	CodeTokenSigningFailed  = "AUTH_TOKEN_SIGNING_FAILED"
	CodeSessionCacheFailure = "SESSION_CACHE_FAILED"
)

// Kind classifies an error for transport mapping.
type Kind int

// Error kinds. The zero value is KindInternal.
const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindUnauthorized
	KindNotFound
)

var kindNames = map[Kind]string{
	KindInternal:     "internal",
	KindValidation:   "validation",
	KindConflict:     "conflict",
	KindUnauthorized: "unauthorized",
	KindNotFound:     "not_found",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

var kindByCode = map[string]Kind{
	CodeValidation:         KindValidation,
	CodeEmptyPassword:      KindValidation,
	CodeConflict:           KindConflict,
	CodeAccountNumberTaken: KindConflict,
	CodeAccountNotFound:    KindNotFound,
	CodeMissingToken:       KindUnauthorized,
	CodeInvalidToken:       KindUnauthorized,
	CodeInvalidCredentials: KindUnauthorized,
	CodeSessionNotCached:   KindUnauthorized,
	CodeSessionMismatch:    KindUnauthorized,
}

// KindOf returns the Kind of err based on its oops code.
// Errors without a recognised code are KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	if kind, ok := kindByCode[CodeOf(err)]; ok {
		return kind
	}
	return KindInternal
}

// CodeOf returns the oops code carried by err, or "" when there is none.
func CodeOf(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	code, _ := any(oopsErr.Code()).(string)
	return code
}

// PublicMessage returns the user-facing message attached to err, if any.
func PublicMessage(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	return oopsErr.Public()
}
