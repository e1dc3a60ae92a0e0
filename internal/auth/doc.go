// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package auth provides account authentication for accountd.
//
// # Primitives
//
//   - PasswordHasher - argon2id hashing, with bcrypt accepted for legacy hashes
//   - TokenService - HS256 session tokens carrying the account's identity claims
//   - SessionCache - account ID to most recently issued token, with a TTL
//
// # Service
//
// Service composes the primitives with an AccountRepository. Authenticate
// verifies a bearer token and resolves the account it names. Protected
// operations (Update, Delete, GetSelf) additionally require a live session
// cache entry for the caller before touching the repository.
//
// # Errors
//
// Errors carry oops codes. KindOf maps a code to a Kind, which the transport
// layer turns into a status.
package auth
