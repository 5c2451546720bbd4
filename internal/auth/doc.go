// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SecureAuth Contributors

// Package auth verifies credentials and issues identity tokens.
//
// # Components
//
//   - CredentialVerifier - checks a password against the stored bcrypt hash
//   - TokenIssuer - mints and validates HS256 bearer tokens
//   - Registrar - validates and stores new users
//   - CookieSessions - opaque browser sessions with sliding expiry
//   - Orchestrator - admission, verification and minting as one transaction
//
// Constructors validate their dependencies and return an error rather than
// a partially usable value.
//
// # Errors
//
// Failures are oops errors with stable codes. Transports call Classify to
// map them onto an Outcome and RetryAfter to read the rate-limit hint.
// Unknown users and wrong passwords are indistinguishable
// (AUTH_BAD_CREDENTIALS). Only an unreachable store surfaces as
// AUTH_STORE_UNAVAILABLE.
//
// # Strategies
//
// BearerStrategy and CookieSessions both implement Strategy and resolve to
// the same Identity for the same user. Transports pick the strategy from
// the credential the caller presented.
package auth
