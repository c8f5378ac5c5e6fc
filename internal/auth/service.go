// Copyright (c) 2026 Keyra. All rights reserved.
// Author: huy.tranquoc.dev@gmail.com

/*
Package auth implements the core identity and access management system.

It handles user registration, secure password hashing, and the token
lifecycle: issuing JWT access/refresh pairs, exchanging refresh tokens for
new access tokens, and revoking the active session on logout.

Architecture:

  - Service: Orchestrates business logic (Register, Login, Refresh, Authorize).
  - Repository: Abstracted interfaces for Postgres (Users) and Redis (Throttle).
  - Security: Leverages bcrypt and HMAC-signed JWTs via the sec package.

The package ensures that identity data remains consistent and secure
throughout the platform's lifecycle.
*/
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/tranqh/keyra/internal/platform/apperr"
	"github.com/tranqh/keyra/internal/platform/ctxutil"
	"github.com/tranqh/keyra/internal/platform/sec"
	"github.com/tranqh/keyra/pkg/username"
	"github.com/tranqh/keyra/pkg/uuid"
)

// # Contracts & Types

// TokenProvider defines the contract for generating and verifying security tokens.
type TokenProvider interface {
	// GenerateAccessToken creates a signed JWT string for the given user.
	GenerateAccessToken(userID, name string, timeToLive time.Duration) (string, error)

	// GenerateRefreshToken creates a signed JWT refresh token for the given user.
	GenerateRefreshToken(userID, name string, timeToLive time.Duration) (string, error)

	// VerifyAccessToken checks signature and expiry of an access token.
	VerifyAccessToken(tokenString string) (*sec.AuthClaims, error)

	// VerifyRefreshToken checks signature and expiry of a refresh token.
	VerifyRefreshToken(tokenString string) (*sec.AuthClaims, error)
}

// PasswordHasher defines the contract for the salted, deliberately slow
// password hashing primitive.
type PasswordHasher interface {
	// Hash hashes a plain-text password.
	Hash(ctx context.Context, plainTextPassword string) (string, error)

	// Verify compares a plain-text password against a stored hash.
	// Malformed hash input reports false, never an error.
	Verify(ctx context.Context, plainTextPassword, existingHash string) bool
}

// Options tunes the token lifecycle. Zero values fall back to the package defaults.
type Options struct {
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	LoginAttemptLimit  int
	LoginAttemptWindow time.Duration
}

// Service implements the authentication and token lifecycle use cases.
//
// # Review Process
//
// This service is critical for security. Any changes to hashing, registration,
// or token logic must be reviewed by the security team.
type Service struct {
	userRepository    UserRepository
	attemptRepository LoginAttemptRepository
	tokenProvider     TokenProvider
	hasher            PasswordHasher
	options           Options
}

// NewService constructs a new [Service] with necessary dependencies.
func NewService(
	userRepo UserRepository,
	attemptRepo LoginAttemptRepository,
	tokenProv TokenProvider,
	hasher PasswordHasher,
	options Options,
) *Service {
	if options.AccessTokenTTL <= 0 {
		options.AccessTokenTTL = DefaultAccessTokenTTL
	}
	if options.RefreshTokenTTL <= 0 {
		options.RefreshTokenTTL = DefaultRefreshTokenTTL
	}
	if options.LoginAttemptLimit <= 0 {
		options.LoginAttemptLimit = DefaultLoginAttemptLimit
	}
	if options.LoginAttemptWindow <= 0 {
		options.LoginAttemptWindow = DefaultLoginAttemptWindow
	}
	return &Service{
		userRepository:    userRepo,
		attemptRepository: attemptRepo,
		tokenProvider:     tokenProv,
		hasher:            hasher,
		options:           options,
	}
}

// AccessTokenTTL reports the configured access-token lifetime.
// Exposed so the transport layer can advertise expires_in.
func (service *Service) AccessTokenTTL() time.Duration {
	return service.options.AccessTokenTTL
}

// # Registration Flow

/*
Register validates, hashes, and persists a brand new user account.

Description: Hashes the password before anything touches the store (the
plaintext is never persisted or logged) and inserts the account. Duplicate
detection happens atomically at the storage layer. Registration does NOT
log the user in; the caller decides whether to chain a login.

Parameters:
  - context: context.Context
  - name: string (raw username, canonicalized here)
  - password: string

Returns:
  - *sec.Principal: Sanitized created identity
  - error: apperr.Conflict (if the username exists) or storage errors
*/
func (service *Service) Register(context context.Context, name, password string) (*sec.Principal, error) {

	canonical := username.Normalize(name)

	// Prevent storing plain-text passwords. Cost is configured for balance
	// between security and CPU utilization during registration spikes.
	hashedPassword, err := service.hasher.Hash(context, password)
	if err != nil {
		return nil, fmt.Errorf("auth_service_hash_failed: %w", err)
	}

	// Construct the new User entity. Time-sortable ID to prevent PG index fragmentation.
	user := &User{
		ID:           uuid.New(),
		Username:     canonical,
		PasswordHash: hashedPassword,
	}

	// Persist the user to the database. A concurrent registration of the
	// same username loses the race inside Postgres and surfaces as Conflict.
	if err := service.userRepository.Create(context, user); err != nil {
		if apperr.IsAppError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("auth_service_register_failed: %w", err)
	}

	return user.Principal(), nil
}

// # Authentication Flow

/*
ValidateCredentials checks a username/password pair.

Description: Looks the user up by canonical username and performs the bcrypt
comparison. An unknown username and a wrong password are deliberately
indistinguishable: both return a nil principal with a nil error, preventing
username enumeration. Only infrastructure faults produce an error.

A Redis-backed failure counter throttles repeated misses per username; past
the limit the call fails fast with apperr.RateLimited before bcrypt runs.

Parameters:
  - context: context.Context
  - name: string
  - password: string

Returns:
  - *sec.Principal: Sanitized identity on success, nil on credential mismatch
  - err: apperr.RateLimited or internal failures
*/
func (service *Service) ValidateCredentials(context context.Context, name, password string) (*sec.Principal, error) {

	canonical := username.Normalize(name)

	// Fail fast when this username is being hammered. Throttle reads degrade
	// open: a Redis fault must not lock every user out.
	if count, err := service.attemptRepository.Count(context, canonical); err == nil {
		if count >= int64(service.options.LoginAttemptLimit) {
			return nil, apperr.RateLimited(int(service.options.LoginAttemptWindow.Seconds()))
		}
	} else {
		ctxutil.GetLogger(context).WarnContext(context, "login_throttle_read_failed", slog.Any("error", err))
	}

	user, err := service.userRepository.FindByUsername(context, canonical)
	if err != nil {
		if isNotFound(err) {
			// Unknown username. Same outcome as a wrong password.
			return nil, nil
		}
		return nil, fmt.Errorf("auth_service_lookup_failed: %w", err)
	}

	// Constant-time comparison inside bcrypt prevents timing attacks.
	if !service.hasher.Verify(context, password, user.PasswordHash) {
		if _, err := service.attemptRepository.Record(context, canonical); err != nil {
			ctxutil.GetLogger(context).WarnContext(context, "login_throttle_record_failed", slog.Any("error", err))
		}
		return nil, nil
	}

	// Successful login clears the failure counter.
	if err := service.attemptRepository.Reset(context, canonical); err != nil {
		ctxutil.GetLogger(context).WarnContext(context, "login_throttle_reset_failed", slog.Any("error", err))
	}

	return user.Principal(), nil
}

// LoginResult represents a successfully established session.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	User         *sec.Principal
}

/*
Login issues an access/refresh token pair for an already-validated principal.

Description: The caller must have validated credentials first (via
[Service.ValidateCredentials]); Login itself performs no password check.
The refresh token string is persisted verbatim into the user's single
session slot, overwriting whatever was there — a new login invalidates any
refresh token issued by a previous session.

Parameters:
  - context: context.Context
  - principal: *sec.Principal

Returns:
  - *LoginResult: Both tokens plus the minimal user summary
  - err: Token generation or storage failures
*/
func (service *Service) Login(context context.Context, principal *sec.Principal) (*LoginResult, error) {

	// Generate short-lived Access Token
	accessToken, err := service.tokenProvider.GenerateAccessToken(principal.UserID, principal.Username, service.options.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("auth_service_access_token_failed: %w", err)
	}

	// Generate long-lived Refresh Token
	refreshToken, err := service.tokenProvider.GenerateRefreshToken(principal.UserID, principal.Username, service.options.RefreshTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("auth_service_refresh_token_failed: %w", err)
	}

	// Persist the refresh token, superseding any previous session.
	if err := service.userRepository.SetRefreshToken(context, principal.UserID, refreshToken); err != nil {
		return nil, fmt.Errorf("auth_service_store_refresh_token_failed: %w", err)
	}

	return &LoginResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         principal,
	}, nil
}

// # Session Management

/*
Refresh exchanges a valid refresh token for a new access token.

Description: Verifies the token's signature and expiry, resolves its subject
against the live user record, and requires the presented string to exactly
match the stored session slot. The stored-slot comparison is the system's
only revocation mechanism: a token superseded by a newer login, or cleared
by logout, no longer matches and is rejected. The refresh token itself is
not rotated.

Parameters:
  - context: context.Context
  - refreshToken: string

Returns:
  - string: Freshly minted access token
  - err: apperr.Unauthorized for any invalid/expired/superseded token,
    or internal failures
*/
func (service *Service) Refresh(context context.Context, refreshToken string) (string, error) {

	// Signature and expiry check with the refresh secret.
	claims, err := service.tokenProvider.VerifyRefreshToken(refreshToken)
	if err != nil {
		return "", apperr.Unauthorized("Invalid refresh token")
	}

	// Resolve the subject against the live record. A deleted user means the
	// token is dead regardless of its own validity.
	user, err := service.userRepository.FindByID(context, claims.Subject)
	if err != nil {
		if isNotFound(err) {
			return "", apperr.Unauthorized("Invalid refresh token")
		}
		return "", fmt.Errorf("auth_service_refresh_lookup_failed: %w", err)
	}

	// The stored slot must hold exactly this string. Anything else — an
	// empty slot after logout, or a different token after a newer login —
	// is a superseded session.
	if user.RefreshToken == nil || *user.RefreshToken != refreshToken {
		return "", apperr.Unauthorized("Invalid refresh token")
	}

	// Issue a fresh Access Token only; the refresh token stays as-is.
	accessToken, err := service.tokenProvider.GenerateAccessToken(user.ID, user.Username, service.options.AccessTokenTTL)
	if err != nil {
		return "", fmt.Errorf("auth_service_refresh_access_token_failed: %w", err)
	}

	return accessToken, nil
}

/*
Logout revokes the user's active refresh session.

Description: Unconditionally clears the stored refresh-token slot. Logging
out a user with no active session is a no-op, not an error. Outstanding
access tokens are stateless and expire on their own schedule.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - err: Persistence failures
*/
func (service *Service) Logout(context context.Context, userID string) error {
	if err := service.userRepository.ClearRefreshToken(context, userID); err != nil {
		return fmt.Errorf("auth_service_logout_failed: %w", err)
	}
	return nil
}

// # Request Authorization

/*
Authorize resolves an access token into an authenticated principal.

Description: Verifies signature and expiry with the access secret, then
re-resolves the subject claim against the current user record rather than
trusting possibly-stale claim data. Any verification failure, and a subject
that no longer exists, yield a nil principal.

Parameters:
  - context: context.Context
  - accessToken: string

Returns:
  - *sec.Principal: Sanitized live identity, or nil when unauthorized
  - err: Internal failures only
*/
func (service *Service) Authorize(context context.Context, accessToken string) (*sec.Principal, error) {

	claims, err := service.tokenProvider.VerifyAccessToken(accessToken)
	if err != nil {
		return nil, nil
	}

	user, err := service.userRepository.FindByID(context, claims.Subject)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("auth_service_authorize_lookup_failed: %w", err)
	}

	return user.Principal(), nil
}

// isNotFound reports whether err is the repository's miss signal.
func isNotFound(err error) bool {
	appError := apperr.As(err)
	return appError != nil && appError.HTTPStatus == http.StatusNotFound
}
