// Copyright (c) 2026 Keyra. All rights reserved.
// Author: huy.tranquoc.dev@gmail.com

package auth_test

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tranqh/keyra/internal/auth"
	"github.com/tranqh/keyra/internal/platform/apperr"
	"github.com/tranqh/keyra/internal/platform/sec"
)

// # Test Fakes

// memoryUserRepository is an in-memory UserRepository used for service tests.
type memoryUserRepository struct {
	mu    sync.Mutex
	users map[string]*auth.User // keyed by ID
}

func newMemoryUserRepository() *memoryUserRepository {
	return &memoryUserRepository{users: make(map[string]*auth.User)}
}

func (repository *memoryUserRepository) Create(_ context.Context, user *auth.User) error {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	for _, existing := range repository.users {
		if existing.Username == user.Username {
			return apperr.Conflict("Username already exists")
		}
	}

	stored := *user
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt
	repository.users[user.ID] = &stored
	return nil
}

func (repository *memoryUserRepository) FindByID(_ context.Context, id string) (*auth.User, error) {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	user, ok := repository.users[id]
	if !ok {
		return nil, apperr.NotFound("User")
	}
	copied := *user
	return &copied, nil
}

func (repository *memoryUserRepository) FindByUsername(_ context.Context, username string) (*auth.User, error) {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	for _, user := range repository.users {
		if user.Username == username {
			copied := *user
			return &copied, nil
		}
	}
	return nil, apperr.NotFound("User")
}

func (repository *memoryUserRepository) SetRefreshToken(_ context.Context, userID, token string) error {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	user, ok := repository.users[userID]
	if !ok {
		return apperr.NotFound("User")
	}
	user.RefreshToken = &token
	user.UpdatedAt = time.Now()
	return nil
}

func (repository *memoryUserRepository) ClearRefreshToken(_ context.Context, userID string) error {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	user, ok := repository.users[userID]
	if !ok {
		return nil // idempotent, mirrors the SQL UPDATE touching zero rows
	}
	user.RefreshToken = nil
	user.UpdatedAt = time.Now()
	return nil
}

func (repository *memoryUserRepository) delete(userID string) {
	repository.mu.Lock()
	defer repository.mu.Unlock()
	delete(repository.users, userID)
}

// memoryAttemptRepository is an in-memory LoginAttemptRepository.
type memoryAttemptRepository struct {
	mu     sync.Mutex
	counts map[string]int64
}

func newMemoryAttemptRepository() *memoryAttemptRepository {
	return &memoryAttemptRepository{counts: make(map[string]int64)}
}

func (repository *memoryAttemptRepository) Record(_ context.Context, username string) (int64, error) {
	repository.mu.Lock()
	defer repository.mu.Unlock()
	repository.counts[username]++
	return repository.counts[username], nil
}

func (repository *memoryAttemptRepository) Count(_ context.Context, username string) (int64, error) {
	repository.mu.Lock()
	defer repository.mu.Unlock()
	return repository.counts[username], nil
}

func (repository *memoryAttemptRepository) Reset(_ context.Context, username string) error {
	repository.mu.Lock()
	defer repository.mu.Unlock()
	delete(repository.counts, username)
	return nil
}

// # Harness

type serviceHarness struct {
	service  *auth.Service
	users    *memoryUserRepository
	attempts *memoryAttemptRepository
	tokens   *sec.TokenService
}

// newServiceHarness wires a Service against in-memory stores with a real
// hasher (minimum cost, tests must stay fast) and real token service.
func newServiceHarness(t *testing.T) *serviceHarness {
	t.Helper()

	tokens, err := sec.NewTokenService("test-access-secret", "test-refresh-secret", "keyra-test")
	require.NoError(t, err)

	users := newMemoryUserRepository()
	attempts := newMemoryAttemptRepository()

	service := auth.NewService(users, attempts, tokens, sec.NewHasher(bcrypt.MinCost, 2), auth.Options{
		AccessTokenTTL:     time.Minute,
		RefreshTokenTTL:    time.Hour,
		LoginAttemptLimit:  3,
		LoginAttemptWindow: time.Minute,
	})

	return &serviceHarness{
		service:  service,
		users:    users,
		attempts: attempts,
		tokens:   tokens,
	}
}

// register is a shortcut that fails the test on registration errors.
func (h *serviceHarness) register(t *testing.T, name, password string) *sec.Principal {
	t.Helper()
	principal, err := h.service.Register(context.Background(), name, password)
	require.NoError(t, err)
	require.NotNil(t, principal)
	return principal
}

// # Registration

/*
TestService_Register verifies account creation and the sanitized result.
*/
func TestService_Register(t *testing.T) {
	h := newServiceHarness(t)

	principal := h.register(t, "alice", "Str0ng!pass")

	assert.NotEmpty(t, principal.UserID)
	assert.Equal(t, "alice", principal.Username)

	// The stored record carries a hash, never the plaintext.
	user, err := h.users.FindByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.NotEmpty(t, user.PasswordHash)
	assert.NotEqual(t, "Str0ng!pass", user.PasswordHash)

	// Registration does not establish a session.
	assert.Nil(t, user.RefreshToken)
}

/*
TestService_Register_Duplicate verifies the uniqueness conflict.
*/
func TestService_Register_Duplicate(t *testing.T) {
	h := newServiceHarness(t)

	h.register(t, "alice", "Str0ng!pass")

	principal, err := h.service.Register(context.Background(), "alice", "0ther!Pass")
	require.Error(t, err)
	assert.Nil(t, principal)

	ae := apperr.As(err)
	require.NotNil(t, ae)
	assert.Equal(t, "CONFLICT", ae.Code)
	assert.Equal(t, http.StatusConflict, ae.HTTPStatus)
}

/*
TestService_Register_NormalizesUsername verifies that visually equivalent
usernames collapse onto one canonical account.
*/
func TestService_Register_NormalizesUsername(t *testing.T) {
	h := newServiceHarness(t)

	principal := h.register(t, "  Alice  ", "Str0ng!pass")
	assert.Equal(t, "alice", principal.Username)

	// Full-width letters fold onto the same key.
	_, err := h.service.Register(context.Background(), "ＡＬＩＣＥ", "Str0ng!pass")
	require.Error(t, err)
	assert.Equal(t, "CONFLICT", apperr.As(err).Code)
}

// # Credential Validation

/*
TestService_ValidateCredentials verifies the success path and that lookup is
case-insensitive via canonicalization.
*/
func TestService_ValidateCredentials(t *testing.T) {
	h := newServiceHarness(t)
	registered := h.register(t, "alice", "Str0ng!pass")

	principal, err := h.service.ValidateCredentials(context.Background(), "ALICE", "Str0ng!pass")
	require.NoError(t, err)
	require.NotNil(t, principal)
	assert.Equal(t, registered.UserID, principal.UserID)
}

/*
TestService_ValidateCredentials_Mismatch verifies that a wrong password and
an unknown username produce the exact same outcome.
*/
func TestService_ValidateCredentials_Mismatch(t *testing.T) {
	h := newServiceHarness(t)
	h.register(t, "alice", "Str0ng!pass")

	tests := []struct {
		name     string
		username string
		password string
	}{
		{"wrong_password", "alice", "wrong-password"},
		{"unknown_username", "nobody", "Str0ng!pass"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			principal, err := h.service.ValidateCredentials(context.Background(), tt.username, tt.password)
			assert.NoError(t, err)
			assert.Nil(t, principal)
		})
	}
}

/*
TestService_ValidateCredentials_Throttle verifies the failure counter: past
the limit the call is rejected before the password is even checked, and a
successful login clears the counter.
*/
func TestService_ValidateCredentials_Throttle(t *testing.T) {
	h := newServiceHarness(t)
	h.register(t, "alice", "Str0ng!pass")
	ctx := context.Background()

	// Burn through the limit with wrong passwords.
	for i := 0; i < 3; i++ {
		principal, err := h.service.ValidateCredentials(ctx, "alice", "wrong-password")
		require.NoError(t, err)
		require.Nil(t, principal)
	}

	// Even the correct password is now rejected.
	principal, err := h.service.ValidateCredentials(ctx, "alice", "Str0ng!pass")
	require.Error(t, err)
	assert.Nil(t, principal)
	assert.Equal(t, "RATE_LIMITED", apperr.As(err).Code)

	// Simulate the window elapsing, then succeed and verify the reset.
	require.NoError(t, h.attempts.Reset(ctx, "alice"))

	principal, err = h.service.ValidateCredentials(ctx, "alice", "Str0ng!pass")
	require.NoError(t, err)
	require.NotNil(t, principal)

	count, err := h.attempts.Count(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, count)
}

// # Session Lifecycle

/*
TestService_Login verifies token issuance and refresh-token persistence.
*/
func TestService_Login(t *testing.T) {
	h := newServiceHarness(t)
	principal := h.register(t, "alice", "Str0ng!pass")
	ctx := context.Background()

	result, err := h.service.Login(ctx, principal)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.NotEmpty(t, result.AccessToken)
	assert.NotEmpty(t, result.RefreshToken)
	assert.Equal(t, principal.UserID, result.User.UserID)

	// The access token resolves back to the same identity.
	claims, err := h.tokens.VerifyAccessToken(result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, principal.UserID, claims.Subject)

	// The refresh token is stored verbatim in the session slot.
	user, err := h.users.FindByID(ctx, principal.UserID)
	require.NoError(t, err)
	require.NotNil(t, user.RefreshToken)
	assert.Equal(t, result.RefreshToken, *user.RefreshToken)
}

/*
TestService_Refresh verifies the exchange of a valid refresh token for a new
access token, without rotating the refresh token itself.
*/
func TestService_Refresh(t *testing.T) {
	h := newServiceHarness(t)
	principal := h.register(t, "alice", "Str0ng!pass")
	ctx := context.Background()

	result, err := h.service.Login(ctx, principal)
	require.NoError(t, err)

	// Token timestamps have second resolution; step past them so the
	// refreshed access token observably differs from the login one.
	time.Sleep(1100 * time.Millisecond)

	accessToken, err := h.service.Refresh(ctx, result.RefreshToken)
	require.NoError(t, err)
	require.NotEmpty(t, accessToken)
	assert.NotEqual(t, result.AccessToken, accessToken)

	claims, err := h.tokens.VerifyAccessToken(accessToken)
	require.NoError(t, err)
	assert.Equal(t, principal.UserID, claims.Subject)
	assert.Equal(t, "alice", claims.Username)

	// The stored slot is untouched: the same refresh token works again.
	_, err = h.service.Refresh(ctx, result.RefreshToken)
	assert.NoError(t, err)

	user, err := h.users.FindByID(ctx, principal.UserID)
	require.NoError(t, err)
	require.NotNil(t, user.RefreshToken)
	assert.Equal(t, result.RefreshToken, *user.RefreshToken)
}

/*
TestService_Refresh_Invalid verifies rejection of tokens that fail signature,
expiry, or stored-slot checks. All failure modes share one generic error.
*/
func TestService_Refresh_Invalid(t *testing.T) {
	h := newServiceHarness(t)
	principal := h.register(t, "alice", "Str0ng!pass")
	ctx := context.Background()

	_, err := h.service.Login(ctx, principal)
	require.NoError(t, err)

	expired, err := h.tokens.GenerateRefreshToken(principal.UserID, "alice", -time.Minute)
	require.NoError(t, err)

	// Structurally valid and correctly signed, but never stored. Token
	// timestamps have second resolution; step past the login token's second
	// so this token cannot be byte-identical to the stored slot.
	time.Sleep(1100 * time.Millisecond)
	unstored, err := h.tokens.GenerateRefreshToken(principal.UserID, "alice", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"expired", expired},
		{"not_in_slot", unstored},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			accessToken, err := h.service.Refresh(ctx, tt.token)
			require.Error(t, err)
			assert.Empty(t, accessToken)

			ae := apperr.As(err)
			require.NotNil(t, ae)
			assert.Equal(t, http.StatusUnauthorized, ae.HTTPStatus)
			assert.Equal(t, "Invalid refresh token", ae.Message)
		})
	}
}

/*
TestService_Refresh_SupersededSession verifies that a second login replaces
the stored refresh token, killing the first session.
*/
func TestService_Refresh_SupersededSession(t *testing.T) {
	h := newServiceHarness(t)
	principal := h.register(t, "alice", "Str0ng!pass")
	ctx := context.Background()

	first, err := h.service.Login(ctx, principal)
	require.NoError(t, err)

	// A later login overwrites the single session slot. The refresh token
	// embeds second-resolution timestamps, so step past them to guarantee
	// the two tokens differ.
	time.Sleep(1100 * time.Millisecond)
	second, err := h.service.Login(ctx, principal)
	require.NoError(t, err)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)

	_, err = h.service.Refresh(ctx, first.RefreshToken)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, apperr.As(err).HTTPStatus)

	_, err = h.service.Refresh(ctx, second.RefreshToken)
	assert.NoError(t, err)
}

/*
TestService_Logout verifies revocation and idempotency.
*/
func TestService_Logout(t *testing.T) {
	h := newServiceHarness(t)
	principal := h.register(t, "alice", "Str0ng!pass")
	ctx := context.Background()

	result, err := h.service.Login(ctx, principal)
	require.NoError(t, err)

	require.NoError(t, h.service.Logout(ctx, principal.UserID))

	// The refresh token is dead even though it is still within its TTL.
	_, err = h.service.Refresh(ctx, result.RefreshToken)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, apperr.As(err).HTTPStatus)

	// Logging out again is a no-op, not an error.
	assert.NoError(t, h.service.Logout(ctx, principal.UserID))
}

// # Authorization

/*
TestService_Authorize verifies access-token resolution against the live
user record.
*/
func TestService_Authorize(t *testing.T) {
	h := newServiceHarness(t)
	principal := h.register(t, "alice", "Str0ng!pass")
	ctx := context.Background()

	result, err := h.service.Login(ctx, principal)
	require.NoError(t, err)

	resolved, err := h.service.Authorize(ctx, result.AccessToken)
	require.NoError(t, err)
	require.NotNil(t, resolved)
	assert.Equal(t, principal.UserID, resolved.UserID)
	assert.Equal(t, "alice", resolved.Username)
}

/*
TestService_Authorize_Rejections verifies that bad tokens and dead accounts
resolve to an anonymous (nil) principal without an error.
*/
func TestService_Authorize_Rejections(t *testing.T) {
	h := newServiceHarness(t)
	principal := h.register(t, "alice", "Str0ng!pass")
	ctx := context.Background()

	expired, err := h.tokens.GenerateAccessToken(principal.UserID, "alice", -time.Minute)
	require.NoError(t, err)

	// A refresh token is not an access token.
	wrongKind, err := h.tokens.GenerateRefreshToken(principal.UserID, "alice", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"expired", expired},
		{"refresh_token", wrongKind},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolved, err := h.service.Authorize(ctx, tt.token)
			assert.NoError(t, err)
			assert.Nil(t, resolved)
		})
	}

	// A valid token whose subject no longer exists is equally anonymous.
	valid, err := h.tokens.GenerateAccessToken(principal.UserID, "alice", time.Minute)
	require.NoError(t, err)

	h.users.delete(principal.UserID)

	resolved, err := h.service.Authorize(ctx, valid)
	assert.NoError(t, err)
	assert.Nil(t, resolved)
}

// # End-to-End Lifecycle

/*
TestService_FullLifecycle walks the canonical register, login, refresh,
logout sequence.
*/
func TestService_FullLifecycle(t *testing.T) {
	h := newServiceHarness(t)
	ctx := context.Background()

	// Register
	registered, err := h.service.Register(ctx, "bob", "Str0ng!pass")
	require.NoError(t, err)

	// Login
	principal, err := h.service.ValidateCredentials(ctx, "bob", "Str0ng!pass")
	require.NoError(t, err)
	require.NotNil(t, principal)
	assert.Equal(t, registered.UserID, principal.UserID)

	session, err := h.service.Login(ctx, principal)
	require.NoError(t, err)

	// Authorized request
	resolved, err := h.service.Authorize(ctx, session.AccessToken)
	require.NoError(t, err)
	require.NotNil(t, resolved)

	// Refresh
	accessToken, err := h.service.Refresh(ctx, session.RefreshToken)
	require.NoError(t, err)
	require.NotEmpty(t, accessToken)

	// Logout kills the refresh path but not outstanding access tokens.
	require.NoError(t, h.service.Logout(ctx, principal.UserID))

	_, err = h.service.Refresh(ctx, session.RefreshToken)
	assert.Error(t, err)

	resolved, err = h.service.Authorize(ctx, accessToken)
	require.NoError(t, err)
	assert.NotNil(t, resolved)
}
