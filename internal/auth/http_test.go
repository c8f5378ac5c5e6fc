// Copyright (c) 2026 Keyra. All rights reserved.
// Author: huy.tranquoc.dev@gmail.com

package auth_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tranqh/keyra/internal/auth"
	"github.com/tranqh/keyra/internal/platform/middleware"
)

// newAuthAPI wires the handler behind the same middleware chain the real
// server uses for token resolution.
func newAuthAPI(t *testing.T) (*serviceHarness, http.Handler) {
	t.Helper()

	h := newServiceHarness(t)

	router := chi.NewRouter()
	router.Use(middleware.Authenticate(h.service))
	router.Mount("/auth", auth.NewHandler(h.service).Routes())

	return h, router
}

// doJSON performs a JSON request and decodes the response body into a map.
func doJSON(t *testing.T, handler http.Handler, method, path, bearer string, body any) (int, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	request := httptest.NewRequest(method, path, reader)
	request.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		request.Header.Set("Authorization", "Bearer "+bearer)
	}

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	decoded := map[string]any{}
	if recorder.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &decoded))
	}
	return recorder.Code, decoded
}

// registerAndLogin drives the public endpoints and returns the token pair.
func registerAndLogin(t *testing.T, handler http.Handler, username, password string) (accessToken, refreshToken string) {
	t.Helper()

	status, _ := doJSON(t, handler, http.MethodPost, "/auth/register", "", map[string]string{
		"username": username,
		"password": password,
	})
	require.Equal(t, http.StatusCreated, status)

	status, body := doJSON(t, handler, http.MethodPost, "/auth/login", "", map[string]string{
		"username": username,
		"password": password,
	})
	require.Equal(t, http.StatusOK, status)

	data := body["data"].(map[string]any)
	return data["access_token"].(string), data["refresh_token"].(string)
}

// # Registration Endpoint

/*
TestHTTP_Register verifies the created response and its sanitized payload.
*/
func TestHTTP_Register(t *testing.T) {
	_, api := newAuthAPI(t)

	status, body := doJSON(t, api, http.MethodPost, "/auth/register", "", map[string]string{
		"username": "Alice",
		"password": "Str0ng!pass",
	})

	require.Equal(t, http.StatusCreated, status)

	data := body["data"].(map[string]any)
	assert.Equal(t, "alice", data["username"])
	assert.NotEmpty(t, data["id"])

	// Secrets never appear in the payload.
	assert.NotContains(t, data, "password")
	assert.NotContains(t, data, "refresh_token")
}

/*
TestHTTP_Register_Validation verifies the input rules on the register endpoint.
*/
func TestHTTP_Register_Validation(t *testing.T) {
	_, api := newAuthAPI(t)

	tests := []struct {
		name     string
		username string
		password string
	}{
		{"short_username", "al", "Str0ng!pass"},
		{"short_password", "alice", "S0!a"},
		{"weak_password", "alice", "weakpassword"},
		{"missing_username", "", "Str0ng!pass"},
		{"missing_password", "alice", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := doJSON(t, api, http.MethodPost, "/auth/register", "", map[string]string{
				"username": tt.username,
				"password": tt.password,
			})

			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, "VALIDATION_ERROR", body["code"])
		})
	}
}

/*
TestHTTP_Register_Duplicate verifies the conflict response.
*/
func TestHTTP_Register_Duplicate(t *testing.T) {
	_, api := newAuthAPI(t)

	payload := map[string]string{"username": "alice", "password": "Str0ng!pass"}

	status, _ := doJSON(t, api, http.MethodPost, "/auth/register", "", payload)
	require.Equal(t, http.StatusCreated, status)

	status, body := doJSON(t, api, http.MethodPost, "/auth/register", "", payload)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "CONFLICT", body["code"])
}

/*
TestHTTP_Register_InvalidJSON verifies the malformed-body response.
*/
func TestHTTP_Register_InvalidJSON(t *testing.T) {
	_, api := newAuthAPI(t)

	request := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewReader([]byte("{not json")))
	recorder := httptest.NewRecorder()
	api.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

// # Login Endpoint

/*
TestHTTP_Login verifies the issued token pair and user summary.
*/
func TestHTTP_Login(t *testing.T) {
	_, api := newAuthAPI(t)

	status, _ := doJSON(t, api, http.MethodPost, "/auth/register", "", map[string]string{
		"username": "alice",
		"password": "Str0ng!pass",
	})
	require.Equal(t, http.StatusCreated, status)

	status, body := doJSON(t, api, http.MethodPost, "/auth/login", "", map[string]string{
		"username": "alice",
		"password": "Str0ng!pass",
	})
	require.Equal(t, http.StatusOK, status)

	data := body["data"].(map[string]any)
	assert.NotEmpty(t, data["access_token"])
	assert.NotEmpty(t, data["refresh_token"])

	user := data["user"].(map[string]any)
	assert.Equal(t, "alice", user["username"])
}

/*
TestHTTP_Login_BadCredentials verifies the generic rejection: an unknown
username and a wrong password yield byte-identical error responses.
*/
func TestHTTP_Login_BadCredentials(t *testing.T) {
	_, api := newAuthAPI(t)

	status, _ := doJSON(t, api, http.MethodPost, "/auth/register", "", map[string]string{
		"username": "alice",
		"password": "Str0ng!pass",
	})
	require.Equal(t, http.StatusCreated, status)

	wrongPasswordStatus, wrongPasswordBody := doJSON(t, api, http.MethodPost, "/auth/login", "", map[string]string{
		"username": "alice",
		"password": "wrong-password",
	})
	unknownUserStatus, unknownUserBody := doJSON(t, api, http.MethodPost, "/auth/login", "", map[string]string{
		"username": "nobody",
		"password": "Str0ng!pass",
	})

	assert.Equal(t, http.StatusUnauthorized, wrongPasswordStatus)
	assert.Equal(t, http.StatusUnauthorized, unknownUserStatus)
	assert.Equal(t, wrongPasswordBody, unknownUserBody)
	assert.Equal(t, "Invalid credentials", wrongPasswordBody["error"])
}

// # Refresh Endpoint

/*
TestHTTP_Refresh verifies the access-token exchange, including the advertised
token metadata.
*/
func TestHTTP_Refresh(t *testing.T) {
	_, api := newAuthAPI(t)
	_, refreshToken := registerAndLogin(t, api, "alice", "Str0ng!pass")

	status, body := doJSON(t, api, http.MethodPost, "/auth/refresh", "", map[string]string{
		"refresh_token": refreshToken,
	})
	require.Equal(t, http.StatusOK, status)

	data := body["data"].(map[string]any)
	assert.NotEmpty(t, data["access_token"])
	assert.Equal(t, "Bearer", data["token_type"])
	assert.Equal(t, float64(60), data["expires_in"])
}

/*
TestHTTP_Refresh_Rejections verifies the missing and invalid token paths.
*/
func TestHTTP_Refresh_Rejections(t *testing.T) {
	_, api := newAuthAPI(t)

	status, body := doJSON(t, api, http.MethodPost, "/auth/refresh", "", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", body["code"])

	status, body = doJSON(t, api, http.MethodPost, "/auth/refresh", "", map[string]string{
		"refresh_token": "not-a-token",
	})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Invalid refresh token", body["error"])
}

// # Logout Endpoint

/*
TestHTTP_Logout verifies revocation through the API: the refresh token dies,
and the endpoint requires authentication.
*/
func TestHTTP_Logout(t *testing.T) {
	_, api := newAuthAPI(t)
	accessToken, refreshToken := registerAndLogin(t, api, "alice", "Str0ng!pass")

	// Unauthenticated logout is rejected.
	status, _ := doJSON(t, api, http.MethodPost, "/auth/logout", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body := doJSON(t, api, http.MethodPost, "/auth/logout", accessToken, nil)
	require.Equal(t, http.StatusOK, status)
	data := body["data"].(map[string]any)
	assert.Equal(t, "Logged out", data["message"])

	// The refresh token no longer matches any stored session.
	status, _ = doJSON(t, api, http.MethodPost, "/auth/refresh", "", map[string]string{
		"refresh_token": refreshToken,
	})
	assert.Equal(t, http.StatusUnauthorized, status)

	// Access tokens are stateless: a second logout still succeeds.
	status, _ = doJSON(t, api, http.MethodPost, "/auth/logout", accessToken, nil)
	assert.Equal(t, http.StatusOK, status)
}

// # Profile Endpoint

/*
TestHTTP_Profile verifies identity echo and the bearer-token guard.
*/
func TestHTTP_Profile(t *testing.T) {
	_, api := newAuthAPI(t)
	accessToken, _ := registerAndLogin(t, api, "alice", "Str0ng!pass")

	status, body := doJSON(t, api, http.MethodGet, "/auth/profile", accessToken, nil)
	require.Equal(t, http.StatusOK, status)

	data := body["data"].(map[string]any)
	assert.Equal(t, "alice", data["username"])
	assert.NotEmpty(t, data["id"])

	// No token at all.
	status, _ = doJSON(t, api, http.MethodGet, "/auth/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	// A token that fails verification.
	status, body = doJSON(t, api, http.MethodGet, "/auth/profile", "garbage-token", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Invalid or expired token", body["error"])
}

/*
TestHTTP_MalformedAuthorizationHeader verifies the header format guard.
*/
func TestHTTP_MalformedAuthorizationHeader(t *testing.T) {
	_, api := newAuthAPI(t)

	request := httptest.NewRequest(http.MethodGet, "/auth/profile", nil)
	request.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	recorder := httptest.NewRecorder()
	api.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Equal(t, "Invalid authorization format", body["error"])
}
