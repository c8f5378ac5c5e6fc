// Copyright (c) 2026 Keyra. All rights reserved.
// Author: huy.tranquoc.dev@gmail.com

package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/tranqh/keyra/internal/platform/apperr"
	"github.com/tranqh/keyra/internal/platform/ctxutil"
	"github.com/tranqh/keyra/internal/platform/respond"
	"github.com/tranqh/keyra/internal/platform/sec"
)

// Authorizer resolves a bearer token into an authenticated principal.
//
// # Why an interface?
//
// Defining Authorizer here decouples the middleware from the `auth` service
// implementation, allowing us to easily inject mocks during unit testing.
// The implementation is expected to re-resolve the token's subject against
// the live user record, not merely trust the embedded claims, so that a
// deleted account loses access immediately.
type Authorizer interface {
	Authorize(ctx context.Context, accessToken string) (*sec.Principal, error)
}

// Authenticate extracts and verifies the JWT from the Authorization header.
//
// # Flow
//  1. Check for 'Authorization: Bearer <token>' header.
//  2. If absent, request proceeds as anonymous.
//  3. If present, resolve the token via [Authorizer].
//  4. Inject the [*sec.Principal] into the request context for downstream use.
func Authenticate(authorizer Authorizer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			authHeader := request.Header.Get("Authorization")

			// ── 1. Anonymous Access ───────────────────────────────────────────
			if authHeader == "" {
				next.ServeHTTP(writer, request)
				return
			}

			// ── 2. Format Validation ──────────────────────────────────────────
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				respond.Error(writer, request, apperr.Unauthorized("Invalid authorization format"))
				return
			}

			// ── 3. Token Resolution ───────────────────────────────────────────
			principal, err := authorizer.Authorize(request.Context(), parts[1])
			if err != nil {
				respond.Error(writer, request, err)
				return
			}
			if principal == nil {
				respond.Error(writer, request, apperr.Unauthorized("Invalid or expired token"))
				return
			}

			// ── 4. Context Injection ──────────────────────────────────────────
			ctx := ctxutil.WithPrincipal(request.Context(), principal)
			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

// RequireAuth blocks requests that are not authenticated.
//
// # Usage
//
// Must be registered in the router AFTER [Authenticate].
//
// # Flow
//  1. Check if a [*sec.Principal] exists in context.
//  2. If missing, abort with HTTP 401 Unauthorized.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		principal := ctxutil.GetPrincipal(request.Context())
		if principal == nil {
			respond.Error(writer, request, apperr.Unauthorized("Authentication required"))
			return
		}
		next.ServeHTTP(writer, request)
	})
}
