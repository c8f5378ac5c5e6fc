// Copyright (c) 2026 Keyra. All rights reserved.
// Author: huy.tranquoc.dev@gmail.com

package auth

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tranqh/keyra/internal/platform/apperr"
	"github.com/tranqh/keyra/internal/platform/middleware"
	requestutil "github.com/tranqh/keyra/internal/platform/request"
	"github.com/tranqh/keyra/internal/platform/respond"
	"github.com/tranqh/keyra/internal/platform/validate"
)

// # Definitions & Constructors

// Handler implements authentication-related HTTP endpoints.
type Handler struct {
	authService *Service
}

// NewHandler constructs a new [Handler] with its service dependency.
func NewHandler(service *Service) *Handler {
	return &Handler{authService: service}
}

// Routes returns a [chi.Router] configured with authentication-specific routes.
//
// # Endpoints
//   - POST /register : Creates a new account.
//   - POST /login    : Authenticates and returns a token pair.
//   - POST /refresh  : Exchanges a refresh token for a new access token.
//   - POST /logout   : Revokes the active session (authenticated).
//   - GET  /profile  : Returns the authenticated identity.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	// Public endpoints
	router.Post("/register", handler.register)
	router.Post("/login", handler.login)
	router.Post("/refresh", handler.refresh)

	// Protected endpoints
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Post("/logout", handler.logout)
		r.Get("/profile", handler.profile)
	})

	return router
}

// # Request Payloads

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

/*
Register handles the creation of a new user account.

POST /api/v1/auth/register

Description: Validates input, enforces password strength, and persists a new
user account. Does not establish a session.

Request:
  - Body: registerRequest (Username, Password)

Response:
  - 201: Principal: Created user identity
  - 400: ErrInvalidJSON: Bad input or validation failure
  - 409: ErrConflict: Username already exists
*/
func (handler *Handler) register(writer http.ResponseWriter, request *http.Request) {
	var input registerRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldUsername, input.Username).
		MinLen(FieldUsername, input.Username, 3).
		Required(FieldPassword, input.Password).
		MinLen(FieldPassword, input.Password, 8).
		Password(FieldPassword, input.Password)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	principal, err := handler.authService.Register(request.Context(), input.Username, input.Password)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, principal)
}

/*
Login authenticates a user and establishes a session.

POST /api/v1/auth/login

Description: Validates credentials then issues an access/refresh token pair,
superseding any previously active session for the account.

Request:
  - Body: loginRequest (Username, Password)

Response:
  - 200: LoginResult: Access token, refresh token, and user summary
  - 401: ErrUnauthorized: Invalid credentials (generic on purpose)
  - 429: ErrRateLimited: Too many failed attempts for this username
*/
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	var input loginRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldUsername, input.Username)
	validator.Required(FieldPassword, input.Password)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	// Credential check and token issuance are separate operations: only a
	// validated principal may be handed to Login.
	principal, err := handler.authService.ValidateCredentials(request.Context(), input.Username, input.Password)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	if principal == nil {
		respond.Error(writer, request, apperr.Unauthorized("Invalid credentials"))
		return
	}

	result, err := handler.authService.Login(request.Context(), principal)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]any{
		FieldAccessToken:  result.AccessToken,
		FieldRefreshToken: result.RefreshToken,
		FieldUser:         result.User,
	})
}

/*
Refresh issues a new access token using a valid refresh token.

POST /api/v1/auth/refresh

Description: Verifies the presented refresh token against both its signature
and the stored session slot, then mints a fresh access token. The refresh
token itself is returned unchanged by policy (no rotation).

Request:
  - Body: refreshRequest (RefreshToken)

Response:
  - 200: RefreshResponse: New access token credentials
  - 401: ErrUnauthorized: Missing, invalid, expired, or superseded token
*/
func (handler *Handler) refresh(writer http.ResponseWriter, request *http.Request) {
	var input refreshRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	if input.RefreshToken == "" {
		respond.Error(writer, request, validate.RequiredError(FieldRefreshToken, "is required"))
		return
	}

	accessToken, err := handler.authService.Refresh(request.Context(), input.RefreshToken)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]any{
		FieldAccessToken: accessToken,
		FieldTokenType:   "Bearer",
		FieldExpiresIn:   handler.authService.AccessTokenTTL() / time.Second,
	})
}

/*
Logout terminates the current user session.

POST /api/v1/auth/logout

Description: Clears the stored refresh token for the authenticated user.
Idempotent — logging out with no active session still succeeds.

Response:
  - 200: Success: Confirmation message
  - 401: ErrUnauthorized: Authentication required
*/
func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {
	principal, err := requestutil.RequiredPrincipal(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.Logout(request.Context(), principal.UserID); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{
		FieldMessage: "Logged out",
	})
}

/*
Profile returns the authenticated user's identity.

GET /api/v1/auth/profile

Description: Echoes the principal resolved by the authentication middleware.
Because authorization re-reads the user record, the response reflects the
live account state, not the token's embedded claims.

Response:
  - 200: Principal: Authenticated identity
  - 401: ErrUnauthorized: Authentication required
*/
func (handler *Handler) profile(writer http.ResponseWriter, request *http.Request) {
	principal, err := requestutil.RequiredPrincipal(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, principal)
}
