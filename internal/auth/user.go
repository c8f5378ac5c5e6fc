// Copyright (c) 2026 Keyra. All rights reserved.
// Author: huy.tranquoc.dev@gmail.com

package auth

import (
	"time"

	"github.com/tranqh/keyra/internal/platform/sec"
)

// # Domain Entities

// User represents a registered Keyra account.
//
// RefreshToken is the single mutable session slot: at most one refresh token
// is valid per user at any time. Login sets it (superseding any previous
// session), refresh compares against it, logout clears it. Both secret
// fields are explicitly omitted from JSON.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	RefreshToken *string   `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Principal returns the sanitized view of the user, safe to cross the
// service boundary.
func (user *User) Principal() *sec.Principal {
	return &sec.Principal{
		UserID:   user.ID,
		Username: user.Username,
	}
}

// # Field Identifiers

// Global field names for validation and identity mapping in the authentication domain.
const (
	FieldUsername     = "username"
	FieldPassword     = "password"
	FieldRefreshToken = "refresh_token"
	FieldAccessToken  = "access_token"
	FieldTokenType    = "token_type"
	FieldExpiresIn    = "expires_in"
	FieldUser         = "user"
	FieldMessage      = "message"
)
