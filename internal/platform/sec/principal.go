// Copyright (c) 2026 Keyra. All rights reserved.
// Author: huy.tranquoc.dev@gmail.com

package sec

// Principal is the sanitized view of an authenticated identity.
//
// It is the only user representation allowed to cross the service boundary:
// it never carries the password hash or the stored refresh token. Middleware
// threads it through the request context so that handlers receive an explicit
// authenticated-request value rather than re-parsing tokens.
type Principal struct {
	UserID   string `json:"id"`
	Username string `json:"username"`
}
