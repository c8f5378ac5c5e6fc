// Copyright (c) 2026 Keyra. All rights reserved.
// Author: huy.tranquoc.dev@gmail.com

package auth

import "time"

// # Authentication Constraints

const (
	// DefaultAccessTokenTTL is the duration a JWT access token remains valid.
	// We keep it short (15m) to minimize the impact of a leaked token.
	DefaultAccessTokenTTL = 15 * time.Minute

	// DefaultRefreshTokenTTL is the duration a refresh token remains valid.
	// Long-lived (7 days) to provide a good user experience.
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour

	// DefaultLoginAttemptLimit is the number of failed logins tolerated per
	// username within the attempt window before throttling kicks in.
	DefaultLoginAttemptLimit = 10

	// DefaultLoginAttemptWindow is the sliding window for failed-login counting.
	DefaultLoginAttemptWindow = 15 * time.Minute
)
