// Copyright (c) 2026 Keyra. All rights reserved.
// Author: huy.tranquoc.dev@gmail.com

package auth

import (
	"context"
)

// # User Data Access

// UserRepository defines the data access contract for user accounts.
//
// Implementations must enforce username uniqueness with a storage-level
// constraint so that two concurrent creations of the same username cannot
// both succeed.
type UserRepository interface {

	/*
		Create persists a brand-new user account to the storage.

		Parameters:
		  - context: context.Context
		  - user: *User

		Returns:
		  - error: apperr.Conflict on duplicate username, or persistence failures
	*/
	Create(context context.Context, user *User) error

	/*
		FindByID returns the account with the given ID.

		Parameters:
		  - context: context.Context
		  - id: string

		Returns:
		  - *User: Hydrated entity
		  - error: apperr.NotFound or database retrieval failures
	*/
	FindByID(context context.Context, id string) (*User, error)

	/*
		FindByUsername returns the account with the given canonical username.

		Parameters:
		  - context: context.Context
		  - username: string

		Returns:
		  - *User: Hydrated entity
		  - error: apperr.NotFound or database retrieval failures
	*/
	FindByUsername(context context.Context, username string) (*User, error)

	/*
		SetRefreshToken overwrites the user's single refresh-token slot.

		Any previously stored token for that user is discarded; this is the
		mechanism by which a new login invalidates the prior session.

		Parameters:
		  - context: context.Context
		  - userID: string
		  - token: string

		Returns:
		  - error: Persistence failures
	*/
	SetRefreshToken(context context.Context, userID, token string) error

	/*
		ClearRefreshToken empties the user's refresh-token slot.

		Clearing an already-empty slot is not an error (logout is idempotent).

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - error: Persistence failures
	*/
	ClearRefreshToken(context context.Context, userID string) error
}

// # Volatile Data Access

// LoginAttemptRepository defines the contract for the failed-login throttle.
type LoginAttemptRepository interface {

	/*
		Record registers a failed login for the username and returns the
		number of failures observed within the current window.

		Parameters:
		  - context: context.Context
		  - username: string

		Returns:
		  - int64: Failure count including this one
		  - error: Persistence failures
	*/
	Record(context context.Context, username string) (int64, error)

	/*
		Count returns the number of failures currently on record for the
		username without mutating it.

		Parameters:
		  - context: context.Context
		  - username: string

		Returns:
		  - int64: Current failure count (0 when none)
		  - error: Retrieval failures
	*/
	Count(context context.Context, username string) (int64, error)

	/*
		Reset clears the failure counter after a successful login.

		Parameters:
		  - context: context.Context
		  - username: string

		Returns:
		  - error: Persistence failures
	*/
	Reset(context context.Context, username string) error
}
