// Copyright (c) 2026 Keyra. All rights reserved.
// Author: huy.tranquoc.dev@gmail.com

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tranqh/keyra/internal/platform/constants"
)

// RedisLoginAttemptRepository implements LoginAttemptRepository using Redis.
//
// Counters expire on their own via TTL, so a quiet username costs nothing
// and the window slides forward without any cleanup job.
type RedisLoginAttemptRepository struct {
	client *redis.Client
	window time.Duration
}

// NewLoginAttemptRepository creates a new Redis-backed LoginAttemptRepository.
// The window is the TTL applied to a username's counter on its first failure.
func NewLoginAttemptRepository(client *redis.Client, window time.Duration) *RedisLoginAttemptRepository {
	if window <= 0 {
		window = DefaultLoginAttemptWindow
	}
	return &RedisLoginAttemptRepository{client: client, window: window}
}

/*
Record registers a failed login and returns the updated failure count.

Description: Increments the per-username counter; the TTL is set when the
counter is first created so the window measures from the first failure.

Parameters:
  - context: context.Context
  - username: string

Returns:
  - int64: Failure count including this one
  - error: Execution errors
*/
func (repository *RedisLoginAttemptRepository) Record(context context.Context, username string) (int64, error) {

	// Use constants for key prefix
	key := constants.RedisPrefixLoginAttempts + username

	// Increment the counter
	count, err := repository.client.Incr(context, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis_login_attempts_incr_failed: %w", err)
	}

	// First failure in this window: start the expiry clock
	if count == 1 {
		if err := repository.client.Expire(context, key, repository.window).Err(); err != nil {
			return count, fmt.Errorf("redis_login_attempts_expire_failed: %w", err)
		}
	}

	return count, nil
}

/*
Count returns the current failure count for a username.

Description: A missing key reads as zero failures.

Parameters:
  - context: context.Context
  - username: string

Returns:
  - int64: Current failure count
  - error: Retrieval failures
*/
func (repository *RedisLoginAttemptRepository) Count(context context.Context, username string) (int64, error) {

	// Use constants for key prefix
	key := constants.RedisPrefixLoginAttempts + username

	// Read the counter
	count, err := repository.client.Get(context, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("redis_login_attempts_get_failed: %w", err)
	}

	return count, nil
}

/*
Reset clears the failure counter after a successful login.

Parameters:
  - context: context.Context
  - username: string

Returns:
  - error: Deletion failures
*/
func (repository *RedisLoginAttemptRepository) Reset(context context.Context, username string) error {

	// Use constants for key prefix
	key := constants.RedisPrefixLoginAttempts + username

	// Delete the counter
	if err := repository.client.Del(context, key).Err(); err != nil {
		return fmt.Errorf("redis_login_attempts_del_failed: %w", err)
	}

	return nil
}
