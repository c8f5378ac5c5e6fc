// Copyright (c) 2026 Keyra. All rights reserved.
// Author: huy.tranquoc.dev@gmail.com

package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tranqh/keyra/internal/auth"
)

// newTestRedis starts an in-process Redis and a client wired to it.
func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

/*
TestLoginAttemptRepository_RecordAndCount verifies the failure counter and
its zero default for unseen usernames.
*/
func TestLoginAttemptRepository_RecordAndCount(t *testing.T) {
	_, client := newTestRedis(t)
	repository := auth.NewLoginAttemptRepository(client, time.Minute)
	ctx := context.Background()

	// Unseen username reads as zero.
	count, err := repository.Count(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, count)

	// Each failure bumps the counter and returns the running total.
	for i := int64(1); i <= 3; i++ {
		count, err = repository.Record(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, i, count)
	}

	count, err = repository.Count(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	// Counters are per-username.
	count, err = repository.Count(ctx, "bob")
	require.NoError(t, err)
	assert.Zero(t, count)
}

/*
TestLoginAttemptRepository_Reset verifies that a successful login clears
the counter.
*/
func TestLoginAttemptRepository_Reset(t *testing.T) {
	_, client := newTestRedis(t)
	repository := auth.NewLoginAttemptRepository(client, time.Minute)
	ctx := context.Background()

	_, err := repository.Record(ctx, "alice")
	require.NoError(t, err)

	require.NoError(t, repository.Reset(ctx, "alice"))

	count, err := repository.Count(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, count)

	// Resetting an absent counter is fine.
	assert.NoError(t, repository.Reset(ctx, "nobody"))
}

/*
TestLoginAttemptRepository_WindowExpiry verifies that the counter evaporates
once the window elapses, measured from the first failure.
*/
func TestLoginAttemptRepository_WindowExpiry(t *testing.T) {
	mr, client := newTestRedis(t)
	repository := auth.NewLoginAttemptRepository(client, time.Minute)
	ctx := context.Background()

	_, err := repository.Record(ctx, "alice")
	require.NoError(t, err)
	_, err = repository.Record(ctx, "alice")
	require.NoError(t, err)

	// Just shy of the window the failures are still on record.
	mr.FastForward(59 * time.Second)
	count, err := repository.Count(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	// Past it, the slate is clean.
	mr.FastForward(2 * time.Second)
	count, err = repository.Count(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, count)
}
