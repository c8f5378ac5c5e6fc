// Copyright (c) 2026 Keyra. All rights reserved.
// Author: huy.tranquoc.dev@gmail.com

package sec

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// Hasher hashes and verifies passwords using the bcrypt algorithm.
//
// # Concurrency
//
// bcrypt is deliberately CPU-expensive. A bounded [semaphore.Weighted] caps
// the number of concurrent hashing operations so that a burst of login
// attempts cannot starve request dispatch. Callers block (respecting context
// cancellation) until a slot is available.
type Hasher struct {
	cost int
	sem  *semaphore.Weighted
}

// NewHasher constructs a [Hasher] with the given bcrypt cost and a cap on
// concurrent hashing operations. Out-of-range values fall back to
// [bcrypt.DefaultCost] and a single worker respectively.
func NewHasher(cost int, maxConcurrent int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Hasher{
		cost: cost,
		sem:  semaphore.NewWeighted(int64(maxConcurrent)),
	}
}

// Hash hashes a plain-text password. The plaintext is never stored or logged.
func (hasher *Hasher) Hash(ctx context.Context, plainTextPassword string) (string, error) {
	if err := hasher.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("sec: hash pool acquire: %w", err)
	}
	defer hasher.sem.Release(1)

	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(plainTextPassword), hasher.cost)
	if err != nil {
		return "", fmt.Errorf("sec: failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

// Verify compares a plain-text password with its stored hash.
//
// bcrypt performs a constant-time comparison internally. Malformed hash input
// never produces an error at this boundary: it simply reports false.
func (hasher *Hasher) Verify(ctx context.Context, plainTextPassword, existingHash string) bool {
	if err := hasher.sem.Acquire(ctx, 1); err != nil {
		return false
	}
	defer hasher.sem.Release(1)

	err := bcrypt.CompareHashAndPassword([]byte(existingHash), []byte(plainTextPassword))
	return err == nil
}
