// Copyright (c) 2026 Keyra. All rights reserved.
// Author: huy.tranquoc.dev@gmail.com

// Package sec provides cryptographic primitives and token management.
//
// # Architecture
//
// This package isolates security-sensitive code (Hashing, JWT Signing) from
// the domain logic. It acts as an Infrastructure service injected into the
// Application layer via the [auth.TokenProvider] interface.
package sec

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthClaims represents the payload embedded inside a Keyra JWT.
//
// Both access and refresh tokens carry the same claim shape: the registered
// 'sub' claim holds the user ID, and the compact custom claims duplicate the
// identity fields to keep the payload small.
type AuthClaims struct {
	jwt.RegisteredClaims

	UserID   string `json:"uid"`
	Username string `json:"unm"`
}

// TokenService handles generation and verification of JWT tokens using HS256.
//
// Access and refresh tokens are signed with distinct secrets. When no
// dedicated refresh secret is configured, the access secret is used for both,
// matching the fallback behavior of the recognized configuration.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	issuer        string
}

// NewTokenService creates a new TokenService.
// An empty refreshSecret falls back to the access secret.
func NewTokenService(accessSecret, refreshSecret, issuer string) (*TokenService, error) {
	if accessSecret == "" {
		return nil, fmt.Errorf("sec: access token secret must not be empty")
	}
	if refreshSecret == "" {
		refreshSecret = accessSecret
	}
	return &TokenService{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		issuer:        issuer,
	}, nil
}

// GenerateAccessToken creates a new short-lived JWT access token for a user.
func (service *TokenService) GenerateAccessToken(userID, username string, timeToLive time.Duration) (string, error) {
	return service.generate(userID, username, timeToLive, service.accessSecret)
}

// GenerateRefreshToken creates a new long-lived JWT refresh token for a user.
func (service *TokenService) GenerateRefreshToken(userID, username string, timeToLive time.Duration) (string, error) {
	return service.generate(userID, username, timeToLive, service.refreshSecret)
}

func (service *TokenService) generate(userID, username string, timeToLive time.Duration, secret []byte) (string, error) {
	currentTime := time.Now()
	claims := AuthClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    service.issuer,
			IssuedAt:  jwt.NewNumericDate(currentTime),
			ExpiresAt: jwt.NewNumericDate(currentTime.Add(timeToLive)),
		},
		UserID:   userID,
		Username: username,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sec: failed to sign token: %w", err)
	}

	return signedToken, nil
}

// VerifyAccessToken checks the signature and validity of an access token string.
func (service *TokenService) VerifyAccessToken(tokenString string) (*AuthClaims, error) {
	return service.verify(tokenString, service.accessSecret)
}

// VerifyRefreshToken checks the signature and validity of a refresh token string.
func (service *TokenService) VerifyRefreshToken(tokenString string) (*AuthClaims, error) {
	return service.verify(tokenString, service.refreshSecret)
}

func (service *TokenService) verify(tokenString string, secret []byte) (*AuthClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AuthClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("sec: unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})

	if err != nil {
		return nil, fmt.Errorf("sec: invalid token: %w", err)
	}

	claims, ok := token.Claims.(*AuthClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("sec: invalid token claims")
	}

	return claims, nil
}
