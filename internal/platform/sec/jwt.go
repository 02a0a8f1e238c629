// Copyright (c) 2026 Bazaar. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package sec provides cryptographic primitives and token management.
//
// # Architecture
//
// This package isolates security-sensitive code (hashing, random codes, JWT
// signing) from the domain logic. The [TokenService] is built once at startup
// from an injected [TokenConfig] and is safe for concurrent use.
//
// Access and refresh tokens are both HS256 but are signed with different
// secrets, so a refresh token never verifies as an access token and vice versa.
package sec

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default token lifetimes.
const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 30 * 24 * time.Hour
)

var (
	// ErrTokenInvalid covers bad signatures, malformed tokens and unexpected algorithms.
	ErrTokenInvalid = errors.New("sec: token invalid")

	// ErrTokenExpired is returned for a correctly signed token past its expiry.
	ErrTokenExpired = errors.New("sec: token expired")
)

// # Identity

// Identity is the authenticated principal of a request.
//
// UserID and Role are what tokens carry. User holds the account record loaded by
// the authorization middleware; it is nil when an Identity is built only to
// issue tokens.
type Identity struct {
	UserID string
	Role   UserRole
	User   any
}

// AuthClaims represents the payload embedded inside a JWT.
type AuthClaims struct {
	jwt.RegisteredClaims

	UserID string   `json:"userId"`
	Role   UserRole `json:"role"`
}

// Identity converts verified claims back into an [Identity] without an account record.
func (c *AuthClaims) Identity() Identity {
	return Identity{UserID: c.UserID, Role: c.Role}
}

// # Token Service

// TokenConfig carries the signing secrets and lifetimes. Zero TTLs fall back to defaults.
type TokenConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

// Option customizes a [TokenService].
type Option func(*TokenService)

// WithClock overrides the time source used to stamp and validate tokens.
func WithClock(now func() time.Time) Option {
	return func(service *TokenService) {
		service.now = now
	}
}

// TokenService issues and verifies access and refresh tokens.
type TokenService struct {
	config TokenConfig
	now    func() time.Time
}

// NewTokenService creates a new TokenService.
func NewTokenService(config TokenConfig, opts ...Option) (*TokenService, error) {
	if len(config.AccessSecret) == 0 || len(config.RefreshSecret) == 0 {
		return nil, errors.New("sec: access and refresh secrets are required")
	}
	if string(config.AccessSecret) == string(config.RefreshSecret) {
		return nil, errors.New("sec: access and refresh secrets must differ")
	}
	if config.AccessTTL <= 0 {
		config.AccessTTL = DefaultAccessTTL
	}
	if config.RefreshTTL <= 0 {
		config.RefreshTTL = DefaultRefreshTTL
	}

	service := &TokenService{config: config, now: time.Now}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// IssueAccessToken signs a short-lived access token for the identity.
func (service *TokenService) IssueAccessToken(identity Identity) (string, error) {
	return service.issue(identity, service.config.AccessSecret, service.config.AccessTTL)
}

// IssueRefreshToken signs a long-lived refresh token for the identity.
func (service *TokenService) IssueRefreshToken(identity Identity) (string, error) {
	return service.issue(identity, service.config.RefreshSecret, service.config.RefreshTTL)
}

// VerifyAccessToken validates an access token and returns its claims.
func (service *TokenService) VerifyAccessToken(tokenString string) (*AuthClaims, error) {
	return service.verify(tokenString, service.config.AccessSecret)
}

// VerifyRefreshToken validates a refresh token and returns its claims.
func (service *TokenService) VerifyRefreshToken(tokenString string) (*AuthClaims, error) {
	return service.verify(tokenString, service.config.RefreshSecret)
}

// RefreshTTL reports the refresh token lifetime, used for the cookie Max-Age.
func (service *TokenService) RefreshTTL() time.Duration {
	return service.config.RefreshTTL
}

func (service *TokenService) issue(identity Identity, secret []byte, timeToLive time.Duration) (string, error) {
	currentTime := service.now()
	claims := AuthClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UserID,
			Issuer:    service.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(currentTime),
			ExpiresAt: jwt.NewNumericDate(currentTime.Add(timeToLive)),
		},
		UserID: identity.UserID,
		Role:   identity.Role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sec: failed to sign token: %w", err)
	}
	return signedToken, nil
}

func (service *TokenService) verify(tokenString string, secret []byte) (*AuthClaims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(service.now),
		jwt.WithExpirationRequired(),
	}
	if service.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(service.config.Issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &AuthClaims{}, func(token *jwt.Token) (any, error) {
		return secret, nil
	}, options...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*AuthClaims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
