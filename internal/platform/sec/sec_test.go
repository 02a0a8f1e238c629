// Copyright (c) 2026 Bazaar. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec_test

import (
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/bazaar/internal/platform/sec"
)

var (
	accessSecret  = []byte(strings.Repeat("a", 32))
	refreshSecret = []byte(strings.Repeat("r", 32))
)

type fakeClock struct{ current time.Time }

func (c *fakeClock) Now() time.Time { return c.current }

func (c *fakeClock) Advance(d time.Duration) { c.current = c.current.Add(d) }

func newTokenService(t *testing.T, clock *fakeClock) *sec.TokenService {
	t.Helper()
	service, err := sec.NewTokenService(sec.TokenConfig{
		AccessSecret:  accessSecret,
		RefreshSecret: refreshSecret,
		Issuer:        "bazaar.test",
	}, sec.WithClock(clock.Now))
	require.NoError(t, err)
	return service
}

/*
TestTokenService_RoundTrip verifies that issued tokens carry the identity claims.
*/
func TestTokenService_RoundTrip(t *testing.T) {
	clock := &fakeClock{current: time.Now()}
	service := newTokenService(t, clock)
	identity := sec.Identity{UserID: "u-1", Role: sec.RoleAdmin}

	access, err := service.IssueAccessToken(identity)
	require.NoError(t, err)
	claims, err := service.VerifyAccessToken(access)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, sec.RoleAdmin, claims.Role)
	assert.Equal(t, identity, claims.Identity())

	refresh, err := service.IssueRefreshToken(identity)
	require.NoError(t, err)
	claims, err = service.VerifyRefreshToken(refresh)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
}

/*
TestTokenService_SecretsAreNotInterchangeable verifies that each token kind only
verifies with its own secret.
*/
func TestTokenService_SecretsAreNotInterchangeable(t *testing.T) {
	service := newTokenService(t, &fakeClock{current: time.Now()})
	identity := sec.Identity{UserID: "u-1", Role: sec.RoleUser}

	access, err := service.IssueAccessToken(identity)
	require.NoError(t, err)
	refresh, err := service.IssueRefreshToken(identity)
	require.NoError(t, err)

	_, err = service.VerifyRefreshToken(access)
	assert.ErrorIs(t, err, sec.ErrTokenInvalid)

	_, err = service.VerifyAccessToken(refresh)
	assert.ErrorIs(t, err, sec.ErrTokenInvalid)
}

/*
TestTokenService_Expiry verifies that an expired token is reported distinctly
from an invalid one.
*/
func TestTokenService_Expiry(t *testing.T) {
	clock := &fakeClock{current: time.Now()}
	service := newTokenService(t, clock)

	access, err := service.IssueAccessToken(sec.Identity{UserID: "u-1", Role: sec.RoleUser})
	require.NoError(t, err)

	clock.Advance(14 * time.Minute)
	_, err = service.VerifyAccessToken(access)
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	_, err = service.VerifyAccessToken(access)
	assert.ErrorIs(t, err, sec.ErrTokenExpired)
	assert.NotErrorIs(t, err, sec.ErrTokenInvalid)

	refresh, err := service.IssueRefreshToken(sec.Identity{UserID: "u-1", Role: sec.RoleUser})
	require.NoError(t, err)
	clock.Advance(31 * 24 * time.Hour)
	_, err = service.VerifyRefreshToken(refresh)
	assert.ErrorIs(t, err, sec.ErrTokenExpired)
}

/*
TestTokenService_RejectsForgedTokens covers garbage input, tampering and the "none" algorithm.
*/
func TestTokenService_RejectsForgedTokens(t *testing.T) {
	service := newTokenService(t, &fakeClock{current: time.Now()})

	valid, err := service.IssueAccessToken(sec.Identity{UserID: "u-1", Role: sec.RoleUser})
	require.NoError(t, err)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, sec.AuthClaims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		UserID:           "u-1",
		Role:             sec.RoleAdmin,
	})
	noneToken, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	otherKey := jwt.NewWithClaims(jwt.SigningMethodHS256, sec.AuthClaims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		UserID:           "u-1",
		Role:             sec.RoleAdmin,
	})
	foreignToken, err := otherKey.SignedString([]byte(strings.Repeat("z", 32)))
	require.NoError(t, err)

	validParts := strings.Split(valid, ".")
	foreignParts := strings.Split(foreignToken, ".")
	tampered := validParts[0] + "." + validParts[1] + "." + foreignParts[2]

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-jwt"},
		{"tampered_signature", tampered},
		{"alg_none", noneToken},
		{"foreign_secret", foreignToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.VerifyAccessToken(tt.token)
			assert.ErrorIs(t, err, sec.ErrTokenInvalid)
		})
	}
}

/*
TestNewTokenService_RejectsBadConfig verifies the secret preconditions.
*/
func TestNewTokenService_RejectsBadConfig(t *testing.T) {
	_, err := sec.NewTokenService(sec.TokenConfig{AccessSecret: accessSecret})
	assert.Error(t, err)

	_, err = sec.NewTokenService(sec.TokenConfig{AccessSecret: accessSecret, RefreshSecret: accessSecret})
	assert.Error(t, err)

	service, err := sec.NewTokenService(sec.TokenConfig{AccessSecret: accessSecret, RefreshSecret: refreshSecret})
	require.NoError(t, err)
	assert.Equal(t, sec.DefaultRefreshTTL, service.RefreshTTL())
}

/*
TestHashPassword verifies that the stored hash never equals the plaintext and round-trips.
*/
func TestHashPassword(t *testing.T) {
	hash, err := sec.HashPassword("correct horse")
	require.NoError(t, err)

	assert.NotEqual(t, "correct horse", hash)
	assert.True(t, sec.CheckPasswordHash("correct horse", hash))
	assert.False(t, sec.CheckPasswordHash("wrong horse", hash))
	assert.False(t, sec.CheckPasswordHash("correct horse", ""))

	code, err := sec.HashCode("123456")
	require.NoError(t, err)
	assert.True(t, sec.CheckCode("123456", code))
	assert.False(t, sec.CheckCode("654321", code))
}

/*
TestNewOTP verifies the code shape and range.
*/
func TestNewOTP(t *testing.T) {
	pattern := regexp.MustCompile(`^[1-9][0-9]{5}$`)
	for range 200 {
		code, err := sec.NewOTP()
		require.NoError(t, err)
		require.Regexp(t, pattern, code)

		value, err := strconv.Atoi(code)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, value, 100000)
		assert.LessOrEqual(t, value, 999999)
	}
}

/*
TestNewResetToken verifies that the emailed token hashes to the stored digest and
that other strings never do.
*/
func TestNewResetToken(t *testing.T) {
	token, digest, err := sec.NewResetToken()
	require.NoError(t, err)

	assert.Len(t, token, 64)
	assert.Len(t, digest, 64)
	assert.NotEqual(t, token, digest)
	assert.Equal(t, digest, sec.HashResetToken(token))
	assert.NotEqual(t, digest, sec.HashResetToken(token+"0"))
	assert.NotEqual(t, digest, sec.HashResetToken(digest))

	other, _, err := sec.NewResetToken()
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}

/*
TestUserRole_AtLeast verifies the role hierarchy.
*/
func TestUserRole_AtLeast(t *testing.T) {
	assert.True(t, sec.RoleAdmin.AtLeast(sec.RoleUser))
	assert.True(t, sec.RoleAdmin.AtLeast(sec.RoleAdmin))
	assert.False(t, sec.RoleUser.AtLeast(sec.RoleAdmin))
	assert.False(t, sec.UserRole("root").Valid())
	assert.False(t, sec.UserRole("").AtLeast(sec.RoleUser))
}
