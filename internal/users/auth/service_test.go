// Copyright (c) 2026 Bazaar. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/bazaar/internal/platform/apperr"
	"github.com/taibuivan/bazaar/internal/platform/middleware"
	"github.com/taibuivan/bazaar/internal/platform/sec"
)

/*
TestService_Register_StoresHashAndPendingCode verifies the persisted state of a new account.
*/
func TestService_Register_StoresHashAndPendingCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	session, err := f.service.Register(ctx, RegisterInput{Username: " ana ", Email: " Ana@Bazaar.Test ", Password: "hunter22"})
	require.NoError(t, err)
	assert.NotEmpty(t, session.AccessToken)
	assert.NotEmpty(t, session.RefreshToken)

	stored := f.repo.stored(t, "ana@bazaar.test")
	assert.Equal(t, "ana", stored.Username)
	assert.Equal(t, sec.RoleUser, stored.Role)
	assert.Equal(t, StatusActive, stored.Status)
	assert.False(t, stored.IsVerified)
	assert.NotEqual(t, "hunter22", stored.PasswordHash)
	assert.True(t, sec.CheckPasswordHash("hunter22", stored.PasswordHash))

	require.NotNil(t, stored.Verification)
	assert.True(t, sec.CheckCode(f.notifier.lastCode(t, "ana@bazaar.test"), stored.Verification.Hash))

	_, err = f.service.Register(ctx, RegisterInput{Username: "other", Email: "ANA@bazaar.test", Password: "x"})
	assert.ErrorIs(t, err, ErrUserExists)
}

/*
TestService_Register_NotifierFailure fails the request but keeps the pending code.
*/
func TestService_Register_NotifierFailure(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("smtp: connection refused")

	_, err := f.service.Register(context.Background(), RegisterInput{Username: "ana", Email: "ana@bazaar.test", Password: "hunter22"})
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, apperr.As(err).HTTPStatus)

	stored := f.repo.stored(t, "ana@bazaar.test")
	assert.NotNil(t, stored.Verification)
}

/*
TestService_Login covers the sign-in outcomes.
*/
func TestService_Login(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "ana@bazaar.test", "hunter22", nil)
	f.seed(t, "bob@bazaar.test", "hunter22", func(user *User) { user.Status = StatusBanned })

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{"success", "ana@bazaar.test", "hunter22", nil},
		{"case_insensitive_email", "ANA@bazaar.test", "hunter22", nil},
		{"unknown_user", "ghost@bazaar.test", "hunter22", ErrUserNotFound},
		{"wrong_password", "ana@bazaar.test", "hunter23", ErrInvalidCredential},
		{"banned", "bob@bazaar.test", "hunter22", middleware.ErrAccountBanned},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session, err := f.service.Login(context.Background(), LoginInput{Email: tt.email, Password: tt.password})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, session.AccessToken)
			assert.Empty(t, session.RefreshToken)
		})
	}
}

/*
TestService_Login_Throttled returns 429 once the attempt budget is spent.
*/
func TestService_Login_Throttled(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "ana@bazaar.test", "hunter22", nil)
	ctx := context.Background()

	for range 10 {
		_, err := f.service.Login(ctx, LoginInput{Email: "ana@bazaar.test", Password: "wrong"})
		require.ErrorIs(t, err, ErrInvalidCredential)
	}

	_, err := f.service.Login(ctx, LoginInput{Email: "ana@bazaar.test", Password: "hunter22"})
	require.Error(t, err)
	assert.Equal(t, http.StatusTooManyRequests, apperr.As(err).HTTPStatus)
}

/*
TestService_ConcurrentResend verifies last-write-wins: of all codes sent, exactly
one validates, and it is the one persisted last.
*/
func TestService_ConcurrentResend(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	session, err := f.service.Register(ctx, RegisterInput{Username: "ana", Email: "ana@bazaar.test", Password: "hunter22"})
	require.NoError(t, err)
	userID := session.User.ID

	f.clock.Advance(VerificationCodeTTL + time.Second)

	const workers = 5
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = f.service.ResendOTP(ctx, userID, "ana@bazaar.test")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrCodeStillValid)
	}
	require.GreaterOrEqual(t, succeeded, 1)

	stored := f.repo.stored(t, "ana@bazaar.test")
	require.NotNil(t, stored.Verification)

	// The registration code plus one per successful resend.
	codes := f.notifier.allCodes("ana@bazaar.test")
	require.Len(t, codes, succeeded+1)

	var valid []string
	for _, code := range codes[1:] {
		if sec.CheckCode(code, stored.Verification.Hash) {
			valid = append(valid, code)
		}
	}
	require.Len(t, valid, 1)

	require.NoError(t, f.service.VerifyEmail(ctx, userID, VerifyEmailInput{Email: "ana@bazaar.test", OTP: valid[0]}))
	assert.True(t, f.repo.stored(t, "ana@bazaar.test").IsVerified)
}

/*
TestService_VerifyEmail_RequiresOwnership refuses to verify someone else's account.
*/
func TestService_VerifyEmail_RequiresOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.Register(ctx, RegisterInput{Username: "ana", Email: "ana@bazaar.test", Password: "hunter22"})
	require.NoError(t, err)
	code := f.notifier.lastCode(t, "ana@bazaar.test")

	err = f.service.VerifyEmail(ctx, "someone-else", VerifyEmailInput{Email: "ana@bazaar.test", OTP: code})
	assert.ErrorIs(t, err, middleware.ErrNotOwner)
	assert.False(t, f.repo.stored(t, "ana@bazaar.test").IsVerified)
}

/*
TestService_ResetPassword_TokenIsSingleUse verifies the digest is cleared after use.
*/
func TestService_ResetPassword_TokenIsSingleUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "ana@bazaar.test", "hunter22", nil)

	require.NoError(t, f.service.ForgotPassword(ctx, "ana@bazaar.test"))
	token := f.notifier.lastResetToken(t, "ana@bazaar.test")
	assert.Len(t, token, 64)

	stored := f.repo.stored(t, "ana@bazaar.test")
	require.NotNil(t, stored.Reset)
	assert.Equal(t, sec.HashResetToken(token), stored.Reset.Hash)
	assert.NotEqual(t, token, stored.Reset.Hash)

	assert.ErrorIs(t, f.service.ForgotPassword(ctx, "ana@bazaar.test"), ErrResetPending)

	require.NoError(t, f.service.ResetPassword(ctx, token, "correct horse"))
	assert.ErrorIs(t, f.service.ResetPassword(ctx, token, "another one"), ErrInvalidOrExpiredToken)

	stored = f.repo.stored(t, "ana@bazaar.test")
	assert.Nil(t, stored.Reset)
	assert.True(t, sec.CheckPasswordHash("correct horse", stored.PasswordHash))
}

/*
TestService_ResetPassword_Expired rejects a link after its hour has passed.
*/
func TestService_ResetPassword_Expired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "ana@bazaar.test", "hunter22", nil)

	require.NoError(t, f.service.ForgotPassword(ctx, "ana@bazaar.test"))
	token := f.notifier.lastResetToken(t, "ana@bazaar.test")

	f.clock.Advance(ResetTokenTTL)
	assert.ErrorIs(t, f.service.ResetPassword(ctx, token, "correct horse"), ErrInvalidOrExpiredToken)
	assert.ErrorIs(t, f.service.ResetPassword(ctx, "not-a-token", "correct horse"), ErrInvalidOrExpiredToken)
}

/*
TestService_Refresh distinguishes a missing token from a bad one.
*/
func TestService_Refresh(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Refresh("")
	assert.ErrorIs(t, err, ErrRefreshMissing)

	access, err := f.tokens.IssueAccessToken(sec.Identity{UserID: "u-1", Role: sec.RoleUser})
	require.NoError(t, err)
	_, err = f.service.Refresh(access)
	assert.ErrorIs(t, err, ErrRefreshInvalid)

	refresh, err := f.tokens.IssueRefreshToken(sec.Identity{UserID: "u-1", Role: sec.RoleUser})
	require.NoError(t, err)
	newAccess, err := f.service.Refresh(refresh)
	require.NoError(t, err)

	claims, err := f.tokens.VerifyAccessToken(newAccess)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)

	f.clock.Advance(sec.DefaultRefreshTTL + time.Second)
	_, err = f.service.Refresh(refresh)
	assert.ErrorIs(t, err, ErrRefreshInvalid)
}
