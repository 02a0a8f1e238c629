// Copyright (c) 2026 Bazaar. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"fmt"
	"time"

	"github.com/taibuivan/bazaar/internal/platform/sec"
)

// # One-Time Codes

// CodeEngine issues and checks the two one-time secrets an account can hold:
// the emailed verification OTP and the password reset token.
//
// # State Machine
//
// Each code moves NONE → PENDING → CONSUMED. EXPIRED is computed at check time;
// the stale pair stays on the record until a new code overwrites it.
//
// The engine only mutates the [User] in memory. Callers persist it with one
// [UserRepository.Save].
type CodeEngine struct {
	now             func() time.Time
	verificationTTL time.Duration
	resetTTL        time.Duration
}

// NewCodeEngine creates an engine reading time from now.
func NewCodeEngine(now func() time.Time) *CodeEngine {
	return &CodeEngine{
		now:             now,
		verificationTTL: VerificationCodeTTL,
		resetTTL:        ResetTokenTTL,
	}
}

// IssueVerification attaches a fresh OTP to user and returns the plaintext for email.
// Any earlier code is overwritten.
func (engine *CodeEngine) IssueVerification(user *User) (string, error) {
	code, err := sec.NewOTP()
	if err != nil {
		return "", fmt.Errorf("code_engine_otp_failed: %w", err)
	}

	hash, err := sec.HashCode(code)
	if err != nil {
		return "", fmt.Errorf("code_engine_otp_hash_failed: %w", err)
	}

	user.Verification = &PendingCode{Hash: hash, ExpiresAt: engine.now().Add(engine.verificationTTL)}
	return code, nil
}

/*
CheckVerification validates code against the pending OTP of user.

On success the account becomes verified and the pending pair is cleared.

Returns:
  - ErrAlreadyVerified: the account is verified
  - ErrInvalidCode: nothing pending, or the code does not match
  - ErrCodeExpired: the code matches but its window has passed
*/
func (engine *CodeEngine) CheckVerification(user *User, code string) error {
	if user.IsVerified {
		return ErrAlreadyVerified
	}

	pending := user.Verification
	if pending == nil || !sec.CheckCode(code, pending.Hash) {
		return ErrInvalidCode
	}

	if pending.Expired(engine.now()) {
		return ErrCodeExpired
	}

	user.IsVerified = true
	user.Verification = nil
	return nil
}

// CanResend reports whether a new OTP may be issued to user.
func (engine *CodeEngine) CanResend(user *User) error {
	if user.IsVerified {
		return ErrAlreadyVerified
	}
	if user.Verification != nil && !user.Verification.Expired(engine.now()) {
		return ErrCodeStillValid
	}
	return nil
}

// IssueReset attaches a reset digest to user and returns the plaintext token for the link.
//
// Refused with [ErrResetPending] while an earlier reset is unexpired.
func (engine *CodeEngine) IssueReset(user *User) (string, error) {
	if user.Reset != nil && !user.Reset.Expired(engine.now()) {
		return "", ErrResetPending
	}

	token, digest, err := sec.NewResetToken()
	if err != nil {
		return "", fmt.Errorf("code_engine_reset_token_failed: %w", err)
	}

	user.Reset = &PendingCode{Hash: digest, ExpiresAt: engine.now().Add(engine.resetTTL)}
	return token, nil
}

// ConsumeReset replaces the password of a user resolved from a reset digest and
// clears the pending pair. The same token can never be used twice.
func (engine *CodeEngine) ConsumeReset(user *User, passwordHash string) error {
	if user.Reset == nil || user.Reset.Expired(engine.now()) {
		return ErrInvalidOrExpiredToken
	}

	user.PasswordHash = passwordHash
	user.Reset = nil
	return nil
}
