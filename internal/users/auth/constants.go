// Copyright (c) 2026 Bazaar. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import "time"

// # Credential Constraints

const (
	// VerificationCodeTTL is how long an emailed OTP stays valid.
	VerificationCodeTTL = 15 * time.Minute

	// ResetTokenTTL is how long a password reset link stays valid.
	ResetTokenTTL = 1 * time.Hour

	// OTPLength is the number of digits in a verification code.
	OTPLength = 6

	// MaxPasswordBytes is the bcrypt input limit.
	MaxPasswordBytes = 72

	// MaxUsernameLength bounds the display handle.
	MaxUsernameLength = 64

	// MaxEmailLength is the RFC 5321 path limit.
	MaxEmailLength = 320

	// ResetLinkPath is the SPA route that consumes a reset token.
	ResetLinkPath = "/reset-password/"
)

// # Throttled Actions

const (
	ActionLogin          = "login"
	ActionResendOTP      = "resend_otp"
	ActionForgotPassword = "forgot_password"
)

// # Response Messages

const (
	MsgRegistered       = "User Created Successfully"
	MsgLoggedIn         = "login successfully"
	MsgLoggedOut        = "logout successfully"
	MsgAuthenticated    = "User authenticated"
	MsgEmailVerified    = "Email Verify Successfully"
	MsgOTPResent        = "OTP has been resent to your email"
	MsgResetLinkSent    = "Password reset link sent to your email"
	MsgPasswordReset    = "Password reset successfully"
	MsgPasswordChanged  = "Password changed successfully"
	MsgPasswordMismatch = "Passwords do not match"
)
