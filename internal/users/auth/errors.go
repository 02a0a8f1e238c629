// Copyright (c) 2026 Bazaar. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import "github.com/taibuivan/bazaar/internal/platform/apperr"

// Client-facing failures of the credential flows. The SPA matches on these messages.
var (
	ErrUserNotFound      = apperr.NotFound("User")
	ErrUserExists        = apperr.Conflict("User already exists")
	ErrInvalidCredential = apperr.Unauthorized("Invalid credential")

	ErrInvalidCode     = apperr.Unauthorized("Invalid OTP").WithCode("OTP_INVALID")
	ErrCodeExpired     = apperr.Unauthorized("Expired verification code, Try resend code").WithCode("OTP_EXPIRED")
	ErrAlreadyVerified = apperr.BadRequest("Email already verified")
	ErrCodeStillValid  = apperr.BadRequest("Verification code is not Expired, please check your email")

	ErrResetPending          = apperr.BadRequest("Reset link already sent, check your email")
	ErrInvalidOrExpiredToken = apperr.BadRequest("Invalid or expired reset token").WithCode("RESET_TOKEN_INVALID")

	ErrWrongPassword = apperr.BadRequest("Current password is incorrect")
	ErrSamePassword  = apperr.BadRequest("New password cannot be the same as the old password.")

	ErrRefreshMissing = apperr.Unauthorized("Unauthorized: No token provided")
	ErrRefreshInvalid = apperr.Forbidden("Invalid or expired token")
)
