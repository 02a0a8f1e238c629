// Copyright (c) 2026 Bazaar. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/taibuivan/bazaar/internal/platform/apperr"
	"github.com/taibuivan/bazaar/internal/platform/dberr"
	"github.com/taibuivan/bazaar/internal/platform/middleware"
	"github.com/taibuivan/bazaar/internal/platform/sec"
	"github.com/taibuivan/bazaar/pkg/normalize"
	"github.com/taibuivan/bazaar/pkg/uuid"
)

// # Contracts & Types

// TokenIssuer mints and checks the access/refresh token pair.
// [*sec.TokenService] implements it.
type TokenIssuer interface {
	IssueAccessToken(identity sec.Identity) (string, error)
	IssueRefreshToken(identity sec.Identity) (string, error)
	VerifyRefreshToken(token string) (*sec.AuthClaims, error)
}

// Notifier delivers one-time secrets to the account owner.
type Notifier interface {

	/*
		SendVerificationCode emails the plaintext OTP.

		Parameters:
		  - context: context.Context
		  - email: string
		  - code: string

		Returns:
		  - error: Delivery failures
	*/
	SendVerificationCode(context context.Context, email, code string) error

	/*
		SendPasswordReset emails the reset link.

		Parameters:
		  - context: context.Context
		  - email: string
		  - link: string

		Returns:
		  - error: Delivery failures
	*/
	SendPasswordReset(context context.Context, email, link string) error
}

// Throttle bounds repeated attempts per (action, subject).
// [*redis.Limiter] implements it.
type Throttle interface {
	Allow(context context.Context, action, subject string) error
	Reset(context context.Context, action, subject string) error
}

// Option configures a [Service].
type Option func(*Service)

// WithClock replaces the wall clock used for code expiry.
func WithClock(now func() time.Time) Option {
	return func(service *Service) {
		service.now = now
	}
}

// Service implements the credential use cases.
//
// # Review Process
//
// This service is critical for security. Any changes to hashing, code issuance,
// or login logic must be reviewed by the security team.
type Service struct {
	userRepository UserRepository
	tokens         TokenIssuer
	notifier       Notifier
	throttle       Throttle
	codes          *CodeEngine
	clientURL      string
	logger         *slog.Logger
	now            func() time.Time
}

// NewService constructs a new [Service] with necessary dependencies.
//
// clientURL is the SPA origin used to build password reset links.
func NewService(
	userRepo UserRepository,
	tokens TokenIssuer,
	notifier Notifier,
	throttle Throttle,
	clientURL string,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	service := &Service{
		userRepository: userRepo,
		tokens:         tokens,
		notifier:       notifier,
		throttle:       throttle,
		clientURL:      strings.TrimSuffix(clientURL, "/"),
		logger:         logger,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	service.codes = NewCodeEngine(service.now)
	return service
}

// Session is the outcome of a successful sign-up or sign-in.
//
// RefreshToken is empty when the flow does not set the refresh cookie.
type Session struct {
	AccessToken  string
	RefreshToken string
	User         *User
}

// # Registration Flow

// RegisterInput holds the data required to enroll a new member.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

/*
Register creates an unverified account, emails its first OTP and opens a session.

Description: The pending code is persisted with the account before the email is
sent. A delivery failure fails the request; the stored code is later replaced by a resend.

Parameters:
  - context: context.Context
  - input: RegisterInput

Returns:
  - *Session: Access and refresh tokens with the created user
  - error: ErrUserExists, or internal failures
*/
func (service *Service) Register(context context.Context, input RegisterInput) (*Session, error) {
	email := normalize.Email(input.Email)

	if _, err := service.userRepository.FindByEmail(context, email); err == nil {
		return nil, ErrUserExists
	} else if !dberr.IsNotFound(err) {
		return nil, fmt.Errorf("auth_service_register_lookup_failed: %w", err)
	}

	hashedPassword, err := sec.HashPassword(input.Password)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("auth_service_hash_failed: %w", err))
	}

	now := service.now()
	user := &User{
		ID:           uuid.New(),
		Username:     normalize.Username(input.Username),
		Email:        email,
		PasswordHash: hashedPassword,
		Role:         sec.RoleUser,
		Status:       StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	code, err := service.codes.IssueVerification(user)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	if err := service.userRepository.Create(context, user); err != nil {
		return nil, fmt.Errorf("auth_service_register_failed: %w", err)
	}

	if err := service.notifier.SendVerificationCode(context, user.Email, code); err != nil {
		return nil, apperr.Internal(fmt.Errorf("auth_service_send_otp_failed: %w", err))
	}

	session, err := service.openSession(user, true)
	if err != nil {
		return nil, err
	}

	service.logger.InfoContext(context, "user_registered", slog.String("user_id", user.ID))
	return session, nil
}

// # Authentication Flow

// LoginInput defines credentials for an authentication attempt.
type LoginInput struct {
	Email    string
	Password string
}

/*
Login validates credentials and issues an access token.

Description: Attempts are throttled per email. A successful login clears the
counter. No refresh token is issued here.

Parameters:
  - context: context.Context
  - input: LoginInput

Returns:
  - *Session: Access token with the user
  - error: ErrUserNotFound, ErrInvalidCredential, middleware.ErrAccountBanned, 429, or internal failures
*/
func (service *Service) Login(context context.Context, input LoginInput) (*Session, error) {
	email := normalize.Email(input.Email)

	if err := service.throttle.Allow(context, ActionLogin, email); err != nil {
		return nil, err
	}

	user, err := service.findByEmail(context, email)
	if err != nil {
		return nil, err
	}

	// bcrypt comparison is constant-time; externally provisioned accounts have no hash.
	if !sec.CheckPasswordHash(input.Password, user.PasswordHash) {
		return nil, ErrInvalidCredential
	}

	if user.IsBanned() {
		return nil, middleware.ErrAccountBanned
	}

	if err := service.throttle.Reset(context, ActionLogin, email); err != nil {
		service.logger.WarnContext(context, "auth_throttle_reset_failed", slog.Any("error", err))
	}

	return service.openSession(user, false)
}

/*
Refresh mints a new access token from a refresh token.

The refresh token itself is not rotated.

Returns:
  - string: New access token
  - error: ErrRefreshMissing (401) or ErrRefreshInvalid (403)
*/
func (service *Service) Refresh(refreshToken string) (string, error) {
	if refreshToken == "" {
		return "", ErrRefreshMissing
	}

	claims, err := service.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return "", ErrRefreshInvalid
	}

	accessToken, err := service.tokens.IssueAccessToken(claims.Identity())
	if err != nil {
		return "", apperr.Internal(fmt.Errorf("auth_service_refresh_sign_failed: %w", err))
	}
	return accessToken, nil
}

// LoadAccount resolves the account named by an access token.
// It implements [middleware.AccountLoader].
func (service *Service) LoadAccount(context context.Context, userID string) (middleware.Account, error) {
	user, err := service.userRepository.FindByID(context, userID)
	if err != nil {
		if dberr.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// CurrentUser returns the account of an authenticated identity, reusing the
// record the middleware already loaded.
func (service *Service) CurrentUser(context context.Context, identity *sec.Identity) (*User, error) {
	if user, ok := identity.User.(*User); ok && user != nil {
		return user, nil
	}

	user, err := service.userRepository.FindByID(context, identity.UserID)
	if err != nil {
		if dberr.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// # Email Verification

// VerifyEmailInput carries the emailed OTP.
type VerifyEmailInput struct {
	Email string
	OTP   string
}

/*
VerifyEmail confirms ownership of the email address with the pending OTP.

Parameters:
  - context: context.Context
  - callerID: string (authenticated user ID)
  - input: VerifyEmailInput

Returns:
  - error: ErrUserNotFound, middleware.ErrNotOwner, ErrAlreadyVerified,
    ErrInvalidCode, ErrCodeExpired, or internal failures
*/
func (service *Service) VerifyEmail(context context.Context, callerID string, input VerifyEmailInput) error {
	user, err := service.findOwnedByEmail(context, callerID, input.Email)
	if err != nil {
		return err
	}

	if err := service.codes.CheckVerification(user, strings.TrimSpace(input.OTP)); err != nil {
		return err
	}

	if err := service.userRepository.Save(context, user); err != nil {
		return fmt.Errorf("auth_service_verify_failed: %w", err)
	}

	service.logger.InfoContext(context, "email_verified", slog.String("user_id", user.ID))
	return nil
}

/*
ResendOTP replaces an expired OTP with a new one and emails it.

Description: Refused while the previous code is still valid. Concurrent resends
are last-write-wins; only the last persisted code validates.

Parameters:
  - context: context.Context
  - callerID: string
  - email: string

Returns:
  - error: ErrUserNotFound, ErrAlreadyVerified, ErrCodeStillValid, 429, or internal failures
*/
func (service *Service) ResendOTP(context context.Context, callerID, email string) error {
	email = normalize.Email(email)

	if err := service.throttle.Allow(context, ActionResendOTP, email); err != nil {
		return err
	}

	user, err := service.findOwnedByEmail(context, callerID, email)
	if err != nil {
		return err
	}

	if err := service.codes.CanResend(user); err != nil {
		return err
	}

	code, err := service.codes.IssueVerification(user)
	if err != nil {
		return apperr.Internal(err)
	}

	if err := service.userRepository.Save(context, user); err != nil {
		return fmt.Errorf("auth_service_resend_failed: %w", err)
	}

	if err := service.notifier.SendVerificationCode(context, user.Email, code); err != nil {
		return apperr.Internal(fmt.Errorf("auth_service_send_otp_failed: %w", err))
	}
	return nil
}

// # Password Recovery

/*
ForgotPassword stores a reset digest and emails the reset link.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - error: ErrUserNotFound, ErrResetPending, 429, or internal failures
*/
func (service *Service) ForgotPassword(context context.Context, email string) error {
	email = normalize.Email(email)

	if err := service.throttle.Allow(context, ActionForgotPassword, email); err != nil {
		return err
	}

	user, err := service.findByEmail(context, email)
	if err != nil {
		return err
	}

	token, err := service.codes.IssueReset(user)
	if err != nil {
		if apperr.IsAppError(err) {
			return err
		}
		return apperr.Internal(err)
	}

	if err := service.userRepository.Save(context, user); err != nil {
		return fmt.Errorf("auth_service_forgot_password_failed: %w", err)
	}

	link := service.clientURL + ResetLinkPath + token
	if err := service.notifier.SendPasswordReset(context, user.Email, link); err != nil {
		return apperr.Internal(fmt.Errorf("auth_service_send_reset_failed: %w", err))
	}

	service.logger.InfoContext(context, "password_reset_requested", slog.String("user_id", user.ID))
	return nil
}

/*
ResetPassword consumes a reset token and replaces the password.

Parameters:
  - context: context.Context
  - token: string (plaintext from the link)
  - password: string (already validated against its confirmation)

Returns:
  - error: ErrInvalidOrExpiredToken, or internal failures
*/
func (service *Service) ResetPassword(context context.Context, token, password string) error {
	user, err := service.userRepository.FindByResetTokenHash(context, sec.HashResetToken(token), service.now())
	if err != nil {
		if dberr.IsNotFound(err) {
			return ErrInvalidOrExpiredToken
		}
		return fmt.Errorf("auth_service_reset_lookup_failed: %w", err)
	}

	hashedPassword, err := sec.HashPassword(password)
	if err != nil {
		return apperr.Internal(fmt.Errorf("auth_service_hash_failed: %w", err))
	}

	if err := service.codes.ConsumeReset(user, hashedPassword); err != nil {
		return err
	}

	if err := service.userRepository.Save(context, user); err != nil {
		return fmt.Errorf("auth_service_reset_failed: %w", err)
	}

	service.logger.InfoContext(context, "password_reset_completed", slog.String("user_id", user.ID))
	return nil
}

// ChangePasswordInput carries the current and the desired password.
type ChangePasswordInput struct {
	Email       string
	Password    string
	NewPassword string
}

/*
ChangePassword replaces the password of the caller after checking the current one.

Parameters:
  - context: context.Context
  - callerID: string
  - input: ChangePasswordInput

Returns:
  - error: ErrUserNotFound, middleware.ErrNotOwner, ErrWrongPassword, ErrSamePassword, or internal failures
*/
func (service *Service) ChangePassword(context context.Context, callerID string, input ChangePasswordInput) error {
	user, err := service.findOwnedByEmail(context, callerID, input.Email)
	if err != nil {
		return err
	}

	if !sec.CheckPasswordHash(input.Password, user.PasswordHash) {
		return ErrWrongPassword
	}

	if input.NewPassword == input.Password {
		return ErrSamePassword
	}

	hashedPassword, err := sec.HashPassword(input.NewPassword)
	if err != nil {
		return apperr.Internal(fmt.Errorf("auth_service_hash_failed: %w", err))
	}
	user.PasswordHash = hashedPassword

	if err := service.userRepository.Save(context, user); err != nil {
		return fmt.Errorf("auth_service_change_password_failed: %w", err)
	}

	service.logger.InfoContext(context, "password_changed", slog.String("user_id", user.ID))
	return nil
}

// # Helpers

func (service *Service) openSession(user *User, withRefresh bool) (*Session, error) {
	identity := user.Identity()

	accessToken, err := service.tokens.IssueAccessToken(identity)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("auth_service_sign_access_failed: %w", err))
	}

	session := &Session{AccessToken: accessToken, User: user}
	if withRefresh {
		session.RefreshToken, err = service.tokens.IssueRefreshToken(identity)
		if err != nil {
			return nil, apperr.Internal(fmt.Errorf("auth_service_sign_refresh_failed: %w", err))
		}
	}
	return session, nil
}

func (service *Service) findByEmail(context context.Context, email string) (*User, error) {
	user, err := service.userRepository.FindByEmail(context, normalize.Email(email))
	if err != nil {
		if dberr.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("auth_service_lookup_failed: %w", err)
	}
	return user, nil
}

// findOwnedByEmail resolves the account named in a request body and requires it
// to be the caller's own.
func (service *Service) findOwnedByEmail(context context.Context, callerID, email string) (*User, error) {
	user, err := service.findByEmail(context, email)
	if err != nil {
		return nil, err
	}
	if user.ID != callerID {
		return nil, middleware.ErrNotOwner
	}
	return user, nil
}

var _ middleware.AccountLoader = (*Service)(nil)
