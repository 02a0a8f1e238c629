// Copyright (c) 2026 Bazaar. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/bazaar/internal/platform/constants"
	"github.com/taibuivan/bazaar/internal/platform/middleware"
	requestutil "github.com/taibuivan/bazaar/internal/platform/request"
	"github.com/taibuivan/bazaar/internal/platform/respond"
	"github.com/taibuivan/bazaar/internal/platform/validate"
	"github.com/taibuivan/bazaar/pkg/normalize"
)

// # Definitions & Constructors

// Handler implements the /api/v1/auth endpoints.
//
// # Scope
//
// Transport only: JSON payloads, validation, status codes and the refresh cookie.
// Every decision about credentials lives in [Service].
type Handler struct {
	authService   *Service
	verifier      middleware.AccessTokenVerifier
	secureCookies bool
	refreshTTL    time.Duration
}

// NewHandler constructs a new [Handler].
//
// secureCookies marks the refresh cookie Secure with SameSite=None, which a
// cross-site SPA needs in production.
func NewHandler(service *Service, verifier middleware.AccessTokenVerifier, refreshTTL time.Duration, secureCookies bool) *Handler {
	return &Handler{
		authService:   service,
		verifier:      verifier,
		secureCookies: secureCookies,
		refreshTTL:    refreshTTL,
	}
}

// Routes returns a [chi.Router] configured with authentication routes.
//
// # Endpoints
//   - POST /register               : Creates an account and sets the refresh cookie.
//   - POST /login                  : Returns an access token.
//   - POST /logout                 : Clears the refresh cookie.
//   - POST /refreshToken           : Mints an access token from the cookie.
//   - POST /forgotPassword         : Emails a reset link.
//   - POST /resetPassword/{token}  : Consumes a reset link.
//   - GET  /checkAuth              : (bearer) Current account.
//   - POST /verifyEmail            : (bearer) Confirms the OTP.
//   - POST /resendOtp              : (bearer) Issues a new OTP.
//   - POST /changePassword         : (bearer) Replaces the password.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	// Public endpoints
	router.Post("/register", handler.register)
	router.Post("/login", handler.login)
	router.Post("/logout", handler.logout)
	router.Post("/refreshToken", handler.refreshToken)
	router.Post("/forgotPassword", handler.forgotPassword)
	router.Post("/resetPassword/{token}", handler.resetPassword)

	// Protected endpoints
	router.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(handler.verifier, handler.authService))
		r.Get("/checkAuth", handler.checkAuth)
		r.Post("/verifyEmail", handler.verifyEmail)
		r.Post("/resendOtp", handler.resendOtp)
		r.Post("/changePassword", handler.changePassword)
	})

	return router
}

// # Request Payloads

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifyEmailRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type changePasswordRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	NewPassword string `json:"newPassword"`
}

// # Response Payloads

type sessionResponse struct {
	Message string  `json:"message"`
	User    Profile `json:"user"`
	Token   string  `json:"token,omitempty"`
}

type refreshResponse struct {
	NewAccessToken string `json:"newAccessToken"`
}

/*
Register handles the creation of a new account.

POST /api/v1/auth/register

Description: Validates input, creates an unverified account, emails the OTP and
sets the refresh cookie.

Request:
  - Body: registerRequest (username, email, password)

Response:
  - 201: sessionResponse
  - 400: Missing fields or validation failure
  - 409: User already exists
*/
func (handler *Handler) register(writer http.ResponseWriter, request *http.Request) {
	var input registerRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := requireFields(
		FieldUsername, input.Username,
		FieldEmail, input.Email,
		FieldPassword, input.Password,
	); err != nil {
		respond.Error(writer, request, err)
		return
	}

	// Limits apply to the stored form. NFKC can expand a single rune.
	validator := &validate.Validator{}
	validator.MaxLen(FieldUsername, normalize.Username(input.Username), MaxUsernameLength).
		MaxLen(FieldEmail, normalize.Email(input.Email), MaxEmailLength).
		Email(FieldEmail, input.Email).
		MaxBytes(FieldPassword, input.Password, MaxPasswordBytes)
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	session, err := handler.authService.Register(request.Context(), RegisterInput{
		Username: input.Username,
		Email:    input.Email,
		Password: input.Password,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.setRefreshCookie(writer, session.RefreshToken)
	respond.Created(writer, sessionResponse{
		Message: MsgRegistered,
		User:    session.User.Profile(),
		Token:   session.AccessToken,
	})
}

/*
Login handles password sign-in.

POST /api/v1/auth/login

Request:
  - Body: loginRequest (email, password)

Response:
  - 200: sessionResponse
  - 400: Missing fields
  - 401: Invalid credential
  - 403: Account is banned
  - 404: User not found
  - 429: Too many attempts
*/
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	var input loginRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := requireFields(FieldEmail, input.Email, FieldPassword, input.Password); err != nil {
		respond.Error(writer, request, err)
		return
	}

	session, err := handler.authService.Login(request.Context(), LoginInput{
		Email:    input.Email,
		Password: input.Password,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, sessionResponse{
		Message: MsgLoggedIn,
		User:    session.User.Profile(),
		Token:   session.AccessToken,
	})
}

/*
Logout clears the refresh cookie. It succeeds with or without a session.

POST /api/v1/auth/logout

Response:
  - 200: {message}
*/
func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {
	handler.clearRefreshCookie(writer)
	respond.Message(writer, http.StatusOK, MsgLoggedOut)
}

/*
RefreshToken mints a new access token from the refresh cookie.

POST /api/v1/auth/refreshToken

Response:
  - 201: {newAccessToken}
  - 401: No cookie
  - 403: Invalid or expired refresh token
*/
func (handler *Handler) refreshToken(writer http.ResponseWriter, request *http.Request) {
	var refreshToken string
	if cookie, err := request.Cookie(constants.RefreshTokenCookieName); err == nil {
		refreshToken = cookie.Value
	}

	accessToken, err := handler.authService.Refresh(refreshToken)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, refreshResponse{NewAccessToken: accessToken})
}

/*
CheckAuth returns the account behind the bearer token.

GET /api/v1/auth/checkAuth

Response:
  - 200: {message, user}
  - 401, 403, 404: See middleware.Authenticate
*/
func (handler *Handler) checkAuth(writer http.ResponseWriter, request *http.Request) {
	identity, err := requestutil.RequiredIdentity(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.authService.CurrentUser(request.Context(), identity)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, sessionResponse{Message: MsgAuthenticated, User: user.Profile()})
}

/*
VerifyEmail confirms the emailed OTP.

POST /api/v1/auth/verifyEmail

Request:
  - Body: verifyEmailRequest (email, otp)

Response:
  - 200: {message}
  - 400: Missing fields, malformed OTP, or already verified
  - 401: Invalid or expired OTP
  - 404: User not found
*/
func (handler *Handler) verifyEmail(writer http.ResponseWriter, request *http.Request) {
	identity, err := requestutil.RequiredIdentity(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input verifyEmailRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := requireFields(FieldEmail, input.Email, FieldOTP, input.OTP); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.Digits(FieldOTP, input.OTP, OTPLength)
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	err = handler.authService.VerifyEmail(request.Context(), identity.UserID, VerifyEmailInput{
		Email: input.Email,
		OTP:   input.OTP,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Message(writer, http.StatusOK, MsgEmailVerified)
}

/*
ResendOtp issues a new OTP once the previous one has expired.

POST /api/v1/auth/resendOtp

Response:
  - 200: {message}
  - 400: Missing email, already verified, or code still valid
  - 404: User not found
  - 429: Too many attempts
*/
func (handler *Handler) resendOtp(writer http.ResponseWriter, request *http.Request) {
	identity, err := requestutil.RequiredIdentity(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input emailRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := requireFields(FieldEmail, input.Email); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.ResendOTP(request.Context(), identity.UserID, input.Email); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Message(writer, http.StatusOK, MsgOTPResent)
}

/*
ForgotPassword emails a single-use reset link.

POST /api/v1/auth/forgotPassword

Response:
  - 201: {message}
  - 400: Missing email or a reset already pending
  - 404: User not found
  - 429: Too many attempts
*/
func (handler *Handler) forgotPassword(writer http.ResponseWriter, request *http.Request) {
	var input emailRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := requireFields(FieldEmail, input.Email); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.ForgotPassword(request.Context(), input.Email); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Message(writer, http.StatusCreated, MsgResetLinkSent)
}

/*
ResetPassword consumes a reset link.

POST /api/v1/auth/resetPassword/{token}

Request:
  - Path: token
  - Body: resetPasswordRequest (password, confirmPassword)

Response:
  - 200: {message}
  - 400: Missing fields, mismatch, or invalid/expired token
*/
func (handler *Handler) resetPassword(writer http.ResponseWriter, request *http.Request) {
	token := requestutil.Param(request, FieldToken)

	var input resetPasswordRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := requireFields(
		FieldToken, token,
		FieldPassword, input.Password,
		FieldConfirmPassword, input.ConfirmPassword,
	); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.Custom(FieldConfirmPassword, input.Password != input.ConfirmPassword, MsgPasswordMismatch)
	if err := validator.ErrWithMessage(MsgPasswordMismatch); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator.MaxBytes(FieldPassword, input.Password, MaxPasswordBytes)
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.ResetPassword(request.Context(), token, input.Password); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Message(writer, http.StatusOK, MsgPasswordReset)
}

/*
ChangePassword replaces the caller's password.

POST /api/v1/auth/changePassword

Request:
  - Body: changePasswordRequest (email, password, newPassword)

Response:
  - 200: {message}
  - 400: Missing fields, wrong current password, or unchanged password
  - 403: Email belongs to another account
  - 404: User not found
*/
func (handler *Handler) changePassword(writer http.ResponseWriter, request *http.Request) {
	identity, err := requestutil.RequiredIdentity(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input changePasswordRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := requireFields(
		FieldEmail, input.Email,
		FieldPassword, input.Password,
		FieldNewPassword, input.NewPassword,
	); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.MaxBytes(FieldNewPassword, input.NewPassword, MaxPasswordBytes)
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	err = handler.authService.ChangePassword(request.Context(), identity.UserID, ChangePasswordInput{
		Email:       input.Email,
		Password:    input.Password,
		NewPassword: input.NewPassword,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Message(writer, http.StatusOK, MsgPasswordChanged)
}

// # Cookies

func (handler *Handler) setRefreshCookie(writer http.ResponseWriter, token string) {
	if token == "" {
		return
	}
	cookie := handler.refreshCookie(token)
	cookie.MaxAge = int(handler.refreshTTL / time.Second)
	cookie.Expires = time.Now().Add(handler.refreshTTL)
	http.SetCookie(writer, cookie)
}

func (handler *Handler) clearRefreshCookie(writer http.ResponseWriter) {
	cookie := handler.refreshCookie("")
	cookie.MaxAge = -1
	cookie.Expires = time.Unix(0, 0)
	http.SetCookie(writer, cookie)
}

func (handler *Handler) refreshCookie(value string) *http.Cookie {
	sameSite := http.SameSiteStrictMode
	if handler.secureCookies {
		sameSite = http.SameSiteNoneMode
	}
	return &http.Cookie{
		Name:     constants.RefreshTokenCookieName,
		Value:    value,
		Path:     constants.RefreshTokenCookiePath,
		HttpOnly: true,
		Secure:   handler.secureCookies,
		SameSite: sameSite,
	}
}

// # Validation Helpers

// requireFields takes (field, value) pairs and fails with "All fields are required"
// when any value is blank.
func requireFields(pairs ...string) error {
	validator := &validate.Validator{}
	for i := 0; i+1 < len(pairs); i += 2 {
		validator.Required(pairs[i], pairs[i+1])
	}
	return validator.ErrWithMessage(validate.MessageAllFieldsRequired)
}
