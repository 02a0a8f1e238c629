// Copyright (c) 2026 Bazaar. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/taibuivan/bazaar/internal/platform/apperr"
	"github.com/taibuivan/bazaar/internal/platform/constants"
	"github.com/taibuivan/bazaar/internal/platform/ctxutil"
	"github.com/taibuivan/bazaar/internal/platform/dberr"
	"github.com/taibuivan/bazaar/internal/platform/respond"
	"github.com/taibuivan/bazaar/internal/platform/sec"
)

// Client-facing authorization failures. The SPA matches on these messages.
var (
	ErrNoToken         = apperr.Unauthorized("Unauthorized: No token provided")
	ErrInvalidToken    = apperr.Forbidden("InvalidToken").WithCode("TOKEN_INVALID")
	ErrTokenExpired    = apperr.Forbidden("TokenExpired").WithCode("TOKEN_EXPIRED")
	ErrUserNotFound    = apperr.NotFound("User")
	ErrAccountBanned   = apperr.Forbidden("Account is banned").WithCode("ACCOUNT_BANNED")
	ErrAdminOnly       = apperr.Forbidden("Admin only")
	ErrNotOwner        = apperr.Forbidden("not your resource")
	ErrEmailUnverified = apperr.Forbidden("Please verify your email").WithCode("EMAIL_UNVERIFIED")
)

// AccessTokenVerifier verifies bearer access tokens. [*sec.TokenService] implements it.
type AccessTokenVerifier interface {
	VerifyAccessToken(token string) (*sec.AuthClaims, error)
}

// Account is the view of a user record the authorization layer needs.
type Account interface {
	AccountID() string
	AccountRole() sec.UserRole
	IsBanned() bool
	IsEmailVerified() bool
}

// AccountLoader loads the account named by a token's userId claim.
//
// A missing account must be reported as [dberr.ErrNotFound] or any 404 [apperr.AppError].
type AccountLoader interface {
	LoadAccount(ctx context.Context, userID string) (Account, error)
}

// AccountLoaderFunc adapts a function to [AccountLoader].
type AccountLoaderFunc func(ctx context.Context, userID string) (Account, error)

// LoadAccount implements [AccountLoader].
func (fn AccountLoaderFunc) LoadAccount(ctx context.Context, userID string) (Account, error) {
	return fn(ctx, userID)
}

// Authenticate guards a route group with a bearer access token.
//
// # Flow
//  1. Require 'Authorization: Bearer <token>' (401 otherwise).
//  2. Verify the token: invalid → 403 "InvalidToken", expired → 403 "TokenExpired".
//  3. Load the account named by the userId claim (404 when gone).
//  4. Reject banned accounts (403).
//  5. Attach [sec.Identity] with the loaded account to the request context.
//
// Role comes from the stored account, not the token, so a demotion takes effect
// before the token expires.
func Authenticate(verifier AccessTokenVerifier, loader AccountLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			token, ok := bearerToken(request)
			if !ok {
				respond.Error(writer, request, ErrNoToken)
				return
			}

			claims, err := verifier.VerifyAccessToken(token)
			if err != nil {
				if errors.Is(err, sec.ErrTokenExpired) {
					respond.Error(writer, request, ErrTokenExpired)
					return
				}
				respond.Error(writer, request, ErrInvalidToken)
				return
			}

			account, err := loader.LoadAccount(request.Context(), claims.UserID)
			if err != nil {
				if isNotFound(err) {
					respond.Error(writer, request, ErrUserNotFound)
					return
				}
				respond.Error(writer, request, err)
				return
			}

			if account.IsBanned() {
				respond.Error(writer, request, ErrAccountBanned)
				return
			}

			identity := &sec.Identity{
				UserID: account.AccountID(),
				Role:   account.AccountRole(),
				User:   account,
			}
			if holder := getIdentityHolder(request.Context()); holder != nil {
				holder.userID = identity.UserID
			}

			ctx := ctxutil.WithIdentity(request.Context(), identity)
			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

// RequireRole blocks requests whose identity is below the required role.
//
// Must be mounted after [Authenticate].
func RequireRole(role sec.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			identity := ctxutil.GetIdentity(request.Context())
			if identity == nil {
				respond.Error(writer, request, ErrNoToken)
				return
			}

			if !identity.Role.AtLeast(role) {
				if role == sec.RoleAdmin {
					respond.Error(writer, request, ErrAdminOnly)
					return
				}
				respond.Error(writer, request, apperr.Forbidden("Insufficient permissions"))
				return
			}

			next.ServeHTTP(writer, request)
		})
	}
}

// RequireVerified blocks accounts that have not confirmed their email yet.
// Listing and commenting routes mount it after [Authenticate].
func RequireVerified(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		identity := ctxutil.GetIdentity(request.Context())
		if identity == nil {
			respond.Error(writer, request, ErrNoToken)
			return
		}

		account, ok := identity.User.(Account)
		if !ok || !account.IsEmailVerified() {
			respond.Error(writer, request, ErrEmailUnverified)
			return
		}

		next.ServeHTTP(writer, request)
	})
}

// EnsureOwner returns 403 "not your resource" unless ownerID is the caller's account.
func EnsureOwner(ctx context.Context, ownerID string) error {
	identity := ctxutil.GetIdentity(ctx)
	if identity == nil {
		return ErrNoToken
	}
	if ownerID == "" || ownerID != identity.UserID {
		return ErrNotOwner
	}
	return nil
}

// bearerToken extracts the token from a well-formed Bearer header.
func bearerToken(request *http.Request) (string, bool) {
	header := request.Header.Get(constants.HeaderAuthorization)
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, constants.AuthorizationSchema) {
		return "", false
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}

func isNotFound(err error) bool {
	if errors.Is(err, dberr.ErrNotFound) {
		return true
	}
	ae := apperr.As(err)
	return ae != nil && ae.HTTPStatus == http.StatusNotFound
}

// # Request Log Correlation

// identityHolder lets StructuredLogger learn the user id attached further down the chain.
type identityHolder struct {
	userID string
}

type holderKey struct{}

func withIdentityHolder(ctx context.Context, holder *identityHolder) context.Context {
	return context.WithValue(ctx, holderKey{}, holder)
}

func getIdentityHolder(ctx context.Context) *identityHolder {
	holder, _ := ctx.Value(holderKey{}).(*identityHolder)
	return holder
}
