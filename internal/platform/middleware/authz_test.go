// Copyright (c) 2026 Bazaar. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package middleware_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/bazaar/internal/platform/ctxutil"
	"github.com/taibuivan/bazaar/internal/platform/dberr"
	"github.com/taibuivan/bazaar/internal/platform/middleware"
	"github.com/taibuivan/bazaar/internal/platform/sec"
)

type stubAccount struct {
	id       string
	role     sec.UserRole
	banned   bool
	verified bool
}

func (a *stubAccount) AccountID() string         { return a.id }
func (a *stubAccount) AccountRole() sec.UserRole { return a.role }
func (a *stubAccount) IsBanned() bool            { return a.banned }
func (a *stubAccount) IsEmailVerified() bool     { return a.verified }

type testClock struct{ current time.Time }

func (c *testClock) Now() time.Time { return c.current }

type authFixture struct {
	tokens   *sec.TokenService
	clock    *testClock
	accounts map[string]*stubAccount
	router   chi.Router
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	clock := &testClock{current: time.Now()}
	tokens, err := sec.NewTokenService(sec.TokenConfig{
		AccessSecret:  []byte(strings.Repeat("a", 32)),
		RefreshSecret: []byte(strings.Repeat("b", 32)),
	}, sec.WithClock(clock.Now))
	require.NoError(t, err)

	fixture := &authFixture{tokens: tokens, clock: clock, accounts: map[string]*stubAccount{}}
	loader := middleware.AccountLoaderFunc(func(ctx context.Context, userID string) (middleware.Account, error) {
		account, ok := fixture.accounts[userID]
		if !ok {
			return nil, dberr.ErrNotFound
		}
		return account, nil
	})

	echo := func(writer http.ResponseWriter, request *http.Request) {
		identity := ctxutil.GetIdentity(request.Context())
		_ = json.NewEncoder(writer).Encode(map[string]string{"userId": identity.UserID, "role": string(identity.Role)})
	}

	router := chi.NewRouter()
	router.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(tokens, loader))
		r.Get("/me", echo)
		r.With(middleware.RequireRole(sec.RoleAdmin)).Get("/admin", echo)
		r.With(middleware.RequireVerified).Get("/listings", echo)
		r.Get("/owned/{owner}", func(writer http.ResponseWriter, request *http.Request) {
			if err := middleware.EnsureOwner(request.Context(), chi.URLParam(request, "owner")); err != nil {
				writer.WriteHeader(http.StatusForbidden)
				_, _ = writer.Write([]byte(err.Error()))
				return
			}
			writer.WriteHeader(http.StatusOK)
		})
	})
	fixture.router = router
	return fixture
}

func (f *authFixture) token(t *testing.T, userID string, role sec.UserRole) string {
	t.Helper()
	token, err := f.tokens.IssueAccessToken(sec.Identity{UserID: userID, Role: role})
	require.NoError(t, err)
	return token
}

func (f *authFixture) do(path, authorization string) *httptest.ResponseRecorder {
	request := httptest.NewRequest(http.MethodGet, path, nil)
	if authorization != "" {
		request.Header.Set("Authorization", authorization)
	}
	recorder := httptest.NewRecorder()
	f.router.ServeHTTP(recorder, request)
	return recorder
}

func decodeMessage(t *testing.T, recorder *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	message, _ := body["message"].(string)
	return message
}

/*
TestAuthenticate_Failures covers every rejection path of the bearer guard.
*/
func TestAuthenticate_Failures(t *testing.T) {
	fixture := newAuthFixture(t)
	fixture.accounts["banned"] = &stubAccount{id: "banned", role: sec.RoleUser, banned: true}

	refresh, err := fixture.tokens.IssueRefreshToken(sec.Identity{UserID: "u-1", Role: sec.RoleUser})
	require.NoError(t, err)

	tests := []struct {
		name          string
		authorization string
		wantStatus    int
		wantMessage   string
	}{
		{"no_header", "", http.StatusUnauthorized, "Unauthorized: No token provided"},
		{"wrong_scheme", "Basic abc", http.StatusUnauthorized, "Unauthorized: No token provided"},
		{"empty_bearer", "Bearer ", http.StatusUnauthorized, "Unauthorized: No token provided"},
		{"garbage", "Bearer garbage", http.StatusForbidden, "InvalidToken"},
		{"refresh_as_access", "Bearer " + refresh, http.StatusForbidden, "InvalidToken"},
		{"unknown_user", "Bearer " + fixture.token(t, "ghost", sec.RoleUser), http.StatusNotFound, "User not found"},
		{"banned_user", "Bearer " + fixture.token(t, "banned", sec.RoleUser), http.StatusForbidden, "Account is banned"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := fixture.do("/me", tt.authorization)
			assert.Equal(t, tt.wantStatus, recorder.Code)
			assert.Equal(t, tt.wantMessage, decodeMessage(t, recorder))
		})
	}
}

/*
TestAuthenticate_Expired verifies the expired token path after the clock moves past 15 minutes.
*/
func TestAuthenticate_Expired(t *testing.T) {
	fixture := newAuthFixture(t)
	fixture.accounts["u-1"] = &stubAccount{id: "u-1", role: sec.RoleUser}
	token := fixture.token(t, "u-1", sec.RoleUser)

	assert.Equal(t, http.StatusOK, fixture.do("/me", "Bearer "+token).Code)

	fixture.clock.current = fixture.clock.current.Add(16 * time.Minute)
	recorder := fixture.do("/me", "Bearer "+token)
	assert.Equal(t, http.StatusForbidden, recorder.Code)
	assert.Equal(t, "TokenExpired", decodeMessage(t, recorder))
}

/*
TestAuthenticate_AttachesStoredRole verifies the identity uses the stored role.
*/
func TestAuthenticate_AttachesStoredRole(t *testing.T) {
	fixture := newAuthFixture(t)
	fixture.accounts["u-1"] = &stubAccount{id: "u-1", role: sec.RoleUser}

	// Token claims admin, the store says user.
	recorder := fixture.do("/me", "bearer "+fixture.token(t, "u-1", sec.RoleAdmin))
	require.Equal(t, http.StatusOK, recorder.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Equal(t, "u-1", body["userId"])
	assert.Equal(t, "user", body["role"])
}

/*
TestRequireRole_AdminOnly verifies the admin gate.
*/
func TestRequireRole_AdminOnly(t *testing.T) {
	fixture := newAuthFixture(t)
	fixture.accounts["u-1"] = &stubAccount{id: "u-1", role: sec.RoleUser}
	fixture.accounts["admin"] = &stubAccount{id: "admin", role: sec.RoleAdmin}

	recorder := fixture.do("/admin", "Bearer "+fixture.token(t, "u-1", sec.RoleUser))
	assert.Equal(t, http.StatusForbidden, recorder.Code)
	assert.Equal(t, "Admin only", decodeMessage(t, recorder))

	assert.Equal(t, http.StatusOK, fixture.do("/admin", "Bearer "+fixture.token(t, "admin", sec.RoleAdmin)).Code)
}

/*
TestRequireVerified blocks unverified accounts.
*/
func TestRequireVerified(t *testing.T) {
	fixture := newAuthFixture(t)
	fixture.accounts["fresh"] = &stubAccount{id: "fresh", role: sec.RoleUser}
	fixture.accounts["verified"] = &stubAccount{id: "verified", role: sec.RoleUser, verified: true}

	recorder := fixture.do("/listings", "Bearer "+fixture.token(t, "fresh", sec.RoleUser))
	assert.Equal(t, http.StatusForbidden, recorder.Code)
	assert.Equal(t, "Please verify your email", decodeMessage(t, recorder))

	assert.Equal(t, http.StatusOK, fixture.do("/listings", "Bearer "+fixture.token(t, "verified", sec.RoleUser)).Code)
}

/*
TestEnsureOwner compares the resource owner with the caller.
*/
func TestEnsureOwner(t *testing.T) {
	fixture := newAuthFixture(t)
	fixture.accounts["u-1"] = &stubAccount{id: "u-1", role: sec.RoleUser}
	token := "Bearer " + fixture.token(t, "u-1", sec.RoleUser)

	assert.Equal(t, http.StatusOK, fixture.do("/owned/u-1", token).Code)

	recorder := fixture.do("/owned/u-2", token)
	assert.Equal(t, http.StatusForbidden, recorder.Code)
	assert.Equal(t, "not your resource", recorder.Body.String())

	assert.ErrorIs(t, middleware.EnsureOwner(context.Background(), "u-1"), middleware.ErrNoToken)
}

/*
TestAuthenticate_LoaderFailure surfaces unexpected store errors as 500.
*/
func TestAuthenticate_LoaderFailure(t *testing.T) {
	tokens, err := sec.NewTokenService(sec.TokenConfig{
		AccessSecret:  []byte(strings.Repeat("a", 32)),
		RefreshSecret: []byte(strings.Repeat("b", 32)),
	})
	require.NoError(t, err)

	loader := middleware.AccountLoaderFunc(func(ctx context.Context, userID string) (middleware.Account, error) {
		return nil, errors.New("connection refused")
	})
	handler := middleware.Authenticate(tokens, loader)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	}))

	token, err := tokens.IssueAccessToken(sec.Identity{UserID: "u-1", Role: sec.RoleUser})
	require.NoError(t, err)

	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request.Header.Set("Authorization", "Bearer "+token)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
	assert.Equal(t, "Internal Server Error", decodeMessage(t, recorder))
}
