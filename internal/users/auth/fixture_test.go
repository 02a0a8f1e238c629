// Copyright (c) 2026 Bazaar. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/bazaar/internal/platform/dberr"
	platformredis "github.com/taibuivan/bazaar/internal/platform/redis"
	"github.com/taibuivan/bazaar/internal/platform/sec"
	"github.com/taibuivan/bazaar/pkg/pagination"
)

const testClientURL = "https://bazaar.test"

// # In-memory Store

// memoryRepository mimics the row semantics of the Postgres store: callers get
// copies, and Save overwrites the whole record.
type memoryRepository struct {
	mu    sync.Mutex
	users map[string]*User
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{users: map[string]*User{}}
}

func cloneUser(user *User) *User {
	copied := *user
	if user.Verification != nil {
		pending := *user.Verification
		copied.Verification = &pending
	}
	if user.Reset != nil {
		pending := *user.Reset
		copied.Reset = &pending
	}
	return &copied
}

func (repo *memoryRepository) FindByID(ctx context.Context, id string) (*User, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	user, ok := repo.users[id]
	if !ok {
		return nil, dberr.ErrNotFound
	}
	return cloneUser(user), nil
}

func (repo *memoryRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	for _, user := range repo.users {
		if user.Email == email {
			return cloneUser(user), nil
		}
	}
	return nil, dberr.ErrNotFound
}

func (repo *memoryRepository) FindByResetTokenHash(ctx context.Context, digest string, now time.Time) (*User, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	for _, user := range repo.users {
		if user.Reset != nil && user.Reset.Hash == digest && user.Reset.ExpiresAt.After(now) {
			return cloneUser(user), nil
		}
	}
	return nil, dberr.ErrNotFound
}

func (repo *memoryRepository) Create(ctx context.Context, user *User) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	for _, existing := range repo.users {
		if existing.Email == user.Email {
			return ErrUserExists
		}
	}
	repo.users[user.ID] = cloneUser(user)
	return nil
}

func (repo *memoryRepository) Save(ctx context.Context, user *User) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	if _, ok := repo.users[user.ID]; !ok {
		return dberr.ErrNotFound
	}
	user.UpdatedAt = time.Now()
	repo.users[user.ID] = cloneUser(user)
	return nil
}

func (repo *memoryRepository) List(ctx context.Context, filter UserFilter, page pagination.Params) ([]*User, int, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	matched := make([]*User, 0, len(repo.users))
	for _, user := range repo.users {
		if filter.Status != nil && user.Status != *filter.Status {
			continue
		}
		matched = append(matched, cloneUser(user))
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := len(matched)
	start := min(page.Offset(), total)
	end := min(start+page.Limit, total)
	return matched[start:end], total, nil
}

// stored returns the persisted record for email, bypassing the service.
func (repo *memoryRepository) stored(t *testing.T, email string) *User {
	t.Helper()
	user, err := repo.FindByEmail(context.Background(), email)
	require.NoError(t, err)
	return user
}

// # Recording Notifier

type recordingNotifier struct {
	mu    sync.Mutex
	codes map[string][]string
	links map[string][]string
	err   error
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{codes: map[string][]string{}, links: map[string][]string{}}
}

func (notifier *recordingNotifier) SendVerificationCode(ctx context.Context, email, code string) error {
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if notifier.err != nil {
		return notifier.err
	}
	notifier.codes[email] = append(notifier.codes[email], code)
	return nil
}

func (notifier *recordingNotifier) SendPasswordReset(ctx context.Context, email, link string) error {
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if notifier.err != nil {
		return notifier.err
	}
	notifier.links[email] = append(notifier.links[email], link)
	return nil
}

func (notifier *recordingNotifier) lastCode(t *testing.T, email string) string {
	t.Helper()
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	codes := notifier.codes[email]
	require.NotEmpty(t, codes, "no code sent to %s", email)
	return codes[len(codes)-1]
}

func (notifier *recordingNotifier) allCodes(email string) []string {
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	return append([]string(nil), notifier.codes[email]...)
}

func (notifier *recordingNotifier) lastResetToken(t *testing.T, email string) string {
	t.Helper()
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	links := notifier.links[email]
	require.NotEmpty(t, links, "no reset link sent to %s", email)
	return strings.TrimPrefix(links[len(links)-1], testClientURL+ResetLinkPath)
}

// # Fixture

type testClock struct{ current time.Time }

func (c *testClock) Now() time.Time { return c.current }

func (c *testClock) Advance(d time.Duration) { c.current = c.current.Add(d) }

type fixture struct {
	clock    *testClock
	repo     *memoryRepository
	notifier *recordingNotifier
	tokens   *sec.TokenService
	service  *Service
	router   chi.Router
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clock := &testClock{current: time.Now().Truncate(time.Second)}
	tokens, err := sec.NewTokenService(sec.TokenConfig{
		AccessSecret:  []byte(strings.Repeat("a", 32)),
		RefreshSecret: []byte(strings.Repeat("r", 32)),
	}, sec.WithClock(clock.Now))
	require.NoError(t, err)

	server := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	limiter := platformredis.NewLimiter(client, platformredis.LimiterConfig{MaxAttempts: 10, Window: 15 * time.Minute}, logger)

	repo := newMemoryRepository()
	notifier := newRecordingNotifier()
	service := NewService(repo, tokens, notifier, limiter, testClientURL, logger, WithClock(clock.Now))

	router := chi.NewRouter()
	router.Mount("/api/v1/auth", NewHandler(service, tokens, tokens.RefreshTTL(), false).Routes())

	return &fixture{
		clock:    clock,
		repo:     repo,
		notifier: notifier,
		tokens:   tokens,
		service:  service,
		router:   router,
	}
}

// seed stores an account directly, bypassing registration.
func (f *fixture) seed(t *testing.T, email, password string, mutate func(*User)) *User {
	t.Helper()

	hash, err := sec.HashPassword(password)
	require.NoError(t, err)

	user := &User{
		ID:           "u-" + email,
		Username:     "seeded",
		Email:        email,
		PasswordHash: hash,
		Role:         sec.RoleUser,
		Status:       StatusActive,
		CreatedAt:    f.clock.Now(),
	}
	if mutate != nil {
		mutate(user)
	}
	require.NoError(t, f.repo.Create(context.Background(), user))
	return user
}

// # HTTP Helpers

type requestOption func(*http.Request)

func withBearer(token string) requestOption {
	return func(request *http.Request) {
		request.Header.Set("Authorization", "Bearer "+token)
	}
}

func withCookie(cookie *http.Cookie) requestOption {
	return func(request *http.Request) {
		request.AddCookie(cookie)
	}
}

func (f *fixture) do(t *testing.T, method, path string, body any, opts ...requestOption) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	request := httptest.NewRequest(method, path, reader)
	request.Header.Set("Content-Type", "application/json")
	for _, opt := range opts {
		opt(request)
	}

	recorder := httptest.NewRecorder()
	f.router.ServeHTTP(recorder, request)
	return recorder
}

type responseBody struct {
	Message        string         `json:"message"`
	Code           string         `json:"code"`
	Token          string         `json:"token"`
	NewAccessToken string         `json:"newAccessToken"`
	User           map[string]any `json:"user"`
}

func decode(t *testing.T, recorder *httptest.ResponseRecorder) responseBody {
	t.Helper()
	var body responseBody
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body), recorder.Body.String())
	return body
}

func refreshCookie(recorder *httptest.ResponseRecorder) *http.Cookie {
	for _, cookie := range recorder.Result().Cookies() {
		if cookie.Name == "refreshToken" {
			return cookie
		}
	}
	return nil
}

// register signs up through the API and returns the access token and refresh cookie.
func (f *fixture) register(t *testing.T, username, email, password string) (string, *http.Cookie) {
	t.Helper()

	recorder := f.do(t, http.MethodPost, "/api/v1/auth/register", map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	})
	require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())

	body := decode(t, recorder)
	require.NotEmpty(t, body.Token)
	cookie := refreshCookie(recorder)
	require.NotNil(t, cookie)
	return body.Token, cookie
}

// otherCode returns a six-digit code different from code.
func otherCode(code string) string {
	if code == "100000" {
		return "100001"
	}
	return "100000"
}

// refresh trades the refresh cookie for a new access token.
func (f *fixture) refresh(t *testing.T, cookie *http.Cookie) string {
	t.Helper()

	recorder := f.do(t, http.MethodPost, "/api/v1/auth/refreshToken", nil, withCookie(cookie))
	require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())
	return decode(t, recorder).NewAccessToken
}
