package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/taskflow/internal/auth"
	"github.com/gosuda/taskflow/internal/server/middleware"
)

const testSecret = "test-secret-that-is-at-least-32ch"

// contextHandler captures context values set by middleware.
type contextHandler struct {
	userID uuid.UUID
	email  string
	called bool
}

func (h *contextHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.called = true
	h.userID, _ = middleware.UserIDFromContext(r.Context())
	h.email, _ = middleware.EmailFromContext(r.Context())
	w.WriteHeader(http.StatusOK)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
}

func TestUserIDFromContext(t *testing.T) {
	t.Parallel()

	_, ok := middleware.UserIDFromContext(context.Background())
	assert.False(t, ok)

	_, ok = middleware.UserIDFromContext(middleware.WithUser(context.Background(), uuid.Nil, ""))
	assert.False(t, ok, "nil user is not authenticated")

	id := uuid.New()
	got, ok := middleware.UserIDFromContext(middleware.WithUser(context.Background(), id, "a@b.c"))
	require.True(t, ok)
	assert.Equal(t, id, got)
}

func TestAuth_ValidToken_PopulatesContext(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	token, err := auth.IssueAccessToken(testSecret, userID, "alice@example.com", time.Minute)
	require.NoError(t, err)

	h := &contextHandler{}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	middleware.Auth(testSecret)(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, h.called)
	assert.Equal(t, userID, h.userID)
	assert.Equal(t, "alice@example.com", h.email)
}

func TestAuth_Rejects(t *testing.T) {
	t.Parallel()

	expired, err := auth.IssueAccessToken(testSecret, uuid.New(), "a@b.c", -time.Second)
	require.NoError(t, err)
	foreign, err := auth.IssueAccessToken("another-secret-of-sufficient-size", uuid.New(), "a@b.c", time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{name: "no header", header: ""},
		{name: "garbage", header: "Bearer not-a-token"},
		{name: "expired", header: "Bearer " + expired},
		{name: "wrong secret", header: "Bearer " + foreign},
		{name: "basic scheme", header: "Basic dXNlcjpwYXNz"},
		{name: "bearer without token", header: "Bearer "},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			h := &contextHandler{}
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			middleware.Auth(testSecret)(h).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.False(t, h.called)
			assert.Contains(t, rec.Body.String(), `"status":401`)
		})
	}
}

func TestAuth_BearerCaseInsensitive(t *testing.T) {
	t.Parallel()

	token, err := auth.IssueAccessToken(testSecret, uuid.New(), "a@b.c", time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bEaReR "+token)
	rec := httptest.NewRecorder()
	middleware.Auth(testSecret)(okHandler()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit_NoUser_PassesThrough(t *testing.T) {
	t.Parallel()

	mw := middleware.RateLimit(t.Context(), 1, 1)(okHandler())
	for range 5 {
		rec := httptest.NewRecorder()
		mw.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRateLimit_BurstExceeded_Returns429(t *testing.T) {
	t.Parallel()

	mw := middleware.RateLimit(t.Context(), 0.001, 2)(okHandler())
	ctx := middleware.WithUser(context.Background(), uuid.New(), "")

	codes := make([]int, 0, 3)
	for range 3 {
		rec := httptest.NewRecorder()
		mw.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx))
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimit_IndependentPerUser(t *testing.T) {
	t.Parallel()

	mw := middleware.RateLimit(t.Context(), 0.001, 1)(okHandler())
	a := middleware.WithUser(context.Background(), uuid.New(), "")
	b := middleware.WithUser(context.Background(), uuid.New(), "")

	for _, ctx := range []context.Context{a, b} {
		rec := httptest.NewRecorder()
		mw.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx))
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil).WithContext(a))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRateLimitByIP_KeysOnHost(t *testing.T) {
	t.Parallel()

	mw := middleware.RateLimitByIP(t.Context(), 0.001, 1)(okHandler())

	first := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	first.RemoteAddr = "10.0.0.1:5000"
	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, first)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Same host, different source port.
	second := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	second.RemoteAddr = "10.0.0.1:5001"
	rec = httptest.NewRecorder()
	mw.ServeHTTP(rec, second)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	other := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	other.RemoteAddr = "10.0.0.2:5000"
	rec = httptest.NewRecorder()
	mw.ServeHTTP(rec, other)
	assert.Equal(t, http.StatusOK, rec.Code)
}
