package server_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/taskflow/internal/auth"
	"github.com/gosuda/taskflow/internal/config"
	"github.com/gosuda/taskflow/internal/domain"
	"github.com/gosuda/taskflow/internal/server"
)

const testSecret = "test-secret-that-is-at-least-32-characters"

type fakeBoards struct {
	domain.BoardRepository
}

func (fakeBoards) ListForUser(context.Context, uuid.UUID) ([]*domain.Board, error) {
	return nil, nil
}

type fakeStore struct {
	pingErr error
}

func (s *fakeStore) Boards() domain.BoardRepository     { return fakeBoards{} }
func (s *fakeStore) Columns() domain.ColumnRepository   { return nil }
func (s *fakeStore) Tasks() domain.TaskRepository       { return nil }
func (s *fakeStore) Comments() domain.CommentRepository { return nil }
func (s *fakeStore) Members() domain.MemberRepository   { return nil }
func (s *fakeStore) Users() domain.UserRepository       { return nil }
func (s *fakeStore) Ping(context.Context) error         { return s.pingErr }

type fakeBroker struct {
	pingErr error
}

func (b *fakeBroker) PublishChange(context.Context, domain.ChangeEvent, ...uuid.UUID) error {
	return nil
}

func (b *fakeBroker) SubscribeChanges(context.Context, string) (<-chan domain.ChangeEvent, func(), error) {
	return nil, nil, errors.New("not used")
}

func (b *fakeBroker) Ping(context.Context) error { return b.pingErr }

func (b *fakeBroker) Join(context.Context, uuid.UUID, domain.Viewer) (bool, error) { return true, nil }
func (b *fakeBroker) Leave(context.Context, uuid.UUID, uuid.UUID) (bool, error)    { return true, nil }
func (b *fakeBroker) Touch(context.Context, uuid.UUID) error                       { return nil }
func (b *fakeBroker) Online(context.Context, uuid.UUID) ([]domain.Viewer, error) {
	return nil, nil
}

type fakeAuth struct{}

func (fakeAuth) Register(context.Context, string, string, string) (string, *domain.User, error) {
	return "", nil, auth.ErrUserAlreadyExists
}

func (fakeAuth) Login(context.Context, string, string) (string, *domain.User, error) {
	return "", nil, auth.ErrInvalidCredentials
}

func testConfig() *config.Config {
	return &config.Config{
		JWT: config.JWTConfig{Secret: testSecret, AccessTTL: time.Hour},
		Server: config.ServerConfig{
			Addr:        ":0",
			CORSOrigins: []string{"http://localhost:5173"},
			RateLimit:   100,
			RateBurst:   100,
		},
	}
}

func newServer(t *testing.T, store *fakeStore, broker *fakeBroker) http.Handler {
	t.Helper()
	return server.New(t.Context(), testConfig(), store, broker, fakeAuth{}).Handler()
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	h := newServer(t, &fakeStore{}, &fakeBroker{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestReadyz(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		store     *fakeStore
		broker    *fakeBroker
		want      int
		component string
	}{
		{"ready", &fakeStore{}, &fakeBroker{}, http.StatusOK, ""},
		{"postgres_down", &fakeStore{pingErr: errors.New("down")}, &fakeBroker{}, http.StatusServiceUnavailable, "postgres"},
		{"redis_down", &fakeStore{}, &fakeBroker{pingErr: errors.New("down")}, http.StatusServiceUnavailable, "redis"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newServer(t, tt.store, tt.broker)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			assert.Equal(t, tt.want, rec.Code)
			if tt.component != "" {
				assert.Contains(t, rec.Body.String(), tt.component)
			}
		})
	}
}

func TestAPI_RequiresToken(t *testing.T) {
	t.Parallel()

	h := newServer(t, &fakeStore{}, &fakeBroker{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/boards", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPI_WithToken(t *testing.T) {
	t.Parallel()

	token, err := auth.IssueAccessToken(testSecret, uuid.New(), "a@example.com", time.Hour)
	require.NoError(t, err)

	h := newServer(t, &fakeStore{}, &fakeBroker{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/boards", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestAuthRoutes_Public(t *testing.T) {
	t.Parallel()

	h := newServer(t, &fakeStore{}, &fakeBroker{})
	body := strings.NewReader(`{"email":"a@example.com","password":"nope"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid email or password")
}

func TestWS_RequiresToken(t *testing.T) {
	t.Parallel()

	h := newServer(t, &fakeStore{}, &fakeBroker{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws/user", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCORS_Preflight(t *testing.T) {
	t.Parallel()

	h := newServer(t, &fakeStore{}, &fakeBroker{})
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/boards", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}
