package client_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/taskflow/internal/client"
	"github.com/gosuda/taskflow/internal/domain"
)

func newServer(t *testing.T, h http.HandlerFunc) *client.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return client.New(srv.URL, "tok", srv.Client())
}

func TestClient_MoveTask(t *testing.T) {
	t.Parallel()

	taskID := uuid.New()
	colID := uuid.New()

	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/tasks/"+taskID.String()+"/move", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		var in struct {
			ColumnID uuid.UUID `json:"column_id"`
			Position int       `json:"position"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, colID, in.ColumnID)
		assert.Equal(t, 2, in.Position)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"task":     domain.Task{ID: taskID, ColumnID: colID, Position: 2},
			"revision": 9,
		})
	})

	res, err := c.MoveTask(t.Context(), taskID, colID, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(9), res.Revision)
	assert.Equal(t, 2, res.Task.Position)
}

func TestClient_ErrorsMapToDomain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status int
		want   error
	}{
		{http.StatusNotFound, domain.ErrNotFound},
		{http.StatusForbidden, domain.ErrForbidden},
		{http.StatusUnauthorized, domain.ErrUnauthorized},
		{http.StatusConflict, domain.ErrConflict},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			t.Parallel()

			c := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/problem+json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"title":"x","status":0,"detail":"board not found"}`))
			})

			_, err := c.CheckAccess(t.Context(), uuid.New())
			require.ErrorIs(t, err, tt.want)

			var apiErr *client.APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, "board not found", apiErr.Detail)
		})
	}
}

func TestClient_ServerErrorIsNotDomain(t *testing.T) {
	t.Parallel()

	c := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.GetBoard(t.Context(), uuid.New())
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
	assert.Contains(t, err.Error(), "500")
}

func TestClient_GetBoard(t *testing.T) {
	t.Parallel()

	boardID := uuid.New()
	colID := uuid.New()
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/boards/"+boardID.String(), r.URL.Path)
		_ = json.NewEncoder(w).Encode(domain.BoardContent{
			Board:   &domain.Board{ID: boardID, Title: "Roadmap", Revision: 3},
			Columns: []*domain.Column{{ID: colID, BoardID: boardID, Title: "To do"}},
			Tasks:   []*domain.Task{{ID: uuid.New(), ColumnID: colID, Title: "Write tests"}},
		})
	})

	got, err := c.GetBoard(t.Context(), boardID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.Board.Revision)
	require.Len(t, got.Tasks, 1)
	assert.Equal(t, "Write tests", got.Tasks[0].Title)
}

func TestClient_Online(t *testing.T) {
	t.Parallel()

	boardID := uuid.New()
	ann := domain.Viewer{UserID: uuid.New(), Email: "ann@example.com"}
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/boards/"+boardID.String()+"/presence", r.URL.Path)
		_ = json.NewEncoder(w).Encode([]domain.Viewer{ann})
	})

	got, err := c.Online(t.Context(), boardID)
	require.NoError(t, err)
	assert.Equal(t, []domain.Viewer{ann}, got)
}

func TestClient_WithToken(t *testing.T) {
	t.Parallel()

	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer other", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[]`))
	})

	boards, err := c.WithToken("other").ListBoards(t.Context())
	require.NoError(t, err)
	assert.Empty(t, boards)
	assert.Equal(t, "tok", c.Token())
}
