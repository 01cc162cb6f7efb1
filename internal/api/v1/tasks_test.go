package v1_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/gosuda/taskflow/internal/api/v1"
	"github.com/gosuda/taskflow/internal/domain"
)

type taskBody struct {
	Task     *domain.Task `json:"task"`
	Revision int64        `json:"revision"`
}

// taskStore wires a fixture board with two columns and one task in the first.
func taskStore(f *boardFixture) (*mockDataStore, []*domain.Column, *domain.Task) {
	store := f.store()
	cols := columnFixture(f, "To do", "Done")
	withColumns(store, cols)
	task := &domain.Task{
		ID:       uuid.New(),
		BoardID:  f.board.ID,
		ColumnID: cols[0].ID,
		Title:    "Write docs",
		Priority: domain.PriorityMedium,
	}
	store.tasks = &mockTaskRepo{
		getByIDFunc: func(_ context.Context, id uuid.UUID) (*domain.Task, error) {
			if id != task.ID {
				return nil, domain.ErrNotFound
			}
			return task.Clone(), nil
		},
	}
	return store, cols, task
}

func TestCreateTask(t *testing.T) {
	t.Parallel()

	t.Run("defaults_to_end_of_column", func(t *testing.T) {
		t.Parallel()

		f := newBoardFixture()
		store, cols, _ := taskStore(f)
		store.tasks.createFunc = func(_ context.Context, task *domain.Task) (int64, error) {
			assert.Equal(t, cols[1].ID, task.ColumnID)
			assert.Equal(t, f.member, task.CreatedBy)
			assert.Equal(t, domain.PriorityMedium, task.Priority)
			assert.Greater(t, task.Position, 1000)
			task.Position = 0
			return 20, nil
		}
		pub := &mockPublisher{}
		_, api := humatest.New(t)
		v1.RegisterTaskRoutes(api, store, pub)

		resp := api.PostCtx(userCtx(f.member), "/boards/"+f.board.ID.String()+"/tasks", map[string]any{
			"column_id": cols[1].ID.String(),
			"title":     "Ship it",
		})

		require.Equal(t, http.StatusOK, resp.Code)
		var body taskBody
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "Ship it", body.Task.Title)
		assert.Equal(t, int64(20), body.Revision)

		events := pub.all()
		require.Len(t, events, 1)
		assert.Equal(t, domain.EntityTask, events[0].event.Entity)
		assert.Equal(t, cols[1].ID, events[0].event.ParentID)
		assert.Equal(t, int64(20), events[0].event.Revision)
	})

	t.Run("explicit_priority_and_position", func(t *testing.T) {
		t.Parallel()

		f := newBoardFixture()
		store, cols, _ := taskStore(f)
		store.tasks.createFunc = func(_ context.Context, task *domain.Task) (int64, error) {
			assert.Equal(t, domain.PriorityUrgent, task.Priority)
			assert.Equal(t, 0, task.Position)
			return 21, nil
		}
		_, api := humatest.New(t)
		v1.RegisterTaskRoutes(api, store, &mockPublisher{})

		resp := api.PostCtx(userCtx(f.member), "/boards/"+f.board.ID.String()+"/tasks", map[string]any{
			"column_id": cols[0].ID.String(),
			"title":     "Hotfix",
			"priority":  "urgent",
			"position":  0,
		})
		assert.Equal(t, http.StatusOK, resp.Code)
	})

	t.Run("column_from_other_board", func(t *testing.T) {
		t.Parallel()

		f := newBoardFixture()
		store, _, _ := taskStore(f)
		foreign := &domain.Column{ID: uuid.New(), BoardID: uuid.New()}
		store.columns.getByIDFunc = func(context.Context, uuid.UUID) (*domain.Column, error) {
			return foreign, nil
		}
		_, api := humatest.New(t)
		v1.RegisterTaskRoutes(api, store, &mockPublisher{})

		resp := api.PostCtx(userCtx(f.member), "/boards/"+f.board.ID.String()+"/tasks", map[string]any{
			"column_id": foreign.ID.String(),
			"title":     "Nope",
		})
		assert.Equal(t, http.StatusNotFound, resp.Code)
	})

	t.Run("outsider_not_found", func(t *testing.T) {
		t.Parallel()

		f := newBoardFixture()
		store, cols, _ := taskStore(f)
		_, api := humatest.New(t)
		v1.RegisterTaskRoutes(api, store, &mockPublisher{})

		resp := api.PostCtx(userCtx(f.outsider), "/boards/"+f.board.ID.String()+"/tasks", map[string]any{
			"column_id": cols[0].ID.String(),
			"title":     "Sneaky",
		})
		assert.Equal(t, http.StatusNotFound, resp.Code)
	})
}

func TestMoveTask(t *testing.T) {
	t.Parallel()

	t.Run("happy_path", func(t *testing.T) {
		t.Parallel()

		f := newBoardFixture()
		store, cols, task := taskStore(f)
		store.tasks.moveFunc = func(_ context.Context, id, columnID uuid.UUID, position int) (*domain.Task, int64, error) {
			assert.Equal(t, task.ID, id)
			assert.Equal(t, cols[1].ID, columnID)
			assert.Equal(t, 3, position)
			moved := task.Clone()
			moved.ColumnID = columnID
			moved.Position = 0
			return moved, 30, nil
		}
		pub := &mockPublisher{}
		_, api := humatest.New(t)
		v1.RegisterTaskRoutes(api, store, pub)

		resp := api.PostCtx(userCtx(f.member), "/tasks/"+task.ID.String()+"/move", map[string]any{
			"column_id": cols[1].ID.String(),
			"position":  3,
		})

		require.Equal(t, http.StatusOK, resp.Code)
		var body taskBody
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, cols[1].ID, body.Task.ColumnID)
		assert.Equal(t, 0, body.Task.Position)
		assert.Equal(t, int64(30), body.Revision)

		events := pub.all()
		require.Len(t, events, 1)
		assert.Equal(t, cols[1].ID, events[0].event.ParentID)
	})

	t.Run("archived_task_conflicts", func(t *testing.T) {
		t.Parallel()

		f := newBoardFixture()
		store, cols, task := taskStore(f)
		store.tasks.moveFunc = func(context.Context, uuid.UUID, uuid.UUID, int) (*domain.Task, int64, error) {
			return nil, 0, domain.ErrConflict
		}
		_, api := humatest.New(t)
		v1.RegisterTaskRoutes(api, store, &mockPublisher{})

		resp := api.PostCtx(userCtx(f.member), "/tasks/"+task.ID.String()+"/move", map[string]any{
			"column_id": cols[0].ID.String(),
			"position":  0,
		})
		assert.Equal(t, http.StatusConflict, resp.Code)
	})

	t.Run("negative_position_rejected", func(t *testing.T) {
		t.Parallel()

		f := newBoardFixture()
		store, cols, task := taskStore(f)
		_, api := humatest.New(t)
		v1.RegisterTaskRoutes(api, store, &mockPublisher{})

		resp := api.PostCtx(userCtx(f.member), "/tasks/"+task.ID.String()+"/move", map[string]any{
			"column_id": cols[0].ID.String(),
			"position":  -1,
		})
		assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	})

	t.Run("unknown_task", func(t *testing.T) {
		t.Parallel()

		f := newBoardFixture()
		store, cols, _ := taskStore(f)
		_, api := humatest.New(t)
		v1.RegisterTaskRoutes(api, store, &mockPublisher{})

		resp := api.PostCtx(userCtx(f.member), "/tasks/"+uuid.NewString()+"/move", map[string]any{
			"column_id": cols[0].ID.String(),
			"position":  0,
		})
		assert.Equal(t, http.StatusNotFound, resp.Code)
	})
}

func TestUpdateTask(t *testing.T) {
	t.Parallel()

	t.Run("partial_update", func(t *testing.T) {
		t.Parallel()

		f := newBoardFixture()
		store, _, task := taskStore(f)
		assignee := uuid.New()
		store.tasks.updateFunc = func(_ context.Context, got *domain.Task) (int64, error) {
			assert.Equal(t, "Write better docs", got.Title)
			assert.Equal(t, domain.PriorityHigh, got.Priority)
			require.NotNil(t, got.AssignedTo)
			assert.Equal(t, assignee, *got.AssignedTo)
			assert.Empty(t, got.Description)
			return 40, nil
		}
		_, api := humatest.New(t)
		v1.RegisterTaskRoutes(api, store, &mockPublisher{})

		resp := api.PatchCtx(userCtx(f.member), "/tasks/"+task.ID.String(), map[string]any{
			"title":       "Write better docs",
			"priority":    "high",
			"assigned_to": assignee.String(),
		})

		require.Equal(t, http.StatusOK, resp.Code)
	})

	t.Run("blank_title", func(t *testing.T) {
		t.Parallel()

		f := newBoardFixture()
		store, _, task := taskStore(f)
		_, api := humatest.New(t)
		v1.RegisterTaskRoutes(api, store, &mockPublisher{})

		resp := api.PatchCtx(userCtx(f.member), "/tasks/"+task.ID.String(), map[string]any{"title": "  "})
		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})
}

func TestArchiveTask(t *testing.T) {
	t.Parallel()

	for _, archived := range []bool{true, false} {
		path := "/archive"
		if !archived {
			path = "/unarchive"
		}
		t.Run(path, func(t *testing.T) {
			t.Parallel()

			f := newBoardFixture()
			store, _, task := taskStore(f)
			store.tasks.setArchivedFunc = func(_ context.Context, id uuid.UUID, got bool) (*domain.Task, int64, error) {
				assert.Equal(t, task.ID, id)
				assert.Equal(t, archived, got)
				out := task.Clone()
				out.Archived = got
				return out, 50, nil
			}
			_, api := humatest.New(t)
			v1.RegisterTaskRoutes(api, store, &mockPublisher{})

			resp := api.PostCtx(userCtx(f.member), "/tasks/"+task.ID.String()+path, nil)

			require.Equal(t, http.StatusOK, resp.Code)
			var body taskBody
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, archived, body.Task.Archived)
		})
	}
}

func TestDeleteTask(t *testing.T) {
	t.Parallel()

	f := newBoardFixture()
	store, _, task := taskStore(f)
	store.tasks.deleteFunc = func(_ context.Context, id uuid.UUID) (*domain.Task, int64, error) {
		return task, 60, nil
	}
	pub := &mockPublisher{}
	_, api := humatest.New(t)
	v1.RegisterTaskRoutes(api, store, pub)

	resp := api.DeleteCtx(userCtx(f.admin), "/tasks/"+task.ID.String())

	require.Equal(t, http.StatusNoContent, resp.Code)
	events := pub.all()
	require.Len(t, events, 1)
	assert.Equal(t, domain.OpDelete, events[0].event.Op)
	assert.Equal(t, task.ID, events[0].event.EntityID)
}

func TestListArchivedTasks(t *testing.T) {
	t.Parallel()

	f := newBoardFixture()
	store, _, _ := taskStore(f)
	store.tasks.listArchivedFunc = func(_ context.Context, boardID uuid.UUID) ([]*domain.Task, error) {
		assert.Equal(t, f.board.ID, boardID)
		return nil, nil
	}
	_, api := humatest.New(t)
	v1.RegisterTaskRoutes(api, store, &mockPublisher{})

	resp := api.GetCtx(userCtx(f.member), "/boards/"+f.board.ID.String()+"/tasks/archived")

	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, "[]", resp.Body.String())
}
