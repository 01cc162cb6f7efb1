package v1

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/taskflow/internal/domain"
)

// endOfColumn is clamped by the store to the column length.
const endOfColumn = math.MaxInt32

type CreateTaskInput struct {
	BoardID uuid.UUID `path:"boardID" doc:"Board ID"`
	Body    struct {
		ColumnID    uuid.UUID  `json:"column_id" doc:"Target column"`
		Title       string     `json:"title" minLength:"1" maxLength:"500" doc:"Task title"`
		Description string     `json:"description,omitempty" doc:"Task description"`
		Priority    string     `json:"priority,omitempty" enum:"low,medium,high,urgent" doc:"Priority, medium when omitted"`
		DueDate     *time.Time `json:"due_date,omitempty" doc:"Due date"`
		AssignedTo  *uuid.UUID `json:"assigned_to,omitempty" doc:"Assignee user ID"`
		Position    *int       `json:"position,omitempty" minimum:"0" doc:"Position in the column, end when omitted"`
	}
}

type TaskPathInput struct {
	TaskID uuid.UUID `path:"taskID" doc:"Task ID"`
}

type UpdateTaskInput struct {
	TaskID uuid.UUID `path:"taskID" doc:"Task ID"`
	Body   struct {
		Title       *string    `json:"title,omitempty" maxLength:"500" doc:"Task title"`
		Description *string    `json:"description,omitempty" doc:"Task description"`
		Priority    *string    `json:"priority,omitempty" enum:"low,medium,high,urgent" doc:"Priority"`
		DueDate     *time.Time `json:"due_date,omitempty" doc:"Due date"`
		ClearDue    bool       `json:"clear_due_date,omitempty" doc:"Remove the due date"`
		AssignedTo  *uuid.UUID `json:"assigned_to,omitempty" doc:"Assignee user ID"`
		Unassign    bool       `json:"unassign,omitempty" doc:"Remove the assignee"`
	}
}

type MoveTaskInput struct {
	TaskID uuid.UUID `path:"taskID" doc:"Task ID"`
	Body   struct {
		ColumnID uuid.UUID `json:"column_id" doc:"Target column"`
		Position int       `json:"position" minimum:"0" doc:"Target index among the column's live tasks"`
	}
}

type TaskOutput struct {
	Body struct {
		Task     *domain.Task `json:"task"`
		Revision int64        `json:"revision"`
	}
}

type ListTasksOutput struct {
	Body []*domain.Task
}

func taskOutput(t *domain.Task, rev int64) *TaskOutput {
	out := &TaskOutput{}
	out.Body.Task = t
	out.Body.Revision = rev
	return out
}

func taskEvent(op domain.ChangeOp, t *domain.Task, actor uuid.UUID, rev int64) domain.ChangeEvent {
	return domain.NewChangeEvent(domain.EntityTask, op, t.BoardID, t.ID, actor).
		WithParent(t.ColumnID).
		WithRevision(rev)
}

// taskAccess loads a task and checks the caller may manage tasks on its board.
func taskAccess(ctx context.Context, store DataStore, taskID uuid.UUID) (*domain.Task, *caller, error) {
	t, err := store.Tasks().GetByID(ctx, taskID)
	if err != nil {
		return nil, nil, mapErr(err, "task")
	}
	c, err := boardAccess(ctx, store, t.BoardID)
	if err != nil {
		return nil, nil, err
	}
	if !c.Perms.CanManageTasks {
		return nil, nil, huma.Error403Forbidden("insufficient permissions")
	}
	return t, c, nil
}

func RegisterTaskRoutes(api huma.API, store DataStore, pub Publisher) {
	huma.Register(api, huma.Operation{
		OperationID: "create-task",
		Method:      http.MethodPost,
		Path:        "/boards/{boardID}/tasks",
		Summary:     "Create a task in a column",
		Tags:        []string{"Tasks"},
	}, func(ctx context.Context, input *CreateTaskInput) (*TaskOutput, error) {
		c, err := boardAccess(ctx, store, input.BoardID)
		if err != nil {
			return nil, err
		}
		if !c.Perms.CanManageTasks {
			return nil, huma.Error403Forbidden("insufficient permissions")
		}

		col, err := store.Columns().GetByID(ctx, input.Body.ColumnID)
		if err != nil {
			return nil, mapErr(err, "column")
		}
		if col.BoardID != input.BoardID {
			return nil, huma.Error404NotFound("column not found")
		}

		priority, err := domain.ParsePriority(input.Body.Priority)
		if err != nil {
			return nil, mapErr(err, "task")
		}
		position := endOfColumn
		if input.Body.Position != nil {
			position = *input.Body.Position
		}

		t, err := domain.NewTask(input.BoardID, col.ID, c.UserID, input.Body.Title, input.Body.Description, position)
		if err != nil {
			return nil, mapErr(err, "task")
		}
		t.Priority = priority
		t.DueDate = input.Body.DueDate
		t.AssignedTo = input.Body.AssignedTo

		rev, err := store.Tasks().Create(ctx, t)
		if err != nil {
			return nil, mapErr(err, "task")
		}

		publish(ctx, pub, taskEvent(domain.OpInsert, t, c.UserID, rev))

		return taskOutput(t, rev), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPatch,
		Path:        "/tasks/{taskID}",
		Summary:     "Edit task details",
		Tags:        []string{"Tasks"},
	}, func(ctx context.Context, input *UpdateTaskInput) (*TaskOutput, error) {
		t, c, err := taskAccess(ctx, store, input.TaskID)
		if err != nil {
			return nil, err
		}

		if input.Body.Title != nil {
			t.Title = strings.TrimSpace(*input.Body.Title)
			if t.Title == "" {
				return nil, mapErr(domain.ErrEmptyTitle, "task")
			}
		}
		if input.Body.Description != nil {
			t.Description = *input.Body.Description
		}
		if input.Body.Priority != nil {
			p, err := domain.ParsePriority(*input.Body.Priority)
			if err != nil {
				return nil, mapErr(err, "task")
			}
			t.Priority = p
		}
		switch {
		case input.Body.ClearDue:
			t.DueDate = nil
		case input.Body.DueDate != nil:
			t.DueDate = input.Body.DueDate
		}
		switch {
		case input.Body.Unassign:
			t.AssignedTo = nil
		case input.Body.AssignedTo != nil:
			t.AssignedTo = input.Body.AssignedTo
		}

		rev, err := store.Tasks().Update(ctx, t)
		if err != nil {
			return nil, mapErr(err, "task")
		}

		publish(ctx, pub, taskEvent(domain.OpUpdate, t, c.UserID, rev))

		return taskOutput(t, rev), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "move-task",
		Method:      http.MethodPost,
		Path:        "/tasks/{taskID}/move",
		Summary:     "Move a task to a column and position",
		Description: "Both affected columns are renumbered densely in one transaction.",
		Tags:        []string{"Tasks"},
	}, func(ctx context.Context, input *MoveTaskInput) (*TaskOutput, error) {
		_, c, err := taskAccess(ctx, store, input.TaskID)
		if err != nil {
			return nil, err
		}

		moved, rev, err := store.Tasks().Move(ctx, input.TaskID, input.Body.ColumnID, input.Body.Position)
		if err != nil {
			return nil, mapErr(err, "task")
		}

		publish(ctx, pub, taskEvent(domain.OpUpdate, moved, c.UserID, rev))

		return taskOutput(moved, rev), nil
	})

	for _, archived := range []bool{true, false} {
		opID, path, summary := "archive-task", "/tasks/{taskID}/archive", "Archive a task"
		if !archived {
			opID, path, summary = "unarchive-task", "/tasks/{taskID}/unarchive", "Restore an archived task to the end of its column"
		}

		huma.Register(api, huma.Operation{
			OperationID: opID,
			Method:      http.MethodPost,
			Path:        path,
			Summary:     summary,
			Tags:        []string{"Tasks"},
		}, func(ctx context.Context, input *TaskPathInput) (*TaskOutput, error) {
			_, c, err := taskAccess(ctx, store, input.TaskID)
			if err != nil {
				return nil, err
			}

			t, rev, err := store.Tasks().SetArchived(ctx, input.TaskID, archived)
			if err != nil {
				return nil, mapErr(err, "task")
			}

			publish(ctx, pub, taskEvent(domain.OpUpdate, t, c.UserID, rev))

			return taskOutput(t, rev), nil
		})
	}

	huma.Register(api, huma.Operation{
		OperationID: "delete-task",
		Method:      http.MethodDelete,
		Path:        "/tasks/{taskID}",
		Summary:     "Delete a task",
		Tags:        []string{"Tasks"},
	}, func(ctx context.Context, input *TaskPathInput) (*struct{}, error) {
		_, c, err := taskAccess(ctx, store, input.TaskID)
		if err != nil {
			return nil, err
		}

		t, rev, err := store.Tasks().Delete(ctx, input.TaskID)
		if err != nil {
			return nil, mapErr(err, "task")
		}

		publish(ctx, pub, taskEvent(domain.OpDelete, t, c.UserID, rev))

		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-archived-tasks",
		Method:      http.MethodGet,
		Path:        "/boards/{boardID}/tasks/archived",
		Summary:     "List the archived tasks of a board",
		Tags:        []string{"Tasks"},
	}, func(ctx context.Context, input *BoardPathInput) (*ListTasksOutput, error) {
		if _, err := boardAccess(ctx, store, input.BoardID); err != nil {
			return nil, err
		}

		tasks, err := store.Tasks().ListArchived(ctx, input.BoardID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list archived tasks", err)
		}
		if tasks == nil {
			tasks = make([]*domain.Task, 0)
		}

		return &ListTasksOutput{Body: tasks}, nil
	})
}
