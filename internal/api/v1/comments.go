package v1

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/taskflow/internal/domain"
)

type CreateCommentInput struct {
	TaskID uuid.UUID `path:"taskID" doc:"Task ID"`
	Body   struct {
		Content string `json:"content" minLength:"1" maxLength:"10000" doc:"Comment text"`
	}
}

type UpdateCommentInput struct {
	CommentID uuid.UUID `path:"commentID" doc:"Comment ID"`
	Body      struct {
		Content string `json:"content" minLength:"1" maxLength:"10000" doc:"Comment text"`
	}
}

type CommentPathInput struct {
	CommentID uuid.UUID `path:"commentID" doc:"Comment ID"`
}

type CommentOutput struct {
	Body *domain.Comment
}

type ListCommentsOutput struct {
	Body []*domain.Comment
}

// commentTask resolves the task a comment thread hangs off and the caller's
// access to its board.
func commentTask(ctx context.Context, store DataStore, taskID uuid.UUID) (*domain.Task, *caller, error) {
	t, err := store.Tasks().GetByID(ctx, taskID)
	if err != nil {
		return nil, nil, mapErr(err, "task")
	}
	c, err := boardAccess(ctx, store, t.BoardID)
	if err != nil {
		return nil, nil, err
	}
	return t, c, nil
}

func commentEvent(op domain.ChangeOp, cm *domain.Comment, boardID, actor uuid.UUID) domain.ChangeEvent {
	return domain.NewChangeEvent(domain.EntityComment, op, boardID, cm.ID, actor).WithParent(cm.TaskID)
}

func RegisterCommentRoutes(api huma.API, store DataStore, pub Publisher) {
	huma.Register(api, huma.Operation{
		OperationID: "list-comments",
		Method:      http.MethodGet,
		Path:        "/tasks/{taskID}/comments",
		Summary:     "List comments on a task, oldest first",
		Tags:        []string{"Comments"},
	}, func(ctx context.Context, input *TaskPathInput) (*ListCommentsOutput, error) {
		if _, _, err := commentTask(ctx, store, input.TaskID); err != nil {
			return nil, err
		}

		comments, err := store.Comments().ListByTask(ctx, input.TaskID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list comments", err)
		}
		if comments == nil {
			comments = make([]*domain.Comment, 0)
		}

		return &ListCommentsOutput{Body: comments}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-comment",
		Method:        http.MethodPost,
		Path:          "/tasks/{taskID}/comments",
		Summary:       "Comment on a task",
		Tags:          []string{"Comments"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *CreateCommentInput) (*CommentOutput, error) {
		t, c, err := commentTask(ctx, store, input.TaskID)
		if err != nil {
			return nil, err
		}

		cm, err := domain.NewComment(t.ID, c.UserID, input.Body.Content)
		if err != nil {
			return nil, mapErr(err, "comment")
		}
		if err := store.Comments().Create(ctx, cm); err != nil {
			return nil, mapErr(err, "comment")
		}

		publish(ctx, pub, commentEvent(domain.OpInsert, cm, t.BoardID, c.UserID))

		return &CommentOutput{Body: cm}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-comment",
		Method:      http.MethodPatch,
		Path:        "/comments/{commentID}",
		Summary:     "Edit a comment",
		Description: "Only the author may edit a comment.",
		Tags:        []string{"Comments"},
	}, func(ctx context.Context, input *UpdateCommentInput) (*CommentOutput, error) {
		cm, err := store.Comments().GetByID(ctx, input.CommentID)
		if err != nil {
			return nil, mapErr(err, "comment")
		}
		t, c, err := commentTask(ctx, store, cm.TaskID)
		if err != nil {
			return nil, err
		}
		if cm.AuthorID != c.UserID {
			return nil, huma.Error403Forbidden("only the author may edit a comment")
		}

		content := strings.TrimSpace(input.Body.Content)
		if content == "" {
			return nil, mapErr(domain.ErrEmptyContent, "comment")
		}
		updated, err := store.Comments().UpdateContent(ctx, cm.ID, content)
		if err != nil {
			return nil, mapErr(err, "comment")
		}

		publish(ctx, pub, commentEvent(domain.OpUpdate, updated, t.BoardID, c.UserID))

		return &CommentOutput{Body: updated}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-comment",
		Method:      http.MethodDelete,
		Path:        "/comments/{commentID}",
		Summary:     "Delete a comment",
		Description: "The author or a board admin may delete a comment.",
		Tags:        []string{"Comments"},
	}, func(ctx context.Context, input *CommentPathInput) (*struct{}, error) {
		cm, err := store.Comments().GetByID(ctx, input.CommentID)
		if err != nil {
			return nil, mapErr(err, "comment")
		}
		t, c, err := commentTask(ctx, store, cm.TaskID)
		if err != nil {
			return nil, err
		}
		if cm.AuthorID != c.UserID && !c.Perms.IsAdmin {
			return nil, huma.Error403Forbidden("insufficient permissions")
		}

		if err := store.Comments().Delete(ctx, cm.ID); err != nil {
			return nil, mapErr(err, "comment")
		}

		publish(ctx, pub, commentEvent(domain.OpDelete, cm, t.BoardID, c.UserID))

		return nil, nil
	})
}
