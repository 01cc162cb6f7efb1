package v1

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/taskflow/internal/domain"
)

type BoardPathInput struct {
	BoardID uuid.UUID `path:"boardID" doc:"Board ID"`
}

type ListBoardsOutput struct {
	Body []*domain.Board
}

type CreateBoardInput struct {
	Body struct {
		Title           string `json:"title" minLength:"1" maxLength:"200" doc:"Board title"`
		Description     string `json:"description,omitempty" maxLength:"2000" doc:"Board description"`
		BackgroundColor string `json:"background_color,omitempty" maxLength:"32" doc:"CSS color"`
	}
}

type BoardOutput struct {
	Body *domain.Board
}

type BoardContentOutput struct {
	Body *domain.BoardContent
}

type UpdateBoardInput struct {
	BoardID uuid.UUID `path:"boardID" doc:"Board ID"`
	Body    struct {
		Title           *string `json:"title,omitempty" maxLength:"200" doc:"Board title"`
		Description     *string `json:"description,omitempty" maxLength:"2000" doc:"Board description"`
		BackgroundColor *string `json:"background_color,omitempty" maxLength:"32" doc:"CSS color"`
	}
}

type AccessOutput struct {
	Body domain.Permissions
}

func RegisterBoardRoutes(api huma.API, store DataStore, pub Publisher) {
	huma.Register(api, huma.Operation{
		OperationID: "list-boards",
		Method:      http.MethodGet,
		Path:        "/boards",
		Summary:     "List the boards the caller belongs to",
		Tags:        []string{"Boards"},
	}, func(ctx context.Context, _ *struct{}) (*ListBoardsOutput, error) {
		userID, err := currentUser(ctx)
		if err != nil {
			return nil, err
		}

		boards, err := store.Boards().ListForUser(ctx, userID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list boards", err)
		}
		if boards == nil {
			boards = make([]*domain.Board, 0)
		}

		return &ListBoardsOutput{Body: boards}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "create-board",
		Method:      http.MethodPost,
		Path:        "/boards",
		Summary:     "Create a board with the default columns",
		Tags:        []string{"Boards"},
	}, func(ctx context.Context, input *CreateBoardInput) (*BoardOutput, error) {
		userID, err := currentUser(ctx)
		if err != nil {
			return nil, err
		}

		b, err := domain.NewBoard(userID, input.Body.Title, input.Body.Description, input.Body.BackgroundColor)
		if err != nil {
			return nil, mapErr(err, "board")
		}

		columns := make([]*domain.Column, 0, len(domain.DefaultColumnTitles))
		for _, title := range domain.DefaultColumnTitles {
			c, err := domain.NewColumn(b.ID, columns, title)
			if err != nil {
				return nil, huma.Error500InternalServerError("failed to build default columns", err)
			}
			columns = append(columns, c)
		}

		if err := store.Boards().Create(ctx, b, columns); err != nil {
			return nil, mapErr(err, "board")
		}

		publish(ctx, pub, domain.NewChangeEvent(domain.EntityBoard, domain.OpInsert, b.ID, b.ID, userID), userID)

		return &BoardOutput{Body: b}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-board",
		Method:      http.MethodGet,
		Path:        "/boards/{boardID}",
		Summary:     "Get a board with its columns and tasks",
		Tags:        []string{"Boards"},
	}, func(ctx context.Context, input *BoardPathInput) (*BoardContentOutput, error) {
		if _, err := boardAccess(ctx, store, input.BoardID); err != nil {
			return nil, err
		}

		content, err := store.Boards().GetContent(ctx, input.BoardID)
		if err != nil {
			return nil, mapErr(err, "board")
		}
		if content.Columns == nil {
			content.Columns = make([]*domain.Column, 0)
		}
		if content.Tasks == nil {
			content.Tasks = make([]*domain.Task, 0)
		}

		return &BoardContentOutput{Body: content}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-board",
		Method:      http.MethodPatch,
		Path:        "/boards/{boardID}",
		Summary:     "Update board details",
		Tags:        []string{"Boards"},
	}, func(ctx context.Context, input *UpdateBoardInput) (*BoardOutput, error) {
		c, err := boardAccess(ctx, store, input.BoardID)
		if err != nil {
			return nil, err
		}
		if !c.Perms.IsAdmin {
			return nil, huma.Error403Forbidden("only owners and admins can edit the board")
		}

		b := *c.Board
		if input.Body.Title != nil {
			b.Title = strings.TrimSpace(*input.Body.Title)
			if b.Title == "" {
				return nil, mapErr(domain.ErrEmptyTitle, "board")
			}
		}
		if input.Body.Description != nil {
			b.Description = *input.Body.Description
		}
		if input.Body.BackgroundColor != nil {
			b.BackgroundColor = *input.Body.BackgroundColor
		}

		rev, err := store.Boards().Update(ctx, &b)
		if err != nil {
			return nil, mapErr(err, "board")
		}
		b.Revision = rev

		ev := domain.NewChangeEvent(domain.EntityBoard, domain.OpUpdate, b.ID, b.ID, c.UserID).WithRevision(rev)
		publish(ctx, pub, ev, memberIDs(ctx, store, b.ID)...)

		return &BoardOutput{Body: &b}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-board",
		Method:      http.MethodDelete,
		Path:        "/boards/{boardID}",
		Summary:     "Delete a board and everything on it",
		Tags:        []string{"Boards"},
	}, func(ctx context.Context, input *BoardPathInput) (*struct{}, error) {
		c, err := boardAccess(ctx, store, input.BoardID)
		if err != nil {
			return nil, err
		}
		if !c.Perms.IsOwner {
			return nil, huma.Error403Forbidden("only the owner can delete the board")
		}

		// Collect the audience before the memberships cascade away.
		audience := memberIDs(ctx, store, input.BoardID)

		if err := store.Boards().Delete(ctx, input.BoardID); err != nil {
			return nil, mapErr(err, "board")
		}

		publish(ctx, pub, domain.NewChangeEvent(domain.EntityBoard, domain.OpDelete, input.BoardID, input.BoardID, c.UserID), audience...)

		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "board-access",
		Method:      http.MethodGet,
		Path:        "/boards/{boardID}/access",
		Summary:     "Get the caller's permissions on a board",
		Tags:        []string{"Boards"},
	}, func(ctx context.Context, input *BoardPathInput) (*AccessOutput, error) {
		userID, err := currentUser(ctx)
		if err != nil {
			return nil, err
		}

		_, perms, err := domain.ResolvePermissions(ctx, store.Boards(), store.Members(), input.BoardID, userID)
		if err != nil {
			return nil, mapErr(err, "board")
		}

		return &AccessOutput{Body: perms}, nil
	})
}
