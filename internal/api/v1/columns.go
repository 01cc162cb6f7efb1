package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/taskflow/internal/domain"
)

type CreateColumnInput struct {
	BoardID uuid.UUID `path:"boardID" doc:"Board ID"`
	Body    struct {
		Title string `json:"title" minLength:"1" maxLength:"100" doc:"Column title"`
	}
}

type RenameColumnInput struct {
	ColumnID uuid.UUID `path:"columnID" doc:"Column ID"`
	Body     struct {
		Title string `json:"title" minLength:"1" maxLength:"100" doc:"Column title"`
	}
}

type ColumnPathInput struct {
	ColumnID uuid.UUID `path:"columnID" doc:"Column ID"`
}

type ReorderColumnsInput struct {
	BoardID uuid.UUID `path:"boardID" doc:"Board ID"`
	Body    struct {
		ColumnIDs []uuid.UUID `json:"column_ids" minItems:"1" doc:"Every column of the board in the new order"`
	}
}

type ColumnOutput struct {
	Body struct {
		Column   *domain.Column `json:"column"`
		Revision int64          `json:"revision"`
	}
}

type RevisionOutput struct {
	Body struct {
		Revision int64 `json:"revision"`
	}
}

// columnAccess resolves a column and the caller's standing on its board,
// requiring the column-management permission.
func columnAccess(ctx context.Context, store DataStore, columnID uuid.UUID) (*domain.Column, *caller, error) {
	col, err := store.Columns().GetByID(ctx, columnID)
	if err != nil {
		return nil, nil, mapErr(err, "column")
	}
	c, err := boardAccess(ctx, store, col.BoardID)
	if err != nil {
		return nil, nil, err
	}
	if !c.Perms.CanManageColumns {
		return nil, nil, huma.Error403Forbidden("only owners and admins can manage columns")
	}
	return col, c, nil
}

func RegisterColumnRoutes(api huma.API, store DataStore, pub Publisher) {
	huma.Register(api, huma.Operation{
		OperationID: "create-column",
		Method:      http.MethodPost,
		Path:        "/boards/{boardID}/columns",
		Summary:     "Append a column to a board",
		Tags:        []string{"Columns"},
	}, func(ctx context.Context, input *CreateColumnInput) (*ColumnOutput, error) {
		c, err := boardAccess(ctx, store, input.BoardID)
		if err != nil {
			return nil, err
		}
		if !c.Perms.CanManageColumns {
			return nil, huma.Error403Forbidden("only owners and admins can manage columns")
		}

		existing, err := store.Columns().ListByBoard(ctx, input.BoardID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list columns", err)
		}
		col, err := domain.NewColumn(input.BoardID, existing, input.Body.Title)
		if err != nil {
			return nil, mapErr(err, "column")
		}

		rev, err := store.Columns().Create(ctx, col)
		if err != nil {
			return nil, mapErr(err, "column")
		}

		publish(ctx, pub, domain.NewChangeEvent(domain.EntityColumn, domain.OpInsert, col.BoardID, col.ID, c.UserID).WithRevision(rev))

		out := &ColumnOutput{}
		out.Body.Column = col
		out.Body.Revision = rev
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "rename-column",
		Method:      http.MethodPatch,
		Path:        "/columns/{columnID}",
		Summary:     "Rename a column",
		Tags:        []string{"Columns"},
	}, func(ctx context.Context, input *RenameColumnInput) (*ColumnOutput, error) {
		col, c, err := columnAccess(ctx, store, input.ColumnID)
		if err != nil {
			return nil, err
		}

		existing, err := store.Columns().ListByBoard(ctx, col.BoardID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list columns", err)
		}
		title, err := domain.ValidateColumnTitle(existing, col.ID, input.Body.Title)
		if err != nil {
			return nil, mapErr(err, "column")
		}

		rev, err := store.Columns().Rename(ctx, col.ID, title)
		if err != nil {
			return nil, mapErr(err, "column")
		}
		col.Title = title

		publish(ctx, pub, domain.NewChangeEvent(domain.EntityColumn, domain.OpUpdate, col.BoardID, col.ID, c.UserID).WithRevision(rev))

		out := &ColumnOutput{}
		out.Body.Column = col
		out.Body.Revision = rev
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-column",
		Method:      http.MethodDelete,
		Path:        "/columns/{columnID}",
		Summary:     "Delete a column and its tasks",
		Tags:        []string{"Columns"},
	}, func(ctx context.Context, input *ColumnPathInput) (*struct{}, error) {
		col, c, err := columnAccess(ctx, store, input.ColumnID)
		if err != nil {
			return nil, err
		}

		rev, err := store.Columns().Delete(ctx, col.ID)
		if err != nil {
			return nil, mapErr(err, "column")
		}

		publish(ctx, pub, domain.NewChangeEvent(domain.EntityColumn, domain.OpDelete, col.BoardID, col.ID, c.UserID).WithRevision(rev))

		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reorder-columns",
		Method:      http.MethodPut,
		Path:        "/boards/{boardID}/columns/order",
		Summary:     "Reorder the columns of a board",
		Tags:        []string{"Columns"},
	}, func(ctx context.Context, input *ReorderColumnsInput) (*RevisionOutput, error) {
		c, err := boardAccess(ctx, store, input.BoardID)
		if err != nil {
			return nil, err
		}
		if !c.Perms.CanManageColumns {
			return nil, huma.Error403Forbidden("only owners and admins can manage columns")
		}

		rev, err := store.Columns().Reorder(ctx, input.BoardID, input.Body.ColumnIDs)
		if err != nil {
			return nil, mapErr(err, "column")
		}

		publish(ctx, pub, domain.NewChangeEvent(domain.EntityColumn, domain.OpUpdate, input.BoardID, input.BoardID, c.UserID).WithRevision(rev))

		out := &RevisionOutput{}
		out.Body.Revision = rev
		return out, nil
	})
}
