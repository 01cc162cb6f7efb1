package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gosuda/taskflow/internal/domain"
)

type ListViewersOutput struct {
	Body []domain.Viewer
}

func RegisterPresenceRoutes(api huma.API, store DataStore, presence PresenceReader) {
	huma.Register(api, huma.Operation{
		OperationID: "list-viewers",
		Method:      http.MethodGet,
		Path:        "/boards/{boardID}/presence",
		Summary:     "List users who have the board open",
		Tags:        []string{"Members"},
	}, func(ctx context.Context, input *BoardPathInput) (*ListViewersOutput, error) {
		if _, err := boardAccess(ctx, store, input.BoardID); err != nil {
			return nil, err
		}

		viewers, err := presence.Online(ctx, input.BoardID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list viewers", err)
		}
		if viewers == nil {
			viewers = make([]domain.Viewer, 0)
		}

		return &ListViewersOutput{Body: viewers}, nil
	})
}
