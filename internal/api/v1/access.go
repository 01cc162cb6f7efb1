package v1

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/taskflow/internal/auth"
	"github.com/gosuda/taskflow/internal/domain"
	"github.com/gosuda/taskflow/internal/server/middleware"
)

// caller is the authenticated user and their standing on one board.
type caller struct {
	UserID uuid.UUID
	Board  *domain.Board
	Perms  domain.Permissions
}

func currentUser(ctx context.Context) (uuid.UUID, error) {
	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		return uuid.Nil, huma.Error401Unauthorized("authentication required")
	}
	return userID, nil
}

// boardAccess resolves the caller's permissions on boardID. Boards the
// caller cannot see are reported as not found.
func boardAccess(ctx context.Context, store DataStore, boardID uuid.UUID) (*caller, error) {
	userID, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}

	board, perms, err := domain.ResolvePermissions(ctx, store.Boards(), store.Members(), boardID, userID)
	if err != nil {
		return nil, mapErr(err, "board")
	}
	if !perms.HasAccess() {
		return nil, huma.Error404NotFound("board not found")
	}

	return &caller{UserID: userID, Board: board, Perms: perms}, nil
}

// mapErr converts store and domain errors to HTTP problems. what names the
// resource in not-found messages.
func mapErr(err error, what string) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return huma.Error404NotFound(what + " not found")
	case errors.Is(err, domain.ErrForbidden):
		return huma.Error403Forbidden("insufficient permissions")
	case errors.Is(err, domain.ErrUnauthorized):
		return huma.Error401Unauthorized("authentication required")
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrDuplicateTitle),
		errors.Is(err, auth.ErrUserAlreadyExists):
		return huma.Error409Conflict(err.Error())
	case domain.IsValidation(err), errors.Is(err, auth.ErrWeakPassword):
		return huma.Error400BadRequest(err.Error())
	default:
		return huma.Error500InternalServerError("failed to process "+what, err)
	}
}

// publish emits ev. Failures are logged and do not fail the request.
func publish(ctx context.Context, pub Publisher, ev domain.ChangeEvent, users ...uuid.UUID) {
	if err := pub.PublishChange(ctx, ev, users...); err != nil {
		log.Warn().Err(err).
			Str("entity", string(ev.Entity)).
			Str("op", string(ev.Op)).
			Str("board_id", ev.BoardID.String()).
			Msg("api: failed to publish change event")
	}
}

// memberIDs lists the user ids holding a membership on boardID.
func memberIDs(ctx context.Context, store DataStore, boardID uuid.UUID) []uuid.UUID {
	members, err := store.Members().ListByBoard(ctx, boardID)
	if err != nil {
		log.Warn().Err(err).Str("board_id", boardID.String()).Msg("api: failed to list members for fan-out")
		return nil
	}
	ids := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.UserID)
	}
	return ids
}
