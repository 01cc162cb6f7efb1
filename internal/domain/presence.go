package domain

import (
	"context"

	"github.com/google/uuid"
)

// Viewer is a user with a board open.
type Viewer struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
}

// PresenceTracker counts the open board feeds of each user. A user is
// online on a board while at least one of their feeds is connected.
type PresenceTracker interface {
	// Join records one more feed and reports whether it is the user's first.
	Join(ctx context.Context, boardID uuid.UUID, v Viewer) (first bool, err error)
	// Leave drops one feed and reports whether it was the user's last.
	Leave(ctx context.Context, boardID, userID uuid.UUID) (last bool, err error)
	// Touch keeps the board's entries from expiring.
	Touch(ctx context.Context, boardID uuid.UUID) error
	// Online lists the viewers of a board ordered by email.
	Online(ctx context.Context, boardID uuid.UUID) ([]Viewer, error)
}
