package v1

import (
	"context"

	"github.com/google/uuid"

	"github.com/gosuda/taskflow/internal/domain"
)

// DataStore abstracts the repository accessor pattern for handler testing.
// *postgres.Store satisfies this interface.
type DataStore interface {
	Boards() domain.BoardRepository
	Columns() domain.ColumnRepository
	Tasks() domain.TaskRepository
	Comments() domain.CommentRepository
	Members() domain.MemberRepository
	Users() domain.UserRepository
}

// AuthService abstracts authentication operations for handler testing.
// *auth.Service satisfies this interface.
type AuthService interface {
	Register(ctx context.Context, email, password, name string) (string, *domain.User, error)
	Login(ctx context.Context, email, password string) (string, *domain.User, error)
}

// Publisher fans a change event out to the board feed and to the
// dashboard feeds of users. *redis.PubSub satisfies this interface.
type Publisher interface {
	PublishChange(ctx context.Context, ev domain.ChangeEvent, users ...uuid.UUID) error
}

// PresenceReader lists who has a board open. *redis.PubSub satisfies this
// interface.
type PresenceReader interface {
	Online(ctx context.Context, boardID uuid.UUID) ([]domain.Viewer, error)
}
