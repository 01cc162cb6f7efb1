package session

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/gosuda/taskflow/internal/cache"
	"github.com/gosuda/taskflow/internal/domain"
	"github.com/gosuda/taskflow/internal/notify"
)

// AddColumn validates title against the current columns before calling the
// server.
func (s *BoardSession) AddColumn(ctx context.Context, title string) (*domain.Column, error) {
	if !s.Permissions().CanManageColumns {
		return nil, fmt.Errorf("session.AddColumn: %w", domain.ErrForbidden)
	}
	title, err := domain.ValidateColumnTitle(s.columns(), uuid.Nil, title)
	if err != nil {
		return nil, fmt.Errorf("session.AddColumn: %w", err)
	}

	res, err := s.api.CreateColumn(ctx, s.boardID, title)
	if err != nil {
		s.notify(ctx, notify.Error(s.boardID, "Failed to create column"))
		return nil, fmt.Errorf("session.AddColumn: %w", err)
	}
	s.store.Invalidate(cache.BoardKey(s.boardID))
	return res.Column, nil
}

func (s *BoardSession) RenameColumn(ctx context.Context, columnID uuid.UUID, title string) (*domain.Column, error) {
	if !s.Permissions().CanManageColumns {
		return nil, fmt.Errorf("session.RenameColumn: %w", domain.ErrForbidden)
	}
	title, err := domain.ValidateColumnTitle(s.columns(), columnID, title)
	if err != nil {
		return nil, fmt.Errorf("session.RenameColumn: %w", err)
	}

	res, err := s.api.RenameColumn(ctx, columnID, title)
	if err != nil {
		s.notify(ctx, notify.Error(s.boardID, "Failed to update column"))
		return nil, fmt.Errorf("session.RenameColumn: %w", err)
	}
	s.store.Invalidate(cache.BoardKey(s.boardID))
	return res.Column, nil
}

// InviteMember adds the user with email to the board. Only the owner may
// invite; role defaults to member and may not be owner.
func (s *BoardSession) InviteMember(ctx context.Context, email string, role domain.Role) (*domain.Membership, error) {
	if !s.Permissions().CanManageMembers {
		return nil, fmt.Errorf("session.InviteMember: %w", domain.ErrForbidden)
	}
	email, err := domain.NormalizeEmail(email)
	if err != nil {
		return nil, fmt.Errorf("session.InviteMember: %w", err)
	}
	if role == "" {
		role = domain.RoleMember
	}
	if !role.Valid() || role == domain.RoleOwner {
		return nil, fmt.Errorf("session.InviteMember: %w", domain.ErrInvalidRole)
	}

	m, err := s.api.InviteMember(ctx, s.boardID, email, role)
	if err != nil {
		s.notify(ctx, notify.Error(s.boardID, "Failed to invite member"))
		return nil, fmt.Errorf("session.InviteMember: %w", err)
	}
	s.store.Invalidate(cache.MembersKey(s.boardID))
	s.notify(ctx, notify.Success(s.boardID, "Invitation sent to "+email))
	return m, nil
}

func (s *BoardSession) Members(ctx context.Context) ([]*domain.Membership, error) {
	v, err := s.store.Fetch(ctx, cache.MembersKey(s.boardID))
	if err != nil {
		return nil, fmt.Errorf("session.Members: %w", err)
	}
	members, _ := v.([]*domain.Membership)
	return members, nil
}

func (s *BoardSession) Archived(ctx context.Context) ([]*domain.Task, error) {
	v, err := s.store.Fetch(ctx, cache.ArchivedKey(s.boardID))
	if err != nil {
		return nil, fmt.Errorf("session.Archived: %w", err)
	}
	tasks, _ := v.([]*domain.Task)
	return tasks, nil
}

// Comments returns the comments of a task, keeping them current for the rest
// of the session.
func (s *BoardSession) Comments(ctx context.Context, taskID uuid.UUID) ([]*domain.Comment, error) {
	key := cache.CommentsKey(taskID)
	if !s.owns(key) {
		s.register(key, func(ctx context.Context) (any, int64, error) {
			comments, err := s.api.ListComments(ctx, taskID)
			if err != nil {
				return nil, 0, err
			}
			return comments, 0, nil
		})
	}
	v, err := s.store.Fetch(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("session.Comments: %w", err)
	}
	comments, _ := v.([]*domain.Comment)
	return comments, nil
}

func (s *BoardSession) AddComment(ctx context.Context, taskID uuid.UUID, content string) (*domain.Comment, error) {
	draft, err := domain.NewComment(taskID, s.userID, content)
	if err != nil {
		return nil, fmt.Errorf("session.AddComment: %w", err)
	}
	c, err := s.api.AddComment(ctx, taskID, draft.Content)
	if err != nil {
		s.notify(ctx, notify.Error(s.boardID, "Failed to add comment"))
		return nil, fmt.Errorf("session.AddComment: %w", err)
	}
	s.store.Invalidate(cache.CommentsKey(taskID))
	return c, nil
}

func (s *BoardSession) columns() []*domain.Column {
	snap := s.Snapshot()
	if snap == nil {
		return nil
	}
	return snap.ColumnsSlice()
}
