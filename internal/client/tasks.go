package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/gosuda/taskflow/internal/domain"
)

type ColumnResult struct {
	Column   *domain.Column `json:"column"`
	Revision int64          `json:"revision"`
}

// TaskResult is a task mutation with the board revision it produced.
type TaskResult struct {
	Task     *domain.Task `json:"task"`
	Revision int64        `json:"revision"`
}

type TaskDraft struct {
	ColumnID    uuid.UUID       `json:"column_id"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Priority    domain.Priority `json:"priority,omitempty"`
	DueDate     *time.Time      `json:"due_date,omitempty"`
	AssignedTo  *uuid.UUID      `json:"assigned_to,omitempty"`
}

func (c *Client) CreateColumn(ctx context.Context, boardID uuid.UUID, title string) (*ColumnResult, error) {
	var out ColumnResult
	in := map[string]string{"title": title}
	if err := c.do(ctx, http.MethodPost, "/boards/"+boardID.String()+"/columns", in, &out); err != nil {
		return nil, fmt.Errorf("client.CreateColumn: %w", err)
	}
	return &out, nil
}

func (c *Client) RenameColumn(ctx context.Context, columnID uuid.UUID, title string) (*ColumnResult, error) {
	var out ColumnResult
	in := map[string]string{"title": title}
	if err := c.do(ctx, http.MethodPatch, "/columns/"+columnID.String(), in, &out); err != nil {
		return nil, fmt.Errorf("client.RenameColumn: %w", err)
	}
	return &out, nil
}

func (c *Client) DeleteColumn(ctx context.Context, columnID uuid.UUID) error {
	if err := c.do(ctx, http.MethodDelete, "/columns/"+columnID.String(), nil, nil); err != nil {
		return fmt.Errorf("client.DeleteColumn: %w", err)
	}
	return nil
}

func (c *Client) CreateTask(ctx context.Context, boardID uuid.UUID, draft TaskDraft) (*TaskResult, error) {
	var out TaskResult
	if err := c.do(ctx, http.MethodPost, "/boards/"+boardID.String()+"/tasks", draft, &out); err != nil {
		return nil, fmt.Errorf("client.CreateTask: %w", err)
	}
	return &out, nil
}

// MoveTask persists a task's new column and position. The server renumbers
// both affected columns.
func (c *Client) MoveTask(ctx context.Context, taskID, columnID uuid.UUID, position int) (*TaskResult, error) {
	var out TaskResult
	in := struct {
		ColumnID uuid.UUID `json:"column_id"`
		Position int       `json:"position"`
	}{columnID, position}
	if err := c.do(ctx, http.MethodPost, "/tasks/"+taskID.String()+"/move", in, &out); err != nil {
		return nil, fmt.Errorf("client.MoveTask: %w", err)
	}
	return &out, nil
}

func (c *Client) ArchiveTask(ctx context.Context, taskID uuid.UUID) (*TaskResult, error) {
	var out TaskResult
	if err := c.do(ctx, http.MethodPost, "/tasks/"+taskID.String()+"/archive", nil, &out); err != nil {
		return nil, fmt.Errorf("client.ArchiveTask: %w", err)
	}
	return &out, nil
}

func (c *Client) UnarchiveTask(ctx context.Context, taskID uuid.UUID) (*TaskResult, error) {
	var out TaskResult
	if err := c.do(ctx, http.MethodPost, "/tasks/"+taskID.String()+"/unarchive", nil, &out); err != nil {
		return nil, fmt.Errorf("client.UnarchiveTask: %w", err)
	}
	return &out, nil
}

func (c *Client) ListArchived(ctx context.Context, boardID uuid.UUID) ([]*domain.Task, error) {
	var out []*domain.Task
	if err := c.do(ctx, http.MethodGet, "/boards/"+boardID.String()+"/tasks/archived", nil, &out); err != nil {
		return nil, fmt.Errorf("client.ListArchived: %w", err)
	}
	return out, nil
}

func (c *Client) ListComments(ctx context.Context, taskID uuid.UUID) ([]*domain.Comment, error) {
	var out []*domain.Comment
	if err := c.do(ctx, http.MethodGet, "/tasks/"+taskID.String()+"/comments", nil, &out); err != nil {
		return nil, fmt.Errorf("client.ListComments: %w", err)
	}
	return out, nil
}

func (c *Client) AddComment(ctx context.Context, taskID uuid.UUID, content string) (*domain.Comment, error) {
	var out domain.Comment
	in := map[string]string{"content": content}
	if err := c.do(ctx, http.MethodPost, "/tasks/"+taskID.String()+"/comments", in, &out); err != nil {
		return nil, fmt.Errorf("client.AddComment: %w", err)
	}
	return &out, nil
}

func (c *Client) ListMembers(ctx context.Context, boardID uuid.UUID) ([]*domain.Membership, error) {
	var out []*domain.Membership
	if err := c.do(ctx, http.MethodGet, "/boards/"+boardID.String()+"/members", nil, &out); err != nil {
		return nil, fmt.Errorf("client.ListMembers: %w", err)
	}
	return out, nil
}

// Online lists the users who currently have the board open.
func (c *Client) Online(ctx context.Context, boardID uuid.UUID) ([]domain.Viewer, error) {
	var out []domain.Viewer
	if err := c.do(ctx, http.MethodGet, "/boards/"+boardID.String()+"/presence", nil, &out); err != nil {
		return nil, fmt.Errorf("client.Online: %w", err)
	}
	return out, nil
}

func (c *Client) InviteMember(ctx context.Context, boardID uuid.UUID, email string, role domain.Role) (*domain.Membership, error) {
	var out domain.Membership
	in := map[string]string{"email": email, "role": string(role)}
	if err := c.do(ctx, http.MethodPost, "/boards/"+boardID.String()+"/members", in, &out); err != nil {
		return nil, fmt.Errorf("client.InviteMember: %w", err)
	}
	return &out, nil
}
