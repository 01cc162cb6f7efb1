package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/gosuda/taskflow/internal/domain"
)

type AuthResult struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

// Login exchanges credentials for a token. The returned client is not
// changed; use WithToken.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	var out AuthResult
	in := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", in, &out); err != nil {
		return nil, fmt.Errorf("client.Login: %w", err)
	}
	return &out, nil
}

func (c *Client) Register(ctx context.Context, email, password, name string) (*AuthResult, error) {
	var out AuthResult
	in := map[string]string{"email": email, "password": password, "name": name}
	if err := c.do(ctx, http.MethodPost, "/auth/register", in, &out); err != nil {
		return nil, fmt.Errorf("client.Register: %w", err)
	}
	return &out, nil
}

func (c *Client) ListBoards(ctx context.Context) ([]*domain.Board, error) {
	var out []*domain.Board
	if err := c.do(ctx, http.MethodGet, "/boards", nil, &out); err != nil {
		return nil, fmt.Errorf("client.ListBoards: %w", err)
	}
	return out, nil
}

func (c *Client) CreateBoard(ctx context.Context, title, description, color string) (*domain.Board, error) {
	var out domain.Board
	in := map[string]string{"title": title, "description": description, "background_color": color}
	if err := c.do(ctx, http.MethodPost, "/boards", in, &out); err != nil {
		return nil, fmt.Errorf("client.CreateBoard: %w", err)
	}
	return &out, nil
}

// GetBoard loads a board with all its columns and tasks.
func (c *Client) GetBoard(ctx context.Context, boardID uuid.UUID) (*domain.BoardContent, error) {
	var out domain.BoardContent
	if err := c.do(ctx, http.MethodGet, "/boards/"+boardID.String(), nil, &out); err != nil {
		return nil, fmt.Errorf("client.GetBoard: %w", err)
	}
	return &out, nil
}

func (c *Client) DeleteBoard(ctx context.Context, boardID uuid.UUID) error {
	if err := c.do(ctx, http.MethodDelete, "/boards/"+boardID.String(), nil, nil); err != nil {
		return fmt.Errorf("client.DeleteBoard: %w", err)
	}
	return nil
}

// CheckAccess returns the caller's permissions on a board. A board the
// caller cannot see yields domain.ErrNotFound.
func (c *Client) CheckAccess(ctx context.Context, boardID uuid.UUID) (domain.Permissions, error) {
	var out domain.Permissions
	if err := c.do(ctx, http.MethodGet, "/boards/"+boardID.String()+"/access", nil, &out); err != nil {
		return domain.Permissions{}, fmt.Errorf("client.CheckAccess: %w", err)
	}
	return out, nil
}
