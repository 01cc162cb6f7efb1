package domain

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

const defaultBackgroundColor = "#3b82f6"

// DefaultColumnTitles are created, in order, for every new board.
var DefaultColumnTitles = []string{"To do", "In progress", "Done"} //nolint:gochecknoglobals // fixed board template

type Board struct {
	ID              uuid.UUID `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	BackgroundColor string    `json:"background_color"`
	OwnerID         uuid.UUID `json:"owner_id"`
	Revision        int64     `json:"revision"` // bumped on every content mutation
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// NewBoard creates a Board with validated required fields and defaults.
func NewBoard(ownerID uuid.UUID, title, description, color string) (*Board, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrEmptyTitle
	}
	if color == "" {
		color = defaultBackgroundColor
	}
	now := time.Now()
	return &Board{
		ID:              uuid.New(),
		Title:           title,
		Description:     description,
		BackgroundColor: color,
		OwnerID:         ownerID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// BoardContent is a board with its columns and every task, archived or not.
type BoardContent struct {
	Board   *Board    `json:"board"`
	Columns []*Column `json:"columns"`
	Tasks   []*Task   `json:"tasks"`
}

type BoardRepository interface {
	// Create inserts the board and its default columns.
	Create(ctx context.Context, b *Board, columns []*Column) error
	GetByID(ctx context.Context, id uuid.UUID) (*Board, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*Board, error)
	GetContent(ctx context.Context, id uuid.UUID) (*BoardContent, error)
	Update(ctx context.Context, b *Board) (int64, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
