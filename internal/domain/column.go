package domain

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Column struct {
	ID        uuid.UUID `json:"id"`
	BoardID   uuid.UUID `json:"board_id"`
	Title     string    `json:"title"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
}

// ValidateColumnTitle trims title and checks it is non-empty and unique
// (case-insensitively) among existing, ignoring the column with id self.
func ValidateColumnTitle(existing []*Column, self uuid.UUID, title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", ErrEmptyTitle
	}
	for _, c := range existing {
		if c.ID != self && strings.EqualFold(c.Title, title) {
			return "", ErrDuplicateTitle
		}
	}
	return title, nil
}

// NewColumn creates a column appended after existing.
func NewColumn(boardID uuid.UUID, existing []*Column, title string) (*Column, error) {
	title, err := ValidateColumnTitle(existing, uuid.Nil, title)
	if err != nil {
		return nil, err
	}
	return &Column{
		ID:        uuid.New(),
		BoardID:   boardID,
		Title:     title,
		Position:  len(existing),
		CreatedAt: time.Now(),
	}, nil
}

// ColumnRepository mutations return the board revision they produced.
type ColumnRepository interface {
	Create(ctx context.Context, c *Column) (int64, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Column, error)
	ListByBoard(ctx context.Context, boardID uuid.UUID) ([]*Column, error)
	Rename(ctx context.Context, id uuid.UUID, title string) (int64, error)
	// Delete removes the column with its tasks and closes the position gap.
	Delete(ctx context.Context, id uuid.UUID) (int64, error)
	// Reorder assigns positions 0..n-1 following ids.
	Reorder(ctx context.Context, boardID uuid.UUID, ids []uuid.UUID) (int64, error)
}
