package domain

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Priorities lists every priority from most to least pressing.
var Priorities = []Priority{PriorityUrgent, PriorityHigh, PriorityMedium, PriorityLow} //nolint:gochecknoglobals // enum listing

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	default:
		return false
	}
}

// Rank orders priorities for sorting: urgent=0 ... low=3.
// Unknown values rank as medium.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 0
	case PriorityHigh:
		return 1
	case PriorityLow:
		return 3
	default:
		return 2
	}
}

// ParsePriority maps "" to medium and rejects unknown values.
func ParsePriority(s string) (Priority, error) {
	if s == "" {
		return PriorityMedium, nil
	}
	p := Priority(strings.ToLower(s))
	if !p.Valid() {
		return "", ErrInvalidPriority
	}
	return p, nil
}

type Task struct {
	ID          uuid.UUID  `json:"id"`
	ColumnID    uuid.UUID  `json:"column_id"`
	BoardID     uuid.UUID  `json:"board_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Position    int        `json:"position"`
	Priority    Priority   `json:"priority"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	AssignedTo  *uuid.UUID `json:"assigned_to,omitempty"`
	CreatedBy   uuid.UUID  `json:"created_by"`
	Archived    bool       `json:"is_archived"`
	ArchivedAt  *time.Time `json:"archived_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// NewTask creates a task at position in column. The caller picks the
// position; the store renumbers on insert.
func NewTask(boardID, columnID, createdBy uuid.UUID, title, description string, position int) (*Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrEmptyTitle
	}
	if position < 0 {
		return nil, ErrInvalidPosition
	}
	now := time.Now()
	return &Task{
		ID:          uuid.New(),
		ColumnID:    columnID,
		BoardID:     boardID,
		Title:       title,
		Description: description,
		Position:    position,
		Priority:    PriorityMedium,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Clone returns a shallow copy; pointer fields are shared since they are
// never mutated in place.
func (t *Task) Clone() *Task {
	c := *t
	return &c
}

// TaskRepository mutations return the board revision they produced.
type TaskRepository interface {
	// Create inserts t at t.Position, shifting later tasks in the column down.
	Create(ctx context.Context, t *Task) (int64, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Task, error)
	ListArchived(ctx context.Context, boardID uuid.UUID) ([]*Task, error)
	Update(ctx context.Context, t *Task) (int64, error)
	// Move places the task at position in columnID and renumbers the source
	// and target columns densely in one transaction.
	Move(ctx context.Context, id, columnID uuid.UUID, position int) (*Task, int64, error)
	SetArchived(ctx context.Context, id uuid.UUID, archived bool) (*Task, int64, error)
	Delete(ctx context.Context, id uuid.UUID) (*Task, int64, error)
}
