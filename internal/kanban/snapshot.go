// Package kanban holds the client-side board model: an immutable snapshot of
// a board's columns and tasks, and the pure functions that derive new
// snapshots from drag-and-drop moves.
package kanban

import (
	"cmp"
	"slices"

	"github.com/google/uuid"

	"github.com/gosuda/taskflow/internal/domain"
)

// Snapshot is a read-only view of one board. Functions in this package never
// mutate a Snapshot; they return a new one that shares every column and task
// they did not touch.
type Snapshot struct {
	Board    domain.Board   `json:"board"`
	Columns  []*ColumnView  `json:"columns"`
	Archived []*domain.Task `json:"archived,omitempty"`
}

// ColumnView is a column with its non-archived tasks ordered by position.
type ColumnView struct {
	Column domain.Column  `json:"column"`
	Tasks  []*domain.Task `json:"tasks"`
}

// NewSnapshot groups the board content into ordered columns. Archived tasks
// are kept aside and take no part in ordering.
func NewSnapshot(content *domain.BoardContent) *Snapshot {
	s := &Snapshot{}
	if content == nil {
		return s
	}
	if content.Board != nil {
		s.Board = *content.Board
	}

	cols := slices.Clone(content.Columns)
	slices.SortStableFunc(cols, func(a, b *domain.Column) int { return cmp.Compare(a.Position, b.Position) })

	byColumn := make(map[uuid.UUID]*ColumnView, len(cols))
	s.Columns = make([]*ColumnView, 0, len(cols))
	for _, c := range cols {
		cv := &ColumnView{Column: *c, Tasks: []*domain.Task{}}
		byColumn[c.ID] = cv
		s.Columns = append(s.Columns, cv)
	}

	for _, t := range content.Tasks {
		if t.Archived {
			s.Archived = append(s.Archived, t)
			continue
		}
		if cv, ok := byColumn[t.ColumnID]; ok {
			cv.Tasks = append(cv.Tasks, t)
		}
	}
	for _, cv := range s.Columns {
		slices.SortStableFunc(cv.Tasks, func(a, b *domain.Task) int { return cmp.Compare(a.Position, b.Position) })
	}
	return s
}

// Revision is the server revision the snapshot was built from.
func (s *Snapshot) Revision() int64 {
	return s.Board.Revision
}

// ColumnIndex returns the index of the column with id, or -1.
func (s *Snapshot) ColumnIndex(id uuid.UUID) int {
	for i, cv := range s.Columns {
		if cv.Column.ID == id {
			return i
		}
	}
	return -1
}

// Column returns the column view with id, or nil.
func (s *Snapshot) Column(id uuid.UUID) *ColumnView {
	if i := s.ColumnIndex(id); i >= 0 {
		return s.Columns[i]
	}
	return nil
}

// Locate finds a non-archived task and returns its column index and its index
// within that column.
func (s *Snapshot) Locate(taskID uuid.UUID) (col, idx int, ok bool) {
	for ci, cv := range s.Columns {
		for ti, t := range cv.Tasks {
			if t.ID == taskID {
				return ci, ti, true
			}
		}
	}
	return -1, -1, false
}

// Task returns the non-archived task with id, or nil.
func (s *Snapshot) Task(id uuid.UUID) *domain.Task {
	ci, ti, ok := s.Locate(id)
	if !ok {
		return nil
	}
	return s.Columns[ci].Tasks[ti]
}

// ColumnsSlice returns the plain column records in board order.
func (s *Snapshot) ColumnsSlice() []*domain.Column {
	out := make([]*domain.Column, len(s.Columns))
	for i, cv := range s.Columns {
		c := cv.Column
		out[i] = &c
	}
	return out
}

// TaskCount is the number of non-archived tasks on the board.
func (s *Snapshot) TaskCount() int {
	n := 0
	for _, cv := range s.Columns {
		n += len(cv.Tasks)
	}
	return n
}

// withColumns returns a copy of s whose column slice can be edited without
// touching s.
func (s *Snapshot) withColumns() *Snapshot {
	out := *s
	out.Columns = slices.Clone(s.Columns)
	return &out
}
