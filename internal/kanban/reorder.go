package kanban

import (
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/gosuda/taskflow/internal/domain"
)

var (
	ErrTaskNotFound   = errors.New("kanban: task not found")
	ErrColumnNotFound = errors.New("kanban: column not found")
	// ErrStaleMove is returned by Apply when the move was computed against a
	// different snapshot than the one it is applied to.
	ErrStaleMove = errors.New("kanban: move does not match snapshot")
)

// DropTarget is where a dragged task was released: either on another task
// (TaskID set) or on a column's empty area (TaskID nil).
type DropTarget struct {
	ColumnID uuid.UUID
	TaskID   uuid.UUID
}

// ColumnTarget is a drop on the empty area of a column.
func ColumnTarget(columnID uuid.UUID) DropTarget {
	return DropTarget{ColumnID: columnID}
}

// TaskTarget is a drop onto another task.
func TaskTarget(taskID uuid.UUID) DropTarget {
	return DropTarget{TaskID: taskID}
}

// Move is a computed reorder: the task leaves (FromColumn, FromIndex) and
// ends up at (ToColumn, ToIndex).
type Move struct {
	TaskID     uuid.UUID
	FromColumn uuid.UUID
	FromIndex  int
	ToColumn   uuid.UUID
	ToIndex    int
}

// IsNoop reports whether the task would stay where it is.
func (m Move) IsNoop() bool {
	return m.FromColumn == m.ToColumn && m.FromIndex == m.ToIndex
}

// CrossColumn reports whether the task changes column.
func (m Move) CrossColumn() bool {
	return m.FromColumn != m.ToColumn
}

// Columns returns the distinct columns the move touches.
func (m Move) Columns() []uuid.UUID {
	if m.CrossColumn() {
		return []uuid.UUID{m.FromColumn, m.ToColumn}
	}
	return []uuid.UUID{m.FromColumn}
}

func (m Move) String() string {
	return fmt.Sprintf("task %s: %s[%d] -> %s[%d]", m.TaskID, m.FromColumn, m.FromIndex, m.ToColumn, m.ToIndex)
}

// ComputeReorder works out where activeID lands when dropped on target.
//
// A drop on a column area appends: the index is the number of tasks in that
// column other than the active one. A drop on a task takes that task's current
// index, with plain remove-then-insert semantics inside one column.
func ComputeReorder(s *Snapshot, activeID uuid.UUID, target DropTarget) (Move, error) {
	fc, fi, ok := s.Locate(activeID)
	if !ok {
		return Move{}, fmt.Errorf("kanban.ComputeReorder: active %s: %w", activeID, ErrTaskNotFound)
	}
	m := Move{
		TaskID:     activeID,
		FromColumn: s.Columns[fc].Column.ID,
		FromIndex:  fi,
	}

	if target.TaskID != uuid.Nil {
		if target.TaskID == activeID {
			m.ToColumn, m.ToIndex = m.FromColumn, m.FromIndex
			return m, nil
		}
		tc, ti, found := s.Locate(target.TaskID)
		if !found {
			return Move{}, fmt.Errorf("kanban.ComputeReorder: anchor %s: %w", target.TaskID, ErrTaskNotFound)
		}
		m.ToColumn = s.Columns[tc].Column.ID
		m.ToIndex = ti
		return m, nil
	}

	tc := s.ColumnIndex(target.ColumnID)
	if tc < 0 {
		return Move{}, fmt.Errorf("kanban.ComputeReorder: column %s: %w", target.ColumnID, ErrColumnNotFound)
	}
	n := len(s.Columns[tc].Tasks)
	if tc == fc {
		n--
	}
	m.ToColumn = target.ColumnID
	m.ToIndex = n
	return m, nil
}

// Apply returns the snapshot after m. A no-op move returns s itself. Both
// affected columns are renumbered to 0..n-1; the input is never modified.
func Apply(s *Snapshot, m Move) (*Snapshot, error) {
	if m.IsNoop() {
		return s, nil
	}

	fc, fi, ok := s.Locate(m.TaskID)
	if !ok {
		return nil, fmt.Errorf("kanban.Apply: %w", ErrTaskNotFound)
	}
	if s.Columns[fc].Column.ID != m.FromColumn || fi != m.FromIndex {
		return nil, fmt.Errorf("kanban.Apply: %s: %w", m, ErrStaleMove)
	}
	tc := s.ColumnIndex(m.ToColumn)
	if tc < 0 {
		return nil, fmt.Errorf("kanban.Apply: %w", ErrColumnNotFound)
	}

	moved := s.Columns[fc].Tasks[fi]
	source := slices.Delete(slices.Clone(s.Columns[fc].Tasks), fi, fi+1)

	var target []*domain.Task
	if tc == fc {
		target = source
	} else {
		target = slices.Clone(s.Columns[tc].Tasks)
	}
	if m.ToIndex < 0 || m.ToIndex > len(target) {
		return nil, fmt.Errorf("kanban.Apply: index %d of %d: %w", m.ToIndex, len(target), domain.ErrInvalidPosition)
	}
	target = slices.Insert(target, m.ToIndex, moved)

	out := s.withColumns()
	out.Columns[tc] = &ColumnView{Column: s.Columns[tc].Column, Tasks: Renumber(m.ToColumn, target)}
	if tc != fc {
		out.Columns[fc] = &ColumnView{Column: s.Columns[fc].Column, Tasks: Renumber(m.FromColumn, source)}
	}
	return out, nil
}

// Renumber assigns positions 0..n-1 and columnID to tasks in slice order.
// Tasks that already carry the right values are kept as is; the rest are
// cloned before being changed.
func Renumber(columnID uuid.UUID, tasks []*domain.Task) []*domain.Task {
	out := make([]*domain.Task, len(tasks))
	for i, t := range tasks {
		if t.Position == i && t.ColumnID == columnID {
			out[i] = t
			continue
		}
		c := t.Clone()
		c.Position = i
		c.ColumnID = columnID
		out[i] = c
	}
	return out
}

// InsertTask places t into its column at t.Position (clamped to the end) and
// renumbers that column.
func InsertTask(s *Snapshot, t *domain.Task) (*Snapshot, error) {
	ci := s.ColumnIndex(t.ColumnID)
	if ci < 0 {
		return nil, fmt.Errorf("kanban.InsertTask: %w", ErrColumnNotFound)
	}
	tasks := s.Columns[ci].Tasks
	at := min(max(t.Position, 0), len(tasks))

	out := s.withColumns()
	out.Columns[ci] = &ColumnView{
		Column: s.Columns[ci].Column,
		Tasks:  Renumber(t.ColumnID, slices.Insert(slices.Clone(tasks), at, t)),
	}
	return out, nil
}

// RemoveTask drops a task and closes the gap it leaves. It reports false and
// returns s unchanged when the task is not on the board.
func RemoveTask(s *Snapshot, taskID uuid.UUID) (*Snapshot, bool) {
	ci, ti, ok := s.Locate(taskID)
	if !ok {
		return s, false
	}
	cv := s.Columns[ci]
	out := s.withColumns()
	out.Columns[ci] = &ColumnView{
		Column: cv.Column,
		Tasks:  Renumber(cv.Column.ID, slices.Delete(slices.Clone(cv.Tasks), ti, ti+1)),
	}
	return out, true
}

// Validate checks that every column holds only its own non-archived tasks at
// positions 0..n-1.
func Validate(s *Snapshot) error {
	for _, cv := range s.Columns {
		for i, t := range cv.Tasks {
			if t.Archived {
				return fmt.Errorf("kanban.Validate: column %s: archived task %s in ordering", cv.Column.ID, t.ID)
			}
			if t.ColumnID != cv.Column.ID {
				return fmt.Errorf("kanban.Validate: column %s: task %s belongs to %s", cv.Column.ID, t.ID, t.ColumnID)
			}
			if t.Position != i {
				return fmt.Errorf("kanban.Validate: column %s: task %s at index %d has position %d", cv.Column.ID, t.ID, i, t.Position)
			}
		}
	}
	return nil
}
