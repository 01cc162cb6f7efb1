package kanban

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gosuda/taskflow/internal/domain"
)

type AssigneeFilter string

const (
	AssigneeAll        AssigneeFilter = "all"
	AssigneeMe         AssigneeFilter = "me"
	AssigneeUnassigned AssigneeFilter = "unassigned"
)

type DueFilter string

const (
	DueAll     DueFilter = "all"
	DueOverdue DueFilter = "overdue"
	DueToday   DueFilter = "today"
	DueWeek    DueFilter = "week"
	DueNone    DueFilter = "no_date"
)

// Filter narrows the tasks shown on a board. The zero value matches all.
type Filter struct {
	Query      string
	Priorities []domain.Priority
	Assignee   AssigneeFilter
	Due        DueFilter
}

type SortField string

const (
	SortPosition  SortField = "position"
	SortPriority  SortField = "priority"
	SortDueDate   SortField = "due_date"
	SortCreatedAt SortField = "created_at"
	SortTitle     SortField = "title"
)

type Sort struct {
	Field SortField
	Desc  bool
}

// Match reports whether t passes f for the viewing user at time now.
func (f Filter) Match(t *domain.Task, userID uuid.UUID, now time.Time) bool {
	if t.Archived {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		if !strings.Contains(strings.ToLower(t.Title), q) && !strings.Contains(strings.ToLower(t.Description), q) {
			return false
		}
	}
	if len(f.Priorities) > 0 && !slices.Contains(f.Priorities, t.Priority) {
		return false
	}
	switch f.Assignee {
	case AssigneeMe:
		if t.AssignedTo == nil || *t.AssignedTo != userID {
			return false
		}
	case AssigneeUnassigned:
		if t.AssignedTo != nil {
			return false
		}
	}
	return f.matchDue(t, now)
}

func (f Filter) matchDue(t *domain.Task, now time.Time) bool {
	switch f.Due {
	case "", DueAll:
		return true
	case DueNone:
		return t.DueDate == nil
	}
	if t.DueDate == nil {
		return false
	}
	today := startOfDay(now)
	due := t.DueDate.In(now.Location())
	switch f.Due {
	case DueOverdue:
		return due.Before(today)
	case DueToday:
		return !due.Before(today) && due.Before(today.AddDate(0, 0, 1))
	case DueWeek:
		return !due.Before(today) && !due.After(today.AddDate(0, 0, 7))
	default:
		return true
	}
}

// Project returns a display-only copy of s with tasks filtered and sorted.
// Positions are left untouched, so the result must not be fed to Apply.
func Project(s *Snapshot, f Filter, order Sort, userID uuid.UUID, now time.Time) *Snapshot {
	out := s.withColumns()
	for i, cv := range s.Columns {
		tasks := make([]*domain.Task, 0, len(cv.Tasks))
		for _, t := range cv.Tasks {
			if f.Match(t, userID, now) {
				tasks = append(tasks, t)
			}
		}
		slices.SortStableFunc(tasks, func(a, b *domain.Task) int {
			c := compareTasks(a, b, order.Field)
			if order.Desc {
				return -c
			}
			return c
		})
		out.Columns[i] = &ColumnView{Column: cv.Column, Tasks: tasks}
	}
	return out
}

func compareTasks(a, b *domain.Task, field SortField) int {
	switch field {
	case SortPriority:
		return cmp.Compare(a.Priority.Rank(), b.Priority.Rank())
	case SortDueDate:
		switch {
		case a.DueDate == nil && b.DueDate == nil:
			return 0
		case a.DueDate == nil:
			return 1
		case b.DueDate == nil:
			return -1
		default:
			return a.DueDate.Compare(*b.DueDate)
		}
	case SortCreatedAt:
		return a.CreatedAt.Compare(b.CreatedAt)
	case SortTitle:
		return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
	default:
		return cmp.Compare(a.Position, b.Position)
	}
}
