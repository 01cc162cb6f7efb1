package kanban

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/gosuda/taskflow/internal/domain"
)

// Stats summarises the non-archived tasks of a board.
type Stats struct {
	Total       int                     `json:"total"`
	ByPriority  map[domain.Priority]int `json:"by_priority"`
	Overdue     int                     `json:"overdue"`
	DueToday    int                     `json:"due_today"`
	DueThisWeek int                     `json:"due_this_week"`
	ByColumn    []ColumnStat            `json:"by_column"`
	// Completed counts the tasks in the last column.
	Completed int `json:"completed"`
	Progress  int `json:"progress"` // percent, rounded
}

type ColumnStat struct {
	ColumnID uuid.UUID `json:"column_id"`
	Title    string    `json:"title"`
	Count    int       `json:"count"`
	Percent  int       `json:"percent"`
}

// Statistics computes board statistics relative to now (its location decides
// where a day starts).
func Statistics(s *Snapshot, now time.Time) Stats {
	st := Stats{ByPriority: make(map[domain.Priority]int, len(domain.Priorities))}
	for _, p := range domain.Priorities {
		st.ByPriority[p] = 0
	}

	today := startOfDay(now)
	tomorrow := today.AddDate(0, 0, 1)
	weekEnd := today.AddDate(0, 0, 7)

	for _, cv := range s.Columns {
		for _, t := range cv.Tasks {
			st.Total++
			st.ByPriority[t.Priority]++
			if t.DueDate == nil {
				continue
			}
			due := startOfDay(t.DueDate.In(now.Location()))
			if due.Before(today) {
				st.Overdue++
			}
			if !due.Before(today) && due.Before(tomorrow) {
				st.DueToday++
			}
			if !due.Before(today) && due.Before(weekEnd) {
				st.DueThisWeek++
			}
		}
	}

	st.ByColumn = make([]ColumnStat, 0, len(s.Columns))
	for _, cv := range s.Columns {
		st.ByColumn = append(st.ByColumn, ColumnStat{
			ColumnID: cv.Column.ID,
			Title:    cv.Column.Title,
			Count:    len(cv.Tasks),
			Percent:  percent(len(cv.Tasks), st.Total),
		})
	}
	if n := len(s.Columns); n > 0 {
		st.Completed = len(s.Columns[n-1].Tasks)
	}
	st.Progress = percent(st.Completed, st.Total)
	return st
}

func percent(part, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(total) * 100))
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
