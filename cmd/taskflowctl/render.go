package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/gosuda/taskflow/internal/domain"
	"github.com/gosuda/taskflow/internal/kanban"
)

const columnWidth = 28

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	accentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	mutedStyle   = lipgloss.NewStyle().Faint(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)

	selectedStyle = lipgloss.NewStyle().Bold(true).Reverse(true)
	pickedStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	helpStyle     = lipgloss.NewStyle().Faint(true)

	columnStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8")).
			Padding(0, 1).
			Width(columnWidth)
	focusedColumnStyle = columnStyle.BorderForeground(lipgloss.Color("12"))

	priorityStyles = map[domain.Priority]lipgloss.Style{ //nolint:gochecknoglobals // style table
		domain.PriorityUrgent: lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		domain.PriorityHigh:   lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		domain.PriorityMedium: lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
		domain.PriorityLow:    lipgloss.NewStyle().Faint(true),
	}
)

// cursor marks the focused cell of the board view. Row -1 is the column's
// empty area below its last task.
type cursor struct {
	Col, Row int
}

// boardView is what renderBoard needs to draw one frame.
type boardView struct {
	Snap   *kanban.Snapshot
	Cursor *cursor   // nil outside the watch view
	Picked uuid.UUID // task being moved, Nil when none
	Now    time.Time
}

func panel(lines []string) string {
	border := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("8")).
		Padding(0, 1)
	return border.Render(strings.Join(lines, "\n"))
}

func progressBar(done, total, width int) string {
	if total == 0 {
		total = 1
	}
	if width <= 0 {
		width = 28
	}
	filled := done * width / total
	if filled > width {
		filled = width
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + fmt.Sprintf("] %d/%d", done, total)
}

func priorityBadge(p domain.Priority) string {
	style, ok := priorityStyles[p]
	if !ok {
		style = priorityStyles[domain.PriorityMedium]
	}
	return style.Render("●")
}

func dueLabel(t *domain.Task, now time.Time) string {
	if t.DueDate == nil {
		return ""
	}
	label := t.DueDate.Format("Jan 2")
	if t.DueDate.Before(now) {
		return errorStyle.Render("due " + label)
	}
	return mutedStyle.Render("due " + label)
}

func taskLine(t *domain.Task, now time.Time) string {
	line := priorityBadge(t.Priority) + " " + t.Title
	if due := dueLabel(t, now); due != "" {
		line += " " + due
	}
	return line
}

// renderBoard draws the columns side by side.
func renderBoard(v boardView) string {
	if v.Snap == nil {
		return mutedStyle.Render("no board loaded")
	}
	header := titleStyle.Render(v.Snap.Board.Title) + mutedStyle.Render(fmt.Sprintf("  rev %d", v.Snap.Revision()))

	cols := make([]string, 0, len(v.Snap.Columns))
	for ci, cv := range v.Snap.Columns {
		lines := []string{accentStyle.Render(cv.Column.Title) + mutedStyle.Render(fmt.Sprintf(" (%d)", len(cv.Tasks)))}
		for ti, t := range cv.Tasks {
			line := taskLine(t, v.Now)
			switch {
			case t.ID == v.Picked:
				line = pickedStyle.Render("» ") + line
			case v.Cursor != nil && v.Cursor.Col == ci && v.Cursor.Row == ti:
				line = selectedStyle.Render("> ") + line
			default:
				line = "  " + line
			}
			lines = append(lines, line)
		}
		if len(cv.Tasks) == 0 || (v.Cursor != nil && v.Cursor.Col == ci && v.Cursor.Row == -1) {
			empty := mutedStyle.Render("  drop here")
			if v.Cursor != nil && v.Cursor.Col == ci && v.Cursor.Row == -1 {
				empty = selectedStyle.Render("> ") + mutedStyle.Render("drop here")
			}
			lines = append(lines, empty)
		}

		style := columnStyle
		if v.Cursor != nil && v.Cursor.Col == ci {
			style = focusedColumnStyle
		}
		cols = append(cols, style.Render(strings.Join(lines, "\n")))
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, lipgloss.JoinHorizontal(lipgloss.Top, cols...))
}

func renderStats(st kanban.Stats) string {
	lines := []string{
		titleStyle.Render("Progress") + " " + progressBar(st.Completed, st.Total, 20),
		fmt.Sprintf("%s %d  %s %d  %s %d",
			errorStyle.Render("overdue"), st.Overdue,
			pendingStyle.Render("today"), st.DueToday,
			accentStyle.Render("this week"), st.DueThisWeek),
	}
	prio := make([]string, 0, len(domain.Priorities))
	for _, p := range domain.Priorities {
		prio = append(prio, fmt.Sprintf("%s %s %d", priorityBadge(p), p, st.ByPriority[p]))
	}
	lines = append(lines, strings.Join(prio, "  "))
	for _, c := range st.ByColumn {
		lines = append(lines, fmt.Sprintf("%-16s %3d %s", c.Title, c.Count, mutedStyle.Render(fmt.Sprintf("%d%%", c.Percent))))
	}
	return panel(lines)
}

func renderBoards(boards []*domain.Board) string {
	if len(boards) == 0 {
		return mutedStyle.Render("no boards yet; create one with `taskflowctl create-board`")
	}
	lines := make([]string, 0, len(boards))
	for _, b := range boards {
		lines = append(lines, fmt.Sprintf("%s  %s", mutedStyle.Render(b.ID.String()), titleStyle.Render(b.Title)))
	}
	return panel(lines)
}

// maxViewers is how many viewers the footer names before summarising.
const maxViewers = 5

func renderViewers(viewers []domain.Viewer) string {
	if len(viewers) == 0 {
		return ""
	}
	names := make([]string, 0, maxViewers)
	for i, v := range viewers {
		if i == maxViewers {
			break
		}
		names = append(names, v.Email)
	}
	out := "online: " + strings.Join(names, ", ")
	if extra := len(viewers) - maxViewers; extra > 0 {
		out += fmt.Sprintf(" +%d", extra)
	}
	return mutedStyle.Render(out)
}

func renderTasks(tasks []*domain.Task, now time.Time) string {
	if len(tasks) == 0 {
		return mutedStyle.Render("nothing here")
	}
	lines := make([]string, 0, len(tasks))
	for _, t := range tasks {
		lines = append(lines, mutedStyle.Render(t.ID.String()[:8])+"  "+taskLine(t, now))
	}
	return panel(lines)
}

func renderMembers(members []*domain.Membership) string {
	lines := make([]string, 0, len(members))
	for _, m := range members {
		lines = append(lines, fmt.Sprintf("%-8s %s", string(m.Role), m.UserEmail))
	}
	return panel(lines)
}

func renderComments(comments []*domain.Comment) string {
	if len(comments) == 0 {
		return mutedStyle.Render("no comments")
	}
	lines := make([]string, 0, len(comments))
	for _, c := range comments {
		lines = append(lines, mutedStyle.Render(c.CreatedAt.Format("Jan 2 15:04"))+"  "+c.Content)
	}
	return panel(lines)
}

func ok(msg string) string {
	return successStyle.Render("✔ " + msg)
}

func fail(msg string) string {
	return errorStyle.Render("✖ " + msg)
}
