package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/gosuda/taskflow/internal/cache"
	"github.com/gosuda/taskflow/internal/domain"
	"github.com/gosuda/taskflow/internal/kanban"
	"github.com/gosuda/taskflow/internal/realtime"
	"github.com/gosuda/taskflow/internal/session"
)

// boardSession is the part of a BoardSession the watch view drives.
type boardSession interface {
	Snapshot() *kanban.Snapshot
	Saving() bool
	ConnectionState() realtime.State
	Viewers() []domain.Viewer
	MoveTask(ctx context.Context, activeID uuid.UUID, target kanban.DropTarget) (kanban.Move, error)
	Refresh(ctx context.Context) error
	Done() <-chan struct{}
	Err() error
}

type keyMap struct {
	Up, Down, Left, Right key.Binding
	Pick, Cancel          key.Binding
	Refresh, Quit         key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Left, k.Right, k.Up, k.Down, k.Pick, k.Cancel, k.Refresh, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

func defaultKeys() keyMap {
	return keyMap{
		Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Left:    key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "prev column")),
		Right:   key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "next column")),
		Pick:    key.NewBinding(key.WithKeys(" ", "enter"), key.WithHelp("space", "pick/drop")),
		Cancel:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

type (
	// wakeMsg means the session changed; the view rereads it.
	wakeMsg struct{}
	// endedMsg means the session ended on its own.
	endedMsg    struct{ err error }
	moveDoneMsg struct {
		move kanban.Move
		err  error
	}
	refreshDoneMsg struct{ err error }
)

type watchModel struct {
	ctx    context.Context
	s      boardSession
	wake   <-chan struct{}
	filter kanban.Filter
	order  kanban.Sort
	userID uuid.UUID
	keys   keyMap
	help   help.Model
	spin   spinner.Model
	cur    cursor
	picked uuid.UUID
	status string
	err    error
	now    func() time.Time
}

func newWatchModel(ctx context.Context, s boardSession, wake <-chan struct{}, filter kanban.Filter, order kanban.Sort, userID uuid.UUID) watchModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = pendingStyle
	h := help.New()
	h.Styles.ShortKey = helpStyle
	h.Styles.ShortDesc = helpStyle
	return watchModel{
		ctx:    ctx,
		s:      s,
		wake:   wake,
		filter: filter,
		order:  order,
		userID: userID,
		keys:   defaultKeys(),
		help:   h,
		spin:   sp,
		now:    time.Now,
	}
}

// listen waits for the next session change or for the session to end.
func (m watchModel) listen() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-m.wake:
			return wakeMsg{}
		case <-m.s.Done():
			return endedMsg{err: m.s.Err()}
		case <-m.ctx.Done():
			return endedMsg{err: m.ctx.Err()}
		}
	}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.listen(), m.spin.Tick)
}

func (m watchModel) snapshot() *kanban.Snapshot {
	return kanban.Project(m.s.Snapshot(), m.filter, m.order, m.userID, m.now())
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		return m, nil

	case wakeMsg:
		m.clamp(m.snapshot())
		return m, m.listen()

	case endedMsg:
		m.err = msg.err
		return m, tea.Quit

	case moveDoneMsg:
		if msg.err != nil {
			m.status = fail("move failed: " + msg.err.Error())
			return m, nil
		}
		if !msg.move.IsNoop() {
			m.status = ok("moved")
			m.focus(msg.move.TaskID)
		}
		return m, nil

	case refreshDoneMsg:
		if msg.err != nil {
			m.status = fail("refresh failed: " + msg.err.Error())
		} else {
			m.status = ok("refreshed")
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m watchModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	snap := m.snapshot()
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Left):
		m.cur.Col--
	case key.Matches(msg, m.keys.Right):
		m.cur.Col++
	case key.Matches(msg, m.keys.Up):
		m.step(snap, -1)
	case key.Matches(msg, m.keys.Down):
		m.step(snap, 1)
	case key.Matches(msg, m.keys.Cancel):
		m.picked = uuid.Nil
		m.status = ""
	case key.Matches(msg, m.keys.Refresh):
		m.status = mutedStyle.Render("refreshing...")
		return m, m.refresh()
	case key.Matches(msg, m.keys.Pick):
		return m.pickOrDrop(snap)
	}
	m.clamp(snap)
	return m, nil
}

func (m watchModel) pickOrDrop(snap *kanban.Snapshot) (tea.Model, tea.Cmd) {
	if m.cur.Col < 0 || m.cur.Col >= len(snap.Columns) {
		return m, nil
	}
	cv := snap.Columns[m.cur.Col]

	if m.picked == uuid.Nil {
		if m.cur.Row < 0 || m.cur.Row >= len(cv.Tasks) {
			return m, nil
		}
		m.picked = cv.Tasks[m.cur.Row].ID
		m.status = pendingStyle.Render("moving " + cv.Tasks[m.cur.Row].Title + "; pick a spot")
		return m, nil
	}

	active := m.picked
	m.picked = uuid.Nil
	target := kanban.ColumnTarget(cv.Column.ID)
	if m.cur.Row >= 0 && m.cur.Row < len(cv.Tasks) {
		if cv.Tasks[m.cur.Row].ID == active {
			m.status = ""
			return m, nil
		}
		target = kanban.TaskTarget(cv.Tasks[m.cur.Row].ID)
	}
	m.status = pendingStyle.Render("saving...")
	return m, m.move(active, target)
}

func (m watchModel) move(active uuid.UUID, target kanban.DropTarget) tea.Cmd {
	return func() tea.Msg {
		mv, err := m.s.MoveTask(m.ctx, active, target)
		return moveDoneMsg{move: mv, err: err}
	}
}

func (m watchModel) refresh() tea.Cmd {
	return func() tea.Msg {
		return refreshDoneMsg{err: m.s.Refresh(m.ctx)}
	}
}

// step moves the cursor within a column. Past the last task sits the
// column's drop area.
func (m *watchModel) step(snap *kanban.Snapshot, delta int) {
	if m.cur.Col < 0 || m.cur.Col >= len(snap.Columns) {
		return
	}
	n := len(snap.Columns[m.cur.Col].Tasks)
	row := m.cur.Row
	if row < 0 {
		row = n
	}
	row += delta
	if row < 0 {
		row = 0
	}
	if row > n {
		row = n
	}
	if row == n {
		row = -1
	}
	m.cur.Row = row
}

// clamp keeps the cursor on an existing cell after the board changed.
func (m *watchModel) clamp(snap *kanban.Snapshot) {
	if len(snap.Columns) == 0 {
		m.cur = cursor{}
		return
	}
	m.cur.Col = max(0, min(m.cur.Col, len(snap.Columns)-1))
	n := len(snap.Columns[m.cur.Col].Tasks)
	if m.cur.Row >= n {
		m.cur.Row = n - 1
	}
	if n == 0 {
		m.cur.Row = -1
	}
}

// focus puts the cursor on a task if it is visible.
func (m *watchModel) focus(taskID uuid.UUID) {
	snap := m.snapshot()
	if col, idx, found := snap.Locate(taskID); found {
		m.cur = cursor{Col: col, Row: idx}
		return
	}
	m.clamp(snap)
}

func (m watchModel) connection() string {
	if m.s.Saving() {
		return m.spin.View() + pendingStyle.Render(" saving")
	}
	return connectionBadge(m.s.ConnectionState(), m.spin)
}

func connectionBadge(st realtime.State, spin spinner.Model) string {
	switch st {
	case realtime.StateLive:
		return successStyle.Render("● live")
	case realtime.StateConnecting, realtime.StateReconnecting:
		return spin.View() + pendingStyle.Render(" "+st.String())
	default:
		return errorStyle.Render("○ " + st.String())
	}
}

func (m watchModel) View() string {
	board := renderBoard(boardView{Snap: m.snapshot(), Cursor: &m.cur, Picked: m.picked, Now: m.now()})
	footer := m.connection()
	if online := renderViewers(m.s.Viewers()); online != "" {
		footer += "  " + online
	}
	if m.status != "" {
		footer += "  " + m.status
	}
	return lipgloss.JoinVertical(lipgloss.Left, board, footer, m.help.View(m.keys)) + "\n"
}

func watchCmd(a *app) *cobra.Command {
	var vf viewFlags
	cmd := &cobra.Command{
		Use:   "watch BOARD",
		Short: "Open a live board view with keyboard drag and drop",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, order, err := vf.filter()
			if err != nil {
				return err
			}
			userID, err := a.userID()
			if err != nil {
				return err
			}

			wake := make(chan struct{}, 1)
			poke := func() {
				select {
				case wake <- struct{}{}:
				default:
				}
			}

			ctx := cmd.Context()
			s, err := a.openSession(ctx, args[0], true, func(realtime.State) { poke() })
			if err != nil {
				return err
			}
			defer s.Close()
			unsubscribe := s.OnChange(func(cache.Key) { poke() })
			defer unsubscribe()

			p := tea.NewProgram(newWatchModel(ctx, s, wake, filter, order, userID), tea.WithAltScreen(), tea.WithContext(ctx))
			final, err := p.Run()
			if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
				return err
			}
			if fm, isWatch := final.(watchModel); isWatch && fm.err != nil {
				if errors.Is(fm.err, session.ErrAccessLost) {
					return fmt.Errorf("board closed: %w", fm.err)
				}
				if !errors.Is(fm.err, context.Canceled) {
					return fm.err
				}
			}
			return nil
		},
	}
	vf.bind(cmd)
	return cmd
}
