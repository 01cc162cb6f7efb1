package main

import (
	"context"
	"errors"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/gosuda/taskflow/internal/domain"
	"github.com/gosuda/taskflow/internal/realtime"
	"github.com/gosuda/taskflow/internal/session"
)

// boardList is the part of a Dashboard the live board list drives.
type boardList interface {
	Boards() []*domain.Board
	ConnectionState() realtime.State
	Refresh(ctx context.Context) error
}

type dashboardKeys struct {
	Refresh, Quit key.Binding
}

func (k dashboardKeys) ShortHelp() []key.Binding { return []key.Binding{k.Refresh, k.Quit} }

func (k dashboardKeys) FullHelp() [][]key.Binding { return [][]key.Binding{k.ShortHelp()} }

type dashboardModel struct {
	ctx    context.Context
	d      boardList
	wake   <-chan struct{}
	keys   dashboardKeys
	help   help.Model
	spin   spinner.Model
	status string
	err    error
}

func newDashboardModel(ctx context.Context, d boardList, wake <-chan struct{}) dashboardModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = pendingStyle
	h := help.New()
	h.Styles.ShortKey = helpStyle
	h.Styles.ShortDesc = helpStyle
	keys := defaultKeys()
	return dashboardModel{
		ctx:  ctx,
		d:    d,
		wake: wake,
		keys: dashboardKeys{Refresh: keys.Refresh, Quit: keys.Quit},
		help: h,
		spin: sp,
	}
}

func (m dashboardModel) listen() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-m.wake:
			return wakeMsg{}
		case <-m.ctx.Done():
			return endedMsg{err: m.ctx.Err()}
		}
	}
}

func (m dashboardModel) Init() tea.Cmd {
	return tea.Batch(m.listen(), m.spin.Tick)
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
	case wakeMsg:
		return m, m.listen()
	case endedMsg:
		m.err = msg.err
		return m, tea.Quit
	case refreshDoneMsg:
		if msg.err != nil {
			m.status = fail("refresh failed: " + msg.err.Error())
		} else {
			m.status = ok("refreshed")
		}
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Refresh):
			m.status = mutedStyle.Render("refreshing...")
			return m, func() tea.Msg { return refreshDoneMsg{err: m.d.Refresh(m.ctx)} }
		}
	}
	return m, nil
}

func (m dashboardModel) View() string {
	footer := connectionBadge(m.d.ConnectionState(), m.spin)
	if m.status != "" {
		footer += "  " + m.status
	}
	return lipgloss.JoinVertical(lipgloss.Left, renderBoards(m.d.Boards()), footer, m.help.View(m.keys)) + "\n"
}

// watchBoards shows the board list until the user quits, reloading it as
// boards are shared, renamed or deleted.
func (a *app) watchBoards(ctx context.Context) error {
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

	d, err := session.OpenDashboard(ctx, session.DashboardConfig{
		UserID:         userID,
		API:            a.api,
		Dialer:         realtime.NewWSDialer(a.cfg.APIURL, a.cfg.Token, nil).User(),
		StaleTime:      a.cfg.StaleTime,
		ReconnectDelay: a.cfg.ReconnectDelay,
		OnState:        func(realtime.State) { poke() },
	})
	if err != nil {
		return err
	}
	defer d.Close()
	unsubscribe := d.OnChange(poke)
	defer unsubscribe()

	final, err := tea.NewProgram(newDashboardModel(ctx, d, wake), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	if fm, isDash := final.(dashboardModel); isDash && fm.err != nil && !errors.Is(fm.err, context.Canceled) {
		return fm.err
	}
	return nil
}
