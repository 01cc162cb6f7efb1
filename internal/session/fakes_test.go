package session_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/taskflow/internal/client"
	"github.com/gosuda/taskflow/internal/domain"
	"github.com/gosuda/taskflow/internal/notify"
	"github.com/gosuda/taskflow/internal/realtime"
	"github.com/gosuda/taskflow/internal/session"
)

// ---------------------------------------------------------------------------
// Mock API
// ---------------------------------------------------------------------------

type mockAPI struct {
	getBoardFunc     func(ctx context.Context, boardID uuid.UUID) (*domain.BoardContent, error)
	checkAccessFunc  func(ctx context.Context, boardID uuid.UUID) (domain.Permissions, error)
	moveTaskFunc     func(ctx context.Context, taskID, columnID uuid.UUID, position int) (*client.TaskResult, error)
	createTaskFunc   func(ctx context.Context, boardID uuid.UUID, draft client.TaskDraft) (*client.TaskResult, error)
	createColumnFunc func(ctx context.Context, boardID uuid.UUID, title string) (*client.ColumnResult, error)
	renameColumnFunc func(ctx context.Context, columnID uuid.UUID, title string) (*client.ColumnResult, error)
	listArchivedFunc func(ctx context.Context, boardID uuid.UUID) ([]*domain.Task, error)
	listCommentsFunc func(ctx context.Context, taskID uuid.UUID) ([]*domain.Comment, error)
	addCommentFunc   func(ctx context.Context, taskID uuid.UUID, content string) (*domain.Comment, error)
	listMembersFunc  func(ctx context.Context, boardID uuid.UUID) ([]*domain.Membership, error)
	inviteFunc       func(ctx context.Context, boardID uuid.UUID, email string, role domain.Role) (*domain.Membership, error)
	onlineFunc       func(ctx context.Context, boardID uuid.UUID) ([]domain.Viewer, error)

	calls atomic.Int32
}

func (m *mockAPI) GetBoard(ctx context.Context, boardID uuid.UUID) (*domain.BoardContent, error) {
	return m.getBoardFunc(ctx, boardID)
}

func (m *mockAPI) CheckAccess(ctx context.Context, boardID uuid.UUID) (domain.Permissions, error) {
	return m.checkAccessFunc(ctx, boardID)
}

func (m *mockAPI) MoveTask(ctx context.Context, taskID, columnID uuid.UUID, position int) (*client.TaskResult, error) {
	m.calls.Add(1)
	return m.moveTaskFunc(ctx, taskID, columnID, position)
}

func (m *mockAPI) CreateTask(ctx context.Context, boardID uuid.UUID, draft client.TaskDraft) (*client.TaskResult, error) {
	m.calls.Add(1)
	return m.createTaskFunc(ctx, boardID, draft)
}

func (m *mockAPI) CreateColumn(ctx context.Context, boardID uuid.UUID, title string) (*client.ColumnResult, error) {
	m.calls.Add(1)
	return m.createColumnFunc(ctx, boardID, title)
}

func (m *mockAPI) RenameColumn(ctx context.Context, columnID uuid.UUID, title string) (*client.ColumnResult, error) {
	m.calls.Add(1)
	return m.renameColumnFunc(ctx, columnID, title)
}

func (m *mockAPI) ListArchived(ctx context.Context, boardID uuid.UUID) ([]*domain.Task, error) {
	return m.listArchivedFunc(ctx, boardID)
}

func (m *mockAPI) ListComments(ctx context.Context, taskID uuid.UUID) ([]*domain.Comment, error) {
	return m.listCommentsFunc(ctx, taskID)
}

func (m *mockAPI) AddComment(ctx context.Context, taskID uuid.UUID, content string) (*domain.Comment, error) {
	m.calls.Add(1)
	return m.addCommentFunc(ctx, taskID, content)
}

func (m *mockAPI) ListMembers(ctx context.Context, boardID uuid.UUID) ([]*domain.Membership, error) {
	return m.listMembersFunc(ctx, boardID)
}

func (m *mockAPI) InviteMember(ctx context.Context, boardID uuid.UUID, email string, role domain.Role) (*domain.Membership, error) {
	m.calls.Add(1)
	return m.inviteFunc(ctx, boardID, email, role)
}

func (m *mockAPI) Online(ctx context.Context, boardID uuid.UUID) ([]domain.Viewer, error) {
	if m.onlineFunc == nil {
		return nil, nil
	}
	return m.onlineFunc(ctx, boardID)
}

// ---------------------------------------------------------------------------
// Fixture: a board with named columns and tasks served by the mock API.
// ---------------------------------------------------------------------------

type fixture struct {
	api     *mockAPI
	board   *domain.Board
	columns map[string]*domain.Column
	tasks   map[string]*domain.Task
	owner   uuid.UUID

	mu      sync.Mutex
	content *domain.BoardContent
}

// newFixture builds a board whose columns hold the given task titles, e.g.
// newFixture(t, []string{"X", "T1", "T2"}, []string{"Y"}).
func newFixture(t *testing.T, columns ...[]string) *fixture {
	t.Helper()

	f := &fixture{
		owner:   uuid.New(),
		columns: make(map[string]*domain.Column),
		tasks:   make(map[string]*domain.Task),
	}
	f.board = &domain.Board{ID: uuid.New(), Title: "Roadmap", OwnerID: f.owner, Revision: 1}
	content := &domain.BoardContent{Board: f.board}
	for ci, spec := range columns {
		col := &domain.Column{ID: uuid.New(), BoardID: f.board.ID, Title: spec[0], Position: ci}
		f.columns[spec[0]] = col
		content.Columns = append(content.Columns, col)
		for ti, title := range spec[1:] {
			task := &domain.Task{ID: uuid.New(), BoardID: f.board.ID, ColumnID: col.ID, Title: title, Position: ti, Priority: domain.PriorityMedium}
			f.tasks[title] = task
			content.Tasks = append(content.Tasks, task)
		}
	}
	f.content = content

	f.api = &mockAPI{
		getBoardFunc: func(context.Context, uuid.UUID) (*domain.BoardContent, error) {
			f.mu.Lock()
			defer f.mu.Unlock()
			return f.content, nil
		},
		checkAccessFunc: func(context.Context, uuid.UUID) (domain.Permissions, error) {
			return domain.PermissionsFor(f.board, nil, f.owner), nil
		},
		moveTaskFunc: func(_ context.Context, taskID, columnID uuid.UUID, position int) (*client.TaskResult, error) {
			return &client.TaskResult{Task: &domain.Task{ID: taskID, ColumnID: columnID, Position: position}, Revision: 2}, nil
		},
		listMembersFunc: func(context.Context, uuid.UUID) ([]*domain.Membership, error) {
			return []*domain.Membership{{ID: uuid.New(), BoardID: f.board.ID, UserID: f.owner, Role: domain.RoleOwner}}, nil
		},
		listArchivedFunc: func(context.Context, uuid.UUID) ([]*domain.Task, error) { return nil, nil },
		listCommentsFunc: func(context.Context, uuid.UUID) ([]*domain.Comment, error) { return nil, nil },
	}
	return f
}

func (f *fixture) setContent(c *domain.BoardContent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.content = c
}

func (f *fixture) open(t *testing.T, mut ...func(*session.Config)) *session.BoardSession {
	t.Helper()

	cfg := session.Config{BoardID: f.board.ID, UserID: f.owner, API: f.api}
	for _, m := range mut {
		m(&cfg)
	}
	s, err := session.Open(t.Context(), cfg)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

// titles lists the task titles of the named column in the current snapshot.
func (f *fixture) titles(s *session.BoardSession, column string) []string {
	cv := s.Snapshot().Column(f.columns[column].ID)
	out := make([]string, len(cv.Tasks))
	for i, t := range cv.Tasks {
		out[i] = fmt.Sprintf("%s@%d", t.Title, t.Position)
	}
	return out
}

// ---------------------------------------------------------------------------
// Notices and change feed
// ---------------------------------------------------------------------------

type noticeLog struct {
	mu      sync.Mutex
	notices []notify.Notice
}

func (l *noticeLog) Notify(_ context.Context, n notify.Notice) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.notices = append(l.notices, n)
	return nil
}

func (l *noticeLog) all() []notify.Notice {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]notify.Notice(nil), l.notices...)
}

type chanStream struct {
	events chan domain.ChangeEvent
}

func (s *chanStream) Recv(ctx context.Context) (domain.ChangeEvent, error) {
	select {
	case ev := <-s.events:
		return ev, nil
	case <-ctx.Done():
		return domain.ChangeEvent{}, ctx.Err()
	}
}

func (s *chanStream) Close() error { return nil }

func feed() (*chanStream, realtime.Dialer) {
	st := &chanStream{events: make(chan domain.ChangeEvent, 8)}
	return st, realtime.DialerFunc(func(context.Context) (realtime.Stream, error) { return st, nil })
}

// droppingStream delivers nothing and fails once drop is closed.
type droppingStream struct {
	drop chan struct{}
}

func (s droppingStream) Recv(ctx context.Context) (domain.ChangeEvent, error) {
	select {
	case <-s.drop:
		return domain.ChangeEvent{}, errors.New("connection reset")
	case <-ctx.Done():
		return domain.ChangeEvent{}, ctx.Err()
	}
}

func (droppingStream) Close() error { return nil }

// flakyFeed serves a stream that drops when the returned channel is closed,
// then answers every redial with next.
func flakyFeed(next func() (realtime.Stream, error)) (chan struct{}, realtime.Dialer) {
	drop := make(chan struct{})
	var dials atomic.Int32
	return drop, realtime.DialerFunc(func(context.Context) (realtime.Stream, error) {
		if dials.Add(1) == 1 {
			return droppingStream{drop: drop}, nil
		}
		return next()
	})
}
