package v1_test

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gosuda/taskflow/internal/domain"
	"github.com/gosuda/taskflow/internal/server/middleware"
)

// ---------------------------------------------------------------------------
// Context helpers: inject the authenticated user for DoCtx
// ---------------------------------------------------------------------------

func userCtx(userID uuid.UUID) context.Context {
	return middleware.WithUser(context.Background(), userID, "user@example.com")
}

// ---------------------------------------------------------------------------
// Board fixture: a board with an owner, an admin and a plain member
// ---------------------------------------------------------------------------

type boardFixture struct {
	board    *domain.Board
	owner    uuid.UUID
	admin    uuid.UUID
	member   uuid.UUID
	outsider uuid.UUID
	roles    map[uuid.UUID]domain.Role
}

func newBoardFixture() *boardFixture {
	f := &boardFixture{
		owner:    uuid.New(),
		admin:    uuid.New(),
		member:   uuid.New(),
		outsider: uuid.New(),
	}
	f.board = &domain.Board{ID: uuid.New(), Title: "Launch", OwnerID: f.owner, Revision: 7, CreatedAt: time.Now()}
	f.roles = map[uuid.UUID]domain.Role{
		f.owner:  domain.RoleOwner,
		f.admin:  domain.RoleAdmin,
		f.member: domain.RoleMember,
	}
	return f
}

func (f *boardFixture) membership(userID uuid.UUID) *domain.Membership {
	return &domain.Membership{ID: uuid.New(), BoardID: f.board.ID, UserID: userID, Role: f.roles[userID]}
}

// boardRepo answers GetByID for the fixture board only.
func (f *boardFixture) boardRepo() *mockBoardRepo {
	return &mockBoardRepo{
		getByIDFunc: func(_ context.Context, id uuid.UUID) (*domain.Board, error) {
			if id != f.board.ID {
				return nil, domain.ErrNotFound
			}
			b := *f.board
			return &b, nil
		},
	}
}

// memberRepo answers Get and ListByBoard from the fixture roles.
func (f *boardFixture) memberRepo() *mockMemberRepo {
	return &mockMemberRepo{
		getFunc: func(_ context.Context, boardID, userID uuid.UUID) (*domain.Membership, error) {
			if _, ok := f.roles[userID]; !ok || boardID != f.board.ID {
				return nil, domain.ErrNotFound
			}
			return f.membership(userID), nil
		},
		listByBoardFunc: func(_ context.Context, _ uuid.UUID) ([]*domain.Membership, error) {
			return []*domain.Membership{f.membership(f.owner), f.membership(f.admin), f.membership(f.member)}, nil
		},
	}
}

// store returns a mockDataStore wired with the fixture's board and member
// repos.
func (f *boardFixture) store() *mockDataStore {
	return &mockDataStore{boards: f.boardRepo(), members: f.memberRepo()}
}

// ---------------------------------------------------------------------------
// Mock DataStore
// ---------------------------------------------------------------------------

type mockDataStore struct {
	boards   *mockBoardRepo
	columns  *mockColumnRepo
	tasks    *mockTaskRepo
	comments *mockCommentRepo
	members  *mockMemberRepo
	users    *mockUserRepo
}

func (m *mockDataStore) Boards() domain.BoardRepository     { return m.boards }
func (m *mockDataStore) Columns() domain.ColumnRepository   { return m.columns }
func (m *mockDataStore) Tasks() domain.TaskRepository       { return m.tasks }
func (m *mockDataStore) Comments() domain.CommentRepository { return m.comments }
func (m *mockDataStore) Members() domain.MemberRepository   { return m.members }
func (m *mockDataStore) Users() domain.UserRepository       { return m.users }

// ---------------------------------------------------------------------------
// Mock BoardRepository
// ---------------------------------------------------------------------------

type mockBoardRepo struct {
	createFunc      func(ctx context.Context, b *domain.Board, columns []*domain.Column) error
	getByIDFunc     func(ctx context.Context, id uuid.UUID) (*domain.Board, error)
	listForUserFunc func(ctx context.Context, userID uuid.UUID) ([]*domain.Board, error)
	getContentFunc  func(ctx context.Context, id uuid.UUID) (*domain.BoardContent, error)
	updateFunc      func(ctx context.Context, b *domain.Board) (int64, error)
	deleteFunc      func(ctx context.Context, id uuid.UUID) error
}

func (m *mockBoardRepo) Create(ctx context.Context, b *domain.Board, columns []*domain.Column) error {
	return m.createFunc(ctx, b, columns)
}

func (m *mockBoardRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Board, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockBoardRepo) ListForUser(ctx context.Context, userID uuid.UUID) ([]*domain.Board, error) {
	return m.listForUserFunc(ctx, userID)
}

func (m *mockBoardRepo) GetContent(ctx context.Context, id uuid.UUID) (*domain.BoardContent, error) {
	return m.getContentFunc(ctx, id)
}

func (m *mockBoardRepo) Update(ctx context.Context, b *domain.Board) (int64, error) {
	return m.updateFunc(ctx, b)
}

func (m *mockBoardRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return m.deleteFunc(ctx, id)
}

// ---------------------------------------------------------------------------
// Mock ColumnRepository
// ---------------------------------------------------------------------------

type mockColumnRepo struct {
	createFunc      func(ctx context.Context, c *domain.Column) (int64, error)
	getByIDFunc     func(ctx context.Context, id uuid.UUID) (*domain.Column, error)
	listByBoardFunc func(ctx context.Context, boardID uuid.UUID) ([]*domain.Column, error)
	renameFunc      func(ctx context.Context, id uuid.UUID, title string) (int64, error)
	deleteFunc      func(ctx context.Context, id uuid.UUID) (int64, error)
	reorderFunc     func(ctx context.Context, boardID uuid.UUID, ids []uuid.UUID) (int64, error)
}

func (m *mockColumnRepo) Create(ctx context.Context, c *domain.Column) (int64, error) {
	return m.createFunc(ctx, c)
}

func (m *mockColumnRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Column, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockColumnRepo) ListByBoard(ctx context.Context, boardID uuid.UUID) ([]*domain.Column, error) {
	return m.listByBoardFunc(ctx, boardID)
}

func (m *mockColumnRepo) Rename(ctx context.Context, id uuid.UUID, title string) (int64, error) {
	return m.renameFunc(ctx, id, title)
}

func (m *mockColumnRepo) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	return m.deleteFunc(ctx, id)
}

func (m *mockColumnRepo) Reorder(ctx context.Context, boardID uuid.UUID, ids []uuid.UUID) (int64, error) {
	return m.reorderFunc(ctx, boardID, ids)
}

// ---------------------------------------------------------------------------
// Mock TaskRepository
// ---------------------------------------------------------------------------

type mockTaskRepo struct {
	createFunc       func(ctx context.Context, t *domain.Task) (int64, error)
	getByIDFunc      func(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	listArchivedFunc func(ctx context.Context, boardID uuid.UUID) ([]*domain.Task, error)
	updateFunc       func(ctx context.Context, t *domain.Task) (int64, error)
	moveFunc         func(ctx context.Context, id, columnID uuid.UUID, position int) (*domain.Task, int64, error)
	setArchivedFunc  func(ctx context.Context, id uuid.UUID, archived bool) (*domain.Task, int64, error)
	deleteFunc       func(ctx context.Context, id uuid.UUID) (*domain.Task, int64, error)
}

func (m *mockTaskRepo) Create(ctx context.Context, t *domain.Task) (int64, error) {
	return m.createFunc(ctx, t)
}

func (m *mockTaskRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockTaskRepo) ListArchived(ctx context.Context, boardID uuid.UUID) ([]*domain.Task, error) {
	return m.listArchivedFunc(ctx, boardID)
}

func (m *mockTaskRepo) Update(ctx context.Context, t *domain.Task) (int64, error) {
	return m.updateFunc(ctx, t)
}

func (m *mockTaskRepo) Move(ctx context.Context, id, columnID uuid.UUID, position int) (*domain.Task, int64, error) {
	return m.moveFunc(ctx, id, columnID, position)
}

func (m *mockTaskRepo) SetArchived(ctx context.Context, id uuid.UUID, archived bool) (*domain.Task, int64, error) {
	return m.setArchivedFunc(ctx, id, archived)
}

func (m *mockTaskRepo) Delete(ctx context.Context, id uuid.UUID) (*domain.Task, int64, error) {
	return m.deleteFunc(ctx, id)
}

// ---------------------------------------------------------------------------
// Mock CommentRepository
// ---------------------------------------------------------------------------

type mockCommentRepo struct {
	createFunc        func(ctx context.Context, c *domain.Comment) error
	getByIDFunc       func(ctx context.Context, id uuid.UUID) (*domain.Comment, error)
	listByTaskFunc    func(ctx context.Context, taskID uuid.UUID) ([]*domain.Comment, error)
	updateContentFunc func(ctx context.Context, id uuid.UUID, content string) (*domain.Comment, error)
	deleteFunc        func(ctx context.Context, id uuid.UUID) error
}

func (m *mockCommentRepo) Create(ctx context.Context, c *domain.Comment) error {
	return m.createFunc(ctx, c)
}

func (m *mockCommentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Comment, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockCommentRepo) ListByTask(ctx context.Context, taskID uuid.UUID) ([]*domain.Comment, error) {
	return m.listByTaskFunc(ctx, taskID)
}

func (m *mockCommentRepo) UpdateContent(ctx context.Context, id uuid.UUID, content string) (*domain.Comment, error) {
	return m.updateContentFunc(ctx, id, content)
}

func (m *mockCommentRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return m.deleteFunc(ctx, id)
}

// ---------------------------------------------------------------------------
// Mock MemberRepository
// ---------------------------------------------------------------------------

type mockMemberRepo struct {
	createFunc      func(ctx context.Context, m *domain.Membership) error
	getByIDFunc     func(ctx context.Context, id uuid.UUID) (*domain.Membership, error)
	getFunc         func(ctx context.Context, boardID, userID uuid.UUID) (*domain.Membership, error)
	listByBoardFunc func(ctx context.Context, boardID uuid.UUID) ([]*domain.Membership, error)
	updateRoleFunc  func(ctx context.Context, id uuid.UUID, role domain.Role) (*domain.Membership, error)
	deleteFunc      func(ctx context.Context, id uuid.UUID) (*domain.Membership, error)
}

func (m *mockMemberRepo) Create(ctx context.Context, mem *domain.Membership) error {
	return m.createFunc(ctx, mem)
}

func (m *mockMemberRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Membership, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockMemberRepo) Get(ctx context.Context, boardID, userID uuid.UUID) (*domain.Membership, error) {
	return m.getFunc(ctx, boardID, userID)
}

func (m *mockMemberRepo) ListByBoard(ctx context.Context, boardID uuid.UUID) ([]*domain.Membership, error) {
	return m.listByBoardFunc(ctx, boardID)
}

func (m *mockMemberRepo) UpdateRole(ctx context.Context, id uuid.UUID, role domain.Role) (*domain.Membership, error) {
	return m.updateRoleFunc(ctx, id, role)
}

func (m *mockMemberRepo) Delete(ctx context.Context, id uuid.UUID) (*domain.Membership, error) {
	return m.deleteFunc(ctx, id)
}

// ---------------------------------------------------------------------------
// Mock UserRepository
// ---------------------------------------------------------------------------

type mockUserRepo struct {
	createFunc     func(ctx context.Context, u *domain.User) error
	getByIDFunc    func(ctx context.Context, id uuid.UUID) (*domain.User, error)
	getByEmailFunc func(ctx context.Context, email string) (*domain.User, error)
}

func (m *mockUserRepo) Create(ctx context.Context, u *domain.User) error {
	return m.createFunc(ctx, u)
}

func (m *mockUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return m.getByEmailFunc(ctx, email)
}

// ---------------------------------------------------------------------------
// Mock AuthService
// ---------------------------------------------------------------------------

type mockAuthService struct {
	registerFunc func(ctx context.Context, email, password, name string) (string, *domain.User, error)
	loginFunc    func(ctx context.Context, email, password string) (string, *domain.User, error)
}

func (m *mockAuthService) Register(ctx context.Context, email, password, name string) (string, *domain.User, error) {
	return m.registerFunc(ctx, email, password, name)
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	return m.loginFunc(ctx, email, password)
}

// ---------------------------------------------------------------------------
// Mock Publisher: records every published event and its audience
// ---------------------------------------------------------------------------

type published struct {
	event domain.ChangeEvent
	users []uuid.UUID
}

type mockPublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (m *mockPublisher) PublishChange(_ context.Context, ev domain.ChangeEvent, users ...uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, published{event: ev, users: users})
	return m.err
}

func (m *mockPublisher) all() []published {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]published(nil), m.events...)
}
