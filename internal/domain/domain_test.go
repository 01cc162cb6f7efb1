package domain_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/taskflow/internal/domain"
)

// ---------------------------------------------------------------------------
// Sentinel errors
// ---------------------------------------------------------------------------

func TestSentinelErrors_Distinct(t *testing.T) {
	t.Parallel()

	sentinels := []error{
		domain.ErrNotFound, domain.ErrConflict, domain.ErrUnauthorized, domain.ErrForbidden,
		domain.ErrEmptyTitle, domain.ErrDuplicateTitle, domain.ErrInvalidEmail,
		domain.ErrInvalidPriority, domain.ErrInvalidRole, domain.ErrInvalidPosition, domain.ErrEmptyContent,
	}

	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j {
				assert.NotErrorIs(t, a, b, "%v vs %v", a, b)
			}
		}
	}
}

func TestIsValidation(t *testing.T) {
	t.Parallel()

	assert.True(t, domain.IsValidation(fmt.Errorf("wrap: %w", domain.ErrEmptyTitle)))
	assert.True(t, domain.IsValidation(domain.ErrInvalidEmail))
	assert.False(t, domain.IsValidation(domain.ErrNotFound))
	assert.False(t, domain.IsValidation(errors.New("other")))
	assert.False(t, domain.IsValidation(nil))
}

// ---------------------------------------------------------------------------
// Priority
// ---------------------------------------------------------------------------

func TestParsePriority(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    domain.Priority
		wantErr bool
	}{
		{in: "", want: domain.PriorityMedium},
		{in: "low", want: domain.PriorityLow},
		{in: "URGENT", want: domain.PriorityUrgent},
		{in: "high", want: domain.PriorityHigh},
		{in: "critical", wantErr: true},
	}

	for _, tc := range tests {
		got, err := domain.ParsePriority(tc.in)
		if tc.wantErr {
			require.ErrorIs(t, err, domain.ErrInvalidPriority, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestPriority_Rank(t *testing.T) {
	t.Parallel()

	for i, p := range domain.Priorities {
		assert.Equal(t, i, p.Rank(), p)
	}
	assert.Equal(t, domain.PriorityMedium.Rank(), domain.Priority("bogus").Rank())
}

// ---------------------------------------------------------------------------
// Constructors and validators
// ---------------------------------------------------------------------------

func TestNewBoard(t *testing.T) {
	t.Parallel()

	owner := uuid.New()
	b, err := domain.NewBoard(owner, "  Roadmap ", "", "")
	require.NoError(t, err)
	assert.Equal(t, "Roadmap", b.Title)
	assert.Equal(t, owner, b.OwnerID)
	assert.NotEmpty(t, b.BackgroundColor)
	assert.Zero(t, b.Revision)

	_, err = domain.NewBoard(owner, "   ", "", "")
	assert.ErrorIs(t, err, domain.ErrEmptyTitle)
}

func TestValidateColumnTitle(t *testing.T) {
	t.Parallel()

	todo := &domain.Column{ID: uuid.New(), Title: "To do"}
	done := &domain.Column{ID: uuid.New(), Title: "Done"}
	existing := []*domain.Column{todo, done}

	got, err := domain.ValidateColumnTitle(existing, uuid.Nil, "  Review ")
	require.NoError(t, err)
	assert.Equal(t, "Review", got)

	_, err = domain.ValidateColumnTitle(existing, uuid.Nil, "DONE")
	require.ErrorIs(t, err, domain.ErrDuplicateTitle)

	_, err = domain.ValidateColumnTitle(existing, done.ID, "done")
	require.NoError(t, err, "renaming a column to its own title is allowed")

	_, err = domain.ValidateColumnTitle(existing, uuid.Nil, "")
	require.ErrorIs(t, err, domain.ErrEmptyTitle)
}

func TestNewColumn_AppendsAfterExisting(t *testing.T) {
	t.Parallel()

	boardID := uuid.New()
	existing := []*domain.Column{{ID: uuid.New(), Title: "A"}, {ID: uuid.New(), Title: "B"}}

	c, err := domain.NewColumn(boardID, existing, "C")
	require.NoError(t, err)
	assert.Equal(t, 2, c.Position)
	assert.Equal(t, boardID, c.BoardID)
}

func TestNewTask(t *testing.T) {
	t.Parallel()

	task, err := domain.NewTask(uuid.New(), uuid.New(), uuid.New(), " Ship it ", "", 3)
	require.NoError(t, err)
	assert.Equal(t, "Ship it", task.Title)
	assert.Equal(t, domain.PriorityMedium, task.Priority)
	assert.Equal(t, 3, task.Position)

	_, err = domain.NewTask(uuid.New(), uuid.New(), uuid.New(), "", "", 0)
	require.ErrorIs(t, err, domain.ErrEmptyTitle)

	_, err = domain.NewTask(uuid.New(), uuid.New(), uuid.New(), "x", "", -1)
	require.ErrorIs(t, err, domain.ErrInvalidPosition)

	clone := task.Clone()
	clone.Title = "changed"
	assert.Equal(t, "Ship it", task.Title)
}

func TestNewComment(t *testing.T) {
	t.Parallel()

	c, err := domain.NewComment(uuid.New(), uuid.New(), "  looks good ")
	require.NoError(t, err)
	assert.Equal(t, "looks good", c.Content)

	_, err = domain.NewComment(uuid.New(), uuid.New(), "\n\t")
	assert.ErrorIs(t, err, domain.ErrEmptyContent)
}

func TestNormalizeEmail(t *testing.T) {
	t.Parallel()

	got, err := domain.NormalizeEmail("  Bob@Example.COM ")
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", got)

	for _, bad := range []string{"", "bob", "Bob <bob@example.com>", "@", "a@b@c"} {
		_, err := domain.NormalizeEmail(bad)
		assert.ErrorIs(t, err, domain.ErrInvalidEmail, bad)
	}
}

// ---------------------------------------------------------------------------
// Permissions
// ---------------------------------------------------------------------------

func TestPermissionsFor(t *testing.T) {
	t.Parallel()

	owner, admin, member, stranger := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	board := &domain.Board{ID: uuid.New(), OwnerID: owner}

	tests := []struct {
		name string
		m    *domain.Membership
		user uuid.UUID
		want domain.Permissions
	}{
		{
			name: "owner without row",
			user: owner,
			want: domain.Permissions{IsOwner: true, IsAdmin: true, CanManageColumns: true, CanManageMembers: true, CanManageTasks: true, Role: domain.RoleOwner},
		},
		{
			name: "admin",
			m:    &domain.Membership{UserID: admin, Role: domain.RoleAdmin},
			user: admin,
			want: domain.Permissions{IsAdmin: true, CanManageColumns: true, CanManageTasks: true, Role: domain.RoleAdmin},
		},
		{
			name: "member",
			m:    &domain.Membership{UserID: member, Role: domain.RoleMember},
			user: member,
			want: domain.Permissions{CanManageTasks: true, Role: domain.RoleMember},
		},
		{
			name: "stranger",
			user: stranger,
			want: domain.Permissions{},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := domain.PermissionsFor(board, tc.m, tc.user)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.want.Role != "", got.HasAccess())
		})
	}
}

type boardsFunc func(ctx context.Context, id uuid.UUID) (*domain.Board, error)

type fakeBoards struct {
	domain.BoardRepository
	get boardsFunc
}

func (f fakeBoards) GetByID(ctx context.Context, id uuid.UUID) (*domain.Board, error) {
	return f.get(ctx, id)
}

type fakeMembers struct {
	domain.MemberRepository
	get func(ctx context.Context, boardID, userID uuid.UUID) (*domain.Membership, error)
}

func (f fakeMembers) Get(ctx context.Context, boardID, userID uuid.UUID) (*domain.Membership, error) {
	return f.get(ctx, boardID, userID)
}

func TestResolvePermissions(t *testing.T) {
	t.Parallel()

	owner, member := uuid.New(), uuid.New()
	board := &domain.Board{ID: uuid.New(), OwnerID: owner}
	boards := fakeBoards{get: func(_ context.Context, id uuid.UUID) (*domain.Board, error) {
		if id == board.ID {
			return board, nil
		}
		return nil, domain.ErrNotFound
	}}
	members := fakeMembers{get: func(_ context.Context, _, userID uuid.UUID) (*domain.Membership, error) {
		if userID == member {
			return &domain.Membership{UserID: member, Role: domain.RoleMember}, nil
		}
		return nil, fmt.Errorf("memberRepo.Get: %w", domain.ErrNotFound)
	}}

	b, perms, err := domain.ResolvePermissions(t.Context(), boards, members, board.ID, member)
	require.NoError(t, err)
	assert.Same(t, board, b)
	assert.Equal(t, domain.RoleMember, perms.Role)

	_, perms, err = domain.ResolvePermissions(t.Context(), boards, members, board.ID, uuid.New())
	require.NoError(t, err)
	assert.False(t, perms.HasAccess())

	_, _, err = domain.ResolvePermissions(t.Context(), boards, members, uuid.New(), member)
	require.ErrorIs(t, err, domain.ErrNotFound)

	broken := fakeMembers{get: func(context.Context, uuid.UUID, uuid.UUID) (*domain.Membership, error) {
		return nil, errors.New("db down")
	}}
	_, _, err = domain.ResolvePermissions(t.Context(), boards, broken, board.ID, member)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
}

// ---------------------------------------------------------------------------
// Change events
// ---------------------------------------------------------------------------

func TestChangeEvent_Builders(t *testing.T) {
	t.Parallel()

	boardID, taskID, actor, col := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	ev := domain.NewChangeEvent(domain.EntityTask, domain.OpUpdate, boardID, taskID, actor)
	moved := ev.WithParent(col).WithRevision(9)

	assert.NotEqual(t, uuid.Nil, ev.ID)
	assert.False(t, ev.At.IsZero())
	assert.Equal(t, uuid.Nil, ev.ParentID, "builders return copies")
	assert.Equal(t, col, moved.ParentID)
	assert.Equal(t, int64(9), moved.Revision)
	assert.Equal(t, ev.ID, moved.ID)
}
