package domain

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

func (r Role) Valid() bool {
	return r == RoleOwner || r == RoleAdmin || r == RoleMember
}

type Membership struct {
	ID        uuid.UUID `json:"id"`
	BoardID   uuid.UUID `json:"board_id"`
	UserID    uuid.UUID `json:"user_id"`
	UserEmail string    `json:"user_email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Permissions is what the UI layer consults before offering an action.
type Permissions struct {
	IsOwner          bool `json:"is_owner"`
	IsAdmin          bool `json:"is_admin"`
	CanManageColumns bool `json:"can_manage_columns"`
	CanManageMembers bool `json:"can_manage_members"`
	CanManageTasks   bool `json:"can_manage_tasks"`
	Role             Role `json:"role,omitempty"`
}

// HasAccess reports whether the permissions grant any access at all.
func (p Permissions) HasAccess() bool {
	return p.Role != ""
}

// PermissionsFor derives the permissions of userID on board. m may be nil
// when the user holds no membership row.
func PermissionsFor(board *Board, m *Membership, userID uuid.UUID) Permissions {
	isOwner := board != nil && board.OwnerID == userID
	var role Role
	switch {
	case m != nil:
		role = m.Role
	case isOwner:
		role = RoleOwner
	default:
		return Permissions{}
	}
	isAdmin := isOwner || role == RoleAdmin
	return Permissions{
		IsOwner:          isOwner,
		IsAdmin:          isAdmin,
		CanManageColumns: isAdmin,
		CanManageMembers: isOwner,
		CanManageTasks:   true,
		Role:             role,
	}
}

// ResolvePermissions loads the board and the caller's membership and
// derives the caller's permissions. A missing board yields ErrNotFound; a
// caller without a membership gets empty permissions and no error.
func ResolvePermissions(ctx context.Context, boards BoardRepository, members MemberRepository, boardID, userID uuid.UUID) (*Board, Permissions, error) {
	board, err := boards.GetByID(ctx, boardID)
	if err != nil {
		return nil, Permissions{}, fmt.Errorf("domain.ResolvePermissions: %w", err)
	}

	m, err := members.Get(ctx, boardID, userID)
	switch {
	case errors.Is(err, ErrNotFound):
		m = nil
	case err != nil:
		return nil, Permissions{}, fmt.Errorf("domain.ResolvePermissions: %w", err)
	}

	return board, PermissionsFor(board, m, userID), nil
}

// NormalizeEmail trims and validates a bare address.
func NormalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email, "@") {
		return "", ErrInvalidEmail
	}
	return strings.ToLower(email), nil
}

type MemberRepository interface {
	Create(ctx context.Context, m *Membership) error
	GetByID(ctx context.Context, id uuid.UUID) (*Membership, error)
	Get(ctx context.Context, boardID, userID uuid.UUID) (*Membership, error)
	ListByBoard(ctx context.Context, boardID uuid.UUID) ([]*Membership, error)
	UpdateRole(ctx context.Context, id uuid.UUID, role Role) (*Membership, error)
	Delete(ctx context.Context, id uuid.UUID) (*Membership, error)
}
