package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/taskflow/internal/domain"
)

type InviteMemberInput struct {
	BoardID uuid.UUID `path:"boardID" doc:"Board ID"`
	Body    struct {
		Email string `json:"email" format:"email" doc:"Email of a registered user"`
		Role  string `json:"role,omitempty" enum:"admin,member" doc:"Role, member when omitted"`
	}
}

type UpdateMemberInput struct {
	MemberID uuid.UUID `path:"memberID" doc:"Membership ID"`
	Body     struct {
		Role string `json:"role" enum:"admin,member" doc:"New role"`
	}
}

type MemberPathInput struct {
	MemberID uuid.UUID `path:"memberID" doc:"Membership ID"`
}

type MemberOutput struct {
	Body *domain.Membership
}

type ListMembersOutput struct {
	Body []*domain.Membership
}

// parseInviteRole maps "" to member. Ownership is never granted by invite.
func parseInviteRole(s string) (domain.Role, error) {
	if s == "" {
		return domain.RoleMember, nil
	}
	r := domain.Role(s)
	if !r.Valid() || r == domain.RoleOwner {
		return "", domain.ErrInvalidRole
	}
	return r, nil
}

func memberEvent(op domain.ChangeOp, m *domain.Membership, actor uuid.UUID) domain.ChangeEvent {
	return domain.NewChangeEvent(domain.EntityMembership, op, m.BoardID, m.ID, actor).WithUser(m.UserID)
}

// memberAccess loads a membership and the caller's standing on its board.
func memberAccess(ctx context.Context, store DataStore, memberID uuid.UUID) (*domain.Membership, *caller, error) {
	m, err := store.Members().GetByID(ctx, memberID)
	if err != nil {
		return nil, nil, mapErr(err, "member")
	}
	c, err := boardAccess(ctx, store, m.BoardID)
	if err != nil {
		return nil, nil, err
	}
	return m, c, nil
}

func RegisterMemberRoutes(api huma.API, store DataStore, pub Publisher) {
	huma.Register(api, huma.Operation{
		OperationID: "list-members",
		Method:      http.MethodGet,
		Path:        "/boards/{boardID}/members",
		Summary:     "List board members",
		Tags:        []string{"Members"},
	}, func(ctx context.Context, input *BoardPathInput) (*ListMembersOutput, error) {
		if _, err := boardAccess(ctx, store, input.BoardID); err != nil {
			return nil, err
		}

		members, err := store.Members().ListByBoard(ctx, input.BoardID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list members", err)
		}
		if members == nil {
			members = make([]*domain.Membership, 0)
		}

		return &ListMembersOutput{Body: members}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "invite-member",
		Method:        http.MethodPost,
		Path:          "/boards/{boardID}/members",
		Summary:       "Add a registered user to a board",
		Tags:          []string{"Members"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *InviteMemberInput) (*MemberOutput, error) {
		c, err := boardAccess(ctx, store, input.BoardID)
		if err != nil {
			return nil, err
		}
		if !c.Perms.CanManageMembers {
			return nil, huma.Error403Forbidden("insufficient permissions")
		}

		role, err := parseInviteRole(input.Body.Role)
		if err != nil {
			return nil, mapErr(err, "member")
		}
		email, err := domain.NormalizeEmail(input.Body.Email)
		if err != nil {
			return nil, mapErr(err, "member")
		}
		user, err := store.Users().GetByEmail(ctx, email)
		if err != nil {
			return nil, mapErr(err, "user")
		}

		m := &domain.Membership{
			ID:        uuid.New(),
			BoardID:   input.BoardID,
			UserID:    user.ID,
			UserEmail: user.Email,
			Role:      role,
		}
		if err := store.Members().Create(ctx, m); err != nil {
			return nil, mapErr(err, "member")
		}

		publish(ctx, pub, memberEvent(domain.OpInsert, m, c.UserID), m.UserID)

		return &MemberOutput{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-member",
		Method:      http.MethodPatch,
		Path:        "/members/{memberID}",
		Summary:     "Change a member's role",
		Tags:        []string{"Members"},
	}, func(ctx context.Context, input *UpdateMemberInput) (*MemberOutput, error) {
		m, c, err := memberAccess(ctx, store, input.MemberID)
		if err != nil {
			return nil, err
		}
		if !c.Perms.CanManageMembers {
			return nil, huma.Error403Forbidden("insufficient permissions")
		}
		if m.Role == domain.RoleOwner {
			return nil, huma.Error409Conflict("the owner's role cannot change")
		}

		role, err := parseInviteRole(input.Body.Role)
		if err != nil {
			return nil, mapErr(err, "member")
		}
		updated, err := store.Members().UpdateRole(ctx, m.ID, role)
		if err != nil {
			return nil, mapErr(err, "member")
		}

		publish(ctx, pub, memberEvent(domain.OpUpdate, updated, c.UserID), updated.UserID)

		return &MemberOutput{Body: updated}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "remove-member",
		Method:      http.MethodDelete,
		Path:        "/members/{memberID}",
		Summary:     "Remove a member or leave a board",
		Description: "The owner may remove anyone but themselves; any member may remove their own membership.",
		Tags:        []string{"Members"},
	}, func(ctx context.Context, input *MemberPathInput) (*struct{}, error) {
		m, c, err := memberAccess(ctx, store, input.MemberID)
		if err != nil {
			return nil, err
		}
		if m.Role == domain.RoleOwner {
			return nil, huma.Error409Conflict("the owner cannot leave their board")
		}
		if m.UserID != c.UserID && !c.Perms.CanManageMembers {
			return nil, huma.Error403Forbidden("insufficient permissions")
		}

		removed, err := store.Members().Delete(ctx, m.ID)
		if err != nil {
			return nil, mapErr(err, "member")
		}

		publish(ctx, pub, memberEvent(domain.OpDelete, removed, c.UserID), removed.UserID)

		return nil, nil
	})
}
