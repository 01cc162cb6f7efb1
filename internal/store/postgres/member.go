package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/taskflow/internal/domain"
)

const memberSelect = `SELECT m.id, m.board_id, m.user_id, u.email, m.role, m.created_at
	FROM board_members m JOIN users u ON u.id = m.user_id`

type MemberRepo struct {
	pool *pgxpool.Pool
}

func NewMemberRepo(pool *pgxpool.Pool) *MemberRepo {
	return &MemberRepo{pool: pool}
}

func (r *MemberRepo) Create(ctx context.Context, m *domain.Membership) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO board_members (id, board_id, user_id, role, created_at) VALUES ($1, $2, $3, $4, $5)`,
		m.ID, m.BoardID, m.UserID, m.Role, m.CreatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("memberRepo.Create: %w", domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("memberRepo.Create: %w", err)
	}

	return nil
}

func (r *MemberRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Membership, error) {
	m, err := scanMember(r.pool.QueryRow(ctx, memberSelect+` WHERE m.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("memberRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("memberRepo.GetByID: %w", err)
	}

	return m, nil
}

func (r *MemberRepo) Get(ctx context.Context, boardID, userID uuid.UUID) (*domain.Membership, error) {
	m, err := scanMember(r.pool.QueryRow(ctx, memberSelect+` WHERE m.board_id = $1 AND m.user_id = $2`, boardID, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("memberRepo.Get: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("memberRepo.Get: %w", err)
	}

	return m, nil
}

func (r *MemberRepo) ListByBoard(ctx context.Context, boardID uuid.UUID) ([]*domain.Membership, error) {
	rows, err := r.pool.Query(ctx, memberSelect+` WHERE m.board_id = $1 ORDER BY m.created_at, m.id`, boardID)
	if err != nil {
		return nil, fmt.Errorf("memberRepo.ListByBoard: %w", err)
	}
	defer rows.Close()

	var members []*domain.Membership
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("memberRepo.ListByBoard: scan: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("memberRepo.ListByBoard: rows: %w", err)
	}

	return members, nil
}

func (r *MemberRepo) UpdateRole(ctx context.Context, id uuid.UUID, role domain.Role) (*domain.Membership, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE board_members SET role = $1 WHERE id = $2`, role, id)
	if err != nil {
		return nil, fmt.Errorf("memberRepo.UpdateRole: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("memberRepo.UpdateRole: %w", domain.ErrNotFound)
	}

	return r.GetByID(ctx, id)
}

// Delete removes the membership and returns the removed row.
func (r *MemberRepo) Delete(ctx context.Context, id uuid.UUID) (*domain.Membership, error) {
	m, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("memberRepo.Delete: %w", err)
	}
	_, err = r.pool.Exec(ctx, `DELETE FROM board_members WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("memberRepo.Delete: %w", err)
	}

	return m, nil
}

func scanMember(row pgx.Row) (*domain.Membership, error) {
	var m domain.Membership
	err := row.Scan(&m.ID, &m.BoardID, &m.UserID, &m.UserEmail, &m.Role, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}
