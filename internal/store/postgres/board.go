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

const boardColumns = `id, title, description, background_color, owner_id, revision, created_at, updated_at`

type BoardRepo struct {
	pool *pgxpool.Pool
}

func NewBoardRepo(pool *pgxpool.Pool) *BoardRepo {
	return &BoardRepo{pool: pool}
}

// Create inserts the board, its owner membership and its initial columns in
// one transaction.
func (r *BoardRepo) Create(ctx context.Context, b *domain.Board, columns []*domain.Column) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO boards (`+boardColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			b.ID, b.Title, b.Description, b.BackgroundColor, b.OwnerID, b.Revision, b.CreatedAt, b.UpdatedAt,
		)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO board_members (id, board_id, user_id, role, created_at) VALUES ($1, $2, $3, $4, $5)`,
			uuid.New(), b.ID, b.OwnerID, domain.RoleOwner, b.CreatedAt,
		)
		if err != nil {
			return err
		}

		for _, c := range columns {
			_, err = tx.Exec(ctx,
				`INSERT INTO columns (id, board_id, title, position, created_at) VALUES ($1, $2, $3, $4, $5)`,
				c.ID, c.BoardID, c.Title, c.Position, c.CreatedAt,
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("boardRepo.Create: %w", err)
	}

	return nil
}

func (r *BoardRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Board, error) {
	b, err := scanBoard(r.pool.QueryRow(ctx, `SELECT `+boardColumns+` FROM boards WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("boardRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("boardRepo.GetByID: %w", err)
	}

	return b, nil
}

// ListForUser returns the boards userID is a member of, most recent first.
func (r *BoardRepo) ListForUser(ctx context.Context, userID uuid.UUID) ([]*domain.Board, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT b.id, b.title, b.description, b.background_color, b.owner_id, b.revision, b.created_at, b.updated_at
		 FROM boards b JOIN board_members m ON m.board_id = b.id
		 WHERE m.user_id = $1
		 ORDER BY b.updated_at DESC
		 LIMIT 500`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("boardRepo.ListForUser: %w", err)
	}
	defer rows.Close()

	var boards []*domain.Board
	for rows.Next() {
		b, err := scanBoard(rows)
		if err != nil {
			return nil, fmt.Errorf("boardRepo.ListForUser: scan: %w", err)
		}
		boards = append(boards, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("boardRepo.ListForUser: rows: %w", err)
	}

	return boards, nil
}

// GetContent reads the board, its columns and all its tasks in one
// repeatable-read snapshot so Revision matches the rows returned.
func (r *BoardRepo) GetContent(ctx context.Context, id uuid.UUID) (*domain.BoardContent, error) {
	var content domain.BoardContent

	err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}, func(tx pgx.Tx) error {
		b, err := scanBoard(tx.QueryRow(ctx, `SELECT `+boardColumns+` FROM boards WHERE id = $1`, id))
		if err != nil {
			return err
		}
		content.Board = b

		content.Columns, err = listColumns(ctx, tx, id)
		if err != nil {
			return err
		}

		rows, err := tx.Query(ctx,
			`SELECT `+taskColumns+` FROM tasks WHERE board_id = $1 ORDER BY column_id, is_archived, position`, id)
		if err != nil {
			return err
		}
		defer rows.Close()

		content.Tasks, err = scanTasks(rows)
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("boardRepo.GetContent: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("boardRepo.GetContent: %w", err)
	}

	return &content, nil
}

// Update writes title, description and color and returns the new revision.
func (r *BoardRepo) Update(ctx context.Context, b *domain.Board) (int64, error) {
	var rev int64
	err := r.pool.QueryRow(ctx,
		`UPDATE boards SET title = $1, description = $2, background_color = $3,
		        revision = revision + 1, updated_at = now()
		 WHERE id = $4 RETURNING revision`,
		b.Title, b.Description, b.BackgroundColor, b.ID,
	).Scan(&rev)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("boardRepo.Update: %w", domain.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("boardRepo.Update: %w", err)
	}

	return rev, nil
}

func (r *BoardRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM boards WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("boardRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("boardRepo.Delete: %w", domain.ErrNotFound)
	}

	return nil
}

func scanBoard(row pgx.Row) (*domain.Board, error) {
	var b domain.Board
	err := row.Scan(&b.ID, &b.Title, &b.Description, &b.BackgroundColor, &b.OwnerID, &b.Revision, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
