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

type ColumnRepo struct {
	pool *pgxpool.Pool
}

func NewColumnRepo(pool *pgxpool.Pool) *ColumnRepo {
	return &ColumnRepo{pool: pool}
}

// Create appends c to its board; the stored position is the column count.
func (r *ColumnRepo) Create(ctx context.Context, c *domain.Column) (int64, error) {
	var rev int64
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		rev, err = bumpRevision(ctx, tx, c.BoardID)
		if err != nil {
			return err
		}
		return tx.QueryRow(ctx,
			`INSERT INTO columns (id, board_id, title, position, created_at)
			 VALUES ($1, $2, $3, (SELECT count(*) FROM columns WHERE board_id = $2), $4)
			 RETURNING position`,
			c.ID, c.BoardID, c.Title, c.CreatedAt,
		).Scan(&c.Position)
	})
	if err != nil {
		return 0, fmt.Errorf("columnRepo.Create: %w", mapWriteErr(err))
	}

	return rev, nil
}

func (r *ColumnRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Column, error) {
	var c domain.Column
	err := r.pool.QueryRow(ctx,
		`SELECT id, board_id, title, position, created_at FROM columns WHERE id = $1`, id,
	).Scan(&c.ID, &c.BoardID, &c.Title, &c.Position, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("columnRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("columnRepo.GetByID: %w", err)
	}

	return &c, nil
}

func (r *ColumnRepo) ListByBoard(ctx context.Context, boardID uuid.UUID) ([]*domain.Column, error) {
	cols, err := listColumns(ctx, r.pool, boardID)
	if err != nil {
		return nil, fmt.Errorf("columnRepo.ListByBoard: %w", err)
	}
	return cols, nil
}

func (r *ColumnRepo) Rename(ctx context.Context, id uuid.UUID, title string) (int64, error) {
	var rev int64
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		boardID, err := columnBoard(ctx, tx, id)
		if err != nil {
			return err
		}
		rev, err = bumpRevision(ctx, tx, boardID)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `UPDATE columns SET title = $1 WHERE id = $2`, title, id)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("columnRepo.Rename: %w", mapWriteErr(err))
	}

	return rev, nil
}

// Delete removes the column, cascading to its tasks, and closes the gap in
// the board's column positions.
func (r *ColumnRepo) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	var rev int64
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var boardID uuid.UUID
		var pos int
		err := tx.QueryRow(ctx, `SELECT board_id, position FROM columns WHERE id = $1`, id).Scan(&boardID, &pos)
		if err != nil {
			return err
		}
		rev, err = bumpRevision(ctx, tx, boardID)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `DELETE FROM columns WHERE id = $1`, id)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx,
			`UPDATE columns SET position = position - 1 WHERE board_id = $1 AND position > $2`,
			boardID, pos,
		)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("columnRepo.Delete: %w", mapWriteErr(err))
	}

	return rev, nil
}

// Reorder assigns positions following ids, which must name every column of
// the board exactly once.
func (r *ColumnRepo) Reorder(ctx context.Context, boardID uuid.UUID, ids []uuid.UUID) (int64, error) {
	var rev int64
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		rev, err = bumpRevision(ctx, tx, boardID)
		if err != nil {
			return err
		}
		tag, err := tx.Exec(ctx,
			`UPDATE columns c SET position = o.ord - 1
			 FROM unnest($2::uuid[]) WITH ORDINALITY AS o(id, ord)
			 WHERE c.id = o.id AND c.board_id = $1`,
			boardID, ids,
		)
		if err != nil {
			return err
		}
		var total int64
		err = tx.QueryRow(ctx, `SELECT count(*) FROM columns WHERE board_id = $1`, boardID).Scan(&total)
		if err != nil {
			return err
		}
		if tag.RowsAffected() != total || int64(len(ids)) != total {
			return domain.ErrInvalidPosition
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("columnRepo.Reorder: %w", mapWriteErr(err))
	}

	return rev, nil
}

func listColumns(ctx context.Context, db dbtx, boardID uuid.UUID) ([]*domain.Column, error) {
	rows, err := db.Query(ctx,
		`SELECT id, board_id, title, position, created_at FROM columns WHERE board_id = $1 ORDER BY position`,
		boardID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []*domain.Column
	for rows.Next() {
		var c domain.Column
		if err := rows.Scan(&c.ID, &c.BoardID, &c.Title, &c.Position, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		cols = append(cols, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	return cols, nil
}

func columnBoard(ctx context.Context, db dbtx, columnID uuid.UUID) (uuid.UUID, error) {
	var boardID uuid.UUID
	err := db.QueryRow(ctx, `SELECT board_id FROM columns WHERE id = $1`, columnID).Scan(&boardID)
	return boardID, err
}

// mapWriteErr translates driver errors into domain sentinels.
func mapWriteErr(err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return domain.ErrNotFound
	case isUniqueViolation(err):
		return domain.ErrDuplicateTitle
	default:
		return err
	}
}
