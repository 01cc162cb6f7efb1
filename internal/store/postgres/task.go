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

const taskColumns = `id, board_id, column_id, title, description, position, priority, due_date,
	assigned_to, created_by, is_archived, archived_at, created_at, updated_at`

type TaskRepo struct {
	pool *pgxpool.Pool
}

func NewTaskRepo(pool *pgxpool.Pool) *TaskRepo {
	return &TaskRepo{pool: pool}
}

// Create inserts t at t.Position, clamped to the column length.
func (r *TaskRepo) Create(ctx context.Context, t *domain.Task) (int64, error) {
	var rev int64
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		boardID, err := columnBoard(ctx, tx, t.ColumnID)
		if err != nil {
			return err
		}
		if boardID != t.BoardID {
			return domain.ErrNotFound
		}
		rev, err = bumpRevision(ctx, tx, t.BoardID)
		if err != nil {
			return err
		}
		t.Position, err = openSlot(ctx, tx, t.ColumnID, t.ID, t.Position)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO tasks (`+taskColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
			t.ID, t.BoardID, t.ColumnID, t.Title, t.Description, t.Position, t.Priority, t.DueDate,
			t.AssignedTo, t.CreatedBy, false, nil, t.CreatedAt, t.UpdatedAt,
		)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("taskRepo.Create: %w", mapWriteErr(err))
	}

	return rev, nil
}

func (r *TaskRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	t, err := getTask(ctx, r.pool, id, false)
	if err != nil {
		return nil, fmt.Errorf("taskRepo.GetByID: %w", mapWriteErr(err))
	}
	return t, nil
}

func (r *TaskRepo) ListArchived(ctx context.Context, boardID uuid.UUID) ([]*domain.Task, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE board_id = $1 AND is_archived
		 ORDER BY archived_at DESC
		 LIMIT 1000`,
		boardID,
	)
	if err != nil {
		return nil, fmt.Errorf("taskRepo.ListArchived: %w", err)
	}
	defer rows.Close()

	tasks, err := scanTasks(rows)
	if err != nil {
		return nil, fmt.Errorf("taskRepo.ListArchived: %w", err)
	}
	return tasks, nil
}

// Update writes the editable fields of t. Column and position only change
// through Move.
func (r *TaskRepo) Update(ctx context.Context, t *domain.Task) (int64, error) {
	var rev int64
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		rev, err = bumpRevision(ctx, tx, t.BoardID)
		if err != nil {
			return err
		}
		tag, err := tx.Exec(ctx,
			`UPDATE tasks SET title = $1, description = $2, priority = $3, due_date = $4,
			        assigned_to = $5, updated_at = now()
			 WHERE id = $6 AND board_id = $7`,
			t.Title, t.Description, t.Priority, t.DueDate, t.AssignedTo, t.ID, t.BoardID,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("taskRepo.Update: %w", mapWriteErr(err))
	}

	return rev, nil
}

// Move places the task at position in columnID. Both columns are
// renumbered densely and the board revision is bumped in the same
// transaction; the position is clamped to the target length.
func (r *TaskRepo) Move(ctx context.Context, id, columnID uuid.UUID, position int) (*domain.Task, int64, error) {
	if position < 0 {
		return nil, 0, fmt.Errorf("taskRepo.Move: %w", domain.ErrInvalidPosition)
	}

	var (
		moved *domain.Task
		rev   int64
	)
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		t, err := getTask(ctx, tx, id, false)
		if err != nil {
			return err
		}
		if err := lockBoard(ctx, tx, t.BoardID); err != nil {
			return err
		}
		// Re-read under the board lock.
		t, err = getTask(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if t.Archived {
			return domain.ErrConflict
		}
		target, err := columnBoard(ctx, tx, columnID)
		if err != nil {
			return err
		}
		if target != t.BoardID {
			return domain.ErrNotFound
		}

		_, err = tx.Exec(ctx,
			`UPDATE tasks SET position = position - 1
			 WHERE column_id = $1 AND NOT is_archived AND position > $2`,
			t.ColumnID, t.Position,
		)
		if err != nil {
			return err
		}
		position, err = openSlot(ctx, tx, columnID, t.ID, position)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx,
			`UPDATE tasks SET column_id = $1, position = $2, updated_at = now() WHERE id = $3`,
			columnID, position, id,
		)
		if err != nil {
			return err
		}
		if err := renumberTasks(ctx, tx, t.ColumnID); err != nil {
			return err
		}
		if columnID != t.ColumnID {
			if err := renumberTasks(ctx, tx, columnID); err != nil {
				return err
			}
		}

		rev, err = bumpRevision(ctx, tx, t.BoardID)
		if err != nil {
			return err
		}
		moved, err = getTask(ctx, tx, id, false)
		return err
	})
	if err != nil {
		return nil, 0, fmt.Errorf("taskRepo.Move: %w", mapWriteErr(err))
	}

	return moved, rev, nil
}

// SetArchived archives or restores a task. Archiving takes the task out of
// the column ordering; restoring appends it to the end of its column.
func (r *TaskRepo) SetArchived(ctx context.Context, id uuid.UUID, archived bool) (*domain.Task, int64, error) {
	var (
		out *domain.Task
		rev int64
	)
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		t, err := getTask(ctx, tx, id, false)
		if err != nil {
			return err
		}
		if err := lockBoard(ctx, tx, t.BoardID); err != nil {
			return err
		}
		t, err = getTask(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if t.Archived == archived {
			out = t
			var cur int64
			err = tx.QueryRow(ctx, `SELECT revision FROM boards WHERE id = $1`, t.BoardID).Scan(&cur)
			rev = cur
			return err
		}

		if archived {
			_, err = tx.Exec(ctx,
				`UPDATE tasks SET is_archived = true, archived_at = now(), updated_at = now() WHERE id = $1`, id)
		} else {
			_, err = tx.Exec(ctx,
				`UPDATE tasks SET is_archived = false, archived_at = NULL, updated_at = now(),
				        position = (SELECT count(*) FROM tasks WHERE column_id = $2 AND NOT is_archived)
				 WHERE id = $1`,
				id, t.ColumnID)
		}
		if err != nil {
			return err
		}
		if err := renumberTasks(ctx, tx, t.ColumnID); err != nil {
			return err
		}
		rev, err = bumpRevision(ctx, tx, t.BoardID)
		if err != nil {
			return err
		}
		out, err = getTask(ctx, tx, id, false)
		return err
	})
	if err != nil {
		return nil, 0, fmt.Errorf("taskRepo.SetArchived: %w", mapWriteErr(err))
	}

	return out, rev, nil
}

func (r *TaskRepo) Delete(ctx context.Context, id uuid.UUID) (*domain.Task, int64, error) {
	var (
		deleted *domain.Task
		rev     int64
	)
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		t, err := getTask(ctx, tx, id, false)
		if err != nil {
			return err
		}
		rev, err = bumpRevision(ctx, tx, t.BoardID)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
		if err != nil {
			return err
		}
		deleted = t
		if t.Archived {
			return nil
		}
		return renumberTasks(ctx, tx, t.ColumnID)
	})
	if err != nil {
		return nil, 0, fmt.Errorf("taskRepo.Delete: %w", mapWriteErr(err))
	}

	return deleted, rev, nil
}

// openSlot clamps position to the number of live tasks in columnID other
// than self and shifts the tasks at or after it down by one.
func openSlot(ctx context.Context, tx dbtx, columnID, self uuid.UUID, position int) (int, error) {
	var n int
	err := tx.QueryRow(ctx,
		`SELECT count(*) FROM tasks WHERE column_id = $1 AND NOT is_archived AND id <> $2`,
		columnID, self,
	).Scan(&n)
	if err != nil {
		return 0, err
	}
	position = min(position, n)

	_, err = tx.Exec(ctx,
		`UPDATE tasks SET position = position + 1
		 WHERE column_id = $1 AND NOT is_archived AND id <> $2 AND position >= $3`,
		columnID, self, position,
	)
	return position, err
}

func getTask(ctx context.Context, db dbtx, id uuid.UUID, forUpdate bool) (*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	t, err := scanTask(db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return t, err
}

func scanTask(row pgx.Row) (*domain.Task, error) {
	var t domain.Task
	err := row.Scan(
		&t.ID, &t.BoardID, &t.ColumnID, &t.Title, &t.Description, &t.Position, &t.Priority, &t.DueDate,
		&t.AssignedTo, &t.CreatedBy, &t.Archived, &t.ArchivedAt, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func scanTasks(rows pgx.Rows) ([]*domain.Task, error) {
	var tasks []*domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	return tasks, nil
}
