package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/taskflow/internal/domain"
)

//go:embed schema.sql
var schemaSQL string

// dbtx is satisfied by both the pool and a transaction.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	pool     *pgxpool.Pool
	users    *UserRepo
	boards   *BoardRepo
	columns  *ColumnRepo
	tasks    *TaskRepo
	comments *CommentRepo
	members  *MemberRepo
}

func New(ctx context.Context, dsn string, maxConns int32) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: parse config: %w", err)
	}

	cfg.MaxConns = maxConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: connect: %w", err)
	}

	err = pool.Ping(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres.New: ping: %w", err)
	}

	return &Store{
		pool:     pool,
		users:    NewUserRepo(pool),
		boards:   NewBoardRepo(pool),
		columns:  NewColumnRepo(pool),
		tasks:    NewTaskRepo(pool),
		comments: NewCommentRepo(pool),
		members:  NewMemberRepo(pool),
	}, nil
}

// Migrate applies the embedded schema. Every statement is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schemaSQL)
	if err != nil {
		return fmt.Errorf("postgres.Migrate: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Users() domain.UserRepository       { return s.users }
func (s *Store) Boards() domain.BoardRepository     { return s.boards }
func (s *Store) Columns() domain.ColumnRepository   { return s.columns }
func (s *Store) Tasks() domain.TaskRepository       { return s.tasks }
func (s *Store) Comments() domain.CommentRepository { return s.comments }
func (s *Store) Members() domain.MemberRepository   { return s.members }

// bumpRevision increments the board revision inside tx. The UPDATE also
// takes the board row lock, so concurrent mutations of one board serialize.
func bumpRevision(ctx context.Context, tx dbtx, boardID uuid.UUID) (int64, error) {
	var rev int64
	err := tx.QueryRow(ctx,
		`UPDATE boards SET revision = revision + 1, updated_at = now() WHERE id = $1 RETURNING revision`,
		boardID,
	).Scan(&rev)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return rev, nil
}

// lockBoard takes the board row lock without bumping the revision.
func lockBoard(ctx context.Context, tx dbtx, boardID uuid.UUID) error {
	var id uuid.UUID
	err := tx.QueryRow(ctx, `SELECT id FROM boards WHERE id = $1 FOR UPDATE`, boardID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

// renumberTasks rewrites the positions of the live tasks in columnID as
// 0..n-1, keeping their relative order.
func renumberTasks(ctx context.Context, tx dbtx, columnID uuid.UUID) error {
	_, err := tx.Exec(ctx,
		`UPDATE tasks t SET position = r.pos
		 FROM (SELECT id, row_number() OVER (ORDER BY position, created_at, id) - 1 AS pos
		       FROM tasks WHERE column_id = $1 AND NOT is_archived) r
		 WHERE t.id = r.id AND t.position <> r.pos`,
		columnID,
	)
	return err
}

// isUniqueViolation reports a unique_violation from Postgres.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
