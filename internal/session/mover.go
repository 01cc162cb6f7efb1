package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/taskflow/internal/cache"
	"github.com/gosuda/taskflow/internal/client"
	"github.com/gosuda/taskflow/internal/domain"
	"github.com/gosuda/taskflow/internal/kanban"
	"github.com/gosuda/taskflow/internal/notify"
)

var (
	errNoop           = errors.New("noop")
	errColumnsChanged = errors.New("move needs other columns")
)

// MoveTask drops activeID on target. The board is patched at once and the
// move persisted afterwards; if persisting fails the patch is rolled back and
// an error notice is shown. A drop that changes nothing returns the no-op
// move without any network call.
//
// Moves touching a column with a move still in flight wait for it and are
// computed against the board as that move left it.
func (s *BoardSession) MoveTask(ctx context.Context, activeID uuid.UUID, target kanban.DropTarget) (kanban.Move, error) {
	snap := s.Snapshot()
	if snap == nil {
		return kanban.Move{}, fmt.Errorf("session.MoveTask: %w", cache.ErrMissing)
	}
	m, err := kanban.ComputeReorder(snap, activeID, target)
	if err != nil {
		return kanban.Move{}, fmt.Errorf("session.MoveTask: %w", err)
	}
	if m.IsNoop() {
		return m, nil
	}

	key := cache.BoardKey(s.boardID)
	columns := m.Columns()
	for {
		ticket, err := s.gate.Acquire(ctx, columns...)
		if err != nil {
			return kanban.Move{}, fmt.Errorf("session.MoveTask: wait: %w", err)
		}

		var move kanban.Move
		prev, err := s.store.OptimisticFunc(key, ticket.Seq, func(cur any) (any, error) {
			snap, ok := cur.(*kanban.Snapshot)
			if !ok {
				return nil, cache.ErrMissing
			}
			mv, err := kanban.ComputeReorder(snap, activeID, target)
			if err != nil {
				return nil, err
			}
			if mv.IsNoop() {
				move = mv
				return nil, errNoop
			}
			if !ticket.Holds(mv.Columns()...) {
				columns = mv.Columns()
				return nil, errColumnsChanged
			}
			move = mv
			return kanban.Apply(snap, mv)
		})
		switch {
		case errors.Is(err, errColumnsChanged):
			ticket.Release()
			continue
		case errors.Is(err, errNoop):
			ticket.Release()
			return move, nil
		case err != nil:
			ticket.Release()
			return kanban.Move{}, fmt.Errorf("session.MoveTask: %w", err)
		}

		err = s.persistMove(ctx, key, ticket, prev, move)
		ticket.Release()
		return move, err
	}
}

func (s *BoardSession) persistMove(ctx context.Context, key cache.Key, ticket *Ticket, prev cache.Entry, m kanban.Move) error {
	res, err := s.api.MoveTask(ctx, m.TaskID, m.ToColumn, m.ToIndex)
	if err != nil {
		s.rollback(key, prev, ticket.Seq)
		log.Warn().Err(err).Stringer("move", m).Msg("session: move rejected")
		s.notify(ctx, notify.Error(s.boardID, "Failed to save move"))
		return fmt.Errorf("session.MoveTask: %w", err)
	}
	s.store.Confirm(key, ticket.Seq, res.Revision)
	return nil
}

// rollback restores prev, or reloads the board when a later write already
// replaced the guess.
func (s *BoardSession) rollback(key cache.Key, prev cache.Entry, seq uint64) {
	if !s.store.Rollback(key, prev, seq) {
		s.store.Invalidate(key)
	}
}

// AddTask creates a task at the end of its column. The task shows up at once
// under a temporary id and is replaced by the stored row once the board
// reloads.
func (s *BoardSession) AddTask(ctx context.Context, draft client.TaskDraft) (*domain.Task, error) {
	priority, err := domain.ParsePriority(string(draft.Priority))
	if err != nil {
		return nil, fmt.Errorf("session.AddTask: %w", err)
	}
	draft.Priority = priority
	temp, err := domain.NewTask(s.boardID, draft.ColumnID, s.userID, draft.Title, draft.Description, 0)
	if err != nil {
		return nil, fmt.Errorf("session.AddTask: %w", err)
	}
	temp.Priority = priority
	temp.DueDate = draft.DueDate
	temp.AssignedTo = draft.AssignedTo
	draft.Title = temp.Title

	ticket, err := s.gate.Acquire(ctx, draft.ColumnID)
	if err != nil {
		return nil, fmt.Errorf("session.AddTask: wait: %w", err)
	}
	defer ticket.Release()

	key := cache.BoardKey(s.boardID)
	prev, err := s.store.OptimisticFunc(key, ticket.Seq, func(cur any) (any, error) {
		snap, ok := cur.(*kanban.Snapshot)
		if !ok {
			return nil, cache.ErrMissing
		}
		col := snap.Column(draft.ColumnID)
		if col == nil {
			return nil, kanban.ErrColumnNotFound
		}
		temp.Position = len(col.Tasks)
		return kanban.InsertTask(snap, temp)
	})
	if err != nil {
		return nil, fmt.Errorf("session.AddTask: %w", err)
	}

	res, err := s.api.CreateTask(ctx, s.boardID, draft)
	if err != nil {
		s.rollback(key, prev, ticket.Seq)
		s.notify(ctx, notify.Error(s.boardID, "Failed to create task"))
		return nil, fmt.Errorf("session.AddTask: %w", err)
	}
	s.store.Confirm(key, ticket.Seq, res.Revision)
	s.store.Invalidate(key)
	return res.Task, nil
}
