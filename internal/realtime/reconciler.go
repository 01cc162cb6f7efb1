package realtime

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/taskflow/internal/cache"
	"github.com/gosuda/taskflow/internal/domain"
	"github.com/gosuda/taskflow/internal/notify"
)

// Invalidator is the part of the query cache a reconciler drives.
type Invalidator interface {
	Invalidate(keys ...cache.Key)
	InvalidatePrefix(prefix cache.Key)
}

// Reconciler maps board change events to the smallest set of cache keys they
// can affect. It never patches data itself: invalidated keys are refetched.
type Reconciler struct {
	boardID      uuid.UUID
	userID       uuid.UUID
	cache        Invalidator
	notices      notify.Sink
	onAccessLost func(reason string)
}

// NewReconciler creates a reconciler for boardID as seen by userID. notices
// and onAccessLost may be nil.
func NewReconciler(boardID, userID uuid.UUID, c Invalidator, notices notify.Sink, onAccessLost func(reason string)) *Reconciler {
	return &Reconciler{
		boardID:      boardID,
		userID:       userID,
		cache:        c,
		notices:      notices,
		onAccessLost: onAccessLost,
	}
}

// Handle implements Handler. Events about entities that are not cached are
// harmless: invalidating an unknown key does nothing.
func (r *Reconciler) Handle(ctx context.Context, ev domain.ChangeEvent) {
	if ev.BoardID != r.boardID {
		log.Debug().Stringer("board_id", ev.BoardID).Msg("realtime: event for another board")
		return
	}

	switch ev.Entity {
	case domain.EntityTask:
		r.cache.Invalidate(cache.BoardKey(r.boardID), cache.ArchivedKey(r.boardID))
	case domain.EntityColumn:
		r.cache.Invalidate(cache.BoardKey(r.boardID))
	case domain.EntityComment:
		if ev.ParentID != uuid.Nil {
			r.cache.Invalidate(cache.CommentsKey(ev.ParentID))
		} else {
			r.cache.InvalidatePrefix(cache.CommentsPrefix)
		}
	case domain.EntityMembership:
		r.cache.Invalidate(cache.MembersKey(r.boardID), cache.AccessKey(r.boardID))
		if ev.Op == domain.OpDelete && ev.UserID == r.userID {
			r.accessLost("You were removed from the board")
			return
		}
	case domain.EntityBoard:
		if ev.Op == domain.OpDelete {
			r.accessLost("The board was deleted")
			return
		}
		r.cache.Invalidate(cache.BoardKey(r.boardID), cache.BoardsKey)
	case domain.EntityPresence:
		r.cache.Invalidate(cache.PresenceKey(r.boardID))
		return
	default:
		log.Debug().Str("entity", string(ev.Entity)).Msg("realtime: unknown entity")
		return
	}

	if ev.ActorID == r.userID {
		return
	}
	if text, level, ok := noticeFor(ev); ok && r.notices != nil {
		n := notify.Notice{Level: level, Text: text, BoardID: r.boardID}
		if err := r.notices.Notify(ctx, n); err != nil {
			log.Warn().Err(err).Msg("realtime: notice")
		}
	}
}

func (r *Reconciler) accessLost(reason string) {
	log.Info().Stringer("board_id", r.boardID).Str("reason", reason).Msg("realtime: board access lost")
	if r.onAccessLost != nil {
		r.onAccessLost(reason)
	}
}

func noticeFor(ev domain.ChangeEvent) (string, notify.Level, bool) {
	switch {
	case ev.Entity == domain.EntityTask && ev.Op == domain.OpInsert:
		return "New task added", notify.LevelSuccess, true
	case ev.Entity == domain.EntityTask && ev.Op == domain.OpDelete:
		return "Task deleted", notify.LevelInfo, true
	case ev.Entity == domain.EntityColumn && ev.Op == domain.OpInsert:
		return "New column added", notify.LevelSuccess, true
	case ev.Entity == domain.EntityColumn && ev.Op == domain.OpDelete:
		return "Column deleted", notify.LevelInfo, true
	case ev.Entity == domain.EntityMembership && ev.Op == domain.OpInsert:
		return "New member added", notify.LevelSuccess, true
	case ev.Entity == domain.EntityMembership && ev.Op == domain.OpDelete:
		return "Member removed", notify.LevelInfo, true
	default:
		return "", "", false
	}
}

// DashboardReconciler keeps the board list of one user current.
type DashboardReconciler struct {
	userID uuid.UUID
	cache  Invalidator
}

func NewDashboardReconciler(userID uuid.UUID, c Invalidator) *DashboardReconciler {
	return &DashboardReconciler{userID: userID, cache: c}
}

// Handle implements Handler.
func (r *DashboardReconciler) Handle(_ context.Context, ev domain.ChangeEvent) {
	switch ev.Entity {
	case domain.EntityBoard:
		r.cache.Invalidate(cache.BoardsKey)
		if ev.Op == domain.OpDelete {
			r.cache.Invalidate(cache.AccessKey(ev.BoardID))
		}
	case domain.EntityMembership:
		if ev.Op == domain.OpDelete || ev.UserID == r.userID {
			r.cache.Invalidate(cache.BoardsKey)
		}
	}
}
