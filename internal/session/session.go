// Package session is the board view's controller. A BoardSession owns the
// cached snapshot of one board, applies drag-and-drop moves optimistically,
// and keeps the snapshot current through the change feed.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/taskflow/internal/cache"
	"github.com/gosuda/taskflow/internal/client"
	"github.com/gosuda/taskflow/internal/domain"
	"github.com/gosuda/taskflow/internal/kanban"
	"github.com/gosuda/taskflow/internal/notify"
	"github.com/gosuda/taskflow/internal/realtime"
)

// DefaultStaleTime is how long fetched data is served without a reload.
const DefaultStaleTime = 30 * time.Second

var (
	// ErrAccessLost ends a session whose board was deleted or whose user was
	// removed from it. The board view should navigate away.
	ErrAccessLost = errors.New("session: board access lost")
	ErrClosed     = errors.New("session: closed")
)

// API is the part of the REST client a session calls.
type API interface {
	GetBoard(ctx context.Context, boardID uuid.UUID) (*domain.BoardContent, error)
	CheckAccess(ctx context.Context, boardID uuid.UUID) (domain.Permissions, error)
	MoveTask(ctx context.Context, taskID, columnID uuid.UUID, position int) (*client.TaskResult, error)
	CreateTask(ctx context.Context, boardID uuid.UUID, draft client.TaskDraft) (*client.TaskResult, error)
	CreateColumn(ctx context.Context, boardID uuid.UUID, title string) (*client.ColumnResult, error)
	RenameColumn(ctx context.Context, columnID uuid.UUID, title string) (*client.ColumnResult, error)
	ListArchived(ctx context.Context, boardID uuid.UUID) ([]*domain.Task, error)
	ListComments(ctx context.Context, taskID uuid.UUID) ([]*domain.Comment, error)
	AddComment(ctx context.Context, taskID uuid.UUID, content string) (*domain.Comment, error)
	ListMembers(ctx context.Context, boardID uuid.UUID) ([]*domain.Membership, error)
	InviteMember(ctx context.Context, boardID uuid.UUID, email string, role domain.Role) (*domain.Membership, error)
	Online(ctx context.Context, boardID uuid.UUID) ([]domain.Viewer, error)
}

var _ API = (*client.Client)(nil) //nolint:gochecknoglobals // compile-time check

type Config struct {
	BoardID uuid.UUID
	UserID  uuid.UUID
	API     API
	// Dialer opens the board's change feed. Without one the session only
	// sees its own changes.
	Dialer realtime.Dialer
	// Cache may be shared between sessions. A private store is created when
	// nil.
	Cache          *cache.Store
	Notices        notify.Sink
	StaleTime      time.Duration
	ReconnectDelay time.Duration
	OnState        func(realtime.State)
}

// BoardSession is safe for concurrent use.
type BoardSession struct {
	boardID  uuid.UUID
	userID   uuid.UUID
	api      API
	store    *cache.Store
	ownStore bool
	gate     *Gate
	notices  notify.Sink

	life   context.Context
	cancel context.CancelFunc
	sub    *realtime.Subscription

	mu        sync.Mutex
	keys      []cache.Key
	err       error
	done      chan struct{}
	endOnce   sync.Once
	closeOnce sync.Once
}

// Open checks that the user may see the board, loads it, and subscribes to
// its change feed. A board that is missing or not shared with the user
// yields ErrAccessLost.
func Open(ctx context.Context, cfg Config) (*BoardSession, error) {
	if cfg.API == nil {
		return nil, errors.New("session.Open: API is required")
	}
	store, own := cfg.Cache, false
	if store == nil {
		staleTime := cfg.StaleTime
		if staleTime <= 0 {
			staleTime = DefaultStaleTime
		}
		store, own = cache.New(staleTime), true
	}

	life, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &BoardSession{
		boardID:  cfg.BoardID,
		userID:   cfg.UserID,
		api:      cfg.API,
		store:    store,
		ownStore: own,
		gate:     NewGate(),
		notices:  cfg.Notices,
		life:     life,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	perms, err := cfg.API.CheckAccess(ctx, cfg.BoardID)
	if err == nil && !perms.HasAccess() {
		err = domain.ErrForbidden
	}
	if err != nil {
		s.Close()
		if isAccessError(err) {
			s.notify(ctx, notify.Error(cfg.BoardID, "Board not found"))
			return nil, fmt.Errorf("session.Open: %w: %w", ErrAccessLost, err)
		}
		return nil, fmt.Errorf("session.Open: check access: %w", err)
	}

	s.register(cache.AccessKey(s.boardID), s.fetchAccess)
	store.Set(cache.AccessKey(s.boardID), perms, 0)
	s.register(cache.BoardKey(s.boardID), s.fetchBoard)
	s.register(cache.MembersKey(s.boardID), s.fetchMembers)
	s.register(cache.ArchivedKey(s.boardID), s.fetchArchived)
	s.register(cache.PresenceKey(s.boardID), s.fetchPresence)

	if _, err := store.Fetch(ctx, cache.BoardKey(s.boardID)); err != nil {
		lost := s.Err() == ErrAccessLost
		s.Close()
		if lost {
			return nil, fmt.Errorf("session.Open: %w", ErrAccessLost)
		}
		return nil, fmt.Errorf("session.Open: load board: %w", err)
	}

	if cfg.Dialer != nil {
		rec := realtime.NewReconciler(s.boardID, s.userID, store, cfg.Notices, s.lose)
		s.sub = realtime.Subscribe(life, s.checkedDialer(cfg.Dialer), rec.Handle, realtime.Options{
			ReconnectDelay: cfg.ReconnectDelay,
			OnState:        s.watchState(cfg.OnState),
			OnResume:       s.resync,
			Name:           "board:" + s.boardID.String(),
		})
	}

	log.Debug().Stringer("board_id", s.boardID).Msg("session: opened")
	return s, nil
}

func (s *BoardSession) BoardID() uuid.UUID { return s.boardID }

// Snapshot is the board as currently shown, optimistic guesses included.
func (s *BoardSession) Snapshot() *kanban.Snapshot {
	snap, _ := cache.Value[*kanban.Snapshot](s.store, cache.BoardKey(s.boardID))
	return snap
}

// Saving reports whether an optimistic change to the board is still waiting
// for the server.
func (s *BoardSession) Saving() bool {
	e, ok := s.store.Get(cache.BoardKey(s.boardID))
	return ok && !e.Confirmed()
}

// Permissions is the last known access level of the user.
func (s *BoardSession) Permissions() domain.Permissions {
	p, _ := cache.Value[domain.Permissions](s.store, cache.AccessKey(s.boardID))
	return p
}

// Stats summarises the current snapshot.
func (s *BoardSession) Stats(now time.Time) kanban.Stats {
	snap := s.Snapshot()
	if snap == nil {
		return kanban.Statistics(kanban.NewSnapshot(nil), now)
	}
	return kanban.Statistics(snap, now)
}

// Viewers lists who has the board open, this user included. It stays empty
// until the change feed is live.
func (s *BoardSession) Viewers() []domain.Viewer {
	v, _ := cache.Value[[]domain.Viewer](s.store, cache.PresenceKey(s.boardID))
	return v
}

// ConnectionState is the state of the change feed.
func (s *BoardSession) ConnectionState() realtime.State {
	if s.sub == nil {
		return realtime.StateDisconnected
	}
	return s.sub.State()
}

// OnChange calls fn whenever data owned by this session changes.
func (s *BoardSession) OnChange(fn func(key cache.Key)) func() {
	return s.store.OnChange(func(key cache.Key, _ cache.Entry) {
		if s.owns(key) {
			fn(key)
		}
	})
}

// Refresh reloads the board.
func (s *BoardSession) Refresh(ctx context.Context) error {
	key := cache.BoardKey(s.boardID)
	s.store.Invalidate(key)
	if _, err := s.store.Fetch(ctx, key); err != nil {
		return fmt.Errorf("session.Refresh: %w", err)
	}
	return nil
}

// Done is closed when the session ends, by Close or by losing access.
func (s *BoardSession) Done() <-chan struct{} {
	return s.done
}

// Err is nil while the session is open, then ErrAccessLost or ErrClosed.
func (s *BoardSession) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close unsubscribes and drops the session's cache keys.
func (s *BoardSession) Close() {
	s.closeOnce.Do(func() {
		s.end(ErrClosed)
		s.cancel()
		if s.sub != nil {
			s.sub.Close()
		}
		if s.ownStore {
			s.store.Close()
			return
		}
		s.mu.Lock()
		keys := s.keys
		s.keys = nil
		s.mu.Unlock()
		for _, k := range keys {
			s.store.Unregister(k)
		}
	})
}

func (s *BoardSession) end(err error) bool {
	ended := false
	s.endOnce.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.done)
		ended = true
	})
	return ended
}

// lose ends the session because the board is gone for this user. It is the
// single exit for every not-found or removed-from-board condition.
func (s *BoardSession) lose(reason string) {
	if !s.end(ErrAccessLost) {
		return
	}
	log.Info().Stringer("board_id", s.boardID).Str("reason", reason).Msg("session: access lost")
	s.notify(s.life, notify.Error(s.boardID, reason))
	s.cancel()
}

// resync reloads everything the feed would have kept current. Changes made
// while the feed was down arrive with no event.
func (s *BoardSession) resync() {
	log.Debug().Stringer("board_id", s.boardID).Msg("session: resync after reconnect")
	s.store.Invalidate(
		cache.AccessKey(s.boardID),
		cache.BoardKey(s.boardID),
		cache.MembersKey(s.boardID),
		cache.ArchivedKey(s.boardID),
	)
}

// watchState reloads the viewer list whenever the feed comes up, since the
// server records this session as a viewer only once it is subscribed.
func (s *BoardSession) watchState(next func(realtime.State)) func(realtime.State) {
	return func(st realtime.State) {
		if st == realtime.StateLive {
			s.store.Invalidate(cache.PresenceKey(s.boardID))
		}
		if next != nil {
			next(st)
		}
	}
}

// checkedDialer rechecks access when the feed refuses the board. A revoked or
// deleted board then ends the session instead of redialling forever.
func (s *BoardSession) checkedDialer(d realtime.Dialer) realtime.Dialer {
	return realtime.DialerFunc(func(ctx context.Context) (realtime.Stream, error) {
		stream, err := d.Dial(ctx)
		if err != nil && isAccessError(err) {
			s.store.Invalidate(cache.AccessKey(s.boardID))
		}
		return stream, err
	})
}

func (s *BoardSession) notify(ctx context.Context, n notify.Notice) {
	if s.notices == nil {
		return
	}
	if err := s.notices.Notify(ctx, n); err != nil {
		log.Warn().Err(err).Msg("session: notice")
	}
}

func (s *BoardSession) register(key cache.Key, fetch cache.Fetcher) {
	s.mu.Lock()
	s.keys = append(s.keys, key)
	s.mu.Unlock()
	s.store.Register(key, fetch)
}

func (s *BoardSession) owns(key cache.Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.keys {
		if k == key {
			return true
		}
	}
	return false
}

func (s *BoardSession) fetchBoard(ctx context.Context) (any, int64, error) {
	content, err := s.api.GetBoard(ctx, s.boardID)
	if err != nil {
		if isAccessError(err) {
			s.lose("Board not found")
		}
		return nil, 0, err
	}
	snap := kanban.NewSnapshot(content)
	return snap, snap.Revision(), nil
}

func (s *BoardSession) fetchAccess(ctx context.Context) (any, int64, error) {
	perms, err := s.api.CheckAccess(ctx, s.boardID)
	if err == nil && !perms.HasAccess() {
		err = domain.ErrForbidden
	}
	if err != nil {
		if isAccessError(err) {
			s.lose("You no longer have access to this board")
		}
		return nil, 0, err
	}
	return perms, 0, nil
}

func (s *BoardSession) fetchMembers(ctx context.Context) (any, int64, error) {
	members, err := s.api.ListMembers(ctx, s.boardID)
	if err != nil {
		return nil, 0, err
	}
	return members, 0, nil
}

func (s *BoardSession) fetchArchived(ctx context.Context) (any, int64, error) {
	tasks, err := s.api.ListArchived(ctx, s.boardID)
	if err != nil {
		return nil, 0, err
	}
	return tasks, 0, nil
}

func (s *BoardSession) fetchPresence(ctx context.Context) (any, int64, error) {
	viewers, err := s.api.Online(ctx, s.boardID)
	if err != nil {
		return nil, 0, err
	}
	return viewers, 0, nil
}

func isAccessError(err error) bool {
	return errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrForbidden)
}
