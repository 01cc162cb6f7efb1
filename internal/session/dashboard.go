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
	"github.com/gosuda/taskflow/internal/realtime"
)

// DashboardAPI is the part of the REST client the board list calls.
type DashboardAPI interface {
	ListBoards(ctx context.Context) ([]*domain.Board, error)
}

var _ DashboardAPI = (*client.Client)(nil) //nolint:gochecknoglobals // compile-time check

type DashboardConfig struct {
	UserID uuid.UUID
	API    DashboardAPI
	// Dialer opens the user's change feed. Without one the list is only
	// reloaded on Refresh.
	Dialer         realtime.Dialer
	Cache          *cache.Store
	StaleTime      time.Duration
	ReconnectDelay time.Duration
	OnState        func(realtime.State)
}

// Dashboard keeps the board list of one user current through the user's
// change feed. It is safe for concurrent use.
type Dashboard struct {
	api      DashboardAPI
	store    *cache.Store
	ownStore bool
	sub      *realtime.Subscription
	cancel   context.CancelFunc
	once     sync.Once
}

// OpenDashboard loads the board list and subscribes to the user's feed.
func OpenDashboard(ctx context.Context, cfg DashboardConfig) (*Dashboard, error) {
	if cfg.API == nil {
		return nil, errors.New("session.OpenDashboard: API is required")
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
	d := &Dashboard{api: cfg.API, store: store, ownStore: own, cancel: cancel}

	store.Register(cache.BoardsKey, d.fetchBoards)
	if _, err := store.Fetch(ctx, cache.BoardsKey); err != nil {
		d.Close()
		return nil, fmt.Errorf("session.OpenDashboard: load boards: %w", err)
	}

	if cfg.Dialer != nil {
		rec := realtime.NewDashboardReconciler(cfg.UserID, store)
		d.sub = realtime.Subscribe(life, cfg.Dialer, rec.Handle, realtime.Options{
			ReconnectDelay: cfg.ReconnectDelay,
			OnState:        cfg.OnState,
			OnResume:       func() { store.Invalidate(cache.BoardsKey) },
			Name:           "user:" + cfg.UserID.String(),
		})
	}

	log.Debug().Stringer("user_id", cfg.UserID).Msg("session: dashboard opened")
	return d, nil
}

// Boards is the last loaded board list.
func (d *Dashboard) Boards() []*domain.Board {
	boards, _ := cache.Value[[]*domain.Board](d.store, cache.BoardsKey)
	return boards
}

// OnChange calls fn whenever the board list changes.
func (d *Dashboard) OnChange(fn func()) func() {
	return d.store.OnChange(func(key cache.Key, _ cache.Entry) {
		if key == cache.BoardsKey {
			fn()
		}
	})
}

// Refresh reloads the board list.
func (d *Dashboard) Refresh(ctx context.Context) error {
	d.store.Invalidate(cache.BoardsKey)
	if _, err := d.store.Fetch(ctx, cache.BoardsKey); err != nil {
		return fmt.Errorf("session.Dashboard.Refresh: %w", err)
	}
	return nil
}

func (d *Dashboard) ConnectionState() realtime.State {
	if d.sub == nil {
		return realtime.StateDisconnected
	}
	return d.sub.State()
}

func (d *Dashboard) Close() {
	d.once.Do(func() {
		d.cancel()
		if d.sub != nil {
			d.sub.Close()
		}
		if d.ownStore {
			d.store.Close()
			return
		}
		d.store.Unregister(cache.BoardsKey)
	})
}

func (d *Dashboard) fetchBoards(ctx context.Context) (any, int64, error) {
	boards, err := d.api.ListBoards(ctx)
	if err != nil {
		return nil, 0, err
	}
	return boards, 0, nil
}
