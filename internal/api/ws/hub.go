package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/taskflow/internal/domain"
	"github.com/gosuda/taskflow/internal/server/middleware"
	redisstore "github.com/gosuda/taskflow/internal/store/redis"
)

const (
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
)

// Broker delivers change events published on a channel and tracks who has
// a board open. *redis.PubSub satisfies this interface.
type Broker interface {
	SubscribeChanges(ctx context.Context, channel string) (<-chan domain.ChangeEvent, func(), error)
	PublishChange(ctx context.Context, ev domain.ChangeEvent, users ...uuid.UUID) error
	domain.PresenceTracker
}

// feed describes one websocket subscription.
type feed struct {
	channel string
	// last returns a non-empty close reason for an event that ends the feed.
	last func(domain.ChangeEvent) string
	// viewer is set on board feeds and makes the caller show up as online.
	boardID uuid.UUID
	viewer  *domain.Viewer
}

// AccessStore is the subset of the data store needed to authorize a board
// subscription.
type AccessStore interface {
	Boards() domain.BoardRepository
	Members() domain.MemberRepository
}

// Hub serves the websocket change feeds backed by Redis pub/sub.
type Hub struct {
	broker         Broker
	store          AccessStore
	originPatterns []string
}

// NewHub creates a new WebSocket hub. originPatterns lists the hosts allowed
// to open cross-origin connections.
func NewHub(broker Broker, store AccessStore, originPatterns []string) *Hub {
	return &Hub{broker: broker, store: store, originPatterns: originPatterns}
}

// ServeBoard streams the change feed of one board. The caller must hold a
// membership on the board. The connection is closed once the board is
// deleted or the caller's membership is removed.
func (h *Hub) ServeBoard(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	boardID, err := uuid.Parse(chi.URLParam(r, "boardID"))
	if err != nil {
		http.Error(w, `{"error":"invalid board id"}`, http.StatusBadRequest)
		return
	}

	_, perms, err := domain.ResolvePermissions(r.Context(), h.store.Boards(), h.store.Members(), boardID, userID)
	switch {
	case errors.Is(err, domain.ErrNotFound), err == nil && !perms.HasAccess():
		http.Error(w, `{"error":"board not found"}`, http.StatusNotFound)
		return
	case err != nil:
		log.Error().Err(err).Str("board_id", boardID.String()).Msg("ws: resolve permissions")
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	email, _ := middleware.EmailFromContext(r.Context())
	h.serve(w, r, feed{
		channel: redisstore.BoardChannel(boardID),
		last: func(ev domain.ChangeEvent) string {
			switch {
			case ev.Entity == domain.EntityBoard && ev.Op == domain.OpDelete && ev.BoardID == boardID:
				return "board deleted"
			case ev.Entity == domain.EntityMembership && ev.Op == domain.OpDelete && ev.UserID == userID:
				return "access revoked"
			default:
				return ""
			}
		},
		boardID: boardID,
		viewer:  &domain.Viewer{UserID: userID, Email: email},
	})
}

// ServeUser streams board and membership changes that concern the caller.
func (h *Hub) ServeUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	h.serve(w, r, feed{channel: redisstore.UserChannel(userID)})
}

// serve upgrades the connection, acknowledges the subscription and forwards
// events until the client leaves, the feed ends or f.last returns a close
// reason for an event it has just forwarded.
func (h *Hub) serve(w http.ResponseWriter, r *http.Request, f feed) {
	channel := f.channel
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.originPatterns})
	if err != nil {
		log.Error().Err(err).Msg("websocket accept")
		return
	}
	defer conn.CloseNow()

	// The feed is one-way; CloseRead handles control frames and cancels ctx
	// when the peer goes away.
	ctx := conn.CloseRead(r.Context())

	events, cleanup, err := h.broker.SubscribeChanges(ctx, channel)
	if err != nil {
		log.Error().Err(err).Str("channel", channel).Msg("websocket subscribe")
		_ = conn.Close(websocket.StatusInternalError, "subscribe failed")
		return
	}
	defer cleanup()

	if err := write(ctx, conn, domain.FeedAck{Type: domain.FeedAckType, Channel: channel}); err != nil {
		log.Debug().Err(err).Msg("websocket write ack")
		return
	}

	if f.viewer != nil {
		h.join(ctx, f.boardID, *f.viewer)
		defer h.leave(ctx, f.boardID, f.viewer.UserID)
	}

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "connection closed")
			return
		case <-ping.C:
			pctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				log.Debug().Err(err).Str("channel", channel).Msg("websocket ping")
				return
			}
			if f.viewer != nil {
				if err := h.broker.Touch(ctx, f.boardID); err != nil {
					log.Warn().Err(err).Stringer("board_id", f.boardID).Msg("presence touch")
				}
			}
		case ev, evOK := <-events:
			if !evOK {
				_ = conn.Close(websocket.StatusNormalClosure, "channel closed")
				return
			}
			if err := write(ctx, conn, ev); err != nil {
				log.Debug().Err(err).Msg("websocket write")
				return
			}
			if f.last != nil {
				if reason := f.last(ev); reason != "" {
					_ = conn.Close(websocket.StatusNormalClosure, reason)
					return
				}
			}
		}
	}
}

// join marks the viewer online and announces their first feed on the board.
func (h *Hub) join(ctx context.Context, boardID uuid.UUID, v domain.Viewer) {
	first, err := h.broker.Join(ctx, boardID, v)
	if err != nil {
		log.Warn().Err(err).Stringer("board_id", boardID).Msg("presence join")
		return
	}
	if first {
		h.announce(ctx, domain.OpInsert, boardID, v.UserID)
	}
}

// leave runs after the peer is gone, so it gets its own deadline.
func (h *Hub) leave(ctx context.Context, boardID, userID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	last, err := h.broker.Leave(ctx, boardID, userID)
	if err != nil {
		log.Warn().Err(err).Stringer("board_id", boardID).Msg("presence leave")
		return
	}
	if last {
		h.announce(ctx, domain.OpDelete, boardID, userID)
	}
}

func (h *Hub) announce(ctx context.Context, op domain.ChangeOp, boardID, userID uuid.UUID) {
	ev := domain.NewChangeEvent(domain.EntityPresence, op, boardID, userID, userID).WithUser(userID)
	if err := h.broker.PublishChange(ctx, ev); err != nil {
		log.Warn().Err(err).Stringer("board_id", boardID).Msg("presence publish")
	}
}

func write(ctx context.Context, conn *websocket.Conn, v any) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, v)
}
