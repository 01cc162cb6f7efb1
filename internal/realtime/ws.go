package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/gosuda/taskflow/internal/domain"
)

// ErrNotAcknowledged is returned when the server's first frame is not a
// subscription ack.
var ErrNotAcknowledged = errors.New("realtime: subscription not acknowledged")

// WSDialer connects to the server's websocket change feeds.
type WSDialer struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewWSDialer creates a dialer for the API at baseURL (http or https).
// httpClient may be nil.
func NewWSDialer(baseURL, token string, httpClient *http.Client) *WSDialer {
	return &WSDialer{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: httpClient,
	}
}

// Board returns a Dialer for the change feed of one board.
func (d *WSDialer) Board(boardID uuid.UUID) Dialer {
	return DialerFunc(func(ctx context.Context) (Stream, error) {
		return d.dial(ctx, "/ws/board/"+boardID.String())
	})
}

// User returns a Dialer for the feed of board and membership changes that
// concern the current user.
func (d *WSDialer) User() Dialer {
	return DialerFunc(func(ctx context.Context) (Stream, error) {
		return d.dial(ctx, "/ws/user")
	})
}

func (d *WSDialer) dial(ctx context.Context, path string) (Stream, error) {
	opts := &websocket.DialOptions{HTTPClient: d.httpClient}
	if d.token != "" {
		opts.HTTPHeader = http.Header{"Authorization": []string{"Bearer " + d.token}}
	}

	conn, resp, err := websocket.Dial(ctx, d.baseURL+path, opts)
	if err != nil {
		if resp != nil {
			if sentinel := statusError(resp.StatusCode); sentinel != nil {
				return nil, fmt.Errorf("realtime.WSDialer.dial: %s: status %d: %w: %w", path, resp.StatusCode, sentinel, err)
			}
			return nil, fmt.Errorf("realtime.WSDialer.dial: %s: status %d: %w", path, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("realtime.WSDialer.dial: %s: %w", path, err)
	}

	var ack domain.FeedAck
	if err := wsjson.Read(ctx, conn, &ack); err != nil {
		conn.CloseNow()
		return nil, fmt.Errorf("realtime.WSDialer.dial: read ack: %w", err)
	}
	if ack.Type != domain.FeedAckType {
		_ = conn.Close(websocket.StatusPolicyViolation, "expected ack")
		return nil, fmt.Errorf("realtime.WSDialer.dial: got %q: %w", ack.Type, ErrNotAcknowledged)
	}
	return &wsStream{conn: conn}, nil
}

// statusError maps a refused handshake to the domain sentinel callers check
// with errors.Is.
func statusError(status int) error {
	switch status {
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusForbidden:
		return domain.ErrForbidden
	case http.StatusUnauthorized:
		return domain.ErrUnauthorized
	default:
		return nil
	}
}

type wsStream struct {
	conn *websocket.Conn
}

func (s *wsStream) Recv(ctx context.Context) (domain.ChangeEvent, error) {
	var ev domain.ChangeEvent
	if err := wsjson.Read(ctx, s.conn, &ev); err != nil {
		return domain.ChangeEvent{}, fmt.Errorf("realtime.wsStream.Recv: %w", err)
	}
	return ev, nil
}

func (s *wsStream) Close() error {
	return s.conn.Close(websocket.StatusNormalClosure, "")
}
