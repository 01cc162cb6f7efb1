// Package realtime keeps a board view in step with other users. A
// Subscription owns the change-feed connection and its reconnect loop; a
// Reconciler turns each change event into cache invalidations.
package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/taskflow/internal/domain"
)

// DefaultReconnectDelay is the fixed pause between a transport error and the
// next connection attempt. There is no retry cap.
const DefaultReconnectDelay = 5 * time.Second

type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateLive
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateLive:
		return "live"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// Stream is an acknowledged change-feed connection.
type Stream interface {
	Recv(ctx context.Context) (domain.ChangeEvent, error)
	Close() error
}

// Dialer opens a Stream. Dial returns only after the server acknowledged the
// subscription.
type Dialer interface {
	Dial(ctx context.Context) (Stream, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context) (Stream, error)

func (f DialerFunc) Dial(ctx context.Context) (Stream, error) {
	return f(ctx)
}

// Handler receives every change event in arrival order.
type Handler func(ctx context.Context, ev domain.ChangeEvent)

type Options struct {
	// ReconnectDelay defaults to DefaultReconnectDelay.
	ReconnectDelay time.Duration
	// OnState is called on every state transition, outside any lock.
	OnState func(State)
	// OnResume is called each time the feed goes live after a failed dial or
	// a dropped stream. Events published in between were never delivered.
	OnResume func()
	// Name labels log lines.
	Name string
}

// Subscription is a scoped change-feed resource. It is live from Subscribe
// until Close; Close always releases the connection.
type Subscription struct {
	mu      sync.Mutex
	state   State
	opts    Options
	cancel  context.CancelFunc
	done    chan struct{}
	closeMu sync.Once
}

// Subscribe starts consuming dialer in the background and returns at once.
func Subscribe(ctx context.Context, dialer Dialer, handler Handler, opts Options) *Subscription {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &Subscription{
		state:  StateDisconnected,
		opts:   opts,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go s.run(ctx, dialer, handler)
	return s
}

// State returns the current connection state.
func (s *Subscription) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed once the subscription has shut down.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Close tears the subscription down and waits for it to finish. It is safe to
// call more than once.
func (s *Subscription) Close() {
	s.closeMu.Do(s.cancel)
	<-s.done
}

func (s *Subscription) run(ctx context.Context, dialer Dialer, handler Handler) {
	defer close(s.done)
	defer s.setState(StateDisconnected)

	logger := log.With().Str("feed", s.opts.Name).Logger()

	resumed := false
	for {
		s.setState(StateConnecting)
		stream, err := dialer.Dial(ctx)
		if ctx.Err() != nil {
			if stream != nil {
				_ = stream.Close()
			}
			return
		}
		if err != nil {
			logger.Warn().Err(err).Dur("retry_in", s.opts.ReconnectDelay).Msg("realtime: connect failed")
		} else {
			s.setState(StateLive)
			logger.Debug().Msg("realtime: subscribed")
			if resumed && s.opts.OnResume != nil {
				s.opts.OnResume()
			}
			err = s.consume(ctx, stream, handler)
			_ = stream.Close()
			if ctx.Err() != nil {
				return
			}
			logger.Warn().Err(err).Dur("retry_in", s.opts.ReconnectDelay).Msg("realtime: feed lost")
		}

		resumed = true
		s.setState(StateReconnecting)
		timer := time.NewTimer(s.opts.ReconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (s *Subscription) consume(ctx context.Context, stream Stream, handler Handler) error {
	for {
		ev, err := stream.Recv(ctx)
		if err != nil {
			return err
		}
		handler(ctx, ev)
	}
}

func (s *Subscription) setState(st State) {
	s.mu.Lock()
	if s.state == st {
		s.mu.Unlock()
		return
	}
	s.state = st
	s.mu.Unlock()

	if s.opts.OnState != nil {
		s.opts.OnState(st)
	}
}
