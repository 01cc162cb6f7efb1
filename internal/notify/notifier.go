package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

// ErrSinkNotFound is returned when a sink name is not registered.
var ErrSinkNotFound = errors.New("notify: sink not found") //nolint:gochecknoglobals // sentinel error

// SinkRegistry maps sink names to Sink implementations.
type SinkRegistry interface {
	Get(name string) (Sink, bool)
	Names() []string
}

// Notifier fans a notice out to every registered sink.
type Notifier struct {
	sinks SinkRegistry
}

var _ Sink = (*Notifier)(nil) //nolint:gochecknoglobals // compile-time check

// New creates a Notifier over the given registry.
func New(sinks SinkRegistry) *Notifier {
	return &Notifier{sinks: sinks}
}

// Notify delivers n to every sink. A failing sink does not stop the others;
// all failures are returned joined.
func (n *Notifier) Notify(ctx context.Context, notice Notice) error {
	names := n.sinks.Names()
	if len(names) == 0 {
		log.Debug().Str("level", string(notice.Level)).Str("text", notice.Text).Msg("notify: no sinks")
		return nil
	}

	var errs []error
	for _, name := range names {
		if err := n.NotifyVia(ctx, name, notice); err != nil {
			log.Warn().Err(err).Str("sink", name).Msg("notify: delivery failed")
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify.Notifier.Notify: %w", errors.Join(errs...))
	}
	return nil
}

// NotifyVia delivers n through one named sink.
func (n *Notifier) NotifyVia(ctx context.Context, name string, notice Notice) error {
	s, ok := n.sinks.Get(name)
	if !ok {
		return fmt.Errorf("notify.Notifier.NotifyVia: sink %q: %w", name, ErrSinkNotFound)
	}
	if err := s.Notify(ctx, notice); err != nil {
		return fmt.Errorf("notify.Notifier.NotifyVia: %s: %w", name, err)
	}
	return nil
}
