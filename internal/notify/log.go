package notify

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// LogSink writes notices to a zerolog logger.
type LogSink struct {
	logger zerolog.Logger
}

func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Notify(_ context.Context, n Notice) error {
	ev := s.logger.Info()
	if n.Level == LevelError {
		ev = s.logger.Error()
	}
	if n.BoardID != uuid.Nil {
		ev = ev.Stringer("board_id", n.BoardID)
	}
	ev.Str("notice", string(n.Level)).Msg(n.Text)
	return nil
}
