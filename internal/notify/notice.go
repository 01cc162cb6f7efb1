package notify

import (
	"context"

	"github.com/google/uuid"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notice is a short user-facing message, the terminal's version of a toast.
type Notice struct {
	Level   Level     `json:"level"`
	Text    string    `json:"text"`
	BoardID uuid.UUID `json:"board_id,omitzero"`
}

func Info(boardID uuid.UUID, text string) Notice {
	return Notice{Level: LevelInfo, Text: text, BoardID: boardID}
}

func Success(boardID uuid.UUID, text string) Notice {
	return Notice{Level: LevelSuccess, Text: text, BoardID: boardID}
}

func Error(boardID uuid.UUID, text string) Notice {
	return Notice{Level: LevelError, Text: text, BoardID: boardID}
}

// Sink delivers notices somewhere a user will see them.
type Sink interface {
	Notify(ctx context.Context, n Notice) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, n Notice) error

func (f SinkFunc) Notify(ctx context.Context, n Notice) error {
	return f(ctx, n)
}
