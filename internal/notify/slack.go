package notify

import (
	"context"
	"fmt"

	slacklib "github.com/slack-go/slack"
)

// SlackAPI abstracts the subset of the Slack client used by SlackSink.
type SlackAPI interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slacklib.MsgOption) (string, string, error)
}

// SlackSink posts notices to one Slack channel.
type SlackSink struct {
	api     SlackAPI
	channel string
}

// NewSlackSink creates a SlackSink. api is usually slack.New(token).
func NewSlackSink(api SlackAPI, channel string) *SlackSink {
	return &SlackSink{api: api, channel: channel}
}

func (s *SlackSink) Notify(ctx context.Context, n Notice) error {
	_, _, err := s.api.PostMessageContext(ctx, s.channel, slacklib.MsgOptionText(slackText(n), false))
	if err != nil {
		return fmt.Errorf("notify.SlackSink.Notify: %w", err)
	}
	return nil
}

func slackText(n Notice) string {
	switch n.Level {
	case LevelError:
		return ":x: " + n.Text
	case LevelSuccess:
		return ":white_check_mark: " + n.Text
	default:
		return n.Text
	}
}
