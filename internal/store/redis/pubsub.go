package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/taskflow/internal/domain"
)

type PubSub struct {
	client *redis.Client
}

func New(ctx context.Context, addr, password string, db int) (*PubSub, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis.New: ping: %w", err)
	}

	return &PubSub{client: client}, nil
}

func (ps *PubSub) Ping(ctx context.Context) error {
	return ps.client.Ping(ctx).Err()
}

func (ps *PubSub) Close() error {
	if err := ps.client.Close(); err != nil {
		return fmt.Errorf("redis.PubSub.Close: %w", err)
	}
	return nil
}

func (ps *PubSub) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := ps.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis.PubSub.Publish: %w", err)
	}
	return nil
}

// PublishChange sends ev on its board channel and on the user channel of
// every id in users.
func (ps *PubSub) PublishChange(ctx context.Context, ev domain.ChangeEvent, users ...uuid.UUID) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("redis.PubSub.PublishChange: marshal: %w", err)
	}

	channels := make([]string, 0, len(users)+1)
	channels = append(channels, BoardChannel(ev.BoardID))
	for _, id := range users {
		channels = append(channels, UserChannel(id))
	}

	pipe := ps.client.Pipeline()
	for _, ch := range channels {
		pipe.Publish(ctx, ch, payload)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis.PubSub.PublishChange: %w", err)
	}
	return nil
}

func (ps *PubSub) Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error) {
	sub := ps.client.Subscribe(ctx, channel)

	// Wait for subscription confirmation.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("redis.PubSub.Subscribe: receive confirmation: %w", err)
	}

	out := make(chan []byte, 64)
	redisCh := sub.Channel()

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-redisCh:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	cleanup := func() {
		_ = sub.Close()
	}

	return out, cleanup, nil
}

// SubscribeChanges is Subscribe with payloads decoded as change events.
// Frames that do not decode are logged and skipped.
func (ps *PubSub) SubscribeChanges(ctx context.Context, channel string) (<-chan domain.ChangeEvent, func(), error) {
	raw, cleanup, err := ps.Subscribe(ctx, channel)
	if err != nil {
		return nil, nil, err
	}

	out := make(chan domain.ChangeEvent, 64)
	go func() {
		defer close(out)
		for payload := range raw {
			var ev domain.ChangeEvent
			if err := json.Unmarshal(payload, &ev); err != nil {
				log.Warn().Err(err).Str("channel", channel).Msg("redis: dropping malformed change event")
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, cleanup, nil
}

// BoardChannel returns the Redis channel name for a board's change feed.
func BoardChannel(boardID uuid.UUID) string {
	return "board:" + boardID.String()
}

// UserChannel returns the Redis channel name for a user's dashboard feed.
func UserChannel(userID uuid.UUID) string {
	return "user:" + userID.String()
}
