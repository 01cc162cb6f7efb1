package redis

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/gosuda/taskflow/internal/domain"
)

// PresenceTTL bounds how long entries outlive a server that died without
// calling Leave. Every open feed refreshes it through Touch.
const PresenceTTL = 2 * time.Minute

var _ domain.PresenceTracker = (*PubSub)(nil) //nolint:gochecknoglobals // compile-time check

// Both scripts take KEYS[1] counts and KEYS[2] emails.
//
//nolint:gochecknoglobals // compiled once
var (
	// ARGV user, email, ttl.
	joinScript = redis.NewScript(`
local n = redis.call('HINCRBY', KEYS[1], ARGV[1], 1)
redis.call('HSET', KEYS[2], ARGV[1], ARGV[2])
redis.call('EXPIRE', KEYS[1], ARGV[3])
redis.call('EXPIRE', KEYS[2], ARGV[3])
return n
`)

	// ARGV user.
	leaveScript = redis.NewScript(`
local n = redis.call('HINCRBY', KEYS[1], ARGV[1], -1)
if n <= 0 then
  redis.call('HDEL', KEYS[1], ARGV[1])
  redis.call('HDEL', KEYS[2], ARGV[1])
  return 0
end
return n
`)
)

func presenceKeys(boardID uuid.UUID) []string {
	base := "presence:{" + boardID.String() + "}"
	return []string{base, base + ":email"}
}

func (ps *PubSub) Join(ctx context.Context, boardID uuid.UUID, v domain.Viewer) (bool, error) {
	n, err := joinScript.Run(ctx, ps.client, presenceKeys(boardID), v.UserID.String(), v.Email, int(PresenceTTL/time.Second)).Int64()
	if err != nil {
		return false, fmt.Errorf("redis.PubSub.Join: %w", err)
	}
	return n == 1, nil
}

func (ps *PubSub) Leave(ctx context.Context, boardID, userID uuid.UUID) (bool, error) {
	n, err := leaveScript.Run(ctx, ps.client, presenceKeys(boardID), userID.String()).Int64()
	if err != nil {
		return false, fmt.Errorf("redis.PubSub.Leave: %w", err)
	}
	return n == 0, nil
}

func (ps *PubSub) Touch(ctx context.Context, boardID uuid.UUID) error {
	pipe := ps.client.Pipeline()
	for _, key := range presenceKeys(boardID) {
		pipe.Expire(ctx, key, PresenceTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis.PubSub.Touch: %w", err)
	}
	return nil
}

func (ps *PubSub) Online(ctx context.Context, boardID uuid.UUID) ([]domain.Viewer, error) {
	emails, err := ps.client.HGetAll(ctx, presenceKeys(boardID)[1]).Result()
	if err != nil {
		return nil, fmt.Errorf("redis.PubSub.Online: %w", err)
	}
	viewers := make([]domain.Viewer, 0, len(emails))
	for raw, email := range emails {
		id, err := uuid.Parse(raw)
		if err != nil {
			continue
		}
		viewers = append(viewers, domain.Viewer{UserID: id, Email: email})
	}
	sort.Slice(viewers, func(i, j int) bool { return viewers[i].Email < viewers[j].Email })
	return viewers, nil
}
