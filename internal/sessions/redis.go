package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisStore persists sessions as JSON values in Redis. Merge semantics
// are read-modify-write: sessions are single-writer per conversation, so
// a lost update under a racing writer degrades to last-write-wins.
type redisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed session store. Keys expire after
// ttl; a ttl of zero retains sessions indefinitely.
func NewRedisStore(client *redis.Client, ttl time.Duration) Store {
	return &redisStore{
		client: client,
		ttl:    ttl,
	}
}

func sessionKey(sessionID string) string {
	return "veriflow:session:" + sessionID
}

func (s *redisStore) Upsert(ctx context.Context, sessionID string, cmd UpsertCommand) (*SessionState, error) {
	now := time.Now().UTC()

	session, err := s.Find(ctx, sessionID)
	if errors.Is(err, ErrNotFound) {
		session = &SessionState{
			SessionID: sessionID,
			Flags:     map[string]any{},
			CreatedAt: now,
		}
	} else if err != nil {
		return nil, err
	}
	session.apply(cmd, now)

	data, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("marshal session: %w", err)
	}

	if err := s.client.Set(ctx, sessionKey(sessionID), data, s.ttl).Err(); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}

	return session, nil
}

func (s *redisStore) Find(ctx context.Context, sessionID string) (*SessionState, error) {
	data, err := s.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}

	var session SessionState
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	if session.Flags == nil {
		session.Flags = map[string]any{}
	}

	return &session, nil
}
