// Package redis_session is the durable session backend. Turns are JSON
// entries in a redis list per session, with the key TTL refreshed on every
// write. A redis transport failure surfaces as ErrStoreUnavailable: the
// backend choice is made at startup, so an unreachable redis is an
// infrastructure problem, not a cue to fail over mid-request.
package redis_session

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"newsrag/internal/apperr"
	"newsrag/internal/session"
)

type Store struct {
	client *redis.Client
	ttl    time.Duration
	logger *log.Logger
}

func New(addr, password string, db int, ttl time.Duration, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.New(log.Writer(), "[SESSION] ", log.LstdFlags)
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Store{client: rdb, ttl: ttl, logger: logger}
}

func turnsKey(sessionID string) string {
	return fmt.Sprintf("session:%s:turns", sessionID)
}

func (s *Store) Append(ctx context.Context, sessionID string, turn session.Turn) error {
	if turn.Timestamp == 0 {
		turn.Timestamp = time.Now().UnixMilli()
	}
	data, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("marshal turn: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, turnsKey(sessionID), data)
	pipe.Expire(ctx, turnsKey(sessionID), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: append %s: %v", apperr.ErrStoreUnavailable, sessionID, err)
	}
	return nil
}

func (s *Store) History(ctx context.Context, sessionID string) ([]session.Turn, error) {
	vals, err := s.client.LRange(ctx, turnsKey(sessionID), 0, -1).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: history %s: %v", apperr.ErrStoreUnavailable, sessionID, err)
	}
	turns := make([]session.Turn, 0, len(vals))
	for _, v := range vals {
		var t session.Turn
		if err := json.Unmarshal([]byte(v), &t); err != nil {
			s.logger.Printf("skipping malformed turn in %s: %v", sessionID, err)
			continue
		}
		turns = append(turns, t)
	}
	return turns, nil
}

func (s *Store) Reset(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, turnsKey(sessionID)).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("%w: reset %s: %v", apperr.ErrStoreUnavailable, sessionID, err)
	}
	return nil
}

// Close releases the redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}
