package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/adpilot-ai/agentkernel/pkg/models"
)

// RedisStore is the production Store backing, using the three key
// families spec.md §6 names. Each family is a single JSON-encoded value
// under its own key rather than a native Redis list/hash, so a bounded
// read is a single GET, a state save is a single SET with a TTL, and an
// append is a GET followed by a SET — matching
// the teacher's preference for few round-trips per operation (see
// internal/sessions/store.go).
type RedisStore struct {
	client *redis.Client
	log    *slog.Logger
}

// NewRedisStore wraps an existing go-redis client.
func NewRedisStore(client *redis.Client, log *slog.Logger) *RedisStore {
	if log == nil {
		log = slog.Default()
	}
	return &RedisStore{client: client, log: log}
}

func logKey(sessionID string) string   { return "conversation:history:" + sessionID }
func stateKey(sessionID string) string { return "agent:state:" + sessionID }
func toolsKey(sessionID string) string { return "agent:tools:" + sessionID }

func (s *RedisStore) AppendMessage(ctx context.Context, sessionID string, msg models.Message, maxLen int, ttl time.Duration) error {
	cur, err := s.LoadLog(ctx, sessionID, 0)
	if err != nil {
		return err
	}
	cur = append(cur, msg)
	if maxLen > 0 && len(cur) > maxLen {
		cur = cur[len(cur)-maxLen:]
	}
	return s.setJSON(ctx, logKey(sessionID), cur, ttl)
}

func (s *RedisStore) LoadLog(ctx context.Context, sessionID string, limit int) ([]models.Message, error) {
	var log []models.Message
	if err := s.getJSON(ctx, logKey(sessionID), &log); err != nil {
		return nil, err
	}
	if limit > 0 && len(log) > limit {
		log = log[len(log)-limit:]
	}
	return log, nil
}

func (s *RedisStore) SaveState(ctx context.Context, sessionID string, state models.ExecutionState, ttl time.Duration) error {
	return s.setJSON(ctx, stateKey(sessionID), state, ttl)
}

func (s *RedisStore) LoadState(ctx context.Context, sessionID string) (*models.ExecutionState, error) {
	var state models.ExecutionState
	ok, err := s.getJSONOK(ctx, stateKey(sessionID), &state)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &state, nil
}

func (s *RedisStore) RecordObservation(ctx context.Context, sessionID string, rec models.ToolObservationRecord, maxLen int, ttl time.Duration) error {
	obs, err := s.LoadObservations(ctx, sessionID)
	if err != nil {
		return err
	}
	obs = append(obs, rec)
	if maxLen > 0 && len(obs) > maxLen {
		obs = obs[len(obs)-maxLen:]
	}
	return s.setJSON(ctx, toolsKey(sessionID), obs, ttl)
}

func (s *RedisStore) LoadObservations(ctx context.Context, sessionID string) ([]models.ToolObservationRecord, error) {
	var obs []models.ToolObservationRecord
	if err := s.getJSON(ctx, toolsKey(sessionID), &obs); err != nil {
		return nil, err
	}
	return obs, nil
}

func (s *RedisStore) ClearSession(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, logKey(sessionID), stateKey(sessionID), toolsKey(sessionID)).Err()
}

func (s *RedisStore) setJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("sessions: marshal %s: %w", key, err)
	}
	if err := s.client.Set(ctx, key, b, ttl).Err(); err != nil {
		return fmt.Errorf("sessions: redis set %s: %w", key, err)
	}
	return nil
}

// getJSON reads key into dst, never erroring: a miss leaves dst at its
// zero value silently, and a backing-store or decode error is logged as
// a warning and treated like a miss, matching
// spec.md §4.2's "reads degrade gracefully" behavior.
func (s *RedisStore) getJSON(ctx context.Context, key string, dst any) error {
	_, err := s.getJSONOK(ctx, key, dst)
	return err
}

func (s *RedisStore) getJSONOK(ctx context.Context, key string, dst any) (bool, error) {
	b, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		s.log.Warn("sessions: redis get failed, treating as empty", "key", key, "error", err)
		return false, nil
	}
	if err := json.Unmarshal(b, dst); err != nil {
		s.log.Warn("sessions: corrupt session value, treating as empty", "key", key, "error", err)
		return false, nil
	}
	return true, nil
}
