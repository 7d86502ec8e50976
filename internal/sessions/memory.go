package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/adpilot-ai/agentkernel/pkg/models"
)

type ttlValue[T any] struct {
	value     T
	expiresAt time.Time
}

// MemoryStore is an in-process Store backed by sync.Mutex-protected maps,
// grounded on the teacher's internal/sessions/memory.go. It is used for
// tests and single-process deployments; TTLs are enforced lazily on read
// (no background sweep), matching the spec's "reading a nonexistent
// session yields an empty session" invariant for expired entries too.
type MemoryStore struct {
	mu           sync.Mutex
	logs         map[string]*ttlValue[[]models.Message]
	states       map[string]*ttlValue[models.ExecutionState]
	observations map[string]*ttlValue[[]models.ToolObservationRecord]
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		logs:         make(map[string]*ttlValue[[]models.Message]),
		states:       make(map[string]*ttlValue[models.ExecutionState]),
		observations: make(map[string]*ttlValue[[]models.ToolObservationRecord]),
	}
}

func (m *MemoryStore) AppendMessage(ctx context.Context, sessionID string, msg models.Message, maxLen int, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur := m.liveLog(sessionID)
	cur = append(cur, msg)
	if maxLen > 0 && len(cur) > maxLen {
		cur = cur[len(cur)-maxLen:]
	}
	m.logs[sessionID] = &ttlValue[[]models.Message]{value: cur, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (m *MemoryStore) LoadLog(ctx context.Context, sessionID string, limit int) ([]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	log := m.liveLog(sessionID)
	if limit > 0 && len(log) > limit {
		log = log[len(log)-limit:]
	}
	out := make([]models.Message, len(log))
	copy(out, log)
	return out, nil
}

func (m *MemoryStore) liveLog(sessionID string) []models.Message {
	v, ok := m.logs[sessionID]
	if !ok || time.Now().After(v.expiresAt) {
		return nil
	}
	return v.value
}

func (m *MemoryStore) SaveState(ctx context.Context, sessionID string, state models.ExecutionState, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[sessionID] = &ttlValue[models.ExecutionState]{value: state, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (m *MemoryStore) LoadState(ctx context.Context, sessionID string) (*models.ExecutionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.states[sessionID]
	if !ok || time.Now().After(v.expiresAt) {
		return nil, nil
	}
	state := v.value
	return &state, nil
}

func (m *MemoryStore) RecordObservation(ctx context.Context, sessionID string, rec models.ToolObservationRecord, maxLen int, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur := m.liveObservations(sessionID)
	cur = append(cur, rec)
	if maxLen > 0 && len(cur) > maxLen {
		cur = cur[len(cur)-maxLen:]
	}
	m.observations[sessionID] = &ttlValue[[]models.ToolObservationRecord]{value: cur, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (m *MemoryStore) LoadObservations(ctx context.Context, sessionID string) ([]models.ToolObservationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obs := m.liveObservations(sessionID)
	out := make([]models.ToolObservationRecord, len(obs))
	copy(out, obs)
	return out, nil
}

func (m *MemoryStore) liveObservations(sessionID string) []models.ToolObservationRecord {
	v, ok := m.observations[sessionID]
	if !ok || time.Now().After(v.expiresAt) {
		return nil
	}
	return v.value
}

func (m *MemoryStore) ClearSession(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.logs, sessionID)
	delete(m.states, sessionID)
	delete(m.observations, sessionID)
	return nil
}
