package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/agentcore/core/pkg/types"
)

// Memory is an in-process Store with no durability. Writes complete
// synchronously, so Flush is always a no-op. Intended for tests and for
// running the server with AGENTCORE_STORE=memory.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]*types.Session
	messages map[string]map[string]*types.Message // sessionID -> messageID -> message
}

// NewMemory creates an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		sessions: make(map[string]*types.Session),
		messages: make(map[string]map[string]*types.Message),
	}
}

func (m *Memory) SaveSession(ctx context.Context, session *types.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *session
	m.sessions[session.ID] = &cp
	return nil
}

func (m *Memory) GetSession(ctx context.Context, id string) (*types.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *Memory) ListSessions(ctx context.Context) ([]*types.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*types.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Updated > out[j].Updated })
	return out, nil
}

func (m *Memory) DeleteSession(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	delete(m.messages, id)
	return nil
}

func (m *Memory) SaveMessage(ctx context.Context, message *types.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	bucket, ok := m.messages[message.SessionID]
	if !ok {
		bucket = make(map[string]*types.Message)
		m.messages[message.SessionID] = bucket
	}
	cp := *message
	bucket[message.ID] = &cp
	return nil
}

func (m *Memory) GetMessage(ctx context.Context, sessionID, messageID string) (*types.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bucket, ok := m.messages[sessionID]
	if !ok {
		return nil, ErrMessageNotFound
	}
	msg, ok := bucket[messageID]
	if !ok {
		return nil, ErrMessageNotFound
	}
	cp := *msg
	return &cp, nil
}

func (m *Memory) GetMessages(ctx context.Context, sessionID string) ([]*types.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bucket := m.messages[sessionID]
	out := make([]*types.Message, 0, len(bucket))
	for _, msg := range bucket {
		cp := *msg
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out, nil
}

func (m *Memory) DeleteMessages(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.messages, sessionID)
	return nil
}

func (m *Memory) Flush(ctx context.Context) error { return nil }

func (m *Memory) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = make(map[string]*types.Session)
	m.messages = make(map[string]map[string]*types.Message)
	return nil
}

func (m *Memory) Close() error { return nil }

var _ Store = (*Memory)(nil)
