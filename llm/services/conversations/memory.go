package conversations

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps conversations in process memory
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{conversations: make(map[string]*Conversation)}
}

func (m *MemoryStore) Create(ctx context.Context, conv *Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conversations[conv.ID] = clone(conv)
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conv, ok := m.conversations[id]
	if !ok {
		return nil, notFound(id)
	}
	return clone(conv), nil
}

func (m *MemoryStore) Append(ctx context.Context, id string, msg *Message, window int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.conversations[id]
	if !ok {
		return notFound(id)
	}

	copied := *msg
	conv.Messages = append(conv.Messages, &copied)
	conv.UpdatedAt = msg.Timestamp
	if window > 0 && len(conv.Messages) > window {
		conv.Messages = append([]*Message(nil), conv.Messages[len(conv.Messages)-window:]...)
	}
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.conversations[id]; !ok {
		return notFound(id)
	}
	delete(m.conversations, id)
	return nil
}

func (m *MemoryStore) List(ctx context.Context) ([]Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Summary, 0, len(m.conversations))
	for _, c := range m.conversations {
		out = append(out, Summary{ID: c.ID, Messages: len(c.Messages), CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt})
	}
	sortSummaries(out)
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }

func clone(c *Conversation) *Conversation {
	out := *c
	out.Messages = make([]*Message, len(c.Messages))
	for i, msg := range c.Messages {
		copied := *msg
		out.Messages[i] = &copied
	}
	return &out
}

func sortSummaries(s []Summary) {
	sort.Slice(s, func(i, j int) bool {
		if !s[i].UpdatedAt.Equal(s[j].UpdatedAt) {
			return s[i].UpdatedAt.After(s[j].UpdatedAt)
		}
		return s[i].ID < s[j].ID
	})
}
