package conversations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nid-27/regnex/internal/config"
	"github.com/nid-27/regnex/llm/providers/shared"
)

// ErrNotFound is returned for unknown conversation IDs
var ErrNotFound = errors.New("conversation not found")

// Message represents a conversation message
type Message struct {
	ID        string         `json:"id"`
	Role      string         `json:"role"` // user, assistant
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Conversation represents a conversation session
type Conversation struct {
	ID        string     `json:"id"`
	Messages  []*Message `json:"messages"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Summary is the listing view of a conversation
type Summary struct {
	ID        string    `json:"id"`
	Messages  int       `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store persists conversations
type Store interface {
	Create(ctx context.Context, conv *Conversation) error
	Get(ctx context.Context, id string) (*Conversation, error)
	// Append adds msg and keeps only the newest window messages.
	Append(ctx context.Context, id string, msg *Message, window int) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]Summary, error)
	Close() error
}

// Service manages conversation sessions
type Service struct {
	store  Store
	window int
}

// NewService creates a conversation service. window bounds the number of
// messages kept per conversation.
func NewService(store Store, window int) *Service {
	if window <= 0 {
		window = 50
	}
	return &Service{store: store, window: window}
}

// Create starts a new empty conversation
func (s *Service) Create(ctx context.Context) (*Conversation, error) {
	now := time.Now().UTC()
	conv := &Conversation{
		ID:        uuid.NewString(),
		Messages:  []*Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, conv); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return conv, nil
}

// Get retrieves a conversation with its messages
func (s *Service) Get(ctx context.Context, id string) (*Conversation, error) {
	return s.store.Get(ctx, id)
}

// Resolve returns the conversation for id, or a new one when id is empty
func (s *Service) Resolve(ctx context.Context, id string) (*Conversation, error) {
	if strings.TrimSpace(id) == "" {
		return s.Create(ctx)
	}
	return s.store.Get(ctx, id)
}

// AddMessage appends a message to a conversation
func (s *Service) AddMessage(ctx context.Context, convID, role, content string) (*Message, error) {
	switch role {
	case string(shared.RoleUser), string(shared.RoleAssistant):
	default:
		return nil, fmt.Errorf("invalid message role: %q", role)
	}

	msg := &Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
	if err := s.store.Append(ctx, convID, msg, s.window); err != nil {
		return nil, err
	}
	return msg, nil
}

// Messages returns the newest limit messages, all when limit <= 0
func (s *Service) Messages(ctx context.Context, convID string, limit int) ([]*Message, error) {
	conv, err := s.store.Get(ctx, convID)
	if err != nil {
		return nil, err
	}
	messages := conv.Messages
	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	return messages, nil
}

// History converts the stored messages into model messages
func (s *Service) History(ctx context.Context, convID string) ([]shared.Message, error) {
	messages, err := s.Messages(ctx, convID, 0)
	if err != nil {
		return nil, err
	}
	out := make([]shared.Message, 0, len(messages))
	for _, m := range messages {
		out = append(out, shared.Message{Role: shared.Role(m.Role), Content: m.Content})
	}
	return out, nil
}

// Delete removes a conversation
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

// List returns all conversations, most recently updated first
func (s *Service) List(ctx context.Context) ([]Summary, error) {
	return s.store.List(ctx)
}

// Close releases the store
func (s *Service) Close() error {
	return s.store.Close()
}

func notFound(id string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}

// OpenStore creates the store selected by the configuration
func OpenStore(ctx context.Context, cfg config.ConversationsConfig) (Store, error) {
	switch cfg.Store {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		store, err := NewSQLiteStore(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown conversation store: %s", cfg.Store)
	}
}
