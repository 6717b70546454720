package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chatnova/backend/internal/models"
)

// MemoryStore keeps conversations in a map. It backs tests and local runs
// without a database, and mirrors the Mongo store's contract including the
// unconditional last-writer-wins ReplaceMessages.
type MemoryStore struct {
	mu            sync.Mutex
	conversations map[string]*models.Conversation
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{conversations: make(map[string]*models.Conversation)}
}

func (s *MemoryStore) Create(ctx context.Context, ownerID, title string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	id := uuid.NewString()
	s.conversations[id] = &models.Conversation{
		ID:        id,
		UserID:    ownerID,
		Title:     title,
		Messages:  []models.Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	return id, nil
}

func (s *MemoryStore) List(ctx context.Context, ownerID string) ([]models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conversations := make([]models.Conversation, 0)
	for _, conv := range s.conversations {
		if conv.UserID == ownerID {
			conversations = append(conversations, *copyConversation(conv))
		}
	}
	sort.Slice(conversations, func(i, j int) bool {
		return conversations[i].UpdatedAt.After(conversations[j].UpdatedAt)
	})
	return conversations, nil
}

func (s *MemoryStore) FetchByID(ctx context.Context, id string) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return copyConversation(conv), nil
}

func (s *MemoryStore) ReplaceMessages(ctx context.Context, id string, messages []models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return models.ErrNotFound
	}
	conv.Messages = append([]models.Message{}, messages...)
	conv.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[id]; !ok {
		return models.ErrNotFound
	}
	delete(s.conversations, id)
	return nil
}

func copyConversation(conv *models.Conversation) *models.Conversation {
	out := *conv
	out.Messages = append([]models.Message{}, conv.Messages...)
	return &out
}
