package chat

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/chatnova/backend/internal/models"
)

// Store defines what the service needs from conversation storage. Mutations
// are read-modify-write over the full message sequence; there is no
// concurrency token, so concurrent writers on one conversation can lose
// updates. The service inherits that limitation deliberately.
type Store interface {
	Create(ctx context.Context, ownerID, title string) (string, error)
	List(ctx context.Context, ownerID string) ([]models.Conversation, error)
	FetchByID(ctx context.Context, id string) (*models.Conversation, error)
	ReplaceMessages(ctx context.Context, id string, messages []models.Message) error
	Delete(ctx context.Context, id string) error
}

// Completer defines what the service needs from the completion backend.
type Completer interface {
	Complete(ctx context.Context, prior []models.Message) (string, error)
}

// Service orchestrates the store and the completion client. Construct it
// with the dependencies injected; there is no package-level instance.
type Service struct {
	store     Store
	completer Completer
	logger    *zap.Logger
}

func NewService(store Store, completer Completer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:     store,
		completer: completer,
		logger:    logger,
	}
}

// CreateConversation persists a new empty conversation and returns it.
func (s *Service) CreateConversation(ctx context.Context, ownerID, title string) (*models.Conversation, error) {
	if ownerID == "" {
		return nil, models.ErrUnauthenticated
	}

	id, err := s.store.Create(ctx, ownerID, title)
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}

	conv, err := s.store.FetchByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch created conversation: %w", err)
	}
	return conv, nil
}

// ListConversations returns the owner's conversations, most recently updated
// first.
func (s *Service) ListConversations(ctx context.Context, ownerID string) ([]models.Conversation, error) {
	if ownerID == "" {
		return nil, models.ErrUnauthenticated
	}
	return s.store.List(ctx, ownerID)
}

// GetConversation fetches one conversation. A conversation owned by someone
// else is reported as not found.
func (s *Service) GetConversation(ctx context.Context, id, ownerID string) (*models.Conversation, error) {
	if ownerID == "" {
		return nil, models.ErrUnauthenticated
	}
	conv, err := s.store.FetchByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if conv.UserID != ownerID {
		return nil, models.ErrNotFound
	}
	return conv, nil
}

// SendMessage appends the user's message, persists it, asks the completion
// backend for a reply with the full sequence as context, persists the reply,
// and returns the assistant text.
//
// The user message is committed by the first write. If the completion call
// fails afterwards the error is returned as-is and the user message stays
// persisted with no assistant reply; callers must not treat the failure as a
// rollback.
func (s *Service) SendMessage(ctx context.Context, conversationID, ownerID, text string) (string, error) {
	if ownerID == "" {
		return "", models.ErrUnauthenticated
	}

	conv, err := s.store.FetchByID(ctx, conversationID)
	if err != nil {
		return "", err
	}
	if conv.UserID != ownerID {
		return "", models.ErrNotFound
	}

	userMsg := models.Message{
		Role:      models.RoleUser,
		Content:   text,
		Timestamp: time.Now().UTC(),
	}
	messages := append(conv.Messages, userMsg)

	if err := s.store.ReplaceMessages(ctx, conversationID, messages); err != nil {
		return "", fmt.Errorf("persist user message: %w", err)
	}

	reply, err := s.completer.Complete(ctx, messages)
	if err != nil {
		s.logger.Warn("completion failed after user message was persisted",
			zap.Error(err),
			zap.String("conversation_id", conversationID))
		return "", err
	}

	assistantMsg := models.Message{
		Role:      models.RoleAssistant,
		Content:   reply,
		Timestamp: time.Now().UTC(),
	}
	messages = append(messages, assistantMsg)

	if err := s.store.ReplaceMessages(ctx, conversationID, messages); err != nil {
		return "", fmt.Errorf("persist assistant message: %w", err)
	}
	return reply, nil
}

// EditMessage replaces the content and timestamp of the message at index.
// It never re-invokes the completion backend; downstream replies are left
// as they were.
func (s *Service) EditMessage(ctx context.Context, conversationID string, index int, newText string) error {
	conv, err := s.store.FetchByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(conv.Messages) {
		return fmt.Errorf("edit message %d of %d: %w", index, len(conv.Messages), models.ErrIndexOutOfRange)
	}

	conv.Messages[index].Content = newText
	conv.Messages[index].Timestamp = time.Now().UTC()

	if err := s.store.ReplaceMessages(ctx, conversationID, conv.Messages); err != nil {
		return fmt.Errorf("persist edited message: %w", err)
	}
	return nil
}

// DeleteMessage removes the message at index; later messages shift down by
// one position.
func (s *Service) DeleteMessage(ctx context.Context, conversationID string, index int) error {
	conv, err := s.store.FetchByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(conv.Messages) {
		return fmt.Errorf("delete message %d of %d: %w", index, len(conv.Messages), models.ErrIndexOutOfRange)
	}

	messages := append(conv.Messages[:index], conv.Messages[index+1:]...)

	if err := s.store.ReplaceMessages(ctx, conversationID, messages); err != nil {
		return fmt.Errorf("persist message deletion: %w", err)
	}
	return nil
}

// DeleteConversation removes the conversation and all its messages.
func (s *Service) DeleteConversation(ctx context.Context, conversationID string) error {
	if err := s.store.Delete(ctx, conversationID); err != nil {
		return err
	}
	s.logger.Info("conversation deleted", zap.String("conversation_id", conversationID))
	return nil
}
