package state

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chatnova/backend/internal/models"
)

// ErrNoSelection is returned when a message operation is attempted with no
// conversation selected.
var ErrNoSelection = errors.New("no conversation selected")

// Status tracks one pending operation through its lifecycle.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
)

// Operation is the token for one in-flight send. The user message it
// rendered optimistically is never rolled back on failure; by the time the
// service reports an error the message is already durable.
type Operation struct {
	ID             string
	ConversationID string
	Text           string
	Status         Status
	Err            error
}

// Service is the conversation API the manager reconciles against.
type Service interface {
	CreateConversation(ctx context.Context, ownerID, title string) (*models.Conversation, error)
	ListConversations(ctx context.Context, ownerID string) ([]models.Conversation, error)
	SendMessage(ctx context.Context, conversationID, ownerID, text string) (string, error)
	EditMessage(ctx context.Context, conversationID string, index int, newText string) error
	DeleteMessage(ctx context.Context, conversationID string, index int) error
	DeleteConversation(ctx context.Context, conversationID string) error
}

// Manager keeps the in-memory view (conversation list, selected conversation,
// its messages) consistent with what the service last confirmed.
//
// Sends render the user message optimistically before the service resolves.
// Edits and deletes apply only after confirmation: positional indices make
// speculative local reindexing unsafe when another writer may have moved
// messages underneath us.
type Manager struct {
	svc     Service
	logger  *zap.Logger
	ownerID string

	conversations []models.Conversation
	selectedID    string
	messages      []models.Message
	draft         bool
}

func NewManager(svc Service, ownerID string, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		svc:     svc,
		logger:  logger,
		ownerID: ownerID,
	}
}

// RefreshList reloads the conversation list from the service, which returns
// it sorted by updatedAt descending.
func (m *Manager) RefreshList(ctx context.Context) error {
	conversations, err := m.svc.ListConversations(ctx, m.ownerID)
	if err != nil {
		return err
	}
	m.conversations = conversations
	return nil
}

// Select switches the view to the given conversation. A new-chat draft that
// never received a send is dropped from the view; the empty conversation
// stays in the store and shows up again on the next list refresh.
func (m *Manager) Select(conv models.Conversation) {
	if m.draft && len(m.messages) == 0 {
		m.logger.Debug("discarding unsent draft", zap.String("conversation_id", m.selectedID))
	}
	m.draft = false
	m.selectedID = conv.ID
	m.messages = append([]models.Message{}, conv.Messages...)
}

// NewChat creates an empty conversation, selects it, and marks it as a draft
// until the first send confirms.
func (m *Manager) NewChat(ctx context.Context, title string) (*models.Conversation, error) {
	conv, err := m.svc.CreateConversation(ctx, m.ownerID, title)
	if err != nil {
		return nil, err
	}
	m.selectedID = conv.ID
	m.messages = []models.Message{}
	m.draft = true
	return conv, nil
}

// BeginSend renders the user message locally and returns the pending
// operation token. The message is shown before the service has confirmed
// anything.
func (m *Manager) BeginSend(text string) (*Operation, error) {
	if m.selectedID == "" {
		return nil, ErrNoSelection
	}

	op := &Operation{
		ID:             uuid.NewString(),
		ConversationID: m.selectedID,
		Text:           text,
		Status:         StatusPending,
	}
	m.messages = append(m.messages, models.Message{
		Role:      models.RoleUser,
		Content:   text,
		Timestamp: time.Now(),
	})
	return op, nil
}

// ResolveSend runs the service call for a pending send and applies the
// outcome. The assistant reply is appended only if the operation's
// conversation is still the selected one; the guard runs at application
// time, not at call time, so a reply arriving after the user navigated away
// is dropped from the view without being lost in the store.
func (m *Manager) ResolveSend(ctx context.Context, op *Operation) error {
	reply, err := m.svc.SendMessage(ctx, op.ConversationID, m.ownerID, op.Text)
	if err != nil {
		// No rollback: the optimistic user message is already durable
		// unless the failure happened before the first store write, and
		// the view converges on the next selection either way.
		op.Status = StatusFailed
		op.Err = err
		return err
	}

	op.Status = StatusConfirmed
	if op.ConversationID == m.selectedID {
		m.messages = append(m.messages, models.Message{
			Role:      models.RoleAssistant,
			Content:   reply,
			Timestamp: time.Now(),
		})
		m.draft = false
	} else {
		m.logger.Debug("send resolved for a deselected conversation",
			zap.String("conversation_id", op.ConversationID))
	}

	m.refreshAfterMutation(ctx)
	return nil
}

// Send is BeginSend followed immediately by ResolveSend.
func (m *Manager) Send(ctx context.Context, text string) (*Operation, error) {
	op, err := m.BeginSend(text)
	if err != nil {
		return nil, err
	}
	if err := m.ResolveSend(ctx, op); err != nil {
		return op, err
	}
	return op, nil
}

// Edit updates the message at index, applying the change locally only after
// the service confirms it.
func (m *Manager) Edit(ctx context.Context, index int, newText string) error {
	if m.selectedID == "" {
		return ErrNoSelection
	}
	if err := m.svc.EditMessage(ctx, m.selectedID, index, newText); err != nil {
		return err
	}

	if index >= 0 && index < len(m.messages) {
		m.messages[index].Content = newText
		m.messages[index].Timestamp = time.Now()
	}
	m.refreshAfterMutation(ctx)
	return nil
}

// DeleteMessage removes the message at index after the service confirms,
// shifting later messages down.
func (m *Manager) DeleteMessage(ctx context.Context, index int) error {
	if m.selectedID == "" {
		return ErrNoSelection
	}
	if err := m.svc.DeleteMessage(ctx, m.selectedID, index); err != nil {
		return err
	}

	if index >= 0 && index < len(m.messages) {
		m.messages = append(m.messages[:index], m.messages[index+1:]...)
	}
	m.refreshAfterMutation(ctx)
	return nil
}

// DeleteConversation removes the selected conversation and clears the view.
func (m *Manager) DeleteConversation(ctx context.Context) error {
	if m.selectedID == "" {
		return ErrNoSelection
	}
	if err := m.svc.DeleteConversation(ctx, m.selectedID); err != nil {
		return err
	}

	m.selectedID = ""
	m.messages = nil
	m.draft = false
	m.refreshAfterMutation(ctx)
	return nil
}

func (m *Manager) refreshAfterMutation(ctx context.Context) {
	if err := m.RefreshList(ctx); err != nil {
		m.logger.Warn("conversation list refresh failed", zap.Error(err))
	}
}

// SelectedID returns the id of the selected conversation, or "".
func (m *Manager) SelectedID() string {
	return m.selectedID
}

// Messages returns a copy of the selected conversation's rendered messages.
func (m *Manager) Messages() []models.Message {
	return append([]models.Message{}, m.messages...)
}

// Conversations returns a copy of the last refreshed conversation list.
func (m *Manager) Conversations() []models.Conversation {
	return append([]models.Conversation{}, m.conversations...)
}
