package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chatnova/backend/internal/auth"
	"github.com/chatnova/backend/internal/chat"
	"github.com/chatnova/backend/internal/models"
	"github.com/chatnova/backend/internal/store"
)

var testSecret = []byte("test-secret")

type mockCompleter struct {
	reply string
	err   error
}

func (m *mockCompleter) Complete(ctx context.Context, prior []models.Message) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.reply, nil
}

func newTestServer(t *testing.T, completer *mockCompleter) (*http.ServeMux, *chat.Service) {
	t.Helper()

	svc := chat.NewService(store.NewMemoryStore(), completer, zap.NewNop())
	handler := NewHandler(svc, zap.NewNop())
	authenticated := auth.Middleware(testSecret, zap.NewNop())

	mux := http.NewServeMux()
	mux.Handle("/api/message", authenticated(http.HandlerFunc(handler.HandleMessage)))
	mux.Handle("/api/messages", authenticated(http.HandlerFunc(handler.GetMessages)))
	mux.Handle("/api/message/edit", authenticated(http.HandlerFunc(handler.EditMessage)))
	mux.Handle("/api/message/delete", authenticated(http.HandlerFunc(handler.DeleteMessage)))
	mux.Handle("/api/conversations", authenticated(http.HandlerFunc(handler.GetConversations)))
	mux.Handle("/api/conversations/delete", authenticated(http.HandlerFunc(handler.DeleteConversation)))
	return mux, svc
}

func doRequest(t *testing.T, mux *http.ServeMux, method, target, body, owner string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))

	if owner != "" {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"userId": owner}).SignedString(testSecret)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestCreateAndListConversations(t *testing.T) {
	mux, _ := newTestServer(t, &mockCompleter{reply: "hi"})

	rec := doRequest(t, mux, http.MethodPost, "/api/conversations", `{"title":"New Chat"}`, "u1")
	require.Equal(t, http.StatusOK, rec.Code)

	var conv models.Conversation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &conv))
	assert.NotEmpty(t, conv.ID)
	assert.Equal(t, "New Chat", conv.Title)
	assert.Empty(t, conv.Messages)

	rec = doRequest(t, mux, http.MethodGet, "/api/conversations", "", "u1")
	require.Equal(t, http.StatusOK, rec.Code)

	var list []models.Conversation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, conv.ID, list[0].ID)

	// Another user sees nothing.
	rec = doRequest(t, mux, http.MethodGet, "/api/conversations", "", "u2")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Empty(t, list)
}

func TestSendMessageEndpoint(t *testing.T) {
	mux, svc := newTestServer(t, &mockCompleter{reply: "assistant says hi"})

	conv, err := svc.CreateConversation(context.Background(), "u1", "New Chat")
	require.NoError(t, err)

	rec := doRequest(t, mux, http.MethodPost, "/api/message?conversation_id="+conv.ID, `{"content":"Hello"}`, "u1")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp MessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "assistant says hi", resp.Reply)

	rec = doRequest(t, mux, http.MethodGet, "/api/messages?conversation_id="+conv.ID, "", "u1")
	require.Equal(t, http.StatusOK, rec.Code)

	var msgs []models.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msgs))
	require.Len(t, msgs, 2)
	assert.Equal(t, models.RoleUser, msgs[0].Role)
	assert.Equal(t, models.RoleAssistant, msgs[1].Role)
}

func TestSendMessage_MissingConversation(t *testing.T) {
	mux, _ := newTestServer(t, &mockCompleter{reply: "hi"})

	rec := doRequest(t, mux, http.MethodPost, "/api/message?conversation_id=missing", `{"content":"Hello"}`, "u1")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSendMessage_CompletionFailure(t *testing.T) {
	mux, svc := newTestServer(t, &mockCompleter{err: models.ErrExternalService})

	conv, err := svc.CreateConversation(context.Background(), "u1", "New Chat")
	require.NoError(t, err)

	rec := doRequest(t, mux, http.MethodPost, "/api/message?conversation_id="+conv.ID, `{"content":"Hello"}`, "u1")
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	// The user message survived the failed completion.
	stored, err := svc.GetConversation(context.Background(), conv.ID, "u1")
	require.NoError(t, err)
	require.Len(t, stored.Messages, 1)
}

func TestEditMessage_BadIndex(t *testing.T) {
	mux, svc := newTestServer(t, &mockCompleter{reply: "hi"})

	conv, err := svc.CreateConversation(context.Background(), "u1", "New Chat")
	require.NoError(t, err)

	rec := doRequest(t, mux, http.MethodPut, "/api/message/edit?conversation_id="+conv.ID, `{"index":3,"content":"x"}`, "u1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteMessageEndpoint(t *testing.T) {
	mux, svc := newTestServer(t, &mockCompleter{reply: "hi"})
	ctx := context.Background()

	conv, err := svc.CreateConversation(ctx, "u1", "New Chat")
	require.NoError(t, err)
	_, err = svc.SendMessage(ctx, conv.ID, "u1", "Hello")
	require.NoError(t, err)

	rec := doRequest(t, mux, http.MethodDelete, "/api/message/delete?conversation_id="+conv.ID+"&index=1", "", "u1")
	require.Equal(t, http.StatusOK, rec.Code)

	stored, err := svc.GetConversation(ctx, conv.ID, "u1")
	require.NoError(t, err)
	require.Len(t, stored.Messages, 1)
	assert.Equal(t, "Hello", stored.Messages[0].Content)
}

func TestDeleteConversationEndpoint(t *testing.T) {
	mux, svc := newTestServer(t, &mockCompleter{reply: "hi"})
	ctx := context.Background()

	conv, err := svc.CreateConversation(ctx, "u1", "New Chat")
	require.NoError(t, err)

	rec := doRequest(t, mux, http.MethodDelete, "/api/conversations/delete?conversation_id="+conv.ID, "", "u1")
	require.Equal(t, http.StatusOK, rec.Code)

	_, err = svc.GetConversation(ctx, conv.ID, "u1")
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestEndpointsRejectMissingToken(t *testing.T) {
	mux, _ := newTestServer(t, &mockCompleter{reply: "hi"})

	rec := doRequest(t, mux, http.MethodGet, "/api/conversations", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleMessage_RejectsWrongMethod(t *testing.T) {
	mux, _ := newTestServer(t, &mockCompleter{reply: "hi"})

	rec := doRequest(t, mux, http.MethodGet, "/api/message?conversation_id=x", "", "u1")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
