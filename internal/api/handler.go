package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/chatnova/backend/internal/auth"
	"github.com/chatnova/backend/internal/chat"
	"github.com/chatnova/backend/internal/models"
)

type Handler struct {
	svc    *chat.Service
	logger *zap.Logger
}

func NewHandler(svc *chat.Service, logger *zap.Logger) *Handler {
	return &Handler{
		svc:    svc,
		logger: logger,
	}
}

type MessageRequest struct {
	Content string `json:"content"`
}

type MessageResponse struct {
	Reply string `json:"reply"`
}

type CreateConversationRequest struct {
	Title string `json:"title"`
}

type EditMessageRequest struct {
	Index   int    `json:"index"`
	Content string `json:"content"`
}

// HandleMessage sends a user message into a conversation and returns the
// assistant reply. A persisted user message is not retracted when the reply
// fails; the client may retry the send.
func (h *Handler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	convID := r.URL.Query().Get("conversation_id")
	if convID == "" {
		http.Error(w, "Invalid conversation ID", http.StatusBadRequest)
		return
	}

	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Content == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	reply, err := h.svc.SendMessage(r.Context(), convID, auth.OwnerID(r.Context()), req.Content)
	if err != nil {
		h.logger.Error("failed to send message",
			zap.Error(err),
			zap.String("conversation_id", convID))
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, MessageResponse{Reply: reply})
}

// GetConversations lists the caller's conversations on GET and creates a new
// one on POST.
func (h *Handler) GetConversations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		conversations, err := h.svc.ListConversations(r.Context(), auth.OwnerID(r.Context()))
		if err != nil {
			h.logger.Error("failed to list conversations", zap.Error(err))
			h.writeError(w, err)
			return
		}
		h.writeJSON(w, conversations)

	case http.MethodPost:
		var req CreateConversationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if req.Title == "" {
			req.Title = "New Chat"
		}

		conversation, err := h.svc.CreateConversation(r.Context(), auth.OwnerID(r.Context()), req.Title)
		if err != nil {
			h.logger.Error("failed to create conversation", zap.Error(err))
			h.writeError(w, err)
			return
		}
		h.writeJSON(w, conversation)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	convID := r.URL.Query().Get("conversation_id")
	if convID == "" {
		http.Error(w, "Invalid conversation ID", http.StatusBadRequest)
		return
	}

	conv, err := h.svc.GetConversation(r.Context(), convID, auth.OwnerID(r.Context()))
	if err != nil {
		h.logger.Error("failed to get messages", zap.Error(err), zap.String("conversation_id", convID))
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, conv.Messages)
}

func (h *Handler) EditMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	convID := r.URL.Query().Get("conversation_id")
	if convID == "" {
		http.Error(w, "Invalid conversation ID", http.StatusBadRequest)
		return
	}

	var req EditMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.svc.EditMessage(r.Context(), convID, req.Index, req.Content); err != nil {
		h.logger.Error("failed to edit message",
			zap.Error(err),
			zap.String("conversation_id", convID),
			zap.Int("index", req.Index))
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	convID := r.URL.Query().Get("conversation_id")
	if convID == "" {
		http.Error(w, "Invalid conversation ID", http.StatusBadRequest)
		return
	}
	index, err := strconv.Atoi(r.URL.Query().Get("index"))
	if err != nil {
		http.Error(w, "Invalid message index", http.StatusBadRequest)
		return
	}

	if err := h.svc.DeleteMessage(r.Context(), convID, index); err != nil {
		h.logger.Error("failed to delete message",
			zap.Error(err),
			zap.String("conversation_id", convID),
			zap.Int("index", index))
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	convID := r.URL.Query().Get("conversation_id")
	if convID == "" {
		http.Error(w, "Invalid conversation ID", http.StatusBadRequest)
		return
	}

	if err := h.svc.DeleteConversation(r.Context(), convID); err != nil {
		h.logger.Error("failed to delete conversation", zap.Error(err), zap.String("conversation_id", convID))
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		http.Error(w, "Conversation not found", http.StatusNotFound)
	case errors.Is(err, models.ErrIndexOutOfRange):
		http.Error(w, "Message index out of range", http.StatusBadRequest)
	case errors.Is(err, models.ErrUnauthenticated):
		http.Error(w, "Unauthenticated", http.StatusUnauthorized)
	case errors.Is(err, models.ErrExternalService):
		http.Error(w, "Upstream service error", http.StatusBadGateway)
	default:
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
