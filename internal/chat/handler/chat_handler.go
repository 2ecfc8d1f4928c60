// Package handler is the REST surface of the chat service
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"gochat/internal/chat/service"
	"gochat/internal/common"
	"gochat/internal/identity"
)

const maxRequestBody = 64 << 10

type SendMessageRequest struct {
	ConversationID string `json:"conversation_id" validate:"required"`
	Message        string `json:"message" validate:"required"`
}

type ChatHandler struct {
	chatService service.ChatService
	store       common.Pinger
	log         zerolog.Logger
}

func NewChatHandler(chatService service.ChatService, store common.Pinger, log zerolog.Logger) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		store:       store,
		log:         log.With().Str("component", "chat_handler").Logger(),
	}
}

func (h *ChatHandler) Root(w http.ResponseWriter, r *http.Request) {
	common.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "gochat"})
}

func (h *ChatHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.log.Error().Err(err).Msg("store health check failed")
		common.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	common.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Authenticate resolves the bearer token once per request, before any body is
// read, and puts the Principal on the context. Public paths carry no token and
// pass through.
func (h *ChatHandler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := common.TokenFromContext(r.Context())
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		principal, err := h.chatService.Authenticate(r.Context(), token)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(identity.WithPrincipal(r.Context(), principal)))
	})
}

// ListUsers serves GET /users.
func (h *ChatHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.chatService.ListUsers(r.Context(), common.TokenFromContext(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, users)
}

// GetMessages serves GET /messages/{peerUserId}: the caller's conversation
// with that peer, created on first contact, and its messages oldest first.
func (h *ChatHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	peerUserID := mux.Vars(r)["peerUserId"]

	history, err := h.chatService.FetchHistory(r.Context(), common.TokenFromContext(r.Context()), peerUserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, history)
}

// SendMessage serves POST /messages.
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil {
		h.fail(w, r, fmt.Errorf("%w: malformed JSON body", common.ErrInvalidRequest))
		return
	}
	if err := common.ValidateStruct(req); err != nil {
		h.fail(w, r, err)
		return
	}

	msg, err := h.chatService.SendMessage(r.Context(), common.TokenFromContext(r.Context()), req.ConversationID, req.Message)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, msg)
}

func (h *ChatHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if common.HTTPStatus(err) >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	common.WriteError(w, err)
}
