package realtime

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"gochat/internal/chat/models"
	"gochat/internal/common"
	"gochat/internal/identity"
	"gochat/internal/metrics"
)

// Authorizer decides whether a token may watch a conversation.
type Authorizer interface {
	AuthorizeSubscription(ctx context.Context, token, conversationID string) (*identity.Principal, error)
}

// SocketHandler serves GET /realtime/{conversationId}. After the upgrade it
// sends {"type":"connected"} and then one INSERT frame per new message.
type SocketHandler struct {
	notifier Notifier
	auth     Authorizer
	upgrader websocket.Upgrader
	metrics  *metrics.Metrics
	log      zerolog.Logger
}

func NewSocketHandler(notifier Notifier, auth Authorizer, allowedOrigins []string, m *metrics.Metrics, log zerolog.Logger) *SocketHandler {
	allowAll := len(allowedOrigins) == 0 || lo.Contains(allowedOrigins, "*")
	return &SocketHandler{
		notifier: notifier,
		auth:     auth,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return allowAll || origin == "" || lo.Contains(allowedOrigins, origin)
			},
		},
		metrics: m,
		log:     log.With().Str("component", "realtime_socket").Logger(),
	}
}

func (h *SocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conversationID := mux.Vars(r)["conversationId"]

	token := common.TokenFromContext(r.Context())
	if token == "" {
		token = common.BearerToken(r)
	}

	principal, err := h.auth.AuthorizeSubscription(r.Context(), token, conversationID)
	if err != nil {
		common.WriteError(w, err)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response
		h.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	conn := NewConnection(principal.ID, ws)
	conn.Start()

	connected, _ := json.Marshal(common.MessageEvent{Type: common.EventConnected, ConversationID: conversationID})
	_ = conn.Send(connected)

	sub := h.notifier.Subscribe(conversationID, func(msg *models.Message) {
		payload, err := json.Marshal(common.NewInsertEvent(msg))
		if err != nil {
			return
		}
		if err := conn.Send(payload); err != nil {
			h.metrics.RealtimeDroppedTotal.WithLabelValues("slow_consumer").Inc()
		}
	})

	h.log.Debug().
		Str("conversation_id", conversationID).
		Str("user_id", principal.ID).
		Str("connection_id", conn.ID).
		Msg("realtime subscriber attached")

	conn.ReadLoop()

	sub.Cancel()
	conn.Close(websocket.CloseNormalClosure, "bye")
}
