package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"gochat/internal/common"
	"gochat/internal/config"
	"gochat/internal/metrics"
)

// NewRouter wires the REST routes, the realtime socket and the middleware
// chain. CORS wraps the router so preflights never reach route matching.
func NewRouter(h *ChatHandler, socket http.Handler, m *metrics.Metrics, cfg *config.Config, log zerolog.Logger) http.Handler {
	r := mux.NewRouter()
	r.Use(m.Middleware, common.LoggingMiddleware(log), common.AuthMiddleware, h.Authenticate)

	r.HandleFunc("/", h.Root).Methods(http.MethodGet)
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.Handle("/metrics", m.Handler()).Methods(http.MethodGet)

	r.HandleFunc("/users", h.ListUsers).Methods(http.MethodGet)
	r.HandleFunc("/messages/{peerUserId}", h.GetMessages).Methods(http.MethodGet)
	r.HandleFunc("/messages", h.SendMessage).Methods(http.MethodPost)
	r.Handle("/realtime/{conversationId}", socket).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		common.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "route not found"})
	})

	return common.CORSMiddleware(cfg.Server.AllowedOrigins)(r)
}
