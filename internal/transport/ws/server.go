package ws

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/parley-chat/server/internal/metrics"
)

// TokenVerifier resolves an opaque signed token to a user id.
type TokenVerifier interface {
	VerifyToken(token string) (userID string, err error)
}

type Server struct {
	upgrader  websocket.Upgrader
	registry  *Registry
	verifier  TokenVerifier
	pingEvery time.Duration
}

func NewServer(registry *Registry, verifier TokenVerifier) *Server {
	return &Server{
		registry: registry,
		verifier: verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		pingEvery: 15 * time.Second,
	}
}

// WS endpoint: GET /ws/rooms/{id}?token=...
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	userID, err := s.verifier.VerifyToken(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	roomID := chi.URLParam(r, "id")
	if roomID == "" {
		http.Error(w, "missing room id", http.StatusBadRequest)
		return
	}

	wsConn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "room", roomID, "err", err)
		return
	}

	c := newConn(wsConn)
	hub, err := s.registry.Join(r.Context(), roomID, c)
	if err != nil {
		slog.Error("ws join failed", "room", roomID, "user", userID, "err", err)
		c.shutdown()
		return
	}

	slog.Debug("ws connected", "room", roomID, "user", userID)
	metrics.WSConnections.Inc()
	defer metrics.WSConnections.Dec()

	go c.writePump(s.pingEvery)
	c.readPump(hub, s.pingEvery)
}
