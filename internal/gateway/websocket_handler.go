package gateway

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// WebSocketHandler authenticates and upgrades incoming connections.
type WebSocketHandler struct {
	manager *ConnectionManager
	service *Service
}

// NewWebSocketHandler creates a WebSocket handler.
func NewWebSocketHandler(cm *ConnectionManager, svc *Service) *WebSocketHandler {
	return &WebSocketHandler{manager: cm, service: svc}
}

// HandleConnection verifies the bearer token, upgrades to WebSocket and
// registers the connection. Authentication failures reject before upgrade.
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		http.Error(w, "authentication token required", http.StatusUnauthorized)
		return
	}

	identity, err := h.service.verifier.Verify(token)
	if err != nil {
		http.Error(w, "invalid authentication token", http.StatusUnauthorized)
		return
	}

	ws, err := h.manager.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
		return
	}

	conn := newConnection(uuid.New().String(), identity.UserID, identity.Username, ws, h.manager)
	h.manager.Register(conn)
	h.service.onConnect(conn)
}

// RegisterRoutes registers WebSocket routes with an HTTP mux.
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", h.HandleConnection)
}

// bearerToken pulls the token from the Authorization header or, for browser
// WebSocket clients that cannot set headers, the token query parameter.
func bearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.URL.Query().Get("token")
}
