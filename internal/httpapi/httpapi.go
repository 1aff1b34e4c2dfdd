package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/gavel/internal/auth"
	"github.com/mcdev12/gavel/internal/metrics"
	"github.com/mcdev12/gavel/internal/store"
)

// Handler serves the REST sideline: login, item listing, time sync and the
// metrics dashboard. The realtime path does not depend on any of it.
type Handler struct {
	store   *store.Store
	auth    *auth.Service
	metrics *metrics.Metrics
	clock   clockwork.Clock
}

// NewHandler creates the REST handler.
func NewHandler(s *store.Store, a *auth.Service, m *metrics.Metrics, clock clockwork.Clock) *Handler {
	return &Handler{store: s, auth: a, metrics: m, clock: clock}
}

// RegisterRoutes registers all REST routes.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /auth/login", h.handleLogin)
	mux.HandleFunc("GET /auth/verify", h.handleVerify)
	mux.HandleFunc("GET /api/items", h.handleListItems)
	mux.HandleFunc("GET /api/items/{id}", h.handleGetItem)
	mux.HandleFunc("GET /api/time", h.handleTime)
	mux.HandleFunc("GET /api/metrics", h.handleMetrics)
	mux.HandleFunc("GET /health", h.handleHealth)
}

type errorBody struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *errorBody  `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, envelope{Success: false, Error: &errorBody{Message: message, Code: code}})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "INVALID_BODY")
		return
	}

	token, user, err := h.auth.Login(req.Username)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidUsername) {
			writeError(w, http.StatusBadRequest, "Username must be at least 2 characters", "INVALID_USERNAME")
			return
		}
		log.Error().Err(err).Msg("login failed")
		writeError(w, http.StatusInternalServerError, "Login failed", "LOGIN_ERROR")
		return
	}

	writeJSON(w, http.StatusOK, envelope{Success: true, Data: map[string]interface{}{
		"token": token,
		"user": map[string]interface{}{
			"id":       user.ID,
			"username": user.Username,
			"avatar":   user.Avatar,
		},
	}})
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		writeError(w, http.StatusUnauthorized, "No token provided", "NO_TOKEN")
		return
	}

	identity, err := h.auth.Verify(strings.TrimPrefix(header, "Bearer "))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid token", "INVALID_TOKEN")
		return
	}

	writeJSON(w, http.StatusOK, envelope{Success: true, Data: identity})
}

func (h *Handler) handleListItems(w http.ResponseWriter, r *http.Request) {
	auctions := h.store.GetAllAuctions()

	items := make([]map[string]interface{}, 0, len(auctions))
	for _, a := range auctions {
		items = append(items, map[string]interface{}{
			"id":            a.ID,
			"title":         a.Title,
			"description":   a.Description,
			"imageUrl":      a.ImageURL,
			"startingPrice": a.StartingPrice,
			"currentBid":    a.CurrentBid,
			"currentBidder": a.CurrentBidder,
			"bidCount":      a.BidCount(),
			"endTime":       a.EndTime,
			"status":        a.Status,
		})
	}

	writeJSON(w, http.StatusOK, envelope{Success: true, Data: items})
}

func (h *Handler) handleGetItem(w http.ResponseWriter, r *http.Request) {
	auction, err := h.store.GetAuction(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Auction not found", "NOT_FOUND")
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: auction})
}

func (h *Handler) handleTime(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: map[string]interface{}{
		"serverTime": h.clock.Now().UnixMilli(),
	}})
}

func (h *Handler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: h.metrics.Snapshot()})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "ok",
		"timestamp": h.clock.Now().UnixMilli(),
	}); err != nil {
		log.Error().Err(err).Msg("failed to write health check response")
	}
}
