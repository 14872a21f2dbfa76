package gateway

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/planningpoker/go/internal/metrics"
	"github.com/mcdev12/planningpoker/go/internal/models"
	"github.com/mcdev12/planningpoker/go/internal/session"
)

const maxRequestBodySize = 1 << 20

// StateHandler handles the REST side of the game API
type StateHandler struct {
	registry          *session.Registry
	connectionManager *ConnectionManager
	metrics           *metrics.Metrics
	// apiSecret guards the reset endpoint; empty means reset is never allowed
	apiSecret string
}

// NewStateHandler creates a new state handler
func NewStateHandler(registry *session.Registry, cm *ConnectionManager, m *metrics.Metrics, apiSecret string) *StateHandler {
	return &StateHandler{
		registry:          registry,
		connectionManager: cm,
		metrics:           m,
		apiSecret:         apiSecret,
	}
}

// HandleCreateGame handles POST /api/game
func (h *StateHandler) HandleCreateGame(w http.ResponseWriter, r *http.Request) {
	var user models.User
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodySize)).Decode(&user); err != nil {
		http.Error(w, "invalid user", http.StatusBadRequest)
		return
	}
	if user.ID.IsZero() {
		http.Error(w, "user id is required", http.StatusBadRequest)
		return
	}

	gameID := h.registry.Create(user)
	h.metrics.GamesCreated.Inc()
	h.metrics.ActiveGames.Set(float64(h.registry.Len()))

	writeJSON(w, http.StatusCreated, gameID)
}

// HandleGetGameState handles GET /api/game/{gameID}/state
func (h *StateHandler) HandleGetGameState(w http.ResponseWriter, r *http.Request) {
	gameID, err := models.ParseGameID(r.PathValue("gameID"))
	if err != nil {
		http.Error(w, "invalid game id", http.StatusBadRequest)
		return
	}

	g, err := h.registry.Get(gameID)
	if errors.Is(err, session.ErrGameNotFound) {
		http.Error(w, "game not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Error().Err(err).Str("game_id", gameID.String()).Msg("failed to get game state")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, g)
}

// HandleResetState handles DELETE /api/internal_state. The bearer token must
// match the configured secret; without a configured secret it always fails.
func (h *StateHandler) HandleResetState(w http.ResponseWriter, r *http.Request) {
	if h.apiSecret == "" {
		http.Error(w, "Secret not set", http.StatusUnauthorized)
		return
	}

	token, ok := bearerToken(r)
	if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(h.apiSecret)) != 1 {
		log.Warn().Str("remote_addr", r.RemoteAddr).Msg("rejected state reset")
		http.Error(w, "Wrong token", http.StatusUnauthorized)
		return
	}

	removed := h.registry.ResetAll()
	h.metrics.Resets.Inc()
	h.metrics.ActiveGames.Set(float64(h.registry.Len()))

	log.Warn().Int("games_removed", removed).Msg("internal state cleared")
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("State cleared successfully"))
}

// HandleStats handles GET /api/stats
func (h *StateHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.connectionManager.GetConnectionStats())
}

// HandleHealth handles GET /health
func (h *StateHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		log.Error().Err(err).Msg("failed to write health check response")
	}
}

// RegisterStateRoutes registers the REST routes
func (h *StateHandler) RegisterStateRoutes(mux *http.ServeMux, wrap func(http.Handler) http.Handler) {
	mux.Handle("POST /api/game", wrap(http.HandlerFunc(h.HandleCreateGame)))
	mux.Handle("GET /api/game/{gameID}/state", wrap(http.HandlerFunc(h.HandleGetGameState)))
	mux.Handle("DELETE /api/internal_state", wrap(http.HandlerFunc(h.HandleResetState)))
	mux.Handle("GET /api/stats", wrap(http.HandlerFunc(h.HandleStats)))
	mux.HandleFunc("GET /health", h.HandleHealth)
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
