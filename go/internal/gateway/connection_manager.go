package gateway

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/planningpoker/go/internal/metrics"
	"github.com/mcdev12/planningpoker/go/internal/models"
	"github.com/mcdev12/planningpoker/go/internal/session"
)

// ConnectionManager upgrades game connections and tracks the open ones
type ConnectionManager struct {
	registry *session.Registry
	metrics  *metrics.Metrics
	clock    clockwork.Clock

	// Upgrader for WebSocket connections
	upgrader websocket.Upgrader

	// Connection configuration
	config ConnectionConfig

	// Open connections organized by game ID
	gameConnections map[models.GameID]map[*Connection]struct{}
	mu              sync.RWMutex
	wg              sync.WaitGroup

	// ctx is the parent of every connection; Shutdown cancels it
	ctx    context.Context
	cancel context.CancelFunc
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	// RateLimit is the sustained number of inbound frames per second; 0 disables limiting
	RateLimit   float64
	RateBurst   int
	CheckOrigin func(r *http.Request) bool
}

// ConnectionStats is a point in time view of the open connections
type ConnectionStats struct {
	TotalConnections int            `json:"total_connections"`
	ActiveGames      int            `json:"active_games"`
	GameConnections  map[string]int `json:"game_connections"`
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  16 << 20,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		RateLimit:       0,
		RateBurst:       40,
		CheckOrigin:     allowOrigins([]string{"*"}),
	}
}

// NewConnectionManager creates a new WebSocket connection manager
func NewConnectionManager(registry *session.Registry, m *metrics.Metrics, clock clockwork.Clock, config ConnectionConfig) *ConnectionManager {
	ctx, cancel := context.WithCancel(context.Background())
	return &ConnectionManager{
		registry: registry,
		metrics:  m,
		clock:    clock,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:          config,
		gameConnections: make(map[models.GameID]map[*Connection]struct{}),
		ctx:             ctx,
		cancel:          cancel,
	}
}

// ServeGame upgrades the request and runs the connection until it closes.
// It blocks for the lifetime of the connection.
func (cm *ConnectionManager) ServeGame(w http.ResponseWriter, r *http.Request, gameID models.GameID) error {
	// registering under mu keeps wg.Add ordered before Shutdown's Wait
	cm.mu.Lock()
	if cm.ctx.Err() != nil {
		cm.mu.Unlock()
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return fmt.Errorf("connection manager closed")
	}
	cm.wg.Add(1)
	cm.mu.Unlock()
	defer cm.wg.Done()

	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already replied to the client
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := newConnection(cm, conn, gameID)

	log.Info().
		Str("connection_id", connection.ID).
		Str("game_id", gameID.String()).
		Str("remote_addr", r.RemoteAddr).
		Msg("WebSocket connection established")

	connection.Run(cm.ctx)
	return nil
}

// registerConnection adds a connection to the manager
func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.gameConnections[conn.GameID] == nil {
		cm.gameConnections[conn.GameID] = make(map[*Connection]struct{})
	}
	cm.gameConnections[conn.GameID][conn] = struct{}{}
	cm.metrics.ActiveConnections.Inc()

	log.Debug().
		Str("connection_id", conn.ID).
		Str("game_id", conn.GameID.String()).
		Int("total_connections", len(cm.gameConnections[conn.GameID])).
		Msg("connection registered")
}

// unregisterConnection removes a connection from the manager
func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	connections, exists := cm.gameConnections[conn.GameID]
	if !exists {
		return
	}
	if _, exists := connections[conn]; !exists {
		return
	}
	delete(connections, conn)
	cm.metrics.ActiveConnections.Dec()

	// Clean up empty game connection pools
	if len(connections) == 0 {
		delete(cm.gameConnections, conn.GameID)
	}

	log.Info().
		Str("connection_id", conn.ID).
		Str("game_id", conn.GameID.String()).
		Dur("connected_for", cm.clock.Since(conn.ConnectedAt)).
		Msg("connection unregistered")
}

// GetConnectionStats returns statistics about open connections
func (cm *ConnectionManager) GetConnectionStats() ConnectionStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	stats := ConnectionStats{
		ActiveGames:     cm.registry.Len(),
		GameConnections: make(map[string]int, len(cm.gameConnections)),
	}
	for gameID, connections := range cm.gameConnections {
		stats.TotalConnections += len(connections)
		stats.GameConnections[gameID.String()] = len(connections)
	}
	return stats
}

// Shutdown closes every open connection and waits for them to finish, or
// for ctx to expire
func (cm *ConnectionManager) Shutdown(ctx context.Context) error {
	cm.mu.Lock()
	cm.cancel()
	cm.mu.Unlock()

	done := make(chan struct{})
	go func() {
		cm.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("all game connections closed")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for connections: %w", ctx.Err())
	}
}

// allowOrigins builds an origin check. "*" allows every origin; requests
// without an Origin header, like non-browser clients, are always allowed.
func allowOrigins(origins []string) func(r *http.Request) bool {
	if len(origins) == 0 || slices.Contains(origins, "*") {
		return func(r *http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(origins, origin)
	}
}

func newConnectionID() string {
	return uuid.New().String()
}
