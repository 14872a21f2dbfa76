package gateway

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mcdev12/planningpoker/go/internal/config"
	"github.com/mcdev12/planningpoker/go/internal/metrics"
	"github.com/mcdev12/planningpoker/go/internal/models"
	"github.com/mcdev12/planningpoker/go/internal/session"
)

// Service is the planning poker gateway: game registry, WebSocket connections
// and the REST endpoints around them
type Service struct {
	config            config.Config
	registry          *session.Registry
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	stateHandler      *StateHandler
	mirror            EventMirror
	metrics           *metrics.Metrics
	promRegistry      *prometheus.Registry
}

// NewService wires a gateway. mirror may be nil.
func NewService(cfg config.Config, mirror EventMirror, clock clockwork.Clock, promRegistry *prometheus.Registry) *Service {
	if mirror == nil {
		mirror = NopMirror{}
	}
	m := metrics.New(promRegistry)

	registry := session.NewRegistry(session.Options{
		BufferSize: cfg.WebSocket.HubBufferSize,
		OnPublish: func(id models.GameID, msg []byte) {
			mirror.Mirror(id, msg)
		},
		OnSubscriberDropped: m.SubscribersDropped.Inc,
	})

	connectionConfig := DefaultConnectionConfig()
	connectionConfig.WriteTimeout = cfg.WebSocket.WriteTimeout
	connectionConfig.ReadTimeout = cfg.WebSocket.ReadTimeout
	connectionConfig.PingInterval = cfg.WebSocket.PingInterval
	connectionConfig.MaxMessageSize = cfg.WebSocket.MaxMessageSize
	connectionConfig.RateLimit = cfg.WebSocket.RateLimit
	connectionConfig.RateBurst = cfg.WebSocket.RateBurst
	connectionConfig.CheckOrigin = allowOrigins(cfg.AllowedOrigins)

	connectionManager := NewConnectionManager(registry, m, clock, connectionConfig)

	return &Service{
		config:            cfg,
		registry:          registry,
		connectionManager: connectionManager,
		wsHandler:         NewWebSocketHandler(connectionManager),
		stateHandler:      NewStateHandler(registry, connectionManager, m, cfg.APISecret),
		mirror:            mirror,
		metrics:           m,
		promRegistry:      promRegistry,
	}
}

// Registry exposes the game registry
func (s *Service) Registry() *session.Registry {
	return s.registry
}

// RegisterRoutes registers every HTTP route of the gateway
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	s.stateHandler.RegisterStateRoutes(mux, accessLog)
	mux.Handle("GET /metrics", metrics.Handler(s.promRegistry))
	if s.config.StaticDir != "" {
		registerStaticRoutes(mux, s.config.StaticDir)
	}
	log.Info().Msg("gateway routes registered")
}

// Handler returns the complete HTTP handler: routes, CORS and h2c
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodDelete,
		},
		AllowedOrigins: s.config.AllowedOrigins,
		AllowedHeaders: []string{"*"},
	})

	handler := hlog.NewHandler(log.Logger)(c.Handler(mux))
	return h2c.NewHandler(handler, &http2.Server{})
}

// Shutdown closes every connection and game and stops the event mirror
func (s *Service) Shutdown(ctx context.Context) error {
	log.Info().Msg("gateway service shutting down")

	err := s.connectionManager.Shutdown(ctx)
	s.registry.ResetAll()
	s.metrics.ActiveGames.Set(0)

	if mirrorErr := s.mirror.Close(); mirrorErr != nil {
		log.Error().Err(mirrorErr).Msg("failed to stop event mirror")
	}

	log.Info().Msg("gateway service stopped")
	return err
}

// accessLog logs one line per REST request
func accessLog(next http.Handler) http.Handler {
	return hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		level := zerolog.InfoLevel
		if status >= http.StatusInternalServerError {
			level = zerolog.ErrorLevel
		}
		hlog.FromRequest(r).WithLevel(level).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	})(next)
}

// registerStaticRoutes serves built frontend assets from dir and falls back
// to index.html for client side routes
func registerStaticRoutes(mux *http.ServeMux, dir string) {
	mux.Handle("GET /assets/", http.StripPrefix("/assets/", http.FileServer(http.Dir(dir))))

	index := filepath.Join(dir, "index.html")
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			http.NotFound(w, r)
			return
		}
		if _, err := os.Stat(index); err != nil {
			http.NotFound(w, r)
			return
		}
		http.ServeFile(w, r, index)
	})
}
