package gateway

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/planningpoker/go/internal/models"
)

// EventMirror receives a copy of every message published to a game's hub.
// Mirror is called while the game is locked and must not block.
type EventMirror interface {
	Mirror(gameID models.GameID, msg []byte)
	Close() error
}

// NopMirror discards everything
type NopMirror struct{}

func (NopMirror) Mirror(models.GameID, []byte) {}
func (NopMirror) Close() error                 { return nil }

// NATSMirrorConfig holds configuration for the NATS event mirror
type NATSMirrorConfig struct {
	URL           string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultNATSMirrorConfig returns default NATS mirror configuration
func DefaultNATSMirrorConfig() NATSMirrorConfig {
	return NATSMirrorConfig{
		URL:           nats.DefaultURL,
		SubjectPrefix: "poker.games",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// NATSMirror publishes game messages on core NATS, one subject per game
type NATSMirror struct {
	nc     *nats.Conn
	config NATSMirrorConfig
}

// NewNATSMirror connects to NATS
func NewNATSMirror(config NATSMirrorConfig) (*NATSMirror, error) {
	opts := []nats.Option{
		nats.Name("planningpoker-gateway"),
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	log.Info().
		Str("url", nc.ConnectedUrl()).
		Str("subject_prefix", config.SubjectPrefix).
		Msg("NATS event mirror connected")

	return &NATSMirror{nc: nc, config: config}, nil
}

// Mirror publishes msg on the game's subject. Publishing is buffered by the
// NATS client, so this does not wait for the server.
func (m *NATSMirror) Mirror(gameID models.GameID, msg []byte) {
	subject := MirrorSubject(m.config.SubjectPrefix, gameID)
	if err := m.nc.Publish(subject, msg); err != nil {
		log.Error().
			Err(err).
			Str("subject", subject).
			Msg("failed to mirror game message")
	}
}

// Close flushes pending messages and closes the connection
func (m *NATSMirror) Close() error {
	log.Info().Msg("stopping NATS event mirror")
	if err := m.nc.Drain(); err != nil {
		return fmt.Errorf("drain NATS connection: %w", err)
	}
	return nil
}

// MirrorSubject returns the NATS subject for a game
func MirrorSubject(prefix string, gameID models.GameID) string {
	if prefix == "" {
		return gameID.String()
	}
	return prefix + "." + gameID.String()
}
