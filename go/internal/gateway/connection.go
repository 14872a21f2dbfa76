package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/mcdev12/planningpoker/go/internal/game"
	"github.com/mcdev12/planningpoker/go/internal/models"
	"github.com/mcdev12/planningpoker/go/internal/session"
)

var (
	errSubscriptionClosed = errors.New("subscription closed")
	errConnectionClosed   = errors.New("connection closed")
)

// Connection is one client attached to one game.
//
// Once joined it runs two loops: the read pump applies client actions to the
// game and publishes them, the write pump forwards the game's hub to the
// socket. Whichever stops first stops the other.
type Connection struct {
	ID      string
	GameID  models.GameID
	Conn    *websocket.Conn
	Manager *ConnectionManager

	sub     *session.Subscription
	limiter *rate.Limiter

	// joinedUser is the user announced by this connection's last PlayerJoined.
	// It is only touched by the read pump and, after both pumps stop, by leave.
	joinedUser *models.UserID

	// Connection metadata
	ConnectedAt time.Time
}

func newConnection(cm *ConnectionManager, conn *websocket.Conn, gameID models.GameID) *Connection {
	c := &Connection{
		ID:          newConnectionID(),
		GameID:      gameID,
		Conn:        conn,
		Manager:     cm,
		ConnectedAt: cm.clock.Now(),
	}
	if cm.config.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cm.config.RateLimit), max(cm.config.RateBurst, 1))
	}
	return c
}

// Run joins the game and relays until the socket or the game goes away
func (c *Connection) Run(ctx context.Context) {
	defer c.Conn.Close()

	snapshot, sub, err := c.Manager.registry.Join(c.GameID)
	if err != nil {
		log.Warn().
			Str("connection_id", c.ID).
			Str("game_id", c.GameID.String()).
			Msg("game not found")
		c.sendEvent(game.GameNotFound{GameID: c.GameID})
		c.writeClose(websocket.CloseNormalClosure, "game not found")
		return
	}
	c.sub = sub

	if err := c.sendEvent(game.CurrentState{Game: snapshot}); err != nil {
		log.Error().
			Err(err).
			Str("connection_id", c.ID).
			Msg("error sending game state")
		sub.Close()
		return
	}

	c.Manager.registerConnection(c)
	defer c.Manager.unregisterConnection(c)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.writePump(gctx) })
	g.Go(func() error { return c.readPump(gctx) })
	g.Go(func() error {
		// unblocks the read pump, which does not watch the context
		<-gctx.Done()
		return c.Conn.Close()
	})

	err = g.Wait()
	log.Debug().
		Err(err).
		Str("connection_id", c.ID).
		Msg("connection loops stopped")

	sub.Close()
	c.leave()
}

// leave tells the game that the user of this connection disconnected
func (c *Connection) leave() {
	if c.joinedUser == nil {
		log.Debug().
			Str("connection_id", c.ID).
			Msg("connection closed before any player joined")
		return
	}

	userID := *c.joinedUser
	action := game.PlayerLeft{}
	msg, err := game.MarshalEvent(game.GameMessage{UserID: userID, Action: action})
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal PlayerLeft")
		return
	}

	err = c.Manager.registry.Dispatch(c.GameID, func(g models.Game) models.Game {
		return game.Reduce(g, userID, action)
	}, msg)
	if err != nil {
		log.Warn().
			Err(err).
			Str("game_id", c.GameID.String()).
			Str("user_id", userID.String()).
			Msg("could not announce departure")
		return
	}

	c.Manager.metrics.ActionsApplied.WithLabelValues(string(action.Kind())).Inc()
	log.Info().
		Str("game_id", c.GameID.String()).
		Str("user_id", userID.String()).
		Msg("player left")
}

// writePump forwards hub messages and keepalive pings to the socket
func (c *Connection) writePump(ctx context.Context) error {
	ticker := c.Manager.clock.NewTicker(c.Manager.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return errConnectionClosed

		case message, ok := <-c.sub.C():
			if !ok {
				// The hub closed or dropped us for being too slow
				c.writeClose(websocket.CloseGoingAway, "game closed")
				return errSubscriptionClosed
			}
			if err := c.write(websocket.TextMessage, message); err != nil {
				return fmt.Errorf("write message: %w", err)
			}

		case <-ticker.Chan():
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return fmt.Errorf("write ping: %w", err)
			}
		}
	}
}

// readPump applies client frames to the game until the socket fails
func (c *Connection) readPump(ctx context.Context) error {
	cfg := c.Manager.config
	c.Conn.SetReadLimit(cfg.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	})

	for {
		messageType, message, err := c.Conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			return fmt.Errorf("read message: %w", err)
		}
		c.Conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))

		if messageType != websocket.TextMessage {
			c.dropMessage("binary", nil)
			continue
		}
		// gorilla does not validate text frames and they are relayed verbatim
		if !utf8.Valid(message) {
			c.dropMessage("invalid_utf8", nil)
			continue
		}
		c.handleClientMessage(message)
	}
}

// handleClientMessage reduces one client frame into the game and publishes
// the frame verbatim. Frames that do not parse are ignored.
func (c *Connection) handleClientMessage(message []byte) {
	if c.limiter != nil && !c.limiter.Allow() {
		c.dropMessage("rate_limited", nil)
		return
	}

	msg, err := game.ParseGameMessage(message)
	if err != nil {
		c.dropMessage("malformed", err)
		return
	}

	if joined, ok := msg.Action.(game.PlayerJoined); ok {
		userID := joined.User.ID
		c.joinedUser = &userID
		log.Info().
			Str("connection_id", c.ID).
			Str("game_id", c.GameID.String()).
			Str("user_id", userID.String()).
			Msg("player joined")
	}

	err = c.Manager.registry.Dispatch(c.GameID, func(g models.Game) models.Game {
		return game.Reduce(g, msg.UserID, msg.Action)
	}, message)
	if err != nil {
		log.Warn().
			Err(err).
			Str("game_id", c.GameID.String()).
			Msg("trying to update game that doesn't exist")
		c.Manager.metrics.MessagesDropped.WithLabelValues("game_not_found").Inc()
		return
	}

	c.Manager.metrics.ActionsApplied.WithLabelValues(string(msg.Action.Kind())).Inc()
}

func (c *Connection) dropMessage(reason string, err error) {
	c.Manager.metrics.MessagesDropped.WithLabelValues(reason).Inc()
	log.Debug().
		Err(err).
		Str("connection_id", c.ID).
		Str("reason", reason).
		Msg("ignoring client message")
}

func (c *Connection) sendEvent(event game.Event) error {
	data, err := game.MarshalEvent(event)
	if err != nil {
		return err
	}
	return c.write(websocket.TextMessage, data)
}

func (c *Connection) write(messageType int, data []byte) error {
	c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
	return c.Conn.WriteMessage(messageType, data)
}

func (c *Connection) writeClose(code int, text string) {
	c.write(websocket.CloseMessage, websocket.FormatCloseMessage(code, text))
}
