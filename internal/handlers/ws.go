package handlers

import (
	"sync"

	"chat-relay/internal/models"
	"chat-relay/internal/relay"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// wsSender adapts a fiber websocket connection to the relay's Sender.
// Fiber's websocket implementation is not safe for concurrent writes, and
// deliveries originate from many reader goroutines, so writes are
// serialized here.
type wsSender struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *wsSender) Send(env models.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(env)
}

func (s *wsSender) Close() error {
	return s.conn.Close()
}

// WebSocketHandler runs one connection: register with the relay, pump the
// read loop into it, and disconnect when the transport drops.
func WebSocketHandler(rl *relay.Relay, log zerolog.Logger) fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		connID := uuid.New().String()

		rl.Connect(connID, &wsSender{conn: c})
		defer rl.Disconnect(connID)

		for {
			msgType, msg, err := c.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Warn().Err(err).Str("connId", connID).Msg("read error")
				}
				break
			}
			if msgType != websocket.TextMessage {
				continue
			}
			rl.HandleEvent(connID, msg)
		}
	})
}

// WSUpgradeMiddleware rejects plain HTTP requests on the websocket route.
func WSUpgradeMiddleware(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		c.Locals("allowed", true)
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}
