package handlers

import (
	"errors"

	"chat-relay/internal/registry"
	"chat-relay/internal/relay"

	"github.com/gofiber/fiber/v2"
)

// BroadcastHandler is the administrative side-channel: a trusted caller
// POSTs a JSON body and the relay pushes it to every connection as
// server:broadcast. Responds 503 when the relay has not been started.
func BroadcastHandler(rl *relay.Relay) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body map[string]any
		if err := c.BodyParser(&body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": "invalid request body",
			})
		}

		if err := rl.Broadcast(body); err != nil {
			if errors.Is(err, relay.ErrNotInitialized) {
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
					"success": false,
					"message": "relay not initialized",
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": err.Error(),
			})
		}

		return c.JSON(fiber.Map{
			"success": true,
			"message": "broadcast sent",
			"data":    body,
		})
	}
}

// RoomsHandler lists every room with its member count.
func RoomsHandler(reg *registry.Registry) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(reg.Rooms())
	}
}

// StatsHandler reports live connection and room counts.
func StatsHandler(rl *relay.Relay) fiber.Handler {
	return func(c *fiber.Ctx) error {
		connections, rooms := rl.Stats()
		return c.JSON(fiber.Map{
			"connections": connections,
			"rooms":       rooms,
		})
	}
}
