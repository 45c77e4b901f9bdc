package handlers

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"chat-relay/internal/models"
	"chat-relay/internal/registry"
	"chat-relay/internal/relay"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T) (*fiber.App, *relay.Relay, *registry.Registry) {
	t.Helper()
	reg := registry.New()
	rl := relay.New(reg, zerolog.Nop())

	app := fiber.New()
	app.Post("/api/broadcast", BroadcastHandler(rl))
	app.Get("/api/rooms", RoomsHandler(reg))
	app.Get("/api/stats", StatsHandler(rl))
	app.Use("/ws", WSUpgradeMiddleware)
	app.Get("/ws", WebSocketHandler(rl, zerolog.Nop()))
	return app, rl, reg
}

func TestBroadcastBeforeStart(t *testing.T) {
	app, _, _ := newTestApp(t)

	req := httptest.NewRequest("POST", "/api/broadcast", strings.NewReader(`{"message":"hi"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "not initialized")
}

func TestBroadcastAfterStart(t *testing.T) {
	app, rl, _ := newTestApp(t)
	rl.Start()

	req := httptest.NewRequest("POST", "/api/broadcast", strings.NewReader(`{"message":"maintenance"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestBroadcastRejectsInvalidBody(t *testing.T) {
	app, rl, _ := newTestApp(t)
	rl.Start()

	req := httptest.NewRequest("POST", "/api/broadcast", strings.NewReader("not json"))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestRoomsListing(t *testing.T) {
	app, rl, _ := newTestApp(t)
	rl.Start()

	resp, err := app.Test(httptest.NewRequest("GET", "/api/rooms", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var rooms []models.RoomInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rooms))
	assert.Len(t, rooms, 3) // default rooms

	ids := make(map[string]bool)
	for _, r := range rooms {
		ids[r.ID] = true
	}
	assert.True(t, ids["general"])
}

func TestStats(t *testing.T) {
	app, rl, _ := newTestApp(t)
	rl.Start()

	resp, err := app.Test(httptest.NewRequest("GET", "/api/stats", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var stats struct {
		Connections int `json:"connections"`
		Rooms       int `json:"rooms"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Zero(t, stats.Connections)
	assert.Equal(t, 3, stats.Rooms)
}

func TestPlainHTTPOnWebSocketRoute(t *testing.T) {
	app, rl, _ := newTestApp(t)
	rl.Start()

	resp, err := app.Test(httptest.NewRequest("GET", "/ws", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}
