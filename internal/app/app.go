package app

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"chat-relay/internal/handlers"
	"chat-relay/internal/registry"
	"chat-relay/internal/relay"
	"chat-relay/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Run wires the relay into a Fiber server and blocks until SIGINT/SIGTERM.
// The relay is constructed once here and injected into the handlers; nothing
// reaches it through package-level state.
func Run() {
	utils.LoadEnv()
	log := newLogger()

	reg := registry.New()
	rl := relay.New(reg, log)
	rl.Start()

	app := fiber.New()

	// Middleware
	app.Use(logger.New())
	app.Use(recover.New())
	app.Use(cors.New())

	// Routes
	api := app.Group("/api")
	api.Post("/broadcast", handlers.BroadcastHandler(rl))
	api.Get("/rooms", handlers.RoomsHandler(reg))
	api.Get("/stats", handlers.StatsHandler(rl))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// WebSocket Route
	app.Use("/ws", handlers.WSUpgradeMiddleware)
	app.Get("/ws", handlers.WebSocketHandler(rl, log))

	// Start Server
	port := utils.GetEnv("PORT", "3001")
	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Fatal().Err(err).Msg("listen")
		}
	}()
	log.Info().Str("port", port).Msg("server listening")

	// Graceful Shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	<-c // Block until signal
	log.Info().Msg("gracefully shutting down")
	rl.Shutdown()
	_ = app.Shutdown()
	log.Info().Msg("server shutdown complete")
}

func newLogger() zerolog.Logger {
	level, err := zerolog.ParseLevel(utils.GetEnv("LOG_LEVEL", "info"))
	if err != nil {
		level = zerolog.InfoLevel
	}

	if utils.GetEnv("ENV", "development") == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			Level(level).
			With().
			Timestamp().
			Logger()
	}
	return zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
}
