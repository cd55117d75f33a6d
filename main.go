package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/NivasCh/chatrelay-backend/database"
	"github.com/NivasCh/chatrelay-backend/internal/events"
	"github.com/NivasCh/chatrelay-backend/internal/handlers"
	"github.com/NivasCh/chatrelay-backend/internal/jobs"
	"github.com/NivasCh/chatrelay-backend/internal/models"
	"github.com/NivasCh/chatrelay-backend/internal/realtime"
	"github.com/NivasCh/chatrelay-backend/internal/routes"
	"github.com/NivasCh/chatrelay-backend/internal/services"
	"github.com/NivasCh/chatrelay-backend/internal/storage"
)

const version = "1.0.0"

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load .env file for local development
	if os.Getenv("INSTANCE_CONNECTION_NAME") == "" {
		if err := godotenv.Load(".env"); err != nil {
			if err := godotenv.Load("environments/.env.development"); err != nil {
				log.Warn().Msg("⚠️  No .env file found - checking environment variables")
			}
		}
	}

	// Engine state is always in-memory: sessions, correlation index and
	// the dedupe set are process-resident by design.
	store := storage.NewMemoryStore()
	storage.SetStore(store)

	// Optional write-only transcript archive.
	var archive *storage.Archive
	if os.Getenv("USE_DB_ARCHIVE") == "true" {
		log.Info().Msg("📦 Connecting to PostgreSQL for transcript archive...")
		if err := database.Connect(); err != nil {
			log.Fatal().Err(err).Msg("failed to connect to archive database")
		}
		if err := database.DB.AutoMigrate(&models.SessionRecord{}, &models.MessageRecord{}); err != nil {
			log.Fatal().Err(err).Msg("failed to migrate archive database")
		}
		archive = storage.NewArchive(database.DB)
		log.Info().Msg("✅ Transcript archive enabled")
	}

	// Outbound channel
	twilioService, err := services.NewTwilioService()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize Twilio service")
	}
	log.Info().Msg("✅ Twilio service initialized")

	// Event bus between the inbound router and the realtime hub.
	bus := events.NewBus(watermill.NopLogger{})

	hub := realtime.NewHub(bus)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := hub.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start realtime hub")
	}

	dispatcher := services.NewDispatcher(store, twilioService, archive)
	inboundRouter := services.NewInboundRouter(store, bus, archive)

	idleJob := jobs.NewIdleJob(store, 5*time.Minute, 30*time.Minute)
	idleJob.Start()

	// Create fiber app
	app := fiber.New(fiber.Config{
		AppName: "ChatRelay Backend v" + version,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// Middleware
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	healthHandler := handlers.NewHealthHandler(version, store, true, archive != nil)
	app.Get("/", healthHandler.Info)
	app.Get("/health", healthHandler.Check)

	routes.SetupRoutes(app, store, dispatcher, inboundRouter, hub, archive)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Handle graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sig
		log.Info().Msg("🛑 Gracefully shutting down...")
		idleJob.Stop()
		_ = app.Shutdown()
		cancel()
		hub.Stop()
		_ = bus.Close()
	}()

	log.Info().Msg("========================================")
	log.Info().Str("port", port).Msg("🚀 ChatRelay Backend starting")
	log.Info().Str("archive", archiveStatus(archive)).Msg("📊 Storage: in-memory engine")
	log.Info().Msg("📱 WhatsApp channel: configured")
	log.Info().Msg("========================================")

	if err := app.Listen(":" + port); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func archiveStatus(archive *storage.Archive) string {
	if archive == nil {
		return "disabled"
	}
	return "postgres"
}
