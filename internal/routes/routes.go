package routes

import (
	"os"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/NivasCh/chatrelay-backend/internal/handlers"
	"github.com/NivasCh/chatrelay-backend/internal/middleware"
	"github.com/NivasCh/chatrelay-backend/internal/realtime"
	"github.com/NivasCh/chatrelay-backend/internal/services"
	"github.com/NivasCh/chatrelay-backend/internal/storage"
)

// SetupRoutes configures all API routes
func SetupRoutes(
	app *fiber.App,
	store storage.Store,
	dispatcher *services.Dispatcher,
	router *services.InboundRouter,
	hub *realtime.Hub,
	archive *storage.Archive,
) {
	chatHandler := handlers.NewChatHandler(store, dispatcher, archive)
	webhookHandler := handlers.NewWebhookHandler(router)
	wsHandler := handlers.NewWSHandler(hub, store)

	// Visitor-facing API
	api := app.Group("/api")
	api.Post("/sessions", chatHandler.CreateSession)
	api.Post("/messages", chatHandler.SendMessage)
	api.Get("/sessions/:id/messages", chatHandler.GetMessages)

	// ========== WEBHOOK ROUTES ==========
	webhooks := app.Group("/webhook")

	if os.Getenv("ENVIRONMENT") == "development" || os.Getenv("DISABLE_WEBHOOK_VALIDATION") == "true" {
		// Development: skip validation so ngrok tunnels work
		webhooks.Post("/whatsapp", webhookHandler.HandleWebhook)
		log.Warn().Msg("⚠️  WhatsApp webhook validation DISABLED")
	} else {
		webhooks.Post("/whatsapp", middleware.ValidateTwilioSignature(), webhookHandler.HandleWebhook)
	}

	// ========== REALTIME ==========
	app.Use("/ws", wsHandler.Upgrade)
	app.Get("/ws/:sessionID", websocket.New(wsHandler.Serve))
}
