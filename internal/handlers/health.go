package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/NivasCh/chatrelay-backend/internal/storage"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	Version           string
	store             storage.Store
	twilioConfigured  bool
	archiveConfigured bool
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version string, store storage.Store, twilioConfigured, archiveConfigured bool) *HealthHandler {
	return &HealthHandler{
		Version:           version,
		store:             store,
		twilioConfigured:  twilioConfigured,
		archiveConfigured: archiveConfigured,
	}
}

// Check returns the health status of the service
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "OK",
		"service": "ChatRelay Backend",
		"version": h.Version,
		"services": fiber.Map{
			"twilio":  h.twilioConfigured,
			"archive": h.archiveConfigured,
		},
	})
}

// Info is the root endpoint with service stats for monitoring.
func (h *HealthHandler) Info(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service": "ChatRelay Backend API",
		"version": h.Version,
		"status":  "healthy",
		"sessions": fiber.Map{
			"total":  h.store.SessionCount(),
			"active": len(h.store.ActiveSessions()),
		},
		"whatsapp": fiber.Map{
			"configured": h.twilioConfigured,
		},
	})
}
