package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/NivasCh/chatrelay-backend/internal/models"
	"github.com/NivasCh/chatrelay-backend/internal/services"
	"github.com/NivasCh/chatrelay-backend/internal/storage"
)

// ChatHandler serves the visitor-facing session and message endpoints.
type ChatHandler struct {
	store      storage.Store
	dispatcher *services.Dispatcher
	archive    *storage.Archive
}

// NewChatHandler creates a new chat handler. archive may be nil.
func NewChatHandler(store storage.Store, dispatcher *services.Dispatcher, archive *storage.Archive) *ChatHandler {
	return &ChatHandler{
		store:      store,
		dispatcher: dispatcher,
		archive:    archive,
	}
}

// CreateSession opens a fresh session for an anonymous visitor.
func (h *ChatHandler) CreateSession(c *fiber.Ctx) error {
	session, err := h.store.CreateSession()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create session",
		})
	}
	go h.archive.SaveSession(session)

	log.Info().Str("session_id", session.ID).Str("visitor", session.VisitorLabel).Msg("session created")
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"session_id":    session.ID,
		"visitor_label": session.VisitorLabel,
	})
}

// SendMessageRequest is the visitor's outbound message payload.
type SendMessageRequest struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

// SendMessage forwards a visitor message to the operator's WhatsApp.
func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	var req SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.SessionID == "" || req.Text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Missing required fields",
		})
	}

	sid, err := h.dispatcher.Dispatch(req.SessionID, req.Text)
	switch {
	case errors.Is(err, models.ErrSessionNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Session not found",
		})
	case errors.Is(err, models.ErrDispatchFailed):
		// Surface the provider diagnostic so the widget can show a
		// send failure and let the visitor retry.
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":  "Failed to send message",
			"detail": err.Error(),
		})
	case err != nil:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success":     true,
		"message_sid": sid,
	})
}

// GetMessages returns the session transcript, so a reloaded page can
// restore its chat history.
func (h *ChatHandler) GetMessages(c *fiber.Ctx) error {
	sessionID := c.Params("id")

	session, err := h.store.GetSession(sessionID)
	if errors.Is(err, models.ErrSessionNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Session not found",
		})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"session_id":    session.ID,
		"status":        session.Status,
		"last_activity": session.LastActivity,
		"messages":      session.Messages,
	})
}
