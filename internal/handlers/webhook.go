package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/NivasCh/chatrelay-backend/internal/models"
	"github.com/NivasCh/chatrelay-backend/internal/services"
)

// WebhookHandler receives Twilio WhatsApp webhooks: operator replies and
// delivery-status callbacks.
type WebhookHandler struct {
	router *services.InboundRouter
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(router *services.InboundRouter) *WebhookHandler {
	return &WebhookHandler{router: router}
}

// TwilioWebhookPayload represents an incoming Twilio WhatsApp webhook.
// Replies carry Body plus OriginalRepliedMessageSid when the operator
// replied in thread; status callbacks carry MessageStatus instead.
type TwilioWebhookPayload struct {
	MessageSid                string `form:"MessageSid"`
	SmsSid                    string `form:"SmsSid"`
	AccountSid                string `form:"AccountSid"`
	From                      string `form:"From"` // whatsapp:+919876543210
	To                        string `form:"To"`
	Body                      string `form:"Body"`
	MessageStatus             string `form:"MessageStatus"`
	OriginalRepliedMessageSid string `form:"OriginalRepliedMessageSid"`
}

// HandleWebhook processes a provider event. Internal routing failures
// (unattributable replies, duplicates, unknown message ids) are absorbed
// and the provider still gets a success acknowledgment, so it never
// retries an event we would discard identically.
func (h *WebhookHandler) HandleWebhook(c *fiber.Ctx) error {
	var payload TwilioWebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		log.Warn().Err(err).Msg("failed to parse webhook payload")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid webhook payload",
		})
	}

	// Some inbound messages arrive with a vendor-specific MessageStatus
	// like "received" alongside the Body; only a status we can map to a
	// delivery state is treated as a status callback, everything else with
	// a body is an operator reply.
	_, knownStatus := models.ParseDeliveryStatus(payload.MessageStatus)

	switch {
	case payload.MessageStatus != "" && knownStatus:
		if err := h.router.HandleStatus(services.StatusEvent{
			MessageID: payload.MessageSid,
			Status:    payload.MessageStatus,
		}); err != nil {
			log.Debug().Err(err).Msg("status event discarded")
		}

	case payload.Body != "":
		if err := h.router.HandleReply(services.ReplyEvent{
			EventID:   payload.MessageSid,
			ContextID: payload.OriginalRepliedMessageSid,
			From:      stripWhatsAppPrefix(payload.From),
			Text:      payload.Body,
		}); err != nil {
			log.Debug().Err(err).Msg("reply event discarded")
		}

	default:
		log.Debug().Str("sid", payload.MessageSid).Msg("webhook with no body or status, ignoring")
	}

	return c.SendStatus(fiber.StatusOK)
}

func stripWhatsAppPrefix(number string) string {
	const prefix = "whatsapp:"
	if len(number) > len(prefix) && number[:len(prefix)] == prefix {
		return number[len(prefix):]
	}
	return number
}
