package handlers

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/NivasCh/chatrelay-backend/internal/realtime"
	"github.com/NivasCh/chatrelay-backend/internal/storage"
)

// WSHandler upgrades browser connections and joins them to their session's
// realtime channel.
type WSHandler struct {
	hub   *realtime.Hub
	store storage.Store
}

// NewWSHandler creates a new websocket handler.
func NewWSHandler(hub *realtime.Hub, store storage.Store) *WSHandler {
	return &WSHandler{hub: hub, store: store}
}

// Upgrade gates the route so plain HTTP requests get a 426.
func (h *WSHandler) Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// Serve runs one browser connection. The client joins the session channel
// from the URL and then only listens; frames it sends are drained and
// ignored (sends go through the REST endpoint).
func (h *WSHandler) Serve(conn *websocket.Conn) {
	sessionID := conn.Params("sessionID")

	if _, err := h.store.GetSession(sessionID); err != nil {
		log.Warn().Str("session_id", sessionID).Msg("ws join for unknown session, closing")
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"error","error":"session not found"}`))
		_ = conn.Close()
		return
	}

	h.hub.Join(sessionID, conn)
	defer h.hub.Leave(sessionID, conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
