package services

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/NivasCh/chatrelay-backend/internal/events"
	"github.com/NivasCh/chatrelay-backend/internal/models"
	"github.com/NivasCh/chatrelay-backend/internal/storage"
)

// ReplyEvent is an operator reply pushed to us by the provider webhook.
type ReplyEvent struct {
	// EventID is the provider's id for the inbound message itself, used
	// for duplicate suppression under at-least-once webhook delivery.
	EventID string
	// ContextID is the SID of the outbound message being replied to.
	// Empty when the operator did not reply-in-thread.
	ContextID string
	From      string
	Text      string
}

// StatusEvent is a delivery-status callback for a dispatched message.
type StatusEvent struct {
	MessageID string
	Status    string
}

// InboundRouter resolves webhook events against the correlation index,
// mutates session state and publishes results onto the event bus. All
// routing failures are absorbed here: the webhook endpoint acknowledges
// regardless, so the provider never retries an event we chose to discard.
type InboundRouter struct {
	store   storage.Store
	bus     *events.Bus
	archive *storage.Archive

	seenMu sync.Mutex
	seen   map[string]struct{}
}

// NewInboundRouter creates a webhook event router. archive may be nil.
func NewInboundRouter(store storage.Store, bus *events.Bus, archive *storage.Archive) *InboundRouter {
	return &InboundRouter{
		store:   store,
		bus:     bus,
		archive: archive,
		seen:    make(map[string]struct{}),
	}
}

// HandleReply attributes an operator reply to the session that sent the
// original message and pushes it to that session's live subscribers.
// Returned errors are diagnostics for logging and tests only; callers must
// still acknowledge the webhook.
func (r *InboundRouter) HandleReply(ev ReplyEvent) error {
	if ev.ContextID == "" {
		// Operator sent a free-standing message instead of replying in
		// thread. Nothing to attribute it to; drop by policy.
		log.Warn().Str("from", ev.From).Msg("reply without context id, discarding")
		return errors.Wrap(models.ErrUnattributableReply, "no context id")
	}

	if ev.EventID != "" && !r.markSeen(ev.EventID) {
		log.Debug().Str("event_id", ev.EventID).Msg("duplicate reply event, discarding")
		return models.ErrDuplicateEvent
	}

	sessionID, ok := r.store.ResolveProviderID(ev.ContextID)
	if !ok {
		// Stale reply, or a SID we never dispatched.
		log.Warn().Str("context_id", ev.ContextID).Msg("no correlation entry for reply, discarding")
		return errors.Wrapf(models.ErrUnattributableReply, "context id %s unknown", ev.ContextID)
	}

	msg := &models.Message{
		ID:        uuid.NewString(),
		Direction: models.DirectionToVisitor,
		Text:      ev.Text,
		Timestamp: time.Now(),
	}
	if err := r.store.AppendMessage(sessionID, msg); err != nil {
		return err
	}
	go r.archive.SaveMessage(sessionID, msg)

	if err := r.bus.Publish(&events.Event{
		Type:      events.TypeReply,
		SessionID: sessionID,
		Message:   msg,
	}); err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("failed to publish reply event")
		return err
	}

	log.Info().Str("session_id", sessionID).Str("context_id", ev.ContextID).Msg("operator reply routed")
	return nil
}

// HandleStatus updates the delivery status of a previously dispatched
// message. Unknown ids and out-of-order downgrades are discarded quietly.
func (r *InboundRouter) HandleStatus(ev StatusEvent) error {
	status, ok := models.ParseDeliveryStatus(ev.Status)
	if !ok {
		log.Debug().Str("status", ev.Status).Msg("unrecognized delivery status, ignoring")
		return nil
	}

	sessionID, found := r.store.ResolveProviderID(ev.MessageID)
	if !found {
		log.Warn().Str("message_sid", ev.MessageID).Msg("status for unknown message, discarding")
		return errors.Wrapf(models.ErrUnknownMessage, "message sid %s", ev.MessageID)
	}

	updated, err := r.store.UpdateMessageStatus(sessionID, ev.MessageID, status)
	if err != nil {
		return err
	}
	if !updated {
		return nil
	}
	go r.archive.UpdateMessageStatus(sessionID, ev.MessageID, status)

	if err := r.bus.Publish(&events.Event{
		Type:      events.TypeStatus,
		SessionID: sessionID,
		MessageID: ev.MessageID,
		Status:    status,
	}); err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("failed to publish status event")
		return err
	}

	log.Debug().
		Str("session_id", sessionID).
		Str("message_sid", ev.MessageID).
		Str("status", string(status)).
		Msg("delivery status updated")
	return nil
}

// markSeen records the event id and reports whether it was new. The seen
// set is never pruned; like the correlation index its lifetime is the
// process lifetime.
func (r *InboundRouter) markSeen(eventID string) bool {
	r.seenMu.Lock()
	defer r.seenMu.Unlock()

	if _, dup := r.seen[eventID]; dup {
		return false
	}
	r.seen[eventID] = struct{}{}
	return true
}
