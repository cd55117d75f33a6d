package services

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/NivasCh/chatrelay-backend/internal/models"
	"github.com/NivasCh/chatrelay-backend/internal/storage"
)

// Dispatcher forwards visitor messages to the operator's WhatsApp and
// records the provider SID so the eventual reply can be routed back.
type Dispatcher struct {
	store   storage.Store
	sender  MessageSender
	archive *storage.Archive
}

// NewDispatcher creates an outbound dispatcher. archive may be nil.
func NewDispatcher(store storage.Store, sender MessageSender, archive *storage.Archive) *Dispatcher {
	return &Dispatcher{
		store:   store,
		sender:  sender,
		archive: archive,
	}
}

// Dispatch sends text to the operator on behalf of the session and returns
// the provider message SID. On provider failure no session state is mutated
// and the error matches models.ErrDispatchFailed with the provider
// diagnostic attached; the engine never retries.
func (d *Dispatcher) Dispatch(sessionID, text string) (string, error) {
	session, err := d.store.GetSession(sessionID)
	if err != nil {
		return "", err
	}

	// Annotate with the visitor label so the operator can tell
	// conversations apart in a single WhatsApp thread list.
	body := fmt.Sprintf("New message from %s:\n%s", session.VisitorLabel, text)

	sid, err := d.sender.SendWhatsAppMessage(d.sender.OperatorNumber(), body)
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("outbound dispatch failed")
		return "", errors.Wrapf(models.ErrDispatchFailed, "provider: %v", err)
	}

	msg := &models.Message{
		ID:             sid,
		Direction:      models.DirectionToOperator,
		Text:           text,
		Timestamp:      time.Now(),
		DeliveryStatus: models.DeliverySent,
	}
	if err := d.store.RecordDispatch(sessionID, sid, msg); err != nil {
		return "", err
	}
	go d.archive.SaveMessage(sessionID, msg)

	log.Info().
		Str("session_id", sessionID).
		Str("message_sid", sid).
		Msg("message dispatched to operator")
	return sid, nil
}
