package storage

import (
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/NivasCh/chatrelay-backend/internal/models"
)

// Archive persists transcripts to Postgres for operator-side history. It is
// strictly write-only and best-effort: the in-memory store stays the source
// of truth and archive failures never propagate into the engine.
type Archive struct {
	db *gorm.DB
}

// NewArchive creates a transcript archive backed by the given database.
func NewArchive(db *gorm.DB) *Archive {
	return &Archive{db: db}
}

// SaveSession records a newly created session.
func (a *Archive) SaveSession(session *models.ChatSession) {
	if a == nil {
		return
	}
	record := &models.SessionRecord{
		SessionID:    session.ID,
		VisitorLabel: session.VisitorLabel,
	}
	if err := a.db.Create(record).Error; err != nil {
		log.Warn().Err(err).Str("session_id", session.ID).Msg("archive: failed to save session")
	}
}

// SaveMessage records a transcript entry.
func (a *Archive) SaveMessage(sessionID string, msg *models.Message) {
	if a == nil {
		return
	}
	record := &models.MessageRecord{
		SessionID: sessionID,
		MessageID: msg.ID,
		Direction: string(msg.Direction),
		Body:      msg.Text,
		Status:    string(msg.DeliveryStatus),
	}
	if err := a.db.Create(record).Error; err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("archive: failed to save message")
	}
}

// UpdateMessageStatus mirrors a delivery-status change onto the archived row.
func (a *Archive) UpdateMessageStatus(sessionID, messageID string, status models.DeliveryStatus) {
	if a == nil {
		return
	}
	err := a.db.Model(&models.MessageRecord{}).
		Where("session_id = ? AND message_id = ?", sessionID, messageID).
		Update("status", string(status)).Error
	if err != nil {
		log.Warn().Err(err).Str("message_id", messageID).Msg("archive: failed to update status")
	}
}
