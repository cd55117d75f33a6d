package storage

import (
	"time"

	"github.com/NivasCh/chatrelay-backend/internal/models"
)

var storeInstance Store

// SetStore sets the global store instance (call from main.go)
func SetStore(s Store) {
	storeInstance = s
}

// GetStore returns the global store instance
func GetStore() Store {
	return storeInstance
}

// Store holds all session state and the correlation index mapping provider
// message SIDs back to the owning session. It is the only shared mutable
// resource in the engine.
type Store interface {
	// CreateSession installs an empty active session under a fresh id.
	CreateSession() (*models.ChatSession, error)

	// GetSession returns a snapshot of the session, or
	// models.ErrSessionNotFound.
	GetSession(sessionID string) (*models.ChatSession, error)

	// AppendMessage appends to the transcript and bumps LastActivity.
	AppendMessage(sessionID string, msg *models.Message) error

	// RecordDispatch atomically appends the outbound message, sets the
	// session's LastProviderID and binds providerID -> sessionID in the
	// correlation index.
	RecordDispatch(sessionID, providerID string, msg *models.Message) error

	// ResolveProviderID looks up which session dispatched providerID.
	ResolveProviderID(providerID string) (sessionID string, ok bool)

	// UpdateMessageStatus updates the delivery status of the outbound
	// message with the given id, scanning the session transcript linearly.
	// Returns false when the message is unknown or the status would be a
	// downgrade.
	UpdateMessageStatus(sessionID, messageID string, status models.DeliveryStatus) (bool, error)

	// MarkIdle flips sessions with no activity for the given duration to
	// idle and reports how many changed. Informational only.
	MarkIdle(olderThan time.Duration) int

	// ActiveSessions returns snapshots of all active sessions (monitoring).
	ActiveSessions() []*models.ChatSession

	// SessionCount returns the total number of sessions in the store.
	SessionCount() int
}
