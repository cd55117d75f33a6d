package models

import "gorm.io/gorm"

// SessionRecord is the archived copy of a chat session. The archive is
// write-only operator-side history; the engine never reads it back.
type SessionRecord struct {
	gorm.Model
	SessionID    string `json:"session_id" gorm:"uniqueIndex"`
	VisitorLabel string `json:"visitor_label"`
}

// MessageRecord is the archived copy of a transcript entry.
type MessageRecord struct {
	gorm.Model
	SessionID string `json:"session_id" gorm:"index"`
	MessageID string `json:"message_id" gorm:"index"`
	Direction string `json:"direction"`
	Body      string `json:"body"`
	Status    string `json:"status"`
}
