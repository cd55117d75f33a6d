package models

import "time"

// SessionStatus is informational only; sessions are active on creation and
// may be marked idle by the background sweeper after a period of inactivity.
type SessionStatus string

const (
	SessionActive SessionStatus = "active"
	SessionIdle   SessionStatus = "idle"
)

// ChatSession is a single visitor's conversation. It is identified by an
// opaque id independent of any browser connection, and lives for the life
// of the process.
type ChatSession struct {
	ID           string        `json:"session_id"`
	VisitorLabel string        `json:"visitor_label"`
	Messages     []*Message    `json:"messages"`
	Status       SessionStatus `json:"status"`
	CreatedAt    time.Time     `json:"created_at"`
	LastActivity time.Time     `json:"last_activity"`

	// LastProviderID is the SID of the most recently dispatched outbound
	// message. Reply correlation itself uses the multi-key index in the
	// store, so replies to older sends still resolve after a newer send
	// has overwritten this slot.
	LastProviderID string `json:"last_provider_id,omitempty"`
}
