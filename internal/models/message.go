package models

import "time"

// Direction indicates which way a message travelled.
type Direction string

const (
	DirectionToOperator Direction = "to_operator"
	DirectionToVisitor  Direction = "to_visitor"
)

// DeliveryStatus is the provider-reported delivery state of an outbound
// message. Inbound messages never carry one.
type DeliveryStatus string

const (
	DeliverySent      DeliveryStatus = "sent"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryRead      DeliveryStatus = "read"
	DeliveryFailed    DeliveryStatus = "failed"
)

var statusRank = map[DeliveryStatus]int{
	DeliverySent:      1,
	DeliveryDelivered: 2,
	DeliveryRead:      3,
}

// Supersedes reports whether s should replace old. Status callbacks can
// arrive out of order, so a late "sent" must not downgrade "delivered".
// Failed is terminal and always applies.
func (s DeliveryStatus) Supersedes(old DeliveryStatus) bool {
	if s == DeliveryFailed {
		return true
	}
	if old == DeliveryFailed {
		return false
	}
	return statusRank[s] > statusRank[old]
}

// ParseDeliveryStatus maps a Twilio MessageStatus value onto our delivery
// states. Pre-delivery states (queued, sending, sent) all collapse to sent.
func ParseDeliveryStatus(raw string) (DeliveryStatus, bool) {
	switch raw {
	case "queued", "accepted", "sending", "sent":
		return DeliverySent, true
	case "delivered":
		return DeliveryDelivered, true
	case "read":
		return DeliveryRead, true
	case "failed", "undelivered":
		return DeliveryFailed, true
	}
	return "", false
}

// Message is a single entry in a session transcript. Outbound messages use
// the provider-assigned SID as their ID; inbound messages get a locally
// generated UUID, because the provider's reply id references the original
// outbound message, not the reply itself.
type Message struct {
	ID             string         `json:"id"`
	Direction      Direction      `json:"direction"`
	Text           string         `json:"text"`
	Timestamp      time.Time      `json:"timestamp"`
	DeliveryStatus DeliveryStatus `json:"delivery_status,omitempty"`
}
