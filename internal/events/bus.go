package events

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/pkg/errors"

	"github.com/NivasCh/chatrelay-backend/internal/models"
)

// TopicChat carries all session-scoped events from the inbound router to
// the realtime layer.
const TopicChat = "chat.events"

// Type discriminates the event payloads pushed to browser subscribers.
type Type string

const (
	TypeReply  Type = "reply"
	TypeStatus Type = "status"
)

// Event is what the inbound router publishes and the realtime hub delivers.
// Reply events carry the appended message; status events carry the outbound
// message id and its new delivery status.
type Event struct {
	Type      Type                  `json:"type"`
	SessionID string                `json:"session_id"`
	Message   *models.Message       `json:"message,omitempty"`
	MessageID string                `json:"message_id,omitempty"`
	Status    models.DeliveryStatus `json:"status,omitempty"`
}

// Bus is the in-process pub/sub channel decoupling webhook processing from
// websocket delivery, so a slow connection never stalls the router.
type Bus struct {
	pubsub *gochannel.GoChannel
}

// NewBus creates a buffered in-memory bus.
func NewBus(logger watermill.LoggerAdapter) *Bus {
	return &Bus{
		// BlockPublishUntilSubscriberAck makes Publish hand each message
		// to the subscriber in call order; without it gochannel spawns a
		// goroutine per message and sequential publishes race into the
		// output channel. The hub Acks on dequeue, so Publish only waits
		// for the handoff, never for a websocket write.
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer:            256,
			BlockPublishUntilSubscriberAck: true,
		}, logger),
	}
}

// Publish serializes the event onto the chat topic. Publish order for the
// same session is the delivery order seen by subscribers.
func (b *Bus) Publish(ev *Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "marshal event")
	}
	return b.pubsub.Publish(TopicChat, message.NewMessage(watermill.NewUUID(), payload))
}

// Subscribe returns the stream of chat events. Messages must be Acked.
func (b *Bus) Subscribe(ctx context.Context) (<-chan *message.Message, error) {
	return b.pubsub.Subscribe(ctx, TopicChat)
}

// Close shuts the underlying pub/sub down.
func (b *Bus) Close() error {
	return b.pubsub.Close()
}

// Decode parses a bus message back into an Event.
func Decode(msg *message.Message) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		return nil, errors.Wrap(err, "decode event")
	}
	return &ev, nil
}
